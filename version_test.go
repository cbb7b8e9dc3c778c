package reflex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckVersion(t *testing.T) {
	tests := map[string]struct {
		server, client string
		ok             bool
	}{
		"equal":                      {"1.4.0", "1.4.0", true},
		"patch differs":              {"1.4.0", "1.4.1", false},
		"minor differs":              {"1.4.0", "1.3.0", false},
		"missing client":             {"1.4.0", "", false},
		"garbage client":             {"1.4.0", "latest", false},
		"dotted server prerelease":   {"3.5.0.pre9", "3.5.0-pre9", true},
		"both dotted":                {"3.5.0.pre9", "3.5.0.pre9", true},
		"prerelease differs":         {"3.5.0.pre9", "3.5.0-pre10", false},
		"prerelease against release": {"3.5.0.pre9", "3.5.0", false},
		"build metadata":             {"1.4.0", "1.4.0+abc", false},
		"leading v":                  {"1.4.0", "v1.4.0", false},
		"partial client":             {"1.4.0", "1.4", false},
		"major only":                 {"1.4.0", "1", false},
		"garbage server":             {"latest", "latest", false},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := CheckVersion(tt.server, tt.client)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var verr *VersionMismatchError
			if assert.ErrorAs(t, err, &verr) {
				assert.Equal(t, tt.server, verr.Server)
				assert.Equal(t, tt.client, verr.Client)
			}
		})
	}
}

func TestNormalizeVersion(t *testing.T) {
	assert.Equal(t, "3.5.0-pre9", normalizeVersion("3.5.0.pre9"))
	assert.Equal(t, "3.5.0-rc.1", normalizeVersion("3.5.0.rc.1"))
	assert.Equal(t, "3.5.0-pre9", normalizeVersion("3.5.0-pre9"))
	assert.Equal(t, "3.5.0", normalizeVersion("3.5.0"))
}
