package reflex

import (
	"regexp"

	"github.com/Masterminds/semver/v3"
)

// Version is the installed server version. Client packages must report
// exactly this version.
const Version = "1.4.0"

// Server-side prereleases are written "x.y.z.preN" while client packages
// use "x.y.z-preN".
var dottedPrerelease = regexp.MustCompile(`^(\d+\.\d+\.\d+)\.([0-9A-Za-z.-]+)$`)

// normalizeVersion rewrites the dotted prerelease form into SemVer.
func normalizeVersion(v string) string {
	return dottedPrerelease.ReplaceAllString(v, "$1-$2")
}

// CheckVersion returns a *VersionMismatchError unless client names exactly
// the same version as server. The only leeway is the prerelease spelling:
// "x.y.z.preN" and "x.y.z-preN" are the same version. Partial versions, a
// leading "v" and build metadata all count as a mismatch.
func CheckVersion(server, client string) error {
	mismatch := &VersionMismatchError{Server: server, Client: client}
	if client == "" {
		return mismatch
	}

	sv, err := semver.StrictNewVersion(normalizeVersion(server))
	if err != nil {
		return mismatch
	}
	cv, err := semver.StrictNewVersion(normalizeVersion(client))
	if err != nil {
		return mismatch
	}
	if sv.Original() != cv.Original() {
		return mismatch
	}
	return nil
}
