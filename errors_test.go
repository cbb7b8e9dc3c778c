package reflex

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := map[string]struct {
		err  error
		want Kind
	}{
		"nil":                {nil, KindDomain},
		"plain":              {errors.New("boom"), KindDomain},
		"argument":           {&ArgumentError{Method: "Run"}, KindArity},
		"wrapped argument":   {pkgerrors.WithStack(&ArgumentError{Method: "Run"}), KindArity},
		"version":            {&VersionMismatchError{Server: "1.0.0"}, KindVersionMismatch},
		"route sentinel":     {fmt.Errorf("%w [GET] %q", ErrRouteNotFound, "/x"), KindRouteNotFound},
		"foreign route text": {errors.New(`ActionController: No route matches [GET] "/x"`), KindRouteNotFound},
		"malformed":          {fmt.Errorf("%w: missing target", ErrInvalidRequest), KindMalformed},
		"unknown target":     {fmt.Errorf("%w: X", ErrUnknownTarget), KindResolution},
		"unknown method":     {fmt.Errorf("%w: X#y", ErrUnknownMethod), KindResolution},
		"marked render":      {mark(KindRender, errors.New("closed")), KindRender},
		"mark keeps arity":   {mark(KindRender, &ArgumentError{}), KindArity},
		"mark keeps route":   {mark(KindResolution, ErrRouteNotFound), KindRouteNotFound},
		"marked and wrapped": {fmt.Errorf("outer: %w", mark(KindResolution, errors.New("x"))), KindResolution},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestMarkKeepsChain(t *testing.T) {
	base := errors.New("closed")
	err := mark(KindRender, base)

	assert.ErrorIs(t, err, base)
	assert.Equal(t, "closed", err.Error())
	assert.Nil(t, mark(KindRender, nil))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "domain", KindDomain.String())
	assert.Equal(t, "route_not_found", KindRouteNotFound.String())
	assert.Equal(t, "kind(99)", Kind(99).String())
}

func TestArgumentError(t *testing.T) {
	t.Run("count", func(t *testing.T) {
		err := &ArgumentError{
			Method:   "SetValue",
			Given:    []json.RawMessage{json.RawMessage(`5`), json.RawMessage(`"x"`)},
			Required: []string{"int"},
			Optional: []string{},
		}
		assert.Equal(t, `wrong number of arguments (given [5, "x"], expected [int], optional [])`, err.Error())
	})

	t.Run("shape", func(t *testing.T) {
		cause := errors.New("bad")
		err := &ArgumentError{Method: "SetValue", Index: 1, Err: cause}
		assert.Equal(t, "invalid argument 1 for SetValue: bad", err.Error())
		assert.ErrorIs(t, err, cause)
	})
}

func TestVersionMismatchError(t *testing.T) {
	assert.Equal(t,
		"reflex version mismatch: server 1.4.0, client (none)",
		(&VersionMismatchError{Server: "1.4.0"}).Error(),
	)
}

func TestNewFailure(t *testing.T) {
	t.Run("without stack", func(t *testing.T) {
		f := NewFailure(errors.New("plain"))
		assert.Equal(t, "plain", f.Message)
		assert.Empty(t, f.ShortLocation)
		assert.Empty(t, f.Stack)
	})

	t.Run("with stack", func(t *testing.T) {
		f := NewFailure(withStack(errors.New("traced")))
		assert.Equal(t, "traced", f.Message)
		assert.Contains(t, f.ShortLocation, "errors.go:")
		assert.True(t, strings.HasPrefix(f.Stack, f.ShortLocation+" "))
	})

	t.Run("innermost stack wins", func(t *testing.T) {
		inner := pkgerrors.New("inner")
		outer := pkgerrors.WithStack(fmt.Errorf("outer: %w", inner))

		f := NewFailure(outer)
		assert.Equal(t, "outer: inner", f.Message)
		assert.Contains(t, f.ShortLocation, "errors_test.go:")
		assert.Contains(t, strings.SplitN(f.Stack, "\n", 2)[0], "TestNewFailure")
	})

	t.Run("recovered panic starts at the panic site", func(t *testing.T) {
		err := protect(func() error {
			var m map[string]int
			m["x"] = 1
			return nil
		})
		require.Error(t, err)

		f := NewFailure(err)
		assert.Contains(t, f.Message, "assignment to entry in nil map")
		assert.NotContains(t, f.Stack, "runtime.gopanic")
		assert.Contains(t, strings.SplitN(f.Stack, "\n", 2)[0], "TestNewFailure")
	})
}

func TestWithStackIsIdempotent(t *testing.T) {
	err := withStack(errors.New("x"))
	assert.Same(t, err, withStack(err))
	assert.Nil(t, withStack(nil))
}

func TestProtect(t *testing.T) {
	assert.NoError(t, protect(func() error { return nil }))

	want := errors.New("returned")
	assert.Equal(t, want, protect(func() error { return want }))

	err := protect(func() error { panic(want) })
	assert.ErrorIs(t, err, want)

	err = protect(func() error { panic(42) })
	assert.EqualError(t, err, "panic: 42")
}
