package reflex

import (
	"context"
	"strings"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type optionalStep struct{ Base }

func (*optionalStep) SetValue(value int, step *int) {}

type colliding struct{ Base }

func (*colliding) SetValue()  {}
func (*colliding) Set_Value() {}

type traced struct{ Base }

func (*traced) Fail() error { return pkgerrors.New("traced") }

func TestRegister(t *testing.T) {
	cfg, _ := testConfig()

	t.Run("rejects duplicate targets", func(t *testing.T) {
		reg := NewRegistry(cfg)
		require.NoError(t, Register(reg, "Counter", func() *counter { return &counter{} }))

		err := Register(reg, "Counter", func() *counter { return &counter{} })
		assert.ErrorIs(t, err, ErrTargetAlreadyDefined)
	})

	t.Run("rejects interface types", func(t *testing.T) {
		reg := NewRegistry(cfg)
		err := Register(reg, "Any", func() Handler { return &counter{} })
		assert.ErrorIs(t, err, ErrInvalidHandlerType)
	})

	t.Run("rejects colliding method names", func(t *testing.T) {
		reg := NewRegistry(cfg)
		err := Register(reg, "Colliding", func() *colliding { return &colliding{} })
		assert.ErrorIs(t, err, ErrInvalidHandlerType)
	})

	t.Run("optional parameters", func(t *testing.T) {
		reg := NewRegistry(cfg)
		require.NoError(t, Register(reg, "Step", func() *optionalStep { return &optionalStep{} },
			Optional("set_value", 1),
		))

		m, ok := reg.targets["Step"].methods["setvalue"]
		require.True(t, ok)
		assert.Equal(t, []string{"int"}, m.Required())
		assert.Equal(t, []string{"*int"}, m.Optional())
	})

	t.Run("optional on unknown method", func(t *testing.T) {
		reg := NewRegistry(cfg)
		err := Register(reg, "Step", func() *optionalStep { return &optionalStep{} },
			Optional("missing", 1),
		)
		assert.ErrorIs(t, err, ErrInvalidOptional)
		assert.ErrorIs(t, err, ErrUnknownMethod)
		assert.NotContains(t, reg.targets, "Step")
	})

	t.Run("optional beyond the parameter count", func(t *testing.T) {
		reg := NewRegistry(cfg)
		err := Register(reg, "Step", func() *optionalStep { return &optionalStep{} },
			Optional("SetValue", 3),
		)
		assert.ErrorIs(t, err, ErrInvalidOptional)
	})
}

func TestRegistry_Resolve(t *testing.T) {
	cfg, _ := testConfig()
	reg := NewRegistry(cfg)
	require.NoError(t, Register(reg, "Counter", func() *counter { return &counter{} }))

	req, err := ParseRequest([]byte(invocationJSON("Counter#increment", "[]")))
	require.NoError(t, err)
	conn := newFakeConn()

	t.Run("binds a fresh handler", func(t *testing.T) {
		a, err := reg.Resolve(context.Background(), req, conn)
		require.NoError(t, err)
		b, err := reg.Resolve(context.Background(), req, conn)
		require.NoError(t, err)

		assert.NotSame(t, a.Handler, b.Handler)
		assert.Equal(t, "Counter", a.Target)

		c := a.Handler.(*counter)
		assert.Same(t, req, c.Request())
		assert.Equal(t, conn, c.Conn())
		assert.NotNil(t, c.Logger())
		assert.Nil(t, c.Controller())
		assert.Nil(t, c.Session())
	})

	t.Run("no logger when logging is off", func(t *testing.T) {
		off := cfg
		off.Logging = false
		reg := NewRegistry(off)
		require.NoError(t, Register(reg, "Counter", func() *counter { return &counter{} }))

		inst, err := reg.Resolve(context.Background(), req, conn)
		require.NoError(t, err)
		assert.Nil(t, inst.Logger())
	})

	t.Run("checks the version first", func(t *testing.T) {
		stale := *req
		stale.Target = "Missing"
		stale.Version = "0.9.0"

		_, err := reg.Resolve(context.Background(), &stale, conn)
		assert.Equal(t, KindVersionMismatch, KindOf(err))
	})

	t.Run("unknown target", func(t *testing.T) {
		missing := *req
		missing.Target = "Missing"

		_, err := reg.Resolve(context.Background(), &missing, conn)
		assert.ErrorIs(t, err, ErrUnknownTarget)
	})
}

func TestInstance_Invoke(t *testing.T) {
	cfg, _ := testConfig()
	reg := NewRegistry(cfg)
	require.NoError(t, Register(reg, "Counter", func() *counter { return &counter{} }))

	invoke := func(t *testing.T, target, args string) (*counter, error) {
		t.Helper()
		req, err := ParseRequest([]byte(invocationJSON(target, args)))
		require.NoError(t, err)
		inst, err := reg.Resolve(context.Background(), req, newFakeConn())
		require.NoError(t, err)
		return inst.Handler.(*counter), inst.Invoke(context.Background(), req)
	}

	t.Run("method name variants", func(t *testing.T) {
		for _, target := range []string{"Counter#set_value", "Counter#setValue", "Counter#SetValue"} {
			c, err := invoke(t, target, "[1, 2]")
			require.NoError(t, err, target)
			assert.Equal(t, []string{"set_value(1, 2)"}, c.calls)
		}
	})

	t.Run("returned error keeps its text", func(t *testing.T) {
		_, err := invoke(t, "Counter#fail", "[]")
		require.EqualError(t, err, "boom")
		assert.Equal(t, KindDomain, KindOf(err))
	})

	t.Run("panic becomes an error", func(t *testing.T) {
		_, err := invoke(t, "Counter#explode", "[]")
		require.EqualError(t, err, "panic: kaboom")
		assert.NotEmpty(t, NewFailure(err).Stack)
	})

	t.Run("arity mismatch", func(t *testing.T) {
		c, err := invoke(t, "Counter#increment", "[1]")

		var aerr *ArgumentError
		require.ErrorAs(t, err, &aerr)
		assert.Equal(t, "Increment", aerr.Method)
		assert.Empty(t, aerr.Required)
		assert.Empty(t, c.calls)
	})
}

func TestInstance_InvokeLocatesErrors(t *testing.T) {
	cfg, _ := testConfig()
	reg := NewRegistry(cfg)
	require.NoError(t, Register(reg, "Counter", func() *counter { return &counter{} }))
	require.NoError(t, Register(reg, "Traced", func() *traced { return &traced{} }))

	invoke := func(t *testing.T, target string) error {
		t.Helper()
		req, err := ParseRequest([]byte(invocationJSON(target, "[]")))
		require.NoError(t, err)
		inst, err := reg.Resolve(context.Background(), req, newFakeConn())
		require.NoError(t, err)
		return inst.Invoke(context.Background(), req)
	}

	t.Run("plain errors start at the handler method", func(t *testing.T) {
		err := invoke(t, "Counter#fail")
		require.Error(t, err)
		assert.Equal(t, "boom", err.Error())
		assert.Equal(t, KindDomain, KindOf(err))

		f := NewFailure(err)
		assert.Contains(t, f.ShortLocation, "helpers_test.go:")
		assert.Contains(t, strings.SplitN(f.Stack, "\n", 2)[0], "(*counter).Fail")
		assert.Greater(t, strings.Count(f.Stack, "\n"), 0, "the dispatch frames follow")
	})

	t.Run("errors with a stack keep it", func(t *testing.T) {
		err := invoke(t, "Traced#fail")
		require.Error(t, err)

		f := NewFailure(err)
		assert.Contains(t, f.ShortLocation, "registry_test.go:")
		assert.Contains(t, strings.SplitN(f.Stack, "\n", 2)[0], "(*traced).Fail")
	})
}
