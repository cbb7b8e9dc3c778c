package reflex

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/sirupsen/logrus"
)

// Errors returned by Register.
var (
	ErrTargetAlreadyDefined = errors.New("reflex target already defined")
	ErrInvalidHandlerType   = errors.New("invalid reflex handler type")
	ErrInvalidOptional      = errors.New("invalid optional parameters")
)

// Resolver turns a request into a handler instance bound to conn.
type Resolver interface {
	Resolve(ctx context.Context, req *Request, conn Conn) (*Instance, error)
}

// ControllerResolver builds the controller context for a request. It
// returns an error wrapping ErrRouteNotFound when the request URL cannot be
// routed.
type ControllerResolver interface {
	ResolveController(ctx context.Context, req *Request, conn Conn) (*Controller, error)
}

// Instance is a handler resolved for one dispatch.
type Instance struct {
	Handler

	// Target is the registered name the handler was resolved from.
	Target string

	methods map[string]*Method
}

// Method looks up the descriptor for a wire method name.
func (i *Instance) Method(name string) (*Method, bool) {
	m, ok := i.methods[methodKey(name)]
	return m, ok
}

// Invoke calls the method named by req. The call is checked against the
// method signature first; an ill-formed call fails with *ArgumentError and
// the method body never runs. Panics raised by the method are returned as
// errors.
func (i *Instance) Invoke(ctx context.Context, req *Request) (err error) {
	m, ok := i.Method(req.MethodName)
	if !ok {
		return withStack(fmt.Errorf("%w: %s#%s", ErrUnknownMethod, i.Target, req.MethodName))
	}

	var in []reflect.Value
	switch Classify(m, req.Arguments) {
	case NoArgs:
		in, err = m.arguments(ctx, nil)
	case ArgsOk:
		in, err = m.arguments(ctx, req.Arguments)
	default:
		return withStack(&ArgumentError{
			Method:   m.Name,
			Given:    req.Arguments,
			Required: m.Required(),
			Optional: m.Optional(),
		})
	}
	if err != nil {
		return withStack(err)
	}

	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()

	out := reflect.ValueOf(i.Handler).Method(m.index).Call(in)
	if m.returnErr && !out[0].IsNil() {
		return locate(out[0].Interface().(error), m.entry)
	}
	return nil
}

type target struct {
	name    string
	factory func() Handler
	methods map[string]*Method
}

// Registry maps target names to handler types. It implements Resolver.
// Register every target before the first dispatch; the Registry is read-only
// afterwards.
type Registry struct {
	cfg         Config
	targets     map[string]*target
	controllers ControllerResolver
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithControllers resolves a controller context for every request.
func WithControllers(c ControllerResolver) RegistryOption {
	return func(r *Registry) {
		r.controllers = c
	}
}

// NewRegistry creates an empty Registry.
func NewRegistry(cfg Config, opts ...RegistryOption) *Registry {
	r := &Registry{
		cfg:     cfg.withDefaults(),
		targets: make(map[string]*target),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MethodOption adjusts the descriptor of a registered method.
type MethodOption func(methods map[string]*Method) error

// Optional marks the last n parameters of method as optional. Omitted
// optional arguments are passed as zero values.
func Optional(method string, n int) MethodOption {
	return func(methods map[string]*Method) error {
		m, ok := methods[methodKey(method)]
		if !ok {
			return fmt.Errorf("%w: %s: %w", ErrInvalidOptional, method, ErrUnknownMethod)
		}
		if n < 0 || n > m.fixed() {
			return fmt.Errorf("%w: %s has %d fixed parameters, cannot make %d optional", ErrInvalidOptional, method, m.fixed(), n)
		}
		m.optional = n
		return nil
	}
}

// baseMethods are the Handler plumbing methods that can never be invoked
// from a client.
var baseMethods = func() map[string]bool {
	names := make(map[string]bool)
	t := reflect.TypeFor[*Base]()
	for i := 0; i < t.NumMethod(); i++ {
		names[t.Method(i).Name] = true
	}
	return names
}()

// Register adds a handler type under name. The exported methods of H, other
// than the Base plumbing, become invocable; their signatures are computed
// here once.
//
// Errors a method returns are reported with their stack when they carry one,
// as errors from github.com/pkg/errors do. Other errors are located at the
// method's declaration. Declare methods on the pointer receiver so that
// location is the handler's own file.
//
// This is a package-level function (not a method) due to Go generics limitations:
// methods cannot have type parameters independent of the receiver.
//
// Example:
//
//	reflex.Register(reg, "Counter", func() *Counter { return &Counter{} },
//	    reflex.Optional("SetValue", 1),
//	)
func Register[H Handler](r *Registry, name string, factory func() H, opts ...MethodOption) error {
	if _, ok := r.targets[name]; ok {
		return fmt.Errorf("%w: %s", ErrTargetAlreadyDefined, name)
	}

	t := reflect.TypeFor[H]()
	if t.Kind() == reflect.Interface {
		return fmt.Errorf("%w: %s is an interface", ErrInvalidHandlerType, t)
	}

	methods := make(map[string]*Method)
	for i := 0; i < t.NumMethod(); i++ {
		rm := t.Method(i)
		if baseMethods[rm.Name] {
			continue
		}
		m, ok := newMethod(rm)
		if !ok {
			continue
		}
		key := methodKey(rm.Name)
		if prev, dup := methods[key]; dup {
			return fmt.Errorf("%w: %s: methods %s and %s collide", ErrInvalidHandlerType, t, prev.Name, rm.Name)
		}
		methods[key] = m
	}

	for _, opt := range opts {
		if err := opt(methods); err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
	}

	r.targets[name] = &target{
		name:    name,
		factory: func() Handler { return factory() },
		methods: methods,
	}
	return nil
}

// Resolve implements Resolver. It checks the client version, resolves the
// controller context when controllers are configured, then builds and binds
// a fresh handler.
func (r *Registry) Resolve(ctx context.Context, req *Request, conn Conn) (*Instance, error) {
	if err := CheckVersion(r.cfg.Version, req.Version); err != nil {
		return nil, err
	}

	t, ok := r.targets[req.Target]
	if !ok {
		return nil, withStack(fmt.Errorf("%w: %s", ErrUnknownTarget, req.Target))
	}

	var ctrl *Controller
	if r.controllers != nil {
		var err error
		if ctrl, err = r.controllers.ResolveController(ctx, req, conn); err != nil {
			return nil, withStack(err)
		}
	}

	var logger Logger
	if r.cfg.Logging {
		logger = NewOperationLog(r.cfg.Logger.WithFields(logrus.Fields{
			"reflex_id": req.ID,
			"target":    req.Target,
		}))
	}

	h := t.factory()
	if b, ok := h.(binder); ok {
		b.bind(Env{Conn: conn, Request: req, Controller: ctrl, Logger: logger})
	}
	return &Instance{Handler: h, Target: t.name, methods: t.methods}, nil
}
