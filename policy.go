package reflex

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"
)

// Classification is the outcome of checking a call against a method
// signature.
type Classification int

const (
	// NoArgs means the method takes no parameters and none were given.
	NoArgs Classification = iota

	// ArgsOk means the argument count fits the method signature.
	ArgsOk

	// ArityMismatch means the call cannot be made with these arguments.
	ArityMismatch
)

func (c Classification) String() string {
	switch c {
	case NoArgs:
		return "no_args"
	case ArgsOk:
		return "args_ok"
	default:
		return "arity_mismatch"
	}
}

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// Method describes a handler method that can be invoked by name. It is
// computed once when the handler type is registered.
type Method struct {
	// Name is the Go method name.
	Name string

	index     int
	entry     uintptr
	params    []reflect.Type
	optional  int
	variadic  bool
	takesCtx  bool
	returnErr bool
}

// newMethod builds the descriptor for m, or returns false when m cannot be
// invoked as a reflex action. Supported shapes take an optional leading
// context.Context and return nothing or a single error.
func newMethod(m reflect.Method) (*Method, bool) {
	t := m.Type
	d := &Method{Name: m.Name, index: m.Index, entry: m.Func.Pointer(), variadic: t.IsVariadic()}

	switch t.NumOut() {
	case 0:
	case 1:
		if t.Out(0) != errorType {
			return nil, false
		}
		d.returnErr = true
	default:
		return nil, false
	}

	// In(0) is the receiver.
	start := 1
	if t.NumIn() > 1 && t.In(1) == contextType {
		d.takesCtx = true
		start = 2
	}
	for i := start; i < t.NumIn(); i++ {
		d.params = append(d.params, t.In(i))
	}
	return d, true
}

// fixed is the number of non-variadic parameters.
func (m *Method) fixed() int {
	if m.variadic {
		return len(m.params) - 1
	}
	return len(m.params)
}

func (m *Method) required() int {
	return m.fixed() - m.optional
}

// Required returns the type names of the required parameters.
func (m *Method) Required() []string {
	return typeNames(m.params[:m.required()])
}

// Optional returns the type names of the optional parameters, including a
// variadic tail written as "...T".
func (m *Method) Optional() []string {
	names := typeNames(m.params[m.required():m.fixed()])
	if m.variadic {
		names = append(names, "..."+m.params[len(m.params)-1].Elem().String())
	}
	return names
}

func typeNames(ts []reflect.Type) []string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = t.String()
	}
	return names
}

// Classify checks whether args can be applied to m. It has no side effects.
func Classify(m *Method, args []json.RawMessage) Classification {
	n := len(args)
	if len(m.params) == 0 && n == 0 {
		return NoArgs
	}
	if n < m.required() {
		return ArityMismatch
	}
	if m.variadic || n <= m.fixed() {
		return ArgsOk
	}
	return ArityMismatch
}

// arguments decodes args into call values for m. Omitted optional parameters
// get their zero value. It must only be called after Classify has accepted
// the call.
func (m *Method) arguments(ctx context.Context, args []json.RawMessage) ([]reflect.Value, error) {
	in := make([]reflect.Value, 0, len(m.params)+1)
	if m.takesCtx {
		in = append(in, reflect.ValueOf(&ctx).Elem())
	}

	fixed := m.fixed()
	for i := 0; i < fixed; i++ {
		t := m.params[i]
		if i >= len(args) {
			in = append(in, reflect.Zero(t))
			continue
		}
		v, err := decodeArgument(args[i], t)
		if err != nil {
			return nil, m.argumentError(args, i, err)
		}
		in = append(in, v)
	}

	if m.variadic {
		elem := m.params[len(m.params)-1].Elem()
		for i := fixed; i < len(args); i++ {
			v, err := decodeArgument(args[i], elem)
			if err != nil {
				return nil, m.argumentError(args, i, err)
			}
			in = append(in, v)
		}
	}
	return in, nil
}

func decodeArgument(raw json.RawMessage, t reflect.Type) (reflect.Value, error) {
	ptr := reflect.New(t)
	if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
		return reflect.Value{}, err
	}
	return ptr.Elem(), nil
}

func (m *Method) argumentError(args []json.RawMessage, index int, err error) *ArgumentError {
	return &ArgumentError{
		Method:   m.Name,
		Given:    args,
		Required: m.Required(),
		Optional: m.Optional(),
		Index:    index,
		Err:      err,
	}
}

// methodKey normalises a method name so that "set_value", "setValue" and
// "SetValue" resolve to the same method.
func methodKey(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", ""))
}
