package reflex

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// Sentinel errors returned by request parsing and resolution.
var (
	ErrInvalidRequest = errors.New("invalid reflex request")
	ErrUnknownTarget  = errors.New("unknown reflex target")
	ErrUnknownMethod  = errors.New("unknown reflex method")

	// ErrRouteNotFound is returned when the request URL matches no route.
	// The text doubles as the signature searched for in foreign errors.
	ErrRouteNotFound = errors.New(routeSignature)
)

const routeSignature = "No route matches"

// Kind classifies a failure caught at the dispatch boundary.
type Kind int

const (
	// KindDomain is any failure raised by handler code.
	KindDomain Kind = iota

	// KindArity means the arguments do not fit the method signature.
	KindArity

	// KindRender is a failure raised while broadcasting a successful call.
	KindRender

	// KindVersionMismatch means the client package version differs from
	// the server version.
	KindVersionMismatch

	// KindRouteNotFound means the request URL could not be routed.
	KindRouteNotFound

	// KindResolution is any other failure to build a handler instance.
	KindResolution

	// KindMalformed means the inbound message is not a reflex invocation.
	KindMalformed
)

var kindNames = map[Kind]string{
	KindDomain:          "domain",
	KindArity:           "arity",
	KindRender:          "render",
	KindVersionMismatch: "version_mismatch",
	KindRouteNotFound:   "route_not_found",
	KindResolution:      "resolution",
	KindMalformed:       "malformed",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// KindOf returns the failure kind of err. Typed errors win over marks, and
// anything unrecognised is a domain failure.
func KindOf(err error) Kind {
	if err == nil {
		return KindDomain
	}

	var aerr *ArgumentError
	if errors.As(err, &aerr) {
		return KindArity
	}
	var verr *VersionMismatchError
	if errors.As(err, &verr) {
		return KindVersionMismatch
	}
	if errors.Is(err, ErrRouteNotFound) || strings.Contains(err.Error(), routeSignature) {
		return KindRouteNotFound
	}
	if errors.Is(err, ErrInvalidRequest) {
		return KindMalformed
	}
	if errors.Is(err, ErrUnknownTarget) || errors.Is(err, ErrUnknownMethod) {
		return KindResolution
	}

	var kerr *kindError
	if errors.As(err, &kerr) {
		return kerr.kind
	}
	return KindDomain
}

// mark tags err with kind unless it already classifies as something more
// specific than a domain failure.
func mark(kind Kind, err error) error {
	if err == nil || KindOf(err) != KindDomain {
		return err
	}
	return &kindError{kind: kind, err: err}
}

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

// ArgumentError is raised when the inbound arguments cannot be applied to
// the target method.
type ArgumentError struct {
	Method   string
	Given    []json.RawMessage
	Required []string
	Optional []string

	// Index and Err are set when an argument has the wrong shape rather
	// than the arguments having the wrong count.
	Index int
	Err   error
}

func (e *ArgumentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid argument %d for %s: %v", e.Index, e.Method, e.Err)
	}
	return fmt.Sprintf(
		"wrong number of arguments (given %s, expected %v, optional %v)",
		formatArgs(e.Given), e.Required, e.Optional,
	)
}

func (e *ArgumentError) Unwrap() error { return e.Err }

func formatArgs(args []json.RawMessage) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = string(a)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// VersionMismatchError is returned by resolution when the client package
// version does not match the server version exactly.
type VersionMismatchError struct {
	Server string
	Client string
}

func (e *VersionMismatchError) Error() string {
	client := e.Client
	if client == "" {
		client = "(none)"
	}
	return fmt.Sprintf("reflex version mismatch: server %s, client %s", e.Server, client)
}

// Failure is the loggable record of a caught failure.
type Failure struct {
	Message       string
	ShortLocation string
	Stack         string
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// NewFailure builds the record for err. The stack comes from the innermost
// error in the chain that carries one.
func NewFailure(err error) Failure {
	f := Failure{Message: err.Error()}

	var st pkgerrors.StackTrace
	for e := err; e != nil; e = errors.Unwrap(e) {
		if t, ok := e.(stackTracer); ok {
			st = t.StackTrace()
		}
	}

	lines := stackLines(st)
	if len(lines) > 0 {
		f.ShortLocation, _, _ = strings.Cut(lines[0], " ")
		f.Stack = strings.Join(lines, "\n")
	}
	return f
}

// stackLines renders frames as "file:line function". Frames that belong to
// the panic machinery are dropped so a recovered panic starts at the code
// that panicked.
func stackLines(st pkgerrors.StackTrace) []string {
	lines := make([]string, 0, len(st))
	panicking := false
	for _, frame := range st {
		pc := uintptr(frame) - 1
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		name := fn.Name()
		if name == "runtime.gopanic" {
			lines = lines[:0]
			panicking = true
			continue
		}
		// Runtime frames right after gopanic raised the panic on the
		// caller's behalf (nil map writes, nil dereferences).
		if panicking && isRuntimeFrame(name) {
			continue
		}
		panicking = false
		file, line := fn.FileLine(pc)
		lines = append(lines, fmt.Sprintf("%s:%d %s", file, line, fn.Name()))
	}
	return lines
}

func isRuntimeFrame(name string) bool {
	return strings.HasPrefix(name, "runtime.") || strings.HasPrefix(name, "internal/runtime/")
}

// withStack attaches a stack to err unless one is already present.
func withStack(err error) error {
	if err == nil {
		return nil
	}
	var st stackTracer
	if errors.As(err, &st) {
		return err
	}
	return pkgerrors.WithStack(err)
}

// locate attaches a stack to err, returned by the handler method starting
// at entry. Errors that carry their own stack keep it; for the rest the
// method itself becomes the first frame, so the failure location names the
// handler rather than the dispatcher.
func locate(err error, entry uintptr) error {
	var st stackTracer
	if errors.As(err, &st) {
		return err
	}
	traced := pkgerrors.WithStack(err).(stackTracer)
	stack := append(pkgerrors.StackTrace{pkgerrors.Frame(entry + 1)}, traced.StackTrace()...)
	return &locatedError{err: err, stack: stack}
}

type locatedError struct {
	err   error
	stack pkgerrors.StackTrace
}

func (e *locatedError) Error() string                    { return e.err.Error() }
func (e *locatedError) Unwrap() error                    { return e.err }
func (e *locatedError) StackTrace() pkgerrors.StackTrace { return e.stack }

// recovered converts a recovered panic value into an error with a stack.
func recovered(r any) error {
	if err, ok := r.(error); ok {
		return pkgerrors.WithStack(err)
	}
	return pkgerrors.Errorf("panic: %v", r)
}

// protect runs fn, converting a panic into an error.
func protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()
	return fn()
}
