package reflex

import (
	"context"
	"time"
)

// OnDispatchFunc is called after a request is decoded, before resolution.
type OnDispatchFunc func(ctx context.Context, req *Request)

// OnSuccessFunc is called after a call was invoked and broadcast.
type OnSuccessFunc func(ctx context.Context, req *Request, duration time.Duration)

// OnHaltedFunc is called after the handler halted the call.
type OnHaltedFunc func(ctx context.Context, req *Request, duration time.Duration)

// OnFailureFunc is called after a failure was reported. req is nil when the
// inbound message could not be decoded.
type OnFailureFunc func(ctx context.Context, req *Request, kind Kind, err error, duration time.Duration)

// hooks holds all configured hook functions.
type hooks struct {
	onDispatch []OnDispatchFunc
	onSuccess  []OnSuccessFunc
	onHalted   []OnHaltedFunc
	onFailure  []OnFailureFunc
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithOnDispatch adds a hook called once the request is decoded.
// Multiple hooks are called in order.
//
// Example:
//
//	reflex.WithOnDispatch(func(ctx context.Context, req *reflex.Request) {
//	    log.WithField("target", req.Target).Debug("dispatching reflex")
//	})
func WithOnDispatch(fn OnDispatchFunc) Option {
	return func(d *Dispatcher) {
		d.hooks.onDispatch = append(d.hooks.onDispatch, fn)
	}
}

// WithOnSuccess adds a hook called after a successful broadcast.
// Multiple hooks are called in order.
//
// Example:
//
//	reflex.WithOnSuccess(func(ctx context.Context, req *reflex.Request, d time.Duration) {
//	    metrics.Timing("reflex.success", d, "target:"+req.Target)
//	})
func WithOnSuccess(fn OnSuccessFunc) Option {
	return func(d *Dispatcher) {
		d.hooks.onSuccess = append(d.hooks.onSuccess, fn)
	}
}

// WithOnHalted adds a hook called after a handler halted its call.
func WithOnHalted(fn OnHaltedFunc) Option {
	return func(d *Dispatcher) {
		d.hooks.onHalted = append(d.hooks.onHalted, fn)
	}
}

// WithOnFailure adds a hook called after any failure was reported,
// whether or not a handler was resolved.
//
// Example:
//
//	reflex.WithOnFailure(func(ctx context.Context, req *reflex.Request, kind reflex.Kind, err error, d time.Duration) {
//	    metrics.Incr("reflex.failure", "kind:"+kind.String())
//	})
func WithOnFailure(fn OnFailureFunc) Option {
	return func(d *Dispatcher) {
		d.hooks.onFailure = append(d.hooks.onFailure, fn)
	}
}

// WithInspector sets the inspector used to decode inbound messages.
func WithInspector(i Inspector) Option {
	return func(d *Dispatcher) {
		d.inspector = i
	}
}

// WithDiscriminator restricts dispatch to messages matching disc. Messages
// must name a target regardless; anything else fails as malformed.
// Repeated options combine with And.
//
// Example:
//
//	reflex.WithDiscriminator(reflex.Or(
//	    reflex.FieldEquals("channel", "Counter"),
//	    reflex.HasFields("attrs.data-reflex-permanent"),
//	))
func WithDiscriminator(disc Discriminator) Option {
	return func(d *Dispatcher) {
		if d.accept == nil {
			d.accept = disc
			return
		}
		d.accept = And(d.accept, disc)
	}
}

// WithSleep replaces the pause taken before exiting on a failed sanity
// check.
func WithSleep(fn func(time.Duration)) Option {
	return func(d *Dispatcher) {
		d.sleep = fn
	}
}

func (d *Dispatcher) callOnDispatch(ctx context.Context, req *Request) {
	for _, fn := range d.hooks.onDispatch {
		fn(ctx, req)
	}
}

func (d *Dispatcher) callOnSuccess(ctx context.Context, req *Request, duration time.Duration) {
	for _, fn := range d.hooks.onSuccess {
		fn(ctx, req, duration)
	}
}

func (d *Dispatcher) callOnHalted(ctx context.Context, req *Request, duration time.Duration) {
	for _, fn := range d.hooks.onHalted {
		fn(ctx, req, duration)
	}
}

func (d *Dispatcher) callOnFailure(ctx context.Context, req *Request, err error, duration time.Duration) {
	kind := KindOf(err)
	for _, fn := range d.hooks.onFailure {
		fn(ctx, req, kind, err, duration)
	}
}
