package reflex

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// exitPause lets the log flush before the process exits on a failed
// sanity check.
const exitPause = 100 * time.Millisecond

// Dispatcher runs reflex invocations. It holds only read-only configuration
// and is safe for concurrent use: every dispatch owns its request and
// handler instance.
//
// Usage:
//  1. Create a Registry and register handler types
//  2. Create a Dispatcher with New
//  3. For every inbound message, call Dispatch with the connection it came on
type Dispatcher struct {
	resolver  Resolver
	cfg       Config
	log       logrus.FieldLogger
	inspector Inspector
	accept    Discriminator
	hooks     hooks
	sleep     func(time.Duration)
	routeHint sync.Once
}

// New creates a Dispatcher.
//
// Example:
//
//	reg := reflex.NewRegistry(cfg)
//	reflex.Register(reg, "Counter", NewCounter)
//
//	d := reflex.New(reg, cfg,
//	    reflex.WithOnFailure(func(ctx context.Context, req *reflex.Request, kind reflex.Kind, err error, _ time.Duration) {
//	        metrics.Incr("reflex.failure", "kind:"+kind.String())
//	    }),
//	)
func New(resolver Resolver, cfg Config, opts ...Option) *Dispatcher {
	cfg = cfg.withDefaults()
	d := &Dispatcher{
		resolver:  resolver,
		cfg:       cfg,
		log:       cfg.Logger,
		inspector: JSONInspector(),
		sleep:     time.Sleep,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Config returns the configuration the dispatcher runs with.
func (d *Dispatcher) Config() Config {
	return d.cfg
}

// Channel binds the dispatcher to one connection.
func (d *Dispatcher) Channel(conn Conn) *Channel {
	return &Channel{d: d, conn: conn}
}

// Channel is a Dispatcher bound to a single connection. Transports create
// one per connection.
type Channel struct {
	d    *Dispatcher
	conn Conn
}

// StreamName returns the connection's stream name.
func (c *Channel) StreamName() string {
	return c.conn.StreamName()
}

// Dispatch handles one inbound message from the channel's connection.
func (c *Channel) Dispatch(ctx context.Context, raw []byte) {
	c.d.Dispatch(ctx, c.conn, raw)
}

// Dispatch handles one inbound message end to end. It never returns an
// error and never panics: every outcome reaches the client through conn or
// the handler's notifications, and the server log.
//
// The flow:
//  1. Decode the message into a Request
//  2. Resolve a handler instance (no instance: report and stop)
//  3. Check the call against the method signature and invoke it
//  4. Halted: notify the client. Otherwise broadcast exactly once
//  5. Finalize the instance (session commit, auth diagnostics, log flush)
func (d *Dispatcher) Dispatch(ctx context.Context, conn Conn, raw []byte) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			d.log.WithField("panic", r).Error("reflex dispatch panicked")
		}
	}()

	req, err := parseRequest(d.inspector, d.accept, raw)
	if err != nil {
		d.reportUnresolved(ctx, conn, nil, err)
		d.callOnFailure(ctx, nil, err, time.Since(start))
		return
	}
	d.callOnDispatch(ctx, req)

	inst, err := d.resolve(ctx, req, conn)
	if err != nil {
		d.reportUnresolved(ctx, conn, req, err)
		d.callOnFailure(ctx, req, err, time.Since(start))
		return
	}
	defer d.finalize(ctx, inst)

	if err := inst.Invoke(ctx, req); err != nil {
		d.report(ctx, inst, req, err, false)
		d.callOnFailure(ctx, req, err, time.Since(start))
		return
	}

	if inst.Halted() {
		if err := protect(func() error { inst.OnHalted(ctx, req.Data); return nil }); err != nil {
			d.log.WithError(err).WithField("reflex_id", req.ID).Error("reflex halted notification failed")
		}
		d.callOnHalted(ctx, req, time.Since(start))
		return
	}

	if err := d.broadcast(ctx, conn, inst, req); err != nil {
		err = mark(KindRender, err)
		d.report(ctx, inst, req, err, true)
		d.callOnFailure(ctx, req, err, time.Since(start))
		return
	}
	d.callOnSuccess(ctx, req, time.Since(start))
}

func (d *Dispatcher) resolve(ctx context.Context, req *Request, conn Conn) (*Instance, error) {
	var inst *Instance
	err := protect(func() error {
		var err error
		inst, err = d.resolver.Resolve(ctx, req, conn)
		return err
	})
	if err == nil && inst == nil {
		err = withStack(errors.New("resolver returned no handler"))
	}
	if err != nil {
		return nil, mark(KindResolution, err)
	}
	return inst, nil
}

// broadcast pushes the call result through conn. It is the only place a
// broadcast happens, and it runs at most once per dispatch.
func (d *Dispatcher) broadcast(ctx context.Context, conn Conn, inst *Instance, req *Request) error {
	if conn == nil {
		return withStack(errors.New("no connection to broadcast on"))
	}
	d.recordOperation(inst, conn, "broadcast", req.Selectors)
	return protect(func() error {
		return withStack(conn.Broadcast(ctx, req.Selectors, req.Data))
	})
}

func (d *Dispatcher) recordOperation(inst *Instance, conn Conn, name string, selectors []string) {
	l := inst.Logger()
	if l == nil {
		return
	}
	op := Operation{Name: name, Selectors: selectors}
	if conn != nil {
		op.Stream = conn.StreamName()
	}
	l.Record(op)
}
