// Package reflex dispatches real-time invocations to server-side handlers
// ("reflexes") and recovers from their failures.
//
// A client sends a message naming a handler, a method and its arguments over
// a long-lived connection. The package decodes the message, resolves a fresh
// handler instance, checks the call against the method signature, invokes it,
// and either broadcasts the result, reports that the handler halted, or
// reports the failure. Cleanup (session commit, diagnostics, operation log)
// always runs once a handler exists.
//
// # Quick Start
//
// Define a handler by embedding Base:
//
//	type Counter struct {
//	    reflex.Base
//	}
//
//	func (c *Counter) Increment(ctx context.Context) error {
//	    n, _ := c.Session().Get("count")
//	    c.Session().Set("count", toInt(n)+1)
//	    return nil
//	}
//
//	func (c *Counter) SetValue(value int, step *int) {
//	    // ...
//	}
//
// Register it and create a Dispatcher:
//
//	cfg, err := reflex.LoadConfig("config/reflex.yaml")
//	if err != nil {
//	    return err
//	}
//
//	reg := reflex.NewRegistry(cfg, reflex.WithControllers(routes))
//	if err := reflex.Register(reg, "Counter", func() *Counter { return &Counter{} },
//	    reflex.Optional("SetValue", 1),
//	); err != nil {
//	    return err
//	}
//
//	d := reflex.New(reg, cfg)
//
//	// For every inbound message on a connection:
//	d.Dispatch(ctx, conn, raw)
//
// Transports for websockets and NATS live in the wsconn and natscast
// packages; redisstore provides a Redis-backed SessionStore.
//
// # Messages
//
// An invocation is a JSON object:
//
//	{
//	    "target":    "Counter#increment",
//	    "args":      [],
//	    "url":       "https://example.com/counter",
//	    "selectors": ["#counter"],
//	    "reflexId":  "4f6b...",
//	    "version":   "1.4.0"
//	}
//
// Method names are matched ignoring case and underscores, so "set_value",
// "setValue" and "SetValue" name the same method. Only exported methods that
// return nothing or a single error can be invoked; a leading context.Context
// parameter receives the dispatch context.
//
// # Failures
//
// Failures are classified by Kind. Failures raised after a handler exists
// (arity, domain and render failures) go to the handler's RescueWith, the
// handler's log and an error notification to the client. Failures raised
// while resolving (version mismatch, unknown target, unroutable URL) are
// logged on the process logger; a version mismatch is handled according to
// Config.OnFailedSanityChecks.
//
// Hooks observe every outcome without changing it:
//
//	d := reflex.New(reg, cfg,
//	    reflex.WithOnSuccess(func(ctx context.Context, req *reflex.Request, d time.Duration) {
//	        metrics.Timing("reflex.success", d)
//	    }),
//	    reflex.WithOnFailure(func(ctx context.Context, req *reflex.Request, kind reflex.Kind, err error, d time.Duration) {
//	        metrics.Incr("reflex.failure", "kind:"+kind.String())
//	    }),
//	)
//
// # Thread Safety
//
// Dispatcher is safe for concurrent use once configured. Register all
// targets before the first Dispatch. Handler instances are never shared
// between dispatches.
package reflex
