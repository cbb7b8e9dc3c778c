package reflex

import (
	"context"
	"encoding/json"
	"net/http"
)

// Handler is a resolved reflex instance, exclusively owned by one dispatch.
//
// User types implement it by embedding Base:
//
//	type Counter struct {
//	    reflex.Base
//	    Count int
//	}
//
//	func (c *Counter) Increment() {
//	    c.Count++
//	}
type Handler interface {
	// Halted reports whether the handler stopped the call. A halted call
	// is never broadcast.
	Halted() bool

	// OnHalted notifies the client that the call was halted.
	OnHalted(ctx context.Context, data json.RawMessage)

	// OnError notifies the client that the call failed.
	OnError(ctx context.Context, data json.RawMessage, body string)

	// RescueWith gives the handler the first chance to deal with a failure.
	RescueWith(err error)

	// Logger returns the handler's operation log, or nil.
	Logger() Logger

	// Controller returns the controller context the handler runs in, or nil.
	Controller() *Controller
}

// Env is what a handler is bound to when it is resolved.
type Env struct {
	Conn       Conn
	Request    *Request
	Controller *Controller
	Logger     Logger
}

// Base implements Handler and gives embedding types access to the
// connection, request and session of the current dispatch.
type Base struct {
	env    Env
	halted bool
}

type binder interface {
	bind(env Env)
}

func (b *Base) bind(env Env) {
	b.env = env
}

// Halt stops the current call from being broadcast.
func (b *Base) Halt() {
	b.halted = true
}

// Halted implements Handler.
func (b *Base) Halted() bool {
	return b.halted
}

// OnHalted implements Handler by sending a "halted" notification.
func (b *Base) OnHalted(ctx context.Context, data json.RawMessage) {
	b.notify(ctx, Notification{Subject: SubjectHalted, Data: data})
}

// OnError implements Handler by sending an "error" notification.
func (b *Base) OnError(ctx context.Context, data json.RawMessage, body string) {
	b.notify(ctx, Notification{Subject: SubjectError, Body: body, Data: data})
}

func (b *Base) notify(ctx context.Context, n Notification) {
	if b.env.Conn == nil {
		return
	}
	if b.env.Request != nil {
		n.ReflexID = b.env.Request.ID
	}
	if l := b.env.Logger; l != nil {
		l.Record(Operation{Name: n.Subject, Stream: b.env.Conn.StreamName()})
	}
	if err := b.env.Conn.Notify(ctx, n); err != nil && b.env.Logger != nil {
		b.env.Logger.Error("Failed to send " + n.Subject + " notification: " + err.Error())
	}
}

// RescueWith implements Handler. The default does nothing; handlers
// override it to recover from their own failures.
func (b *Base) RescueWith(error) {}

// Logger implements Handler.
func (b *Base) Logger() Logger {
	return b.env.Logger
}

// Controller implements Handler.
func (b *Base) Controller() *Controller {
	return b.env.Controller
}

// Conn returns the connection the call arrived on.
func (b *Base) Conn() Conn {
	return b.env.Conn
}

// Request returns the invocation being handled.
func (b *Base) Request() *Request {
	return b.env.Request
}

// Session returns the controller session, or nil outside a controller.
func (b *Base) Session() *Session {
	if b.env.Controller == nil {
		return nil
	}
	return b.env.Controller.Session
}

// Controller is the HTTP context a handler runs in: the page request the
// invocation came from and the response produced for it.
type Controller struct {
	Name     string
	Action   string
	Request  *http.Request
	Response *Response
	Session  *Session
}

// Response is the recorded response of a controller action.
type Response struct {
	Status int
	Header http.Header
}
