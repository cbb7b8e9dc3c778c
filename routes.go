package reflex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
)

// Middleware wraps a controller action.
type Middleware = func(http.Handler) http.Handler

// RouteTable resolves the page a reflex was triggered from into a
// controller context. It implements ControllerResolver.
//
// Actions run against a recorder: only the status and headers they produce
// are kept, the body is discarded.
type RouteTable struct {
	mux        *chi.Mux
	routes     map[string]route
	middleware chi.Middlewares
	sessions   SessionStore
}

type route struct {
	controller string
	action     string
}

// NewRouteTable returns an empty table. Sessions are loaded from store when
// it is non-nil.
func NewRouteTable(store SessionStore) *RouteTable {
	return &RouteTable{
		mux:      chi.NewRouter(),
		routes:   make(map[string]route),
		sessions: store,
	}
}

// Get registers the GET action for pattern. Patterns use chi syntax:
// "/posts/{id}".
func (t *RouteTable) Get(pattern, controller, action string, h http.Handler) {
	t.Method(http.MethodGet, pattern, controller, action, h)
}

// Method registers the action for method and pattern. Reflexes only ever
// resolve GET routes; other methods are kept so a page with the same path
// is not mistaken for one.
func (t *RouteTable) Method(method, pattern, controller, action string, h http.Handler) {
	t.routes[routeKey(method, pattern)] = route{controller: controller, action: action}
	t.mux.Method(method, pattern, h)
}

// Use appends middleware run around every action, in registration order.
// Middleware that rewrites request paths in the main HTTP stack must be
// registered here too.
func (t *RouteTable) Use(mw ...Middleware) {
	t.middleware = append(t.middleware, mw...)
}

func routeKey(method, pattern string) string {
	return method + " " + pattern
}

// ResolveController implements ControllerResolver.
func (t *RouteTable) ResolveController(ctx context.Context, req *Request, conn Conn) (*Controller, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("parse reflex url %q: %w", req.URL, err)
	}

	httpReq, err := http.NewRequestWithContext(withReflex(ctx, req), http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build controller request: %w", err)
	}
	if conn != nil {
		if origin := conn.Request(); origin != nil {
			httpReq.Header = origin.Header.Clone()
		}
	}

	var session *Session
	if t.sessions != nil {
		if session, err = t.sessions.Load(ctx, httpReq); err != nil {
			return nil, fmt.Errorf("load session: %w", err)
		}
		httpReq = httpReq.WithContext(WithSession(httpReq.Context(), session))
	}

	// chi routes after the middleware has run and records the matched
	// pattern on the route context.
	rctx := chi.NewRouteContext()
	httpReq = httpReq.WithContext(context.WithValue(httpReq.Context(), chi.RouteCtxKey, rctx))

	rec := newRecorder()
	t.middleware.Handler(t.mux).ServeHTTP(rec, httpReq)

	pattern := rctx.RoutePattern()
	if pattern == "" {
		// Middleware such as authentication may answer before routing;
		// the page still belongs to the route its URL names.
		path := u.Path
		if path == "" {
			path = "/"
		}
		lookup := chi.NewRouteContext()
		if t.mux.Match(lookup, http.MethodGet, path) {
			pattern = lookup.RoutePattern()
		}
	}

	matched, ok := t.routes[routeKey(http.MethodGet, pattern)]
	if !ok {
		return nil, fmt.Errorf("%w [GET] %q", ErrRouteNotFound, u.Path)
	}

	return &Controller{
		Name:     matched.controller,
		Action:   matched.action,
		Request:  httpReq,
		Response: &Response{Status: rec.status(), Header: rec.header},
		Session:  session,
	}, nil
}

// recorder captures the status and headers written by an action.
type recorder struct {
	header http.Header
	code   int
}

func newRecorder() *recorder {
	return &recorder{header: make(http.Header)}
}

func (r *recorder) Header() http.Header { return r.header }

func (r *recorder) Write(b []byte) (int, error) {
	if r.code == 0 {
		r.code = http.StatusOK
	}
	return len(b), nil
}

func (r *recorder) WriteHeader(code int) {
	if r.code == 0 {
		r.code = code
	}
}

func (r *recorder) status() int {
	if r.code == 0 {
		return http.StatusOK
	}
	return r.code
}

type contextKey int

const (
	reflexKey contextKey = iota
	sessionKey
)

func withReflex(ctx context.Context, req *Request) context.Context {
	return context.WithValue(ctx, reflexKey, req)
}

// IsReflex reports whether r is a controller request made on behalf of a
// reflex. Authentication middleware uses it to skip HTTP basic auth.
func IsReflex(r *http.Request) bool {
	_, ok := ReflexFrom(r.Context())
	return ok
}

// ReflexFrom returns the reflex request carried by ctx.
func ReflexFrom(ctx context.Context) (*Request, bool) {
	req, ok := ctx.Value(reflexKey).(*Request)
	return req, ok
}

// WithSession returns ctx carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFrom returns the session carried by ctx.
func SessionFrom(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey).(*Session)
	return s, ok
}
