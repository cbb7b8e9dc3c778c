// Package counter is the example reflex served by reflexd: a per-visitor
// counter kept in the session.
package counter

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/bjaus/reflex"
)

// Target is the name the counter is registered under.
const Target = "Counter"

const (
	countKey = "count"
	stepKey  = "step"
)

// ErrNoSession is returned when the counter runs outside a page with a
// session.
var ErrNoSession = errors.New("counter requires a session")

// Counter increments a session value.
type Counter struct {
	reflex.Base
}

// New returns a Counter. It is the factory passed to reflex.Register.
func New() *Counter {
	return &Counter{}
}

// Register adds the counter to reg.
func Register(reg *reflex.Registry) error {
	return reflex.Register(reg, Target, New, reflex.Optional("SetValue", 1))
}

// Increment adds the current step to the count.
func (c *Counter) Increment(ctx context.Context) error {
	s := c.Session()
	if s == nil {
		return ErrNoSession
	}
	s.Set(countKey, Value(s, countKey)+step(s))
	return nil
}

// Decrement subtracts the current step from the count. A count that would
// drop below zero halts the call.
func (c *Counter) Decrement(ctx context.Context) error {
	s := c.Session()
	if s == nil {
		return ErrNoSession
	}
	next := Value(s, countKey) - step(s)
	if next < 0 {
		c.Halt()
		return nil
	}
	s.Set(countKey, next)
	return nil
}

// SetValue sets the count and, when given, the step used by Increment and
// Decrement.
func (c *Counter) SetValue(value int, step *int) error {
	s := c.Session()
	if s == nil {
		return ErrNoSession
	}
	if step != nil {
		if *step <= 0 {
			return fmt.Errorf("step must be positive, got %d", *step)
		}
		s.Set(stepKey, *step)
	}
	s.Set(countKey, value)
	return nil
}

func step(s *reflex.Session) int {
	if n := Value(s, stepKey); n > 0 {
		return n
	}
	return 1
}

// Value reads an integer session value. Stores that round-trip through JSON
// hand numbers back as float64.
func Value(s *reflex.Session, key string) int {
	v, _ := s.Get(key)
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

var page = template.Must(template.New("counter").Parse(`<!doctype html>
<html>
<body>
  <div id="counter" data-count="{{.Count}}">
    <span>{{.Count}}</span>
    <button data-reflex="click->Counter#decrement">-</button>
    <button data-reflex="click->Counter#increment">+</button>
  </div>
</body>
</html>
`))

// Page renders the counter page. Reflex controller requests carry their
// session in the context; browser requests load it from store and commit it
// so new visitors get a cookie.
func Page(store reflex.SessionStore) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, fromReflex := reflex.SessionFrom(r.Context())
		if !fromReflex {
			var err error
			if s, err = store.Load(r.Context(), r); err != nil {
				http.Error(w, "session unavailable", http.StatusInternalServerError)
				return
			}
			resp := &reflex.Response{Header: w.Header()}
			if err := s.Commit(r.Context(), r, resp); err != nil {
				http.Error(w, "session unavailable", http.StatusInternalServerError)
				return
			}
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = page.Execute(w, struct{ Count int }{Count: Value(s, countKey)})
	})
}
