package reflex

import (
	"context"
	"errors"
	"maps"
	"net/http"
	"sync"

	"github.com/google/uuid"
)

// SessionCookie is the cookie carrying the session id.
const SessionCookie = "_reflex_session"

// SessionStore loads and persists controller sessions.
type SessionStore interface {
	// Load returns the session for r, or a new session when r carries
	// none.
	Load(ctx context.Context, r *http.Request) (*Session, error)

	// Commit persists s. New sessions get their cookie set on resp.
	Commit(ctx context.Context, r *http.Request, resp *Response, s *Session) error
}

// Session holds per-visitor values. It belongs to one dispatch and
// remembers the store it was loaded from.
type Session struct {
	ID     string
	New    bool
	store  SessionStore
	values map[string]any
	dirty  bool
}

// NewSession returns a session loaded from store.
func NewSession(store SessionStore, id string, values map[string]any) *Session {
	if values == nil {
		values = make(map[string]any)
	}
	return &Session{ID: id, store: store, values: values}
}

// FreshSession returns an empty session with a new id.
func FreshSession(store SessionStore) *Session {
	s := NewSession(store, uuid.NewString(), nil)
	s.New = true
	return s
}

// Commit persists the session back to its store.
func (s *Session) Commit(ctx context.Context, r *http.Request, resp *Response) error {
	if s.store == nil {
		return errors.New("session has no store")
	}
	return s.store.Commit(ctx, r, resp, s)
}

// Get returns the value stored under key.
func (s *Session) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Set stores value under key.
func (s *Session) Set(key string, value any) {
	s.values[key] = value
	s.dirty = true
}

// Delete removes key.
func (s *Session) Delete(key string) {
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	s.dirty = true
}

// Dirty reports whether the session changed since it was loaded.
func (s *Session) Dirty() bool {
	return s.dirty
}

// Values returns a copy of the stored values.
func (s *Session) Values() map[string]any {
	return maps.Clone(s.values)
}

// SessionID returns the session id carried by r, if any.
func SessionID(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// SetSessionCookie adds the cookie for s to resp.
func SetSessionCookie(resp *Response, s *Session) {
	if resp.Header == nil {
		resp.Header = make(http.Header)
	}
	c := &http.Cookie{
		Name:     SessionCookie,
		Value:    s.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	resp.Header.Add("Set-Cookie", c.String())
}

// MemoryStore is an in-process SessionStore.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]map[string]any
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]map[string]any)}
}

// Load implements SessionStore.
func (m *MemoryStore) Load(_ context.Context, r *http.Request) (*Session, error) {
	id, ok := SessionID(r)
	if !ok {
		return FreshSession(m), nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	values, ok := m.sessions[id]
	if !ok {
		return FreshSession(m), nil
	}
	return NewSession(m, id, maps.Clone(values)), nil
}

// Commit implements SessionStore.
func (m *MemoryStore) Commit(_ context.Context, _ *http.Request, resp *Response, s *Session) error {
	if !s.dirty && !s.New {
		return nil
	}

	m.mu.Lock()
	m.sessions[s.ID] = maps.Clone(s.values)
	m.mu.Unlock()

	if s.New && resp != nil {
		SetSessionCookie(resp, s)
	}
	return nil
}
