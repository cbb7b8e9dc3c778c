// Package redisstore keeps reflex sessions in Redis.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bjaus/reflex"
)

// KeyPrefix prefixes every session key.
const KeyPrefix = "reflex:session:"

// Store is a reflex.SessionStore backed by Redis. Session values are stored
// as a JSON object, so they come back with JSON types (numbers as float64).
type Store struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// New returns a Store. A zero ttl keeps sessions until they are evicted.
func New(rdb redis.Cmdable, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// Key returns the Redis key for a session id.
func Key(id string) string {
	return KeyPrefix + id
}

// Load implements reflex.SessionStore.
func (s *Store) Load(ctx context.Context, r *http.Request) (*reflex.Session, error) {
	id, ok := reflex.SessionID(r)
	if !ok {
		return reflex.FreshSession(s), nil
	}

	raw, err := s.rdb.Get(ctx, Key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return reflex.FreshSession(s), nil
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: load %s: %w", id, err)
	}

	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("redisstore: decode %s: %w", id, err)
	}
	return reflex.NewSession(s, id, values), nil
}

// Commit implements reflex.SessionStore. Unchanged sessions are not
// written.
func (s *Store) Commit(ctx context.Context, _ *http.Request, resp *reflex.Response, sess *reflex.Session) error {
	if !sess.Dirty() && !sess.New {
		return nil
	}

	raw, err := json.Marshal(sess.Values())
	if err != nil {
		return fmt.Errorf("redisstore: encode %s: %w", sess.ID, err)
	}
	if err := s.rdb.Set(ctx, Key(sess.ID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redisstore: save %s: %w", sess.ID, err)
	}

	if sess.New && resp != nil {
		reflex.SetSessionCookie(resp, sess)
	}
	return nil
}
