package cache

import (
	"sync"
	"time"
)

// entry stores one value with the time it was written.
type entry[T any] struct {
	value    T
	storedAt time.Time
	ttl      time.Duration
}

// Store is a TTL keyed store. Expired entries behave as absent and are
// superseded in place by the next Set; nothing actively evicts them
// (the key space is bounded: one entry per symbol or category).
type Store[T any] struct {
	ttl time.Duration

	mu    sync.RWMutex
	items map[string]entry[T]
	now   func() time.Time // test hook
}

// New creates a Store whose entries are fresh for ttl by default.
func New[T any](ttl time.Duration) *Store[T] {
	return &Store[T]{
		ttl:   ttl,
		items: make(map[string]entry[T]),
		now:   time.Now,
	}
}

// Get returns the stored value while it is still fresh.
func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()
	if !ok || s.now().Sub(e.storedAt) >= e.ttl {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with the store's default TTL.
func (s *Store[T]) Set(key string, value T) {
	s.SetTTL(key, value, s.ttl)
}

// SetTTL stores value under key with an explicit TTL. The aggregate
// snapshot and per-provider entries warrant different freshness windows,
// so the override is per call rather than per store.
func (s *Store[T]) SetTTL(key string, value T, ttl time.Duration) {
	s.mu.Lock()
	s.items[key] = entry[T]{value: value, storedAt: s.now(), ttl: ttl}
	s.mu.Unlock()
}
