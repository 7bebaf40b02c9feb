// Package cache holds small in-memory caches owned by the readers that use them.
package cache

import (
	"sync"
	"time"
)

// Slot keeps one value and the time it was stored.
// It is safe for concurrent use.
type Slot[T any] struct {
	mu        sync.RWMutex
	ttl       time.Duration
	value     T
	fetchedAt time.Time
	populated bool
}

// NewSlot creates a slot whose value is fresh for ttl after each Store.
func NewSlot[T any](ttl time.Duration) *Slot[T] {
	return &Slot[T]{ttl: ttl}
}

// Fresh returns the value if one was stored less than ttl before now.
func (s *Slot[T]) Fresh(now time.Time) (T, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.populated || now.Sub(s.fetchedAt) >= s.ttl {
		var zero T
		return zero, time.Time{}, false
	}
	return s.value, s.fetchedAt, true
}

// Last returns the most recently stored value regardless of age.
func (s *Slot[T]) Last() (T, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.value, s.fetchedAt, s.populated
}

// Store overwrites the value and its timestamp.
func (s *Slot[T]) Store(value T, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.value = value
	s.fetchedAt = at
	s.populated = true
}

// TTL returns the freshness window.
func (s *Slot[T]) TTL() time.Duration {
	return s.ttl
}
