package presence

import (
	"sync"
	"time"
)

// Suppressor remembers keys for a fixed window. Items are mapped to keys by the
// extractor passed to NewSuppressor.
type Suppressor[T any, K comparable] struct {
	mu     sync.Mutex
	seen   map[K]time.Time // key -> expiry
	window time.Duration
	key    func(T) K
	now    func() time.Time
}

func NewSuppressor[T any, K comparable](window time.Duration, key func(T) K, now func() time.Time) *Suppressor[T, K] {
	if now == nil {
		now = time.Now
	}
	return &Suppressor[T, K]{
		seen:   make(map[K]time.Time),
		window: window,
		key:    key,
		now:    now,
	}
}

// Allow reports whether item is the first with its key inside the window and,
// if so, starts a new window for it. A suppressed item does not extend the window.
func (s *Suppressor[T, K]) Allow(item T) bool {
	k := s.key(item)
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if exp, ok := s.seen[k]; ok && now.Before(exp) {
		return false
	}
	s.seen[k] = now.Add(s.window)
	return true
}

// Touch (re)starts the window for item unconditionally.
func (s *Suppressor[T, K]) Touch(item T) {
	k := s.key(item)
	s.mu.Lock()
	s.seen[k] = s.now().Add(s.window)
	s.mu.Unlock()
}

// Active reports whether item's key is inside its window.
func (s *Suppressor[T, K]) Active(item T) bool {
	k := s.key(item)
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.seen[k]
	return ok && s.now().Before(exp)
}

// Sweep drops expired keys and returns how many were removed.
func (s *Suppressor[T, K]) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for k, exp := range s.seen {
		if !now.Before(exp) {
			delete(s.seen, k)
			removed++
		}
	}
	return removed
}

// Snapshot copies the live keys with their expiry times.
func (s *Suppressor[T, K]) Snapshot() map[K]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	out := make(map[K]time.Time, len(s.seen))
	for k, exp := range s.seen {
		if now.Before(exp) {
			out[k] = exp
		}
	}
	return out
}

// Restore loads keys saved by Snapshot, skipping any that already expired.
func (s *Suppressor[T, K]) Restore(saved map[K]time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, exp := range saved {
		if now.Before(exp) {
			s.seen[k] = exp
		}
	}
}

func (s *Suppressor[T, K]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
