package executor

import (
	"sync"
	"time"
)

// Scheduler runs delayed one-shot callbacks, at most one pending per key.
type Scheduler struct {
	mu      sync.Mutex
	pending map[string]*scheduled
	nextID  uint64
	closed  bool
}

type scheduled struct {
	id    uint64
	timer *time.Timer
}

// NewScheduler creates a new scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		pending: make(map[string]*scheduled),
	}
}

// Schedule runs fn after delay, replacing any callback pending under key.
func (s *Scheduler) Schedule(key string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.cancelLocked(key)

	s.nextID++
	entry := &scheduled{id: s.nextID}
	entry.timer = time.AfterFunc(delay, func() { s.fire(key, entry.id, fn) })
	s.pending[key] = entry
}

// fire runs fn only if the entry is still the one registered under key;
// a timer that lost the race with Cancel or Schedule does nothing.
func (s *Scheduler) fire(key string, id uint64, fn func()) {
	s.mu.Lock()
	entry, ok := s.pending[key]
	if !ok || entry.id != id {
		s.mu.Unlock()
		return
	}
	delete(s.pending, key)
	s.mu.Unlock()

	fn()
}

// Cancel removes the callback pending under key. Returns true if one was pending.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked(key)
}

func (s *Scheduler) cancelLocked(key string) bool {
	entry, ok := s.pending[key]
	if !ok {
		return false
	}
	entry.timer.Stop()
	delete(s.pending, key)
	return true
}

// CancelAll removes every pending callback.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.pending {
		s.cancelLocked(key)
	}
}

// Pending reports whether a callback is pending under key.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}

// Close cancels everything and rejects further Schedule calls.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.pending {
		s.cancelLocked(key)
	}
	s.closed = true
}
