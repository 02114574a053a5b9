package feature

import "sync"

// Synced guards a value shared between the test execution path and
// background readers. It only offers reads and locked updates.
type Synced[T any] struct {
	mu    sync.Mutex
	value T
}

func NewSynced[T any](value T) *Synced[T] {
	return &Synced[T]{value: value}
}

func (s *Synced[T]) Value() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Update applies fn under the lock.
func (s *Synced[T]) Update(fn func(*T)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.value)
}

// CheckAndUpdate applies fn under the lock and returns its verdict, so a
// check and the update it guards happen in one critical section.
func (s *Synced[T]) CheckAndUpdate(fn func(*T) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.value)
}
