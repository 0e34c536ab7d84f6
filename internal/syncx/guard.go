// Package syncx provides extended synchronization primitives
package syncx

import "sync"

// Guard wraps a value with an RWMutex so that a single writer and any number of readers
// can share it.
type Guard[T any] struct {
	mu    sync.RWMutex
	value T
}

// NewGuard creates a guarded value.
func NewGuard[T any](initial T) *Guard[T] {
	return &Guard[T]{value: initial}
}

// Load returns a copy of the value.
func (g *Guard[T]) Load() T {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.value
}

// Store replaces the value.
func (g *Guard[T]) Store(v T) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = v
}

// Update replaces the value with fn(old) under the write lock and returns the new value.
// fn runs while the lock is held, so side effects in fn are serialized with other writers.
func (g *Guard[T]) Update(fn func(T) T) T {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = fn(g.value)
	return g.value
}
