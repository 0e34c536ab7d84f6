// Package eventlog keeps recent monitoring status events for display.
package eventlog

import (
	"fmt"
	"sync"
	"time"
)

// Kind classifies an event.
type Kind string

const (
	KindStarted   Kind = "started"
	KindStopped   Kind = "stopped"
	KindDeath     Kind = "death"
	KindHeartbeat Kind = "heartbeat"
	KindReset     Kind = "reset"
	KindError     Kind = "error"
	KindInfo      Kind = "info"
)

// Event is one status update from the monitor.
type Event struct {
	Kind    Kind
	Count   int
	Message string
	Time    time.Time
}

// String formats the event as a log line: "[15:04:05] message".
func (e Event) String() string {
	return fmt.Sprintf("[%s] %s", e.Time.Format("15:04:05"), e.Message)
}

// Store is a bounded in-memory event log with a non-blocking subscriber channel.
type Store struct {
	mu       sync.RWMutex
	entries  []Event
	maxSize  int
	eventsCh chan Event
}

// NewStore creates a store keeping maxEntries events.
func NewStore(maxEntries, eventBuffer int) *Store {
	return &Store{
		entries:  make([]Event, 0, maxEntries),
		maxSize:  maxEntries,
		eventsCh: make(chan Event, eventBuffer),
	}
}

// Publish stores e and offers it to the subscriber. A zero Time is set to now.
func (s *Store) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	s.Add(e)
	s.Emit(e)
}

// Add stores an event, dropping the oldest beyond capacity.
func (s *Store) Add(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, e)
	if len(s.entries) > s.maxSize {
		s.entries = s.entries[len(s.entries)-s.maxSize:]
	}
}

// Recent returns up to n most recent events, oldest first.
func (s *Store) Recent(n int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n > len(s.entries) {
		n = len(s.entries)
	}
	result := make([]Event, n)
	copy(result, s.entries[len(s.entries)-n:])
	return result
}

// Len returns the number of stored events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Events returns the channel for published events.
func (s *Store) Events() <-chan Event {
	return s.eventsCh
}

// Emit sends an event (non-blocking).
func (s *Store) Emit(e Event) {
	select {
	case s.eventsCh <- e:
	default:
	}
}
