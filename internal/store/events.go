package store

import (
	"sync"
	"time"

	"sentinel/internal/domain"
)

// DefaultEventCap bounds the global security event buffer.
const DefaultEventCap = 10000

// EventStore keeps one bounded chronological security event buffer.
// Params: global capacity and in-memory ring.
// Returns: append-only store with silent oldest-first eviction.
type EventStore struct {
	mu    sync.RWMutex
	buf   []domain.SecurityEvent
	head  int
	count int
}

// NewEventStore creates in-memory event store.
// Params: global capacity (defaults to DefaultEventCap when <=0).
// Returns: initialized store.
func NewEventStore(capacity int) *EventStore {
	if capacity <= 0 {
		capacity = DefaultEventCap
	}
	return &EventStore{buf: make([]domain.SecurityEvent, capacity)}
}

// Append stores one event, overwriting the oldest at capacity.
// Params: validated event.
// Returns: none; eviction is silent steady-state behavior.
func (s *EventStore) Append(event domain.SecurityEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	index := (s.head + s.count) % len(s.buf)
	s.buf[index] = event
	if s.count < len(s.buf) {
		s.count++
		return
	}
	s.head = (s.head + 1) % len(s.buf)
}

// Len reports live event count.
// Params: none.
// Returns: stored event count.
func (s *EventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Query returns events matching the filter within [since, until).
// Params: half-open time range and optional per-event filter (nil keeps all).
// Returns: chronological snapshot copy.
func (s *EventStore) Query(since, until time.Time, keep func(domain.SecurityEvent) bool) []domain.SecurityEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SecurityEvent, 0)
	for i := 0; i < s.count; i++ {
		event := s.buf[(s.head+i)%len(s.buf)]
		if !inRange(event.Timestamp, since, until) {
			continue
		}
		if keep != nil && !keep(event) {
			continue
		}
		out = append(out, event)
	}
	return out
}

// CountWhere counts events matching the filter within [since, until).
// Params: half-open time range and per-event filter.
// Returns: matching event count without snapshot allocation.
func (s *EventStore) CountWhere(since, until time.Time, keep func(domain.SecurityEvent) bool) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := 0
	for i := 0; i < s.count; i++ {
		event := s.buf[(s.head+i)%len(s.buf)]
		if !inRange(event.Timestamp, since, until) {
			continue
		}
		if keep != nil && !keep(event) {
			continue
		}
		matched++
	}
	return matched
}

// EvictOlderThan drops events recorded before the cutoff.
// Params: age cutoff timestamp.
// Returns: number of evicted events.
func (s *EventStore) EvictOlderThan(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for s.count > 0 && s.buf[s.head].Timestamp.Before(cutoff) {
		s.buf[s.head] = domain.SecurityEvent{}
		s.head = (s.head + 1) % len(s.buf)
		s.count--
		evicted++
	}
	return evicted
}
