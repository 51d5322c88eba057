package persist

import (
	"context"
	"sync"

	"sentinel/internal/domain"
)

// NoopSink discards every record. Used when persistence is disabled.
type NoopSink struct{}

// PersistSecurityEvent discards the event.
func (NoopSink) PersistSecurityEvent(context.Context, domain.SecurityEvent) error { return nil }

// PersistAlertNotification discards the record.
func (NoopSink) PersistAlertNotification(context.Context, domain.SecurityAlert) error { return nil }

// Close is a no-op.
func (NoopSink) Close() error { return nil }

// MemorySink retains records in memory for tests and single-process runs.
type MemorySink struct {
	mu            sync.Mutex
	events        []domain.SecurityEvent
	notifications []domain.SecurityAlert
}

// PersistSecurityEvent appends the event to the in-memory archive.
// Params: context (unused) and event payload.
// Returns: nil.
func (s *MemorySink) PersistSecurityEvent(_ context.Context, event domain.SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// PersistAlertNotification appends the record to the in-memory archive.
// Params: context (unused) and alert payload.
// Returns: nil.
func (s *MemorySink) PersistAlertNotification(_ context.Context, alert domain.SecurityAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, alert)
	return nil
}

// Close is a no-op.
func (s *MemorySink) Close() error { return nil }

// Events returns a snapshot of archived events.
// Params: none.
// Returns: copy in arrival order.
func (s *MemorySink) Events() []domain.SecurityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.SecurityEvent(nil), s.events...)
}

// Notifications returns a snapshot of archived notification records.
// Params: none.
// Returns: copy in arrival order.
func (s *MemorySink) Notifications() []domain.SecurityAlert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.SecurityAlert(nil), s.notifications...)
}
