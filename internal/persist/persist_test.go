package persist

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"sentinel/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestQueueDrainsToSinkOnClose(t *testing.T) {
	t.Parallel()

	sink := &MemorySink{}
	queue := NewQueue(discardLogger(), sink, 16)

	for i := 0; i < 5; i++ {
		queue.SubmitSecurityEvent(domain.SecurityEvent{
			ID:        fmt.Sprintf("evt-%d", i),
			Type:      domain.EventLoginFailure,
			IPAddress: "198.51.100.9",
			Severity:  domain.SeverityMedium,
			Timestamp: time.Unix(1_700_000_000, 0),
		})
	}
	queue.SubmitAlertNotification(domain.SecurityAlert{
		ID:        "alert-1",
		Type:      domain.AlertBruteForce,
		Severity:  domain.SeverityHigh,
		IPAddress: "198.51.100.9",
	})

	if err := queue.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	if got := len(sink.Events()); got != 5 {
		t.Fatalf("expected 5 archived events, got %d", got)
	}
	notifications := sink.Notifications()
	if len(notifications) != 1 || notifications[0].ID != "alert-1" {
		t.Fatalf("unexpected archived notifications %v", notifications)
	}
}

func TestQueueCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	queue := NewQueue(discardLogger(), &MemorySink{}, 4)
	if err := queue.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if err := queue.Close(); err != nil {
		t.Fatalf("unexpected second close error: %v", err)
	}
}

// blockingSink parks the worker until released so the queue can fill up.
type blockingSink struct {
	release chan struct{}
	MemorySink
}

func (s *blockingSink) PersistSecurityEvent(ctx context.Context, event domain.SecurityEvent) error {
	<-s.release
	return s.MemorySink.PersistSecurityEvent(ctx, event)
}

func TestQueueOverflowDropsWithoutBlocking(t *testing.T) {
	t.Parallel()

	sink := &blockingSink{release: make(chan struct{})}
	queue := NewQueue(discardLogger(), sink, 2)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			queue.SubmitSecurityEvent(domain.SecurityEvent{
				ID:        fmt.Sprintf("evt-%d", i),
				Type:      domain.EventLoginFailure,
				IPAddress: "198.51.100.9",
				Severity:  domain.SeverityLow,
			})
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("expected submissions to never block on a full queue")
	}

	close(sink.release)
	if err := queue.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if got := len(sink.Events()); got > 50 || got < 1 {
		t.Fatalf("unexpected archived event count %d", got)
	}
}

func TestNoopSinkAcceptsEverything(t *testing.T) {
	t.Parallel()

	sink := NoopSink{}
	if err := sink.PersistSecurityEvent(context.Background(), domain.SecurityEvent{ID: "evt-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sink.PersistAlertNotification(context.Background(), domain.SecurityAlert{ID: "alert-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
}
