package persist

import (
	"context"
	"log/slog"
	"sync"

	"sentinel/internal/domain"
)

// Sink persists events and alert notifications durably.
// Params: context and payload per call.
// Returns: persistence errors; callers above the queue never see them.
type Sink interface {
	PersistSecurityEvent(ctx context.Context, event domain.SecurityEvent) error
	PersistAlertNotification(ctx context.Context, alert domain.SecurityAlert) error
	Close() error
}

type jobKind int

const (
	jobEvent jobKind = iota
	jobNotification
)

type job struct {
	kind  jobKind
	event domain.SecurityEvent
	alert domain.SecurityAlert
}

// Queue decouples callers from the persistence sink.
// Submissions never block and never fail; overflow drops the payload
// with a log line and failures stay inside the worker.
type Queue struct {
	logger *slog.Logger
	sink   Sink
	jobs   chan job
	done   chan struct{}

	closeOnce sync.Once
}

// NewQueue creates persistence queue and starts its worker.
// Params: logger, backing sink, and buffer size (<=0 uses 1024).
// Returns: running queue.
func NewQueue(logger *slog.Logger, sink Sink, size int) *Queue {
	if size <= 0 {
		size = 1024
	}
	q := &Queue{
		logger: logger,
		sink:   sink,
		jobs:   make(chan job, size),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

// SubmitSecurityEvent enqueues one event for persistence.
// Params: event snapshot.
// Returns: none; a full queue drops the event.
func (q *Queue) SubmitSecurityEvent(event domain.SecurityEvent) {
	select {
	case q.jobs <- job{kind: jobEvent, event: event}:
	default:
		q.logger.Warn("persist queue full, event dropped", "event_id", event.ID, "type", string(event.Type))
	}
}

// SubmitAlertNotification enqueues one alert notification record.
// Params: alert snapshot.
// Returns: none; a full queue drops the record.
func (q *Queue) SubmitAlertNotification(alert domain.SecurityAlert) {
	select {
	case q.jobs <- job{kind: jobNotification, alert: alert}:
	default:
		q.logger.Warn("persist queue full, notification dropped", "alert_id", alert.ID, "type", string(alert.Type))
	}
}

// Close stops the worker after draining queued jobs.
// Params: none.
// Returns: sink close error.
func (q *Queue) Close() error {
	q.closeOnce.Do(func() {
		close(q.jobs)
		<-q.done
	})
	return q.sink.Close()
}

func (q *Queue) run() {
	defer close(q.done)
	for j := range q.jobs {
		switch j.kind {
		case jobEvent:
			if err := q.sink.PersistSecurityEvent(context.Background(), j.event); err != nil {
				q.logger.Error("persist event failed", "event_id", j.event.ID, "error", err.Error())
			}
		case jobNotification:
			if err := q.sink.PersistAlertNotification(context.Background(), j.alert); err != nil {
				q.logger.Error("persist notification failed", "alert_id", j.alert.ID, "error", err.Error())
			}
		}
	}
}
