package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"sentinel/internal/config"
	"sentinel/internal/domain"
)

const archiveStreamMaxAge = 30 * 24 * time.Hour

// NATSSink publishes persistence records into a JetStream stream.
// Params: NATS connection and per-record subjects.
// Returns: durable sink implementation.
type NATSSink struct {
	nc            *nats.Conn
	js            nats.JetStreamContext
	eventSubject  string
	notifySubject string
}

// NewNATSSink connects to NATS and ensures the archive stream exists.
// Params: persist section config.
// Returns: initialized sink or setup error.
func NewNATSSink(cfg config.PersistConfig) (*NATSSink, error) {
	nc, err := nats.Connect(strings.Join(cfg.URL, ","))
	if err != nil {
		return nil, fmt.Errorf("connect persist nats: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init for persist: %w", err)
	}
	if err := ensureStream(js, cfg.Stream, []string{cfg.EventSubject, cfg.NotificationSubject}); err != nil {
		nc.Close()
		return nil, err
	}
	return &NATSSink{
		nc:            nc,
		js:            js,
		eventSubject:  cfg.EventSubject,
		notifySubject: cfg.NotificationSubject,
	}, nil
}

// PersistSecurityEvent publishes one event to the archive stream.
// Params: context and event payload.
// Returns: marshal or publish error.
func (s *NATSSink) PersistSecurityEvent(ctx context.Context, event domain.SecurityEvent) error {
	return s.publish(ctx, s.eventSubject, event.ID, event)
}

// PersistAlertNotification publishes one notification record.
// Params: context and alert payload.
// Returns: marshal or publish error.
func (s *NATSSink) PersistAlertNotification(ctx context.Context, alert domain.SecurityAlert) error {
	return s.publish(ctx, s.notifySubject, alert.ID, alert)
}

// Close closes sink NATS connection.
// Params: none.
// Returns: nil after connection close.
func (s *NATSSink) Close() error {
	if s == nil || s.nc == nil {
		return nil
	}
	s.nc.Close()
	return nil
}

func (s *NATSSink) publish(ctx context.Context, subject, msgID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal persist record: %w", err)
	}
	msg := nats.NewMsg(subject)
	msg.Data = body
	if strings.TrimSpace(msgID) != "" {
		msg.Header.Set("Nats-Msg-Id", strings.TrimSpace(msgID))
	}
	if _, err := s.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish persist record to %q: %w", subject, err)
	}
	return nil
}

// ensureStream ensures the archive stream exists with provided subjects.
// Params: JetStream context, stream name, and bound subjects.
// Returns: stream create/lookup error.
func ensureStream(js nats.JetStreamContext, streamName string, subjects []string) error {
	if _, err := js.StreamInfo(streamName); err == nil {
		return nil
	} else if err != nats.ErrStreamNotFound && !strings.Contains(strings.ToLower(err.Error()), "stream not found") {
		return fmt.Errorf("stream info %q: %w", streamName, err)
	}

	_, err := js.AddStream(&nats.StreamConfig{
		Name:      streamName,
		Subjects:  subjects,
		Retention: nats.LimitsPolicy,
		Storage:   nats.FileStorage,
		MaxAge:    archiveStreamMaxAge,
	})
	if err != nil {
		return fmt.Errorf("create stream %q: %w", streamName, err)
	}
	return nil
}
