package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SecurityEventType identifies one auth/access occurrence kind.
// Params: constants for the supported event taxonomy.
// Returns: normalized type used by detectors and reports.
type SecurityEventType string

const (
	// EventLoginAttempt marks a login attempt before its outcome is known.
	EventLoginAttempt SecurityEventType = "login_attempt"
	// EventLoginSuccess marks a successful authentication.
	EventLoginSuccess SecurityEventType = "login_success"
	// EventLoginFailure marks a failed authentication.
	EventLoginFailure SecurityEventType = "login_failure"
	// EventPermissionDenied marks a rejected authorization check.
	EventPermissionDenied SecurityEventType = "permission_denied"
	// EventSuspiciousActivity marks caller-flagged anomalies.
	EventSuspiciousActivity SecurityEventType = "suspicious_activity"
	// EventDataAccess marks a read of guarded data.
	EventDataAccess SecurityEventType = "data_access"
	// EventAdminAction marks a privileged administrative operation.
	EventAdminAction SecurityEventType = "admin_action"
)

// IsValid reports whether event type is supported.
// Params: none.
// Returns: true for known types.
func (t SecurityEventType) IsValid() bool {
	switch t {
	case EventLoginAttempt, EventLoginSuccess, EventLoginFailure,
		EventPermissionDenied, EventSuspiciousActivity, EventDataAccess, EventAdminAction:
		return true
	default:
		return false
	}
}

// Location holds resolved geo attribution for one event source.
// Params: country code and optional city.
// Returns: geo context consumed by the location detector.
type Location struct {
	Country string `json:"country"`
	City    string `json:"city,omitempty"`
}

// SecurityEvent is one timestamped auth/access record.
// Params: actor identity, source address, and free-form details.
// Returns: immutable append-only record in the event buffer.
type SecurityEvent struct {
	ID        string            `json:"id"`
	Type      SecurityEventType `json:"type"`
	UserID    string            `json:"user_id,omitempty"`
	IPAddress string            `json:"ip_address"`
	UserAgent string            `json:"user_agent,omitempty"`
	Details   map[string]any    `json:"details,omitempty"`
	Severity  Severity          `json:"severity"`
	Timestamp time.Time         `json:"timestamp"`
	Location  *Location         `json:"location,omitempty"`
}

// Validate validates one security event against the ingest contract.
// Params: event fields parsed from transport or built by callers.
// Returns: validation error when contract is violated.
func (e SecurityEvent) Validate() error {
	if !e.Type.IsValid() {
		return fmt.Errorf("unsupported type %q", e.Type)
	}
	if strings.TrimSpace(e.IPAddress) == "" {
		return errors.New("ip_address is required")
	}
	if !e.Severity.IsValid() {
		return fmt.Errorf("unsupported severity %q", e.Severity)
	}
	return nil
}

// DecodeSecurityEvent decodes and validates one event payload.
// Params: JSON document bytes.
// Returns: validated event or decode/validation error.
func DecodeSecurityEvent(raw []byte) (SecurityEvent, error) {
	var event SecurityEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return SecurityEvent{}, fmt.Errorf("decode security event: %w", err)
	}
	if err := event.Validate(); err != nil {
		return SecurityEvent{}, err
	}
	return event, nil
}

// DetailString reads one details value as string.
// Params: details key.
// Returns: string value and presence flag; non-string values report absent.
func (e SecurityEvent) DetailString(key string) (string, bool) {
	if e.Details == nil {
		return "", false
	}
	value, ok := e.Details[key]
	if !ok {
		return "", false
	}
	text, ok := value.(string)
	return text, ok
}

// DetailBool reads one details value as bool.
// Params: details key.
// Returns: bool value and presence flag; non-bool values report absent.
func (e SecurityEvent) DetailBool(key string) (bool, bool) {
	if e.Details == nil {
		return false, false
	}
	value, ok := e.Details[key]
	if !ok {
		return false, false
	}
	flag, ok := value.(bool)
	return flag, ok
}

// SecurityAlertType identifies one detected condition kind.
// Params: constants for built-in detector outputs.
// Returns: normalized alert type for dedup and reporting.
type SecurityAlertType string

const (
	// AlertBruteForce marks repeated login failures from one source.
	AlertBruteForce SecurityAlertType = "brute_force"
	// AlertSuspiciousLocation marks logins outside the allowed geography.
	AlertSuspiciousLocation SecurityAlertType = "suspicious_location"
	// AlertPrivilegeEscalation marks unexpected role changes.
	AlertPrivilegeEscalation SecurityAlertType = "privilege_escalation"
	// AlertDataBreach marks bulk sensitive-data access.
	AlertDataBreach SecurityAlertType = "data_breach"
	// AlertMaliciousRequest marks injection/XSS signature matches.
	AlertMaliciousRequest SecurityAlertType = "malicious_request"
)

// AlertAction identifies one configured response to an alert.
// Params: constants for log/alert/block/notify responses.
// Returns: action token dispatched by the alert manager.
type AlertAction string

const (
	// ActionLog writes a structured record; always executed.
	ActionLog AlertAction = "log"
	// ActionAlert records the alert without side effects.
	ActionAlert AlertAction = "alert"
	// ActionBlock inserts the source IP into the block list.
	ActionBlock AlertAction = "block"
	// ActionNotify submits a best-effort external notification.
	ActionNotify AlertAction = "notify"
)

// SecurityAlert is one durable detected-condition record.
// Params: detection context, related event ids, and configured actions.
// Returns: alert with open-to-resolved terminal lifecycle.
type SecurityAlert struct {
	ID              string            `json:"id"`
	Type            SecurityAlertType `json:"type"`
	Description     string            `json:"description"`
	Severity        Severity          `json:"severity"`
	UserID          string            `json:"user_id,omitempty"`
	IPAddress       string            `json:"ip_address"`
	RelatedEventIDs []string          `json:"related_event_ids"`
	Timestamp       time.Time         `json:"timestamp"`
	Resolved        bool              `json:"resolved"`
	ResolvedBy      string            `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time        `json:"resolved_at,omitempty"`
	Actions         []AlertAction     `json:"actions"`
}
