package alerts

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"sentinel/internal/clock"
	"sentinel/internal/domain"
	"sentinel/internal/rules"
)

// DefaultAlertCap bounds retained alerts per class.
const DefaultAlertCap = 1000

// BlockSink inserts one time-boxed IP block.
// Params: source IP and duration.
// Returns: absolute expiry of the block.
type BlockSink interface {
	Block(ipAddress string, duration time.Duration) time.Time
}

// NotifySink submits one best-effort alert notification.
// Params: created alert snapshot.
// Returns: none; delivery failures must never reach the caller.
type NotifySink interface {
	SubmitAlertNotification(alert domain.SecurityAlert)
}

// Manager owns alert creation, dedup, actions, and lifecycle.
// Params: bounded alert lists, open-alert dedup index, and action sinks.
// Returns: alert coordination for the rule engine and callers.
type Manager struct {
	logger   *slog.Logger
	clk      clock.Clock
	capacity int
	blocker  BlockSink
	notifier NotifySink

	mu       sync.Mutex
	security []domain.SecurityAlert
	perf     []domain.PerformanceAlert
	openKeys map[string]string
}

// NewManager creates alert manager.
// Params: logger, clock, per-class capacity (<=0 uses DefaultAlertCap),
// and optional block/notify sinks (nil disables the action).
// Returns: initialized manager.
func NewManager(logger *slog.Logger, clk clock.Clock, capacity int, blocker BlockSink, notifier NotifySink) *Manager {
	if capacity <= 0 {
		capacity = DefaultAlertCap
	}
	return &Manager{
		logger:   logger,
		clk:      clk,
		capacity: capacity,
		blocker:  blocker,
		notifier: notifier,
		openKeys: make(map[string]string),
	}
}

// CreateSecurity creates one security alert and executes its actions.
// Params: detector candidate.
// Returns: created or existing open alert and true only on creation;
// an open alert sharing the dedup key suppresses duplicates.
func (m *Manager) CreateSecurity(candidate rules.Candidate) (domain.SecurityAlert, bool) {
	now := m.clk.Now()
	alert := domain.SecurityAlert{
		ID:              uuid.NewString(),
		Type:            candidate.Type,
		Description:     candidate.Description,
		Severity:        candidate.Severity,
		UserID:          candidate.UserID,
		IPAddress:       candidate.IPAddress,
		RelatedEventIDs: append([]string(nil), candidate.RelatedEventIDs...),
		Timestamp:       now,
		Actions:         append([]domain.AlertAction(nil), candidate.Actions...),
	}

	m.mu.Lock()
	if candidate.DedupKey != "" {
		if existingID, open := m.openKeys[candidate.DedupKey]; open {
			existing, found := m.securityByIDLocked(existingID)
			m.mu.Unlock()
			if found {
				return existing, false
			}
			return domain.SecurityAlert{}, false
		}
		m.openKeys[candidate.DedupKey] = alert.ID
	}
	m.security = append(m.security, alert)
	m.enforceSecurityCapLocked()
	m.mu.Unlock()

	m.executeActions(alert, candidate.BlockDuration)
	return alert, true
}

// CreatePerformance creates one performance alert record.
// Params: threshold breach candidate.
// Returns: created alert; every breach produces a fresh record.
func (m *Manager) CreatePerformance(candidate rules.PerformanceCandidate) domain.PerformanceAlert {
	now := m.clk.Now()
	alert := domain.PerformanceAlert{
		ID:           uuid.NewString(),
		MetricName:   candidate.MetricName,
		Threshold:    candidate.Threshold,
		CurrentValue: candidate.CurrentValue,
		Severity:     candidate.Severity,
		Message:      candidate.Message,
		Timestamp:    now,
	}

	m.mu.Lock()
	m.perf = append(m.perf, alert)
	if len(m.perf) > m.capacity {
		m.perf = m.perf[len(m.perf)-m.capacity:]
	}
	m.mu.Unlock()

	m.logger.Warn("performance alert",
		"metric", alert.MetricName,
		"value", alert.CurrentValue,
		"threshold", alert.Threshold,
		"severity", string(alert.Severity),
	)
	return alert
}

// executeActions dispatches candidate actions after creation.
// Params: created alert and requested block duration.
// Returns: none; the log action always runs.
func (m *Manager) executeActions(alert domain.SecurityAlert, blockDuration time.Duration) {
	m.logger.Warn("security alert",
		"alert_id", alert.ID,
		"type", string(alert.Type),
		"severity", string(alert.Severity),
		"ip", alert.IPAddress,
		"description", alert.Description,
	)
	for _, action := range alert.Actions {
		switch action {
		case domain.ActionLog, domain.ActionAlert:
			// creation and the log line above already cover these
		case domain.ActionBlock:
			if m.blocker == nil || blockDuration <= 0 {
				continue
			}
			expiry := m.blocker.Block(alert.IPAddress, blockDuration)
			m.logger.Warn("ip blocked", "ip", alert.IPAddress, "until", expiry.Format(time.RFC3339))
		case domain.ActionNotify:
			if m.notifier == nil {
				continue
			}
			m.notifier.SubmitAlertNotification(alert)
		default:
			m.logger.Warn("unknown alert action skipped", "action", string(action), "alert_id", alert.ID)
		}
	}
}

// Resolve transitions one alert from open to resolved.
// Params: alert id and resolver identity.
// Returns: true on transition; false for unknown or already-resolved ids.
// The resolved state is terminal and resolved_at is stamped exactly once.
func (m *Manager) Resolve(alertID, resolvedBy string) bool {
	now := m.clk.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.security {
		if m.security[i].ID != alertID {
			continue
		}
		if m.security[i].Resolved {
			return false
		}
		m.security[i].Resolved = true
		m.security[i].ResolvedBy = resolvedBy
		resolvedAt := now
		m.security[i].ResolvedAt = &resolvedAt
		m.dropOpenKeyLocked(alertID)
		return true
	}
	for i := range m.perf {
		if m.perf[i].ID != alertID {
			continue
		}
		if m.perf[i].Resolved {
			return false
		}
		m.perf[i].Resolved = true
		return true
	}
	return false
}

// ActiveSecurity returns unresolved security alerts.
// Params: none.
// Returns: chronological snapshot copy.
func (m *Manager) ActiveSecurity() []domain.SecurityAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.SecurityAlert, 0)
	for _, alert := range m.security {
		if !alert.Resolved {
			out = append(out, alert)
		}
	}
	return out
}

// ActivePerformance returns unresolved performance alerts.
// Params: none.
// Returns: chronological snapshot copy.
func (m *Manager) ActivePerformance() []domain.PerformanceAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.PerformanceAlert, 0)
	for _, alert := range m.perf {
		if !alert.Resolved {
			out = append(out, alert)
		}
	}
	return out
}

// SecuritySince returns security alerts created at or after the cutoff.
// Params: period start.
// Returns: chronological snapshot copy including resolved alerts.
func (m *Manager) SecuritySince(since time.Time) []domain.SecurityAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.SecurityAlert, 0)
	for _, alert := range m.security {
		if !alert.Timestamp.Before(since) {
			out = append(out, alert)
		}
	}
	return out
}

// PerformanceSince returns performance alerts created at or after the cutoff.
// Params: period start.
// Returns: chronological snapshot copy including resolved alerts.
func (m *Manager) PerformanceSince(since time.Time) []domain.PerformanceAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.PerformanceAlert, 0)
	for _, alert := range m.perf {
		if !alert.Timestamp.Before(since) {
			out = append(out, alert)
		}
	}
	return out
}

// SecurityCount reports stored security alert count.
// Params: none.
// Returns: retained alerts including resolved ones.
func (m *Manager) SecurityCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.security)
}

// EvictOlderThan drops alerts created before the cutoff.
// Params: age cutoff timestamp.
// Returns: number of evicted alerts across both classes.
func (m *Manager) EvictOlderThan(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0

	keptSecurity := m.security[:0]
	for _, alert := range m.security {
		if alert.Timestamp.Before(cutoff) {
			m.dropOpenKeyLocked(alert.ID)
			evicted++
			continue
		}
		keptSecurity = append(keptSecurity, alert)
	}
	m.security = keptSecurity

	keptPerf := m.perf[:0]
	for _, alert := range m.perf {
		if alert.Timestamp.Before(cutoff) {
			evicted++
			continue
		}
		keptPerf = append(keptPerf, alert)
	}
	m.perf = keptPerf
	return evicted
}

// enforceSecurityCapLocked trims the security list to capacity.
// Params: manager lock must be held.
// Returns: resolved alerts are evicted before unresolved ones, oldest
// first within each class.
func (m *Manager) enforceSecurityCapLocked() {
	overflow := len(m.security) - m.capacity
	if overflow <= 0 {
		return
	}
	for i := 0; i < len(m.security) && overflow > 0; {
		if m.security[i].Resolved {
			m.security = append(m.security[:i], m.security[i+1:]...)
			overflow--
			continue
		}
		i++
	}
	for overflow > 0 {
		m.dropOpenKeyLocked(m.security[0].ID)
		m.security = m.security[1:]
		overflow--
	}
}

func (m *Manager) securityByIDLocked(alertID string) (domain.SecurityAlert, bool) {
	for _, alert := range m.security {
		if alert.ID == alertID {
			return alert, true
		}
	}
	return domain.SecurityAlert{}, false
}

func (m *Manager) dropOpenKeyLocked(alertID string) {
	for key, id := range m.openKeys {
		if id == alertID {
			delete(m.openKeys, key)
			return
		}
	}
}
