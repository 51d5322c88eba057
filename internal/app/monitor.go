package app

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"sentinel/internal/alerts"
	"sentinel/internal/blocklist"
	"sentinel/internal/clock"
	"sentinel/internal/config"
	"sentinel/internal/domain"
	"sentinel/internal/ratelimit"
	"sentinel/internal/report"
	"sentinel/internal/rules"
	"sentinel/internal/store"
)

// Archiver submits records for fire-and-forget persistence.
// Params: event or alert snapshot per call.
// Returns: none; submission never blocks and never fails the caller.
type Archiver interface {
	SubmitSecurityEvent(event domain.SecurityEvent)
	SubmitAlertNotification(alert domain.SecurityAlert)
}

// Monitor is the telemetry and security-alerting facade.
// One instance owns the stores, rule engine, alert manager, and block
// list; callers hold a reference instead of sharing process globals.
type Monitor struct {
	logger   *slog.Logger
	clk      clock.Clock
	metrics  *store.MetricStore
	events   *store.EventStore
	tracker  *ratelimit.Tracker
	blocks   *blocklist.List
	engine   *rules.Engine
	alertMgr *alerts.Manager
	reporter *report.Reporter
	archiver Archiver

	thresholdMu sync.RWMutex
	thresholds  config.Thresholds
}

// NewMonitor creates monitor from a config snapshot.
// Params: config, logger, clock, optional archiver, and optional
// notification sink for the notify alert action.
// Returns: initialized monitor with rules loaded.
func NewMonitor(cfg config.Config, logger *slog.Logger, clk clock.Clock, archiver Archiver, notifier alerts.NotifySink) *Monitor {
	metrics := store.NewMetricStore(store.DefaultMetricCap)
	events := store.NewEventStore(store.DefaultEventCap)
	tracker := ratelimit.NewTracker(clk)
	blocks := blocklist.New(clk)

	engine := rules.New(logger,
		rules.NewBruteForce(tracker),
		rules.NewGeoAnomaly(),
		rules.NewPatternDetection(),
		rules.NewBehavior(events, clk),
	)
	engine.SetRules(cfg.Rule)

	monitor := &Monitor{
		logger:     logger,
		clk:        clk,
		metrics:    metrics,
		events:     events,
		tracker:    tracker,
		blocks:     blocks,
		engine:     engine,
		reporter:   report.NewReporter(clk, metrics, events),
		archiver:   archiver,
		thresholds: cfg.Thresholds,
	}
	monitor.alertMgr = alerts.NewManager(logger, clk, alerts.DefaultAlertCap, blocks, notifySinkFor(archiver, notifier))
	return monitor
}

// notifySinkFor fans the notify action out to archive and channels.
// Params: optional archiver and optional channel sink.
// Returns: combined sink or nil when both are absent.
func notifySinkFor(archiver Archiver, notifier alerts.NotifySink) alerts.NotifySink {
	var sinks []alerts.NotifySink
	if archiver != nil {
		sinks = append(sinks, archiver)
	}
	if notifier != nil {
		sinks = append(sinks, notifier)
	}
	switch len(sinks) {
	case 0:
		return nil
	case 1:
		return sinks[0]
	default:
		return notifyFanout(sinks)
	}
}

type notifyFanout []alerts.NotifySink

func (f notifyFanout) SubmitAlertNotification(alert domain.SecurityAlert) {
	for _, sink := range f {
		sink.SubmitAlertNotification(alert)
	}
}

// RecordMetric records one observation and evaluates thresholds.
// Params: metric name, value, unit, category, and optional metadata.
// Returns: assigned metric id; invalid input is logged and dropped.
func (m *Monitor) RecordMetric(name string, value float64, unit string, category domain.MetricCategory, metadata map[string]string) string {
	metric := domain.Metric{
		ID:        uuid.NewString(),
		Name:      name,
		Value:     value,
		Unit:      unit,
		Category:  category,
		Timestamp: m.clk.Now(),
		Metadata:  metadata,
	}
	if err := metric.Validate(); err != nil {
		m.logger.Warn("metric dropped", "name", name, "error", err.Error())
		return ""
	}
	m.recordMetric(metric)
	return metric.ID
}

// RecordSystemMetric records one host observation under the system category.
// Params: metric name, sampled value, and unit.
// Returns: none.
func (m *Monitor) RecordSystemMetric(name string, value float64, unit string) {
	m.RecordMetric(name, value, unit, domain.CategorySystem, nil)
}

// PushMetric accepts one decoded metric from ingest interfaces.
// Params: validated metric; missing id/timestamp are assigned.
// Returns: nil; ingestion of a stored metric cannot fail.
func (m *Monitor) PushMetric(metric domain.Metric) error {
	if metric.ID == "" {
		metric.ID = uuid.NewString()
	}
	if metric.Timestamp.IsZero() {
		metric.Timestamp = m.clk.Now()
	}
	m.recordMetric(metric)
	return nil
}

// recordMetric appends the metric and raises threshold alerts.
// Params: validated metric.
// Returns: none; evaluation runs before the caller regains control.
func (m *Monitor) recordMetric(metric domain.Metric) {
	m.metrics.Record(metric)
	if candidate, breached := rules.EvaluateThreshold(metric, m.Thresholds()); breached {
		m.alertMgr.CreatePerformance(candidate)
	}
}

// Measure times one unit of work and records the elapsed metric.
// Params: metric name, category, wrapped function, and optional metadata.
// Returns: the wrapped function's error unchanged; the metric records
// success or failure either way.
func (m *Monitor) Measure(name string, category domain.MetricCategory, fn func() error, metadata map[string]string) error {
	start := m.clk.Now()
	err := fn()
	elapsed := m.clk.Now().Sub(start)

	tagged := make(map[string]string, len(metadata)+2)
	for key, value := range metadata {
		tagged[key] = value
	}
	if err != nil {
		tagged["success"] = "false"
		tagged["error"] = err.Error()
	} else {
		tagged["success"] = "true"
	}
	m.RecordMetric(name, float64(elapsed.Milliseconds()), "ms", category, tagged)
	return err
}

// LogSecurityEvent records one security event and runs detection.
// Params: event type, optional user, source ip, user agent, details,
// severity, and optional location.
// Returns: assigned event id or validation error.
func (m *Monitor) LogSecurityEvent(
	eventType domain.SecurityEventType,
	userID, ipAddress, userAgent string,
	details map[string]any,
	severity domain.Severity,
	location *domain.Location,
) (string, error) {
	event := domain.SecurityEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Details:   details,
		Severity:  severity,
		Timestamp: m.clk.Now(),
		Location:  location,
	}
	if err := event.Validate(); err != nil {
		return "", err
	}
	m.processSecurityEvent(event)
	return event.ID, nil
}

// PushSecurityEvent accepts one decoded event from ingest interfaces.
// Params: validated event; missing id/timestamp are assigned.
// Returns: nil; ingestion of a stored event cannot fail.
func (m *Monitor) PushSecurityEvent(event domain.SecurityEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = m.clk.Now()
	}
	m.processSecurityEvent(event)
	return nil
}

// processSecurityEvent appends, archives, and evaluates one event.
// Params: validated event.
// Returns: none; the event is fully analyzed before return.
func (m *Monitor) processSecurityEvent(event domain.SecurityEvent) {
	m.events.Append(event)
	if m.archiver != nil {
		m.archiver.SubmitSecurityEvent(event)
	}
	for _, candidate := range m.engine.Evaluate(event) {
		if len(candidate.RelatedEventIDs) == 0 {
			candidate.RelatedEventIDs = []string{event.ID}
		}
		m.alertMgr.CreateSecurity(candidate)
	}
}

// IsIPBlocked reports whether a source IP is currently blocked.
// Params: source IP string.
// Returns: true while an unexpired block entry exists.
func (m *Monitor) IsIPBlocked(ipAddress string) bool {
	return m.blocks.IsBlocked(ipAddress)
}

// UnblockIP removes one block entry before its natural expiry.
// Params: source IP string.
// Returns: true when an entry was removed.
func (m *Monitor) UnblockIP(ipAddress string) bool {
	return m.blocks.Unblock(ipAddress)
}

// GetActiveAlerts returns unresolved security alerts.
// Params: none.
// Returns: chronological snapshot copy.
func (m *Monitor) GetActiveAlerts() []domain.SecurityAlert {
	return m.alertMgr.ActiveSecurity()
}

// ActivePerformanceAlerts returns unresolved performance alerts.
// Params: none.
// Returns: chronological snapshot copy.
func (m *Monitor) ActivePerformanceAlerts() []domain.PerformanceAlert {
	return m.alertMgr.ActivePerformance()
}

// ResolveAlert transitions one alert to its terminal resolved state.
// Params: alert id and resolver identity.
// Returns: true on transition; false for unknown or resolved ids.
func (m *Monitor) ResolveAlert(alertID, resolvedBy string) bool {
	return m.alertMgr.Resolve(alertID, resolvedBy)
}

// GeneratePerformanceReport builds the performance snapshot for a period.
// Params: report period.
// Returns: report or unknown-period error.
func (m *Monitor) GeneratePerformanceReport(period report.Period) (report.PerformanceReport, error) {
	window, ok := period.Duration()
	if !ok {
		return m.reporter.Performance(period, "", 0, 0)
	}
	since := m.clk.Now().Add(-window)
	alertCount := len(m.alertMgr.PerformanceSince(since))
	return m.reporter.Performance(period, "", 0, alertCount)
}

// SlowestOperations ranks recorded samples by value for a period.
// Params: period, optional category filter, and ranking limit.
// Returns: top entries or unknown-period error.
func (m *Monitor) SlowestOperations(period report.Period, category domain.MetricCategory, limit int) ([]report.SlowOperation, error) {
	return m.reporter.SlowestOperations(period, category, limit)
}

// StatsFor aggregates one metric name over a period.
// Params: metric name and period.
// Returns: stats and true, or false when empty or unknown period.
func (m *Monitor) StatsFor(name string, period report.Period) (report.MetricStats, bool) {
	return m.reporter.StatsFor(name, period)
}

// GetSecurityStats aggregates security activity over a period.
// Params: report period.
// Returns: stats or unknown-period error.
func (m *Monitor) GetSecurityStats(period report.Period) (report.SecurityStats, error) {
	return m.reporter.Security(period, len(m.alertMgr.ActiveSecurity()))
}

// Thresholds returns the active threshold snapshot.
// Params: none.
// Returns: copy of current thresholds.
func (m *Monitor) Thresholds() config.Thresholds {
	m.thresholdMu.RLock()
	defer m.thresholdMu.RUnlock()
	return m.thresholds
}

// UpdateThresholds applies a partial threshold override in process.
// Params: override with nil fields left unchanged.
// Returns: resulting threshold snapshot.
func (m *Monitor) UpdateThresholds(override config.ThresholdOverride) config.Thresholds {
	m.thresholdMu.Lock()
	m.thresholds = override.Apply(m.thresholds)
	next := m.thresholds
	m.thresholdMu.Unlock()
	m.logger.Info("thresholds updated",
		"api_ms", next.APIResponseTimeMS,
		"database_ms", next.DatabaseQueryTimeMS,
		"page_ms", next.PageLoadTimeMS,
		"memory_pct", next.MemoryUsagePercent,
		"cpu_pct", next.CPUUsagePercent,
	)
	return next
}

// ApplyConfig swaps rules and thresholds from a reloaded snapshot.
// Params: validated config snapshot.
// Returns: none; the swap is atomic per structure.
func (m *Monitor) ApplyConfig(cfg config.Config) {
	m.engine.SetRules(cfg.Rule)
	m.thresholdMu.Lock()
	m.thresholds = cfg.Thresholds
	m.thresholdMu.Unlock()
}

// EvictAgedState drops metrics, events, and alerts past retention.
// Params: retention duration.
// Returns: none; eviction counts are logged.
func (m *Monitor) EvictAgedState(retention time.Duration) {
	cutoff := m.clk.Now().Add(-retention)
	evictedMetrics := m.metrics.EvictOlderThan(cutoff)
	evictedEvents := m.events.EvictOlderThan(cutoff)
	evictedAlerts := m.alertMgr.EvictOlderThan(cutoff)
	if evictedMetrics+evictedEvents+evictedAlerts > 0 {
		m.logger.Info("housekeeping eviction",
			"metrics", evictedMetrics,
			"events", evictedEvents,
			"alerts", evictedAlerts,
		)
	}
}

// SweepExpired removes expired rate windows and block entries.
// Params: none.
// Returns: none; sweep counts are logged when non-zero.
func (m *Monitor) SweepExpired() {
	sweptWindows := m.tracker.Sweep()
	sweptBlocks := m.blocks.Sweep()
	if sweptWindows+sweptBlocks > 0 {
		m.logger.Info("housekeeping sweep", "rate_windows", sweptWindows, "blocks", sweptBlocks)
	}
}
