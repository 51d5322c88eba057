package report

import (
	"fmt"
	"sort"
	"time"

	"sentinel/internal/clock"
	"sentinel/internal/domain"
	"sentinel/internal/store"
)

// Period selects the trailing window of a report.
type Period string

// Supported report periods.
const (
	PeriodHour Period = "hour"
	PeriodDay  Period = "day"
	PeriodWeek Period = "week"
)

// Duration converts period to its trailing window length.
// Params: none.
// Returns: window duration and true, or false for unknown periods.
func (p Period) Duration() (time.Duration, bool) {
	switch p {
	case PeriodHour:
		return time.Hour, true
	case PeriodDay:
		return 24 * time.Hour, true
	case PeriodWeek:
		return 7 * 24 * time.Hour, true
	}
	return 0, false
}

// MetricStats aggregates one metric name over a period.
type MetricStats struct {
	Name    string  `json:"name"`
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Median  float64 `json:"median"`
	P95     float64 `json:"p95"`
	P99     float64 `json:"p99"`
}

// SlowOperation is one entry of the slowest-operations ranking.
type SlowOperation struct {
	Name      string                `json:"name"`
	Value     float64               `json:"value"`
	Unit      string                `json:"unit"`
	Category  domain.MetricCategory `json:"category"`
	Timestamp time.Time             `json:"timestamp"`
}

// PerformanceReport is the aggregate performance view for a period.
type PerformanceReport struct {
	Period      Period                 `json:"period"`
	GeneratedAt time.Time              `json:"generated_at"`
	Stats       map[string]MetricStats `json:"stats"`
	Slowest     []SlowOperation        `json:"slowest_operations"`
	AlertCount  int                    `json:"alert_count"`
}

// ThreatSource is one origin IP ranked by severe event volume.
type ThreatSource struct {
	IPAddress string `json:"ip_address"`
	Count     int    `json:"count"`
}

// SecurityStats aggregates security events over a period.
type SecurityStats struct {
	Period       Period                           `json:"period"`
	GeneratedAt  time.Time                        `json:"generated_at"`
	TotalEvents  int                              `json:"total_events"`
	ByType       map[domain.SecurityEventType]int `json:"by_type"`
	BySeverity   map[domain.Severity]int          `json:"by_severity"`
	TopThreatIPs []ThreatSource                   `json:"top_threat_ips"`
	ActiveAlerts int                              `json:"active_alerts"`
}

// Reporter computes read-only aggregates from the in-memory stores.
type Reporter struct {
	clk     clock.Clock
	metrics *store.MetricStore
	events  *store.EventStore
}

// NewReporter creates reporter.
// Params: clock and backing stores.
// Returns: initialized reporter.
func NewReporter(clk clock.Clock, metrics *store.MetricStore, events *store.EventStore) *Reporter {
	return &Reporter{clk: clk, metrics: metrics, events: events}
}

// StatsFor aggregates one metric name over the trailing period.
// Params: metric name and period.
// Returns: stats and true, or false when the period is unknown or no
// samples fall inside the window.
func (r *Reporter) StatsFor(name string, period Period) (MetricStats, bool) {
	window, ok := period.Duration()
	if !ok {
		return MetricStats{}, false
	}
	since := r.clk.Now().Add(-window)
	samples := r.metrics.QueryName(name, since, time.Time{})
	if len(samples) == 0 {
		return MetricStats{}, false
	}

	values := make([]float64, len(samples))
	sum := 0.0
	for i, m := range samples {
		values[i] = m.Value
		sum += m.Value
	}
	sort.Float64s(values)

	return MetricStats{
		Name:    name,
		Count:   len(values),
		Average: sum / float64(len(values)),
		Min:     values[0],
		Max:     values[len(values)-1],
		Median:  percentile(values, 0.5),
		P95:     percentile(values, 0.95),
		P99:     percentile(values, 0.99),
	}, true
}

// Performance builds the full performance report for a period.
// Params: period, optional category filter (empty means all), ranking
// limit, and the performance alert count observed in the window.
// Returns: report or an error for unknown periods.
func (r *Reporter) Performance(period Period, category domain.MetricCategory, limit, alertCount int) (PerformanceReport, error) {
	window, ok := period.Duration()
	if !ok {
		return PerformanceReport{}, fmt.Errorf("unknown report period %q", string(period))
	}
	now := r.clk.Now()
	since := now.Add(-window)

	stats := make(map[string]MetricStats)
	for _, name := range r.namesFor(category) {
		if s, found := r.StatsFor(name, period); found {
			stats[name] = s
		}
	}

	return PerformanceReport{
		Period:      period,
		GeneratedAt: now,
		Stats:       stats,
		Slowest:     r.slowestSince(since, category, limit),
		AlertCount:  alertCount,
	}, nil
}

// SlowestOperations ranks individual samples by value, descending.
// Params: period, optional category filter, ranking limit (<=0 uses 10).
// Returns: top entries or an error for unknown periods.
func (r *Reporter) SlowestOperations(period Period, category domain.MetricCategory, limit int) ([]SlowOperation, error) {
	window, ok := period.Duration()
	if !ok {
		return nil, fmt.Errorf("unknown report period %q", string(period))
	}
	since := r.clk.Now().Add(-window)
	return r.slowestSince(since, category, limit), nil
}

// Security aggregates security events over the trailing period.
// Params: period and the unresolved security alert count.
// Returns: stats or an error for unknown periods.
func (r *Reporter) Security(period Period, activeAlerts int) (SecurityStats, error) {
	window, ok := period.Duration()
	if !ok {
		return SecurityStats{}, fmt.Errorf("unknown report period %q", string(period))
	}
	now := r.clk.Now()
	since := now.Add(-window)

	byType := make(map[domain.SecurityEventType]int)
	bySeverity := make(map[domain.Severity]int)
	severeByIP := make(map[string]int)
	total := 0
	for _, ev := range r.events.Query(since, time.Time{}, nil) {
		total++
		byType[ev.Type]++
		bySeverity[ev.Severity]++
		if ev.Severity.AtLeast(domain.SeverityHigh) {
			severeByIP[ev.IPAddress]++
		}
	}

	return SecurityStats{
		Period:       period,
		GeneratedAt:  now,
		TotalEvents:  total,
		ByType:       byType,
		BySeverity:   bySeverity,
		TopThreatIPs: topSources(severeByIP, 10),
		ActiveAlerts: activeAlerts,
	}, nil
}

// percentile picks the value at floor(n*p), clamped to the last index.
// Params: ascending values (non-empty) and fraction in [0,1].
// Returns: selected value.
func percentile(values []float64, p float64) float64 {
	idx := int(float64(len(values)) * p)
	if idx >= len(values) {
		idx = len(values) - 1
	}
	return values[idx]
}

func (r *Reporter) namesFor(category domain.MetricCategory) []string {
	if category == "" {
		return r.metrics.Names()
	}
	return r.metrics.NamesFor(category)
}

func (r *Reporter) slowestSince(since time.Time, category domain.MetricCategory, limit int) []SlowOperation {
	if limit <= 0 {
		limit = 10
	}
	out := make([]SlowOperation, 0)
	for _, name := range r.namesFor(category) {
		for _, m := range r.metrics.QueryName(name, since, time.Time{}) {
			out = append(out, SlowOperation{
				Name:      m.Name,
				Value:     m.Value,
				Unit:      m.Unit,
				Category:  m.Category,
				Timestamp: m.Timestamp,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// topSources ranks origin IPs by count, descending, ties by IP.
// Params: per-ip counts and ranking size.
// Returns: at most n entries.
func topSources(byIP map[string]int, n int) []ThreatSource {
	out := make([]ThreatSource, 0, len(byIP))
	for ip, count := range byIP {
		out = append(out, ThreatSource{IPAddress: ip, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].IPAddress < out[j].IPAddress
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
