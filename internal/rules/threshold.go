package rules

import (
	"fmt"
	"strings"

	"sentinel/internal/config"
	"sentinel/internal/domain"
)

// PerformanceCandidate is one threshold breach awaiting alert creation.
// Params: breached metric identity and computed severity.
// Returns: input for performance alert creation.
type PerformanceCandidate struct {
	MetricName   string
	Threshold    float64
	CurrentValue float64
	Severity     domain.Severity
	Message      string
}

// thresholdFamilies maps metric-name substrings to threshold readers,
// checked in order. First match wins.
var thresholdFamilies = []struct {
	fragment string
	read     func(config.Thresholds) float64
}{
	{"api", func(t config.Thresholds) float64 { return t.APIResponseTimeMS }},
	{"database", func(t config.Thresholds) float64 { return t.DatabaseQueryTimeMS }},
	{"page", func(t config.Thresholds) float64 { return t.PageLoadTimeMS }},
	{"memory", func(t config.Thresholds) float64 { return t.MemoryUsagePercent }},
	{"cpu", func(t config.Thresholds) float64 { return t.CPUUsagePercent }},
}

// ThresholdFor resolves the configured threshold for one metric name.
// Params: metric name and active thresholds.
// Returns: threshold value and applicability flag.
func ThresholdFor(name string, thresholds config.Thresholds) (float64, bool) {
	lowered := strings.ToLower(name)
	for _, family := range thresholdFamilies {
		if strings.Contains(lowered, family.fragment) {
			return family.read(thresholds), true
		}
	}
	return 0, false
}

// EvaluateThreshold checks one metric against the configured thresholds.
// Params: recorded metric and active thresholds.
// Returns: candidate and true only when the value exceeds its threshold.
//
// Severity escalates with the breach multiplier: >2x critical, >1.5x high,
// >1.2x medium, otherwise low.
func EvaluateThreshold(metric domain.Metric, thresholds config.Thresholds) (PerformanceCandidate, bool) {
	threshold, ok := ThresholdFor(metric.Name, thresholds)
	if !ok || threshold <= 0 || metric.Value <= threshold {
		return PerformanceCandidate{}, false
	}
	ratio := metric.Value / threshold
	severity := domain.SeverityLow
	switch {
	case ratio > 2:
		severity = domain.SeverityCritical
	case ratio > 1.5:
		severity = domain.SeverityHigh
	case ratio > 1.2:
		severity = domain.SeverityMedium
	}
	return PerformanceCandidate{
		MetricName:   metric.Name,
		Threshold:    threshold,
		CurrentValue: metric.Value,
		Severity:     severity,
		Message: fmt.Sprintf("%s exceeded threshold: %.2f%s > %.2f%s",
			metric.Name, metric.Value, metric.Unit, threshold, metric.Unit),
	}, true
}
