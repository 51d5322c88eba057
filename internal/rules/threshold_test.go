package rules

import (
	"testing"
	"time"

	"sentinel/internal/config"
	"sentinel/internal/domain"
)

func testThresholds() config.Thresholds {
	return config.Thresholds{
		APIResponseTimeMS:   1000,
		DatabaseQueryTimeMS: 500,
		PageLoadTimeMS:      3000,
		MemoryUsagePercent:  85,
		CPUUsagePercent:     90,
	}
}

func TestThresholdForResolvesByNameFragment(t *testing.T) {
	t.Parallel()

	thresholds := testThresholds()
	cases := []struct {
		name string
		want float64
	}{
		{"api.users.latency", 1000},
		{"database.orders.query", 500},
		{"page.checkout.load", 3000},
		{"system.memory.usage", 85},
		{"system.cpu.usage", 90},
	}
	for _, tc := range cases {
		got, ok := ThresholdFor(tc.name, thresholds)
		if !ok {
			t.Fatalf("expected threshold for %s", tc.name)
		}
		if got != tc.want {
			t.Fatalf("expected threshold %v for %s, got %v", tc.want, tc.name, got)
		}
	}

	if _, ok := ThresholdFor("queue.depth", thresholds); ok {
		t.Fatal("expected no threshold for unmapped name")
	}
}

func TestEvaluateThresholdSeverityBands(t *testing.T) {
	t.Parallel()

	thresholds := testThresholds()
	cases := []struct {
		value    float64
		fires    bool
		severity domain.Severity
	}{
		{900, false, ""},
		{1000, false, ""},
		{1100, true, domain.SeverityLow},
		{1200, true, domain.SeverityLow},
		{1201, true, domain.SeverityMedium},
		{1500, true, domain.SeverityMedium},
		{1501, true, domain.SeverityHigh},
		{2000, true, domain.SeverityHigh},
		{2001, true, domain.SeverityCritical},
	}
	for _, tc := range cases {
		metric := domain.Metric{
			Name:      "api.latency",
			Value:     tc.value,
			Unit:      "ms",
			Category:  domain.CategoryAPI,
			Timestamp: time.Unix(1_700_000_000, 0),
		}
		candidate, fired := EvaluateThreshold(metric, thresholds)
		if fired != tc.fires {
			t.Fatalf("value %v: expected fired=%v, got %v", tc.value, tc.fires, fired)
		}
		if !fired {
			continue
		}
		if candidate.Severity != tc.severity {
			t.Fatalf("value %v: expected severity %s, got %s", tc.value, tc.severity, candidate.Severity)
		}
		if candidate.Threshold != 1000 || candidate.CurrentValue != tc.value {
			t.Fatalf("value %v: unexpected candidate %+v", tc.value, candidate)
		}
	}
}
