package store

import (
	"fmt"
	"testing"
	"time"

	"sentinel/internal/domain"
)

func sampleMetric(name string, value float64, at time.Time) domain.Metric {
	return domain.Metric{
		ID:        fmt.Sprintf("%s-%d", name, at.UnixNano()),
		Name:      name,
		Value:     value,
		Unit:      "ms",
		Category:  domain.CategoryAPI,
		Timestamp: at,
	}
}

func TestRecordEvictsOldestAtCapacity(t *testing.T) {
	t.Parallel()

	metrics := NewMetricStore(0)
	base := time.Unix(1_700_000_000, 0)
	for i := 0; i < 1500; i++ {
		metrics.Record(sampleMetric("api.latency", float64(i), base.Add(time.Duration(i)*time.Second)))
	}

	if got := metrics.Len("api.latency"); got != DefaultMetricCap {
		t.Fatalf("expected %d retained samples, got %d", DefaultMetricCap, got)
	}
	kept := metrics.QueryName("api.latency", time.Time{}, time.Time{})
	if len(kept) != DefaultMetricCap {
		t.Fatalf("expected %d samples in snapshot, got %d", DefaultMetricCap, len(kept))
	}
	if kept[0].Value != 500 {
		t.Fatalf("expected oldest surviving value 500, got %v", kept[0].Value)
	}
	if kept[len(kept)-1].Value != 1499 {
		t.Fatalf("expected newest value 1499, got %v", kept[len(kept)-1].Value)
	}
}

func TestQueryNameUsesHalfOpenRange(t *testing.T) {
	t.Parallel()

	metrics := NewMetricStore(10)
	base := time.Unix(1_700_000_000, 0)
	for i := 0; i < 5; i++ {
		metrics.Record(sampleMetric("db.query", float64(i), base.Add(time.Duration(i)*time.Minute)))
	}

	got := metrics.QueryName("db.query", base.Add(time.Minute), base.Add(3*time.Minute))
	if len(got) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(got))
	}
	if got[0].Value != 1 || got[1].Value != 2 {
		t.Fatalf("unexpected window values %v, %v", got[0].Value, got[1].Value)
	}
	if unknown := metrics.QueryName("missing", time.Time{}, time.Time{}); unknown != nil {
		t.Fatalf("expected nil for unknown name, got %v", unknown)
	}
}

func TestQueryCategoryOrdersByNameThenTime(t *testing.T) {
	t.Parallel()

	metrics := NewMetricStore(10)
	base := time.Unix(1_700_000_000, 0)
	beta := sampleMetric("beta", 2, base)
	alpha := sampleMetric("alpha", 1, base.Add(time.Second))
	metrics.Record(beta)
	metrics.Record(alpha)

	got := metrics.QueryCategory(domain.CategoryAPI, time.Time{}, time.Time{})
	if len(got) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(got))
	}
	if got[0].Name != "alpha" || got[1].Name != "beta" {
		t.Fatalf("unexpected order %q, %q", got[0].Name, got[1].Name)
	}
}

func TestNamesForFiltersByCategory(t *testing.T) {
	t.Parallel()

	metrics := NewMetricStore(10)
	base := time.Unix(1_700_000_000, 0)
	metrics.Record(sampleMetric("api.latency", 1, base))
	system := sampleMetric("system.cpu.usage", 40, base)
	system.Category = domain.CategorySystem
	metrics.Record(system)

	apiNames := metrics.NamesFor(domain.CategoryAPI)
	if len(apiNames) != 1 || apiNames[0] != "api.latency" {
		t.Fatalf("unexpected api names %v", apiNames)
	}
	if names := metrics.NamesFor(domain.CategoryDatabase); names != nil {
		t.Fatalf("expected nil for empty category, got %v", names)
	}
}

func TestEvictOlderThanDropsAgedSamples(t *testing.T) {
	t.Parallel()

	metrics := NewMetricStore(10)
	base := time.Unix(1_700_000_000, 0)
	for i := 0; i < 6; i++ {
		metrics.Record(sampleMetric("api.latency", float64(i), base.Add(time.Duration(i)*time.Hour)))
	}

	if evicted := metrics.EvictOlderThan(base.Add(3 * time.Hour)); evicted != 3 {
		t.Fatalf("expected 3 evicted samples, got %d", evicted)
	}
	if got := metrics.Len("api.latency"); got != 3 {
		t.Fatalf("expected 3 remaining samples, got %d", got)
	}

	if evicted := metrics.EvictOlderThan(base.Add(24 * time.Hour)); evicted != 3 {
		t.Fatalf("expected 3 evicted samples, got %d", evicted)
	}
	if names := metrics.Names(); len(names) != 0 {
		t.Fatalf("expected empty name list after full eviction, got %v", names)
	}
}
