package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// MetricCategory classifies one performance observation source.
// Params: constants for api/database/ui/system producers.
// Returns: normalized category used by store partitions and reports.
type MetricCategory string

const (
	// CategoryAPI marks request-handling measurements.
	CategoryAPI MetricCategory = "api"
	// CategoryDatabase marks query measurements.
	CategoryDatabase MetricCategory = "database"
	// CategoryUI marks page/render measurements.
	CategoryUI MetricCategory = "ui"
	// CategorySystem marks host resource measurements.
	CategorySystem MetricCategory = "system"
)

// IsValid reports whether category is one of the supported values.
// Params: none.
// Returns: true for known categories.
func (c MetricCategory) IsValid() bool {
	switch c {
	case CategoryAPI, CategoryDatabase, CategoryUI, CategorySystem:
		return true
	default:
		return false
	}
}

// Metric is one timestamped numeric observation.
// Params: identity, value with unit, category, and free-form metadata.
// Returns: immutable record owned by the metric store after recording.
type Metric struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Value     float64           `json:"value"`
	Unit      string            `json:"unit"`
	Category  MetricCategory    `json:"category"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Validate validates one metric against the ingest contract.
// Params: metric fields parsed from transport or built by callers.
// Returns: validation error when contract is violated.
func (m Metric) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return errors.New("name is required")
	}
	if !m.Category.IsValid() {
		return fmt.Errorf("unsupported category %q", m.Category)
	}
	if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		return errors.New("value must be a finite number")
	}
	return nil
}

// DecodeMetric decodes and validates one metric payload.
// Params: JSON document bytes.
// Returns: validated metric or decode/validation error.
func DecodeMetric(raw []byte) (Metric, error) {
	var metric Metric
	if err := json.Unmarshal(raw, &metric); err != nil {
		return Metric{}, fmt.Errorf("decode metric: %w", err)
	}
	if err := metric.Validate(); err != nil {
		return Metric{}, err
	}
	return metric, nil
}

// PerformanceAlert records one threshold breach.
// Params: breached metric name, configured threshold, observed value.
// Returns: durable alert record with open/resolved lifecycle.
type PerformanceAlert struct {
	ID           string    `json:"id"`
	MetricName   string    `json:"metric_name"`
	Threshold    float64   `json:"threshold"`
	CurrentValue float64   `json:"current_value"`
	Severity     Severity  `json:"severity"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
	Resolved     bool      `json:"resolved"`
}
