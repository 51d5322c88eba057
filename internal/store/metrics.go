package store

import (
	"sort"
	"sync"
	"time"

	"sentinel/internal/domain"
)

// DefaultMetricCap bounds retained samples per metric name.
const DefaultMetricCap = 1000

// metricRing is a fixed-capacity chronological buffer for one metric name.
// Params: backing array, head index, and live count.
// Returns: O(1) append with silent oldest-first overwrite.
type metricRing struct {
	buf   []domain.Metric
	head  int
	count int
}

func newMetricRing(capacity int) *metricRing {
	return &metricRing{buf: make([]domain.Metric, capacity)}
}

// append stores one sample, overwriting the oldest at capacity.
func (r *metricRing) append(metric domain.Metric) {
	index := (r.head + r.count) % len(r.buf)
	r.buf[index] = metric
	if r.count < len(r.buf) {
		r.count++
		return
	}
	r.head = (r.head + 1) % len(r.buf)
}

// each visits live samples oldest-first.
func (r *metricRing) each(visit func(domain.Metric) bool) {
	for i := 0; i < r.count; i++ {
		if !visit(r.buf[(r.head+i)%len(r.buf)]) {
			return
		}
	}
}

// dropWhile removes leading samples while predicate holds.
func (r *metricRing) dropWhile(predicate func(domain.Metric) bool) int {
	dropped := 0
	for r.count > 0 && predicate(r.buf[r.head]) {
		r.buf[r.head] = domain.Metric{}
		r.head = (r.head + 1) % len(r.buf)
		r.count--
		dropped++
	}
	return dropped
}

// MetricStore keeps bounded per-name metric history in process memory.
// Params: per-name capacity and in-memory ring map.
// Returns: store implementation without external dependencies.
type MetricStore struct {
	mu        sync.RWMutex
	capacity  int
	series    map[string]*metricRing
	byCatName map[domain.MetricCategory]map[string]struct{}
}

// NewMetricStore creates in-memory metric store.
// Params: per-name capacity (defaults to DefaultMetricCap when <=0).
// Returns: initialized store.
func NewMetricStore(capacity int) *MetricStore {
	if capacity <= 0 {
		capacity = DefaultMetricCap
	}
	return &MetricStore{
		capacity:  capacity,
		series:    make(map[string]*metricRing),
		byCatName: make(map[domain.MetricCategory]map[string]struct{}),
	}
}

// Record appends one metric, evicting the oldest sample at capacity.
// Params: validated metric.
// Returns: none; eviction is silent steady-state behavior.
func (s *MetricStore) Record(metric domain.Metric) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ring, ok := s.series[metric.Name]
	if !ok {
		ring = newMetricRing(s.capacity)
		s.series[metric.Name] = ring
		names, exists := s.byCatName[metric.Category]
		if !exists {
			names = make(map[string]struct{})
			s.byCatName[metric.Category] = names
		}
		names[metric.Name] = struct{}{}
	}
	ring.append(metric)
}

// QueryName returns samples for one name within [since, until).
// Params: metric name and half-open time range.
// Returns: chronological snapshot copy.
func (s *MetricStore) QueryName(name string, since, until time.Time) []domain.Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ring, ok := s.series[name]
	if !ok {
		return nil
	}
	out := make([]domain.Metric, 0, ring.count)
	ring.each(func(metric domain.Metric) bool {
		if inRange(metric.Timestamp, since, until) {
			out = append(out, metric)
		}
		return true
	})
	return out
}

// QueryCategory returns samples for one category within [since, until).
// Params: category and half-open time range.
// Returns: snapshot copy ordered by name then time.
func (s *MetricStore) QueryCategory(category domain.MetricCategory, since, until time.Time) []domain.Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names, ok := s.byCatName[category]
	if !ok {
		return nil
	}
	sortedNames := make([]string, 0, len(names))
	for name := range names {
		sortedNames = append(sortedNames, name)
	}
	sort.Strings(sortedNames)

	out := make([]domain.Metric, 0)
	for _, name := range sortedNames {
		ring, exists := s.series[name]
		if !exists {
			continue
		}
		ring.each(func(metric domain.Metric) bool {
			if inRange(metric.Timestamp, since, until) {
				out = append(out, metric)
			}
			return true
		})
	}
	return out
}

// Names returns all metric names with live samples.
// Params: none.
// Returns: sorted name list.
func (s *MetricStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.series))
	for name, ring := range s.series {
		if ring.count == 0 {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NamesFor returns metric names recorded under one category.
// Params: metric category.
// Returns: sorted name list.
func (s *MetricStore) NamesFor(category domain.MetricCategory) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	members, ok := s.byCatName[category]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(members))
	for name := range members {
		if ring, exists := s.series[name]; exists && ring.count > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Len reports live sample count for one name.
// Params: metric name.
// Returns: stored sample count.
func (s *MetricStore) Len(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ring, ok := s.series[name]
	if !ok {
		return 0
	}
	return ring.count
}

// EvictOlderThan drops samples recorded before the cutoff.
// Params: age cutoff timestamp.
// Returns: number of evicted samples.
func (s *MetricStore) EvictOlderThan(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for name, ring := range s.series {
		evicted += ring.dropWhile(func(metric domain.Metric) bool {
			return metric.Timestamp.Before(cutoff)
		})
		if ring.count == 0 {
			delete(s.series, name)
			for _, names := range s.byCatName {
				delete(names, name)
			}
		}
	}
	return evicted
}

func inRange(at, since, until time.Time) bool {
	if !since.IsZero() && at.Before(since) {
		return false
	}
	if !until.IsZero() && !at.Before(until) {
		return false
	}
	return true
}
