package sysmetrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Recorder receives sampled host metrics.
// Params: metric name, sampled value, and unit.
// Returns: none; the monitor files the sample under the system category.
type Recorder interface {
	RecordSystemMetric(name string, value float64, unit string)
}

// Sampler periodically records host cpu and memory usage.
type Sampler struct {
	logger   *slog.Logger
	recorder Recorder
	interval time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewSampler creates host metrics sampler.
// Params: logger, metric recorder, and sampling interval (<=0 uses 30s).
// Returns: sampler ready to start.
func NewSampler(logger *slog.Logger, recorder Recorder, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sampler{
		logger:   logger,
		recorder: recorder,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sampling loop.
// Params: none.
// Returns: none; one sample is taken immediately, then per interval.
func (s *Sampler) Start() {
	go s.run()
}

// Close stops the sampling loop and waits for it to finish.
// Params: none.
// Returns: nil.
func (s *Sampler) Close() error {
	s.stopOnce.Do(func() {
		close(s.stop)
		<-s.done
	})
	return nil
}

func (s *Sampler) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sample()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sample()
		}
	}
}

// sample records one cpu and one memory usage reading.
// Params: none.
// Returns: none; probe failures are logged and skipped.
func (s *Sampler) sample() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		s.logger.Warn("cpu sample failed", "error", err.Error())
	} else if len(percents) > 0 {
		s.recorder.RecordSystemMetric("system.cpu.usage", percents[0], "percent")
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		s.logger.Warn("memory sample failed", "error", err.Error())
	} else {
		s.recorder.RecordSystemMetric("system.memory.usage", vm.UsedPercent, "percent")
	}
}
