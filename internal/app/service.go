package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"sentinel/internal/clock"
	"sentinel/internal/config"
	"sentinel/internal/domain"
	"sentinel/internal/ingest"
	"sentinel/internal/logging"
	"sentinel/internal/notify"
	"sentinel/internal/persist"
	"sentinel/internal/report"
	"sentinel/internal/sysmetrics"
)

// API paths served next to the configurable ingest endpoints.
const (
	alertsPath            = "/api/alerts"
	resolvePath           = "/api/alerts/resolve"
	performanceReportPath = "/api/reports/performance"
	securityStatsPath     = "/api/reports/security"
	slowestPath           = "/api/reports/slowest"
	thresholdsPath        = "/api/thresholds"
)

// Service composes runtime dependencies and process lifecycle.
// Params: config source and shared runtime components.
// Returns: runnable monitoring service.
type Service struct {
	source     config.ConfigSource
	cfg        config.Config
	logger     *slog.Logger
	closeLog   func()
	monitor    *Monitor
	dispatcher *notify.Dispatcher
	persistQ   *persist.Queue
	httpSrv    *http.Server
	natsSub    interface{ Close() error }
	sampler    *sysmetrics.Sampler
	readyFlag  atomic.Bool
	clock      clock.Clock
}

// NewService builds service instance from config source.
// Params: config source and clock implementation.
// Returns: initialized service or setup error.
func NewService(source config.ConfigSource, clk clock.Clock) (*Service, error) {
	cfg, err := config.LoadSnapshot(source)
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	service := &Service{
		source:   source,
		cfg:      cfg,
		logger:   logger,
		closeLog: closeLog,
		clock:    clk,
	}

	service.dispatcher = notify.NewDispatcher(cfg.Notify, logger)

	if err := service.buildPersistQueue(); err != nil {
		service.cleanupInitResources()
		return nil, err
	}

	var archiver Archiver
	if service.persistQ != nil {
		archiver = service.persistQ
	}
	service.monitor = NewMonitor(cfg, logger, clk, archiver, service.dispatcher)

	if cfg.Sampler.Enabled {
		interval := time.Duration(cfg.Sampler.IntervalSec) * time.Second
		service.sampler = sysmetrics.NewSampler(logger, service.monitor, interval)
	}

	if err := service.buildHTTPServer(); err != nil {
		service.cleanupInitResources()
		return nil, err
	}
	if err := service.buildNATSSubscriber(); err != nil {
		service.cleanupInitResources()
		return nil, err
	}

	return service, nil
}

// Monitor exposes the facade for in-process callers.
// Params: none.
// Returns: shared monitor instance.
func (s *Service) Monitor() *Monitor {
	return s.monitor
}

// Run starts service lifecycle and blocks until shutdown signal.
// Params: root context for service runtime.
// Returns: terminal run error.
func (s *Service) Run(ctx context.Context) error {
	shutdownCtx, shutdownCancel := context.WithCancel(ctx)
	defer shutdownCancel()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting", "listen", s.cfg.Ingest.HTTP.Listen)
		err := s.httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	housekeepInterval := time.Duration(s.cfg.Service.HousekeepingInterval) * time.Second
	retention := time.Duration(s.cfg.Service.RetentionDays) * 24 * time.Hour
	housekeepTicker := time.NewTicker(housekeepInterval)
	defer housekeepTicker.Stop()
	go func() {
		for {
			select {
			case <-shutdownCtx.Done():
				return
			case <-housekeepTicker.C:
				s.monitor.EvictAgedState(retention)
			}
		}
	}()

	sweepInterval := time.Duration(s.cfg.Service.SweepInterval) * time.Second
	sweepTicker := time.NewTicker(sweepInterval)
	defer sweepTicker.Stop()
	go func() {
		for {
			select {
			case <-shutdownCtx.Done():
				return
			case <-sweepTicker.C:
				s.monitor.SweepExpired()
			}
		}
	}()

	if s.cfg.Service.ReloadEnabled {
		reloadInterval := time.Duration(s.cfg.Service.ReloadIntervalSec) * time.Second
		reloadTicker := time.NewTicker(reloadInterval)
		defer reloadTicker.Stop()
		go func() {
			for {
				select {
				case <-shutdownCtx.Done():
					return
				case <-reloadTicker.C:
					if err := s.reloadConfig(); err != nil {
						s.logger.Error("reload failed", "error", err.Error())
					}
				}
			}
		}()
	}

	if s.sampler != nil {
		s.sampler.Start()
	}

	s.readyFlag.Store(true)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errChan:
		_ = s.shutdown()
		return fmt.Errorf("http server failed: %w", err)
	case <-sigChan:
		return s.shutdown()
	}
}

// shutdown closes runtime resources in dependency order.
// Params: none.
// Returns: first close error.
func (s *Service) shutdown() error {
	s.readyFlag.Store(false)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var firstErr error
	markErr := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("http shutdown failed", "error", err.Error())
		markErr(fmt.Errorf("http shutdown: %w", err))
	}
	if s.natsSub != nil {
		if err := s.natsSub.Close(); err != nil {
			s.logger.Error("nats subscriber close failed", "error", err.Error())
			markErr(fmt.Errorf("nats subscriber close: %w", err))
		}
	}
	if s.sampler != nil {
		_ = s.sampler.Close()
	}
	if s.dispatcher != nil {
		_ = s.dispatcher.Close()
	}
	if s.persistQ != nil {
		if err := s.persistQ.Close(); err != nil {
			s.logger.Error("persist queue close failed", "error", err.Error())
			markErr(fmt.Errorf("persist queue close: %w", err))
		}
	}
	if s.closeLog != nil {
		s.closeLog()
	}
	return firstErr
}

// cleanupInitResources closes partially initialized resources on startup failures.
// Params: none.
// Returns: all acquired resources closed best-effort.
func (s *Service) cleanupInitResources() {
	if s.natsSub != nil {
		_ = s.natsSub.Close()
		s.natsSub = nil
	}
	if s.httpSrv != nil {
		_ = s.httpSrv.Close()
		s.httpSrv = nil
	}
	if s.sampler != nil {
		_ = s.sampler.Close()
		s.sampler = nil
	}
	if s.dispatcher != nil {
		_ = s.dispatcher.Close()
		s.dispatcher = nil
	}
	if s.persistQ != nil {
		_ = s.persistQ.Close()
		s.persistQ = nil
	}
	if s.closeLog != nil {
		s.closeLog()
		s.closeLog = nil
	}
}

// buildPersistQueue initializes fire-and-forget persistence when enabled.
// Params: none.
// Returns: setup error.
func (s *Service) buildPersistQueue() error {
	if isSingleMode(s.cfg) || !s.cfg.Persist.Enabled {
		return nil
	}
	sink, err := persist.NewNATSSink(s.cfg.Persist)
	if err != nil {
		return err
	}
	s.persistQ = persist.NewQueue(s.logger, sink, s.cfg.Persist.QueueSize)
	return nil
}

// buildHTTPServer wires router with ingest, health, and reporting endpoints.
// Params: none.
// Returns: setup error.
func (s *Service) buildHTTPServer() error {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Ingest.HTTP.HealthPath, func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("ok"))
	})
	mux.HandleFunc(s.cfg.Ingest.HTTP.ReadyPath, func(writer http.ResponseWriter, _ *http.Request) {
		if !s.readyFlag.Load() {
			writer.WriteHeader(http.StatusServiceUnavailable)
			_, _ = writer.Write([]byte("not-ready"))
			return
		}
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("ready"))
	})

	if s.cfg.Ingest.HTTP.Enabled {
		maxBody := s.cfg.Ingest.HTTP.MaxBodyBytes
		mux.Handle(s.cfg.Ingest.HTTP.MetricsPath, ingest.NewMetricHandler(s.monitor, maxBody))
		mux.Handle(s.cfg.Ingest.HTTP.EventsPath, ingest.NewEventHandler(s.monitor, s.monitor, maxBody))
		mux.HandleFunc(alertsPath, s.handleAlerts)
		mux.HandleFunc(resolvePath, s.handleResolve)
		mux.HandleFunc(performanceReportPath, s.handlePerformanceReport)
		mux.HandleFunc(securityStatsPath, s.handleSecurityStats)
		mux.HandleFunc(slowestPath, s.handleSlowest)
		mux.HandleFunc(thresholdsPath, s.handleThresholds)
	}

	s.httpSrv = &http.Server{
		Addr:              s.cfg.Ingest.HTTP.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return nil
}

// buildNATSSubscriber starts NATS ingest when enabled.
// Params: none.
// Returns: initialization error.
func (s *Service) buildNATSSubscriber() error {
	if isSingleMode(s.cfg) {
		return nil
	}
	if !s.cfg.Ingest.NATS.Enabled {
		return nil
	}
	subscriber, err := ingest.NewNATSSubscriber(s.cfg.Ingest.NATS, s.monitor, s.logger)
	if err != nil {
		return err
	}
	s.natsSub = subscriber
	return nil
}

// reloadConfig applies a fresh config snapshot to rules and thresholds.
// Transport and sink settings changed on disk require a restart.
// Params: none.
// Returns: reload or validation error.
func (s *Service) reloadConfig() error {
	nextCfg, err := config.LoadSnapshot(s.source)
	if err != nil {
		return err
	}
	if isSingleMode(nextCfg) != isSingleMode(s.cfg) {
		return fmt.Errorf("service.mode change requires restart")
	}
	s.monitor.ApplyConfig(nextCfg)
	s.cfg.Rule = nextCfg.Rule
	s.cfg.Thresholds = nextCfg.Thresholds
	s.logger.Info("configuration reloaded", "rules", len(nextCfg.Rule))
	return nil
}

// handleAlerts serves active alert snapshots.
// Params: GET request.
// Returns: JSON body with security and performance alerts.
func (s *Service) handleAlerts(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(writer, map[string]any{
		"security":    s.monitor.GetActiveAlerts(),
		"performance": s.monitor.ActivePerformanceAlerts(),
	})
}

// handleResolve resolves one alert by id.
// Params: POST request with alert_id and resolved_by.
// Returns: JSON body reporting whether the transition happened.
func (s *Service) handleResolve(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		AlertID    string `json:"alert_id"`
		ResolvedBy string `json:"resolved_by"`
	}
	if err := decodeJSONBody(writer, request, &payload); err != nil {
		writer.WriteHeader(http.StatusBadRequest)
		return
	}
	if payload.AlertID == "" {
		writer.WriteHeader(http.StatusBadRequest)
		return
	}
	resolved := s.monitor.ResolveAlert(payload.AlertID, payload.ResolvedBy)
	writeJSON(writer, map[string]bool{"resolved": resolved})
}

// handlePerformanceReport serves the aggregate performance report.
// Params: GET request with period query parameter.
// Returns: JSON report or 400 for unknown periods.
func (s *Service) handlePerformanceReport(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	snapshot, err := s.monitor.GeneratePerformanceReport(requestPeriod(request))
	if err != nil {
		writer.WriteHeader(http.StatusBadRequest)
		return
	}
	writeJSON(writer, snapshot)
}

// handleSecurityStats serves the aggregate security statistics.
// Params: GET request with period query parameter.
// Returns: JSON stats or 400 for unknown periods.
func (s *Service) handleSecurityStats(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	snapshot, err := s.monitor.GetSecurityStats(requestPeriod(request))
	if err != nil {
		writer.WriteHeader(http.StatusBadRequest)
		return
	}
	writeJSON(writer, snapshot)
}

// handleSlowest serves the slowest-operations ranking.
// Params: GET request with period, category, and limit query parameters.
// Returns: JSON ranking or 400 for unknown periods.
func (s *Service) handleSlowest(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	category := domain.MetricCategory(request.URL.Query().Get("category"))
	if category != "" && !category.IsValid() {
		writer.WriteHeader(http.StatusBadRequest)
		return
	}
	limit := 0
	if raw := request.URL.Query().Get("limit"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &limit); err != nil {
			writer.WriteHeader(http.StatusBadRequest)
			return
		}
	}
	ranking, err := s.monitor.SlowestOperations(requestPeriod(request), category, limit)
	if err != nil {
		writer.WriteHeader(http.StatusBadRequest)
		return
	}
	writeJSON(writer, ranking)
}

// handleThresholds applies a partial threshold override.
// Params: POST request with nullable threshold fields.
// Returns: JSON body with the resulting thresholds.
func (s *Service) handleThresholds(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var override config.ThresholdOverride
	if err := decodeJSONBody(writer, request, &override); err != nil {
		writer.WriteHeader(http.StatusBadRequest)
		return
	}
	writeJSON(writer, s.monitor.UpdateThresholds(override))
}

// requestPeriod reads the period query parameter with an hour default.
// Params: HTTP request.
// Returns: report period value.
func requestPeriod(request *http.Request) report.Period {
	raw := request.URL.Query().Get("period")
	if raw == "" {
		return report.PeriodHour
	}
	return report.Period(raw)
}

// decodeJSONBody decodes one size-limited JSON request body.
// Params: writer/request pair and destination value.
// Returns: decode error.
func decodeJSONBody(writer http.ResponseWriter, request *http.Request, dst any) error {
	request.Body = http.MaxBytesReader(writer, request.Body, 1<<20)
	defer request.Body.Close()
	body, err := io.ReadAll(request.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, dst)
}

// writeJSON writes one JSON response with status 200.
// Params: writer and payload.
// Returns: encode failures are silently dropped after headers are sent.
func writeJSON(writer http.ResponseWriter, payload any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(writer).Encode(payload)
}

func isSingleMode(cfg config.Config) bool {
	return cfg.Service.Mode == config.ServiceModeSingle
}
