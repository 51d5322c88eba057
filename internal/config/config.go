package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultHTTPListen         = ":8080"
	defaultHealthPath         = "/healthz"
	defaultReadyPath          = "/readyz"
	defaultMetricsPath        = "/ingest/metrics"
	defaultEventsPath         = "/ingest/events"
	defaultMaxBodyBytes       = 1 << 20
	defaultNATSURL            = "nats://127.0.0.1:4222"
	defaultNATSSubject        = "sentinel.events"
	defaultNATSStream         = "SENTINEL_EVENTS"
	defaultNATSConsumer       = "sentinel-ingest"
	defaultNATSGroup          = "sentinel-workers"
	defaultNATSAckWaitSec     = 30
	defaultNATSNackDelayMS    = 1000
	defaultNATSMaxDeliver     = -1
	defaultNATSMaxAckPending  = 2048
	defaultPersistStream      = "SENTINEL_ARCHIVE"
	defaultEventSubject       = "sentinel.persist.events"
	defaultNotifySubject      = "sentinel.persist.notifications"
	defaultPersistQueueSize   = 1024
	defaultHousekeepingSec    = 3600
	defaultSweepSec           = 600
	defaultRetentionDays      = 7
	defaultReloadSec          = 5
	defaultSamplerIntervalSec = 30
	defaultRetryAttempts      = 3
	defaultRetryBackoffMS     = 500
	defaultWebhookTimeoutSec  = 10

	// ServiceModeSingle keeps pure in-memory mode without NATS dependencies.
	ServiceModeSingle = "single"
	// ServiceModeNATS enables NATS ingest and fire-and-forget persistence.
	ServiceModeNATS = "nats"

	// RuleRateLimit identifies the brute-force frequency detector.
	RuleRateLimit = "rate_limit"
	// RuleGeoBlock identifies the login-geography detector.
	RuleGeoBlock = "geo_block"
	// RulePatternDetection identifies the malicious-payload detector.
	RulePatternDetection = "pattern_detection"
	// RuleBehaviorAnalysis identifies the behavioral heuristics detector.
	RuleBehaviorAnalysis = "behavior_analysis"
)

var supportedRuleTypes = map[string]struct{}{
	RuleRateLimit:        {},
	RuleGeoBlock:         {},
	RulePatternDetection: {},
	RuleBehaviorAnalysis: {},
}

var supportedActions = map[string]struct{}{
	"log":    {},
	"alert":  {},
	"block":  {},
	"notify": {},
}

// Config holds service runtime settings, thresholds, and security rules.
// Params: TOML sections from file or merged directory snapshot.
// Returns: validated runtime configuration.
type Config struct {
	Service    ServiceConfig  `toml:"service"`
	Log        LogConfig      `toml:"log"`
	Thresholds Thresholds     `toml:"thresholds"`
	Ingest     IngestConfig   `toml:"ingest"`
	Persist    PersistConfig  `toml:"persist"`
	Notify     NotifyConfig   `toml:"notify"`
	Sampler    SamplerConfig  `toml:"sampler"`
	Rule       []SecurityRule `toml:"rule"`
}

// rawConfig mirrors TOML model before rule-map normalization.
// Params: decoded sections with rules keyed by `[rule.<name>]`.
// Returns: raw snapshot used for normalization.
type rawConfig struct {
	Service    ServiceConfig              `toml:"service"`
	Log        LogConfig                  `toml:"log"`
	Thresholds Thresholds                 `toml:"thresholds"`
	Ingest     IngestConfig               `toml:"ingest"`
	Persist    PersistConfig              `toml:"persist"`
	Notify     NotifyConfig               `toml:"notify"`
	Sampler    SamplerConfig              `toml:"sampler"`
	Rule       map[string]rawSecurityRule `toml:"rule"`
}

// rawSecurityRule stores one rule body from `[rule.<name>]` table.
// Params: rule fields except the key-derived name.
// Returns: intermediate rule body used for normalization.
type rawSecurityRule struct {
	Type       string         `toml:"type"`
	Enabled    *bool          `toml:"enabled"`
	Actions    []string       `toml:"actions"`
	Parameters RuleParameters `toml:"parameters"`
}

// ServiceConfig contains process-level settings.
// Params: service name, mode, housekeeping and reload intervals.
// Returns: service behavior defaults.
type ServiceConfig struct {
	Name                 string `toml:"name"`
	Mode                 string `toml:"mode"`
	HousekeepingInterval int    `toml:"housekeeping_interval_sec"`
	SweepInterval        int    `toml:"sweep_interval_sec"`
	RetentionDays        int    `toml:"retention_days"`
	ReloadEnabled        bool   `toml:"reload_enabled"`
	ReloadIntervalSec    int    `toml:"reload_interval_sec"`
}

// LogConfig selects logger sinks.
// Params: console and file sink settings.
// Returns: logging behavior.
type LogConfig struct {
	Console LogSinkConfig `toml:"console"`
	File    LogSinkConfig `toml:"file"`
}

// LogSinkConfig configures one log sink.
// Params: enabled flag, path (file sink), level, and format.
// Returns: sink behavior.
type LogSinkConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
	Level   string `toml:"level"`
	Format  string `toml:"format"`
}

// Thresholds holds global performance thresholds by metric family.
// Params: numeric limits mapped to metric-name substrings.
// Returns: threshold set consumed by the performance detector.
type Thresholds struct {
	APIResponseTimeMS   float64 `toml:"api_response_time_ms"`
	DatabaseQueryTimeMS float64 `toml:"database_query_time_ms"`
	PageLoadTimeMS      float64 `toml:"page_load_time_ms"`
	MemoryUsagePercent  float64 `toml:"memory_usage_percent"`
	CPUUsagePercent     float64 `toml:"cpu_usage_percent"`
}

// ThresholdOverride is a partial thresholds update.
// Params: nil fields keep current values.
// Returns: hot-update payload for UpdateThresholds.
type ThresholdOverride struct {
	APIResponseTimeMS   *float64 `json:"api_response_time_ms,omitempty"`
	DatabaseQueryTimeMS *float64 `json:"database_query_time_ms,omitempty"`
	PageLoadTimeMS      *float64 `json:"page_load_time_ms,omitempty"`
	MemoryUsagePercent  *float64 `json:"memory_usage_percent,omitempty"`
	CPUUsagePercent     *float64 `json:"cpu_usage_percent,omitempty"`
}

// Apply merges non-nil override fields into a thresholds copy.
// Params: current thresholds value.
// Returns: updated thresholds snapshot.
func (o ThresholdOverride) Apply(current Thresholds) Thresholds {
	next := current
	if o.APIResponseTimeMS != nil {
		next.APIResponseTimeMS = *o.APIResponseTimeMS
	}
	if o.DatabaseQueryTimeMS != nil {
		next.DatabaseQueryTimeMS = *o.DatabaseQueryTimeMS
	}
	if o.PageLoadTimeMS != nil {
		next.PageLoadTimeMS = *o.PageLoadTimeMS
	}
	if o.MemoryUsagePercent != nil {
		next.MemoryUsagePercent = *o.MemoryUsagePercent
	}
	if o.CPUUsagePercent != nil {
		next.CPUUsagePercent = *o.CPUUsagePercent
	}
	return next
}

// IngestConfig defines inbound interfaces.
// Params: embedded HTTP and NATS subscription controls.
// Returns: ingestion runtime options.
type IngestConfig struct {
	HTTP HTTPIngestConfig `toml:"http"`
	NATS NATSIngestConfig `toml:"nats"`
}

// HTTPIngestConfig configures the HTTP ingest/reporting endpoint.
// Params: enable flag, listen address, endpoint paths, and body limit.
// Returns: HTTP server behavior.
type HTTPIngestConfig struct {
	Enabled      bool   `toml:"enabled"`
	Listen       string `toml:"listen"`
	HealthPath   string `toml:"health_path"`
	ReadyPath    string `toml:"ready_path"`
	MetricsPath  string `toml:"metrics_path"`
	EventsPath   string `toml:"events_path"`
	MaxBodyBytes int64  `toml:"max_body_bytes"`
}

// NATSIngestConfig configures JetStream queue-consumer event ingestion.
// Params: connection plus ack/redelivery policy.
// Returns: NATS ingest behavior.
type NATSIngestConfig struct {
	Enabled       bool     `toml:"enabled"`
	URL           []string `toml:"url"`
	Subject       string   `toml:"subject"`
	Stream        string   `toml:"stream"`
	ConsumerName  string   `toml:"consumer_name"`
	DeliverGroup  string   `toml:"deliver_group"`
	AckWaitSec    int      `toml:"ack_wait_sec"`
	NackDelayMS   int      `toml:"nack_delay_ms"`
	MaxDeliver    int      `toml:"max_deliver"`
	MaxAckPending int      `toml:"max_ack_pending"`
}

// PersistConfig configures fire-and-forget persistence publishing.
// Params: NATS connection, subjects, and submit queue size.
// Returns: persistence behavior for events and notifications.
type PersistConfig struct {
	Enabled             bool     `toml:"enabled"`
	URL                 []string `toml:"url"`
	Stream              string   `toml:"stream"`
	EventSubject        string   `toml:"event_subject"`
	NotificationSubject string   `toml:"notification_subject"`
	QueueSize           int      `toml:"queue_size"`
}

// NotifyConfig configures outbound notification channels.
// Params: per-channel transport settings.
// Returns: notification behavior for the notify alert action.
type NotifyConfig struct {
	Webhook  WebhookNotifier  `toml:"webhook"`
	Telegram TelegramNotifier `toml:"telegram"`
}

// WebhookNotifier configures generic HTTP POST notification delivery.
// Params: endpoint URL, timeout, and retry policy.
// Returns: webhook channel settings.
type WebhookNotifier struct {
	Enabled    bool        `toml:"enabled"`
	URL        string      `toml:"url"`
	TimeoutSec int         `toml:"timeout_sec"`
	Retry      NotifyRetry `toml:"retry"`
}

// TelegramNotifier configures Telegram bot notification delivery.
// Params: bot token, destination chat, and retry policy.
// Returns: telegram channel settings.
type TelegramNotifier struct {
	Enabled bool        `toml:"enabled"`
	Token   string      `toml:"token"`
	ChatID  int64       `toml:"chat_id"`
	Retry   NotifyRetry `toml:"retry"`
}

// NotifyRetry holds per-channel delivery retry policy.
// Params: attempt count and fixed backoff.
// Returns: retry settings used by the dispatcher.
type NotifyRetry struct {
	Attempts  int `toml:"attempts"`
	BackoffMS int `toml:"backoff_ms"`
}

// SamplerConfig configures the host metrics sampler.
// Params: enabled flag and sampling interval.
// Returns: sampler behavior feeding cpu/memory metrics.
type SamplerConfig struct {
	Enabled     bool `toml:"enabled"`
	IntervalSec int  `toml:"interval_sec"`
}

// SecurityRule is one configured detector instance.
// Params: rule identity, type, toggle, actions, and parameters.
// Returns: static rule snapshot loaded at startup or reload.
type SecurityRule struct {
	Name       string         `toml:"name"`
	Type       string         `toml:"type"`
	Enabled    bool           `toml:"enabled"`
	Actions    []string       `toml:"actions"`
	Parameters RuleParameters `toml:"parameters"`
}

// RuleParameters holds type-specific detector tuning.
// Params: union of all supported rule parameter fields.
// Returns: parameter snapshot; unused fields stay zero.
type RuleParameters struct {
	MaxAttempts          int      `toml:"max_attempts"`
	WindowMinutes        int      `toml:"window_minutes"`
	BlockDurationMinutes int      `toml:"block_duration_minutes"`
	AllowedCountries     []string `toml:"allowed_countries"`
	Patterns             []string `toml:"patterns"`
	SensitiveActions     []string `toml:"sensitive_actions"`
	SensitiveAccessMax   int      `toml:"sensitive_access_max"`
	SensitiveWindowMin   int      `toml:"sensitive_window_minutes"`
}

// HasAction reports whether rule actions contain one action token.
// Params: action token.
// Returns: true when action is configured.
func (r SecurityRule) HasAction(action string) bool {
	for _, item := range r.Actions {
		if item == action {
			return true
		}
	}
	return false
}

// ConfigSource points to one file or one directory of TOML fragments.
// Params: mutually exclusive file/dir paths.
// Returns: load target for snapshots.
type ConfigSource struct {
	FilePath string
	DirPath  string
}

// FromCLI builds config source from CLI flags.
// Params: file path and directory path (exactly one must be set).
// Returns: source or flag-usage error.
func FromCLI(filePath, dirPath string) (ConfigSource, error) {
	filePath = strings.TrimSpace(filePath)
	dirPath = strings.TrimSpace(dirPath)
	if (filePath == "") == (dirPath == "") {
		return ConfigSource{}, errors.New("exactly one of -config-file or -config-dir is required")
	}
	return ConfigSource{FilePath: filePath, DirPath: dirPath}, nil
}

// LoadSnapshot loads, merges, and validates one config snapshot.
// Params: config source.
// Returns: validated config or load error.
func LoadSnapshot(src ConfigSource) (Config, error) {
	var (
		cfg Config
		err error
	)
	if src.FilePath != "" {
		cfg, err = loadFile(src.FilePath)
	} else {
		cfg, err = loadDir(src.DirPath)
	}
	if err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadFile decodes one TOML config file.
// Params: file path.
// Returns: raw-normalized config or decode error.
func loadFile(path string) (Config, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %q: %w", path, err)
	}
	var raw rawConfig
	if err := toml.Unmarshal(body, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config %q: %w", path, err)
	}
	return normalizeRawConfig(raw)
}

// loadDir merges all *.toml fragments in lexical order.
// Params: directory path.
// Returns: merged config; later fragments override scalar sections and
// add/replace rules by name.
func loadDir(dir string) (Config, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Config{}, fmt.Errorf("read config dir %q: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}
		names = append(names, entry.Name())
	}
	if len(names) == 0 {
		return Config{}, fmt.Errorf("config dir %q contains no *.toml files", dir)
	}
	sort.Strings(names)

	merged := rawConfig{Rule: make(map[string]rawSecurityRule)}
	for _, name := range names {
		body, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return Config{}, fmt.Errorf("read config fragment %q: %w", name, err)
		}
		var fragment rawConfig
		if err := toml.Unmarshal(body, &fragment); err != nil {
			return Config{}, fmt.Errorf("parse config fragment %q: %w", name, err)
		}
		mergeRawConfig(&merged, fragment)
	}
	return normalizeRawConfig(merged)
}

// mergeRawConfig overlays one fragment onto the merged snapshot.
// Params: destination snapshot and source fragment.
// Returns: destination updated in place.
func mergeRawConfig(dst *rawConfig, src rawConfig) {
	if src.Service != (ServiceConfig{}) {
		dst.Service = src.Service
	}
	if src.Log != (LogConfig{}) {
		dst.Log = src.Log
	}
	if src.Thresholds != (Thresholds{}) {
		dst.Thresholds = src.Thresholds
	}
	if hasHTTPIngest(src.Ingest.HTTP) {
		dst.Ingest.HTTP = src.Ingest.HTTP
	}
	if hasNATSIngest(src.Ingest.NATS) {
		dst.Ingest.NATS = src.Ingest.NATS
	}
	if hasPersist(src.Persist) {
		dst.Persist = src.Persist
	}
	if src.Notify.Webhook.Enabled || src.Notify.Webhook.URL != "" {
		dst.Notify.Webhook = src.Notify.Webhook
	}
	if src.Notify.Telegram.Enabled || src.Notify.Telegram.Token != "" {
		dst.Notify.Telegram = src.Notify.Telegram
	}
	if src.Sampler != (SamplerConfig{}) {
		dst.Sampler = src.Sampler
	}
	for name, rule := range src.Rule {
		dst.Rule[name] = rule
	}
}

func hasHTTPIngest(cfg HTTPIngestConfig) bool {
	return cfg.Enabled ||
		strings.TrimSpace(cfg.Listen) != "" ||
		strings.TrimSpace(cfg.MetricsPath) != "" ||
		strings.TrimSpace(cfg.EventsPath) != "" ||
		cfg.MaxBodyBytes != 0
}

func hasNATSIngest(cfg NATSIngestConfig) bool {
	return cfg.Enabled || len(cfg.URL) > 0 || strings.TrimSpace(cfg.Subject) != ""
}

func hasPersist(cfg PersistConfig) bool {
	return cfg.Enabled || len(cfg.URL) > 0 ||
		strings.TrimSpace(cfg.EventSubject) != "" ||
		strings.TrimSpace(cfg.NotificationSubject) != ""
}

// normalizeRawConfig converts rule map into sorted named rule slice.
// Params: raw decoded snapshot.
// Returns: normalized config or rule-name error.
func normalizeRawConfig(raw rawConfig) (Config, error) {
	cfg := Config{
		Service:    raw.Service,
		Log:        raw.Log,
		Thresholds: raw.Thresholds,
		Ingest:     raw.Ingest,
		Persist:    raw.Persist,
		Notify:     raw.Notify,
		Sampler:    raw.Sampler,
	}
	if len(raw.Rule) == 0 {
		return cfg, nil
	}
	names := make([]string, 0, len(raw.Rule))
	for name := range raw.Rule {
		if strings.TrimSpace(name) == "" {
			return Config{}, errors.New("rule table key must not be empty")
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		body := raw.Rule[name]
		enabled := true
		if body.Enabled != nil {
			enabled = *body.Enabled
		}
		cfg.Rule = append(cfg.Rule, SecurityRule{
			Name:       name,
			Type:       strings.ToLower(strings.TrimSpace(body.Type)),
			Enabled:    enabled,
			Actions:    normalizeActions(body.Actions),
			Parameters: body.Parameters,
		})
	}
	return cfg, nil
}

// normalizeActions lowercases and dedups action tokens preserving order.
// Params: raw action list.
// Returns: normalized action list.
func normalizeActions(actions []string) []string {
	if len(actions) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(actions))
	out := make([]string, 0, len(actions))
	for _, action := range actions {
		normalized := strings.ToLower(strings.TrimSpace(action))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

// applyDefaults fills zero-valued settings with runtime defaults.
// Params: mutable config pointer.
// Returns: config updated in place.
func applyDefaults(cfg *Config) {
	if cfg.Service.Name == "" {
		cfg.Service.Name = "sentinel"
	}
	if cfg.Service.Mode == "" {
		cfg.Service.Mode = ServiceModeSingle
	}
	cfg.Service.Mode = strings.ToLower(strings.TrimSpace(cfg.Service.Mode))
	if cfg.Service.HousekeepingInterval <= 0 {
		cfg.Service.HousekeepingInterval = defaultHousekeepingSec
	}
	if cfg.Service.SweepInterval <= 0 {
		cfg.Service.SweepInterval = defaultSweepSec
	}
	if cfg.Service.RetentionDays <= 0 {
		cfg.Service.RetentionDays = defaultRetentionDays
	}
	if cfg.Service.ReloadIntervalSec <= 0 {
		cfg.Service.ReloadIntervalSec = defaultReloadSec
	}

	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}
	applySinkDefaults(&cfg.Log.Console)
	applySinkDefaults(&cfg.Log.File)

	if cfg.Thresholds.APIResponseTimeMS <= 0 {
		cfg.Thresholds.APIResponseTimeMS = 1000
	}
	if cfg.Thresholds.DatabaseQueryTimeMS <= 0 {
		cfg.Thresholds.DatabaseQueryTimeMS = 500
	}
	if cfg.Thresholds.PageLoadTimeMS <= 0 {
		cfg.Thresholds.PageLoadTimeMS = 3000
	}
	if cfg.Thresholds.MemoryUsagePercent <= 0 {
		cfg.Thresholds.MemoryUsagePercent = 85
	}
	if cfg.Thresholds.CPUUsagePercent <= 0 {
		cfg.Thresholds.CPUUsagePercent = 90
	}

	if cfg.Ingest.HTTP.Listen == "" {
		cfg.Ingest.HTTP.Listen = defaultHTTPListen
	}
	if cfg.Ingest.HTTP.HealthPath == "" {
		cfg.Ingest.HTTP.HealthPath = defaultHealthPath
	}
	if cfg.Ingest.HTTP.ReadyPath == "" {
		cfg.Ingest.HTTP.ReadyPath = defaultReadyPath
	}
	if cfg.Ingest.HTTP.MetricsPath == "" {
		cfg.Ingest.HTTP.MetricsPath = defaultMetricsPath
	}
	if cfg.Ingest.HTTP.EventsPath == "" {
		cfg.Ingest.HTTP.EventsPath = defaultEventsPath
	}
	if cfg.Ingest.HTTP.MaxBodyBytes <= 0 {
		cfg.Ingest.HTTP.MaxBodyBytes = defaultMaxBodyBytes
	}

	if len(cfg.Ingest.NATS.URL) == 0 {
		cfg.Ingest.NATS.URL = []string{defaultNATSURL}
	}
	if cfg.Ingest.NATS.Subject == "" {
		cfg.Ingest.NATS.Subject = defaultNATSSubject
	}
	if cfg.Ingest.NATS.Stream == "" {
		cfg.Ingest.NATS.Stream = defaultNATSStream
	}
	if cfg.Ingest.NATS.ConsumerName == "" {
		cfg.Ingest.NATS.ConsumerName = defaultNATSConsumer
	}
	if cfg.Ingest.NATS.DeliverGroup == "" {
		cfg.Ingest.NATS.DeliverGroup = defaultNATSGroup
	}
	if cfg.Ingest.NATS.AckWaitSec <= 0 {
		cfg.Ingest.NATS.AckWaitSec = defaultNATSAckWaitSec
	}
	if cfg.Ingest.NATS.NackDelayMS <= 0 {
		cfg.Ingest.NATS.NackDelayMS = defaultNATSNackDelayMS
	}
	if cfg.Ingest.NATS.MaxDeliver == 0 {
		cfg.Ingest.NATS.MaxDeliver = defaultNATSMaxDeliver
	}
	if cfg.Ingest.NATS.MaxAckPending <= 0 {
		cfg.Ingest.NATS.MaxAckPending = defaultNATSMaxAckPending
	}

	if len(cfg.Persist.URL) == 0 {
		cfg.Persist.URL = []string{defaultNATSURL}
	}
	if cfg.Persist.Stream == "" {
		cfg.Persist.Stream = defaultPersistStream
	}
	if cfg.Persist.EventSubject == "" {
		cfg.Persist.EventSubject = defaultEventSubject
	}
	if cfg.Persist.NotificationSubject == "" {
		cfg.Persist.NotificationSubject = defaultNotifySubject
	}
	if cfg.Persist.QueueSize <= 0 {
		cfg.Persist.QueueSize = defaultPersistQueueSize
	}

	applyRetryDefaults(&cfg.Notify.Webhook.Retry)
	applyRetryDefaults(&cfg.Notify.Telegram.Retry)
	if cfg.Notify.Webhook.TimeoutSec <= 0 {
		cfg.Notify.Webhook.TimeoutSec = defaultWebhookTimeoutSec
	}

	if cfg.Sampler.IntervalSec <= 0 {
		cfg.Sampler.IntervalSec = defaultSamplerIntervalSec
	}
}

func applySinkDefaults(sink *LogSinkConfig) {
	if sink.Level == "" {
		sink.Level = "info"
	}
	if sink.Format == "" {
		sink.Format = "line"
	}
}

func applyRetryDefaults(retry *NotifyRetry) {
	if retry.Attempts <= 0 {
		retry.Attempts = defaultRetryAttempts
	}
	if retry.BackoffMS <= 0 {
		retry.BackoffMS = defaultRetryBackoffMS
	}
}

// Validate validates one config snapshot against schema constraints.
// Params: normalized config with defaults applied.
// Returns: first validation error.
func Validate(cfg Config) error {
	switch cfg.Service.Mode {
	case ServiceModeSingle, ServiceModeNATS:
	default:
		return fmt.Errorf("unsupported service.mode %q", cfg.Service.Mode)
	}
	if cfg.Service.Mode == ServiceModeSingle {
		if cfg.Ingest.NATS.Enabled {
			return errors.New("ingest.nats requires service.mode=nats")
		}
		if cfg.Persist.Enabled {
			return errors.New("persist requires service.mode=nats")
		}
	}
	if cfg.Log.File.Enabled && strings.TrimSpace(cfg.Log.File.Path) == "" {
		return errors.New("log.file.path is required when file sink is enabled")
	}
	if cfg.Notify.Webhook.Enabled && strings.TrimSpace(cfg.Notify.Webhook.URL) == "" {
		return errors.New("notify.webhook.url is required when webhook is enabled")
	}
	if cfg.Notify.Telegram.Enabled {
		if strings.TrimSpace(cfg.Notify.Telegram.Token) == "" {
			return errors.New("notify.telegram.token is required when telegram is enabled")
		}
		if cfg.Notify.Telegram.ChatID == 0 {
			return errors.New("notify.telegram.chat_id is required when telegram is enabled")
		}
	}

	seen := make(map[string]struct{}, len(cfg.Rule))
	for i, rule := range cfg.Rule {
		if err := validateRule(rule); err != nil {
			return fmt.Errorf("rule[%d] %q: %w", i, rule.Name, err)
		}
		if _, exists := seen[rule.Name]; exists {
			return fmt.Errorf("duplicate rule name %q", rule.Name)
		}
		seen[rule.Name] = struct{}{}
	}
	return nil
}

// validateRule validates one security rule against schema constraints.
// Params: one normalized rule.
// Returns: rule-level validation error.
func validateRule(rule SecurityRule) error {
	if strings.TrimSpace(rule.Name) == "" {
		return errors.New("name is required")
	}
	if _, ok := supportedRuleTypes[rule.Type]; !ok {
		return fmt.Errorf("unsupported type %q", rule.Type)
	}
	for _, action := range rule.Actions {
		if _, ok := supportedActions[action]; !ok {
			return fmt.Errorf("unsupported action %q", action)
		}
	}

	switch rule.Type {
	case RuleRateLimit:
		if rule.Parameters.MaxAttempts < 1 {
			return errors.New("parameters.max_attempts must be >=1")
		}
		if rule.Parameters.WindowMinutes < 1 {
			return errors.New("parameters.window_minutes must be >=1")
		}
		if rule.HasAction("block") && rule.Parameters.BlockDurationMinutes < 1 {
			return errors.New("parameters.block_duration_minutes must be >=1 for block action")
		}
	case RuleGeoBlock:
		if len(rule.Parameters.AllowedCountries) == 0 {
			return errors.New("parameters.allowed_countries is required")
		}
	case RulePatternDetection:
		if len(rule.Parameters.Patterns) == 0 {
			return errors.New("parameters.patterns is required")
		}
	case RuleBehaviorAnalysis:
		if rule.Parameters.SensitiveAccessMax < 0 {
			return errors.New("parameters.sensitive_access_max must be >=0")
		}
	}
	return nil
}

// WindowDuration converts window_minutes into time.Duration.
// Params: none.
// Returns: rate-limit window width.
func (p RuleParameters) WindowDuration() time.Duration {
	return time.Duration(p.WindowMinutes) * time.Minute
}

// BlockDuration converts block_duration_minutes into time.Duration.
// Params: none.
// Returns: block entry lifetime.
func (p RuleParameters) BlockDuration() time.Duration {
	return time.Duration(p.BlockDurationMinutes) * time.Minute
}
