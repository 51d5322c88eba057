package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"sentinel/internal/config"
	"sentinel/internal/domain"
	"sentinel/internal/permanent"
)

const defaultSendTimeout = 30 * time.Second

// ChannelSender delivers one alert notification to one channel.
// Params: context and alert payload.
// Returns: transport error when delivery fails.
type ChannelSender interface {
	Channel() string
	Send(ctx context.Context, alert domain.SecurityAlert) error
}

// Dispatcher fans alert notifications out to enabled channels.
// Delivery runs on a background worker with per-channel retry;
// submission never blocks alert creation.
type Dispatcher struct {
	senders  map[string]ChannelSender
	channels []string
	retries  map[string]config.NotifyRetry
	logger   *slog.Logger

	jobs      chan domain.SecurityAlert
	done      chan struct{}
	closeOnce sync.Once
}

// NewDispatcher builds dispatcher from enabled channels and starts its worker.
// Params: notify config and logger.
// Returns: running dispatcher; with no channels enabled it stays a silent sink.
func NewDispatcher(cfg config.NotifyConfig, logger *slog.Logger) *Dispatcher {
	senders := make(map[string]ChannelSender)
	retries := make(map[string]config.NotifyRetry)
	if cfg.Webhook.Enabled {
		senders["webhook"] = NewWebhookSender(cfg.Webhook)
		retries["webhook"] = cfg.Webhook.Retry
	}
	if cfg.Telegram.Enabled {
		senders["telegram"] = NewTelegramSender(cfg.Telegram)
		retries["telegram"] = cfg.Telegram.Retry
	}
	channels := make([]string, 0, len(senders))
	for channel := range senders {
		channels = append(channels, channel)
	}
	sort.Strings(channels)

	d := &Dispatcher{
		senders:  senders,
		channels: channels,
		retries:  retries,
		logger:   logger,
		jobs:     make(chan domain.SecurityAlert, 256),
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

// Channels returns configured channel list.
// Params: none.
// Returns: deterministic sender keys.
func (d *Dispatcher) Channels() []string {
	return d.channels
}

// SubmitAlertNotification enqueues one alert for best-effort delivery.
// Params: alert snapshot.
// Returns: none; a full queue drops the notification with a log line.
func (d *Dispatcher) SubmitAlertNotification(alert domain.SecurityAlert) {
	select {
	case d.jobs <- alert:
	default:
		d.logger.Warn("notify queue full, notification dropped", "alert_id", alert.ID, "type", string(alert.Type))
	}
}

// Close stops the delivery worker after draining queued notifications.
// Params: none.
// Returns: nil.
func (d *Dispatcher) Close() error {
	d.closeOnce.Do(func() {
		close(d.jobs)
		<-d.done
	})
	return nil
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for alert := range d.jobs {
		for _, channel := range d.channels {
			d.deliver(channel, alert)
		}
	}
}

// deliver sends one alert to one channel with the channel retry policy.
// Params: channel key and alert payload.
// Returns: none; the final failure is logged, never propagated.
func (d *Dispatcher) deliver(channel string, alert domain.SecurityAlert) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultSendTimeout)
	defer cancel()

	sender := d.senders[channel]
	retry := d.retries[channel]
	attempts := retry.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := time.Duration(retry.BackoffMS) * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = sender.Send(ctx, alert)
		if lastErr == nil {
			if attempt > 1 {
				d.logger.Info("notify send recovered after retries", "channel", channel, "attempt", attempt)
			}
			return
		}
		if permanent.Is(lastErr) || attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			d.logger.Error("notify send abandoned", "channel", channel, "alert_id", alert.ID, "error", ctx.Err().Error())
			return
		case <-time.After(backoff):
		}
	}
	d.logger.Error("notify send failed", "channel", channel, "alert_id", alert.ID, "error", lastErr.Error())
}

// WebhookSender posts alert JSON to a configured HTTP endpoint.
type WebhookSender struct {
	cfg    config.WebhookNotifier
	client *http.Client
}

// NewWebhookSender creates webhook sender.
// Params: webhook notifier config.
// Returns: initialized sender.
func NewWebhookSender(cfg config.WebhookNotifier) *WebhookSender {
	timeoutSec := cfg.TimeoutSec
	if timeoutSec <= 0 {
		timeoutSec = 10
	}
	return &WebhookSender{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}
}

// Channel returns sender channel name.
// Params: none.
// Returns: static channel key.
func (s *WebhookSender) Channel() string {
	return "webhook"
}

// Send delivers alert JSON to the configured endpoint.
// Params: context and alert payload.
// Returns: transport or HTTP error; 4xx responses are permanent.
func (s *WebhookSender) Send(ctx context.Context, alert domain.SecurityAlert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return permanent.Mark(fmt.Errorf("encode webhook payload: %w", err))
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return permanent.Mark(fmt.Errorf("build webhook request: %w", err))
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := s.client.Do(request)
	if err != nil {
		return fmt.Errorf("webhook send: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return unexpectedHTTPStatusError("webhook", response)
	}
	return nil
}

// TelegramSender sends alert messages to the Telegram Bot API.
type TelegramSender struct {
	client  *tgbot.Bot
	chatID  int64
	initErr error
}

// NewTelegramSender creates Telegram sender.
// Params: telegram notifier config.
// Returns: initialized sender; init failures surface on Send.
func NewTelegramSender(cfg config.TelegramNotifier) *TelegramSender {
	sender := &TelegramSender{chatID: cfg.ChatID}
	if strings.TrimSpace(cfg.Token) == "" {
		sender.initErr = permanent.Mark(errors.New("telegram token is required"))
		return sender
	}
	if cfg.ChatID == 0 {
		sender.initErr = permanent.Mark(errors.New("telegram chat_id is required"))
		return sender
	}
	botClient, err := tgbot.New(cfg.Token, tgbot.WithSkipGetMe())
	if err != nil {
		sender.initErr = permanent.Mark(fmt.Errorf("init telegram bot: %w", err))
		return sender
	}
	sender.client = botClient
	return sender
}

// Channel returns sender channel name.
// Params: none.
// Returns: static channel key.
func (s *TelegramSender) Channel() string {
	return "telegram"
}

// Send posts one alert message to the configured chat.
// Params: context and alert payload.
// Returns: transport error.
func (s *TelegramSender) Send(ctx context.Context, alert domain.SecurityAlert) error {
	if s.initErr != nil {
		return s.initErr
	}
	sent, err := s.client.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:    s.chatID,
		Text:      FormatAlertMessage(alert),
		ParseMode: tgmodels.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	if sent == nil || sent.ID <= 0 {
		return errors.New("telegram send returned empty message id")
	}
	return nil
}

// FormatAlertMessage renders one alert as a short human-readable message.
// Params: alert payload.
// Returns: plain text summary for chat channels.
func FormatAlertMessage(alert domain.SecurityAlert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s\n", strings.ToUpper(string(alert.Severity)), alert.Type)
	fmt.Fprintf(&b, "%s\n", alert.Description)
	if alert.IPAddress != "" {
		fmt.Fprintf(&b, "ip: %s\n", alert.IPAddress)
	}
	if alert.UserID != "" {
		fmt.Fprintf(&b, "user: %s\n", alert.UserID)
	}
	fmt.Fprintf(&b, "at: %s", alert.Timestamp.UTC().Format(time.RFC3339))
	return b.String()
}

// unexpectedHTTPStatusError classifies one non-2xx response.
// Params: channel label and HTTP response.
// Returns: error marked permanent for 4xx statuses except 429.
func unexpectedHTTPStatusError(label string, response *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(response.Body, 256))
	err := fmt.Errorf("%s returned status %d: %s", label, response.StatusCode, strings.TrimSpace(string(snippet)))
	if response.StatusCode >= 400 && response.StatusCode < 500 && response.StatusCode != http.StatusTooManyRequests {
		return permanent.Mark(err)
	}
	return err
}
