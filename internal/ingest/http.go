package ingest

import (
	"io"
	"net/http"

	"sentinel/internal/domain"
)

// Sink receives decoded payloads from ingest interfaces.
// Params: validated metric or event.
// Returns: processing error.
type Sink interface {
	PushMetric(metric domain.Metric) error
	PushSecurityEvent(event domain.SecurityEvent) error
}

// BlockChecker answers whether a source IP is currently blocked.
// Params: source IP string.
// Returns: true while a block is active.
type BlockChecker interface {
	IsIPBlocked(ipAddress string) bool
}

// MetricHandler decodes JSON metrics and forwards them to the sink.
type MetricHandler struct {
	sink        Sink
	maxBodySize int64
}

// NewMetricHandler creates metric ingest HTTP handler.
// Params: sink and max request body size in bytes.
// Returns: configured handler.
func NewMetricHandler(sink Sink, maxBodySize int64) *MetricHandler {
	return &MetricHandler{sink: sink, maxBodySize: maxBodySize}
}

// ServeHTTP handles one incoming metric request.
// Params: HTTP request/response writer pair.
// Returns: writes status code according to decode/push result.
func (h *MetricHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	body, ok := readBody(writer, request, h.maxBodySize)
	if !ok {
		return
	}

	metric, err := domain.DecodeMetric(body)
	if err != nil {
		writer.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.sink.PushMetric(metric); err != nil {
		writer.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	writer.WriteHeader(http.StatusAccepted)
}

// EventHandler decodes JSON security events and forwards them to the sink.
// Requests carrying an actively blocked source IP are rejected.
type EventHandler struct {
	sink        Sink
	blocks      BlockChecker
	maxBodySize int64
}

// NewEventHandler creates security event ingest HTTP handler.
// Params: sink, block checker (nil disables the gate), and body limit.
// Returns: configured handler.
func NewEventHandler(sink Sink, blocks BlockChecker, maxBodySize int64) *EventHandler {
	return &EventHandler{sink: sink, blocks: blocks, maxBodySize: maxBodySize}
}

// ServeHTTP handles one incoming security event request.
// Params: HTTP request/response writer pair.
// Returns: writes status code according to gate/decode/push result.
func (h *EventHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	body, ok := readBody(writer, request, h.maxBodySize)
	if !ok {
		return
	}

	event, err := domain.DecodeSecurityEvent(body)
	if err != nil {
		writer.WriteHeader(http.StatusBadRequest)
		return
	}

	if h.blocks != nil && h.blocks.IsIPBlocked(event.IPAddress) {
		writer.WriteHeader(http.StatusForbidden)
		return
	}

	if err := h.sink.PushSecurityEvent(event); err != nil {
		writer.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	writer.WriteHeader(http.StatusAccepted)
}

// readBody enforces method and size limits for ingest endpoints.
// Params: writer/request pair and max body size.
// Returns: raw payload and true, or false after writing an error status.
func readBody(writer http.ResponseWriter, request *http.Request, maxBodySize int64) ([]byte, bool) {
	if request.Method != http.MethodPost {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return nil, false
	}

	request.Body = http.MaxBytesReader(writer, request.Body, maxBodySize)
	defer request.Body.Close()
	body, err := io.ReadAll(request.Body)
	if err != nil {
		writer.WriteHeader(http.StatusBadRequest)
		return nil, false
	}
	return body, true
}
