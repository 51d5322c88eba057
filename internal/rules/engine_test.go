package rules

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"sentinel/internal/config"
	"sentinel/internal/domain"
)

type stubDetector struct {
	ruleType   string
	candidates []Candidate
	panics     bool
	calls      int
}

func (d *stubDetector) Type() string {
	return d.ruleType
}

func (d *stubDetector) Evaluate(domain.SecurityEvent, config.SecurityRule) []Candidate {
	d.calls++
	if d.panics {
		panic("detector boom")
	}
	return d.candidates
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEvent() domain.SecurityEvent {
	return domain.SecurityEvent{
		ID:        "evt-1",
		Type:      domain.EventLoginFailure,
		IPAddress: "198.51.100.9",
		Severity:  domain.SeverityLow,
		Timestamp: time.Unix(1_700_000_000, 0),
	}
}

func TestEvaluateSkipsDisabledRules(t *testing.T) {
	t.Parallel()

	detector := &stubDetector{
		ruleType:   "rate_limit",
		candidates: []Candidate{{Type: domain.AlertBruteForce}},
	}
	engine := New(discardLogger(), detector)
	engine.SetRules([]config.SecurityRule{
		{Name: "off", Type: "rate_limit", Enabled: false},
	})

	if got := engine.Evaluate(testEvent()); len(got) != 0 {
		t.Fatalf("expected disabled rule to be skipped, got %d candidates", len(got))
	}
	if detector.calls != 0 {
		t.Fatalf("expected zero detector calls, got %d", detector.calls)
	}
}

func TestEvaluateIgnoresUnknownRuleType(t *testing.T) {
	t.Parallel()

	engine := New(discardLogger())
	engine.SetRules([]config.SecurityRule{
		{Name: "mystery", Type: "unknown_type", Enabled: true},
	})

	if got := engine.Evaluate(testEvent()); len(got) != 0 {
		t.Fatalf("expected unknown rule type to be skipped, got %d candidates", len(got))
	}
}

func TestEvaluateIsolatesPanickingDetector(t *testing.T) {
	t.Parallel()

	broken := &stubDetector{ruleType: "rate_limit", panics: true}
	healthy := &stubDetector{
		ruleType:   "pattern_detection",
		candidates: []Candidate{{Type: domain.AlertMaliciousRequest}},
	}
	engine := New(discardLogger(), broken, healthy)
	engine.SetRules([]config.SecurityRule{
		{Name: "broken", Type: "rate_limit", Enabled: true},
		{Name: "healthy", Type: "pattern_detection", Enabled: true},
	})

	got := engine.Evaluate(testEvent())
	if len(got) != 1 {
		t.Fatalf("expected healthy rule to survive the panic, got %d candidates", len(got))
	}
	if got[0].Type != domain.AlertMaliciousRequest {
		t.Fatalf("expected malicious_request candidate, got %s", got[0].Type)
	}
}

func TestEvaluateRunsRulesInOrder(t *testing.T) {
	t.Parallel()

	first := &stubDetector{
		ruleType:   "rate_limit",
		candidates: []Candidate{{Type: domain.AlertBruteForce}},
	}
	second := &stubDetector{
		ruleType:   "behavior_analysis",
		candidates: []Candidate{{Type: domain.AlertPrivilegeEscalation}},
	}
	engine := New(discardLogger(), first, second)
	engine.SetRules([]config.SecurityRule{
		{Name: "a", Type: "rate_limit", Enabled: true},
		{Name: "b", Type: "behavior_analysis", Enabled: true},
	})

	got := engine.Evaluate(testEvent())
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].Type != domain.AlertBruteForce || got[1].Type != domain.AlertPrivilegeEscalation {
		t.Fatalf("unexpected candidate order %s, %s", got[0].Type, got[1].Type)
	}
}
