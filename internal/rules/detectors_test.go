package rules

import (
	"fmt"
	"testing"
	"time"

	"sentinel/internal/clock"
	"sentinel/internal/config"
	"sentinel/internal/domain"
	"sentinel/internal/ratelimit"
	"sentinel/internal/store"
)

func rateLimitRule() config.SecurityRule {
	return config.SecurityRule{
		Name:    "login brute force",
		Type:    config.RuleRateLimit,
		Enabled: true,
		Actions: []string{"block", "alert"},
		Parameters: config.RuleParameters{
			MaxAttempts:          5,
			WindowMinutes:        15,
			BlockDurationMinutes: 60,
		},
	}
}

func loginFailure(ip, userID string, at time.Time) domain.SecurityEvent {
	return domain.SecurityEvent{
		ID:        fmt.Sprintf("evt-%d", at.UnixNano()),
		Type:      domain.EventLoginFailure,
		UserID:    userID,
		IPAddress: ip,
		Severity:  domain.SeverityMedium,
		Timestamp: at,
	}
}

func TestBruteForceFiresAtMaxAttempts(t *testing.T) {
	t.Parallel()

	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	detector := NewBruteForce(ratelimit.NewTracker(clk))
	rule := rateLimitRule()

	for i := 0; i < 4; i++ {
		got := detector.Evaluate(loginFailure("198.51.100.9", "u1", clk.Now()), rule)
		if len(got) != 0 {
			t.Fatalf("attempt %d: expected no candidate, got %d", i+1, len(got))
		}
		clk.Advance(time.Minute)
	}

	got := detector.Evaluate(loginFailure("198.51.100.9", "u1", clk.Now()), rule)
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate on fifth failure, got %d", len(got))
	}
	candidate := got[0]
	if candidate.Type != domain.AlertBruteForce {
		t.Fatalf("expected brute_force candidate, got %s", candidate.Type)
	}
	if candidate.Severity != domain.SeverityHigh {
		t.Fatalf("expected high severity, got %s", candidate.Severity)
	}
	if candidate.BlockDuration != time.Hour {
		t.Fatalf("expected 1h block duration, got %v", candidate.BlockDuration)
	}
	wantKey := string(domain.AlertBruteForce) + "|" + ratelimit.Key("198.51.100.9", "u1")
	if candidate.DedupKey != wantKey {
		t.Fatalf("expected dedup key %q, got %q", wantKey, candidate.DedupKey)
	}
}

func TestBruteForceWindowResets(t *testing.T) {
	t.Parallel()

	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	detector := NewBruteForce(ratelimit.NewTracker(clk))
	rule := rateLimitRule()

	for i := 0; i < 4; i++ {
		detector.Evaluate(loginFailure("198.51.100.9", "u1", clk.Now()), rule)
	}
	clk.Advance(16 * time.Minute)

	got := detector.Evaluate(loginFailure("198.51.100.9", "u1", clk.Now()), rule)
	if len(got) != 0 {
		t.Fatalf("expected reset window to suppress candidate, got %d", len(got))
	}
}

func TestBruteForceWithoutBlockAction(t *testing.T) {
	t.Parallel()

	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	detector := NewBruteForce(ratelimit.NewTracker(clk))
	rule := rateLimitRule()
	rule.Actions = []string{"alert"}

	var got []Candidate
	for i := 0; i < 5; i++ {
		got = detector.Evaluate(loginFailure("198.51.100.9", "u1", clk.Now()), rule)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	if got[0].BlockDuration != 0 {
		t.Fatalf("expected zero block duration without block action, got %v", got[0].BlockDuration)
	}
}

func TestPatternDetectionMatchesCaseInsensitively(t *testing.T) {
	t.Parallel()

	detector := NewPatternDetection()
	rule := config.SecurityRule{
		Name:    "injection signatures",
		Type:    config.RulePatternDetection,
		Enabled: true,
		Actions: []string{"alert"},
		Parameters: config.RuleParameters{
			Patterns: []string{"<script>", "' OR 1=1"},
		},
	}
	event := domain.SecurityEvent{
		ID:        "evt-1",
		Type:      domain.EventLoginAttempt,
		IPAddress: "203.0.113.5",
		Severity:  domain.SeverityMedium,
		Details:   map[string]any{"username": "admin' or 1=1 --"},
		Timestamp: time.Unix(1_700_000_000, 0),
	}

	got := detector.Evaluate(event, rule)
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	candidate := got[0]
	if candidate.Type != domain.AlertMaliciousRequest {
		t.Fatalf("expected malicious_request candidate, got %s", candidate.Type)
	}
	if candidate.BlockDuration != time.Hour {
		t.Fatalf("expected fixed 1h block, got %v", candidate.BlockDuration)
	}
	hasBlock := false
	for _, action := range candidate.Actions {
		if action == domain.ActionBlock {
			hasBlock = true
		}
	}
	if !hasBlock {
		t.Fatal("expected block action appended to candidate")
	}
}

func TestPatternDetectionShortCircuitsOnFirstMatch(t *testing.T) {
	t.Parallel()

	detector := NewPatternDetection()
	rule := config.SecurityRule{
		Name:    "injection signatures",
		Type:    config.RulePatternDetection,
		Enabled: true,
		Actions: []string{"alert", "block"},
		Parameters: config.RuleParameters{
			Patterns: []string{"union select", "<script>"},
		},
	}
	event := domain.SecurityEvent{
		ID:        "evt-1",
		Type:      domain.EventSuspiciousActivity,
		IPAddress: "203.0.113.5",
		Severity:  domain.SeverityMedium,
		Details:   map[string]any{"payload": "UNION SELECT password <script>alert(1)</script>"},
		Timestamp: time.Unix(1_700_000_000, 0),
	}

	got := detector.Evaluate(event, rule)
	if len(got) != 1 {
		t.Fatalf("expected single candidate from first match, got %d", len(got))
	}
	wantKey := string(domain.AlertMaliciousRequest) + "|203.0.113.5|union select"
	if got[0].DedupKey != wantKey {
		t.Fatalf("expected dedup key %q, got %q", wantKey, got[0].DedupKey)
	}
}

func TestPatternDetectionIgnoresEmptyDetails(t *testing.T) {
	t.Parallel()

	detector := NewPatternDetection()
	rule := config.SecurityRule{
		Type:       config.RulePatternDetection,
		Enabled:    true,
		Parameters: config.RuleParameters{Patterns: []string{"<script>"}},
	}
	event := domain.SecurityEvent{
		ID:        "evt-1",
		Type:      domain.EventLoginAttempt,
		IPAddress: "203.0.113.5",
		Severity:  domain.SeverityLow,
		Timestamp: time.Unix(1_700_000_000, 0),
	}
	if got := detector.Evaluate(event, rule); len(got) != 0 {
		t.Fatalf("expected no candidate without details, got %d", len(got))
	}
}

func TestGeoAnomalyAllowsListedCountry(t *testing.T) {
	t.Parallel()

	detector := NewGeoAnomaly()
	rule := config.SecurityRule{
		Type:    config.RuleGeoBlock,
		Enabled: true,
		Actions: []string{"alert", "block"},
		Parameters: config.RuleParameters{
			AllowedCountries: []string{"us", "DE"},
		},
	}
	base := time.Unix(1_700_000_000, 0)

	allowed := domain.SecurityEvent{
		ID:        "evt-1",
		Type:      domain.EventLoginSuccess,
		UserID:    "u1",
		IPAddress: "198.51.100.9",
		Severity:  domain.SeverityLow,
		Timestamp: base,
		Location:  &domain.Location{Country: "US"},
	}
	if got := detector.Evaluate(allowed, rule); len(got) != 0 {
		t.Fatalf("expected allowed country to pass, got %d candidates", len(got))
	}

	denied := allowed
	denied.ID = "evt-2"
	denied.Location = &domain.Location{Country: "kp"}
	got := detector.Evaluate(denied, rule)
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate for disallowed country, got %d", len(got))
	}
	if got[0].Type != domain.AlertSuspiciousLocation {
		t.Fatalf("expected suspicious_location candidate, got %s", got[0].Type)
	}
	if got[0].BlockDuration != 0 {
		t.Fatalf("expected no block from geo detector, got %v", got[0].BlockDuration)
	}
	for _, action := range got[0].Actions {
		if action == domain.ActionBlock {
			t.Fatal("expected block action stripped from geo candidate")
		}
	}
}

func TestGeoAnomalySkipsEventsWithoutLocation(t *testing.T) {
	t.Parallel()

	detector := NewGeoAnomaly()
	rule := config.SecurityRule{
		Type:       config.RuleGeoBlock,
		Enabled:    true,
		Parameters: config.RuleParameters{AllowedCountries: []string{"US"}},
	}
	event := domain.SecurityEvent{
		ID:        "evt-1",
		Type:      domain.EventLoginSuccess,
		IPAddress: "198.51.100.9",
		Severity:  domain.SeverityLow,
		Timestamp: time.Unix(1_700_000_000, 0),
	}
	if got := detector.Evaluate(event, rule); len(got) != 0 {
		t.Fatalf("expected no candidate without location, got %d", len(got))
	}
}

func TestBehaviorFlagsSensitiveAdminAction(t *testing.T) {
	t.Parallel()

	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	events := store.NewEventStore(100)
	detector := NewBehavior(events, clk)
	rule := config.SecurityRule{
		Type:    config.RuleBehaviorAnalysis,
		Enabled: true,
		Actions: []string{"alert", "notify"},
	}

	event := domain.SecurityEvent{
		ID:        "evt-1",
		Type:      domain.EventAdminAction,
		UserID:    "admin-7",
		IPAddress: "198.51.100.9",
		Severity:  domain.SeverityMedium,
		Details:   map[string]any{"action": "role_change"},
		Timestamp: clk.Now(),
	}
	got := detector.Evaluate(event, rule)
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	if got[0].Type != domain.AlertPrivilegeEscalation {
		t.Fatalf("expected privilege_escalation candidate, got %s", got[0].Type)
	}

	event.Details = map[string]any{"action": "view_logs"}
	if got := detector.Evaluate(event, rule); len(got) != 0 {
		t.Fatalf("expected non-sensitive action to pass, got %d candidates", len(got))
	}
}

func TestBehaviorFlagsBulkSensitiveAccess(t *testing.T) {
	t.Parallel()

	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	events := store.NewEventStore(100)
	detector := NewBehavior(events, clk)
	rule := config.SecurityRule{
		Type:    config.RuleBehaviorAnalysis,
		Enabled: true,
		Actions: []string{"alert"},
	}

	var got []Candidate
	for i := 0; i < 11; i++ {
		event := domain.SecurityEvent{
			ID:        fmt.Sprintf("evt-%d", i),
			Type:      domain.EventDataAccess,
			UserID:    "u1",
			IPAddress: "198.51.100.9",
			Severity:  domain.SeverityLow,
			Details:   map[string]any{"sensitive": true},
			Timestamp: clk.Now(),
		}
		events.Append(event)
		got = detector.Evaluate(event, rule)
		if i < 10 && len(got) != 0 {
			t.Fatalf("access %d: expected no candidate, got %d", i+1, len(got))
		}
		clk.Advance(time.Minute)
	}

	if len(got) != 1 {
		t.Fatalf("expected 1 candidate on eleventh access, got %d", len(got))
	}
	if got[0].Type != domain.AlertDataBreach {
		t.Fatalf("expected data_breach candidate, got %s", got[0].Type)
	}
	if got[0].Severity != domain.SeverityCritical {
		t.Fatalf("expected critical severity, got %s", got[0].Severity)
	}
}

func TestBehaviorWindowExcludesStaleAccess(t *testing.T) {
	t.Parallel()

	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	events := store.NewEventStore(100)
	detector := NewBehavior(events, clk)
	rule := config.SecurityRule{
		Type:    config.RuleBehaviorAnalysis,
		Enabled: true,
	}

	for i := 0; i < 10; i++ {
		events.Append(domain.SecurityEvent{
			ID:        fmt.Sprintf("old-%d", i),
			Type:      domain.EventDataAccess,
			UserID:    "u1",
			IPAddress: "198.51.100.9",
			Severity:  domain.SeverityLow,
			Details:   map[string]any{"sensitive": true},
			Timestamp: clk.Now(),
		})
	}
	clk.Advance(2 * time.Hour)

	fresh := domain.SecurityEvent{
		ID:        "evt-fresh",
		Type:      domain.EventDataAccess,
		UserID:    "u1",
		IPAddress: "198.51.100.9",
		Severity:  domain.SeverityLow,
		Details:   map[string]any{"sensitive": true},
		Timestamp: clk.Now(),
	}
	events.Append(fresh)
	if got := detector.Evaluate(fresh, rule); len(got) != 0 {
		t.Fatalf("expected stale accesses outside window to be ignored, got %d candidates", len(got))
	}
}
