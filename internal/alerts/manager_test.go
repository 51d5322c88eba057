package alerts

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"sentinel/internal/clock"
	"sentinel/internal/domain"
	"sentinel/internal/rules"
)

type recordingBlocker struct {
	mu     sync.Mutex
	ips    []string
	expiry time.Time
}

func (b *recordingBlocker) Block(ipAddress string, duration time.Duration) time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ips = append(b.ips, ipAddress)
	return b.expiry
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []domain.SecurityAlert
}

func (n *recordingNotifier) SubmitAlertNotification(alert domain.SecurityAlert) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bruteCandidate(key string) rules.Candidate {
	return rules.Candidate{
		Type:            domain.AlertBruteForce,
		Description:     "5 failed login attempts from 198.51.100.9 within 15 minutes",
		Severity:        domain.SeverityHigh,
		UserID:          "u1",
		IPAddress:       "198.51.100.9",
		RelatedEventIDs: []string{"evt-5"},
		Actions:         []domain.AlertAction{domain.ActionAlert, domain.ActionBlock, domain.ActionNotify},
		BlockDuration:   time.Hour,
		DedupKey:        key,
	}
}

func TestCreateSecurityExecutesActions(t *testing.T) {
	t.Parallel()

	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	blocker := &recordingBlocker{expiry: clk.Now().Add(time.Hour)}
	notifier := &recordingNotifier{}
	mgr := NewManager(discardLogger(), clk, 0, blocker, notifier)

	alert, created := mgr.CreateSecurity(bruteCandidate("brute_force|198.51.100.9|u1"))
	if !created {
		t.Fatal("expected alert creation")
	}
	if alert.ID == "" {
		t.Fatal("expected generated alert id")
	}
	if alert.Resolved {
		t.Fatal("expected alert to open unresolved")
	}
	if len(blocker.ips) != 1 || blocker.ips[0] != "198.51.100.9" {
		t.Fatalf("expected one block for the source ip, got %v", blocker.ips)
	}
	if len(notifier.alerts) != 1 || notifier.alerts[0].ID != alert.ID {
		t.Fatalf("expected one notification for alert %s", alert.ID)
	}
}

func TestCreateSecuritySuppressesOpenDuplicate(t *testing.T) {
	t.Parallel()

	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	blocker := &recordingBlocker{expiry: clk.Now().Add(time.Hour)}
	mgr := NewManager(discardLogger(), clk, 0, blocker, nil)
	key := "brute_force|198.51.100.9|u1"

	first, created := mgr.CreateSecurity(bruteCandidate(key))
	if !created {
		t.Fatal("expected first creation")
	}
	second, created := mgr.CreateSecurity(bruteCandidate(key))
	if created {
		t.Fatal("expected duplicate suppression while alert is open")
	}
	if second.ID != first.ID {
		t.Fatalf("expected existing alert %s, got %s", first.ID, second.ID)
	}
	if len(blocker.ips) != 1 {
		t.Fatalf("expected suppressed duplicate to skip actions, got %d blocks", len(blocker.ips))
	}

	if !mgr.Resolve(first.ID, "analyst") {
		t.Fatal("expected resolve to succeed")
	}
	third, created := mgr.CreateSecurity(bruteCandidate(key))
	if !created {
		t.Fatal("expected fresh alert after resolution")
	}
	if third.ID == first.ID {
		t.Fatal("expected new alert id after resolution")
	}
}

func TestResolveIsTerminal(t *testing.T) {
	t.Parallel()

	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	mgr := NewManager(discardLogger(), clk, 0, nil, nil)

	alert, _ := mgr.CreateSecurity(bruteCandidate("k1"))
	clk.Advance(5 * time.Minute)
	resolvedAt := clk.Now()

	if !mgr.Resolve(alert.ID, "analyst") {
		t.Fatal("expected first resolve to transition")
	}
	if mgr.Resolve(alert.ID, "someone-else") {
		t.Fatal("expected second resolve to report false")
	}

	since := mgr.SecuritySince(time.Time{})
	if len(since) != 1 {
		t.Fatalf("expected 1 stored alert, got %d", len(since))
	}
	stored := since[0]
	if !stored.Resolved || stored.ResolvedBy != "analyst" {
		t.Fatalf("unexpected resolved state %+v", stored)
	}
	if stored.ResolvedAt == nil || !stored.ResolvedAt.Equal(resolvedAt) {
		t.Fatalf("expected resolved_at %v, got %v", resolvedAt, stored.ResolvedAt)
	}
	if active := mgr.ActiveSecurity(); len(active) != 0 {
		t.Fatalf("expected no active alerts, got %d", len(active))
	}

	if mgr.Resolve("missing-id", "analyst") {
		t.Fatal("expected unknown id to report false")
	}
}

func TestResolvePerformanceAlert(t *testing.T) {
	t.Parallel()

	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	mgr := NewManager(discardLogger(), clk, 0, nil, nil)

	alert := mgr.CreatePerformance(rules.PerformanceCandidate{
		MetricName:   "api.latency",
		Threshold:    1000,
		CurrentValue: 2500,
		Severity:     domain.SeverityCritical,
		Message:      "api.latency exceeded threshold: 2500.00ms > 1000.00ms",
	})
	if !mgr.Resolve(alert.ID, "analyst") {
		t.Fatal("expected performance resolve to succeed")
	}
	if mgr.Resolve(alert.ID, "analyst") {
		t.Fatal("expected second performance resolve to report false")
	}
	if active := mgr.ActivePerformance(); len(active) != 0 {
		t.Fatalf("expected no active performance alerts, got %d", len(active))
	}
}

func TestSecurityCapEvictsResolvedFirst(t *testing.T) {
	t.Parallel()

	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	mgr := NewManager(discardLogger(), clk, 3, nil, nil)

	var ids []string
	for i := 0; i < 3; i++ {
		candidate := bruteCandidate(fmt.Sprintf("k%d", i))
		alert, _ := mgr.CreateSecurity(candidate)
		ids = append(ids, alert.ID)
		clk.Advance(time.Minute)
	}
	mgr.Resolve(ids[1], "analyst")

	overflow, _ := mgr.CreateSecurity(bruteCandidate("k3"))
	if got := mgr.SecurityCount(); got != 3 {
		t.Fatalf("expected capacity of 3 alerts, got %d", got)
	}
	stored := mgr.SecuritySince(time.Time{})
	for _, alert := range stored {
		if alert.ID == ids[1] {
			t.Fatal("expected the resolved alert to be evicted first")
		}
	}
	found := false
	for _, alert := range stored {
		if alert.ID == overflow.ID {
			found = true
		}
	}
	if !found {
		t.Fatal("expected the new alert to be retained")
	}
}

func TestSecurityCapEvictsOldestWhenAllOpen(t *testing.T) {
	t.Parallel()

	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	mgr := NewManager(discardLogger(), clk, 2, nil, nil)

	first, _ := mgr.CreateSecurity(bruteCandidate("k0"))
	clk.Advance(time.Minute)
	mgr.CreateSecurity(bruteCandidate("k1"))
	clk.Advance(time.Minute)
	mgr.CreateSecurity(bruteCandidate("k2"))

	stored := mgr.SecuritySince(time.Time{})
	if len(stored) != 2 {
		t.Fatalf("expected 2 retained alerts, got %d", len(stored))
	}
	for _, alert := range stored {
		if alert.ID == first.ID {
			t.Fatal("expected the oldest open alert to be evicted")
		}
	}

	// Eviction dropped k0 from the dedup index, so it can fire again.
	if _, created := mgr.CreateSecurity(bruteCandidate("k0")); !created {
		t.Fatal("expected evicted dedup key to be reusable")
	}
}

func TestEvictOlderThanDropsAgedAlerts(t *testing.T) {
	t.Parallel()

	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	mgr := NewManager(discardLogger(), clk, 0, nil, nil)

	mgr.CreateSecurity(bruteCandidate("old"))
	mgr.CreatePerformance(rules.PerformanceCandidate{MetricName: "api.latency", Threshold: 1000, CurrentValue: 1300, Severity: domain.SeverityMedium})
	clk.Advance(48 * time.Hour)
	fresh, _ := mgr.CreateSecurity(bruteCandidate("fresh"))

	if evicted := mgr.EvictOlderThan(clk.Now().Add(-24 * time.Hour)); evicted != 2 {
		t.Fatalf("expected 2 evicted alerts, got %d", evicted)
	}
	stored := mgr.SecuritySince(time.Time{})
	if len(stored) != 1 || stored[0].ID != fresh.ID {
		t.Fatalf("expected only the fresh alert to survive, got %d", len(stored))
	}

	// Eviction also releases the old dedup key.
	if _, created := mgr.CreateSecurity(bruteCandidate("old")); !created {
		t.Fatal("expected evicted dedup key to be reusable")
	}
}
