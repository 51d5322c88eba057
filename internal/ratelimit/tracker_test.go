package ratelimit

import (
	"testing"
	"time"

	"sentinel/internal/clock"
)

func TestKeyFallsBackToAnonymous(t *testing.T) {
	t.Parallel()

	if got := Key("198.51.100.9", "u1"); got != "198.51.100.9|u1" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := Key("198.51.100.9", ""); got != "198.51.100.9|anonymous" {
		t.Fatalf("unexpected anonymous key %q", got)
	}
}

func TestHitCountsWithinWindow(t *testing.T) {
	t.Parallel()

	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	tracker := NewTracker(clk)
	key := Key("198.51.100.9", "u1")

	for want := 1; want <= 5; want++ {
		if got := tracker.Hit(key, 15*time.Minute); got != want {
			t.Fatalf("hit %d: expected count %d, got %d", want, want, got)
		}
		clk.Advance(time.Minute)
	}
}

func TestHitResetsAfterWindowExpiry(t *testing.T) {
	t.Parallel()

	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	tracker := NewTracker(clk)
	key := Key("203.0.113.5", "u2")
	window := 15 * time.Minute

	if got := tracker.Hit(key, window); got != 1 {
		t.Fatalf("expected fresh count 1, got %d", got)
	}
	clk.Advance(window + time.Second)
	if got := tracker.Hit(key, window); got != 1 {
		t.Fatalf("expected reset count 1 after expiry, got %d", got)
	}
}

func TestPeekDoesNotIncrement(t *testing.T) {
	t.Parallel()

	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	tracker := NewTracker(clk)

	tracker.Hit("k", time.Minute)
	tracker.Hit("k", time.Minute)
	if got := tracker.Peek("k"); got != 2 {
		t.Fatalf("expected peek 2, got %d", got)
	}
	if got := tracker.Peek("missing"); got != 0 {
		t.Fatalf("expected peek 0 for missing key, got %d", got)
	}

	clk.Advance(2 * time.Minute)
	if got := tracker.Peek("k"); got != 0 {
		t.Fatalf("expected peek 0 after expiry, got %d", got)
	}
}

func TestSweepRemovesOnlyExpiredWindows(t *testing.T) {
	t.Parallel()

	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	tracker := NewTracker(clk)

	tracker.Hit("old", time.Minute)
	clk.Advance(5 * time.Minute)
	tracker.Hit("fresh", time.Hour)

	if removed := tracker.Sweep(); removed != 1 {
		t.Fatalf("expected 1 swept window, got %d", removed)
	}
	if got := tracker.Len(); got != 1 {
		t.Fatalf("expected 1 remaining window, got %d", got)
	}
	if got := tracker.Peek("fresh"); got != 1 {
		t.Fatalf("expected fresh window to survive, got count %d", got)
	}
}
