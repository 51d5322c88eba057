package ratelimit

import (
	"sync"
	"time"

	"sentinel/internal/clock"
)

// window is one fixed counting window for a key.
// Params: hit count and absolute reset time.
// Returns: transient counter state.
type window struct {
	count   int
	resetAt time.Time
}

// Tracker counts hits per identity key in fixed windows.
// Params: injected clock and in-memory window map.
// Returns: O(1)-memory frequency tracker for abuse detection.
//
// A hit after the window reset time opens a fresh window with count=1;
// boundary bursts may undercount by design.
type Tracker struct {
	mu      sync.Mutex
	clk     clock.Clock
	windows map[string]*window
}

// NewTracker creates fixed-window tracker.
// Params: clock implementation (RealClock in production).
// Returns: initialized tracker.
func NewTracker(clk clock.Clock) *Tracker {
	return &Tracker{clk: clk, windows: make(map[string]*window)}
}

// Key builds the canonical tracker identity for an IP/user pair.
// Params: source IP and optional user id.
// Returns: "ip|user" key with "anonymous" fallback.
func Key(ipAddress, userID string) string {
	if userID == "" {
		userID = "anonymous"
	}
	return ipAddress + "|" + userID
}

// Hit counts one occurrence for the key inside its current window.
// Params: identity key and window width.
// Returns: hit count within the active window (>=1).
func (t *Tracker) Hit(key string, windowDuration time.Duration) int {
	now := t.clk.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.windows[key]
	if !ok || !now.Before(entry.resetAt) {
		t.windows[key] = &window{count: 1, resetAt: now.Add(windowDuration)}
		return 1
	}
	entry.count++
	return entry.count
}

// Peek reads the current count for the key without incrementing.
// Params: identity key.
// Returns: active-window count, zero when expired or absent.
func (t *Tracker) Peek(key string) int {
	now := t.clk.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.windows[key]
	if !ok || !now.Before(entry.resetAt) {
		return 0
	}
	return entry.count
}

// Reset drops the window for one key.
// Params: identity key.
// Returns: none.
func (t *Tracker) Reset(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.windows, key)
}

// Sweep removes expired windows.
// Params: none; uses injected clock.
// Returns: number of removed windows.
func (t *Tracker) Sweep() int {
	now := t.clk.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for key, entry := range t.windows {
		if now.Before(entry.resetAt) {
			continue
		}
		delete(t.windows, key)
		removed++
	}
	return removed
}

// Len reports tracked window count.
// Params: none.
// Returns: live window entries including expired ones pending sweep.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.windows)
}
