package blocklist

import (
	"sort"
	"sync"
	"time"

	"sentinel/internal/clock"
)

// entry is one time-boxed block record.
// Params: absolute expiry and generation for stale-timer detection.
// Returns: transient mitigation state.
type entry struct {
	expiresAt  time.Time
	generation uint64
}

// List keeps time-boxed blocked source IPs.
// Params: injected clock and in-memory entry map.
// Returns: O(1) membership checks with expiry discipline.
//
// Expiry is authoritative from the entry timestamp; per-entry timers and
// the periodic sweep only reclaim memory. Re-blocking bumps the entry
// generation so a stale timer never removes a fresh block.
type List struct {
	mu      sync.Mutex
	clk     clock.Clock
	entries map[string]entry
	gen     uint64
}

// New creates empty block list.
// Params: clock implementation.
// Returns: initialized list.
func New(clk clock.Clock) *List {
	return &List{clk: clk, entries: make(map[string]entry)}
}

// Block adds or extends one IP block.
// Params: source IP and block duration.
// Returns: absolute expiry of the new block.
func (l *List) Block(ipAddress string, duration time.Duration) time.Time {
	now := l.clk.Now()
	expiresAt := now.Add(duration)
	l.mu.Lock()
	l.gen++
	generation := l.gen
	l.entries[ipAddress] = entry{expiresAt: expiresAt, generation: generation}
	l.mu.Unlock()

	time.AfterFunc(duration, func() {
		l.expire(ipAddress, generation)
	})
	return expiresAt
}

// expire removes one entry if its generation is still current.
func (l *List) expire(ipAddress string, generation uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	current, ok := l.entries[ipAddress]
	if !ok || current.generation != generation {
		return
	}
	delete(l.entries, ipAddress)
}

// IsBlocked reports whether the IP has an unexpired block.
// Params: source IP.
// Returns: true while the entry exists and has not expired.
func (l *List) IsBlocked(ipAddress string) bool {
	now := l.clk.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	current, ok := l.entries[ipAddress]
	if !ok {
		return false
	}
	if !now.Before(current.expiresAt) {
		delete(l.entries, ipAddress)
		return false
	}
	return true
}

// Unblock removes one entry regardless of expiry.
// Params: source IP.
// Returns: true when an entry was present.
func (l *List) Unblock(ipAddress string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[ipAddress]
	if ok {
		delete(l.entries, ipAddress)
	}
	return ok
}

// Sweep removes expired entries missed by their timers.
// Params: none; uses injected clock.
// Returns: number of removed entries.
func (l *List) Sweep() int {
	now := l.clk.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for ipAddress, current := range l.entries {
		if now.Before(current.expiresAt) {
			continue
		}
		delete(l.entries, ipAddress)
		removed++
	}
	return removed
}

// Active returns currently blocked IPs.
// Params: none.
// Returns: sorted unexpired IP list snapshot.
func (l *List) Active() []string {
	now := l.clk.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.entries))
	for ipAddress, current := range l.entries {
		if now.Before(current.expiresAt) {
			out = append(out, ipAddress)
		}
	}
	sort.Strings(out)
	return out
}
