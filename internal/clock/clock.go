package clock

import (
	"sync"
	"time"
)

// Clock provides current time abstraction for deterministic tests.
// Params: none.
// Returns: current wall-clock time.
type Clock interface {
	Now() time.Time
}

// RealClock reads current UTC time from system clock.
// Params: none.
// Returns: current UTC timestamp.
type RealClock struct{}

// Now returns current UTC time.
// Params: none.
// Returns: current UTC timestamp.
func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

// ManualClock is a settable clock for window/expiry tests.
// Params: initial timestamp.
// Returns: clock advanced only by explicit calls.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual creates manual clock starting at the given instant.
// Params: start timestamp (UTC recommended).
// Returns: initialized manual clock.
func NewManual(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the currently configured instant.
// Params: none.
// Returns: stored timestamp.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
// Params: non-negative duration.
// Returns: new current instant.
func (c *ManualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Set replaces the current instant.
// Params: absolute timestamp.
// Returns: none.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
