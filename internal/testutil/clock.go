package testutil

import (
	"sync"
	"time"
)

// Epoch is where every Clock starts.
var Epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Clock is a manual time source. Clock.Now matches the now fields of
// catalog.Cache and session.History, so tests assign it directly.
type Clock struct {
	mu    sync.Mutex
	at    time.Time
	step  time.Duration
	reads int
}

// NewClock returns a Clock at Epoch that moves forward by step after each
// call to Now. A zero step freezes it until Advance.
func NewClock(step time.Duration) *Clock {
	return &Clock{at: Epoch, step: step}
}

// Now returns the current reading and then steps the clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.at
	c.at = c.at.Add(c.step)
	c.reads++
	return t
}

// Current returns the time the next Now call will report, without stepping.
func (c *Clock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = c.at.Add(d)
}

// Reads returns how many times Now has been called.
func (c *Clock) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}
