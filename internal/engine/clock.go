package engine

import (
	"sync"
	"time"
)

// Clock tracks elapsed playback time across pause and resume. It does no
// scheduling of its own; the UI polls Elapsed.
type Clock struct {
	mu  sync.Mutex
	now func() time.Time

	start       time.Time
	accumulated time.Duration
	pauseStart  time.Time
	paused      bool
	stopped     bool
	stopAt      time.Time
}

// NewClock creates a clock reading time from now, or time.Now when nil.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Start resets the clock and returns the start instant.
func (c *Clock) Start() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.start = c.now()
	c.accumulated = 0
	c.paused = false
	c.stopped = false
	return c.start
}

// MarkPause records the start of a pause.
func (c *Clock) MarkPause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.paused || c.stopped {
		return
	}
	c.pauseStart = c.now()
	c.paused = true
}

// AccumulatePause adds the pause that just ended to the total.
func (c *Clock) AccumulatePause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.paused {
		return
	}
	c.accumulated += c.now().Sub(c.pauseStart)
	c.paused = false
}

// Stop freezes Elapsed at its current value.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || c.start.IsZero() {
		return
	}
	c.stopAt = c.readLocked()
	c.stopped = true
}

// Elapsed returns now - start - accumulated pause. It holds still while
// paused and after Stop.
func (c *Clock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.start.IsZero() {
		return 0
	}
	if c.stopped {
		return c.stopAt.Sub(c.start) - c.accumulated
	}
	return c.readLocked().Sub(c.start) - c.accumulated
}

// readLocked returns the effective "now", which is the pause instant while
// paused.
func (c *Clock) readLocked() time.Time {
	if c.paused {
		return c.pauseStart
	}
	return c.now()
}
