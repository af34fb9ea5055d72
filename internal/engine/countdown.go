package engine

import "time"

// Countdown is a repeating rate limiter driven by the fixed tick. It counts
// down every tick and fires when it reaches zero, then restarts from Period.
// A fresh countdown fires on its first tick.
type Countdown struct {
	Period    time.Duration
	remaining time.Duration
}

// NewCountdown returns a countdown that fires on the first tick.
func NewCountdown(period time.Duration) *Countdown {
	return &Countdown{Period: period}
}

// Tick advances the countdown by dt. It fires only while enabled; a disabled
// countdown keeps running down so that it fires on the first enabled tick.
func (c *Countdown) Tick(dt time.Duration, enabled bool) bool {
	c.remaining -= dt
	if !enabled || c.remaining > 0 {
		return false
	}
	c.remaining = c.Period
	return true
}

// Remaining returns the time until the next firing.
func (c *Countdown) Remaining() time.Duration {
	return c.remaining
}

// Reset makes the countdown fire on its next tick.
func (c *Countdown) Reset() {
	c.remaining = 0
}
