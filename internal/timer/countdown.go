// Package timer provides countdowns driven by simulation time rather than the wall clock.
package timer

// Countdown counts simulation seconds down to zero. The zero value is stopped.
type Countdown struct {
	remaining float64
	running   bool
}

// Start (re)arms the countdown with d seconds.
func (c *Countdown) Start(d float64) {
	c.remaining = d
	c.running = true
}

// Stop disarms the countdown.
func (c *Countdown) Stop() {
	c.remaining = 0
	c.running = false
}

// Running reports whether the countdown is armed, expired or not.
func (c *Countdown) Running() bool {
	return c.running
}

// Expired reports whether the countdown is armed and has reached zero.
func (c *Countdown) Expired() bool {
	return c.running && c.remaining <= 0
}

// Remaining returns the seconds left, or 0 when stopped.
func (c *Countdown) Remaining() float64 {
	if !c.running || c.remaining < 0 {
		return 0
	}
	return c.remaining
}

// Advance subtracts dt seconds and reports whether the countdown has expired.
func (c *Countdown) Advance(dt float64) bool {
	if !c.running {
		return false
	}
	c.remaining -= dt
	return c.remaining <= 0
}
