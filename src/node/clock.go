package node

import (
	"math"
	"time"
)

// Clock owns a node's notion of cycle timing: the instant it last fired, the
// instant it will fire next, and the instant after that. Corrections only
// ever touch the next-but-one instant, so the imminent firing is never
// disturbed by observations made during the current cycle.
//
// Outside of Rollover, previousFire <= nextFire <= nextFireAfter.
type Clock struct {
	previousFire  time.Time
	nextFire      time.Time
	nextFireAfter time.Time
	period        time.Duration
}

// NewClock returns a Clock with the given cycle period. The clock is not
// usable until Init.
func NewClock(period time.Duration) *Clock {
	return &Clock{period: period}
}

// Init sets up the schedule at node startup. The first firing happens after
// jitter, which desynchronizes initial phases across nodes booted together.
func (c *Clock) Init(now time.Time, jitter time.Duration) {
	c.previousFire = now
	c.nextFire = now.Add(jitter)
	c.nextFireAfter = c.nextFire.Add(c.period)
}

// Rollover advances the schedule by one cycle. It is the sole point where
// the cycle rolls over, called exactly once per firing by the event loop.
//
// Accumulated corrections can leave nextFireAfter at or before the firing
// instant being consumed; the inherited instant is then clamped to now, so
// the node fires again immediately and rebuilds its schedule from there.
func (c *Clock) Rollover(now time.Time) {
	c.previousFire = now

	next := c.nextFireAfter
	if next.Before(now) {
		next = now
	}

	c.nextFire = next
	c.nextFireAfter = next.Add(c.period)
}

// Lateness returns how far through the current cycle the instant now falls,
// as a fraction in [0,1). It does not mutate state.
func (c *Clock) Lateness(now time.Time) float64 {
	f := float64(now.Sub(c.previousFire)) / float64(c.period)
	if f < 0 {
		return 0
	}
	if f >= 1 {
		return math.Nextafter(1, 0)
	}
	return f
}

// ApplyCorrection moves nextFireAfter earlier by delta. A negative delta
// moves it later. Corrections within one cycle accumulate additively;
// nextFire is deliberately left alone.
func (c *Clock) ApplyCorrection(delta time.Duration) {
	c.nextFireAfter = c.nextFireAfter.Add(-delta)
}

// Snap rebuilds the whole schedule around a firing at now, discarding
// whatever was pending. Used by the reset-to-zero scheme, where an observed
// beacon restarts the period outright.
func (c *Clock) Snap(now time.Time) {
	c.previousFire = now
	c.nextFire = now.Add(c.period)
	c.nextFireAfter = c.nextFire.Add(c.period)
}

// PreviousFire returns the instant of the last firing.
func (c *Clock) PreviousFire() time.Time {
	return c.previousFire
}

// NextFire returns the instant of the next scheduled firing.
func (c *Clock) NextFire() time.Time {
	return c.nextFire
}

// NextFireAfter returns the firing instant scheduled after next.
func (c *Clock) NextFireAfter() time.Time {
	return c.nextFireAfter
}

// Period returns the nominal cycle period.
func (c *Clock) Period() time.Duration {
	return c.period
}

// ClockSnapshot is a copyable view of the schedule, for inspection over the
// service API.
type ClockSnapshot struct {
	PreviousFire  time.Time     `json:"previous_fire"`
	NextFire      time.Time     `json:"next_fire"`
	NextFireAfter time.Time     `json:"next_fire_after"`
	Period        time.Duration `json:"period"`
}

// Snapshot returns a copy of the schedule.
func (c *Clock) Snapshot() ClockSnapshot {
	return ClockSnapshot{
		PreviousFire:  c.previousFire,
		NextFire:      c.nextFire,
		NextFireAfter: c.nextFireAfter,
		Period:        c.period,
	}
}
