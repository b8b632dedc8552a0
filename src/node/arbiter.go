package node

import (
	"time"
)

// Arbiter decides when the node may broadcast its own beacon. Reaching the
// cycle boundary opens a short sensing window; if another beacon is heard
// before the window closes, the transmission is pushed back by a
// randomized, exponentially growing wait and the channel is sensed again.
//
// Randomness for the backoff comes from a small pool of pre-drawn jitter
// values, refilled at most once per cycle, which keeps the byte source off
// the time-critical collision path.
type Arbiter struct {
	busy     bool
	failures uint32

	pool   []int
	cursor int

	unit      time.Duration
	ceiling   time.Duration
	jitterMax int

	rand ByteSource
}

// NewArbiter builds an Arbiter. unit is the time one beacon occupies the
// channel and doubles as the sensing window; ceiling caps any single
// backoff wait.
func NewArbiter(unit, ceiling time.Duration, poolSize, jitterMax int, rand ByteSource) *Arbiter {
	a := &Arbiter{
		unit:      unit,
		ceiling:   ceiling,
		jitterMax: jitterMax,
		pool:      make([]int, poolSize),
		rand:      rand,
	}
	a.refill()
	return a
}

// BeginCycle resets the arbiter for a fresh transmission window and returns
// the sensing delay after which the channel should be probed. If the
// previous cycle burned more than one jitter draw, the pool is restocked
// now, away from the collision path.
func (a *Arbiter) BeginCycle() time.Duration {
	if a.failures > 1 {
		a.refill()
	}
	a.busy = false
	a.failures = 0
	return a.unit
}

// MarkBusy records that the channel carried a frame. It never interrupts a
// running probe; collisions are detected when the probe window closes, not
// preempted.
func (a *Arbiter) MarkBusy() {
	a.busy = true
}

// Busy returns the current channel hint.
func (a *Arbiter) Busy() bool {
	return a.busy
}

// Failures returns the number of contended probes in the current window.
func (a *Arbiter) Failures() uint32 {
	return a.failures
}

// Probe closes a sensing window. If the channel stayed clear the caller may
// transmit immediately and clear is true. Otherwise clear is false and wait
// is how long to hold off before the next sensing window, growing
// quadratically with consecutive failures and capped at the ceiling.
func (a *Arbiter) Probe() (clear bool, wait time.Duration) {
	if !a.busy {
		return true, 0
	}

	a.failures++

	j := a.pool[a.cursor%len(a.pool)]
	a.cursor++

	wait = a.unit * time.Duration(j) * time.Duration(a.failures*a.failures)
	if wait < a.unit {
		// A zero jitter draw must still leave the channel time to drain.
		wait = a.unit
	}
	if wait > a.ceiling {
		wait = a.ceiling
	}

	// The retry opens a fresh sensing window.
	a.busy = false

	return false, wait
}

// refill stocks the jitter pool with values in [0, jitterMax), mapping each
// random byte down from its [0,256) range.
func (a *Arbiter) refill() {
	k := 256 / a.jitterMax
	for i := range a.pool {
		v := int(a.rand.Byte()) / k
		if v >= a.jitterMax {
			v = a.jitterMax - 1
		}
		a.pool[i] = v
	}
}
