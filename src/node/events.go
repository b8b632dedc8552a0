package node

import "time"

// TimerSlot identifies one of the node's re-armable alarms. Re-arming a slot
// replaces its pending alarm; there is never more than one alarm per slot.
type TimerSlot int

const (
	// FireTimer marks the end of the current cycle.
	FireTimer TimerSlot = iota
	// ProbeTimer drives channel sensing and backoff retries.
	ProbeTimer
	// LedTimer turns the indicator off. Cosmetic only.
	LedTimer
)

// String ...
func (s TimerSlot) String() string {
	switch s {
	case FireTimer:
		return "fire"
	case ProbeTimer:
		return "probe"
	case LedTimer:
		return "led"
	default:
		return "unknown"
	}
}

// EventKind enumerates the closed set of events a node reacts to.
type EventKind int

const (
	// PeerFrame is a raw frame picked up on the channel.
	PeerFrame EventKind = iota
	// FireAlarm is the FireTimer elapsing: the node's own cycle boundary.
	FireAlarm
	// ProbeAlarm is the ProbeTimer elapsing: time to check the channel.
	ProbeAlarm
	// LedAlarm is the LedTimer elapsing.
	LedAlarm
)

// Event is one unit of work for the dispatch loop.
type Event struct {
	Kind    EventKind
	Payload []byte
	Now     time.Time
}

// Scheduler arms timer slots on behalf of the core. The live node implements
// it over ControlTimers; the simulation implements it over a virtual-time
// event queue.
type Scheduler interface {
	Schedule(slot TimerSlot, after time.Duration)
}
