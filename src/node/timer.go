package node

import (
	"time"
)

type timerFactory func(time.Duration) <-chan time.Time

// ControlTimer is one re-armable alarm slot. Sending a duration on resetCh
// replaces whatever alarm was pending; the tick channel is buffered so the
// timer goroutine never wedges against a busy run loop.
type ControlTimer struct {
	timerFactory timerFactory
	tickCh       chan time.Time     //sends a signal to the listening process
	resetCh      chan time.Duration //receives instruction to re-arm the alarm
	stopCh       chan struct{}      //receives instruction to disarm the alarm
	shutdownCh   chan struct{}      //receives instruction to exit the Run loop
	set          bool
}

// NewControlTimer ...
func NewControlTimer(timerFactory timerFactory) *ControlTimer {
	return &ControlTimer{
		timerFactory: timerFactory,
		tickCh:       make(chan time.Time, 1),
		resetCh:      make(chan time.Duration),
		stopCh:       make(chan struct{}),
		shutdownCh:   make(chan struct{}),
	}
}

// NewWallControlTimer returns a ControlTimer over the wall clock. A
// negative duration leaves the slot unarmed; zero fires immediately.
func NewWallControlTimer() *ControlTimer {
	wallTimeout := func(d time.Duration) <-chan time.Time {
		if d < 0 {
			return nil
		}
		return time.After(d)
	}
	return NewControlTimer(wallTimeout)
}

// Run services the slot until Shutdown. init arms the first alarm; pass a
// negative duration to start unarmed.
func (c *ControlTimer) Run(init time.Duration) {

	setTimer := func(t time.Duration) <-chan time.Time {
		ch := c.timerFactory(t)
		c.set = ch != nil
		return ch
	}

	timer := setTimer(init)
	for {
		select {
		case t := <-timer:
			select {
			case c.tickCh <- t:
			case <-c.shutdownCh:
				return
			}
			c.set = false
			timer = nil
		case t := <-c.resetCh:
			timer = setTimer(t)
		case <-c.stopCh:
			timer = nil
			c.set = false
		case <-c.shutdownCh:
			c.set = false
			return
		}
	}
}

// Shutdown exits the Run loop.
func (c *ControlTimer) Shutdown() {
	close(c.shutdownCh)
}
