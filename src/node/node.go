package node

import (
	"strconv"
	"time"

	fnet "github.com/lumennet/firefly/src/net"
	"github.com/lumennet/firefly/src/peers"
	"github.com/sirupsen/logrus"
)

// Node is a live firefly over a real transport and real timers. It owns the
// run loop which serialises network frames and alarms into core events.
type Node struct {
	state

	conf   *Config
	logger *logrus.Entry

	core     *Core
	coreLock chan struct{} //binary semaphore so Suspend can park the core

	peerSet *peers.PeerSet
	moniker string

	trans fnet.Transport
	netCh <-chan fnet.Frame

	fireTimer  *ControlTimer
	probeTimer *ControlTimer
	ledTimer   *ControlTimer

	shutdownCh chan struct{}

	start time.Time
}

// NewNode instantiates a new Node from a config, an identity, a peer set and
// a started-but-not-listening transport. Call Run or RunAsync to bring it
// live.
func NewNode(
	conf *Config,
	self *peers.Peer,
	peerSet *peers.PeerSet,
	trans fnet.Transport,
	led Indicator,
) *Node {
	logger := conf.Logger.WithField("this_id", self.ID())

	if led == nil {
		led = NewLogIndicator(logger)
	}

	node := &Node{
		conf:       conf,
		logger:     logger,
		coreLock:   make(chan struct{}, 1),
		peerSet:    peerSet,
		moniker:    self.Moniker,
		trans:      trans,
		netCh:      trans.Consumer(),
		fireTimer:  NewWallControlTimer(),
		probeTimer: NewWallControlTimer(),
		ledTimer:   NewWallControlTimer(),
		shutdownCh: make(chan struct{}),
	}

	node.core = NewCore(conf, self.ID(), node, trans, led, conf.Logger)

	return node
}

// Schedule implements Scheduler over the timer slots. It is safe to call
// from within a Dispatch because every tick channel is buffered.
func (n *Node) Schedule(slot TimerSlot, after time.Duration) {
	var timer *ControlTimer
	switch slot {
	case FireTimer:
		timer = n.fireTimer
	case ProbeTimer:
		timer = n.probeTimer
	case LedTimer:
		timer = n.ledTimer
	default:
		return
	}

	select {
	case timer.resetCh <- after:
	case <-n.shutdownCh:
	}
}

// Run invokes the main loop. It only returns after Shutdown.
func (n *Node) Run() {
	n.goFunc(func() { n.fireTimer.Run(-1) })
	n.goFunc(func() { n.probeTimer.Run(-1) })
	n.goFunc(func() { n.ledTimer.Run(-1) })

	n.start = time.Now()

	n.withCore(func() {
		n.core.Init(time.Now())
	})

	if n.getState() != Shutdown {
		n.setState(Flashing)
	}
	n.logger.WithField("state", n.getState()).Debug("Run")

	for {
		select {
		case frame := <-n.netCh:
			n.dispatch(Event{Kind: PeerFrame, Payload: frame.Payload, Now: frame.Arrival})
		case tick := <-n.fireTimer.tickCh:
			n.dispatch(Event{Kind: FireAlarm, Now: tick})
		case tick := <-n.probeTimer.tickCh:
			n.dispatch(Event{Kind: ProbeAlarm, Now: tick})
		case tick := <-n.ledTimer.tickCh:
			n.dispatch(Event{Kind: LedAlarm, Now: tick})
		case <-n.shutdownCh:
			return
		}
	}
}

// RunAsync calls Run in a goroutine.
func (n *Node) RunAsync() {
	n.logger.Debug("RunAsync")
	go n.Run()
}

func (n *Node) dispatch(e Event) {
	if n.getState() != Flashing {
		return
	}
	n.withCore(func() {
		n.core.Dispatch(e)
	})
}

func (n *Node) withCore(f func()) {
	n.coreLock <- struct{}{}
	defer func() { <-n.coreLock }()
	f()
}

// Suspend makes the node deaf and mute. Alarms and frames are dropped while
// suspended; the clock effectively free-runs without firing.
func (n *Node) Suspend() {
	if n.getState() == Flashing {
		n.logger.Debug("Suspend")
		n.setState(Suspended)
	}
}

// Resume re-initialises the clock and returns the node to Flashing. The
// phase accumulated before the suspension is deliberately discarded; the
// node re-joins the swarm like a fresh boot.
func (n *Node) Resume() {
	if n.getState() != Suspended {
		return
	}

	n.logger.Debug("Resume")

	n.withCore(func() {
		n.core.Init(time.Now())
	})

	n.setState(Flashing)
}

// Shutdown stops the run loop, the timers and the transport. It is
// idempotent.
func (n *Node) Shutdown() {
	if n.getState() == Shutdown {
		return
	}

	n.logger.Debug("Shutdown")
	n.setState(Shutdown)

	close(n.shutdownCh)

	n.fireTimer.Shutdown()
	n.probeTimer.Shutdown()
	n.ledTimer.Shutdown()

	n.waitRoutines()

	if err := n.trans.Close(); err != nil {
		n.logger.WithError(err).Error("Closing transport")
	}
}

// ID returns the node's short address.
func (n *Node) ID() uint16 {
	return n.core.SelfID()
}

// Moniker returns the node's human name.
func (n *Node) Moniker() string {
	return n.moniker
}

// GetPeers returns the configured peer set.
func (n *Node) GetPeers() []*peers.Peer {
	return n.peerSet.Peers
}

// GetClock returns a snapshot of the phase clock.
func (n *Node) GetClock() ClockSnapshot {
	var snap ClockSnapshot
	n.withCore(func() {
		snap = n.core.Clock().Snapshot()
	})
	return snap
}

// GetStats returns the node counters in printable form.
func (n *Node) GetStats() map[string]string {
	var s Stats
	n.withCore(func() {
		s = n.core.Stats()
	})

	uptime := time.Duration(0)
	if !n.start.IsZero() {
		uptime = time.Since(n.start).Round(time.Second)
	}

	return map[string]string{
		"id":             strconv.FormatUint(uint64(n.core.SelfID()), 10),
		"moniker":        n.moniker,
		"state":          n.getState().String(),
		"group":          strconv.FormatUint(uint64(n.conf.Group), 10),
		"num_peers":      strconv.Itoa(n.peerSet.Len()),
		"uptime":         uptime.String(),
		"fires":          strconv.FormatUint(s.Fires, 10),
		"sent_beacons":   strconv.FormatUint(s.SentBeacons, 10),
		"corrections":    strconv.FormatUint(s.Corrections, 10),
		"missed_beacons": strconv.FormatUint(s.MissedBeacons, 10),
		"noise_frames":   strconv.FormatUint(s.NoiseFrames, 10),
		"backoffs":       strconv.FormatUint(s.Backoffs, 10),
	}
}
