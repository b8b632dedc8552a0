package node

import (
	"time"

	fnet "github.com/lumennet/firefly/src/net"
	"github.com/sirupsen/logrus"
)

// Transmitter is the slice of the transport the core needs: the ability to
// put one beacon on the channel.
type Transmitter interface {
	Transmit(b *fnet.Beacon) error
}

// Stats counts what happened to a node since it started. Fields only ever
// increase.
type Stats struct {
	Fires         uint64
	SentBeacons   uint64
	Corrections   uint64
	MissedBeacons uint64
	NoiseFrames   uint64
	Backoffs      uint64
}

// Core is the reactive heart of a node: a single dispatch function over the
// closed event set, driving the phase clock, the correction engine and the
// transmission arbiter. Core never blocks and keeps no goroutines; every
// wait is expressed by arming a timer slot through the Scheduler.
//
// Core is not safe for concurrent use. The live Node confines it to the run
// loop goroutine; the simulation drives it from its own single thread.
type Core struct {
	conf   *Config
	logger *logrus.Entry

	self   uint16
	beacon *fnet.Beacon

	clock     *Clock
	corrector PhaseCorrector
	arbiter   *Arbiter
	snap      bool

	sched Scheduler
	trans Transmitter
	led   Indicator

	stats Stats
}

// NewCore wires a core for the node with short address self.
func NewCore(
	conf *Config,
	self uint16,
	sched Scheduler,
	trans Transmitter,
	led Indicator,
	logger *logrus.Logger,
) *Core {
	if logger == nil {
		logger = logrus.New()
		logger.Level = logrus.DebugLevel
	}

	if !conf.Table.Valid() {
		logger.WithField("table", conf.Table).
			Warn("Correction table invalid, using mote defaults")
	}

	poolSize, jitterMax := conf.JitterPoolSize, conf.JitterMax
	if poolSize <= 0 || jitterMax <= 0 {
		logger.WithFields(logrus.Fields{
			"jitter_pool": poolSize,
			"jitter_max":  jitterMax,
		}).Warn("Invalid jitter pool parameters, using defaults")
		poolSize, jitterMax = 8, 8
	}

	if led == nil {
		led = NopIndicator{}
	}

	return &Core{
		conf:      conf,
		logger:    logger.WithField("this_id", self),
		self:      self,
		beacon:    &fnet.Beacon{Group: conf.Group, Sender: self},
		clock:     NewClock(conf.SyncPeriod),
		corrector: NewFireflyCorrector(conf.Table),
		snap:      conf.Snap,
		arbiter: NewArbiter(
			conf.TransmissionUnit,
			conf.WaitCeiling,
			poolSize,
			jitterMax,
			conf.Rand,
		),
		sched: sched,
		trans: trans,
		led:   led,
	}
}

// Init schedules the first firing randomly within the first second or so,
// which spreads initial phases across nodes booted together.
func (c *Core) Init(now time.Time) {
	jitter := time.Duration(uint16(c.conf.Rand.Byte())<<2) * time.Millisecond

	c.clock.Init(now, jitter)
	c.led.Set(false)
	c.sched.Schedule(FireTimer, jitter)

	c.logger.WithField("jitter", jitter).Debug("Init")
}

// Dispatch services one event to completion. Events must be fed strictly
// one at a time, in arrival order.
func (c *Core) Dispatch(e Event) {
	switch e.Kind {
	case PeerFrame:
		c.handleFrame(e.Payload, e.Now)
	case FireAlarm:
		c.fire(e.Now)
	case ProbeAlarm:
		c.probe(e.Now)
	case LedAlarm:
		c.led.Set(false)
	}
}

// handleFrame reacts to something heard on the channel before the node's
// own cycle has elapsed.
func (c *Core) handleFrame(payload []byte, now time.Time) {
	b, err := fnet.DecodeBeacon(payload)
	if err != nil {
		c.stats.NoiseFrames++
		c.logger.WithField("len", len(payload)).Debug("Ignoring noise frame")
		return
	}

	if b.Group != c.conf.Group {
		c.stats.NoiseFrames++
		c.logger.WithField("group", b.Group).Debug("Ignoring foreign-group beacon")
		return
	}

	if b.Sender == c.self {
		// Loopback copy of our own broadcast.
		return
	}

	c.arbiter.MarkBusy()

	if c.snap {
		c.snapFire(b.Sender, now)
		return
	}

	lateness := c.clock.Lateness(now)

	delta := c.corrector.Delta(Observation{
		Lateness: lateness,
		Elapsed:  now.Sub(c.clock.PreviousFire()),
		Period:   c.clock.Period(),
	})

	c.clock.ApplyCorrection(delta)
	c.stats.Corrections++

	c.logger.WithFields(logrus.Fields{
		"from_id":  b.Sender,
		"lateness": lateness,
		"delta":    delta,
	}).Debug("Peer beacon")
}

// snapFire implements the reset-to-zero scheme: an observed beacon makes the
// node fire right away, without a beacon of its own, and restart its period
// from this instant. The pending firing is superseded by the re-armed timer.
func (c *Core) snapFire(from uint16, now time.Time) {
	c.clock.Snap(now)
	c.stats.Fires++
	c.stats.Corrections++

	c.led.Set(true)
	c.sched.Schedule(LedTimer, c.conf.FlashDuration)
	c.sched.Schedule(FireTimer, c.clock.NextFire().Sub(now))

	c.logger.WithFields(logrus.Fields{
		"from_id":   from,
		"next_fire": c.clock.NextFire(),
	}).Debug("Snap fire")
}

// fire is the cycle boundary: roll the clock over, light the indicator and
// open the transmission window.
func (c *Core) fire(now time.Time) {
	if now.Before(c.clock.NextFire()) {
		// Stale alarm from a superseded schedule; re-arm for the real
		// boundary.
		c.sched.Schedule(FireTimer, c.clock.NextFire().Sub(now))
		return
	}

	c.clock.Rollover(now)
	c.stats.Fires++

	c.led.Set(true)
	c.sched.Schedule(LedTimer, c.conf.FlashDuration)

	c.sched.Schedule(ProbeTimer, c.arbiter.BeginCycle())
	c.sched.Schedule(FireTimer, c.clock.NextFire().Sub(now))

	c.logger.WithFields(logrus.Fields{
		"next_fire":       c.clock.NextFire(),
		"next_fire_after": c.clock.NextFireAfter(),
	}).Debug("Fire")
}

// probe closes a sensing window: transmit on a clear channel, otherwise
// back off, or abandon the beacon when the backoff would cross the cycle
// boundary.
func (c *Core) probe(now time.Time) {
	if now.Before(c.clock.PreviousFire()) {
		// Alarm from a sensing window that the last firing superseded;
		// letting it through would transmit without a fresh window.
		return
	}

	clear, wait := c.arbiter.Probe()

	if clear {
		if err := c.trans.Transmit(c.beacon); err != nil {
			c.logger.WithError(err).Error("Transmitting beacon")
			return
		}
		c.stats.SentBeacons++
		return
	}

	c.stats.Backoffs++

	if !now.Add(wait).Before(c.clock.NextFire()) {
		c.stats.MissedBeacons++
		c.logger.WithField("failures", c.arbiter.Failures()).
			Debug("Abandoning beacon for this cycle")
		return
	}

	c.logger.WithFields(logrus.Fields{
		"failures": c.arbiter.Failures(),
		"wait":     wait,
	}).Debug("Channel busy, backing off")

	c.sched.Schedule(ProbeTimer, wait)
}

// Clock exposes the phase clock for inspection.
func (c *Core) Clock() *Clock {
	return c.clock
}

// Stats returns a copy of the counters.
func (c *Core) Stats() Stats {
	return c.stats
}

// SelfID returns the node's short address.
func (c *Core) SelfID() uint16 {
	return c.self
}
