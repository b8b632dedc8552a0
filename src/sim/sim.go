// Package sim runs clusters of firefly cores in virtual time. A single
// event queue replaces the live node's timers and transport, so sixty
// seconds of protocol time take milliseconds of wall time and every run is
// reproducible from its seed.
package sim

import (
	"container/heap"
	"math/rand"
	"time"

	"github.com/lumennet/firefly/src/common"
	fnet "github.com/lumennet/firefly/src/net"
	"github.com/lumennet/firefly/src/node"
	"github.com/sirupsen/logrus"
)

const numTimerSlots = 3

// item is one entry in the virtual-time queue: either an alarm for a node's
// timer slot or a frame delivery.
type item struct {
	at  time.Time
	seq uint64 //FIFO tiebreak for simultaneous events

	node int
	kind node.EventKind

	// alarm bookkeeping: an alarm is stale when its slot was re-armed after
	// it was pushed.
	slot TimerSlot
	gen  uint64

	payload []byte
}

// TimerSlot aliases the node package's slot type for queue bookkeeping.
type TimerSlot = node.TimerSlot

type eventQueue []*item

func (q eventQueue) Len() int { return len(q) }
func (q eventQueue) Less(i, j int) bool {
	if !q[i].at.Equal(q[j].at) {
		return q[i].at.Before(q[j].at)
	}
	return q[i].seq < q[j].seq
}
func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x interface{}) {
	*q = append(*q, x.(*item))
}

func (q *eventQueue) Pop() interface{} {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return it
}

// simNode adapts one Core to the cluster: it is the core's Scheduler and
// Transmitter, and it records firing and transmission instants for analysis.
type simNode struct {
	cluster *Cluster
	idx     int
	id      uint16

	core *node.Core

	gens [numTimerSlots]uint64

	fires     []time.Time
	transmits []time.Time
}

// Schedule implements node.Scheduler by pushing an alarm into the cluster
// queue. Re-arming a slot invalidates its pending alarm.
func (s *simNode) Schedule(slot TimerSlot, after time.Duration) {
	s.gens[slot]++
	s.cluster.push(&item{
		at:   s.cluster.now.Add(after),
		node: s.idx,
		kind: alarmKind(slot),
		slot: slot,
		gen:  s.gens[slot],
	})
}

// Transmit implements the core's transmitter by scheduling a delivery to
// every other node after the medium delay, subject to the loss rate.
func (s *simNode) Transmit(b *fnet.Beacon) error {
	s.transmits = append(s.transmits, s.cluster.now)

	payload := b.Encode()
	for _, peer := range s.cluster.nodes {
		if peer.idx == s.idx {
			continue
		}
		if s.cluster.loss > 0 && s.cluster.rng.Float64() < s.cluster.loss {
			continue
		}
		s.cluster.push(&item{
			at:      s.cluster.now.Add(s.cluster.delay),
			node:    peer.idx,
			kind:    node.PeerFrame,
			payload: payload,
		})
	}

	return nil
}

func alarmKind(slot TimerSlot) node.EventKind {
	switch slot {
	case node.FireTimer:
		return node.FireAlarm
	case node.ProbeTimer:
		return node.ProbeAlarm
	default:
		return node.LedAlarm
	}
}

// Config tunes a simulated cluster.
type Config struct {
	// NumNodes is the cluster size.
	NumNodes int
	// Delay is the one-way propagation delay of the medium.
	Delay time.Duration
	// Loss is the per-delivery frame loss probability.
	Loss float64
	// Seed drives the medium and every node's byte source.
	Seed int64
	// Snap selects the reset-to-zero corrector on every node.
	Snap bool
	// Table overrides the correction table; nil keeps the node default.
	Table node.CorrectionTable

	Logger *logrus.Logger
}

// Cluster is a set of firefly cores sharing one virtual clock and one
// broadcast medium.
type Cluster struct {
	now   time.Time
	queue eventQueue
	seq   uint64

	nodes []*simNode

	delay time.Duration
	loss  float64
	rng   *rand.Rand

	logger *logrus.Entry
}

// NewCluster builds and initialises a cluster. Every node starts at the same
// virtual instant with its own seeded byte source, like motes powered on
// together.
func NewCluster(conf Config) *Cluster {
	logger := conf.Logger
	if logger == nil {
		logger = logrus.New()
		logger.Level = logrus.ErrorLevel
	}

	start := time.Date(2019, 10, 1, 12, 0, 0, 0, time.UTC)

	c := &Cluster{
		now:    start,
		delay:  conf.Delay,
		loss:   conf.Loss,
		rng:    rand.New(rand.NewSource(conf.Seed)),
		logger: logger.WithField("component", "sim"),
	}

	heap.Init(&c.queue)

	for i := 0; i < conf.NumNodes; i++ {
		nodeConf := node.DefaultConfig()
		nodeConf.Logger = logger
		nodeConf.Rand = node.NewByteSource(conf.Seed + int64(i) + 1)
		nodeConf.Snap = conf.Snap
		if conf.Table != nil {
			nodeConf.Table = conf.Table
		}

		sn := &simNode{
			cluster: c,
			idx:     i,
			id:      uint16(i + 1),
		}
		sn.core = node.NewCore(nodeConf, sn.id, sn, sn, node.NopIndicator{}, logger)

		c.nodes = append(c.nodes, sn)
	}

	for _, sn := range c.nodes {
		sn.core.Init(c.now)
	}

	return c
}

func (c *Cluster) push(it *item) {
	it.seq = c.seq
	c.seq++
	heap.Push(&c.queue, it)
}

// Run drains the queue for d of virtual time and returns the instant the
// cluster stopped at.
func (c *Cluster) Run(d time.Duration) time.Time {
	deadline := c.now.Add(d)

	for c.queue.Len() > 0 {
		it := c.queue[0]
		if it.at.After(deadline) {
			break
		}
		heap.Pop(&c.queue)

		sn := c.nodes[it.node]

		if it.kind != node.PeerFrame && it.gen != sn.gens[it.slot] {
			// Superseded alarm.
			continue
		}

		c.now = it.at

		before := sn.core.Stats().Fires
		sn.core.Dispatch(node.Event{Kind: it.kind, Payload: it.payload, Now: it.at})
		if sn.core.Stats().Fires > before {
			sn.fires = append(sn.fires, it.at)
		}
	}

	c.now = deadline
	return c.now
}

// Nodes returns the cluster size.
func (c *Cluster) Nodes() int {
	return len(c.nodes)
}

// Stats returns the counters of node i.
func (c *Cluster) Stats(i int) node.Stats {
	return c.nodes[i].core.Stats()
}

// Fires returns the firing instants of node i.
func (c *Cluster) Fires(i int) []time.Time {
	return c.nodes[i].fires
}

// Skew measures how far apart the cluster's firing instants are at the end
// of a run. For each node it takes the recorded firing closest to the most
// recent firing overall, then returns the spread of those instants. Near
// synchrony this is the residual phase error; far from synchrony it
// approaches the period.
func (c *Cluster) Skew() time.Duration {
	var ref time.Time
	for _, sn := range c.nodes {
		if len(sn.fires) == 0 {
			continue
		}
		if last := sn.fires[len(sn.fires)-1]; last.After(ref) {
			ref = last
		}
	}
	if ref.IsZero() {
		return 0
	}

	aligned := make([]int64, 0, len(c.nodes))
	for _, sn := range c.nodes {
		if len(sn.fires) == 0 {
			continue
		}
		best := sn.fires[0]
		for _, f := range sn.fires[1:] {
			if absDuration(f.Sub(ref)) < absDuration(best.Sub(ref)) {
				best = f
			}
		}
		aligned = append(aligned, int64(best.Sub(ref)))
	}

	return time.Duration(common.Spread(aligned))
}

// MedianPeriod returns the median inter-fire interval of node i over its
// whole run.
func (c *Cluster) MedianPeriod(i int) time.Duration {
	fires := c.nodes[i].fires
	if len(fires) < 2 {
		return 0
	}
	intervals := make([]int64, 0, len(fires)-1)
	for j := 1; j < len(fires); j++ {
		intervals = append(intervals, int64(fires[j].Sub(fires[j-1])))
	}
	return time.Duration(common.Median(intervals))
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
