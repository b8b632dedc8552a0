package node

import (
	"testing"
	"time"

	fnet "github.com/lumennet/firefly/src/net"
)

type scheduledAlarm struct {
	slot  TimerSlot
	after time.Duration
}

type fakeScheduler struct {
	alarms []scheduledAlarm
}

func (s *fakeScheduler) Schedule(slot TimerSlot, after time.Duration) {
	s.alarms = append(s.alarms, scheduledAlarm{slot, after})
}

func (s *fakeScheduler) last(slot TimerSlot) (time.Duration, bool) {
	for i := len(s.alarms) - 1; i >= 0; i-- {
		if s.alarms[i].slot == slot {
			return s.alarms[i].after, true
		}
	}
	return 0, false
}

type fakeTransmitter struct {
	sent []fnet.Beacon
}

func (t *fakeTransmitter) Transmit(b *fnet.Beacon) error {
	t.sent = append(t.sent, *b)
	return nil
}

type fakeIndicator struct {
	on   bool
	sets int
}

func (i *fakeIndicator) Set(on bool) {
	i.on = on
	i.sets++
}

func newTestCore(t *testing.T, self uint16) (*Core, *fakeScheduler, *fakeTransmitter, *fakeIndicator) {
	conf := TestConfig(t)
	sched := &fakeScheduler{}
	trans := &fakeTransmitter{}
	led := &fakeIndicator{}
	core := NewCore(conf, self, sched, trans, led, conf.Logger)
	return core, sched, trans, led
}

func fireAndProbe(core *Core, now time.Time) {
	core.Dispatch(Event{Kind: FireAlarm, Now: now})
	core.Dispatch(Event{Kind: ProbeAlarm, Now: now.Add(time.Millisecond)})
}

func TestCoreInitSchedulesJitteredFire(t *testing.T) {
	core, sched, _, led := newTestCore(t, 1)

	core.Init(t0)

	jitter, ok := sched.last(FireTimer)
	if !ok {
		t.Fatal("Init should arm the fire timer")
	}
	if jitter < 0 || jitter > 1020*time.Millisecond {
		t.Fatalf("initial jitter out of range: %v", jitter)
	}
	if led.on {
		t.Fatal("indicator should start off")
	}
	if got := core.Clock().NextFire(); !got.Equal(t0.Add(jitter)) {
		t.Fatalf("clock and fire timer disagree: %v vs %v", got, t0.Add(jitter))
	}
}

func TestCoreFireCycle(t *testing.T) {
	core, sched, trans, led := newTestCore(t, 1)
	period := core.conf.SyncPeriod

	core.Init(t0)
	fireAt := core.Clock().NextFire()

	core.Dispatch(Event{Kind: FireAlarm, Now: fireAt})

	if !led.on {
		t.Fatal("firing should light the indicator")
	}
	if d, _ := sched.last(LedTimer); d != core.conf.FlashDuration {
		t.Fatalf("led timer armed for %v, want %v", d, core.conf.FlashDuration)
	}
	if d, _ := sched.last(ProbeTimer); d != core.conf.TransmissionUnit {
		t.Fatalf("probe timer armed for %v, want %v", d, core.conf.TransmissionUnit)
	}
	if d, _ := sched.last(FireTimer); d != period {
		t.Fatalf("fire timer armed for %v, want %v", d, period)
	}
	if len(trans.sent) != 0 {
		t.Fatal("nothing should be transmitted before the sensing window closes")
	}

	core.Dispatch(Event{Kind: ProbeAlarm, Now: fireAt.Add(core.conf.TransmissionUnit)})

	if len(trans.sent) != 1 {
		t.Fatalf("expected 1 beacon, got %d", len(trans.sent))
	}
	if trans.sent[0].Group != core.conf.Group || trans.sent[0].Sender != 1 {
		t.Fatalf("bad beacon %+v", trans.sent[0])
	}

	core.Dispatch(Event{Kind: LedAlarm, Now: fireAt.Add(core.conf.FlashDuration)})
	if led.on {
		t.Fatal("led alarm should turn the indicator off")
	}

	s := core.Stats()
	if s.Fires != 1 || s.SentBeacons != 1 {
		t.Fatalf("bad stats %+v", s)
	}
}

func TestCoreStaleFireAlarm(t *testing.T) {
	core, sched, _, _ := newTestCore(t, 1)

	core.Init(t0)
	fireAt := core.Clock().NextFire()

	// An alarm from a superseded schedule arrives early.
	early := fireAt.Add(-40 * time.Millisecond)
	core.Dispatch(Event{Kind: FireAlarm, Now: early})

	if s := core.Stats(); s.Fires != 0 {
		t.Fatal("a stale alarm must not count as a firing")
	}
	if d, _ := sched.last(FireTimer); d != 40*time.Millisecond {
		t.Fatalf("stale alarm should re-arm for the real boundary, got %v", d)
	}
}

func TestCorePeerBeaconCorrects(t *testing.T) {
	core, _, _, _ := newTestCore(t, 1)
	period := core.conf.SyncPeriod

	core.Init(t0)
	fireAt := core.Clock().NextFire()
	fireAndProbe(core, fireAt)

	before := core.Clock().NextFireAfter()

	// A peer fires at 75% of our cycle: it leads, our window shrinks.
	beacon := fnet.Beacon{Group: core.conf.Group, Sender: 2}
	at := fireAt.Add(3 * period / 4)
	core.Dispatch(Event{Kind: PeerFrame, Payload: beacon.Encode(), Now: at})

	after := core.Clock().NextFireAfter()
	if !after.Before(before) {
		t.Fatalf("a leading peer should pull nextFireAfter earlier: %v -> %v", before, after)
	}
	if got := core.Clock().NextFire(); !got.Equal(fireAt.Add(period)) {
		t.Fatal("the imminent firing must not move")
	}
	if s := core.Stats(); s.Corrections != 1 {
		t.Fatalf("expected 1 correction, got %d", s.Corrections)
	}
}

func TestCorePeerBeaconEarlyHalfStretches(t *testing.T) {
	core, _, _, _ := newTestCore(t, 1)
	period := core.conf.SyncPeriod

	core.Init(t0)
	fireAt := core.Clock().NextFire()
	fireAndProbe(core, fireAt)

	before := core.Clock().NextFireAfter()

	// A peer fires at 25% of our cycle: it trails, our window stretches.
	beacon := fnet.Beacon{Group: core.conf.Group, Sender: 2}
	core.Dispatch(Event{Kind: PeerFrame, Payload: beacon.Encode(), Now: fireAt.Add(period / 4)})

	after := core.Clock().NextFireAfter()
	if !after.After(before) {
		t.Fatalf("a trailing peer should push nextFireAfter later: %v -> %v", before, after)
	}
}

func TestCoreIgnoresNonBeacons(t *testing.T) {
	core, _, _, _ := newTestCore(t, 1)

	core.Init(t0)
	fireAt := core.Clock().NextFire()
	fireAndProbe(core, fireAt)

	before := core.Clock().NextFireAfter()

	// Wrong length.
	core.Dispatch(Event{Kind: PeerFrame, Payload: []byte{1, 2, 3}, Now: fireAt.Add(time.Second)})

	// Right length, foreign group.
	foreign := fnet.Beacon{Group: core.conf.Group + 1, Sender: 2}
	core.Dispatch(Event{Kind: PeerFrame, Payload: foreign.Encode(), Now: fireAt.Add(time.Second)})

	if got := core.Clock().NextFireAfter(); !got.Equal(before) {
		t.Fatal("noise must not move the schedule")
	}
	s := core.Stats()
	if s.NoiseFrames != 2 || s.Corrections != 0 {
		t.Fatalf("bad stats %+v", s)
	}
}

func TestCoreIgnoresOwnBeacon(t *testing.T) {
	core, _, _, _ := newTestCore(t, 1)

	core.Init(t0)
	fireAt := core.Clock().NextFire()
	fireAndProbe(core, fireAt)

	before := core.Clock().NextFireAfter()

	own := fnet.Beacon{Group: core.conf.Group, Sender: 1}
	core.Dispatch(Event{Kind: PeerFrame, Payload: own.Encode(), Now: fireAt.Add(time.Second)})

	if got := core.Clock().NextFireAfter(); !got.Equal(before) {
		t.Fatal("a loopback copy of our own beacon must not correct the clock")
	}
	if s := core.Stats(); s.Corrections != 0 || s.NoiseFrames != 0 {
		t.Fatalf("bad stats %+v", s)
	}
}

func TestCoreCollisionBackoff(t *testing.T) {
	core, sched, trans, _ := newTestCore(t, 1)

	core.Init(t0)
	fireAt := core.Clock().NextFire()
	core.Dispatch(Event{Kind: FireAlarm, Now: fireAt})

	// A peer beacon lands inside the sensing window.
	beacon := fnet.Beacon{Group: core.conf.Group, Sender: 2}
	core.Dispatch(Event{Kind: PeerFrame, Payload: beacon.Encode(), Now: fireAt.Add(500 * time.Microsecond)})

	probeAt := fireAt.Add(core.conf.TransmissionUnit)
	core.Dispatch(Event{Kind: ProbeAlarm, Now: probeAt})

	if len(trans.sent) != 0 {
		t.Fatal("a busy channel must defer the beacon")
	}
	wait, ok := sched.last(ProbeTimer)
	if !ok || wait < core.conf.TransmissionUnit || wait > core.conf.WaitCeiling {
		t.Fatalf("bad backoff wait %v", wait)
	}
	if s := core.Stats(); s.Backoffs != 1 || s.SentBeacons != 0 {
		t.Fatalf("bad stats %+v", s)
	}

	// The channel stays clear through the backoff: the retry transmits.
	core.Dispatch(Event{Kind: ProbeAlarm, Now: probeAt.Add(wait)})
	if len(trans.sent) != 1 {
		t.Fatal("retry on a clear channel should transmit")
	}
}

func TestCoreStaleProbeAlarm(t *testing.T) {
	core, _, trans, _ := newTestCore(t, 1)

	core.Init(t0)
	fireAt := core.Clock().NextFire()
	core.Dispatch(Event{Kind: FireAlarm, Now: fireAt})

	// A probe alarm armed before the firing is consumed after it. It must
	// not transmit: its sensing window belongs to the closed cycle.
	core.Dispatch(Event{Kind: ProbeAlarm, Now: fireAt.Add(-300 * time.Microsecond)})

	if len(trans.sent) != 0 {
		t.Fatal("a probe from a superseded window must not transmit")
	}

	// The current cycle's own probe still goes through.
	core.Dispatch(Event{Kind: ProbeAlarm, Now: fireAt.Add(core.conf.TransmissionUnit)})
	if len(trans.sent) != 1 {
		t.Fatalf("expected 1 beacon, got %d", len(trans.sent))
	}
}

func TestCoreSnapFiresOnPeerBeacon(t *testing.T) {
	core, sched, trans, led := newTestCore(t, 1)
	core.snap = true
	period := core.conf.SyncPeriod

	core.Init(t0)
	fireAt := core.Clock().NextFire()
	fireAndProbe(core, fireAt)

	sent := len(trans.sent)
	fires := core.Stats().Fires

	// A peer beacon mid-cycle makes the node fire right away, silently,
	// and restart its period from the beacon instant.
	beacon := fnet.Beacon{Group: core.conf.Group, Sender: 2}
	at := fireAt.Add(700 * time.Millisecond)
	core.Dispatch(Event{Kind: PeerFrame, Payload: beacon.Encode(), Now: at})

	if got := core.Stats().Fires; got != fires+1 {
		t.Fatalf("snap should count a firing: %d != %d", got, fires+1)
	}
	if len(trans.sent) != sent {
		t.Fatal("a snap firing must not transmit a beacon")
	}
	if !led.on {
		t.Fatal("a snap firing should light the indicator")
	}
	if got := core.Clock().NextFire(); !got.Equal(at.Add(period)) {
		t.Fatalf("snap should restart the period at the beacon: %v != %v", got, at.Add(period))
	}
	if d, _ := sched.last(FireTimer); d != period {
		t.Fatalf("snap should re-arm the fire timer for a full period, got %v", d)
	}
}

func TestCoreSnapSupersedesPendingFiring(t *testing.T) {
	core, _, _, _ := newTestCore(t, 1)
	core.snap = true
	period := core.conf.SyncPeriod

	core.Init(t0)
	fireAt := core.Clock().NextFire()
	fireAndProbe(core, fireAt)

	beacon := fnet.Beacon{Group: core.conf.Group, Sender: 2}
	at := fireAt.Add(700 * time.Millisecond)
	core.Dispatch(Event{Kind: PeerFrame, Payload: beacon.Encode(), Now: at})

	fires := core.Stats().Fires

	// The alarm armed for the pre-snap schedule arrives anyway. It is
	// early relative to the new schedule, so it re-arms instead of firing.
	core.Dispatch(Event{Kind: FireAlarm, Now: fireAt.Add(period)})

	if got := core.Stats().Fires; got != fires {
		t.Fatal("a superseded fire alarm must not fire after a snap")
	}
	if got := core.Clock().NextFire(); !got.Equal(at.Add(period)) {
		t.Fatal("the snapped schedule must survive the stale alarm")
	}
}

func TestCoreDefaultsInvalidJitterPool(t *testing.T) {
	conf := TestConfig(t)
	conf.JitterPoolSize = 0
	conf.JitterMax = 0

	sched := &fakeScheduler{}
	trans := &fakeTransmitter{}
	core := NewCore(conf, 1, sched, trans, &fakeIndicator{}, conf.Logger)

	core.Init(t0)
	fireAt := core.Clock().NextFire()
	core.Dispatch(Event{Kind: FireAlarm, Now: fireAt})

	// The backoff path draws from the pool; it must not divide by zero.
	beacon := fnet.Beacon{Group: core.conf.Group, Sender: 2}
	core.Dispatch(Event{Kind: PeerFrame, Payload: beacon.Encode(), Now: fireAt.Add(500 * time.Microsecond)})
	core.Dispatch(Event{Kind: ProbeAlarm, Now: fireAt.Add(core.conf.TransmissionUnit)})

	if s := core.Stats(); s.Backoffs != 1 {
		t.Fatalf("expected 1 backoff, got %d", s.Backoffs)
	}
}

func TestCoreAbandonsBeaconNearBoundary(t *testing.T) {
	core, _, trans, _ := newTestCore(t, 1)
	period := core.conf.SyncPeriod

	core.Init(t0)
	fireAt := core.Clock().NextFire()
	core.Dispatch(Event{Kind: FireAlarm, Now: fireAt})

	beacon := fnet.Beacon{Group: core.conf.Group, Sender: 2}
	core.Dispatch(Event{Kind: PeerFrame, Payload: beacon.Encode(), Now: fireAt.Add(500 * time.Microsecond)})

	// The probe fires so close to the boundary that any backoff crosses it.
	nearBoundary := fireAt.Add(period - 100*time.Microsecond)
	core.Dispatch(Event{Kind: ProbeAlarm, Now: nearBoundary})

	if len(trans.sent) != 0 {
		t.Fatal("abandoned beacon must not be transmitted")
	}
	if s := core.Stats(); s.MissedBeacons != 1 {
		t.Fatalf("expected 1 missed beacon, got %d", s.MissedBeacons)
	}
}
