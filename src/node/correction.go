package node

import (
	"time"
)

// Observation carries the timing facts surrounding one observed peer beacon.
// All fields derive from the Clock at the arrival instant.
type Observation struct {
	// Lateness is the fraction of the current cycle elapsed, in [0,1).
	Lateness float64
	// Elapsed is the time since the node's previous firing.
	Elapsed time.Duration
	// Period is the nominal cycle period.
	Period time.Duration
}

// PhaseCorrector maps an observation to the adjustment subtracted from the
// next-but-one firing instant. Implementations are pure; the event loop
// applies the result through Clock.ApplyCorrection.
type PhaseCorrector interface {
	Delta(obs Observation) time.Duration
}

// CorrectionTable holds the firing function constants (FFC = 1/delta) for
// each 5% lateness bucket of a half cycle. The constants act as inverse
// correction rates: a larger constant means a gentler nudge. Combined with
// the elapsed-time numerator, the effective correction is smallest near the
// cycle boundaries, where oscillators are nearly in phase, and largest
// around mid-cycle, where they are maximally out of phase.
type CorrectionTable []int

// minCorrectionBuckets is the number of buckets a table must cover: ten 5%
// steps per half cycle.
const minCorrectionBuckets = 10

var (
	// MoteCorrectionTable is the set of constants tuned for radio motes
	// with a ~2s period. The eleventh entry guards an unclamped 100%.
	MoteCorrectionTable = CorrectionTable{15, 17, 20, 23, 28, 34, 42, 53, 73, 80, 80}

	// SimulationCorrectionTable is the gentler set tuned for the
	// zero-delay simulated medium.
	SimulationCorrectionTable = CorrectionTable{15, 24, 37, 50, 72, 98, 133, 181, 269, 300, 300}
)

// Valid reports whether the table covers all lateness buckets with positive
// constants.
func (t CorrectionTable) Valid() bool {
	if len(t) < minCorrectionBuckets {
		return false
	}
	for _, m := range t {
		if m <= 0 {
			return false
		}
	}
	return true
}

// FireflyCorrector implements the graduated pulse-coupled correction.
type FireflyCorrector struct {
	table CorrectionTable
}

// NewFireflyCorrector builds a corrector over the given table, falling back
// to MoteCorrectionTable when the table is missing or malformed.
func NewFireflyCorrector(table CorrectionTable) *FireflyCorrector {
	if !table.Valid() {
		table = MoteCorrectionTable
	}
	return &FireflyCorrector{table: table}
}

// Delta computes the correction. The lateness percentage selects a bucket in
// the half-cycle table; observations in the first half of the cycle yield a
// negative factor (the peer trails, the node stretches its next window) and
// observations in the second half a positive one (the peer leads, the node
// shrinks it). Exactly 50% lands on the positive side.
func (f *FireflyCorrector) Delta(obs Observation) time.Duration {
	pct := int(obs.Lateness * 100)
	if pct < 0 {
		pct = 0
	}
	if pct > 99 {
		pct = 99
	}

	var factor int
	if pct < 50 {
		factor = -f.table[pct/5]
	} else {
		factor = f.table[(pct-50)/5]
	}

	return obs.Elapsed / time.Duration(factor)
}
