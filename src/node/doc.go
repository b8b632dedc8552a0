// Package node implements the reactive core of a firefly node.
//
// A firefly node is an autonomous periodic oscillator. It runs a
// free-running timer; when the timer fires, the node broadcasts a beacon and
// restarts its period. There is no coordinator and no message beyond that
// single broadcast per period, yet a group of nodes sharing one channel
// converges to synchronized firing.
//
// Phase correction
//
// Convergence comes from pulse coupling. When a node hears a peer's beacon
// before its own timer has elapsed, it measures how far through its cycle it
// is (its lateness) and nudges the firing instant scheduled after the next
// one. A beacon early in the cycle means the peer is trailing, so the node
// stretches its next window to wait for it; a beacon late in the cycle means
// the peer is ahead, so the node shrinks the window to catch up. The nudge
// is the elapsed cycle time divided by a constant from a lookup table
// indexed by lateness, tuned so that the effective correction is strongest
// when two oscillators are maximally out of phase and gentle when they are
// nearly aligned. Deferring the adjustment by one full cycle avoids
// thrashing the imminent firing instant when several peers fire in quick
// succession.
//
// A degenerate variant, the snap scheme, implements classic reset-to-zero
// coupling: any observed beacon makes the node flash immediately, without a
// beacon of its own, and restart its period from that instant. It locks a
// group onto its fastest node within a couple of cycles but overreacts to
// every frame in a noisy medium; it is kept as a selectable alternative.
//
// Channel arbitration
//
// Since every node transmits on the same channel at roughly the same time
// once synchronized, each transmission is preceded by a short sensing delay.
// If another beacon is heard while sensing, the node backs off for a
// randomized, exponentially growing wait and probes again. A node that
// cannot find a clear window before its next firing instant simply skips
// that cycle's beacon; a missed beacon only slows convergence, it cannot
// corrupt state.
//
// The core is strictly event driven: peer frames and timer alarms form a
// closed set of events serviced one at a time, and every reaction either
// mutates node state or schedules a future alarm. Core is the pure reactive
// part, driven equally well by the live Node run loop or by a virtual-time
// simulation.
package node
