package node

import (
	"sync"
	"sync/atomic"
)

// State captures the state of a firefly node: Flashing, Suspended or
// Shutdown.
type State uint32

const (
	//Flashing is the normal operating state: firing, listening, correcting.
	Flashing State = iota
	//Suspended is initialised but deaf and mute
	Suspended
	//Shutdown is shutdown
	Shutdown
)

// String ...
func (s State) String() string {
	switch s {
	case Flashing:
		return "Flashing"
	case Suspended:
		return "Suspended"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

type state struct {
	state State
	wg    sync.WaitGroup
}

func (b *state) getState() State {
	stateAddr := (*uint32)(&b.state)
	return State(atomic.LoadUint32(stateAddr))
}

func (b *state) setState(s State) {
	stateAddr := (*uint32)(&b.state)
	atomic.StoreUint32(stateAddr, uint32(s))
}

// goFunc starts a goroutine and adds it to the waitgroup
func (b *state) goFunc(f func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		f()
	}()
}

func (b *state) waitRoutines() {
	b.wg.Wait()
}
