package net

import (
	"crypto/rand"
	"fmt"
	mrand "math/rand"
	"sync"
	"time"
)

// NewInmemAddr returns a new in-memory addr with a randomly generated UUID
// as the ID.
func NewInmemAddr() string {
	return generateUUID()
}

// generateUUID is used to generate a random UUID.
func generateUUID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Errorf("failed to read random bytes: %v", err))
	}

	return fmt.Sprintf("%08x-%04x-%04x-%04x-%12x",
		buf[0:4],
		buf[4:6],
		buf[6:8],
		buf[8:10],
		buf[10:16])
}

// InmemTransport implements the Transport interface, to allow firefly nodes
// to be tested in-memory without going over a network. Transmit fans the
// frame out to every connected transport; the sender does not hear its own
// broadcast. An optional loss rate drops frames at random to exercise the
// lossy-medium behavior.
type InmemTransport struct {
	sync.RWMutex
	consumerCh chan Frame
	localAddr  string
	peers      map[string]*InmemTransport
	lossRate   float64
	rng        *mrand.Rand
}

// NewInmemTransport is used to initialize a new transport and generates a
// random local address if none is specified.
func NewInmemTransport(addr string) (string, *InmemTransport) {
	if addr == "" {
		addr = NewInmemAddr()
	}
	trans := &InmemTransport{
		consumerCh: make(chan Frame, 16),
		localAddr:  addr,
		peers:      make(map[string]*InmemTransport),
	}
	return addr, trans
}

// SetLossRate makes the transport drop incoming frames with the given
// probability, using a deterministic seed.
func (i *InmemTransport) SetLossRate(rate float64, seed int64) {
	i.Lock()
	defer i.Unlock()
	i.lossRate = rate
	i.rng = mrand.New(mrand.NewSource(seed))
}

// Consumer implements the Transport interface.
func (i *InmemTransport) Consumer() <-chan Frame {
	return i.consumerCh
}

// LocalAddr implements the Transport interface.
func (i *InmemTransport) LocalAddr() string {
	return i.localAddr
}

// Transmit implements the Transport interface.
func (i *InmemTransport) Transmit(b *Beacon) error {
	payload := b.Encode()
	now := time.Now()

	i.RLock()
	defer i.RUnlock()

	for _, peer := range i.peers {
		peer.deliver(Frame{Payload: payload, Arrival: now})
	}

	return nil
}

func (i *InmemTransport) deliver(f Frame) {
	i.RLock()
	drop := i.rng != nil && i.rng.Float64() < i.lossRate
	i.RUnlock()

	if drop {
		return
	}

	// A full consumer is a saturated receiver; the frame is lost, which the
	// protocol tolerates.
	select {
	case i.consumerCh <- f:
	default:
	}
}

// Connect is used to connect this transport to another transport for a given
// peer name. This allows for local routing.
func (i *InmemTransport) Connect(peer string, t Transport) {
	trans := t.(*InmemTransport)
	i.Lock()
	defer i.Unlock()
	i.peers[peer] = trans
}

// Disconnect is used to remove the ability to route to a given peer.
func (i *InmemTransport) Disconnect(peer string) {
	i.Lock()
	defer i.Unlock()
	delete(i.peers, peer)
}

// DisconnectAll is used to remove all routes to peers.
func (i *InmemTransport) DisconnectAll() {
	i.Lock()
	defer i.Unlock()
	i.peers = make(map[string]*InmemTransport)
}

// Close is used to permanently disable the transport.
func (i *InmemTransport) Close() error {
	i.DisconnectAll()
	return nil
}

// Listen is an empty function as there is no need to defer initialisation
// of the in-memory service.
func (i *InmemTransport) Listen() {
}
