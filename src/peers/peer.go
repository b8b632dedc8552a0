package peers

import (
	"github.com/lumennet/firefly/src/common"
)

// Peer is one oscillator node in the group roster.
type Peer struct {
	NetAddr string `json:"NetAddr"`
	Moniker string `json:"Moniker"`

	id uint16
}

// NewPeer creates a Peer and derives its short address from the moniker.
func NewPeer(moniker, netAddr string) *Peer {
	peer := &Peer{
		Moniker: moniker,
		NetAddr: netAddr,
	}

	peer.computeID()

	return peer
}

// ID returns the peer's short radio address. It is derived from the moniker
// so that every node computes the same roster without coordination.
func (p *Peer) ID() uint16 {
	if p.id == 0 {
		p.computeID()
	}
	return p.id
}

func (p *Peer) computeID() {
	h := common.Hash32([]byte(p.Moniker))
	// Fold into a 16-bit short address, avoiding the zero address which is
	// reserved for "unset".
	id := uint16(h>>16) ^ uint16(h)
	if id == 0 {
		id = 1
	}
	p.id = id
}
