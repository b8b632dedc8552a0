package peers

import (
	"fmt"
	"sort"
)

// PeerSet is an immutable set of Peers indexed by short address and moniker.
type PeerSet struct {
	Peers     []*Peer `json:"peers"`
	ByID      map[uint16]*Peer
	ByMoniker map[string]*Peer
}

// NewPeerSet creates a PeerSet from a list of Peers, sorted by moniker.
func NewPeerSet(peers []*Peer) *PeerSet {
	sorted := make([]*Peer, len(peers))
	copy(sorted, peers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Moniker < sorted[j].Moniker
	})

	peerSet := &PeerSet{
		Peers:     sorted,
		ByID:      make(map[uint16]*Peer),
		ByMoniker: make(map[string]*Peer),
	}

	for _, peer := range sorted {
		peerSet.ByID[peer.ID()] = peer
		peerSet.ByMoniker[peer.Moniker] = peer
	}

	return peerSet
}

// Len returns the number of Peers in the PeerSet.
func (p *PeerSet) Len() int {
	return len(p.Peers)
}

// Validate checks that short addresses do not collide within the roster.
// Addresses are derived by hashing monikers, so a collision is resolved by
// renaming one of the peers.
func (p *PeerSet) Validate() error {
	if len(p.ByID) != len(p.Peers) {
		return fmt.Errorf("roster contains colliding short addresses; rename a peer")
	}
	if len(p.ByMoniker) != len(p.Peers) {
		return fmt.Errorf("roster contains duplicate monikers")
	}
	return nil
}
