package node

import (
	"math/rand"
	"sync"
)

// ByteSource yields random bytes for initial phase jitter and the backoff
// jitter pool. It is injected rather than global so tests and simulations
// can supply deterministic sequences.
type ByteSource interface {
	Byte() byte
}

type mathByteSource struct {
	l   sync.Mutex
	rng *rand.Rand
}

// NewByteSource returns a ByteSource backed by math/rand with the given
// seed.
func NewByteSource(seed int64) ByteSource {
	return &mathByteSource{rng: rand.New(rand.NewSource(seed))}
}

func (s *mathByteSource) Byte() byte {
	s.l.Lock()
	defer s.l.Unlock()
	return byte(s.rng.Intn(256))
}

// fixedByteSource replays a fixed sequence; used in tests.
type fixedByteSource struct {
	seq []byte
	i   int
}

func (s *fixedByteSource) Byte() byte {
	b := s.seq[s.i%len(s.seq)]
	s.i++
	return b
}
