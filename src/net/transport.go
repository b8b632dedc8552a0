package net

import "time"

// Frame is a raw unit of data delivered by a transport, stamped with its
// arrival instant. Payload may be anything the medium picked up; validation
// happens in the consumer.
type Frame struct {
	Payload []byte
	Arrival time.Time
}

// Transport provides an interface for broadcast media to allow a node to
// hear and be heard by other nodes on the same segment.
type Transport interface {

	// Listen starts the transport listening.
	Listen()

	// Consumer returns a channel that can be used to consume incoming
	// frames.
	Consumer() <-chan Frame

	// Transmit broadcasts one beacon to every node on the segment.
	Transmit(b *Beacon) error

	// LocalAddr is used to return our local address.
	LocalAddr() string

	// Close permanently closes the transport, stopping any associated
	// goroutines and freeing other resources.
	Close() error
}
