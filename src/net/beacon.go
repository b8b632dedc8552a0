package net

import (
	"encoding/binary"
	"errors"
)

// BeaconLength is the exact size of a beacon frame on the wire. Receivers
// use the length as a first-pass noise filter, so it must never change.
const BeaconLength = 7

// Frame header octets, fashioned after the 802.15.4-style beacons of the
// radio this protocol originated on.
const (
	frameControlBeacon   byte = 0x80
	frameAddrShortSource byte = 0x88
)

var (
	// ErrFrameLength is returned when a frame is not BeaconLength bytes.
	ErrFrameLength = errors.New("frame has unexpected length")

	// ErrFrameHeader is returned when the header octets do not identify a
	// beacon with a short source address.
	ErrFrameHeader = errors.New("frame has unexpected header")
)

// Beacon is the identity frame announcing a firing event. It carries no
// payload: the information is the instant of its arrival.
type Beacon struct {
	Group  uint16
	Sender uint16
}

// Encode packs the beacon into its 7-octet wire form:
// control, addressing, sequence (reserved), group (LE), sender (LE).
func (b *Beacon) Encode() []byte {
	p := make([]byte, BeaconLength)
	p[0] = frameControlBeacon
	p[1] = frameAddrShortSource
	binary.LittleEndian.PutUint16(p[3:5], b.Group)
	binary.LittleEndian.PutUint16(p[5:7], b.Sender)
	return p
}

// DecodeBeacon parses a raw frame. Frames that do not match the beacon
// shape are rejected; callers treat the error as noise, not a fault.
func DecodeBeacon(p []byte) (*Beacon, error) {
	if len(p) != BeaconLength {
		return nil, ErrFrameLength
	}
	if p[0] != frameControlBeacon || p[1] != frameAddrShortSource {
		return nil, ErrFrameHeader
	}
	return &Beacon{
		Group:  binary.LittleEndian.Uint16(p[3:5]),
		Sender: binary.LittleEndian.Uint16(p[5:7]),
	}, nil
}
