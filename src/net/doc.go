// Package net implements the broadcast medium underneath a firefly node.
//
// The only wire artifact is the Beacon, a fixed-length identity frame that a
// node broadcasts once per cycle. Transports deliver raw frames on a
// consumer channel together with their arrival instant; everything above the
// transport treats frames of unexpected shape as channel noise.
//
// Two transports are provided: a UDP transport that broadcasts datagrams on
// a shared network segment, and an in-memory transport for testing multiple
// nodes in one process, with optional frame loss.
package net
