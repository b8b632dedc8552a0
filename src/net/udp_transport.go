package net

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrTransportShutdown is returned when operations on a transport are
	// invoked after it's been terminated.
	ErrTransportShutdown = errors.New("transport shutdown")
)

// UDPTransport implements the Transport interface over UDP datagrams on a
// single shared segment. Every node binds the same port and transmits to the
// segment's broadcast address, so one Transmit reaches all peers, including
// a loopback copy of the sender's own frame which the node layer filters
// out.
type UDPTransport struct {
	conn      *net.UDPConn
	broadcast *net.UDPAddr

	consumerCh chan Frame

	logger *logrus.Entry

	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex
}

// NewUDPTransport binds bindAddr and directs transmissions to
// broadcastAddr.
func NewUDPTransport(
	bindAddr string,
	broadcastAddr string,
	logger *logrus.Logger,
) (*UDPTransport, error) {
	if logger == nil {
		logger = logrus.New()
		logger.Level = logrus.DebugLevel
	}

	laddr, err := net.ResolveUDPAddr("udp", bindAddr)
	if err != nil {
		return nil, err
	}

	baddr, err := net.ResolveUDPAddr("udp", broadcastAddr)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}

	trans := &UDPTransport{
		conn:       conn,
		broadcast:  baddr,
		consumerCh: make(chan Frame, 16),
		logger:     logger.WithField("component", "udp-transport"),
		shutdownCh: make(chan struct{}),
	}

	return trans, nil
}

// Consumer implements the Transport interface.
func (u *UDPTransport) Consumer() <-chan Frame {
	return u.consumerCh
}

// LocalAddr implements the Transport interface.
func (u *UDPTransport) LocalAddr() string {
	return u.conn.LocalAddr().String()
}

// Transmit implements the Transport interface.
func (u *UDPTransport) Transmit(b *Beacon) error {
	u.shutdownLock.Lock()
	defer u.shutdownLock.Unlock()

	if u.shutdown {
		return ErrTransportShutdown
	}

	_, err := u.conn.WriteToUDP(b.Encode(), u.broadcast)
	return err
}

// Listen starts the receive loop.
func (u *UDPTransport) Listen() {
	go u.listen()
}

func (u *UDPTransport) listen() {
	// Oversized on purpose: frames longer than a beacon must still be read
	// so they can be discarded as noise downstream.
	buf := make([]byte, 64)

	for {
		n, _, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-u.shutdownCh:
				return
			default:
				u.logger.WithError(err).Error("Failed to read frame")
				continue
			}
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])

		select {
		case u.consumerCh <- Frame{Payload: payload, Arrival: time.Now()}:
		default:
			u.logger.Debug("Receiver saturated, dropping frame")
		}
	}
}

// Close implements the Transport interface.
func (u *UDPTransport) Close() error {
	u.shutdownLock.Lock()
	defer u.shutdownLock.Unlock()

	if !u.shutdown {
		close(u.shutdownCh)
		u.conn.Close()
		u.shutdown = true
	}

	return nil
}
