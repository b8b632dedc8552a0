// Package firefly assembles a complete node from its parts: roster, UDP
// transport, protocol node and HTTP service.
package firefly

import (
	"fmt"

	"github.com/lumennet/firefly/src/config"
	"github.com/lumennet/firefly/src/net"
	"github.com/lumennet/firefly/src/node"
	"github.com/lumennet/firefly/src/peers"
	"github.com/lumennet/firefly/src/service"
	"github.com/sirupsen/logrus"
)

// Firefly is a participant in a flashing group.
type Firefly struct {
	Config    *config.Config
	Node      *node.Node
	Transport net.Transport
	Peers     *peers.PeerSet
	Service   *service.Service
}

// NewFirefly ...
func NewFirefly(config *config.Config) *Firefly {
	engine := &Firefly{
		Config: config,
	}

	return engine
}

func (f *Firefly) initPeers() error {
	peerStore := peers.NewJSONPeerSet(f.Config.DataDir)

	participants, err := peerStore.PeerSet()
	if err != nil {
		return err
	}

	if participants == nil || participants.Len() < 2 {
		return fmt.Errorf("peers.json should define at least two peers")
	}

	if err := participants.Validate(); err != nil {
		return err
	}

	f.Peers = participants

	return nil
}

func (f *Firefly) initTransport() error {
	transport, err := net.NewUDPTransport(
		f.Config.BindAddr,
		f.Config.BroadcastAddr,
		f.Config.Logger().Logger,
	)

	if err != nil {
		return err
	}

	f.Transport = transport

	return nil
}

func (f *Firefly) initNode() error {
	self, ok := f.Peers.ByMoniker[f.Config.Moniker]
	if !ok {
		return fmt.Errorf("cannot find moniker %q in peers.json", f.Config.Moniker)
	}

	f.Config.Logger().WithFields(logrus.Fields{
		"moniker": self.Moniker,
		"id":      self.ID(),
	}).Debug("PARTICIPANT")

	nodeConf := f.Config.NodeConfig()

	led := node.NewLogIndicator(f.Config.Logger())

	f.Node = node.NewNode(nodeConf, self, f.Peers, f.Transport, led)

	return nil
}

func (f *Firefly) initService() error {
	if f.Config.NoService {
		return nil
	}

	f.Service = service.NewService(
		f.Config.ServiceAddr,
		f.Node,
		f.Config.Logger(),
	)

	return nil
}

// Init initialises the firefly engine.
func (f *Firefly) Init() error {
	if err := f.initPeers(); err != nil {
		f.Config.Logger().WithError(err).Error("firefly.go:Init() initPeers")
		return err
	}

	if err := f.initTransport(); err != nil {
		f.Config.Logger().WithError(err).Error("firefly.go:Init() initTransport")
		return err
	}

	if err := f.initNode(); err != nil {
		f.Config.Logger().WithError(err).Error("firefly.go:Init() initNode")
		return err
	}

	if err := f.initService(); err != nil {
		f.Config.Logger().WithError(err).Error("firefly.go:Init() initService")
		return err
	}

	return nil
}

// Run starts the transport, the optional service and the node. It blocks
// until the node shuts down.
func (f *Firefly) Run() {
	if f.Service != nil {
		go f.Service.Serve()
	}

	f.Transport.Listen()

	f.Node.Run()
}

// Shutdown stops the node and its transport.
func (f *Firefly) Shutdown() {
	if f.Node != nil {
		f.Node.Shutdown()
	}
}
