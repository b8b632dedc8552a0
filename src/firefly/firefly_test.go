package firefly

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/lumennet/firefly/src/config"
	"github.com/lumennet/firefly/src/peers"
	"github.com/sirupsen/logrus"
)

func initFireflyDir(t *testing.T, monikers ...string) string {
	dir, err := ioutil.TempDir("", "firefly")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	roster := []*peers.Peer{}
	for _, m := range monikers {
		roster = append(roster, peers.NewPeer(m, "127.0.0.1:0"))
	}

	if err := peers.NewJSONPeerSet(dir).Write(roster); err != nil {
		t.Fatal(err)
	}

	return dir
}

func testFireflyConfig(t *testing.T, dir, moniker string) *config.Config {
	conf := config.NewTestConfig(t, logrus.ErrorLevel)
	conf.SetDataDir(dir)
	conf.Moniker = moniker
	conf.BindAddr = "127.0.0.1:0"
	conf.BroadcastAddr = "127.0.0.1:9999"
	conf.NoService = true
	return conf
}

func TestInit(t *testing.T) {
	dir := initFireflyDir(t, "alice", "bob")

	engine := NewFirefly(testFireflyConfig(t, dir, "alice"))
	if err := engine.Init(); err != nil {
		t.Fatal(err)
	}
	defer engine.Transport.Close()

	if engine.Node == nil {
		t.Fatal("engine should have a node")
	}
	if engine.Peers.Len() != 2 {
		t.Fatalf("expected 2 peers, got %d", engine.Peers.Len())
	}
	if engine.Node.Moniker() != "alice" {
		t.Fatalf("bad moniker %q", engine.Node.Moniker())
	}
	if engine.Service != nil {
		t.Fatal("no-service should leave the service nil")
	}
}

func TestInitUnknownMoniker(t *testing.T) {
	dir := initFireflyDir(t, "alice", "bob")

	engine := NewFirefly(testFireflyConfig(t, dir, "carol"))
	if err := engine.Init(); err == nil {
		engine.Transport.Close()
		t.Fatal("a moniker outside the roster should fail Init")
	}
}

func TestInitSinglePeerRoster(t *testing.T) {
	dir := initFireflyDir(t, "alice")

	engine := NewFirefly(testFireflyConfig(t, dir, "alice"))
	if err := engine.Init(); err == nil {
		t.Fatal("a single-peer roster should fail Init")
	}
}

func TestInitMissingRoster(t *testing.T) {
	dir, err := ioutil.TempDir("", "firefly")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	engine := NewFirefly(testFireflyConfig(t, dir, "alice"))
	if err := engine.Init(); err == nil {
		t.Fatal("a missing peers.json should fail Init")
	}
}
