package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lumennet/firefly/src/common"
	fnet "github.com/lumennet/firefly/src/net"
	"github.com/lumennet/firefly/src/node"
	"github.com/lumennet/firefly/src/peers"
	"github.com/sirupsen/logrus"
)

func newTestService(t *testing.T) (*Service, *node.Node) {
	logger := common.NewTestLogger(t, logrus.ErrorLevel)

	addr, trans := fnet.NewInmemTransport("")
	peerSet := peers.NewPeerSet([]*peers.Peer{
		peers.NewPeer("alice", addr),
		peers.NewPeer("bob", "127.0.0.1:2"),
	})

	conf := node.NewConfig(
		0x28,
		50*time.Millisecond,
		10*time.Millisecond,
		1*time.Millisecond,
		5*time.Millisecond,
		logger,
	)
	conf.Rand = node.NewByteSource(1)

	n := node.NewNode(conf, peerSet.ByMoniker["alice"], peerSet, trans, node.NopIndicator{})

	return NewService("127.0.0.1:0", n, logger.WithField("component", "service")), n
}

func get(t *testing.T, s *Service, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	s.Mux().ServeHTTP(w, req)
	return w
}

func TestServiceGetStats(t *testing.T) {
	s, n := newTestService(t)
	n.RunAsync()
	defer n.Shutdown()

	w := get(t, s, "/stats")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if cors := w.Header().Get("Access-Control-Allow-Origin"); cors != "*" {
		t.Fatalf("missing CORS header, got %q", cors)
	}

	var stats map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats["moniker"] != "alice" {
		t.Fatalf("bad moniker %q", stats["moniker"])
	}
	if _, ok := stats["fires"]; !ok {
		t.Fatal("stats should include fire count")
	}
}

func TestServiceGetClock(t *testing.T) {
	s, n := newTestService(t)
	n.RunAsync()
	defer n.Shutdown()

	w := get(t, s, "/clock")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var clock node.ClockSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &clock); err != nil {
		t.Fatal(err)
	}
	if clock.Period != 50*time.Millisecond {
		t.Fatalf("bad period %v", clock.Period)
	}
	if clock.NextFire.Before(clock.PreviousFire) {
		t.Fatal("schedule should be ordered")
	}
}

func TestServiceGetPeers(t *testing.T) {
	s, n := newTestService(t)
	n.RunAsync()
	defer n.Shutdown()

	w := get(t, s, "/peers")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var ps []*peers.Peer
	if err := json.Unmarshal(w.Body.Bytes(), &ps); err != nil {
		t.Fatal(err)
	}
	if len(ps) != 2 {
		t.Fatalf("expected 2 peers, got %d", len(ps))
	}
}
