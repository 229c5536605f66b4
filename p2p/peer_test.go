package p2p

import (
	"net"
	"strconv"
	"testing"

	"go.uber.org/zap"
)

func newTestPeer(t *testing.T, maxPeers int) *Peer {
	t.Helper()
	p := New("test-peer", maxPeers, zap.NewNop().Sugar())
	if err := p.Listen("127.0.0.1", 0); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func dialAddr(t *testing.T, p *Peer) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(p.Addr().String())
	if err != nil {
		t.Fatalf("SplitHostPort: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("Atoi: %v", err)
	}
	return host, port
}

func TestListPeersEmpty(t *testing.T) {
	p := newTestPeer(t, 5)
	host, port := dialAddr(t, p)

	replies, err := p.ConnectAndSend(host, port, TypeListPeers, nil, true)
	if err != nil {
		t.Fatalf("ConnectAndSend: %v", err)
	}
	if len(replies) != 1 || string(replies[0].Payload) != "0" {
		t.Fatalf("expected a single reply \"0\", got %+v", replies)
	}
}

func TestInsertPeerEnforcesMaxPeers(t *testing.T) {
	p := newTestPeer(t, 1)
	host, port := dialAddr(t, p)

	replies, err := p.ConnectAndSend(host, port, TypeInsertPeer, []byte("peerA 10.0.0.1 7000"), true)
	if err != nil {
		t.Fatalf("ConnectAndSend: %v", err)
	}
	if len(replies) != 1 || replies[0].Type != TypeReply {
		t.Fatalf("expected first insert to succeed, got %+v", replies)
	}

	replies, err = p.ConnectAndSend(host, port, TypeInsertPeer, []byte("peerB 10.0.0.2 7001"), true)
	if err != nil {
		t.Fatalf("ConnectAndSend: %v", err)
	}
	if len(replies) != 1 || replies[0].Type != TypeError {
		t.Fatalf("expected second insert to be rejected once max_peers is reached, got %+v", replies)
	}
}

func TestPeerNameReplies(t *testing.T) {
	p := newTestPeer(t, 5)
	host, port := dialAddr(t, p)

	replies, err := p.ConnectAndSend(host, port, TypePeerName, nil, true)
	if err != nil {
		t.Fatalf("ConnectAndSend: %v", err)
	}
	if len(replies) != 1 || string(replies[0].Payload) != "test-peer" {
		t.Fatalf("expected peer name reply, got %+v", replies)
	}
}
