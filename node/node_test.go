package node

import (
	"math/big"
	"net"
	"strconv"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fernandolobato/indiecoin/chain"
	"github.com/fernandolobato/indiecoin/chainmodel"
	"github.com/fernandolobato/indiecoin/p2p"
	"github.com/fernandolobato/indiecoin/store"
)

func dialAddr(t *testing.T, p *p2p.Peer) (string, int) {
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

func withTrivialDifficulty(t *testing.T) {
	t.Helper()
	original := chainmodel.Difficulty
	chainmodel.Difficulty = new(big.Int).Lsh(big.NewInt(1), 256)
	t.Cleanup(func() { chainmodel.Difficulty = original })
}

func newTestNode(t *testing.T) (*Node, *p2p.Peer) {
	t.Helper()
	withTrivialDifficulty(t)

	st, err := store.Open(t.TempDir(), zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if _, err := st.EnsureGenesis(); err != nil {
		t.Fatalf("EnsureGenesis: %v", err)
	}

	peer := p2p.New("test-node", 10, zap.NewNop().Sugar())
	if err := peer.Listen("127.0.0.1", 0); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { _ = peer.Close() })

	c := chain.New(st)
	n := New(peer, st, c, nil, "", zap.NewNop().Sugar())
	return n, peer
}

func TestHandleMaxHeightReturnsGenesisHeight(t *testing.T) {
	_, peer := newTestNode(t)
	host, port := dialAddr(t, peer)

	replies, err := peer.ConnectAndSend(host, port, p2p.TypeMaxHeight, nil, true)
	if err != nil {
		t.Fatalf("ConnectAndSend: %v", err)
	}
	if len(replies) != 1 || string(replies[0].Payload) != "1" {
		t.Fatalf("expected height 1 (genesis), got %+v", replies)
	}
}

func TestHandleBlockGetByHash(t *testing.T) {
	n, peer := newTestNode(t)
	host, port := dialAddr(t, peer)

	genesis, err := n.store.EnsureGenesis()
	if err != nil {
		t.Fatalf("EnsureGenesis: %v", err)
	}

	replies, err := peer.ConnectAndSend(host, port, p2p.TypeBlockGet, []byte(genesis.Hash), true)
	if err != nil {
		t.Fatalf("ConnectAndSend: %v", err)
	}
	if len(replies) != 1 || replies[0].Type != p2p.TypeReply {
		t.Fatalf("expected a REPLY with the genesis block, got %+v", replies)
	}

	block, err := chainmodel.DecodeBlock(replies[0].Payload)
	if err != nil {
		t.Fatalf("DecodeBlock: %v", err)
	}
	if len(block.Transactions) != 1 || block.Transactions[0].BlockHash != genesis.Hash {
		t.Fatalf("expected the coinbase's block_hash to be set to %s, got %+v", genesis.Hash, block.Transactions)
	}
}

func TestHandleBlockGetNotFound(t *testing.T) {
	_, peer := newTestNode(t)
	host, port := dialAddr(t, peer)

	replies, err := peer.ConnectAndSend(host, port, p2p.TypeBlockGet, []byte("9999"), true)
	if err != nil {
		t.Fatalf("ConnectAndSend: %v", err)
	}
	if len(replies) != 1 || replies[0].Type != p2p.TypeError {
		t.Fatalf("expected an ERROR reply for an unknown height, got %+v", replies)
	}
}

func TestDuplicateRelayBlockIsNotForwarded(t *testing.T) {
	n, peer := newTestNode(t)
	host, port := dialAddr(t, peer)

	genesis, err := n.store.EnsureGenesis()
	if err != nil {
		t.Fatalf("EnsureGenesis: %v", err)
	}
	data, err := chainmodel.EncodeBlock(genesis)
	if err != nil {
		t.Fatalf("EncodeBlock: %v", err)
	}

	// No reply is expected for RELAY_BLOCK; just make sure it doesn't hang
	// or panic on an already-known block.
	_, err = peer.ConnectAndSend(host, port, p2p.TypeRelayBlock, data, false)
	if err != nil {
		t.Fatalf("ConnectAndSend: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
}
