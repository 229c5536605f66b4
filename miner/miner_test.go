package miner

import (
	"math/big"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fernandolobato/indiecoin/chainmodel"
)

// withTrivialDifficulty lowers the proof-of-work bar so tests converge in a
// handful of nonces instead of mining for real.
func withTrivialDifficulty(t *testing.T) {
	t.Helper()
	original := chainmodel.Difficulty
	// Accept any hash: the maximum possible 256-bit value plus one.
	chainmodel.Difficulty = new(big.Int).Lsh(big.NewInt(1), 256)
	t.Cleanup(func() { chainmodel.Difficulty = original })
}

func TestMinerFindsBlockFromIdle(t *testing.T) {
	withTrivialDifficulty(t)
	m := New(zap.NewNop().Sugar())
	go m.Run()
	t.Cleanup(m.Shutdown)

	candidate := chainmodel.NewBlock(chainmodel.Block{Height: 2, NumTransactions: 0})
	m.SetBlock(candidate)

	select {
	case found := <-m.Found():
		if found.Height != 2 {
			t.Fatalf("expected found block at height 2, got %d", found.Height)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for miner to find a block")
	}
}

func TestMinerInterruptThenResume(t *testing.T) {
	withTrivialDifficulty(t)
	m := New(zap.NewNop().Sugar())
	go m.Run()
	t.Cleanup(m.Shutdown)

	first := chainmodel.NewBlock(chainmodel.Block{Height: 2, NumTransactions: 0})
	m.SetBlock(first)

	m.Interrupt()
	if got := m.State(); got != Interrupted {
		t.Fatalf("expected Interrupted after Interrupt, got %s", got)
	}

	m.Resume()
	second := chainmodel.NewBlock(chainmodel.Block{Height: 3, NumTransactions: 0})
	m.SetBlock(second)

	select {
	case found := <-m.Found():
		if found.Height != 3 {
			t.Fatalf("expected the resumed search to mine height 3, got %d", found.Height)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for miner to resume and find a block")
	}
}

func TestAssembleCandidateStripsStrayCoinbase(t *testing.T) {
	lookup := fakeLookup{}
	stray := *chainmodel.NewTransaction(chainmodel.Transaction{NumOutputs: 1, IsCoinbase: true, TxOutputs: []chainmodel.TransactionOutput{{Amount: 1, PublicKeyOwner: "x", Unspent: true}}})
	block, err := AssembleCandidate([]chainmodel.Transaction{stray}, 1, "parent", "reward-addr", lookup)
	if err != nil {
		t.Fatalf("AssembleCandidate: %v", err)
	}
	if len(block.Transactions) != 1 {
		t.Fatalf("expected only the synthesised coinbase, got %d transactions", len(block.Transactions))
	}
	if block.Transactions[0].TxOutputs[0].Amount != chainmodel.Reward {
		t.Fatalf("expected coinbase to pay exactly the reward with no fees, got %d", block.Transactions[0].TxOutputs[0].Amount)
	}
}

type fakeLookup map[string]*chainmodel.Transaction

func (f fakeLookup) GetTransaction(hash string) (*chainmodel.Transaction, error) {
	return f[hash], nil
}
