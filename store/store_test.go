package store

import (
	"testing"

	"go.uber.org/zap"

	"github.com/fernandolobato/indiecoin/chainmodel"
	"github.com/fernandolobato/indiecoin/walletaddr"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestEnsureGenesisIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	first, err := s.EnsureGenesis()
	if err != nil {
		t.Fatalf("EnsureGenesis: %v", err)
	}
	second, err := s.EnsureGenesis()
	if err != nil {
		t.Fatalf("EnsureGenesis (second call): %v", err)
	}
	if first.Hash != second.Hash {
		t.Fatalf("expected the same genesis hash on repeated calls")
	}
	height, err := s.Height()
	if err != nil {
		t.Fatalf("Height: %v", err)
	}
	if height != 1 {
		t.Fatalf("expected tip height 1 after genesis, got %d", height)
	}

	stored, err := s.GetTransaction(first.Transactions[0].Hash)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if stored.BlockHash != first.Hash {
		t.Fatalf("expected genesis coinbase block_hash to be set to %s, got %q", first.Hash, stored.BlockHash)
	}
}

func TestSaveTransactionIdempotent(t *testing.T) {
	s := openTestStore(t)
	addr, err := walletaddr.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	tx := chainmodel.NewTransaction(chainmodel.Transaction{
		NumOutputs: 1,
		IsCoinbase: true,
		TxOutputs:  []chainmodel.TransactionOutput{{Amount: 5, PublicKeyOwner: addr.PublicHex(), Unspent: true}},
	})
	saved, err := s.SaveTransaction(tx)
	if err != nil || !saved {
		t.Fatalf("expected first save to succeed, got saved=%v err=%v", saved, err)
	}
	savedAgain, err := s.SaveTransaction(tx)
	if err != nil {
		t.Fatalf("SaveTransaction (repeat): %v", err)
	}
	if savedAgain {
		t.Fatalf("expected repeated save of the same hash to be a no-op")
	}
}

func TestSaveTransactionMarksInputsSpent(t *testing.T) {
	s := openTestStore(t)
	addr, err := walletaddr.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	prev := chainmodel.NewTransaction(chainmodel.Transaction{
		NumOutputs: 1,
		IsCoinbase: true,
		TxOutputs:  []chainmodel.TransactionOutput{{Amount: 10, PublicKeyOwner: addr.PublicHex(), Unspent: true}},
	})
	if _, err := s.SaveTransaction(prev); err != nil {
		t.Fatalf("SaveTransaction(prev): %v", err)
	}

	sig, err := addr.Sign([]byte(prev.Hash))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	spend := chainmodel.NewTransaction(chainmodel.Transaction{
		NumInputs:  1,
		NumOutputs: 1,
		TxInputs:   []chainmodel.TransactionInput{{Signature: sig, HashTransaction: prev.Hash, PrevOutputIndex: 0}},
		TxOutputs:  []chainmodel.TransactionOutput{{Amount: 10, PublicKeyOwner: addr.PublicHex(), Unspent: true}},
	})
	if _, err := s.SaveTransaction(spend); err != nil {
		t.Fatalf("SaveTransaction(spend): %v", err)
	}

	reloaded, err := s.GetTransaction(prev.Hash)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if reloaded.TxOutputs[0].Unspent {
		t.Fatalf("expected referenced output to be marked spent")
	}
}
