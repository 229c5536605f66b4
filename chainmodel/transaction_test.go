package chainmodel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fernandolobato/indiecoin/walletaddr"
)

type fakeLookup map[string]*Transaction

func (f fakeLookup) GetTransaction(hash string) (*Transaction, error) {
	return f[hash], nil
}

func TestCoinbaseTransactionValid(t *testing.T) {
	tx := NewTransaction(Transaction{
		NumOutputs: 1,
		IsCoinbase: true,
		TxOutputs:  []TransactionOutput{{Amount: 5, PublicKeyOwner: "abc", Unspent: true}},
	})
	require.NoError(t, tx.Validate(fakeLookup{}))
}

func TestNonCoinbaseWithoutInputsRejected(t *testing.T) {
	tx := NewTransaction(Transaction{
		NumOutputs: 1,
		TxOutputs:  []TransactionOutput{{Amount: 1, PublicKeyOwner: "abc", Unspent: true}},
	})
	require.Error(t, tx.Validate(fakeLookup{}))
}

func TestSpendingSpentOutputRejected(t *testing.T) {
	addr, err := walletaddr.Generate()
	require.NoError(t, err)
	prev := NewTransaction(Transaction{
		NumOutputs: 1,
		IsCoinbase: true,
		TxOutputs:  []TransactionOutput{{Amount: 10, PublicKeyOwner: addr.PublicHex(), Unspent: false}},
	})
	lookup := fakeLookup{prev.Hash: prev}

	sig, err := addr.Sign([]byte(prev.Hash))
	require.NoError(t, err)
	spend := NewTransaction(Transaction{
		NumInputs:  1,
		NumOutputs: 1,
		TxInputs:   []TransactionInput{{Signature: sig, HashTransaction: prev.Hash, PrevOutputIndex: 0}},
		TxOutputs:  []TransactionOutput{{Amount: 10, PublicKeyOwner: addr.PublicHex(), Unspent: true}},
	})
	require.Error(t, spend.Validate(lookup))
}

func TestTamperedSignatureRejected(t *testing.T) {
	addr, err := walletaddr.Generate()
	require.NoError(t, err)
	prev := NewTransaction(Transaction{
		NumOutputs: 1,
		IsCoinbase: true,
		TxOutputs:  []TransactionOutput{{Amount: 10, PublicKeyOwner: addr.PublicHex(), Unspent: true}},
	})
	lookup := fakeLookup{prev.Hash: prev}

	sig, err := addr.Sign([]byte(prev.Hash))
	require.NoError(t, err)
	tampered := []byte(sig)
	tampered[0] ^= 0xFF
	spend := NewTransaction(Transaction{
		NumInputs:  1,
		NumOutputs: 1,
		TxInputs:   []TransactionInput{{Signature: string(tampered), HashTransaction: prev.Hash, PrevOutputIndex: 0}},
		TxOutputs:  []TransactionOutput{{Amount: 10, PublicKeyOwner: addr.PublicHex(), Unspent: true}},
	})
	require.Error(t, spend.Validate(lookup))
}

func TestRoundTripHash(t *testing.T) {
	tx := NewTransaction(Transaction{
		NumOutputs: 1,
		IsCoinbase: true,
		TxOutputs:  []TransactionOutput{{Amount: 5, PublicKeyOwner: "abc", Unspent: true}},
	})
	data, err := EncodeTransaction(tx)
	require.NoError(t, err)
	decoded, err := DecodeTransaction(data)
	require.NoError(t, err)
	require.Equal(t, tx.Hash, decoded.Hash)
}
