package chainmodel

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/fernandolobato/indiecoin/cryptoutil"
	"github.com/fernandolobato/indiecoin/walletaddr"
)

// Reward is the amount minted by a coinbase transaction, before fees.
const Reward = 5

// TransactionLookup resolves a previously persisted transaction by hash.
// store.Store satisfies this; it is declared here, not in store, so
// chainmodel never imports the persistence package.
type TransactionLookup interface {
	GetTransaction(hash string) (*Transaction, error)
}

// TransactionInput spends one output of a previously persisted transaction.
type TransactionInput struct {
	Signature        string `json:"signature"`
	HashTransaction  string `json:"hash_transaction"`
	PrevOutputIndex  int    `json:"prev_out_index"`
}

// TransactionOutput allocates amount to whoever holds the private key for
// PublicKeyOwner. Unspent is flipped to false by store.SaveTransaction when
// a later transaction consumes it.
type TransactionOutput struct {
	Amount         int64  `json:"amount"`
	PublicKeyOwner string `json:"public_key_owner"`
	Unspent        Flag   `json:"unspent"`
}

// Transaction is the unit of value transfer. Hash is derived from the
// canonical serialisation of every other field; BlockHash is empty until
// the transaction is mined into a block.
type Transaction struct {
	Hash           string               `json:"hash"`
	BlockHash      string               `json:"block_hash"`
	NumInputs      int                  `json:"num_inputs"`
	NumOutputs     int                  `json:"num_outputs"`
	Timestamp      int64                `json:"timestamp"`
	IsCoinbase     Flag                 `json:"is_coinbase"`
	IsOrphan       Flag                 `json:"is_orphan"`
	TxInputs       []TransactionInput   `json:"tx_inputs"`
	TxOutputs      []TransactionOutput  `json:"tx_outputs"`
}

// NewTransaction builds a transaction, recomputing Hash when it is not
// already a 64-character digest (the source's rule for treating Hash as
// "supplied or derived").
func NewTransaction(t Transaction) *Transaction {
	tx := t
	if len(tx.Hash) != 64 {
		tx.Hash = tx.computeHash()
	}
	return &tx
}

// computeHash hashes the canonical serialisation with Hash and BlockHash
// excluded, per the canonicalisation rule shared across the chain model.
func (t *Transaction) computeHash() string {
	fields := map[string]string{
		"num_inputs":  strconv.Itoa(t.NumInputs),
		"num_outputs": strconv.Itoa(t.NumOutputs),
		"timestamp":   strconv.FormatInt(t.Timestamp, 10),
		"is_coinbase": strconv.FormatBool(bool(t.IsCoinbase)),
		"is_orphan":   strconv.FormatBool(bool(t.IsOrphan)),
		"tx_inputs":   serializeInputs(t.TxInputs),
		"tx_outputs":  serializeOutputs(t.TxOutputs),
	}
	return cryptoutil.SHA256([]byte(canonicalize(fields)))
}

func serializeInputs(inputs []TransactionInput) string {
	parts := make([]string, len(inputs))
	for i, in := range inputs {
		parts[i] = fmt.Sprintf("%s:%s:%d", in.Signature, in.HashTransaction, in.PrevOutputIndex)
	}
	return strings.Join(parts, "|")
}

func serializeOutputs(outputs []TransactionOutput) string {
	parts := make([]string, len(outputs))
	for i, out := range outputs {
		parts[i] = fmt.Sprintf("%d:%s:%t", out.Amount, out.PublicKeyOwner, bool(out.Unspent))
	}
	return strings.Join(parts, "|")
}

// canonicalize produces a stable textual representation of a field map:
// keys sorted, "key=value" pairs joined with "&". Every hash in this system
// is computed over the UTF-8 bytes of this text.
func canonicalize(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + fields[k]
	}
	return strings.Join(parts, "&")
}

// InputSum returns the sum of the amounts of the outputs referenced by t's
// inputs, resolved through lookup.
func (t *Transaction) InputSum(lookup TransactionLookup) (int64, error) {
	var total int64
	for _, in := range t.TxInputs {
		out, err := t.resolveOutput(lookup, in)
		if err != nil {
			return 0, err
		}
		total += out.Amount
	}
	return total, nil
}

// OutputSum returns the sum of t's own output amounts.
func (t *Transaction) OutputSum() int64 {
	var total int64
	for _, out := range t.TxOutputs {
		total += out.Amount
	}
	return total
}

// Fee is InputSum - OutputSum for a non-coinbase transaction. It is exposed
// to the miner for coinbase assembly but never serialised.
func (t *Transaction) Fee(lookup TransactionLookup) (int64, error) {
	in, err := t.InputSum(lookup)
	if err != nil {
		return 0, err
	}
	return in - t.OutputSum(), nil
}

func (t *Transaction) resolveOutput(lookup TransactionLookup, in TransactionInput) (*TransactionOutput, error) {
	referenced, err := lookup.GetTransaction(in.HashTransaction)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve input %s: %v", ErrInvalidTransaction, in.HashTransaction, err)
	}
	if referenced == nil {
		return nil, fmt.Errorf("%w: input references unknown transaction %s", ErrInvalidTransaction, in.HashTransaction)
	}
	if in.PrevOutputIndex < 0 || in.PrevOutputIndex >= len(referenced.TxOutputs) {
		return nil, fmt.Errorf("%w: input references out-of-range output %d", ErrInvalidTransaction, in.PrevOutputIndex)
	}
	return &referenced.TxOutputs[in.PrevOutputIndex], nil
}

// Validate enforces the per-transaction rules of the chain invariants
// (structure, spend eligibility, signatures, balance). Coinbase reward
// bound checking is a block-level rule (see Block.Validate) since it
// depends on the fees of sibling transactions.
func (t *Transaction) Validate(lookup TransactionLookup) error {
	if t.NumInputs != len(t.TxInputs) {
		return fmt.Errorf("%w: num_inputs %d does not match %d inputs", ErrInvalidTransaction, t.NumInputs, len(t.TxInputs))
	}
	if t.NumOutputs != len(t.TxOutputs) {
		return fmt.Errorf("%w: num_outputs %d does not match %d outputs", ErrInvalidTransaction, t.NumOutputs, len(t.TxOutputs))
	}
	if t.NumInputs == 0 && !t.IsCoinbase {
		return fmt.Errorf("%w: non-coinbase transaction has no inputs", ErrInvalidTransaction)
	}
	if t.IsCoinbase {
		return nil
	}

	var inputTotal int64
	for _, in := range t.TxInputs {
		out, err := t.resolveOutput(lookup, in)
		if err != nil {
			return err
		}
		if !out.Unspent {
			return fmt.Errorf("%w: input references already-spent output", ErrInvalidTransaction)
		}
		if !walletaddr.Verify(out.PublicKeyOwner, in.Signature, []byte(in.HashTransaction)) {
			return fmt.Errorf("%w: input signature does not verify", ErrInvalidTransaction)
		}
		inputTotal += out.Amount
	}
	if inputTotal < t.OutputSum() {
		return fmt.Errorf("%w: input sum %d is less than output sum %d", ErrInvalidTransaction, inputTotal, t.OutputSum())
	}
	return nil
}
