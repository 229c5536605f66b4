package chainmodel

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/fernandolobato/indiecoin/cryptoutil"
)

// Difficulty is the upper bound a block's hash, read as a big-endian
// integer, must fall below: a leading zero-bit target of 25.
var Difficulty = new(big.Int).Lsh(big.NewInt(1), 256-25)

// BlockLookup resolves a previously persisted block by hash.
type BlockLookup interface {
	GetBlockByHash(hash string) (*Block, error)
}

// Block is a sealed container of transactions linked to its parent by hash.
type Block struct {
	Hash               string        `json:"hash"`
	Timestamp          int64         `json:"timestamp"`
	Nonce              int64         `json:"nonce"`
	NumTransactions    int           `json:"num_transactions"`
	IsOrphan           Flag          `json:"is_orphan"`
	PreviousBlockHash  string        `json:"previous_block_hash"`
	Height             int64         `json:"height"`
	Transactions       []Transaction `json:"transactions"`
}

// NewBlock builds a block, recomputing Hash when it is not already a
// 64-character digest.
func NewBlock(b Block) *Block {
	block := b
	if len(block.Hash) != 64 {
		block.Hash = block.computeHash()
	}
	return &block
}

// computeHash hashes the canonical serialisation of every field but Hash
// itself.
func (b *Block) computeHash() string {
	txHashes := make([]string, len(b.Transactions))
	for i, tx := range b.Transactions {
		txHashes[i] = tx.Hash
	}
	fields := map[string]string{
		"timestamp":            strconv.FormatInt(b.Timestamp, 10),
		"nonce":                strconv.FormatInt(b.Nonce, 10),
		"num_transactions":     strconv.Itoa(b.NumTransactions),
		"is_orphan":            strconv.FormatBool(bool(b.IsOrphan)),
		"previous_block_hash":  b.PreviousBlockHash,
		"height":               strconv.FormatInt(b.Height, 10),
		"transactions":         strings.Join(txHashes, "|"),
	}
	return cryptoutil.SHA256([]byte(canonicalize(fields)))
}

// SatisfiesProofOfWork reports whether the block's hash, interpreted as a
// 256-bit integer, falls below Difficulty. It is the check the source left
// as a TODO and this rewrite performs on every block admitted to the chain,
// whether mined locally or received over the wire.
func (b *Block) SatisfiesProofOfWork() bool {
	hashInt, ok := new(big.Int).SetString(b.Hash, 16)
	if !ok {
		return false
	}
	return hashInt.Cmp(Difficulty) < 0
}

// Validate enforces the block-level invariants: transaction count, exactly
// one coinbase, every transaction individually valid, the coinbase reward
// bound, parent linkage, and proof of work.
func (b *Block) Validate(txLookup TransactionLookup, blockLookup BlockLookup) error {
	if b.NumTransactions != len(b.Transactions) {
		return fmt.Errorf("%w: num_transactions %d does not match %d transactions", ErrInvalidBlock, b.NumTransactions, len(b.Transactions))
	}

	var coinbase *Transaction
	var feeTotal int64
	for i := range b.Transactions {
		tx := &b.Transactions[i]
		if tx.IsCoinbase {
			if coinbase != nil {
				return fmt.Errorf("%w: more than one coinbase transaction", ErrInvalidBlock)
			}
			coinbase = tx
			continue
		}
		if err := tx.Validate(txLookup); err != nil {
			return err
		}
		fee, err := tx.Fee(txLookup)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidBlock, err)
		}
		feeTotal += fee
	}
	if coinbase == nil {
		return fmt.Errorf("%w: no coinbase transaction", ErrInvalidBlock)
	}
	if coinbase.OutputSum() > Reward+feeTotal {
		return fmt.Errorf("%w: coinbase pays %d, exceeds reward+fees %d", ErrInvalidBlock, coinbase.OutputSum(), Reward+feeTotal)
	}

	if b.Height > 1 {
		parent, err := blockLookup.GetBlockByHash(b.PreviousBlockHash)
		if err != nil {
			return fmt.Errorf("%w: resolve parent: %v", ErrInvalidBlock, err)
		}
		if parent == nil {
			return fmt.Errorf("%w: parent block %s does not exist", ErrInvalidBlock, b.PreviousBlockHash)
		}
		if parent.Height != b.Height-1 {
			return fmt.Errorf("%w: parent height %d does not precede block height %d", ErrInvalidBlock, parent.Height, b.Height)
		}
	}

	if !b.SatisfiesProofOfWork() {
		return fmt.Errorf("%w: hash does not satisfy proof of work", ErrInvalidBlock)
	}
	return nil
}
