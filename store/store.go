// Package store is the persistent store of blocks and transactions (C3):
// four logical relations — block, transaction, transaction_input,
// transaction_output — realised as key prefixes inside one badger.DB rather
// than four SQL tables, per the "single store abstraction with typed
// operations, no class hierarchy" redesign.
package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/fernandolobato/indiecoin/chainmodel"
)

const (
	prefixBlockMeta   = "blk:"
	prefixBlockHeight = "blh:"
	prefixTx          = "tx:"
	prefixBlockTx     = "btx:"
	keyTipHeight      = "tip"
)

// Store is the badger-backed implementation of C3. It satisfies
// chainmodel.TransactionLookup and chainmodel.BlockLookup directly, so
// validation code can be handed a *Store with no adaptor.
type Store struct {
	db  *badger.DB
	log *zap.SugaredLogger
}

// Open opens (or creates) the store rooted at dir. It mirrors the teacher's
// lock-contention recovery: a stale LOCK file from an unclean shutdown is
// removed and the open retried once before giving up.
func Open(dir string, log *zap.SugaredLogger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: mkdir %s: %v", ErrStore, dir, err)
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := openDB(dir, opts, log)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrStore, dir, err)
	}
	return &Store{db: db, log: log}, nil
}

func openDB(dir string, opts badger.Options, log *zap.SugaredLogger) (*badger.DB, error) {
	db, err := badger.Open(opts)
	if err == nil {
		return db, nil
	}
	if !strings.Contains(err.Error(), "LOCK") {
		return nil, err
	}
	if rmErr := os.Remove(filepath.Join(dir, "LOCK")); rmErr != nil {
		return nil, err
	}
	log.Warnw("removed stale badger LOCK file, retrying open", "dir", dir)
	return badger.Open(opts)
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func blockMetaKey(hash string) []byte   { return []byte(prefixBlockMeta + hash) }
func blockHeightKey(h int64) []byte     { return []byte(fmt.Sprintf("%s%020d", prefixBlockHeight, h)) }
func txKey(hash string) []byte          { return []byte(prefixTx + hash) }
func blockTxKey(blockHash string, idx int) []byte {
	return []byte(fmt.Sprintf("%s%s:%08d", prefixBlockTx, blockHash, idx))
}

// GetBlockByHash returns the block stored under hash, with its transactions
// populated from the block/transaction index, or nil if absent.
func (s *Store) GetBlockByHash(hash string) (*chainmodel.Block, error) {
	var block *chainmodel.Block
	err := s.db.View(func(txn *badger.Txn) error {
		b, err := getBlockMeta(txn, hash)
		if err != nil {
			return err
		}
		block = b
		return nil
	})
	if err != nil || block == nil {
		return nil, wrapStoreErr(err)
	}
	txs, err := s.GetBlockTransactions(block.Hash)
	if err != nil {
		return nil, err
	}
	block.Transactions = txs
	return block, nil
}

func getBlockMeta(txn *badger.Txn, hash string) (*chainmodel.Block, error) {
	item, err := txn.Get(blockMetaKey(hash))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var block chainmodel.Block
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &block)
	}); err != nil {
		return nil, err
	}
	return &block, nil
}

// GetBlockByHeight returns the block at the given height, or nil if none is
// persisted there.
func (s *Store) GetBlockByHeight(height int64) (*chainmodel.Block, error) {
	var hash string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blockHeightKey(height))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			hash = string(val)
			return nil
		})
	})
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	if hash == "" {
		return nil, nil
	}
	return s.GetBlockByHash(hash)
}

// Height returns the current tip height, 0 if the store holds no blocks yet.
func (s *Store) Height() (int64, error) {
	var height int64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyTipHeight))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			height = int64(binary.BigEndian.Uint64(val))
			return nil
		})
	})
	if err != nil {
		return 0, wrapStoreErr(err)
	}
	return height, nil
}

// GetTransaction returns the transaction stored under hash, or nil if
// absent.
func (s *Store) GetTransaction(hash string) (*chainmodel.Transaction, error) {
	var tx *chainmodel.Transaction
	err := s.db.View(func(txn *badger.Txn) error {
		t, err := getTx(txn, hash)
		if err != nil {
			return err
		}
		tx = t
		return nil
	})
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return tx, nil
}

func getTx(txn *badger.Txn, hash string) (*chainmodel.Transaction, error) {
	item, err := txn.Get(txKey(hash))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var tx chainmodel.Transaction
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &tx)
	}); err != nil {
		return nil, err
	}
	return &tx, nil
}

// GetBlockTransactions returns every transaction belonging to blockHash, in
// the order they were saved.
func (s *Store) GetBlockTransactions(blockHash string) ([]chainmodel.Transaction, error) {
	var txs []chainmodel.Transaction
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(prefixBlockTx + blockHash + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var hash string
			if err := it.Item().Value(func(val []byte) error {
				hash = string(val)
				return nil
			}); err != nil {
				return err
			}
			tx, err := getTx(txn, hash)
			if err != nil {
				return err
			}
			if tx != nil {
				txs = append(txs, *tx)
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return txs, nil
}

// SaveBlock persists a block's metadata (without its transactions, which the
// caller must already have saved independently via SaveTransaction, with
// BlockHash stamped beforehand) and advances the tip pointer if the block
// extends the chain further than the current tip.
func (s *Store) SaveBlock(block *chainmodel.Block) error {
	meta := *block
	meta.Transactions = nil
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("%w: marshal block: %v", ErrStore, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(blockMetaKey(block.Hash), data); err != nil {
			return err
		}
		if err := txn.Set(blockHeightKey(block.Height), []byte(block.Hash)); err != nil {
			return err
		}
		current, err := currentTip(txn)
		if err != nil {
			return err
		}
		if block.Height > current {
			buf := make([]byte, 8)
			binary.BigEndian.PutUint64(buf, uint64(block.Height))
			if err := txn.Set([]byte(keyTipHeight), buf); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	for i := range block.Transactions {
		if err := s.saveBlockTxIndex(block.Hash, i, block.Transactions[i].Hash); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) saveBlockTxIndex(blockHash string, idx int, txHash string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(blockTxKey(blockHash, idx), []byte(txHash))
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	return nil
}

func currentTip(txn *badger.Txn) (int64, error) {
	item, err := txn.Get([]byte(keyTipHeight))
	if err == badger.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var height int64
	err = item.Value(func(val []byte) error {
		height = int64(binary.BigEndian.Uint64(val))
		return nil
	})
	return height, err
}

// SaveTransaction persists tx and, in the same badger transaction, flips
// Unspent to false on every output tx's inputs reference. It is idempotent:
// saving a hash that already exists is a no-op and reports saved=false,
// satisfying the idempotence property and the binding requirement that spend
// marking and the transaction write form one atomic unit.
func (s *Store) SaveTransaction(tx *chainmodel.Transaction) (saved bool, err error) {
	err = s.db.Update(func(txn *badger.Txn) error {
		if _, getErr := txn.Get(txKey(tx.Hash)); getErr == nil {
			saved = false
			return nil
		} else if getErr != badger.ErrKeyNotFound {
			return getErr
		}

		for _, in := range tx.TxInputs {
			referenced, rerr := getTx(txn, in.HashTransaction)
			if rerr != nil {
				return rerr
			}
			if referenced == nil || in.PrevOutputIndex >= len(referenced.TxOutputs) {
				return fmt.Errorf("save_transaction: dangling input reference %s:%d", in.HashTransaction, in.PrevOutputIndex)
			}
			referenced.TxOutputs[in.PrevOutputIndex].Unspent = false
			data, merr := json.Marshal(referenced)
			if merr != nil {
				return merr
			}
			if err := txn.Set(txKey(referenced.Hash), data); err != nil {
				return err
			}
		}

		data, merr := json.Marshal(tx)
		if merr != nil {
			return merr
		}
		if err := txn.Set(txKey(tx.Hash), data); err != nil {
			return err
		}
		saved = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: save_transaction: %v", ErrStore, err)
	}
	return saved, nil
}

func wrapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrStore, err)
}
