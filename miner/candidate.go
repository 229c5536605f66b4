package miner

import (
	"time"

	"github.com/fernandolobato/indiecoin/chainmodel"
)

// AssembleCandidate builds the next block to mine from a mempool snapshot:
// any stray coinbase is stripped, fees are summed, a coinbase paying
// Reward+fees to rewardAddress is synthesised, and the result is wrapped at
// tipHeight+1 with previousBlockHash as its parent link.
func AssembleCandidate(mempool []chainmodel.Transaction, tipHeight int64, tipHash string, rewardAddress string, lookup chainmodel.TransactionLookup) (*chainmodel.Block, error) {
	var feeTotal int64
	txs := make([]chainmodel.Transaction, 0, len(mempool))
	for _, tx := range mempool {
		if tx.IsCoinbase {
			continue
		}
		fee, err := tx.Fee(lookup)
		if err != nil {
			return nil, err
		}
		feeTotal += fee
		txs = append(txs, tx)
	}

	coinbase := chainmodel.NewTransaction(chainmodel.Transaction{
		NumOutputs: 1,
		Timestamp:  time.Now().Unix(),
		IsCoinbase: true,
		TxOutputs: []chainmodel.TransactionOutput{
			{Amount: chainmodel.Reward + feeTotal, PublicKeyOwner: rewardAddress, Unspent: true},
		},
	})

	all := append([]chainmodel.Transaction{*coinbase}, txs...)
	block := chainmodel.NewBlock(chainmodel.Block{
		Timestamp:         time.Now().Unix(),
		Height:            tipHeight + 1,
		NumTransactions:   len(all),
		PreviousBlockHash: tipHash,
		Transactions:      all,
	})
	return block, nil
}
