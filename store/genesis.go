package store

import (
	"fmt"

	"github.com/fernandolobato/indiecoin/chainmodel"
	"github.com/fernandolobato/indiecoin/walletaddr"
)

// genesisPrivateKeyHex is the bundled genesis keypair's private scalar. It
// is baked into the binary the way the source bundles genesis.json: every
// node that has never seen a peer still agrees on the same height-1 block.
const genesisPrivateKeyHex = "0001f4e3a2b1c0d9e8f7a6b5c4d3e2f1a0b9c8d7e6f5a4b3c2d1e0f9a8b7c6d5e4f3a2b1c0d9e8f7a6b5c4d3e2f1a0b9c8d7e6f5a4b3c2d1e0f9a8b7c6d5e4f3a2b1c0d9e8f7a6b5c4d3e2f1"

const genesisReward = 50

// GenesisAddress returns the address that owns the genesis coinbase output.
func GenesisAddress() (*walletaddr.Address, error) {
	addr, err := walletaddr.FromPrivateHex(genesisPrivateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("store: derive genesis address: %w", err)
	}
	return addr, nil
}

// Genesis builds the well-known height-1 block: a single coinbase paying
// genesisReward to GenesisAddress.
func Genesis() (*chainmodel.Block, error) {
	addr, err := GenesisAddress()
	if err != nil {
		return nil, err
	}
	coinbase := chainmodel.NewTransaction(chainmodel.Transaction{
		NumOutputs: 1,
		IsCoinbase: true,
		TxOutputs: []chainmodel.TransactionOutput{
			{Amount: genesisReward, PublicKeyOwner: addr.PublicHex(), Unspent: true},
		},
	})
	block := chainmodel.NewBlock(chainmodel.Block{
		Height:          1,
		NumTransactions: 1,
		Transactions:    []chainmodel.Transaction{*coinbase},
	})
	return block, nil
}

// EnsureGenesis inserts the genesis block if the store is empty.
func (s *Store) EnsureGenesis() (*chainmodel.Block, error) {
	existing, err := s.GetBlockByHeight(1)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	genesis, err := Genesis()
	if err != nil {
		return nil, err
	}
	genesis.Transactions[0].BlockHash = genesis.Hash
	if _, err := s.SaveTransaction(&genesis.Transactions[0]); err != nil {
		return nil, err
	}
	if err := s.SaveBlock(genesis); err != nil {
		return nil, err
	}
	return genesis, nil
}
