// Package chain is the stateless read-side facade (C6) that handlers use to
// answer height/hash queries without importing store directly.
package chain

import "github.com/fernandolobato/indiecoin/chainmodel"

// Reader is satisfied by store.Store. It is declared here so chain never
// needs to import the persistence package's concrete type.
type Reader interface {
	GetBlockByHash(hash string) (*chainmodel.Block, error)
	GetBlockByHeight(height int64) (*chainmodel.Block, error)
	Height() (int64, error)
}

// Chain wraps a Reader with the three read operations handlers need. It
// caches nothing; every call goes straight through to the store.
type Chain struct {
	reader Reader
}

// New returns a Chain backed by reader.
func New(reader Reader) *Chain {
	return &Chain{reader: reader}
}

// GetBlock returns the block with the given hash, or nil if none exists.
func (c *Chain) GetBlock(hash string) (*chainmodel.Block, error) {
	return c.reader.GetBlockByHash(hash)
}

// GetBlockByHeight returns the block at the given height, or nil if none
// exists.
func (c *Chain) GetBlockByHeight(height int64) (*chainmodel.Block, error) {
	return c.reader.GetBlockByHeight(height)
}

// GetHeight returns the current tip height.
func (c *Chain) GetHeight() (int64, error) {
	return c.reader.Height()
}
