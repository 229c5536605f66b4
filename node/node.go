// Package node wires the indiecoin-specific protocol handlers (C9) onto a
// generic p2p.Peer: block/height queries, transaction and block relay, and
// the mempool and miner coordination those handlers drive.
package node

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fernandolobato/indiecoin/chain"
	"github.com/fernandolobato/indiecoin/chainmodel"
	"github.com/fernandolobato/indiecoin/miner"
	"github.com/fernandolobato/indiecoin/p2p"
	"github.com/fernandolobato/indiecoin/store"
)

// Node is the coin-specific protocol layer. Store is exported via the
// chainmodel.TransactionLookup/BlockLookup interfaces it satisfies, so
// validation never needs a type assertion back to *store.Store.
type Node struct {
	peer  *p2p.Peer
	store *store.Store
	chain *chain.Chain
	miner *miner.Miner

	rewardAddress string // public hex; empty when this node doesn't mine

	mempoolMu sync.Mutex
	mempool   []chainmodel.Transaction

	log *zap.SugaredLogger
}

// New builds a Node and registers its handlers on peer. m may be nil for a
// relay-only node that never mines.
func New(peer *p2p.Peer, st *store.Store, ch *chain.Chain, m *miner.Miner, rewardAddress string, log *zap.SugaredLogger) *Node {
	n := &Node{
		peer:          peer,
		store:         st,
		chain:         ch,
		miner:         m,
		rewardAddress: rewardAddress,
		log:           log,
	}
	n.registerHandlers()
	return n
}

func (n *Node) registerHandlers() {
	n.peer.AddHandler(p2p.TypeMaxHeight, n.handleMaxHeight)
	n.peer.AddHandler(p2p.TypeBlockGet, n.handleBlockLookup)
	n.peer.AddHandler(p2p.TypeBlockHeight, n.handleBlockLookup)
	n.peer.AddHandler(p2p.TypeRelayTx, n.handleRelayTransaction)
	n.peer.AddHandler(p2p.TypeRelayBlock, n.handleRelayBlock)
}

func (n *Node) handleMaxHeight(c *p2p.Conn, _ []byte) {
	height, err := n.chain.GetHeight()
	if err != nil {
		n.log.Errorw("failed to read chain height", "error", err)
		_ = c.Reply(p2p.TypeError, []byte("could not determine height"))
		return
	}
	_ = c.Reply(p2p.TypeReply, []byte(strconv.FormatInt(height, 10)))
}

// handleBlockLookup serves both BLOCK_GET and BLOCK_HEIGHT: a 64-char hex
// payload is a hash lookup, anything else is parsed as a decimal height.
func (n *Node) handleBlockLookup(c *p2p.Conn, payload []byte) {
	key := strings.TrimSpace(string(payload))

	var block *chainmodel.Block
	var err error
	if len(key) == 64 && isHex(key) {
		block, err = n.chain.GetBlock(key)
	} else if height, perr := strconv.ParseInt(key, 10, 64); perr == nil {
		block, err = n.chain.GetBlockByHeight(height)
	} else {
		_ = c.Reply(p2p.TypeError, []byte("payload must be a 64-char hash or a decimal height"))
		return
	}

	if err != nil {
		n.log.Errorw("block lookup failed", "key", key, "error", err)
		_ = c.Reply(p2p.TypeError, []byte("Block not found"))
		return
	}
	if block == nil {
		_ = c.Reply(p2p.TypeError, []byte("Block not found"))
		return
	}
	data, err := chainmodel.EncodeBlock(block)
	if err != nil {
		n.log.Errorw("failed to encode block", "error", err)
		_ = c.Reply(p2p.TypeError, []byte("internal error"))
		return
	}
	_ = c.Reply(p2p.TypeReply, data)
}

func isHex(s string) bool {
	for _, r := range s {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')) {
			return false
		}
	}
	return true
}

func (n *Node) handleRelayTransaction(c *p2p.Conn, payload []byte) {
	tx, err := chainmodel.DecodeTransaction(payload)
	if err != nil {
		n.log.Infow("dropping malformed relayed transaction", "error", err)
		return
	}
	if err := tx.Validate(n.store); err != nil {
		n.log.Infow("dropping invalid relayed transaction", "hash", tx.Hash, "error", err)
		return
	}

	if n.inMempool(tx.Hash) {
		return
	}
	if existing, err := n.store.GetTransaction(tx.Hash); err == nil && existing != nil {
		return
	}

	n.addToMempool(*tx)
	n.forwardExceptSender(c, p2p.TypeRelayTx, payload)
}

func (n *Node) handleRelayBlock(c *p2p.Conn, payload []byte) {
	block, err := chainmodel.DecodeBlock(payload)
	if err != nil {
		n.log.Infow("dropping malformed relayed block", "error", err)
		return
	}

	if existing, err := n.chain.GetBlock(block.Hash); err == nil && existing != nil {
		return // already known: relay loop suppression (no further forward)
	}

	if n.miner != nil {
		n.miner.Interrupt()
	}

	if err := block.Validate(n.store, n.store); err != nil {
		n.log.Infow("dropping invalid relayed block", "hash", block.Hash, "error", err)
		n.resumeMiner()
		return
	}

	if err := n.persistBlock(block); err != nil {
		n.log.Errorw("failed to persist relayed block", "hash", block.Hash, "error", err)
		n.resumeMiner()
		return
	}

	n.purgeMempool(block.Transactions)
	n.forwardExceptSender(c, p2p.TypeRelayBlock, payload)
	n.resumeMiner()
}

// persistBlock stamps each transaction's block_hash, saves the transactions,
// then the block metadata.
func (n *Node) persistBlock(block *chainmodel.Block) error {
	for i := range block.Transactions {
		block.Transactions[i].BlockHash = block.Hash
		if _, err := n.store.SaveTransaction(&block.Transactions[i]); err != nil {
			return fmt.Errorf("save transaction %s: %w", block.Transactions[i].Hash, err)
		}
	}
	if err := n.store.SaveBlock(block); err != nil {
		return fmt.Errorf("save block %s: %w", block.Hash, err)
	}
	return nil
}

func (n *Node) forwardExceptSender(sender *p2p.Conn, msgType string, payload []byte) {
	senderHost, _, _ := hostOf(sender)
	for _, info := range n.peer.Peers() {
		if info.Host == senderHost {
			continue
		}
		go func(info p2p.Info) {
			if _, err := n.peer.ConnectAndSend(info.Host, info.Port, msgType, payload, false); err != nil {
				n.log.Debugw("forward failed", "peer", info.ID, "type", msgType, "error", err)
			}
		}(info)
	}
}

func hostOf(c *p2p.Conn) (string, string, error) {
	addr := c.RemoteAddr().String()
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return addr, "", nil
	}
	return addr[:idx], addr[idx+1:], nil
}

func (n *Node) inMempool(hash string) bool {
	n.mempoolMu.Lock()
	defer n.mempoolMu.Unlock()
	for _, tx := range n.mempool {
		if tx.Hash == hash {
			return true
		}
	}
	return false
}

func (n *Node) addToMempool(tx chainmodel.Transaction) {
	n.mempoolMu.Lock()
	n.mempool = append(n.mempool, tx)
	n.mempoolMu.Unlock()
}

func (n *Node) purgeMempool(mined []chainmodel.Transaction) {
	minedHashes := make(map[string]bool, len(mined))
	for _, tx := range mined {
		minedHashes[tx.Hash] = true
	}
	n.mempoolMu.Lock()
	defer n.mempoolMu.Unlock()
	kept := n.mempool[:0]
	for _, tx := range n.mempool {
		if !minedHashes[tx.Hash] {
			kept = append(kept, tx)
		}
	}
	n.mempool = kept
}

func (n *Node) mempoolSnapshot() []chainmodel.Transaction {
	n.mempoolMu.Lock()
	defer n.mempoolMu.Unlock()
	snap := make([]chainmodel.Transaction, len(n.mempool))
	copy(snap, n.mempool)
	return snap
}

// resumeMiner rebuilds a candidate from the current tip and mempool and
// hands it to the miner, then signals resume. Called after every block
// acceptance (successful or not) so the miner always restarts against
// current state, per the binding interrupt-then-resume requirement.
func (n *Node) resumeMiner() {
	if n.miner == nil {
		return
	}
	height, err := n.chain.GetHeight()
	if err != nil {
		n.log.Errorw("resumeMiner: failed to read height", "error", err)
		return
	}
	tip, err := n.chain.GetBlockByHeight(height)
	if err != nil || tip == nil {
		n.log.Errorw("resumeMiner: failed to read tip", "error", err)
		return
	}
	candidate, err := miner.AssembleCandidate(n.mempoolSnapshot(), tip.Height, tip.Hash, n.rewardAddress, n.store)
	if err != nil {
		n.log.Errorw("resumeMiner: failed to assemble candidate", "error", err)
		return
	}
	n.miner.SetBlock(candidate)
	n.miner.Resume()
}

// MineLoop consumes mined blocks from the miner, persists and broadcasts
// them, then immediately assembles the next candidate. Run it in its own
// goroutine when this node mines.
func (n *Node) MineLoop() {
	for block := range n.miner.Found() {
		if err := n.persistBlock(block); err != nil {
			n.log.Errorw("failed to persist mined block", "hash", block.Hash, "error", err)
			continue
		}
		n.purgeMempool(block.Transactions)
		n.log.Infow("mined block", "hash", block.Hash, "height", block.Height)

		data, err := chainmodel.EncodeBlock(block)
		if err != nil {
			n.log.Errorw("failed to encode mined block for broadcast", "error", err)
			continue
		}
		for _, info := range n.peer.Peers() {
			go func(info p2p.Info) {
				if _, err := n.peer.ConnectAndSend(info.Host, info.Port, p2p.TypeRelayBlock, data, false); err != nil {
					n.log.Debugw("broadcast failed", "peer", info.ID, "error", err)
				}
			}(info)
		}

		n.resumeMiner()
	}
}

// SeedMiner assembles the first candidate so the miner has something to
// search for as soon as Run starts.
func (n *Node) SeedMiner() {
	if n.miner == nil {
		return
	}
	n.resumeMiner()
}
