package node

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fernandolobato/indiecoin/chainmodel"
	"github.com/fernandolobato/indiecoin/p2p"
)

// Bootstrap queries every peer in initialPeers for its height, catches up
// from whichever reports the highest number above the local height, and
// inserts each into the peer table. Fork resolution beyond this trivial
// "one peer is strictly ahead" comparison is out of scope (see DESIGN.md);
// a catch-up failure against any single block logs and continues rather
// than aborting the whole procedure.
func (n *Node) Bootstrap(initialPeers []p2p.Info) {
	localHeight, err := n.chain.GetHeight()
	if err != nil {
		n.log.Errorw("bootstrap: failed to read local height", "error", err)
		return
	}

	var best p2p.Info
	bestHeight := localHeight
	found := false

	for _, peerInfo := range initialPeers {
		if err := n.peer.InsertPeer(peerInfo); err != nil {
			n.log.Warnw("bootstrap: could not add initial peer", "peer", peerInfo.ID, "error", err)
			continue
		}
		replies, err := n.peer.ConnectAndSend(peerInfo.Host, peerInfo.Port, p2p.TypeMaxHeight, nil, true)
		if err != nil {
			n.log.Warnw("bootstrap: peer unreachable", "peer", peerInfo.ID, "error", err)
			continue
		}
		if len(replies) == 0 {
			continue
		}
		height, err := strconv.ParseInt(strings.TrimSpace(string(replies[0].Payload)), 10, 64)
		if err != nil {
			continue
		}
		if height > bestHeight {
			bestHeight = height
			best = peerInfo
			found = true
		}
	}

	if !found {
		n.log.Infow("bootstrap: no peer ahead of local height, continuing with local state", "local_height", localHeight)
		return
	}

	n.log.Infow("bootstrap: catching up", "from", best.ID, "local_height", localHeight, "target_height", bestHeight)
	for h := localHeight + 1; h <= bestHeight; h++ {
		if err := n.fetchAndPersistHeight(best, h); err != nil {
			n.log.Warnw("bootstrap: failed to catch up one block, continuing", "height", h, "error", err)
			continue
		}
	}
}

func (n *Node) fetchAndPersistHeight(peerInfo p2p.Info, height int64) error {
	replies, err := n.peer.ConnectAndSend(peerInfo.Host, peerInfo.Port, p2p.TypeBlockHeight, []byte(strconv.FormatInt(height, 10)), true)
	if err != nil {
		return err
	}
	if len(replies) == 0 || replies[0].Type != p2p.TypeReply {
		return errNoBlockAtHeight(height)
	}
	block, err := chainmodel.DecodeBlock(replies[0].Payload)
	if err != nil {
		return fmt.Errorf("decode block at height %d: %w", height, err)
	}
	if err := block.Validate(n.store, n.store); err != nil {
		return fmt.Errorf("validate block at height %d: %w", height, err)
	}
	return n.persistBlock(block)
}

func errNoBlockAtHeight(height int64) error {
	return fmt.Errorf("no block returned for height %d", height)
}
