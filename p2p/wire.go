// Package p2p is the generic TCP peer framework (C8): a bounded peer table,
// an inbound listener that dispatches framed requests to registered
// handlers, and an outbound connect_and_send primitive. Nothing in this
// package is specific to the indiecoin protocol; node wires the
// coin-specific handlers on top.
package p2p

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// TypeLen is the fixed width of the wire type tag.
const TypeLen = 4

// Wire type tags. Every logical message name in the protocol is abbreviated
// to fit the 4-byte tag the framing requires (the protocol table names them
// LISTPEERS, BLOCK_GET and so on; these are the bytes that actually travel
// on the wire).
const (
	TypeListPeers   = "LSTP"
	TypeInsertPeer  = "INSP"
	TypePeerName    = "PEER"
	TypePeerQuit    = "PEEQ"
	TypeMaxHeight   = "MBHT"
	TypeBlockGet    = "BLKG"
	TypeBlockHeight = "BLKH"
	TypeRelayTx     = "RTXN"
	TypeRelayBlock  = "RBLK"

	TypeReply = "REPL"
	TypeError = "ERRO"
)

// Message is one framed wire message: a 4-byte type tag, a 4-byte
// big-endian length, and a UTF-8 payload.
type Message struct {
	Type    string
	Payload []byte
}

// WriteMessage frames and writes one message to w.
func WriteMessage(w io.Writer, msgType string, payload []byte) error {
	if len(msgType) > TypeLen {
		return fmt.Errorf("p2p: message type %q exceeds %d bytes", msgType, TypeLen)
	}
	header := make([]byte, TypeLen+4)
	copy(header, msgType)
	binary.BigEndian.PutUint32(header[TypeLen:], uint32(len(payload)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadMessage reads one framed message from r, rejecting payloads larger
// than maxPayload before allocating a buffer for them.
func ReadMessage(r io.Reader, maxPayload int) (*Message, error) {
	header := make([]byte, TypeLen+4)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	msgType := strings.TrimRight(string(header[:TypeLen]), "\x00 ")
	length := binary.BigEndian.Uint32(header[TypeLen:])
	if maxPayload > 0 && int(length) > maxPayload {
		return nil, fmt.Errorf("p2p: payload length %d exceeds max %d", length, maxPayload)
	}
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
	}
	return &Message{Type: msgType, Payload: payload}, nil
}
