package p2p

import (
	"bytes"
	"testing"
)

func TestWriteReadMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMessage(&buf, TypeBlockGet, []byte("hello")); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	msg, err := ReadMessage(&buf, 0)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if msg.Type != TypeBlockGet {
		t.Fatalf("expected type %q, got %q", TypeBlockGet, msg.Type)
	}
	if string(msg.Payload) != "hello" {
		t.Fatalf("expected payload %q, got %q", "hello", msg.Payload)
	}
}

func TestReadMessageRejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMessage(&buf, TypeRelayTx, make([]byte, 100)); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	if _, err := ReadMessage(&buf, 10); err == nil {
		t.Fatalf("expected oversized payload to be rejected")
	}
}
