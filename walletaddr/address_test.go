package walletaddr

import (
	"testing"

	"github.com/fernandolobato/indiecoin/cryptoutil"
)

func TestGenerateKeyLengths(t *testing.T) {
	a, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := len(a.PublicHex()); got != 264 {
		t.Fatalf("expected 264 hex chars for public key, got %d", got)
	}
	if got := len(a.PrivateHex()); got != 132 {
		t.Fatalf("expected 132 hex chars for private key, got %d", got)
	}
}

func TestSignAndVerify(t *testing.T) {
	a, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	msg := []byte(cryptoutil.SHA256([]byte("Value does not exist outside concioussnes of men")))

	sig, err := a.Sign(msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !Verify(a.PublicHex(), sig, msg) {
		t.Fatalf("expected signature to verify")
	}
	if Verify(a.PublicHex(), sig, append(msg, []byte("Empty Space")...)) {
		t.Fatalf("expected signature over a different message to fail")
	}
}

func TestSignWithoutPrivateKeyFails(t *testing.T) {
	a, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	pubOnly, err := FromPublicHex(a.PublicHex())
	if err != nil {
		t.Fatalf("FromPublicHex: %v", err)
	}
	if _, err := pubOnly.Sign([]byte("hello")); err != ErrNoPrivateKey {
		t.Fatalf("expected ErrNoPrivateKey, got %v", err)
	}
}

func TestVerifyMalformedSignatureReturnsFalse(t *testing.T) {
	a, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if Verify(a.PublicHex(), "not-hex", []byte("hello")) {
		t.Fatalf("expected malformed signature to fail verification, not error")
	}
}
