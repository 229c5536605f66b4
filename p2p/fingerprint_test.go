package p2p

import "testing"

func TestFingerprintDeterministicAndShort(t *testing.T) {
	a := Fingerprint("127.0.0.1:6666")
	b := Fingerprint("127.0.0.1:6666")
	if a != b {
		t.Fatalf("expected deterministic fingerprint, got %s != %s", a, b)
	}
	if len(a) != 12 {
		t.Fatalf("expected a 12-char fingerprint, got %d", len(a))
	}
	if Fingerprint("127.0.0.1:6667") == a {
		t.Fatalf("expected different peer ids to fingerprint differently")
	}
}
