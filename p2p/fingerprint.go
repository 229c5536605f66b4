package p2p

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/ripemd160"
)

// Fingerprint returns a short, stable identifier for a peer id, used in log
// lines and the CLI so operators don't have to stare at raw host:port
// strings. It chains SHA-256 then RIPEMD-160 the way the teacher's wallet
// package derives a public key hash, applied here to a peer id instead of a
// public key.
func Fingerprint(peerID string) string {
	shaSum := sha256.Sum256([]byte(peerID))
	hasher := ripemd160.New()
	hasher.Write(shaSum[:])
	return hex.EncodeToString(hasher.Sum(nil))[:12]
}
