// Package cryptoutil provides the hashing primitives shared by the chain
// model, the miner and the address package.
package cryptoutil

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256 returns the lowercase hex SHA-256 digest of b.
func SHA256(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// SHA256D returns SHA256(SHA256(b)), the double hash used for block sealing.
func SHA256D(b []byte) string {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return hex.EncodeToString(second[:])
}
