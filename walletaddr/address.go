// Package walletaddr binds an ECDSA keypair (or a lone public key) to a
// hex-encoded identity and signs/verifies messages against it, the way the
// source's wallet.Address does. The curve is fixed to NIST P-521 so a
// generated public key is always 264 hex characters and a private key 132,
// matching the lengths the rest of the system assumes.
package walletaddr

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
)

// ErrNoPrivateKey is returned by Sign when the address only holds a public
// key. The source silently returns nil in this situation; this rewrite
// makes the failure explicit.
var ErrNoPrivateKey = errors.New("walletaddr: no private key held")

// Curve is the elliptic curve every address in this system is defined over.
func Curve() elliptic.Curve { return elliptic.P521() }

// keyByteLen is the per-coordinate byte width of P521 (ceil(521/8)).
const keyByteLen = 66

// Address binds a public key, and optionally a private key, to one identity.
type Address struct {
	private *ecdsa.PrivateKey
	public  *ecdsa.PublicKey
}

// Generate creates a brand-new keypair.
func Generate() (*Address, error) {
	priv, err := ecdsa.GenerateKey(Curve(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("walletaddr: generate key: %w", err)
	}
	return &Address{private: priv, public: &priv.PublicKey}, nil
}

// FromPrivateHex loads an address that can both sign and verify from a hex
// scalar.
func FromPrivateHex(s string) (*Address, error) {
	d, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("walletaddr: invalid private key hex")
	}
	curve := Curve()
	priv := new(ecdsa.PrivateKey)
	priv.D = d
	priv.PublicKey.Curve = curve
	priv.PublicKey.X, priv.PublicKey.Y = curve.ScalarBaseMult(d.Bytes())
	return &Address{private: priv, public: &priv.PublicKey}, nil
}

// FromPublicHex loads a verify-only address from the concatenated X||Y hex
// encoding produced by PublicHex.
func FromPublicHex(s string) (*Address, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("walletaddr: invalid public key hex: %w", err)
	}
	if len(b) != 2*keyByteLen {
		return nil, fmt.Errorf("walletaddr: public key must be %d bytes, got %d", 2*keyByteLen, len(b))
	}
	x := new(big.Int).SetBytes(b[:keyByteLen])
	y := new(big.Int).SetBytes(b[keyByteLen:])
	pub := &ecdsa.PublicKey{Curve: Curve(), X: x, Y: y}
	return &Address{public: pub}, nil
}

// PublicHex returns the fixed-width hex encoding of the public key: the X
// and Y coordinates, each zero-padded to keyByteLen, concatenated.
func (a *Address) PublicHex() string {
	x := a.public.X.FillBytes(make([]byte, keyByteLen))
	y := a.public.Y.FillBytes(make([]byte, keyByteLen))
	return hex.EncodeToString(append(x, y...))
}

// PrivateHex returns the hex scalar, zero-padded to the curve's byte width.
// Empty if the address holds no private key.
func (a *Address) PrivateHex() string {
	if a.private == nil {
		return ""
	}
	return hex.EncodeToString(a.private.D.FillBytes(make([]byte, keyByteLen)))
}

// HasPrivateKey reports whether this address can sign.
func (a *Address) HasPrivateKey() bool { return a.private != nil }

// Sign produces a deterministic hex-encoded signature over message.
// Determinism is approximated by deriving the ECDSA nonce from
// SHA256(private-scalar || message) rather than relying on crypto/rand, so
// that signing the same message twice with the same key produces the same
// signature; this is the "deterministic" requirement the source leaves
// unspecified beyond that property, not strict RFC 6979.
func (a *Address) Sign(message []byte) (string, error) {
	if a.private == nil {
		return "", ErrNoPrivateKey
	}
	seed := sha256.Sum256(append(a.private.D.Bytes(), message...))
	r, s, err := ecdsa.Sign(deterministicReader{seed: seed[:]}, a.private, digest(message))
	if err != nil {
		return "", fmt.Errorf("walletaddr: sign: %w", err)
	}
	rb := r.FillBytes(make([]byte, keyByteLen))
	sb := s.FillBytes(make([]byte, keyByteLen))
	return hex.EncodeToString(append(rb, sb...)), nil
}

// Verify reports whether sigHex is a valid signature over message for
// publicHex. Any malformed input yields false, never an error.
func Verify(publicHex string, sigHex string, message []byte) bool {
	addr, err := FromPublicHex(publicHex)
	if err != nil {
		return false
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil || len(sig) != 2*keyByteLen {
		return false
	}
	r := new(big.Int).SetBytes(sig[:keyByteLen])
	s := new(big.Int).SetBytes(sig[keyByteLen:])
	return ecdsa.Verify(addr.public, digest(message), r, s)
}

func digest(message []byte) []byte {
	sum := sha256.Sum256(message)
	return sum[:]
}

// deterministicReader feeds ecdsa.Sign a fixed seed stream so the nonce it
// derives internally is reproducible for a given (key, message) pair.
type deterministicReader struct {
	seed []byte
}

func (r deterministicReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		n += copy(p[n:], r.seed)
	}
	return len(p), nil
}
