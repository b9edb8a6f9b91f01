package cryptoutil

import (
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// PrivateKey wraps a secp256k1 private key.
type PrivateKey = secp256k1.PrivateKey

// GenerateKey generates a new secp256k1 private key.
func GenerateKey() (*PrivateKey, error) {
	return secp256k1.GeneratePrivateKey()
}

// ErrInvalidSignatureLength is returned when a signature is not 65 bytes.
var ErrInvalidSignatureLength = errors.New("cryptoutil: signature must be 65 bytes [R || S || V]")

// ErrInvalidHashLength is returned when a message hash is not 32 bytes.
var ErrInvalidHashLength = errors.New("cryptoutil: hash must be 32 bytes")

// ErrRecoveryFailed is returned when a public key could not be recovered
// from a hash and signature.
var ErrRecoveryFailed = errors.New("cryptoutil: public key recovery failed")

// Sign produces a 65-byte recoverable ECDSA signature (R(32) || S(32) ||
// V(1), V ∈ {0,1}) over hash using priv.
func Sign(hash []byte, priv *PrivateKey) ([]byte, error) {
	if len(hash) != 32 {
		return nil, ErrInvalidHashLength
	}
	compact := ecdsa.SignCompact(priv, hash, false)
	// compact = [27+recid || R(32) || S(32)]; recid is 0..3, but for a
	// uniformly random 32-byte hash over secp256k1 it is almost always 0
	// or 1 (the x-coordinate overflow case is astronomically rare).
	recID := (compact[0] - 27) & 1
	sig := make([]byte, 65)
	copy(sig[:64], compact[1:65])
	sig[64] = recID
	return sig, nil
}

// Ecrecover recovers the 64-byte uncompressed public key (X || Y, no
// prefix byte) from hash and a 65-byte recoverable signature.
func Ecrecover(hash, sig []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, ErrInvalidHashLength
	}
	if len(sig) != 65 {
		return nil, ErrInvalidSignatureLength
	}
	v := sig[64]
	if v > 3 {
		return nil, ErrRecoveryFailed
	}
	compact := make([]byte, 65)
	compact[0] = 27 + v
	copy(compact[1:], sig[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, hash)
	if err != nil {
		return nil, ErrRecoveryFailed
	}
	uncompressed := pub.SerializeUncompressed()
	return uncompressed[1:], nil // strip the 0x04 prefix byte
}

// PublicKeyToNodeID converts a private key's public key to its 64-byte
// NodeId representation (X || Y, no prefix byte).
func PublicKeyToNodeID(priv *PrivateKey) []byte {
	uncompressed := priv.PubKey().SerializeUncompressed()
	return uncompressed[1:]
}
