// Recoverable ECDSA signature plumbing for the discovery packet codec:
// compact signature representation (65 bytes: R || S || V) and
// public-key recovery, per §6.1/§6.2 of the discovery wire format.
package cryptoutil

import (
	"errors"
	"math/big"
)

// CompactSignature is a 65-byte recoverable ECDSA signature:
// R (32) || S (32) || V (1), V ∈ {0, 1}.
type CompactSignature struct {
	R [32]byte
	S [32]byte
	V byte
}

var (
	ErrSigInvalidLength = errors.New("cryptoutil: signature must be 65 bytes")
	ErrSigInvalidV      = errors.New("cryptoutil: V must be 0 or 1")
)

// ParseCompactSignature parses a 65-byte signature into a CompactSignature.
func ParseCompactSignature(sig []byte) (*CompactSignature, error) {
	if len(sig) != 65 {
		return nil, ErrSigInvalidLength
	}
	cs := &CompactSignature{V: sig[64]}
	copy(cs.R[:], sig[:32])
	copy(cs.S[:], sig[32:64])
	return cs, nil
}

// Bytes encodes the compact signature as 65 bytes: R || S || V.
func (cs *CompactSignature) Bytes() []byte {
	buf := make([]byte, 65)
	copy(buf[:32], cs.R[:])
	copy(buf[32:64], cs.S[:])
	buf[64] = cs.V
	return buf
}

// RBigInt returns R as a big.Int.
func (cs *CompactSignature) RBigInt() *big.Int { return new(big.Int).SetBytes(cs.R[:]) }

// SBigInt returns S as a big.Int.
func (cs *CompactSignature) SBigInt() *big.Int { return new(big.Int).SetBytes(cs.S[:]) }

// Validate checks that V is a raw recovery bit (0 or 1). R and S range
// validation is left to the underlying curve library's own recovery path,
// which rejects out-of-range components as a recovery failure.
func (cs *CompactSignature) Validate() error {
	if cs.V > 1 {
		return ErrSigInvalidV
	}
	return nil
}

// SignHash signs hash with priv and returns the recoverable signature as a
// CompactSignature.
func SignHash(hash []byte, priv *PrivateKey) (*CompactSignature, error) {
	sig, err := Sign(hash, priv)
	if err != nil {
		return nil, err
	}
	return ParseCompactSignature(sig)
}

// RecoverNodeID recovers the 64-byte NodeId (uncompressed public key,
// X || Y) of the signer of hash given a compact signature.
func RecoverNodeID(hash []byte, cs *CompactSignature) ([]byte, error) {
	if err := cs.Validate(); err != nil {
		return nil, err
	}
	return Ecrecover(hash, cs.Bytes())
}
