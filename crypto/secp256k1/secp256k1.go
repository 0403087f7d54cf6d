// Package secp256k1 wraps the scalar and point arithmetic needed for the
// Bitcoin side of the swap: key generation, deterministic ECDSA signing and
// verification, and the small set of point operations the cross-curve DLEQ
// proof and the adaptor-signature scheme build on top of.
package secp256k1

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// ErrInvalidSignature is returned when an ECDSA signature fails to verify.
var ErrInvalidSignature = errors.New("invalid signature")

// PrivateKeyLen is the length in bytes of an encoded secp256k1 scalar.
const PrivateKeyLen = 32

// PublicKeyLen is the length in bytes of a compressed secp256k1 public key.
const PublicKeyLen = 33

// PrivateKey is a secp256k1 scalar.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// PublicKey is a secp256k1 curve point.
type PublicKey struct {
	key *secp256k1.PublicKey
}

// Signature is a 64-byte compact (r, s) ECDSA signature.
type Signature struct {
	R *secp256k1.ModNScalar
	S *secp256k1.ModNScalar
}

// GenerateKeypair returns a fresh random keypair.
func GenerateKeypair() (*PrivateKey, error) {
	k, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate secp256k1 key: %w", err)
	}

	return &PrivateKey{key: k}, nil
}

// NewPrivateKeyFromScalar constructs a PrivateKey from a 32-byte big-endian
// scalar. The caller is responsible for ensuring the scalar is non-zero and
// reduced modulo the group order; secp256k1.PrivKeyFromBytes silently
// reduces otherwise.
func NewPrivateKeyFromScalar(b [32]byte) *PrivateKey {
	return &PrivateKey{key: secp256k1.PrivKeyFromBytes(b[:])}
}

// Bytes returns the 32-byte big-endian encoding of the scalar.
func (k *PrivateKey) Bytes() [32]byte {
	var out [32]byte
	b := k.key.Serialize()
	copy(out[:], b)
	return out
}

// PublicKey returns the public key corresponding to this private key.
func (k *PrivateKey) PublicKey() *PublicKey {
	return &PublicKey{key: k.key.PubKey()}
}

// Sign produces a deterministic (RFC-6979-style) ECDSA signature over the
// given 32-byte message digest.
func (k *PrivateKey) Sign(digest [32]byte) *Signature {
	sig := ecdsa.Sign(k.key, digest[:])
	r, s := sig.R(), sig.S()
	return &Signature{R: &r, S: &s}
}

// Scalar exposes the underlying mod-n scalar, used by the adaptor-signature
// and DLEQ packages which need raw field arithmetic.
func (k *PrivateKey) Scalar() *secp256k1.ModNScalar {
	s := new(secp256k1.ModNScalar)
	s.SetByteSlice(k.key.Serialize())
	return s
}

// NewPublicKeyFromCompressed decodes a 33-byte compressed public key.
func NewPublicKeyFromCompressed(b []byte) (*PublicKey, error) {
	if len(b) != PublicKeyLen {
		return nil, fmt.Errorf("invalid compressed public key length: %d", len(b))
	}

	pub, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	return &PublicKey{key: pub}, nil
}

// Compressed returns the 33-byte compressed SEC1 encoding.
func (p *PublicKey) Compressed() [PublicKeyLen]byte {
	var out [PublicKeyLen]byte
	copy(out[:], p.key.SerializeCompressed())
	return out
}

// String returns the hex-encoded compressed public key.
func (p *PublicKey) String() string {
	b := p.Compressed()
	return fmt.Sprintf("%x", b[:])
}

// BtcEC returns the key as a *btcec.PublicKey, the type the bitcoin package's
// script and transaction builders take. btcec/v2.PublicKey is a type alias
// for this same decred secp256k1/v4 type, so this is a free conversion, not
// a re-parse.
func (p *PublicKey) BtcEC() *btcec.PublicKey {
	return (*btcec.PublicKey)(p.key)
}

// Add returns p + q as a curve point addition. Used by the adaptor-signature
// verifier and the DLEQ verifier.
func (p *PublicKey) Add(q *PublicKey) *PublicKey {
	var sum secp256k1.JacobianPoint
	var jp, jq secp256k1.JacobianPoint
	p.key.AsJacobian(&jp)
	q.key.AsJacobian(&jq)
	secp256k1.AddNonConst(&jp, &jq, &sum)
	sum.ToAffine()
	return &PublicKey{key: secp256k1.NewPublicKey(&sum.X, &sum.Y)}
}

// ScalarBaseMult returns scalar*G.
func ScalarBaseMult(scalar *secp256k1.ModNScalar) *PublicKey {
	var jp secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(scalar, &jp)
	jp.ToAffine()
	return &PublicKey{key: secp256k1.NewPublicKey(&jp.X, &jp.Y)}
}

// ScalarMult returns scalar*P.
func (p *PublicKey) ScalarMult(scalar *secp256k1.ModNScalar) *PublicKey {
	var jp, res secp256k1.JacobianPoint
	p.key.AsJacobian(&jp)
	secp256k1.ScalarMultNonConst(scalar, &jp, &res)
	res.ToAffine()
	return &PublicKey{key: secp256k1.NewPublicKey(&res.X, &res.Y)}
}

// Verify verifies a signature produced by Sign against this public key and
// the given digest, returning ErrInvalidSignature on mismatch.
func (p *PublicKey) Verify(digest [32]byte, sig *Signature) error {
	s := ecdsa.NewSignature(sig.R, sig.S)
	if !s.Verify(digest[:], p.key) {
		return ErrInvalidSignature
	}

	return nil
}

// SignatureLen is the length in bytes of a 64-byte compact (r, s) signature,
// compact (r, s).
const SignatureLen = 64

// Bytes returns the 64-byte compact (r, s) encoding of the signature.
func (s *Signature) Bytes() [SignatureLen]byte {
	var out [SignatureLen]byte
	r := s.R.Bytes()
	sb := s.S.Bytes()
	copy(out[:32], r[:])
	copy(out[32:], sb[:])
	return out
}

// NewSignatureFromCompact decodes a 64-byte compact (r, s) signature.
func NewSignatureFromCompact(b []byte) (*Signature, error) {
	if len(b) != SignatureLen {
		return nil, fmt.Errorf("invalid compact signature length: %d", len(b))
	}

	r := new(secp256k1.ModNScalar)
	r.SetByteSlice(b[:32])
	s := new(secp256k1.ModNScalar)
	s.SetByteSlice(b[32:])

	return &Signature{R: r, S: s}, nil
}

// Hash256 is the double-SHA256 used for Bitcoin sighashes outside of the
// BIP-143 path (e.g. hashing arbitrary auxiliary data for tests).
func Hash256(b []byte) [32]byte {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}
