// Package ed25519 provides the little-endian, Monero-convention scalar and
// point arithmetic the XMR side of the swap needs: spend/view key shares,
// their sums, and the joint stealth address derivation. It wraps
// filippo.io/edwards25519 rather than reimplementing field arithmetic.
package ed25519

import (
	"crypto/sha512"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

// ErrInvalidScalar is returned when a 32-byte value is not a valid canonical
// ed25519 scalar encoding.
var ErrInvalidScalar = errors.New("invalid ed25519 scalar encoding")

// Scalar is a little-endian-encoded ed25519/ristretto-convention scalar, as
// used throughout Monero for spend and view keys.
type Scalar struct {
	s *edwards25519.Scalar
}

// Point is a point on the ed25519 curve, used for Monero public keys.
type Point struct {
	p *edwards25519.Point
}

// NewRandomScalar returns a cryptographically random scalar, reduced modulo
// the group order l.
func NewRandomScalar(randSource [64]byte) (*Scalar, error) {
	s, err := edwards25519.NewScalar().SetUniformBytes(randSource[:])
	if err != nil {
		return nil, fmt.Errorf("failed to derive scalar: %w", err)
	}

	return &Scalar{s: s}, nil
}

// NewScalarFromCanonicalBytes decodes a 32-byte little-endian scalar that
// must already be reduced modulo l.
func NewScalarFromCanonicalBytes(b [32]byte) (*Scalar, error) {
	s, err := edwards25519.NewScalar().SetCanonicalBytes(b[:])
	if err != nil {
		return nil, ErrInvalidScalar
	}

	return &Scalar{s: s}, nil
}

// NewScalarFromUniformBytes reduces an over-wide byte string (e.g. a
// SHA-256 digest lifted from secp256k1)
// into a scalar mod l.
func NewScalarFromUniformBytes(b []byte) (*Scalar, error) {
	var wide [64]byte
	if len(b) > 64 {
		return nil, fmt.Errorf("input too long for uniform reduction: %d bytes", len(b))
	}
	copy(wide[:], b)

	s, err := edwards25519.NewScalar().SetUniformBytes(wide[:])
	if err != nil {
		return nil, err
	}

	return &Scalar{s: s}, nil
}

// Bytes returns the canonical little-endian 32-byte encoding.
func (s *Scalar) Bytes() [32]byte {
	var out [32]byte
	copy(out[:], s.s.Bytes())
	return out
}

// Add returns s + t mod l.
func (s *Scalar) Add(t *Scalar) *Scalar {
	return &Scalar{s: edwards25519.NewScalar().Add(s.s, t.s)}
}

// Point returns s*B, the public key for this private scalar.
func (s *Scalar) Point() *Point {
	return &Point{p: edwards25519.NewIdentityPoint().ScalarBaseMult(s.s)}
}

// NewPointFromBytes decodes a compressed 32-byte ed25519 point.
func NewPointFromBytes(b [32]byte) (*Point, error) {
	p, err := edwards25519.NewIdentityPoint().SetBytes(b[:])
	if err != nil {
		return nil, fmt.Errorf("invalid ed25519 point encoding: %w", err)
	}

	return &Point{p: p}, nil
}

// Bytes returns the compressed 32-byte encoding of the point.
func (p *Point) Bytes() [32]byte {
	var out [32]byte
	copy(out[:], p.p.Bytes())
	return out
}

// Add returns p + q, used to combine the two parties' spend/view key
// shares into the joint XMR spend and view public keys.
func (p *Point) Add(q *Point) *Point {
	return &Point{p: edwards25519.NewIdentityPoint().Add(p.p, q.p)}
}

// ScalarMultPoint returns s*p, used by the DLEQ verifier to check the
// prover's response against the claimed public image.
func (p *Point) ScalarMultPoint(s *Scalar) *Point {
	return &Point{p: edwards25519.NewIdentityPoint().ScalarMult(s.s, p.p)}
}

// HashToScalar reduces an arbitrary-length message into a scalar mod l,
// for deriving deterministic scalars from transcript hashes. The DLEQ
// prover/verifier does not use it: its challenge is a truncated SHA-256.
func HashToScalar(data ...[]byte) (*Scalar, error) {
	h := sha512.New()
	for _, d := range data {
		h.Write(d)
	}

	return NewScalarFromUniformBytes(h.Sum(nil))
}
