// Package monero implements the Monero-side key material, address
// encoding, and joint-wallet reconstruction a swap needs: each party's
// spend-key share is the same scalar the
// cross-curve DLEQ proof (crypto/dleq) binds to their secp256k1 key, while
// the view key is sampled independently and summed the same way.
package monero

import (
	"crypto/rand"
	"fmt"

	"github.com/noot/xmrbtc-swap/crypto/ed25519"
)

// PrivateSpendKey is one party's share of the joint wallet's spend key.
// In a swap, this is the same scalar s the cross-curve DLEQ proof attests
// to (crypto/dleq.Secret), so a public Bitcoin redeem or refund that
// decrypts an adaptor signature also reveals the corresponding party's
// Monero spend-key share.
type PrivateSpendKey struct {
	scalar *ed25519.Scalar
}

// PrivateViewKey is one party's share of the joint wallet's view key,
// sampled independently of the spend key.
type PrivateViewKey struct {
	scalar *ed25519.Scalar
}

// PublicKey is an ed25519 curve point: either a public spend or view key.
type PublicKey struct {
	point *ed25519.Point
}

// NewPrivateSpendKeyFromScalar wraps a scalar already produced elsewhere
// (typically the secret from a dleq.Proof) as a Monero spend key.
func NewPrivateSpendKeyFromScalar(b [32]byte) (*PrivateSpendKey, error) {
	s, err := ed25519.NewScalarFromCanonicalBytes(b)
	if err != nil {
		return nil, fmt.Errorf("invalid monero spend key scalar: %w", err)
	}
	return &PrivateSpendKey{scalar: s}, nil
}

// NewPrivateViewKeyFromScalar wraps a scalar received over the wire as a
// view-key share. Unlike the spend-key share, a view key is sent to the
// counterparty in the clear during setup (v_a/v_b in Msg0/Msg1): it lets
// either party watch the joint wallet but, alone,
// grants no spending power.
func NewPrivateViewKeyFromScalar(b [32]byte) (*PrivateViewKey, error) {
	s, err := ed25519.NewScalarFromCanonicalBytes(b)
	if err != nil {
		return nil, fmt.Errorf("invalid monero view key scalar: %w", err)
	}
	return &PrivateViewKey{scalar: s}, nil
}

// NewRandomPrivateViewKey samples a fresh, independent view key share.
func NewRandomPrivateViewKey() (*PrivateViewKey, error) {
	var seed [64]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("failed to sample monero view key: %w", err)
	}

	s, err := ed25519.NewRandomScalar(seed)
	if err != nil {
		return nil, err
	}
	return &PrivateViewKey{scalar: s}, nil
}

// Bytes returns the key's 32-byte little-endian scalar encoding, the
// wallet-rpc wire format for generate_from_keys/restore calls.
func (k *PrivateSpendKey) Bytes() [32]byte { return k.scalar.Bytes() }
func (k *PrivateViewKey) Bytes() [32]byte  { return k.scalar.Bytes() }

// Public returns the corresponding public key, scalar*B.
func (k *PrivateSpendKey) Public() *PublicKey { return &PublicKey{point: k.scalar.Point()} }
func (k *PrivateViewKey) Public() *PublicKey  { return &PublicKey{point: k.scalar.Point()} }

// Bytes returns the point's 32-byte compressed encoding.
func (p *PublicKey) Bytes() [32]byte { return p.point.Bytes() }

func newPublicKeyFromBytes(b []byte) (*PublicKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("invalid monero public key length %d", len(b))
	}
	var arr [32]byte
	copy(arr[:], b)

	p, err := ed25519.NewPointFromBytes(arr)
	if err != nil {
		return nil, fmt.Errorf("invalid monero public key: %w", err)
	}
	return &PublicKey{point: p}, nil
}

// NewPublicKeyFromBytes decodes a 32-byte compressed ed25519 point as
// received over the wire (e.g. the S_xmr image carried in Msg0/Msg1 of the
// setup protocol, or a counterparty's public spend/view key).
func NewPublicKeyFromBytes(b []byte) (*PublicKey, error) {
	return newPublicKeyFromBytes(b)
}

// NewPublicKeyFromPoint wraps an ed25519 point already produced elsewhere
// (typically a dleq.Proof's S_ed image) as a Monero public key.
func NewPublicKeyFromPoint(p *ed25519.Point) *PublicKey {
	return &PublicKey{point: p}
}

// SumPrivateSpendKeys combines two parties' spend-key shares into the
// joint wallet's full spend key: the locked Monero output is only
// spendable once both shares are known.
func SumPrivateSpendKeys(a, b *PrivateSpendKey) *PrivateSpendKey {
	return &PrivateSpendKey{scalar: a.scalar.Add(b.scalar)}
}

// SumPrivateViewKeys combines two parties' view-key shares into the joint
// wallet's full view key.
func SumPrivateViewKeys(a, b *PrivateViewKey) *PrivateViewKey {
	return &PrivateViewKey{scalar: a.scalar.Add(b.scalar)}
}

// SumPublicKeys combines two parties' public spend (or view) keys into the
// joint wallet's public key, used to derive the lock address before either
// party knows the other's private share.
func SumPublicKeys(a, b *PublicKey) *PublicKey {
	return &PublicKey{point: a.point.Add(b.point)}
}
