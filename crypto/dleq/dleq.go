// Package dleq implements the cross-curve discrete-log-equality proof that
// binds a secp256k1 key share to its ed25519 image. The two curves have
// different group orders, so an ordinary same-group Schnorr proof does not
// apply directly; we use the "oversized nonce" construction: the prover's
// response is computed as a plain (unreduced) integer large enough that
// reduction modulo either curve's order happens identically on both sides,
// while the nonce's extra width statistically hides the secret.
package dleq

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/noot/xmrbtc-swap/crypto/ed25519"
	mcrypto "github.com/noot/xmrbtc-swap/crypto/monero"
	secp "github.com/noot/xmrbtc-swap/crypto/secp256k1"
)

// ErrInvalidCrossCurveProof is returned by Verify when the proof does not
// attest to the given pair of points.
var ErrInvalidCrossCurveProof = errors.New("invalid cross-curve DLEQ proof")

// secretBits is the width of the shared scalar; it must be strictly less
// than both curves' group orders (secp256k1's n is just under 2^256 and
// ed25519's l just over 2^252), so any value in this range is simultaneously a valid
// scalar on both curves without ambiguity from modular reduction.
const secretBits = 252

// nonceExtraBits is how much wider than the secret the prover's nonce is
// sampled, so the response leaks no information about the secret's exact
// value (a statistical hiding margin, not a hard cryptographic bound).
const nonceExtraBits = 128

const nonceBits = secretBits + nonceExtraBits

// Proof is a non-interactive proof of knowledge of a scalar s such that
// S_secp = s*G_secp and S_ed = s*G_ed.
type Proof struct {
	rSecp *secp.PublicKey
	rEd   *ed25519.Point
	z     *big.Int // prover's response, an unreduced integer
}

// Secret carries the scalar a proof attests to, as returned by Prove
// alongside the proof (or rebuilt via NewSecretFromBytes).
type Secret struct {
	scalar [32]byte
}

// Bytes returns the secret's 32-byte little-endian encoding.
func (s *Secret) Bytes() [32]byte {
	return s.scalar
}

// NewSecretFromBytes reconstructs a Secret previously serialized via Bytes,
// used when restoring a swap's key material from a persisted checkpoint
// rather than generating it fresh via Prove.
func NewSecretFromBytes(b [32]byte) *Secret {
	return &Secret{scalar: b}
}

// AsMoneroSpendKey wraps the secret as a Monero private spend key, the s_a
// or s_b share the joint Monero spend key is built from.
func (s *Secret) AsMoneroSpendKey() (*mcrypto.PrivateSpendKey, error) {
	return mcrypto.NewPrivateSpendKeyFromScalar(s.scalar)
}

// AsSecp256k1PrivateKey reconstructs the same scalar in secp256k1's
// big-endian convention, the encryption key (S_a_btc/S_b_btc's discrete
// log) an adaptor signature is ultimately decrypted or recovered with.
func (s *Secret) AsSecp256k1PrivateKey() *secp.PrivateKey {
	return secp.NewPrivateKeyFromScalar(reverse32(s.scalar))
}

// RecoverMoneroSpendKey reconstructs the Monero spend-key share side of a
// scalar recovered from an adaptor signature (adaptor.Recover's output),
// the inverse direction of Secret.AsSecp256k1PrivateKey: a counterparty's
// s_a/s_b arrives as a secp256k1 private key and must be converted back to
// ed25519's little-endian convention to reconstruct the joint wallet.
func RecoverMoneroSpendKey(recovered *secp.PrivateKey) (*mcrypto.PrivateSpendKey, error) {
	b := recovered.Bytes()
	return mcrypto.NewPrivateSpendKeyFromScalar(reverse32(b))
}

// Prove samples a fresh scalar s (< 2^252, the intersection of the two
// curves' scalar ranges) and returns a proof plus the two
// public images S_secp = s*G_secp and S_ed = s*G_ed.
func Prove() (*Proof, *Secret, *secp.PublicKey, *ed25519.Point, error) {
	sInt, err := randBits(secretBits)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	var sBytes [32]byte
	sInt.FillBytes(sBytes[32-len(sInt.Bytes()):])

	proof, sSecp, sEd, err := proveWithSecret(sInt)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	return proof, &Secret{scalar: reverse32(sBytes)}, sSecp, sEd, nil
}

func proveWithSecret(s *big.Int) (*Proof, *secp.PublicKey, *ed25519.Point, error) {
	secpScalar := scalarModN(s)
	edScalar, err := scalarModL(s)
	if err != nil {
		return nil, nil, nil, err
	}

	sSecp := secp.ScalarBaseMult(secpScalar)
	sEd := edScalar.Point()

	k, err := randBits(nonceBits)
	if err != nil {
		return nil, nil, nil, err
	}

	kSecpScalar := scalarModN(k)
	kEdScalar, err := scalarModL(k)
	if err != nil {
		return nil, nil, nil, err
	}

	rSecp := secp.ScalarBaseMult(kSecpScalar)
	rEd := kEdScalar.Point()

	e := challenge(rSecp, rEd, sSecp, sEd)

	// z = k + e*s, computed as plain integers (no modular reduction): the
	// nonce's extra width ensures this never needs to "wrap" differently
	// on the two curves, so reducing z mod n (secp) or mod l (ed) at
	// verification time yields the same relation on both.
	z := new(big.Int).Add(k, new(big.Int).Mul(e, s))

	return &Proof{rSecp: rSecp, rEd: rEd, z: z}, sSecp, sEd, nil
}

// Encode serializes the proof as rSecp (33 bytes) || rEd (32 bytes) ||
// len-prefixed big-endian z, for inclusion in Msg0/Msg1 of the setup
// protocol.
func (p *Proof) Encode() []byte {
	rSecp := p.rSecp.Compressed()
	rEd := p.rEd.Bytes()
	zBytes := p.z.Bytes()

	out := make([]byte, 0, len(rSecp)+len(rEd)+2+len(zBytes))
	out = append(out, rSecp[:]...)
	out = append(out, rEd[:]...)
	out = append(out, byte(len(zBytes)>>8), byte(len(zBytes)))
	out = append(out, zBytes...)
	return out
}

// DecodeProof parses a proof encoded by Proof.Encode.
func DecodeProof(b []byte) (*Proof, error) {
	if len(b) < secp.PublicKeyLen+32+2 {
		return nil, fmt.Errorf("dleq proof too short: %d bytes", len(b))
	}

	rSecp, err := secp.NewPublicKeyFromCompressed(b[:secp.PublicKeyLen])
	if err != nil {
		return nil, fmt.Errorf("invalid rSecp in dleq proof: %w", err)
	}

	off := secp.PublicKeyLen
	var rEdBytes [32]byte
	copy(rEdBytes[:], b[off:off+32])
	off += 32

	rEd, err := ed25519.NewPointFromBytes(rEdBytes)
	if err != nil {
		return nil, fmt.Errorf("invalid rEd in dleq proof: %w", err)
	}

	zLen := int(b[off])<<8 | int(b[off+1])
	off += 2
	if off+zLen > len(b) {
		return nil, fmt.Errorf("dleq proof truncated z")
	}

	z := new(big.Int).SetBytes(b[off : off+zLen])

	return &Proof{rSecp: rSecp, rEd: rEd, z: z}, nil
}

// Verify checks that the proof attests to the given secp256k1 and ed25519
// public images.
func Verify(proof *Proof, sSecp *secp.PublicKey, sEd *ed25519.Point) error {
	if proof.z.BitLen() > nonceBits+8 {
		return ErrInvalidCrossCurveProof
	}

	e := challenge(proof.rSecp, proof.rEd, sSecp, sEd)

	zSecp := scalarModN(proof.z)
	lhsSecp := secp.ScalarBaseMult(zSecp)
	eSecp := scalarModN(e)
	rhsSecp := proof.rSecp.Add(sSecp.ScalarMult(eSecp))
	if lhsSecp.String() != rhsSecp.String() {
		return ErrInvalidCrossCurveProof
	}

	zEd, err := scalarModL(proof.z)
	if err != nil {
		return ErrInvalidCrossCurveProof
	}
	lhsEd := zEd.Point()

	eEd, err := scalarModL(e)
	if err != nil {
		return ErrInvalidCrossCurveProof
	}
	rhsEd := proof.rEd.Add(sEd.ScalarMultPoint(eEd))
	if lhsEd.Bytes() != rhsEd.Bytes() {
		return ErrInvalidCrossCurveProof
	}

	return nil
}

func challenge(rSecp *secp.PublicKey, rEd *ed25519.Point, sSecp *secp.PublicKey, sEd *ed25519.Point) *big.Int {
	h := sha256.New()
	rsb := rSecp.Compressed()
	h.Write(rsb[:])
	reb := rEd.Bytes()
	h.Write(reb[:])
	ssb := sSecp.Compressed()
	h.Write(ssb[:])
	seb := sEd.Bytes()
	h.Write(seb[:])

	digest := h.Sum(nil)
	// truncate the challenge well below secretBits so that e*s never
	// overflows the nonce's hiding margin.
	e := new(big.Int).SetBytes(digest)
	e.Rsh(e, uint(256-64))
	return e
}

func randBits(bits int) (*big.Int, error) {
	max := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return nil, fmt.Errorf("failed to sample random scalar: %w", err)
	}

	return n, nil
}

func scalarModN(v *big.Int) *secp256k1.ModNScalar {
	s := new(secp256k1.ModNScalar)
	// SetByteSlice accepts an over-wide big-endian value and reduces it
	// modulo the secp256k1 group order, so no manual reduction is needed.
	s.SetByteSlice(v.Bytes())
	return s
}

func scalarModL(v *big.Int) (*ed25519.Scalar, error) {
	b := v.Bytes()
	// pad to 64 bytes little-endian for SetUniformBytes, which reduces
	// mod l for us.
	var wide [64]byte
	for i, bb := range b {
		wide[len(b)-1-i] = bb
	}

	return ed25519.NewScalarFromUniformBytes(wide[:])
}

func reverse32(b [32]byte) [32]byte {
	var out [32]byte
	for i := range b {
		out[i] = b[32-1-i]
	}

	return out
}
