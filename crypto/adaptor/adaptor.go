// Package adaptor implements ECDSA adaptor (encrypted) signatures over
// secp256k1, the mechanism by which publishing a Bitcoin redeem or refund
// transaction unconditionally leaks the counterparty's Monero spend-key
// share. An ETH-based claim path would use a plain hashlock reveal on a
// smart contract instead, so this follows the standard encrypted-ECDSA
// scheme instead: a same-curve Chaum-Pedersen proof binds the encrypted
// nonce point to the one implied by the ECDSA equations, which is the
// "hardening" step a plain two-point scheme is missing.
package adaptor

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	secp "github.com/noot/xmrbtc-swap/crypto/secp256k1"
)

// ErrInvalidEncryptedSignature is returned when an encrypted signature
// fails to verify against its claimed signer and encryption public keys.
var ErrInvalidEncryptedSignature = errors.New("invalid encrypted signature")

// EncryptedSignature is an ECDSA-like signature that verifies against a
// message and a public key, offset by an encryption key Y. Decrypting with
// Y's discrete log yields a standard ECDSA signature.
type EncryptedSignature struct {
	// R is the prover's nonce point k*Y.
	R *secp.PublicKey
	// SHat is the encrypted s-component of the signature.
	SHat *secp256k1.ModNScalar
	// proof that R and the ECDSA-implied point k*G share the same
	// discrete log k relative to bases Y and G (Chaum-Pedersen DLEQ).
	proof dleqProof
}

type dleqProof struct {
	t1, t2 *secp.PublicKey
	u      *secp256k1.ModNScalar
}

// EncSign produces an encrypted signature on digest m under signing key x,
// encrypted for whoever learns the discrete log of encryption key Y
// (encsign(x, Y, m) → ẑ).
func EncSign(x *secp.PrivateKey, y *secp.PublicKey, digest [32]byte) (*EncryptedSignature, error) {
	k, err := secp.GenerateKeypair()
	if err != nil {
		return nil, fmt.Errorf("failed to sample adaptor nonce: %w", err)
	}
	kScalar := k.Scalar()

	r := y.ScalarMult(kScalar)
	rHat := secp.ScalarBaseMult(kScalar)

	rScalar := xCoordScalar(r)

	m := new(secp256k1.ModNScalar)
	m.SetByteSlice(digest[:])

	// sHat = k^-1 * (m + r*x)
	rx := new(secp256k1.ModNScalar).Mul2(rScalar, x.Scalar())
	numerator := new(secp256k1.ModNScalar).Add2(m, rx)
	kInv := kScalar.InverseNonConst()
	sHat := new(secp256k1.ModNScalar).Mul2(kInv, numerator)

	proof, err := proveDLEQ(kScalar, y, r, rHat)
	if err != nil {
		return nil, err
	}

	return &EncryptedSignature{R: r, SHat: sHat, proof: *proof}, nil
}

// proveDLEQ proves knowledge of k such that r = k*y and rHat = k*G, without
// revealing k, via a standard Chaum-Pedersen sigma protocol.
func proveDLEQ(k *secp256k1.ModNScalar, y, r, rHat *secp.PublicKey) (*dleqProof, error) {
	t, err := secp.GenerateKeypair()
	if err != nil {
		return nil, err
	}
	tScalar := t.Scalar()

	t1 := y.ScalarMult(tScalar)
	t2 := secp.ScalarBaseMult(tScalar)

	c := dleqChallenge(y, r, rHat, t1, t2)

	ck := new(secp256k1.ModNScalar).Mul2(c, k)
	u := new(secp256k1.ModNScalar).Add2(tScalar, ck)

	return &dleqProof{t1: t1, t2: t2, u: u}, nil
}

func verifyDLEQ(y, r, rHat *secp.PublicKey, proof dleqProof) bool {
	c := dleqChallenge(y, r, rHat, proof.t1, proof.t2)

	lhs1 := y.ScalarMult(proof.u)
	rhs1 := proof.t1.Add(r.ScalarMult(c))
	if lhs1.String() != rhs1.String() {
		return false
	}

	lhs2 := secp.ScalarBaseMult(proof.u)
	rhs2 := proof.t2.Add(rHat.ScalarMult(c))
	return lhs2.String() == rhs2.String()
}

func dleqChallenge(y, r, rHat, t1, t2 *secp.PublicKey) *secp256k1.ModNScalar {
	h := sha256.New()
	for _, p := range []*secp.PublicKey{y, r, rHat, t1, t2} {
		b := p.Compressed()
		h.Write(b[:])
	}

	c := new(secp256k1.ModNScalar)
	c.SetByteSlice(h.Sum(nil))
	return c
}

func xCoordScalar(p *secp.PublicKey) *secp256k1.ModNScalar {
	b := p.Compressed()
	s := new(secp256k1.ModNScalar)
	s.SetByteSlice(b[1:])
	return s
}

// VerifyEncSig verifies that ẑ was produced by the holder of the secret
// key behind X, encrypted under Y, over digest m
// (verify_encsig(X, Y, m, ẑ) fails with ErrInvalidEncryptedSignature).
func VerifyEncSig(x *secp.PublicKey, y *secp.PublicKey, digest [32]byte, sig *EncryptedSignature) error {
	rScalar := xCoordScalar(sig.R)

	m := new(secp256k1.ModNScalar)
	m.SetByteSlice(digest[:])

	sHatInv := sig.SHat.InverseNonConst()

	// rHat = sHat^-1 * (m*G + r*X), the ECDSA-implied nonce point k*G.
	mG := secp.ScalarBaseMult(m)
	rX := x.ScalarMult(rScalar)
	sum := mG.Add(rX)
	rHat := sum.ScalarMult(sHatInv)

	if !verifyDLEQ(y, sig.R, rHat, sig.proof) {
		return ErrInvalidEncryptedSignature
	}

	return nil
}

// Decrypt decrypts an encrypted signature using decryption key y,
// producing a standard ECDSA signature (decrypt(y, ẑ) → σ).
func Decrypt(y *secp.PrivateKey, sig *EncryptedSignature) *secp.Signature {
	yInv := y.Scalar().InverseNonConst()
	s := new(secp256k1.ModNScalar).Mul2(sig.SHat, yInv)
	r := xCoordScalar(sig.R)

	// canonicalize to the low-s form expected by Bitcoin consensus rules
	if s.IsOverHalfOrder() {
		s.Negate()
	}

	return &secp.Signature{R: r, S: s}
}

// ErrRecoveryMismatch is returned by Recover when neither root of the
// decryption equation matches the known encryption public key Y, meaning
// σ and ẑ were not produced from the same encryption key.
var ErrRecoveryMismatch = errors.New("recovered scalar does not match encryption public key")

// Recover recovers the decryption key y from encryption public key Y, a
// plain signature σ, and its corresponding encrypted signature ẑ
// (recover(Y, σ, ẑ) → y). This is the mechanism that leaks a
// counterparty's XMR spend-key share once they publish TxRedeem or
// TxRefund on-chain.
//
// Decrypt's low-s canonicalization means σ may carry s or its negation
// relative to the value ẑ was encrypted under, so the candidate scalar has
// two possible roots; Y (already known to the recovering party from the
// setup protocol) disambiguates which one is correct.
func Recover(y *secp.PublicKey, sig *secp.Signature, encSig *EncryptedSignature) (*secp.PrivateKey, error) {
	sInv := sig.S.InverseNonConst()
	cand := new(secp256k1.ModNScalar).Mul2(encSig.SHat, sInv)

	if key, ok := matchCandidate(cand, y); ok {
		return key, nil
	}

	cand.Negate()
	if key, ok := matchCandidate(cand, y); ok {
		return key, nil
	}

	return nil, ErrRecoveryMismatch
}

func matchCandidate(scalar *secp256k1.ModNScalar, y *secp.PublicKey) (*secp.PrivateKey, bool) {
	var b [32]byte
	sb := scalar.Bytes()
	copy(b[:], sb[:])

	key := secp.NewPrivateKeyFromScalar(b)
	keyBytes := key.PublicKey().Compressed()
	yBytes := y.Compressed()
	if bytes.Equal(keyBytes[:], yBytes[:]) {
		return key, true
	}

	return nil, false
}

// encSigLen is the fixed wire size of an EncryptedSignature: R (33 bytes
// compressed) || SHat (32) || t1 (33) || t2 (33) || u (32), the shape
// Msg3 of the setup protocol carries for encsig_seller_refund and the
// post-setup EncSigNotification carries for encsig_buyer_redeem.
const encSigLen = 33 + 32 + 33 + 33 + 32

// Bytes serializes the encrypted signature for transmission.
func (sig *EncryptedSignature) Bytes() []byte {
	out := make([]byte, 0, encSigLen)

	r := sig.R.Compressed()
	out = append(out, r[:]...)

	sHat := sig.SHat.Bytes()
	out = append(out, sHat[:]...)

	t1 := sig.proof.t1.Compressed()
	out = append(out, t1[:]...)

	t2 := sig.proof.t2.Compressed()
	out = append(out, t2[:]...)

	u := sig.proof.u.Bytes()
	out = append(out, u[:]...)

	return out
}

// NewEncryptedSignatureFromBytes decodes an EncryptedSignature produced by
// Bytes.
func NewEncryptedSignatureFromBytes(b []byte) (*EncryptedSignature, error) {
	if len(b) != encSigLen {
		return nil, fmt.Errorf("invalid encrypted signature length: %d", len(b))
	}

	off := 0
	r, err := secp.NewPublicKeyFromCompressed(b[off : off+33])
	if err != nil {
		return nil, fmt.Errorf("invalid encrypted signature R: %w", err)
	}
	off += 33

	sHat := new(secp256k1.ModNScalar)
	sHat.SetByteSlice(b[off : off+32])
	off += 32

	t1, err := secp.NewPublicKeyFromCompressed(b[off : off+33])
	if err != nil {
		return nil, fmt.Errorf("invalid encrypted signature proof t1: %w", err)
	}
	off += 33

	t2, err := secp.NewPublicKeyFromCompressed(b[off : off+33])
	if err != nil {
		return nil, fmt.Errorf("invalid encrypted signature proof t2: %w", err)
	}
	off += 33

	u := new(secp256k1.ModNScalar)
	u.SetByteSlice(b[off : off+32])

	return &EncryptedSignature{R: r, SHat: sHat, proof: dleqProof{t1: t1, t2: t2, u: u}}, nil
}
