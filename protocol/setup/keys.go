// Package setup drives the five-message handshake between buyer and
// seller: exchanging TxLock keys, cross-curve-proven
// spend-key shares and view-key shares, validating the buyer's funded
// TxLock, and pre-signing TxCancel, TxRefund and TxPunish. Signing after
// RunBuyer/RunSeller return is limited to encsig_buyer_redeem
// (Result.SignBuyerRedeemEncSig) and each party's own plain signature on
// a transaction it broadcasts.
package setup

import (
	"fmt"

	"github.com/noot/xmrbtc-swap/crypto/dleq"
	mcrypto "github.com/noot/xmrbtc-swap/crypto/monero"
	secp "github.com/noot/xmrbtc-swap/crypto/secp256k1"
)

// Keys is one party's full set of setup-protocol key material, generated
// fresh for every swap.
type Keys struct {
	// TxLockKey is this party's share of the TxLock 2-of-2 multisig key
	// (a or b), independent of the spend-key share below.
	TxLockKey *secp.PrivateKey

	// DLEqProof attests that SpendKeyShareBTC and SpendKeyShareXMR share
	// the same discrete log (π_a/π_b).
	DLEqProof *dleq.Proof
	// dleqSecret is that shared scalar (s_a/s_b): the Monero spend-key
	// share and the adaptor-signature decryption/encryption key are both
	// derived from it.
	dleqSecret *dleq.Secret

	// ViewKeyShare is this party's independently-sampled share of the
	// joint Monero view key (v_a/v_b).
	ViewKeyShare *mcrypto.PrivateViewKey
}

// GenerateKeys samples a fresh TxLock key, a cross-curve-proven spend-key
// share, and an independent view-key share.
func GenerateKeys() (*Keys, error) {
	txLockKey, err := secp.GenerateKeypair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate tx lock key: %w", err)
	}

	proof, secret, _, _, err := dleq.Prove()
	if err != nil {
		return nil, fmt.Errorf("failed to generate spend key share: %w", err)
	}

	viewKeyShare, err := mcrypto.NewRandomPrivateViewKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate view key share: %w", err)
	}

	return &Keys{
		TxLockKey:    txLockKey,
		DLEqProof:    proof,
		dleqSecret:   secret,
		ViewKeyShare: viewKeyShare,
	}, nil
}

// RestoreKeys reconstructs a party's setup-protocol key material from a
// persisted checkpoint (swap/db), the same four values GenerateKeys
// samples fresh: no DLEQ proof re-derivation or re-verification happens
// here, since a restored proof was already verified once by the
// counterparty before the swap reached a persisted state.
func RestoreKeys(txLockKey [32]byte, dleqProof []byte, dleqSecret [32]byte, viewKeyShare [32]byte) (*Keys, error) {
	proof, err := dleq.DecodeProof(dleqProof)
	if err != nil {
		return nil, fmt.Errorf("failed to restore dleq proof: %w", err)
	}

	view, err := mcrypto.NewPrivateViewKeyFromScalar(viewKeyShare)
	if err != nil {
		return nil, fmt.Errorf("failed to restore view key share: %w", err)
	}

	return &Keys{
		TxLockKey:    secp.NewPrivateKeyFromScalar(txLockKey),
		DLEqProof:    proof,
		dleqSecret:   dleq.NewSecretFromBytes(dleqSecret),
		ViewKeyShare: view,
	}, nil
}

// SpendKeyShareXMR returns this party's Monero spend-key share, s_a or
// s_b, the same scalar DLEqProof attests to.
func (k *Keys) SpendKeyShareXMR() (*mcrypto.PrivateSpendKey, error) {
	return k.dleqSecret.AsMoneroSpendKey()
}

// SpendKeyShareBTC returns the same scalar in secp256k1 form, used as the
// adaptor-signature encryption/decryption key.
func (k *Keys) SpendKeyShareBTC() *secp.PrivateKey {
	return k.dleqSecret.AsSecp256k1PrivateKey()
}

// PublicSpendKeyImageXMR returns S_a_xmr/S_b_xmr, carried in Msg0/Msg1.
func (k *Keys) PublicSpendKeyImageXMR() (*mcrypto.PublicKey, error) {
	spend, err := k.SpendKeyShareXMR()
	if err != nil {
		return nil, err
	}
	return spend.Public(), nil
}

// PublicSpendKeyImageBTC returns S_a_btc/S_b_btc, carried in Msg0/Msg1.
func (k *Keys) PublicSpendKeyImageBTC() *secp.PublicKey {
	return k.SpendKeyShareBTC().PublicKey()
}
