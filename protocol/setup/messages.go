package setup

import (
	"fmt"

	"github.com/noot/xmrbtc-swap/crypto/dleq"
	"github.com/noot/xmrbtc-swap/crypto/ed25519"
	mcrypto "github.com/noot/xmrbtc-swap/crypto/monero"
	secp "github.com/noot/xmrbtc-swap/crypto/secp256k1"
	"github.com/noot/xmrbtc-swap/net/message"
)

// Contribution builds Msg0, the buyer's opening message: TxLock key,
// DLEQ-proven spend-key shares, view-key share, and the address any BTC
// refund should land in.
func (k *Keys) Contribution(refundScript []byte) (*message.Contribution, error) {
	spendXMR, err := k.PublicSpendKeyImageXMR()
	if err != nil {
		return nil, fmt.Errorf("failed to derive xmr spend key image: %w", err)
	}

	spendXMRBytes := spendXMR.Bytes()
	txLockPub := k.TxLockKey.PublicKey().Compressed()
	spendBTCBytes := k.PublicSpendKeyImageBTC().Compressed()
	viewBytes := k.ViewKeyShare.Bytes()

	return &message.Contribution{
		TxLockPublicKey:  txLockPub[:],
		SpendKeyShareXMR: spendXMRBytes[:],
		SpendKeyShareBTC: spendBTCBytes[:],
		DLEqProof:        k.DLEqProof.Encode(),
		ViewKeyShare:     viewBytes[:],
		RefundScript:     refundScript,
	}, nil
}

// CounterContribution builds Msg1, the seller's reply: TxLock key,
// DLEQ-proven spend-key shares, view-key share, and the addresses the
// seller wants redeem/punish proceeds sent to.
func (k *Keys) CounterContribution(redeemScript, punishScript []byte) (*message.CounterContribution, error) {
	spendXMR, err := k.PublicSpendKeyImageXMR()
	if err != nil {
		return nil, fmt.Errorf("failed to derive xmr spend key image: %w", err)
	}

	spendXMRBytes := spendXMR.Bytes()
	txLockPub := k.TxLockKey.PublicKey().Compressed()
	spendBTCBytes := k.PublicSpendKeyImageBTC().Compressed()
	viewBytes := k.ViewKeyShare.Bytes()

	return &message.CounterContribution{
		TxLockPublicKey:  txLockPub[:],
		SpendKeyShareXMR: spendXMRBytes[:],
		SpendKeyShareBTC: spendBTCBytes[:],
		DLEqProof:        k.DLEqProof.Encode(),
		ViewKeyShare:     viewBytes[:],
		RedeemScript:     redeemScript,
		PunishScript:     punishScript,
	}, nil
}

// CounterpartyContribution is a Msg0/Msg1 sender's key material, decoded
// into usable crypto types and verified against its own DLEQ proof before
// any other part of the handshake trusts it.
type CounterpartyContribution struct {
	TxLockKey        *secp.PublicKey
	SpendImageBTC    *secp.PublicKey
	SpendImageXMR    *ed25519.Point
	SpendImageXMRPub *mcrypto.PublicKey

	// View is the counterparty's private view-key share, sent in the clear
	// (a view key alone grants no spending power, only the ability to
	// watch the joint wallet).
	View *mcrypto.PrivateViewKey
}

// ParseAndVerify decodes a counterparty's Contribution or CounterContribution
// key fields and verifies the DLEQ proof linking their two spend-key
// images, failing with dleq.ErrInvalidCrossCurveProof on mismatch.
func ParseAndVerify(txLockPub, spendXMR, spendBTC, proof, viewShare []byte) (*CounterpartyContribution, error) {
	txLockKey, err := secp.NewPublicKeyFromCompressed(txLockPub)
	if err != nil {
		return nil, fmt.Errorf("invalid tx lock public key: %w", err)
	}

	spendImageBTC, err := secp.NewPublicKeyFromCompressed(spendBTC)
	if err != nil {
		return nil, fmt.Errorf("invalid btc spend key image: %w", err)
	}

	var spendXMRArr [32]byte
	if len(spendXMR) != 32 {
		return nil, fmt.Errorf("invalid xmr spend key image length %d", len(spendXMR))
	}
	copy(spendXMRArr[:], spendXMR)
	spendImageXMR, err := ed25519.NewPointFromBytes(spendXMRArr)
	if err != nil {
		return nil, fmt.Errorf("invalid xmr spend key image: %w", err)
	}

	dleqProof, err := dleq.DecodeProof(proof)
	if err != nil {
		return nil, fmt.Errorf("invalid dleq proof: %w", err)
	}

	if err := dleq.Verify(dleqProof, spendImageBTC, spendImageXMR); err != nil {
		return nil, err
	}

	if len(viewShare) != 32 {
		return nil, fmt.Errorf("invalid view key share length %d", len(viewShare))
	}
	var viewArr [32]byte
	copy(viewArr[:], viewShare)
	view, err := mcrypto.NewPrivateViewKeyFromScalar(viewArr)
	if err != nil {
		return nil, fmt.Errorf("invalid view key share: %w", err)
	}

	return &CounterpartyContribution{
		TxLockKey:        txLockKey,
		SpendImageBTC:    spendImageBTC,
		SpendImageXMR:    spendImageXMR,
		SpendImageXMRPub: mcrypto.NewPublicKeyFromPoint(spendImageXMR),
		View:             view,
	}, nil
}
