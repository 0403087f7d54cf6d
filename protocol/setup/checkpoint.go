package setup

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/wire"

	"github.com/noot/xmrbtc-swap/bitcoin"
	"github.com/noot/xmrbtc-swap/crypto/adaptor"
	"github.com/noot/xmrbtc-swap/crypto/ed25519"
	mcrypto "github.com/noot/xmrbtc-swap/crypto/monero"
	secp "github.com/noot/xmrbtc-swap/crypto/secp256k1"
)

// Role distinguishes which side of a swap a Checkpoint's "Own" fields
// belong to, since Result keeps buyer and seller material in separate
// named fields rather than a single "mine"/"theirs" pair.
type Role byte

const (
	RoleBuyer Role = iota
	RoleSeller
)

// Checkpoint is everything a crashed or restarted process needs to
// reconstruct a Result without re-running the setup handshake: rather than
// serializing the derived transactions and scripts directly, it keeps only
// the inputs unsignedFamily and jointKeys are already built from — the same
// public information both parties derived the family from in the first
// place. This is the
// wire-shaped half of a persisted swap; swap/db stores it as an opaque
// blob keyed by swap ID.
type Checkpoint struct {
	Role Role

	Config ConfigBlob

	OwnTxLockKey    [32]byte
	OwnDLEqProof    []byte
	OwnDLEqSecret   [32]byte
	OwnViewKeyShare [32]byte

	CpTxLockKey     [33]byte
	CpSpendImageBTC [33]byte
	CpSpendImageXMR [32]byte
	CpViewKeyShare  [32]byte

	BuyerRefundPkScript  []byte
	SellerRedeemPkScript []byte
	SellerPunishPkScript []byte

	LockTx           []byte // wire-serialized
	LockVout         uint32
	LockRedeemScript []byte

	SellerCancelSig []byte
	BuyerCancelSig  []byte
	BuyerPunishSig  []byte

	RefundEncSig []byte
	RedeemEncSig []byte
}

// ConfigBlob is Config in a form that round-trips through JSON without a
// custom MarshalJSON: bitcoin.Amount, bitcoin.FeeRate and mcrypto.Network
// are all plain integer/byte types already.
type ConfigBlob struct {
	BTCAmount      bitcoin.Amount
	XMRAmount      uint64
	CancelTimelock uint32
	PunishTimelock uint32
	XMRConfTarget  uint64
	Network        mcrypto.Network
	FeeRate        bitcoin.FeeRate
	TxFee          bitcoin.Amount
}

func configToBlob(cfg Config) ConfigBlob {
	return ConfigBlob{
		BTCAmount:      cfg.BTCAmount,
		XMRAmount:      cfg.XMRAmount,
		CancelTimelock: cfg.CancelTimelock,
		PunishTimelock: cfg.PunishTimelock,
		XMRConfTarget:  cfg.XMRConfTarget,
		Network:        cfg.Network,
		FeeRate:        cfg.FeeRate,
		TxFee:          cfg.TxFee,
	}
}

func (b ConfigBlob) toConfig() Config {
	return Config{
		BTCAmount:      b.BTCAmount,
		XMRAmount:      b.XMRAmount,
		CancelTimelock: b.CancelTimelock,
		PunishTimelock: b.PunishTimelock,
		XMRConfTarget:  b.XMRConfTarget,
		Network:        b.Network,
		FeeRate:        b.FeeRate,
		TxFee:          b.TxFee,
	}
}

// ToCheckpoint captures everything needed to restore this Result later: own
// is the key material the caller generated for itself, cp is the
// counterparty's verified Msg0/Msg1 contribution the caller already holds
// from the live handshake (RunBuyer/RunSeller never discard it, so no
// "subtract the joint sum" reconstruction is needed here).
func (r *Result) ToCheckpoint(role Role, own *Keys, cp *CounterpartyContribution, cfg Config) (*Checkpoint, error) {
	var lockTxBuf bytes.Buffer
	if err := r.LockTx.Serialize(&lockTxBuf); err != nil {
		return nil, fmt.Errorf("failed to serialize lock tx: %w", err)
	}

	cpSpendImageXMRBytes := cp.SpendImageXMR.Bytes()

	out := &Checkpoint{
		Role:   role,
		Config: configToBlob(cfg),

		OwnTxLockKey:    own.TxLockKey.Bytes(),
		OwnDLEqProof:    own.DLEqProof.Encode(),
		OwnDLEqSecret:   own.dleqSecret.Bytes(),
		OwnViewKeyShare: own.ViewKeyShare.Bytes(),

		CpTxLockKey:     cp.TxLockKey.Compressed(),
		CpSpendImageBTC: cp.SpendImageBTC.Compressed(),
		CpSpendImageXMR: cpSpendImageXMRBytes,
		CpViewKeyShare:  cp.View.Bytes(),

		BuyerRefundPkScript:  r.BuyerRefundPkScript,
		SellerRedeemPkScript: r.SellerRedeemPkScript,
		SellerPunishPkScript: r.SellerPunishPkScript,

		LockTx:           lockTxBuf.Bytes(),
		LockVout:         r.LockVout,
		LockRedeemScript: r.LockOutput.RedeemScript,

		SellerCancelSig: r.SellerCancelSig,
		BuyerCancelSig:  r.BuyerCancelSig,
		BuyerPunishSig:  r.BuyerPunishSig,
	}

	if r.RefundEncSig != nil {
		out.RefundEncSig = r.RefundEncSig.Bytes()
	}
	if r.RedeemEncSig != nil {
		out.RedeemEncSig = r.RedeemEncSig.Bytes()
	}

	return out, nil
}

// FromCheckpoint reconstructs a Result and the Config it was built under
// from a persisted Checkpoint, rebuilding the transaction family the same
// deterministic way buildUnsignedFamily does during the live handshake
// rather than trusting any serialized transaction bytes beyond TxLock
// itself (the one transaction that isn't purely derivable, since the buyer
// chose its exact inputs/change).
func FromCheckpoint(cp *Checkpoint) (*Result, Config, error) {
	cfg := cp.Config.toConfig()

	own, err := RestoreKeys(cp.OwnTxLockKey, cp.OwnDLEqProof, cp.OwnDLEqSecret, cp.OwnViewKeyShare)
	if err != nil {
		return nil, Config{}, fmt.Errorf("failed to restore own keys: %w", err)
	}

	cpTxLockKey, err := secp.NewPublicKeyFromCompressed(cp.CpTxLockKey[:])
	if err != nil {
		return nil, Config{}, fmt.Errorf("failed to restore counterparty tx lock key: %w", err)
	}
	cpSpendImageBTC, err := secp.NewPublicKeyFromCompressed(cp.CpSpendImageBTC[:])
	if err != nil {
		return nil, Config{}, fmt.Errorf("failed to restore counterparty btc spend image: %w", err)
	}
	cpSpendImageXMRPoint, err := ed25519.NewPointFromBytes(cp.CpSpendImageXMR)
	if err != nil {
		return nil, Config{}, fmt.Errorf("failed to restore counterparty xmr spend image: %w", err)
	}
	cpView, err := mcrypto.NewPrivateViewKeyFromScalar(cp.CpViewKeyShare)
	if err != nil {
		return nil, Config{}, fmt.Errorf("failed to restore counterparty view key: %w", err)
	}

	cpContribution := &CounterpartyContribution{
		TxLockKey:        cpTxLockKey,
		SpendImageBTC:    cpSpendImageBTC,
		SpendImageXMR:    cpSpendImageXMRPoint,
		SpendImageXMRPub: mcrypto.NewPublicKeyFromPoint(cpSpendImageXMRPoint),
		View:             cpView,
	}

	var lockTx wire.MsgTx
	if err := lockTx.Deserialize(bytes.NewReader(cp.LockTx)); err != nil {
		return nil, Config{}, fmt.Errorf("failed to deserialize lock tx: %w", err)
	}
	lockOutpoint := bitcoin.Outpoint{Hash: lockTx.TxHash(), Index: cp.LockVout}
	lockOutput := &bitcoin.LockOutput{
		RedeemScript: cp.LockRedeemScript,
		TxOut:        lockTx.TxOut[cp.LockVout],
	}

	jointSpend, jointView, jointViewPrivate, address, err := jointKeys(cfg, own, cpContribution)
	if err != nil {
		return nil, Config{}, fmt.Errorf("failed to rederive joint keys: %w", err)
	}

	var buyerTxLockKey, sellerTxLockKey *secp.PublicKey
	var buyerSpendImageBTC, sellerSpendImageBTC *secp.PublicKey
	switch cp.Role {
	case RoleBuyer:
		buyerTxLockKey, sellerTxLockKey = own.TxLockKey.PublicKey(), cpTxLockKey
		buyerSpendImageBTC, sellerSpendImageBTC = own.PublicSpendKeyImageBTC(), cpSpendImageBTC
	case RoleSeller:
		buyerTxLockKey, sellerTxLockKey = cpTxLockKey, own.TxLockKey.PublicKey()
		buyerSpendImageBTC, sellerSpendImageBTC = cpSpendImageBTC, own.PublicSpendKeyImageBTC()
	default:
		return nil, Config{}, fmt.Errorf("invalid checkpoint role %d", cp.Role)
	}

	fam, err := buildUnsignedFamily(
		cfg, lockOutpoint, lockOutput.RedeemScript,
		buyerTxLockKey.BtcEC(), sellerTxLockKey.BtcEC(),
		cp.BuyerRefundPkScript, cp.SellerRedeemPkScript, cp.SellerPunishPkScript,
	)
	if err != nil {
		return nil, Config{}, fmt.Errorf("failed to rebuild transaction family: %w", err)
	}

	out := &Result{
		Own: own,

		BuyerTxLockKey:  buyerTxLockKey,
		SellerTxLockKey: sellerTxLockKey,

		BuyerSpendKeyImageBTC:  buyerSpendImageBTC,
		SellerSpendKeyImageBTC: sellerSpendImageBTC,
		Counterparty:           cpContribution,

		JointSpendPublic: jointSpend,
		JointViewPublic:  jointView,
		JointViewPrivate: jointViewPrivate,
		LockAddress:      address,

		BuyerRefundPkScript:  cp.BuyerRefundPkScript,
		SellerRedeemPkScript: cp.SellerRedeemPkScript,
		SellerPunishPkScript: cp.SellerPunishPkScript,

		LockOutput:   lockOutput,
		LockTx:       &lockTx,
		LockVout:     cp.LockVout,
		LockOutpoint: lockOutpoint,

		CancelOutput: fam.cancelOut,

		TxCancel: fam.txCancel,
		TxRefund: fam.txRefund,
		TxPunish: fam.txPunish,
		TxRedeem: fam.txRedeem,

		CancelSigHash: fam.cancelSigHash,
		RefundSigHash: fam.refundSigHash,
		PunishSigHash: fam.punishSigHash,
		RedeemSigHash: fam.redeemSigHash,

		SellerCancelSig: cp.SellerCancelSig,
		BuyerCancelSig:  cp.BuyerCancelSig,
		BuyerPunishSig:  cp.BuyerPunishSig,
	}

	if cp.RefundEncSig != nil {
		out.RefundEncSig, err = adaptor.NewEncryptedSignatureFromBytes(cp.RefundEncSig)
		if err != nil {
			return nil, Config{}, fmt.Errorf("failed to restore refund encsig: %w", err)
		}
	}
	if cp.RedeemEncSig != nil {
		out.RedeemEncSig, err = adaptor.NewEncryptedSignatureFromBytes(cp.RedeemEncSig)
		if err != nil {
			return nil, Config{}, fmt.Errorf("failed to restore redeem encsig: %w", err)
		}
	}

	return out, cfg, nil
}
