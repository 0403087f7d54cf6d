package setup

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"

	"github.com/noot/xmrbtc-swap/bitcoin"
	"github.com/noot/xmrbtc-swap/crypto/adaptor"
	mcrypto "github.com/noot/xmrbtc-swap/crypto/monero"
	secp "github.com/noot/xmrbtc-swap/crypto/secp256k1"
)

// Result is everything the setup handshake produces: every key and script
// and the Msg3/Msg4 pre-signatures. Signing after RunBuyer or RunSeller
// returns is limited to encsig_buyer_redeem (SignBuyerRedeemEncSig) and
// each party's own plain signature on a transaction it broadcasts.
type Result struct {
	Own *Keys

	BuyerTxLockKey  *secp.PublicKey
	SellerTxLockKey *secp.PublicKey

	BuyerSpendKeyImageBTC  *secp.PublicKey
	SellerSpendKeyImageBTC *secp.PublicKey

	// Counterparty is the verified Msg0/Msg1 contribution the handshake
	// received, kept around (rather than discarded once the joint keys and
	// tx family are derived from it) so that the seller/buyer state
	// machines can checkpoint this Result via ToCheckpoint without the
	// caller having to separately thread it through.
	Counterparty *CounterpartyContribution

	// JointSpendPublic and JointViewPublic derive the Monero lock address;
	// JointViewPrivate is computable by both parties directly, since each
	// party's view-key share (unlike the spend-key share) is never kept
	// secret from the other past Msg0/Msg1.
	JointSpendPublic *mcrypto.PublicKey
	JointViewPublic  *mcrypto.PublicKey
	JointViewPrivate *mcrypto.PrivateViewKey
	LockAddress      mcrypto.Address

	BuyerRefundPkScript  []byte
	SellerRedeemPkScript []byte
	SellerPunishPkScript []byte

	LockOutput   *bitcoin.LockOutput
	LockTx       *wire.MsgTx
	LockVout     uint32
	LockOutpoint bitcoin.Outpoint

	CancelOutput *bitcoin.CancelOutput

	// TxCancel, TxRefund, TxPunish and TxRedeem are the rest of the
	// family, unsigned: every party can build these identically from
	// public information alone, so both RunBuyer and
	// RunSeller compute and attach them before returning, and a restarted
	// process rebuilds them the same way from a Checkpoint rather than
	// trusting serialized copies of them.
	TxCancel *wire.MsgTx
	TxRefund *wire.MsgTx
	TxPunish *wire.MsgTx
	TxRedeem *wire.MsgTx

	CancelSigHash [32]byte
	RefundSigHash [32]byte
	PunishSigHash [32]byte
	RedeemSigHash [32]byte

	SellerCancelSig []byte
	BuyerCancelSig  []byte
	BuyerPunishSig  []byte

	// RefundEncSig is encsig_seller_refund: signed under the seller's a,
	// encrypted under the buyer's S_b_btc. The buyer decrypts it with
	// their own s_b to complete TxRefund; publishing TxRefund then lets
	// the seller recover s_b. Exchanged during setup (Msg3): sending it early
	// leaks nothing a cooperative redeem wouldn't also require.
	RefundEncSig *adaptor.EncryptedSignature

	// RedeemEncSig is encsig_buyer_redeem: signed under the buyer's b,
	// encrypted under the seller's S_a_btc. Unlike RefundEncSig, this one
	// is nil immediately after setup: the buyer must not produce or send it
	// the buyer from producing/sending it before the XMR lock has
	// conf_target confirmations and T1 is still far enough away to
	// refund, so it is signed later by the buyer state machine via
	// SignBuyerRedeemEncSig and delivered out-of-band as
	// message.EncSigNotification, not as part of Msg4.
	RedeemEncSig *adaptor.EncryptedSignature
}

// SignBuyerRedeemEncSig produces encsig_buyer_redeem: the buyer's adaptor
// pre-signature for TxRedeem, encrypted under the seller's S_a_btc. Called
// by the buyer's own state machine once it's safe to, not during the
// setup handshake itself.
func (r *Result) SignBuyerRedeemEncSig() (*adaptor.EncryptedSignature, error) {
	return adaptor.EncSign(r.Own.TxLockKey, r.SellerSpendKeyImageBTC, r.RedeemSigHash)
}

// VerifyBuyerRedeemEncSig checks a received encsig_buyer_redeem against the
// agreed transaction family, called by the seller's state machine on
// receipt of message.EncSigNotification.
func (r *Result) VerifyBuyerRedeemEncSig(sig *adaptor.EncryptedSignature) error {
	return adaptor.VerifyEncSig(r.BuyerTxLockKey, r.SellerSpendKeyImageBTC, r.RedeemSigHash, sig)
}

// buyerBtcEC and sellerBtcEC return the TxLock public keys in the
// *btcec.PublicKey form the bitcoin package's script builders take.
func (r *Result) buyerBtcEC() *btcec.PublicKey  { return r.BuyerTxLockKey.BtcEC() }
func (r *Result) sellerBtcEC() *btcec.PublicKey { return r.SellerTxLockKey.BtcEC() }
