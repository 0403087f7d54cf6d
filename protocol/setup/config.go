package setup

import (
	"github.com/noot/xmrbtc-swap/bitcoin"
	mcrypto "github.com/noot/xmrbtc-swap/crypto/monero"
)

// Config carries the terms both parties have already agreed on (e.g. via
// an out-of-band offer/take-offer exchange) before the setup handshake
// begins. None of it is negotiated by the handshake itself.
type Config struct {
	// BTCAmount is the swap amount TxLock must lock, in satoshis.
	BTCAmount bitcoin.Amount
	// XMRAmount is the swap amount the seller's Monero lock transfer must
	// pay, in piconero.
	XMRAmount uint64
	// CancelTimelock is T1, in blocks: how long after TxLock confirms the
	// buyer may publish TxCancel.
	CancelTimelock uint32
	// PunishTimelock is T2, in blocks: how long after TxCancel confirms
	// the seller may publish TxPunish.
	PunishTimelock uint32
	// XMRConfTarget is conf_target, the number of confirmations the XMR
	// lock transaction needs before the buyer may send encsig_buyer_redeem.
	XMRConfTarget uint64
	// Network is the Monero network the joint address is encoded for.
	Network mcrypto.Network
	// FeeRate funds TxLock at the buyer's end.
	FeeRate bitcoin.FeeRate
	// TxFee is the flat per-transaction fee subtracted by TxCancel,
	// TxRefund, TxPunish, TxRedeem and TxEarlyRefund, each of which spend
	// a single fixed-value input with no change output to compute.
	TxFee bitcoin.Amount
}
