package bitcoin

import (
	"fmt"

	"github.com/btcsuite/btcd/wire"
)

// BuildTxEarlyRefund builds a direct, cooperative spend of TxLock's output
// back to the buyer, signed by both parties with plain (non-adaptor)
// signatures before T1 matures. This is a fast-path abort: when the seller
// agrees the swap should be called off before committing to the Monero
// lock, there is no reason to make the buyer wait out the full cancel
// timelock, so both parties simply co-sign a refund immediately instead.
func BuildTxEarlyRefund(lock Outpoint, lockRedeemScript []byte, lockAmount, fee Amount, buyerPkScript []byte) (*wire.MsgTx, error) {
	out := lockAmount - fee
	if out <= 0 {
		return nil, fmt.Errorf("tx early refund fee %d exceeds lock amount %d", fee, lockAmount)
	}

	return buildSpend(lock, wire.MaxTxInSequenceNum, 0, buyerPkScript, int64(out))
}

// TxEarlyRefundSigHash returns the digest both parties' signatures over
// TxEarlyRefund are computed against.
func TxEarlyRefundSigHash(tx *wire.MsgTx, lockRedeemScript []byte, lockAmount Amount) ([32]byte, error) {
	return sigHash(tx, lockRedeemScript, int64(lockAmount))
}

// FinalizeTxEarlyRefund attaches the completed witness to a built
// TxEarlyRefund.
func FinalizeTxEarlyRefund(tx *wire.MsgTx, lockRedeemScript []byte, buyerPub, buyerSig, sellerPub, sellerSig []byte) {
	finalize(tx, lockRedeemScript, buyerPub, buyerSig, sellerPub, sellerSig)
}
