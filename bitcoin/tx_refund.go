package bitcoin

import (
	"fmt"

	"github.com/btcsuite/btcd/wire"
)

// BuildTxRefund builds the buyer's spend of TxCancel's output back to the
// buyer's own address. It is valid the moment TxCancel confirms — T2 gates
// TxPunish, not TxRefund, so the buyer's refund races the seller's punish
// once T2 matures, but may also be broadcast immediately after TxCancel if
// the seller never recovers a punish signature in time.
func BuildTxRefund(cancel Outpoint, cancelRedeemScript []byte, cancelAmount, fee Amount, buyerPkScript []byte) (*wire.MsgTx, error) {
	out := cancelAmount - fee
	if out <= 0 {
		return nil, fmt.Errorf("tx refund fee %d exceeds cancel amount %d", fee, cancelAmount)
	}

	return buildSpend(cancel, wire.MaxTxInSequenceNum, 0, buyerPkScript, int64(out))
}

// TxRefundSigHash returns the digest both parties' signatures over
// TxRefund are computed against.
func TxRefundSigHash(tx *wire.MsgTx, cancelRedeemScript []byte, cancelAmount Amount) ([32]byte, error) {
	return sigHash(tx, cancelRedeemScript, int64(cancelAmount))
}

// FinalizeTxRefund attaches the completed witness to a built TxRefund.
func FinalizeTxRefund(tx *wire.MsgTx, cancelRedeemScript []byte, buyerPub, buyerSig, sellerPub, sellerSig []byte) {
	finalize(tx, cancelRedeemScript, buyerPub, buyerSig, sellerPub, sellerSig)
}
