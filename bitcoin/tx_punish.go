package bitcoin

import (
	"fmt"

	"github.com/btcsuite/btcd/wire"
)

// BuildTxPunish builds the seller's spend of TxCancel's output to the
// seller's own address, usable once T2 (punish_timelock) has matured on
// TxCancel's confirmation — the seller's recourse when the buyer locks
// TxCancel but then refuses to cooperate on TxRefund.
func BuildTxPunish(cancel Outpoint, cancelRedeemScript []byte, cancelAmount, fee Amount, punishTimelock uint32, sellerPkScript []byte) (*wire.MsgTx, error) {
	out := cancelAmount - fee
	if out <= 0 {
		return nil, fmt.Errorf("tx punish fee %d exceeds cancel amount %d", fee, cancelAmount)
	}

	return buildSpend(cancel, sequenceFromBlocks(punishTimelock), 0, sellerPkScript, int64(out))
}

// TxPunishSigHash returns the digest both parties' pre-signed signatures
// over TxPunish are computed against.
func TxPunishSigHash(tx *wire.MsgTx, cancelRedeemScript []byte, cancelAmount Amount) ([32]byte, error) {
	return sigHash(tx, cancelRedeemScript, int64(cancelAmount))
}

// FinalizeTxPunish attaches the completed witness to a built TxPunish.
func FinalizeTxPunish(tx *wire.MsgTx, cancelRedeemScript []byte, buyerPub, buyerSig, sellerPub, sellerSig []byte) {
	finalize(tx, cancelRedeemScript, buyerPub, buyerSig, sellerPub, sellerSig)
}
