package bitcoin

import (
	"fmt"

	"github.com/btcsuite/btcd/wire"
)

// BuildTxRedeem builds the seller's happy-path spend of TxLock's 2-of-2
// output straight to the seller's own address, usable as soon as both
// parties' signatures (one of them decrypted from the buyer's encrypted
// signature) are available — no timelock applies.
func BuildTxRedeem(lock Outpoint, redeemScript []byte, lockAmount, fee Amount, sellerPkScript []byte) (*wire.MsgTx, error) {
	out := lockAmount - fee
	if out <= 0 {
		return nil, fmt.Errorf("tx redeem fee %d exceeds lock amount %d", fee, lockAmount)
	}

	return buildSpend(lock, wire.MaxTxInSequenceNum, 0, sellerPkScript, int64(out))
}

// TxRedeemSigHash returns the digest both parties' signatures over
// TxRedeem are computed against.
func TxRedeemSigHash(tx *wire.MsgTx, redeemScript []byte, lockAmount Amount) ([32]byte, error) {
	return sigHash(tx, redeemScript, int64(lockAmount))
}

// FinalizeTxRedeem attaches the completed witness to a built TxRedeem.
func FinalizeTxRedeem(tx *wire.MsgTx, redeemScript []byte, buyerPub, buyerSig, sellerPub, sellerSig []byte) {
	finalize(tx, redeemScript, buyerPub, buyerSig, sellerPub, sellerSig)
}
