package bitcoin

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"
)

// CancelOutput describes the timelocked 2-of-2 output TxCancel re-locks the
// swap amount into, gated by T2 (punish_timelock) before TxPunish or
// TxRefund may spend it.
type CancelOutput struct {
	RedeemScript []byte
	TxOut        *wire.TxOut
}

// NewCancelOutput builds TxCancel's destination output: the same amount
// (minus this transaction's own fee) re-locked under a script that adds a
// T2 relative-timelock requirement on top of the 2-of-2 condition.
func NewCancelOutput(buyerPub, sellerPub *btcec.PublicKey, amount Amount, punishTimelock uint32) (*CancelOutput, error) {
	redeemScript, err := timelockedMultiSigScript(buyerPub, sellerPub, punishTimelock)
	if err != nil {
		return nil, fmt.Errorf("failed to build cancel output script: %w", err)
	}

	pkScript, err := witnessScriptHash(redeemScript)
	if err != nil {
		return nil, fmt.Errorf("failed to build cancel output script: %w", err)
	}

	return &CancelOutput{RedeemScript: redeemScript, TxOut: wire.NewTxOut(int64(amount), pkScript)}, nil
}

// BuildTxCancel builds the transaction that re-locks TxLock's output under
// CancelOutput's script, spendable as soon as T1 (cancel_timelock) has
// matured on TxLock.
func BuildTxCancel(lock Outpoint, lockRedeemScript []byte, lockAmount, fee Amount, cancelTimelock uint32, cancelOut *CancelOutput) (*wire.MsgTx, error) {
	out := lockAmount - fee
	if out != Amount(cancelOut.TxOut.Value) {
		return nil, fmt.Errorf("cancel output amount %d does not match lock amount %d minus fee %d", cancelOut.TxOut.Value, lockAmount, fee)
	}

	return buildSpend(lock, sequenceFromBlocks(cancelTimelock), 0, cancelOut.TxOut.PkScript, cancelOut.TxOut.Value)
}

// TxCancelSigHash returns the digest both parties' pre-signed signatures
// over TxCancel are computed against.
func TxCancelSigHash(tx *wire.MsgTx, lockRedeemScript []byte, lockAmount Amount) ([32]byte, error) {
	return sigHash(tx, lockRedeemScript, int64(lockAmount))
}

// FinalizeTxCancel attaches the completed witness to a built TxCancel.
func FinalizeTxCancel(tx *wire.MsgTx, lockRedeemScript []byte, buyerPub, buyerSig, sellerPub, sellerSig []byte) {
	finalize(tx, lockRedeemScript, buyerPub, buyerSig, sellerPub, sellerSig)
}
