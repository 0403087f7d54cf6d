package bitcoin

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"
)

// LockOutput describes the 2-of-2 P2WSH output TxLock pays the swap amount
// into: the buyer funds it from their own wallet inputs,
// so this package only builds and validates the output itself, leaving
// input selection to the wallet layer.
type LockOutput struct {
	RedeemScript []byte
	TxOut        *wire.TxOut
}

// NewLockOutput builds the redeem script and P2WSH output for a TxLock
// funding the swap amount between the buyer and seller's TxLock keys.
func NewLockOutput(buyerPub, sellerPub *btcec.PublicKey, amount Amount) (*LockOutput, error) {
	redeemScript, txOut, err := fundingOutput(buyerPub, sellerPub, int64(amount))
	if err != nil {
		return nil, fmt.Errorf("failed to build lock output: %w", err)
	}

	return &LockOutput{RedeemScript: redeemScript, TxOut: txOut}, nil
}

// ErrLockAmountMismatch is returned by ValidateLockOutput when a broadcast
// TxLock's output pays an amount other than the one agreed in the setup
// protocol.
var ErrLockAmountMismatch = fmt.Errorf("lock output amount does not match agreed swap amount")

// ErrLockScriptMismatch is returned by ValidateLockOutput when a broadcast
// TxLock's output script does not match the expected 2-of-2 redeem script.
var ErrLockScriptMismatch = fmt.Errorf("lock output script does not match expected 2-of-2 script")

// ValidateLockOutput enforces the invariant that before either party
// proceeds past the setup protocol, an observed TxLock's output at vout
// must carry exactly the agreed amount and exactly the agreed redeem
// script — the check that rules out a malicious counterparty locking a
// smaller amount or a subtly different script.
func ValidateLockOutput(tx *wire.MsgTx, vout uint32, want *LockOutput) error {
	if int(vout) >= len(tx.TxOut) {
		return fmt.Errorf("lock output index %d out of range (tx has %d outputs)", vout, len(tx.TxOut))
	}

	out := tx.TxOut[vout]
	if out.Value != want.TxOut.Value {
		return ErrLockAmountMismatch
	}

	if !bytes.Equal(out.PkScript, want.TxOut.PkScript) {
		return ErrLockScriptMismatch
	}

	return nil
}
