package bitcoin

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Outpoint identifies the coin a descendant transaction in the lock family
// spends — normally TxLock's 2-of-2 output, or TxCancel's for TxRefund and
// TxPunish.
type Outpoint struct {
	Hash  chainhash.Hash
	Index uint32
}

// buildSpend constructs an unsigned single-input, single-output transaction
// spending outpoint, the shape every member of the TxLock family shares:
// TxCancel, TxRefund, TxPunish, TxRedeem and TxEarlyRefund differ only in
// their destination script/amount and their sequence/locktime fields.
func buildSpend(op Outpoint, sequence uint32, locktime uint32, outPkScript []byte, outAmount int64) (*wire.MsgTx, error) {
	if outAmount <= 0 {
		return nil, fmt.Errorf("spend amount must be positive, got %d", outAmount)
	}

	tx := wire.NewMsgTx(2)
	tx.LockTime = locktime

	txIn := wire.NewTxIn(&wire.OutPoint{Hash: op.Hash, Index: op.Index}, nil, nil)
	txIn.Sequence = sequence
	tx.AddTxIn(txIn)

	tx.AddTxOut(wire.NewTxOut(outAmount, outPkScript))

	return tx, nil
}

// finalize attaches the 2-of-2 witness to a built spend transaction's sole
// input.
func finalize(tx *wire.MsgTx, redeemScript []byte, pubA, sigA, pubB, sigB []byte) {
	tx.TxIn[0].Witness = spendWitness(redeemScript, pubA, sigA, pubB, sigB)
}

// destinationOutput builds the destination TxOut for a spend from an
// arbitrary pkScript (e.g. a P2WPKH address the receiving wallet controls).
// buildSpend constructs its output directly and does not call it.
func destinationOutput(pkScript []byte, amount int64) *wire.TxOut {
	return wire.NewTxOut(amount, pkScript)
}
