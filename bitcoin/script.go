// Package bitcoin implements the Bitcoin transaction family: TxLock,
// TxCancel, TxRefund, TxPunish, TxRedeem, TxEarlyRefund,
// their shared 2-of-2 witness scripts, BIP-143 sighash computation, relative
// timelock encoding/classification, and witness signature extraction.
//
// The 2-of-2 script construction and witness-stack ordering follow lnd's
// fork (lnwallet/script_utils.go: genMultiSigScript, genFundingPkScript,
// spendMultiSig), adapted from the old github.com/roasbeef/btcd API to
// the modern btcsuite/btcd v0.24 API this module depends on.
package bitcoin

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// multiSigScript builds the `<A> OP_CHECKSIGVERIFY <B> OP_CHECKSIG` redeem
// script for TxLock's 2-of-2 output, sorting the two pubkeys
// lexicographically the way lnd's genMultiSigScript does, so both parties
// derive the identical script independently.
func multiSigScript(a, b *btcec.PublicKey) ([]byte, error) {
	aBytes := a.SerializeCompressed()
	bBytes := b.SerializeCompressed()

	first, second := aBytes, bBytes
	if bytes.Compare(aBytes, bBytes) > 0 {
		first, second = bBytes, aBytes
	}

	builder := txscript.NewScriptBuilder()
	builder.AddData(first)
	builder.AddOp(txscript.OP_CHECKSIGVERIFY)
	builder.AddData(second)
	builder.AddOp(txscript.OP_CHECKSIG)
	return builder.Script()
}

// timelockedMultiSigScript builds a 2-of-2 script that additionally
// requires an OP_CSV relative-timelock to have matured, used for TxCancel's
// output (gating TxRefund/TxPunish's eventual spends).
func timelockedMultiSigScript(a, b *btcec.PublicKey, csv uint32) ([]byte, error) {
	aBytes := a.SerializeCompressed()
	bBytes := b.SerializeCompressed()

	first, second := aBytes, bBytes
	if bytes.Compare(aBytes, bBytes) > 0 {
		first, second = bBytes, aBytes
	}

	builder := txscript.NewScriptBuilder()
	builder.AddInt64(int64(csv))
	builder.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)
	builder.AddOp(txscript.OP_DROP)
	builder.AddData(first)
	builder.AddOp(txscript.OP_CHECKSIGVERIFY)
	builder.AddData(second)
	builder.AddOp(txscript.OP_CHECKSIG)
	return builder.Script()
}

// witnessScriptHash wraps a redeem script in a version-0 P2WSH output
// script, as lnd's witnessScriptHash does.
func witnessScriptHash(redeemScript []byte) ([]byte, error) {
	h := sha256Sum(redeemScript)
	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_0)
	builder.AddData(h[:])
	return builder.Script()
}

// fundingOutput returns the redeem script and P2WSH TxOut for the 2-of-2
// funding output that backs TxLock, mirroring lnd's genFundingPkScript.
func fundingOutput(a, b *btcec.PublicKey, amountSats int64) (redeemScript []byte, out *wire.TxOut, err error) {
	if amountSats <= 0 {
		return nil, nil, fmt.Errorf("funding output amount must be positive, got %d", amountSats)
	}

	redeemScript, err = multiSigScript(a, b)
	if err != nil {
		return nil, nil, err
	}

	pkScript, err := witnessScriptHash(redeemScript)
	if err != nil {
		return nil, nil, err
	}

	return redeemScript, wire.NewTxOut(amountSats, pkScript), nil
}

// spendWitness builds the 3-element witness stack [sig(max-key), sig(min-key),
// script] for spending a 2-of-2 output. Unlike lnd's OP_CHECKMULTISIG
// (which consumes signatures in pubkey order off a CHECKMULTISIG-managed
// stack), this redeem script is `<min-key> OP_CHECKSIGVERIFY <max-key>
// OP_CHECKSIG`: the script pushes min-key and immediately CHECKSIGVERIFYs
// it against the witness item that was on top of the stack (witness[1]),
// then pushes max-key and CHECKSIGs it against the item left underneath
// (witness[0]). So witness[0] must hold the max-key signature and
// witness[1] the min-key signature — the reverse of pubkey order.
func spendWitness(redeemScript []byte, pubA, sigA, pubB, sigB []byte) wire.TxWitness {
	witness := make(wire.TxWitness, 3)

	if bytes.Compare(pubA, pubB) > 0 {
		// A is max-key, B is min-key.
		witness[0] = sigA
		witness[1] = sigB
	} else {
		// B is max-key, A is min-key.
		witness[0] = sigB
		witness[1] = sigA
	}

	witness[2] = redeemScript
	return witness
}
