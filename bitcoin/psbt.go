package bitcoin

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
)

// EncodeTxLockPSBT wraps a funded (and, for the wallet's own inputs, signed)
// TxLock transaction in a PSBT, the wire shape Msg2 of the setup protocol
// hands to the seller during setup.
// prevScripts/prevValues carry each input's previous output, needed by the
// receiver to re-derive the sighash and validate the lock output without an
// extra round trip to a node.
func EncodeTxLockPSBT(tx *wire.MsgTx, prevScripts [][]byte, prevValues []Amount) ([]byte, error) {
	if len(prevScripts) != len(tx.TxIn) || len(prevValues) != len(tx.TxIn) {
		return nil, fmt.Errorf("prevout metadata length mismatch: %d scripts, %d values, %d inputs", len(prevScripts), len(prevValues), len(tx.TxIn))
	}

	sequences := make([]uint32, len(tx.TxIn))
	for i, in := range tx.TxIn {
		sequences[i] = in.Sequence
	}

	outPoints := make([]*wire.OutPoint, len(tx.TxIn))
	for i, in := range tx.TxIn {
		outPoints[i] = &in.PreviousOutPoint
	}

	pkt, err := psbt.New(outPoints, tx.TxOut, tx.Version, tx.LockTime, sequences)
	if err != nil {
		return nil, fmt.Errorf("failed to build tx lock psbt: %w", err)
	}

	for i := range pkt.Inputs {
		pkt.Inputs[i].WitnessUtxo = wire.NewTxOut(int64(prevValues[i]), prevScripts[i])
	}

	// Carry each input's finalized witness (if the buyer's wallet has
	// already signed its own funding inputs) so the seller can recover a
	// fully valid Tx without a second signing round.
	for i, in := range tx.TxIn {
		if len(in.Witness) == 0 {
			continue
		}
		var buf bytes.Buffer
		if err := wire.WriteVarInt(&buf, 0, uint64(len(in.Witness))); err != nil {
			return nil, err
		}
		for _, w := range in.Witness {
			if err := wire.WriteVarBytes(&buf, 0, w); err != nil {
				return nil, err
			}
		}
		pkt.Inputs[i].FinalScriptWitness = buf.Bytes()
	}

	var out bytes.Buffer
	if err := pkt.Serialize(&out); err != nil {
		return nil, fmt.Errorf("failed to serialize tx lock psbt: %w", err)
	}

	return out.Bytes(), nil
}

// DecodeTxLockPSBT recovers the underlying TxLock transaction from a Msg2
// payload, reconstructing witness data for any already-finalized inputs.
func DecodeTxLockPSBT(raw []byte) (*wire.MsgTx, error) {
	pkt, err := psbt.NewFromRawBytes(bytes.NewReader(raw), false)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tx lock psbt: %w", err)
	}

	tx := pkt.UnsignedTx.Copy()
	for i, in := range pkt.Inputs {
		if len(in.FinalScriptWitness) == 0 {
			continue
		}
		witness, err := readTxWitness(in.FinalScriptWitness)
		if err != nil {
			return nil, fmt.Errorf("failed to parse finalized witness for input %d: %w", i, err)
		}
		tx.TxIn[i].Witness = witness
	}

	return tx, nil
}

func readTxWitness(b []byte) (wire.TxWitness, error) {
	r := bytes.NewReader(b)
	count, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, err
	}

	witness := make(wire.TxWitness, count)
	for i := range witness {
		item, err := wire.ReadVarBytes(r, 0, wire.MaxMessagePayload, "witness item")
		if err != nil {
			return nil, err
		}
		witness[i] = item
	}

	return witness, nil
}
