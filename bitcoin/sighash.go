package bitcoin

import (
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// sigHash computes the BIP-143 witness sighash for spending a P2WSH input
// at index 0 of tx with the given redeem script and prevout amount, the
// digest both encsign and the plain ECDSA signatures in this package sign
// over.
func sigHash(tx *wire.MsgTx, redeemScript []byte, amount int64) ([32]byte, error) {
	prevFetcher := txscript.NewCannedPrevOutputFetcher(nil, amount)
	sigHashes := txscript.NewTxSigHashes(tx, prevFetcher)

	h, err := txscript.CalcWitnessSigHash(redeemScript, sigHashes, txscript.SigHashAll, tx, 0, amount)
	if err != nil {
		return [32]byte{}, err
	}

	var out [32]byte
	copy(out[:], h)
	return out, nil
}
