package bitcoin

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/wire"

	secp "github.com/noot/xmrbtc-swap/crypto/secp256k1"
)

// Watching a counterparty's broadcast spend of a 2-of-2 output and pulling
// a signature back out of its witness is how the adaptor-signature leak is
// actually observed on-chain: the buyer tries each of TxRedeem's two
// witness signatures against its own TxLock key and the held sighash, and
// whichever one verifies is the decrypted form of the buyer's encrypted
// signature — the same extraction runs symmetrically on TxRefund, where the
// seller matches against its own TxLock key.

var (
	// ErrEmptyWitnessStack is returned when the transaction's sole relevant
	// input carries no witness data at all.
	ErrEmptyWitnessStack = errors.New("bitcoin: empty witness stack")
	// ErrNoInputs is returned when the transaction has no inputs to inspect.
	ErrNoInputs = errors.New("bitcoin: transaction has no inputs")
	// ErrTooManyInputs is returned when the transaction has more than the
	// single input every member of the lock family is expected to have.
	ErrTooManyInputs = errors.New("bitcoin: transaction has more than one input")
	// ErrNotThreeWitnesses is returned when the witness stack's element
	// count does not match the [sigA, sigB, redeemScript] shape spendWitness
	// produces.
	ErrNotThreeWitnesses = errors.New("bitcoin: witness stack does not have exactly three elements")
	// ErrSignatureUnrecognised is returned when neither witness signature
	// verifies against the given public key and the expected digest,
	// meaning the transaction was not actually signed under the expected
	// redeem script.
	ErrSignatureUnrecognised = errors.New("bitcoin: neither witness signature verifies under the counterparty's key")
)

// ExtractWitnessSignatures returns the two signatures carried by tx's sole
// input's witness, erroring per the taxonomy above if the witness does not
// have the exact three-element [sig, sig, script] shape spendWitness
// produces.
func ExtractWitnessSignatures(tx *wire.MsgTx) (sig1, sig2 []byte, err error) {
	if len(tx.TxIn) == 0 {
		return nil, nil, ErrNoInputs
	}
	if len(tx.TxIn) > 1 {
		return nil, nil, ErrTooManyInputs
	}

	witness := tx.TxIn[0].Witness
	if len(witness) == 0 {
		return nil, nil, ErrEmptyWitnessStack
	}
	if len(witness) != 3 {
		return nil, nil, ErrNotThreeWitnesses
	}

	return witness[0], witness[1], nil
}

// ExtractCounterpartySignature tries each of a published spend's two
// witness signatures against counterpartyPub and digest, returning
// whichever one verifies. The swap's recovery paths pass their own TxLock
// key as counterpartyPub, to read back the signature the counterparty
// decrypted from their encrypted signature.
func ExtractCounterpartySignature(tx *wire.MsgTx, digest [32]byte, counterpartyPub *secp.PublicKey) ([]byte, error) {
	sig1, sig2, err := ExtractWitnessSignatures(tx)
	if err != nil {
		return nil, err
	}

	for _, candidate := range [][]byte{sig1, sig2} {
		sig, err := secp.NewSignatureFromCompact(candidate)
		if err != nil {
			continue
		}
		if counterpartyPub.Verify(digest, sig) == nil {
			return candidate, nil
		}
	}

	return nil, fmt.Errorf("%w: tx %s", ErrSignatureUnrecognised, tx.TxHash())
}
