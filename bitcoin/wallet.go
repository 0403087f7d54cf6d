package bitcoin

import (
	"bytes"
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txauthor"
	"github.com/btcsuite/btcwallet/wallet/txsizes"
)

// Wallet is the external trait a party's Bitcoin wallet must satisfy to
// participate in a swap: fund and sign TxLock, produce a
// change/refund address, and observe chain state for the timelock
// classifiers in timelock.go.
type Wallet interface {
	// NewChangeScript returns a fresh output script the wallet controls,
	// used both for TxLock's change output and as the destination for
	// TxRefund/TxRedeem/TxPunish/TxEarlyRefund.
	NewChangeScript(ctx context.Context) ([]byte, error)

	// SelectInputs returns a set of the wallet's own UTXOs (and their
	// previous output values) totalling at least target, for funding a
	// TxLock output.
	SelectInputs(ctx context.Context, target Amount) (inputs []*wire.TxIn, values []Amount, scripts [][]byte, err error)

	// SignInput produces a signature for the given previous output script
	// and value at the given input index of tx, used both for a wallet's
	// own plain-signed inputs (TxLock's funding inputs) and, via the
	// adaptor package, as the raw ECDSA primitive encsign wraps.
	SignInput(ctx context.Context, tx *wire.MsgTx, index int, prevScript []byte, prevValue Amount) ([]byte, error)

	// BroadcastTx submits tx to the network.
	BroadcastTx(ctx context.Context, tx *wire.MsgTx) (chainhash.Hash, error)

	// BlockHeight returns the current chain tip height, the input to the
	// Stage classifiers in timelock.go.
	BlockHeight(ctx context.Context) (uint32, error)

	// Confirmations returns how many confirmations a previously broadcast
	// transaction has, or 0 if it is unconfirmed or unknown.
	Confirmations(ctx context.Context, hash chainhash.Hash) (uint32, error)

	// ConfirmedHeight returns the block height a previously broadcast
	// transaction confirmed at, used to anchor the T1/T2 timelock
	// classifiers in timelock.go to TxLock's and TxCancel's own
	// confirmation rather than the current tip.
	ConfirmedHeight(ctx context.Context, hash chainhash.Hash) (uint32, error)

	// GetTransaction fetches a transaction's full wire bytes, including any
	// witness, by txid. Used by the cancel/punish/refund sub-machines to
	// pull a signature back out of a transaction the counterparty
	// broadcast first (bitcoin.ExtractCounterpartySignature).
	GetTransaction(ctx context.Context, hash chainhash.Hash) (*wire.MsgTx, error)
}

// FeeRate is expressed in satoshis per kilo-virtual-byte, the unit
// txauthor.NewUnsignedTransaction and txrules expect.
type FeeRate btcutil.Amount

// FundedTxLock is an assembled, unsigned TxLock plus the previous-output
// metadata (script and value) for each of its funding inputs, the
// information both SignFundingInputs and the PSBT hand-off to the seller
// (Msg2) need per input.
type FundedTxLock struct {
	Tx           *wire.MsgTx
	PrevScripts  [][]byte
	PrevValues   []Amount
	LockVout     uint32
}

// BuildFundedTxLock selects inputs from wallet and assembles a fully
// funded, change-included TxLock transaction paying lockOut plus returning
// any excess to a fresh wallet-controlled change output — the coin
// selection and change-output construction follow btcwallet's own
// txauthor.NewUnsignedTransaction, the same coin-selection and
// change-output library lnd depends on, rather than hand-rolling a coin
// selector.
func BuildFundedTxLock(ctx context.Context, w Wallet, lockOut *LockOutput, feeRate FeeRate) (*FundedTxLock, error) {
	target := Amount(lockOut.TxOut.Value)

	inputs, values, scripts, err := w.SelectInputs(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to select inputs for tx lock: %w", err)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("wallet returned no inputs for tx lock")
	}

	fetchInputs := func(btcutil.Amount) (btcutil.Amount, []*wire.TxIn, []btcutil.Amount, [][]byte, error) {
		total := btcutil.Amount(0)
		inputValues := make([]btcutil.Amount, len(values))
		for i, v := range values {
			inputValues[i] = btcutil.Amount(v)
			total += btcutil.Amount(v)
		}
		return total, inputs, inputValues, scripts, nil
	}

	changeScript, err := w.NewChangeScript(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to derive tx lock change script: %w", err)
	}

	changeSource := &txauthor.ChangeSource{
		NewScript: func() ([]byte, error) { return changeScript, nil },
		ScriptSize: txsizes.P2WPKHPkScriptSize,
	}

	authored, err := txauthor.NewUnsignedTransaction(
		[]*wire.TxOut{lockOut.TxOut},
		btcutil.Amount(feeRate),
		fetchInputs,
		changeSource,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble funded tx lock: %w", err)
	}

	lockVout, err := findOutput(authored.Tx, lockOut.TxOut)
	if err != nil {
		return nil, err
	}

	return &FundedTxLock{Tx: authored.Tx, PrevScripts: scripts, PrevValues: values, LockVout: lockVout}, nil
}

// findOutput locates want's position among tx's outputs by script and
// value. txauthor.NewUnsignedTransaction always places the payment outputs
// before any change output, but locating it explicitly rather than assuming
// index 0 keeps this correct if that internal ordering ever changes.
func findOutput(tx *wire.MsgTx, want *wire.TxOut) (uint32, error) {
	for i, out := range tx.TxOut {
		if out.Value == want.Value && bytes.Equal(out.PkScript, want.PkScript) {
			return uint32(i), nil
		}
	}
	return 0, fmt.Errorf("funded tx lock missing its own lock output")
}

// SignFundingInputs signs every input of an assembled TxLock that belongs
// to the wallet (i.e. every input besides the 2-of-2 output itself, which
// TxLock has none of: all of its inputs are plain wallet coins).
func SignFundingInputs(ctx context.Context, w Wallet, tx *wire.MsgTx, prevScripts [][]byte, prevValues []Amount) error {
	if len(prevScripts) != len(tx.TxIn) || len(prevValues) != len(tx.TxIn) {
		return fmt.Errorf("prevout metadata length mismatch: %d scripts, %d values, %d inputs", len(prevScripts), len(prevValues), len(tx.TxIn))
	}

	for i := range tx.TxIn {
		sig, err := w.SignInput(ctx, tx, i, prevScripts[i], prevValues[i])
		if err != nil {
			return fmt.Errorf("failed to sign tx lock input %d: %w", i, err)
		}
		tx.TxIn[i].Witness = wire.TxWitness{sig}
	}

	return nil
}
