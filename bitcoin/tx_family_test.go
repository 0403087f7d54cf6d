package bitcoin

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

func TestValidateLockOutputAcceptsMatchingOutput(t *testing.T) {
	buyer := randPubKey(t)
	seller := randPubKey(t)
	amount := BTCToSats(0.05)

	want, err := NewLockOutput(buyer, seller, amount)
	require.NoError(t, err)

	tx := wireTxWithOutput(want.TxOut.Value, want.TxOut.PkScript)
	require.NoError(t, ValidateLockOutput(tx, 0, want))
}

func TestValidateLockOutputRejectsWrongAmount(t *testing.T) {
	buyer := randPubKey(t)
	seller := randPubKey(t)

	want, err := NewLockOutput(buyer, seller, BTCToSats(0.05))
	require.NoError(t, err)

	tx := wireTxWithOutput(want.TxOut.Value-1, want.TxOut.PkScript)
	require.ErrorIs(t, ValidateLockOutput(tx, 0, want), ErrLockAmountMismatch)
}

func TestValidateLockOutputRejectsWrongScript(t *testing.T) {
	buyer := randPubKey(t)
	seller := randPubKey(t)
	other := randPubKey(t)

	want, err := NewLockOutput(buyer, seller, BTCToSats(0.05))
	require.NoError(t, err)

	wrong, err := NewLockOutput(buyer, other, BTCToSats(0.05))
	require.NoError(t, err)

	tx := wireTxWithOutput(want.TxOut.Value, wrong.TxOut.PkScript)
	require.ErrorIs(t, ValidateLockOutput(tx, 0, want), ErrLockScriptMismatch)
}

func TestBuildTxRedeemAndFinalize(t *testing.T) {
	buyer := randPubKey(t)
	seller := randPubKey(t)
	lockOut, err := NewLockOutput(buyer, seller, BTCToSats(0.02))
	require.NoError(t, err)

	op := Outpoint{Hash: chainhash.Hash{}, Index: 0}
	tx, err := BuildTxRedeem(op, lockOut.RedeemScript, Amount(lockOut.TxOut.Value), 1000, lockOut.TxOut.PkScript)
	require.NoError(t, err)

	_, err = TxRedeemSigHash(tx, lockOut.RedeemScript, Amount(lockOut.TxOut.Value))
	require.NoError(t, err)

	buyerBytes := buyer.SerializeCompressed()
	sellerBytes := seller.SerializeCompressed()
	FinalizeTxRedeem(tx, lockOut.RedeemScript, buyerBytes, []byte{0x01}, sellerBytes, []byte{0x02})

	sig1, sig2, err := ExtractWitnessSignatures(tx)
	require.NoError(t, err)
	require.NotEqual(t, sig1, sig2)
}
