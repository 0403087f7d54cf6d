package bitcoin

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"
)

func randPubKey(t *testing.T) *btcec.PublicKey {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return priv.PubKey()
}

func TestMultiSigScriptDeterministicOrdering(t *testing.T) {
	a := randPubKey(t)
	b := randPubKey(t)

	s1, err := multiSigScript(a, b)
	require.NoError(t, err)

	s2, err := multiSigScript(b, a)
	require.NoError(t, err)

	require.Equal(t, s1, s2, "script must not depend on argument order")
}

func TestFundingOutputRejectsNonPositiveAmount(t *testing.T) {
	a := randPubKey(t)
	b := randPubKey(t)

	_, _, err := fundingOutput(a, b, 0)
	require.Error(t, err)
}

func TestNewLockOutput(t *testing.T) {
	a := randPubKey(t)
	b := randPubKey(t)

	out, err := NewLockOutput(a, b, BTCToSats(0.01))
	require.NoError(t, err)
	require.Equal(t, int64(BTCToSats(0.01)), out.TxOut.Value)
	require.NotEmpty(t, out.RedeemScript)
}
