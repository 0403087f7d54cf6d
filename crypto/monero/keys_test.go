package monero

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSumPrivateViewKeysMatchesSumOfPublics(t *testing.T) {
	a, err := NewRandomPrivateViewKey()
	require.NoError(t, err)
	b, err := NewRandomPrivateViewKey()
	require.NoError(t, err)

	sum := SumPrivateViewKeys(a, b)
	wantPublic := SumPublicKeys(a.Public(), b.Public())

	require.Equal(t, wantPublic.Bytes(), sum.Public().Bytes())
}

func TestNewPrivateSpendKeyFromScalarRoundTrips(t *testing.T) {
	view, err := NewRandomPrivateViewKey()
	require.NoError(t, err)

	spend, err := NewPrivateSpendKeyFromScalar(view.Bytes())
	require.NoError(t, err)

	require.Equal(t, view.Bytes(), spend.Bytes())
}

func TestAddressRoundTrip(t *testing.T) {
	spend, err := NewRandomPrivateViewKey()
	require.NoError(t, err)
	view, err := NewRandomPrivateViewKey()
	require.NoError(t, err)

	addr := NewAddress(Mainnet, spend.Public(), view.Public())

	gotSpend, err := addr.PublicSpendKey()
	require.NoError(t, err)
	require.Equal(t, spend.Public().Bytes(), gotSpend.Bytes())

	gotView, err := addr.PublicViewKey()
	require.NoError(t, err)
	require.Equal(t, view.Public().Bytes(), gotView.Bytes())

	net, err := addr.Network()
	require.NoError(t, err)
	require.Equal(t, Mainnet, net)
}

func TestAddressRejectsCorruptedChecksum(t *testing.T) {
	spend, err := NewRandomPrivateViewKey()
	require.NoError(t, err)
	view, err := NewRandomPrivateViewKey()
	require.NoError(t, err)

	addr := NewAddress(Mainnet, spend.Public(), view.Public())
	corrupted := Address(string(addr[:len(addr)-1]) + "1")

	_, err = corrupted.PublicSpendKey()
	require.Error(t, err)
}
