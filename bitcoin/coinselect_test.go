package bitcoin

import (
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wtxmgr"
	"github.com/stretchr/testify/require"
)

func credit(t *testing.T, seed byte, value Amount) wtxmgr.Credit {
	t.Helper()

	var hash chainhash.Hash
	hash[0] = seed

	script := make([]byte, 22)
	script[0] = 0x00
	script[1] = 0x14
	script[21] = seed

	return wtxmgr.Credit{
		OutPoint: wire.OutPoint{Hash: hash, Index: uint32(seed)},
		Amount:   btcutil.Amount(value),
		PkScript: script,
	}
}

func TestSelectCoinsLargestFirst(t *testing.T) {
	eligible := []wtxmgr.Credit{
		credit(t, 1, 10_000),
		credit(t, 2, 500_000),
		credit(t, 3, 50_000),
	}

	selected, err := SelectCoins(eligible, 400_000)
	require.NoError(t, err)
	require.Len(t, selected, 1)
	require.Equal(t, btcutil.Amount(500_000), selected[0].Amount)
}

func TestSelectCoinsAccumulatesUntilTarget(t *testing.T) {
	eligible := []wtxmgr.Credit{
		credit(t, 1, 300_000),
		credit(t, 2, 200_000),
		credit(t, 3, 100_000),
	}

	selected, err := SelectCoins(eligible, 450_000)
	require.NoError(t, err)
	require.Len(t, selected, 2)
}

func TestSelectCoinsInsufficientFunds(t *testing.T) {
	eligible := []wtxmgr.Credit{
		credit(t, 1, 100_000),
		credit(t, 2, 50_000),
	}

	_, err := SelectCoins(eligible, 200_000)
	require.Error(t, err)

	var insufficient *InsufficientFundsError
	require.True(t, errors.As(err, &insufficient))
	require.Equal(t, Amount(150_000), insufficient.Available)
	require.Equal(t, Amount(200_000), insufficient.Needed)
}

func TestFundingFromCredits(t *testing.T) {
	coins := []wtxmgr.Credit{
		credit(t, 1, 100_000),
		credit(t, 2, 50_000),
	}

	inputs, values, scripts := FundingFromCredits(coins)
	require.Len(t, inputs, 2)
	require.Equal(t, coins[0].OutPoint, inputs[0].PreviousOutPoint)
	require.Equal(t, []Amount{100_000, 50_000}, values)
	require.Equal(t, coins[1].PkScript, scripts[1])
}
