package bitcoin

import (
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wtxmgr"
)

// InsufficientFundsError reports a coin selection that exhausted the
// eligible outputs before reaching its target.
type InsufficientFundsError struct {
	Available Amount
	Needed    Amount
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: %s available, %s needed", e.Available, e.Needed)
}

// byAmount sorts credits by their output value.
type byAmount []wtxmgr.Credit

func (u byAmount) Len() int           { return len(u) }
func (u byAmount) Less(i, j int) bool { return u[i].Amount < u[j].Amount }
func (u byAmount) Swap(i, j int)      { u[i], u[j] = u[j], u[i] }

// SelectCoins picks outputs from eligible, largest first, until their sum
// reaches target. Largest-first keeps the input count (and so the funding
// transaction's weight) low. The input slice is not modified.
func SelectCoins(eligible []wtxmgr.Credit, target Amount) ([]wtxmgr.Credit, error) {
	sorted := make([]wtxmgr.Credit, len(eligible))
	copy(sorted, eligible)
	sort.Sort(sort.Reverse(byAmount(sorted)))

	var selected []wtxmgr.Credit
	total := Amount(0)
	for _, c := range sorted {
		if total >= target {
			break
		}
		selected = append(selected, c)
		total += Amount(c.Amount)
	}
	if total < target {
		return nil, &InsufficientFundsError{Available: total, Needed: target}
	}
	return selected, nil
}

// FundingFromCredits converts selected credits into the parallel
// input/value/script slices Wallet.SelectInputs returns and
// BuildFundedTxLock consumes.
func FundingFromCredits(coins []wtxmgr.Credit) ([]*wire.TxIn, []Amount, [][]byte) {
	inputs := make([]*wire.TxIn, len(coins))
	values := make([]Amount, len(coins))
	scripts := make([][]byte, len(coins))
	for i, c := range coins {
		op := c.OutPoint
		inputs[i] = wire.NewTxIn(&op, nil, nil)
		values[i] = Amount(c.Amount)
		scripts[i] = c.PkScript
	}
	return inputs, values, scripts
}
