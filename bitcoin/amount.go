package bitcoin

import "fmt"

// Amount is a quantity of bitcoin denominated in satoshis, the unit every
// function in this package operates on: a dedicated integer type per
// asset rather than a bare int64 passed around.
type Amount int64

const satsPerBTC = 1_0000_0000

// BTCToSats converts a floating-point BTC amount into satoshis.
func BTCToSats(btc float64) Amount {
	return Amount(btc * satsPerBTC)
}

// AsBTC returns the amount as floating-point BTC.
func (a Amount) AsBTC() float64 {
	return float64(a) / satsPerBTC
}

func (a Amount) String() string {
	return fmt.Sprintf("%d sats", int64(a))
}
