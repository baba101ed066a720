package backtest

import "math"

// SizeOrder implements equal remaining-slot allocation: the free cash is
// split across the slots still open and the buy quantity is the whole
// number of shares one slot affords at the given price. Later admissions
// within the same day see the cash already spent by earlier ones, so the
// per-slot allocation rebalances as slots fill.
func SizeOrder(cash float64, maxPositions, openPositions int, price float64) float64 {
	if price <= 0 || cash <= 0 {
		return 0
	}
	slots := maxPositions - openPositions
	if slots <= 0 {
		return 0
	}
	return math.Floor(cash / float64(slots) / price)
}
