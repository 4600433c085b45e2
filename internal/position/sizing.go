package position

import "math"

// Size returns the fixed-fractional quantity for a trade: the rupee risk
// budget divided by the per-unit risk, rounded down. It is 0 when entry and
// stop coincide, and the caller must skip the trade.
func Size(portfolioValue, riskPct, entry, stop float64) int {
	perUnit := math.Abs(entry - stop)
	if perUnit == 0 || portfolioValue <= 0 || riskPct <= 0 {
		return 0
	}
	budget := portfolioValue * riskPct / 100
	q := int(math.Floor(budget / perUnit))
	// float division can land a hair above the true quotient
	if q > 0 && float64(q)*perUnit > budget {
		q--
	}
	return max(q, 0)
}
