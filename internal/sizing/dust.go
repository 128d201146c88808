package sizing

import (
	"marlin/internal/exchange"
	"marlin/internal/pkg/numeric"
)

// dustSafetyFactor leaves headroom over the exchange minimums: a remainder
// only stays in the portfolio when it could still be sold without requiring
// a large market move.
const dustSafetyFactor = 1.4

// mergeDust widens a planned sell up to the whole holding when what would
// remain afterwards is too small to ever sell on its own.
func mergeDust(quantity, price float64, status exchange.MarketStatus, holding float64) float64 {
	remaining := numeric.Truncate(holding-quantity, defaultPriceDigits)
	remainingCost := remaining * price

	limits := status.Limits
	if !limits.Amount.Min.Positive() || !limits.Cost.Min.Positive() {
		limits = exchange.FixMarketStatus(status, price).Limits
	}
	minQuantity := limits.Amount.Min.Or(0)
	minCost := limits.Cost.Min.Or(0)

	if remainingCost < minCost*dustSafetyFactor || remaining < minQuantity*dustSafetyFactor {
		return holding
	}
	return quantity
}
