package sizing

import (
	"math"

	"marlin/internal/exchange"
	"marlin/internal/pkg/numeric"
)

// Adapted is one exchange-compliant (quantity, price) pair produced by
// CheckAndAdapt. Both values are already truncated to the exchange's
// precision; callers must not truncate again.
type Adapted struct {
	Quantity float64
	Price    float64
}

func (a Adapted) Cost() float64 {
	return a.Quantity * a.Price
}

// CheckAndAdapt normalizes a desired (quantity, price) against the exchange's
// trading rules and returns the physical orders to place:
//
//   - quantity and price are truncated to the exchange's digit counts;
//   - below any minimum (cost, amount, price corridor) no order is possible
//     and the result is empty;
//   - above a maximum the order is split into several, cost-driven or
//     quantity-driven depending on which ratio overshoots more;
//   - otherwise the single normalized pair comes back.
//
// An empty result is a normal rejection, not an error.
func CheckAndAdapt(quantity, price float64, status exchange.MarketStatus) []Adapted {
	limits := status.Limits

	minQuantity := limits.Amount.Min.Or(0)
	maxQuantity, hasMaxQuantity := limits.Amount.Max.Get()
	minCost := limits.Cost.Min.Or(0)
	maxCost, hasMaxCost := limits.Cost.Max.Get()
	minPrice := limits.Price.Min.Or(0)
	maxPrice := limits.Price.Max.Or(math.Inf(1))

	amountDigits := int32(status.Precision.Amount.Or(0))
	priceDigits := int32(status.Precision.Price.Or(defaultPriceDigits))

	validQuantity := numeric.Truncate(quantity, amountDigits)
	validPrice := numeric.Truncate(price, priceDigits)
	total := validQuantity * validPrice

	// Hard floor: no partial order is possible below exchange minimums.
	if total < minCost || validQuantity < minQuantity {
		return nil
	}
	if !(minPrice < validPrice && validPrice < maxPrice) {
		return nil
	}

	overCost := hasMaxCost && total > maxCost
	overQuantity := hasMaxQuantity && validQuantity > maxQuantity
	if overCost || overQuantity {
		return splitOrders(total, validQuantity, quantity, validPrice,
			maxCost, hasMaxCost, maxQuantity, hasMaxQuantity, amountDigits)
	}

	return []Adapted{{Quantity: validQuantity, Price: validPrice}}
}

// splitOrders picks the split basis by whichever ratio overshoots its
// maximum more.
func splitOrders(total, validQuantity, quantity, price,
	maxCost float64, hasMaxCost bool, maxQuantity float64, hasMaxQuantity bool,
	amountDigits int32) []Adapted {

	switch {
	case !hasMaxCost:
		return splitByQuantity(validQuantity, maxQuantity, quantity, price, amountDigits)
	case !hasMaxQuantity:
		return splitByCost(total, maxCost, price, amountDigits)
	case total/maxCost > validQuantity/maxQuantity:
		return splitByCost(total, maxCost, price, amountDigits)
	default:
		return splitByQuantity(validQuantity, maxQuantity, quantity, price, amountDigits)
	}
}

// splitByCost emits the remainder as a distinct smaller order, then
// full-sized orders of maxCost each.
func splitByCost(total, maxCost, price float64, amountDigits int32) []Adapted {
	fullOrders := int(total / maxCost)
	restCost := math.Mod(total, maxCost)

	var orders []Adapted
	if restCost > 0 {
		orders = append(orders, Adapted{
			Quantity: numeric.Truncate(restCost/price, amountDigits),
			Price:    price,
		})
	}
	fullQuantity := numeric.Truncate(maxCost/price, amountDigits)
	for i := 0; i < fullOrders; i++ {
		orders = append(orders, Adapted{Quantity: fullQuantity, Price: price})
	}
	return orders
}

// splitByQuantity emits the remainder first, then spreads what is left over
// the full orders. The formula differs from the cost-driven path; the
// asymmetry is historical and kept for behavioral compatibility.
func splitByQuantity(validQuantity, maxQuantity, quantity, price float64, amountDigits int32) []Adapted {
	fullOrders := int(validQuantity / maxQuantity)
	restQuantity := math.Mod(validQuantity, maxQuantity)
	remaining := quantity

	var orders []Adapted
	if restQuantity > 0 {
		remaining -= restQuantity
		orders = append(orders, Adapted{
			Quantity: numeric.Truncate(restQuantity, amountDigits),
			Price:    price,
		})
	}
	perOrder := (remaining + maxQuantity) / float64(fullOrders+1)
	validPerOrder := numeric.Truncate(perOrder, amountDigits)
	for i := 0; i < fullOrders; i++ {
		orders = append(orders, Adapted{Quantity: validPerOrder, Price: price})
	}
	return orders
}
