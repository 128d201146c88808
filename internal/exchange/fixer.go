package exchange

import (
	"math"

	"github.com/shopspring/decimal"

	"marlin/internal/pkg/numeric"
)

// Some exchanges report incomplete trading rules (missing min/max bounds or
// digit counts). FixMarketStatus fills the gaps so the compliance checker
// always has something to validate against: first by cross-deriving bounds
// from the ones that are present (cost = amount * price), then by estimating
// from a current price example.
const (
	priceLimitMultiplier = 1000

	// amount bound exponents, calibrated against popular exchanges
	amountMaxExponent       = 6 // when log10(price) >= 0
	amountMaxNegExponent    = 1 // when log10(price) < 0
	amountMinNegAttenuation = 3 // when log10(price) < 0
	amountMinExponent       = 1 // when log10(price) >= 0
)

// FixMarketStatus returns status with missing precision and limit fields
// filled in. priceExample should be a recent traded price for the symbol;
// pass 0 when none is available, in which case only cross-derivation runs.
func FixMarketStatus(status MarketStatus, priceExample float64) MarketStatus {
	status = fixPrecision(status, priceExample)
	status = fixLimits(status, priceExample)
	return status
}

func fixPrecision(status MarketStatus, priceExample float64) MarketStatus {
	if status.PrecisionComplete() || priceExample <= 0 {
		return status
	}
	digits := numeric.LimitOf(float64(priceDigits(priceExample)))
	if !digitsValid(status.Precision.Amount) {
		status.Precision.Amount = digits
	}
	if !digitsValid(status.Precision.Price) {
		status.Precision.Price = digits
	}
	if !digitsValid(status.Precision.Cost) {
		status.Precision.Cost = digits
	}
	return status
}

// priceDigits counts the decimal digits of a price example.
func priceDigits(price float64) int32 {
	exp := decimal.NewFromFloat(price).Exponent()
	if exp >= 0 {
		return 0
	}
	return -exp
}

func fixLimits(status MarketStatus, priceExample float64) MarketStatus {
	if status.LimitsComplete() {
		return status
	}

	limits := status.Limits
	limits = deriveCosts(limits)
	limits = deriveAmounts(limits)
	limits = derivePrices(limits)
	status.Limits = limits

	if !status.LimitsComplete() && priceExample > 0 {
		status.Limits = limitsFromPrice(priceExample)
	}
	if !status.Limits.Cost.Min.Positive() {
		status.Limits.Cost.Min = numeric.LimitOf(0)
	}
	return status
}

func deriveCosts(limits Limits) Limits {
	if !limits.Cost.Max.Positive() && limits.Amount.Max.Positive() && limits.Price.Max.Positive() {
		limits.Cost.Max = numeric.LimitOf(limits.Amount.Max.Or(0) * limits.Price.Max.Or(0))
	}
	if !limits.Cost.Min.Positive() && limits.Amount.Min.Positive() && limits.Price.Min.Positive() {
		limits.Cost.Min = numeric.LimitOf(limits.Amount.Min.Or(0) * limits.Price.Min.Or(0))
	}
	return limits
}

func deriveAmounts(limits Limits) Limits {
	if !limits.Amount.Max.Positive() && limits.Cost.Max.Positive() && limits.Price.Max.Positive() {
		limits.Amount.Max = numeric.LimitOf(limits.Cost.Max.Or(0) / limits.Price.Max.Or(1))
	}
	if !limits.Amount.Min.Positive() && limits.Cost.Min.Positive() && limits.Price.Min.Positive() {
		limits.Amount.Min = numeric.LimitOf(limits.Cost.Min.Or(0) / limits.Price.Min.Or(1))
	}
	return limits
}

func derivePrices(limits Limits) Limits {
	if !limits.Price.Max.Positive() && limits.Cost.Max.Positive() && limits.Amount.Max.Positive() {
		limits.Price.Max = numeric.LimitOf(limits.Cost.Max.Or(0) / limits.Amount.Max.Or(1))
	}
	if !limits.Price.Min.Positive() && limits.Cost.Min.Positive() && limits.Amount.Min.Positive() {
		limits.Price.Min = numeric.LimitOf(limits.Cost.Min.Or(0) / limits.Amount.Min.Or(1))
	}
	return limits
}

func limitsFromPrice(price float64) Limits {
	amountMin, amountMax := amountBounds(price)
	priceMin := price / priceLimitMultiplier
	priceMax := price * priceLimitMultiplier
	return Limits{
		Amount: MinMax{Min: numeric.LimitOf(amountMin), Max: numeric.LimitOf(amountMax)},
		Price:  MinMax{Min: numeric.LimitOf(priceMin), Max: numeric.LimitOf(priceMax)},
		Cost:   MinMax{Min: numeric.LimitOf(priceMin * amountMin), Max: numeric.LimitOf(priceMax * amountMax)},
	}
}

// amountBounds estimates plausible amount bounds from the price's order of
// magnitude: expensive assets trade in small quantities, cheap ones in large.
func amountBounds(price float64) (float64, float64) {
	logPrice := math.Log10(price)
	if logPrice >= 0 {
		return math.Pow(10, amountMinExponent-logPrice), math.Pow(10, amountMaxExponent-logPrice)
	}
	return math.Pow(10, -(logPrice + amountMinNegAttenuation)), math.Pow(10, -logPrice+amountMaxNegExponent)
}
