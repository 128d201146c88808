// Package exchange defines the abstraction the sizing core consumes for
// market data: recent trades for a reference price and per-symbol trading
// rules (precision and min/max limits).
package exchange

import (
	"time"

	"marlin/internal/pkg/numeric"
)

// Trade is a single public trade as reported by an exchange.
type Trade struct {
	Price    float64
	Quantity float64
	Time     time.Time
}

// MinMax is an optional pair of bounds. Either side may be absent.
type MinMax struct {
	Min numeric.Limit
	Max numeric.Limit
}

// Limits groups the per-symbol order bounds an exchange enforces.
type Limits struct {
	Amount MinMax // base currency quantity
	Cost   MinMax // quantity * price, in quote currency
	Price  MinMax
}

// Precision holds decimal digit counts. Zero is a valid count (integral
// quantities only), which is why these are optional rather than ints.
type Precision struct {
	Amount numeric.Limit
	Price  numeric.Limit
	Cost   numeric.Limit
}

// MarketStatus is the exchange-reported trading rule set for one symbol.
// It is fetched fresh per sizing call; exchanges may change it at any time.
type MarketStatus struct {
	Symbol    string
	Precision Precision
	Limits    Limits
}

// LimitsComplete reports whether every min/max bound is present and positive.
func (m MarketStatus) LimitsComplete() bool {
	return minMaxValid(m.Limits.Amount) && minMaxValid(m.Limits.Cost) && minMaxValid(m.Limits.Price)
}

// PrecisionComplete reports whether all digit counts are present and
// non-negative.
func (m MarketStatus) PrecisionComplete() bool {
	return digitsValid(m.Precision.Amount) && digitsValid(m.Precision.Price) && digitsValid(m.Precision.Cost)
}

// HasMinimums reports whether the status carries the minimum bounds the
// compliance check needs: a positive minimum amount plus at least one of a
// minimum cost or minimum price. Absent maximums are fine - they just mean
// no splitting.
func (m MarketStatus) HasMinimums() bool {
	return m.Limits.Amount.Min.Positive() &&
		(m.Limits.Cost.Min.Positive() || m.Limits.Price.Min.Positive())
}

func minMaxValid(mm MinMax) bool {
	return mm.Min.Positive() && mm.Max.Positive()
}

func digitsValid(l numeric.Limit) bool {
	v, ok := l.Get()
	return ok && v >= 0
}
