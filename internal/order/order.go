// Package order defines the order specification the sizing engine emits and
// the trader consumes.
package order

import "time"

// Type enumerates order kinds. StopLossLimit and the TakeProfit variants are
// carried for completeness; the sizing engine currently emits market, limit
// and plain stop-loss orders.
type Type int

const (
	TypeUnknown Type = iota
	BuyMarket
	BuyLimit
	SellMarket
	SellLimit
	StopLoss
	StopLossLimit
	TakeProfit
	TakeProfitLimit
)

var typeNames = map[Type]string{
	TypeUnknown:     "unknown",
	BuyMarket:       "buy_market",
	BuyLimit:        "buy_limit",
	SellMarket:      "sell_market",
	SellLimit:       "sell_limit",
	StopLoss:        "stop_loss",
	StopLossLimit:   "stop_loss_limit",
	TakeProfit:      "take_profit",
	TakeProfitLimit: "take_profit_limit",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// IsSell reports whether the order reduces the base currency holding.
func (t Type) IsSell() bool {
	switch t {
	case SellMarket, SellLimit, StopLoss, StopLossLimit:
		return true
	}
	return false
}

func (t Type) IsBuy() bool {
	return t == BuyMarket || t == BuyLimit
}

func (t Type) IsMarket() bool {
	return t == BuyMarket || t == SellMarket
}

// Spec is one priced and sized order. Specs are created inside a single
// sizing call and handed to the trader; the engine keeps no reference
// afterwards.
type Spec struct {
	ID       string
	Type     Type
	Symbol   string
	Quantity float64
	Price    float64

	// LinkedTo references a sibling spec created in the same sizing call,
	// e.g. a stop-loss bound to its limit order. Never cross-call, never
	// cyclic.
	LinkedTo *Spec

	CreatedAt time.Time
}

// Cost returns the order's total in quote currency.
func (s *Spec) Cost() float64 {
	return s.Quantity * s.Price
}
