package sizing

import (
	"math"

	"marlin/internal/pkg/numeric"
)

// RiskModel maps (evaluation note, risk) to percentage factors for order
// prices and quantities. It is pure: no I/O, no state beyond the tuning.
//
// Quantity factors read the evaluation note by absolute value (confidence),
// price factors read it by sign (direction). The two are never mixed.
type RiskModel struct {
	tuning Tuning
}

func NewRiskModel(tuning Tuning) RiskModel {
	return RiskModel{tuning: tuning}
}

func (m RiskModel) Tuning() Tuning {
	return m.tuning
}

// LimitPriceFactor returns the multiplier applied to the reference price for
// a limit order. A positive note is a sell bias and prices above the
// reference; otherwise the order prices below it. Low confidence and low
// risk push the price further from the reference.
func (m RiskModel) LimitPriceFactor(evalNote, risk float64) float64 {
	t := m.tuning
	distance := (1 - math.Abs(evalNote) + 1 - risk) * t.limitAttenuation()
	if evalNote > 0 {
		factor := t.SellLimitMinPercent() + distance
		return numeric.Clamp(t.SellLimitMinPercent(), t.SellLimitMaxPercent(), factor)
	}
	factor := t.BuyLimitMaxPercent - distance
	return numeric.Clamp(t.BuyLimitMinPercent, t.BuyLimitMaxPercent, factor)
}

// StopPriceFactor returns the multiplier for a stop-loss price. Higher risk
// tolerates a deeper stop.
func (m RiskModel) StopPriceFactor(risk float64) float64 {
	t := m.tuning
	factor := t.StopLossMaxPercent - risk*t.stopAttenuation()
	return numeric.Clamp(t.StopLossMinPercent, t.StopLossMaxPercent, factor)
}

// LimitQuantityFraction returns the fraction of the available balance to
// commit to a limit order.
func (m RiskModel) LimitQuantityFraction(evalNote, risk float64) float64 {
	t := m.tuning
	factor := t.QuantityMinPercent + (math.Abs(evalNote)+risk)*t.quantityAttenuation()
	return numeric.Clamp(t.QuantityMinPercent, t.QuantityMaxPercent, factor)
}

// MarketQuantityFraction returns the fraction of the available balance to
// commit to a market order. Buy market orders are additionally throttled;
// the throttle multiplies the clamped factor, deliberately reproducing the
// historical order of operations even though the product can fall below the
// band's lower bound.
func (m RiskModel) MarketQuantityFraction(evalNote, risk float64, isBuy bool) float64 {
	t := m.tuning
	factor := t.QuantityMarketMinPercent + (math.Abs(evalNote)+risk)*t.marketQuantityAttenuation()
	factor = numeric.Clamp(t.QuantityMarketMinPercent, t.QuantityMarketMaxPercent, factor)
	if isBuy {
		factor *= t.BuyMarketAttenuation
	}
	return factor
}
