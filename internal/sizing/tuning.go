// Package sizing converts an evaluation note and a risk setting into
// exchange-compliant orders: the risk attenuation model, the compliance
// checker with order splitting, the sizing engine and its pre-order gate.
package sizing

import "fmt"

// maxEvalRiskSum bounds |evalNote| + risk, used to scale attenuations so a
// maxed-out signal lands exactly on the far edge of a band.
const maxEvalRiskSum = 2

// defaultPriceDigits is used when an exchange omits price precision.
const defaultPriceDigits = 8

// Tuning groups the percentage bands and attenuation constants of the risk
// model. Values are immutable once the model is built; alternate tunings are
// injected through configuration.
type Tuning struct {
	StopLossMinPercent float64 `mapstructure:"stop_loss_min_percent" yaml:"stop_loss_min_percent"`
	StopLossMaxPercent float64 `mapstructure:"stop_loss_max_percent" yaml:"stop_loss_max_percent"`

	BuyLimitMinPercent float64 `mapstructure:"buy_limit_min_percent" yaml:"buy_limit_min_percent"`
	BuyLimitMaxPercent float64 `mapstructure:"buy_limit_max_percent" yaml:"buy_limit_max_percent"`

	QuantityMinPercent float64 `mapstructure:"quantity_min_percent" yaml:"quantity_min_percent"`
	QuantityMaxPercent float64 `mapstructure:"quantity_max_percent" yaml:"quantity_max_percent"`

	QuantityMarketMinPercent float64 `mapstructure:"quantity_market_min_percent" yaml:"quantity_market_min_percent"`
	QuantityMarketMaxPercent float64 `mapstructure:"quantity_market_max_percent" yaml:"quantity_market_max_percent"`

	// BuyMarketAttenuation throttles buy market orders. It is applied to the
	// clamped market fraction, so the final factor can sit below
	// QuantityMarketMinPercent.
	BuyMarketAttenuation float64 `mapstructure:"buy_market_attenuation" yaml:"buy_market_attenuation"`

	// ReferenceTrades is how many of the latest trades feed the reference
	// price average.
	ReferenceTrades int `mapstructure:"reference_trades" yaml:"reference_trades"`
}

// DefaultTuning returns the stock constants.
func DefaultTuning() Tuning {
	return Tuning{
		StopLossMinPercent: 0.95,
		StopLossMaxPercent: 0.99,

		BuyLimitMinPercent: 0.98,
		BuyLimitMaxPercent: 0.995,

		QuantityMinPercent: 0.1,
		QuantityMaxPercent: 0.9,

		QuantityMarketMinPercent: 0.5,
		QuantityMarketMaxPercent: 1,

		BuyMarketAttenuation: 0.2,

		ReferenceTrades: 10,
	}
}

// Sell limit bands mirror the buy bands around 1.
func (t Tuning) SellLimitMinPercent() float64 {
	return 1 + (1 - t.BuyLimitMaxPercent)
}

func (t Tuning) SellLimitMaxPercent() float64 {
	return 1 + (1 - t.BuyLimitMinPercent)
}

func (t Tuning) limitAttenuation() float64 {
	return (t.BuyLimitMaxPercent - t.BuyLimitMinPercent) / maxEvalRiskSum
}

func (t Tuning) quantityAttenuation() float64 {
	return (t.QuantityMaxPercent - t.QuantityMinPercent) / maxEvalRiskSum
}

func (t Tuning) marketQuantityAttenuation() float64 {
	return (t.QuantityMarketMaxPercent - t.QuantityMarketMinPercent) / maxEvalRiskSum
}

func (t Tuning) stopAttenuation() float64 {
	return t.StopLossMaxPercent - t.StopLossMinPercent
}

// Validate rejects tunings whose bands are empty or outside (0, always-sane)
// ranges before they reach the model.
func (t Tuning) Validate() error {
	bands := []struct {
		name     string
		min, max float64
	}{
		{"stop_loss", t.StopLossMinPercent, t.StopLossMaxPercent},
		{"buy_limit", t.BuyLimitMinPercent, t.BuyLimitMaxPercent},
		{"quantity", t.QuantityMinPercent, t.QuantityMaxPercent},
		{"quantity_market", t.QuantityMarketMinPercent, t.QuantityMarketMaxPercent},
	}
	for _, b := range bands {
		if b.min <= 0 || b.max <= 0 {
			return fmt.Errorf("tuning band %s: bounds must be positive", b.name)
		}
		if b.min >= b.max {
			return fmt.Errorf("tuning band %s: min %v >= max %v", b.name, b.min, b.max)
		}
	}
	if t.BuyMarketAttenuation <= 0 || t.BuyMarketAttenuation > 1 {
		return fmt.Errorf("buy market attenuation %v outside (0, 1]", t.BuyMarketAttenuation)
	}
	if t.ReferenceTrades <= 0 {
		return fmt.Errorf("reference trades must be positive, got %d", t.ReferenceTrades)
	}
	return nil
}
