package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"marlin/internal/pkg/numeric"
)

func TestFixMarketStatusFillsFromPrice(t *testing.T) {
	fixed := FixMarketStatus(MarketStatus{Symbol: "BTC/USDT"}, 1000.25)

	assert.True(t, fixed.LimitsComplete())
	assert.True(t, fixed.PrecisionComplete())

	assert.Equal(t, 2.0, fixed.Precision.Price.Or(-1))
	assert.Equal(t, 2.0, fixed.Precision.Amount.Or(-1))

	assert.InDelta(t, 1000.25/1000, fixed.Limits.Price.Min.Or(0), 1e-9)
	assert.InDelta(t, 1000.25*1000, fixed.Limits.Price.Max.Or(0), 1e-9)

	// log10(1000.25) is just over 3: amount bounds land near 10^-2 .. 10^3
	assert.InDelta(t, 0.01, fixed.Limits.Amount.Min.Or(0), 0.001)
	assert.InDelta(t, 1000, fixed.Limits.Amount.Max.Or(0), 10)

	assert.InDelta(t, fixed.Limits.Price.Min.Or(0)*fixed.Limits.Amount.Min.Or(0),
		fixed.Limits.Cost.Min.Or(-1), 1e-9)
}

func TestFixMarketStatusSubUnitPrice(t *testing.T) {
	fixed := FixMarketStatus(MarketStatus{Symbol: "DOGE/USDT"}, 0.05)

	assert.True(t, fixed.LimitsComplete())
	// log10(0.05) ~ -1.3: min = 10^-(logP+3), max = 10^(-logP+1)
	assert.InDelta(t, 0.02, fixed.Limits.Amount.Min.Or(0), 0.005)
	assert.InDelta(t, 200, fixed.Limits.Amount.Max.Or(0), 10)
}

func TestFixMarketStatusCrossDerivation(t *testing.T) {
	status := MarketStatus{
		Symbol: "ETH/USDT",
		Limits: Limits{
			Amount: MinMax{Min: numeric.LimitOf(0.01), Max: numeric.LimitOf(9000)},
			Price:  MinMax{Min: numeric.LimitOf(0.5), Max: numeric.LimitOf(100000)},
		},
	}
	fixed := FixMarketStatus(status, 0)

	assert.True(t, fixed.LimitsComplete())
	assert.InDelta(t, 0.005, fixed.Limits.Cost.Min.Or(0), 1e-9)
	assert.InDelta(t, 9000.0*100000, fixed.Limits.Cost.Max.Or(0), 1e-3)
	// reported bounds are untouched
	assert.Equal(t, 0.01, fixed.Limits.Amount.Min.Or(0))
}

func TestFixMarketStatusKeepsCompleteStatus(t *testing.T) {
	status := MarketStatus{
		Symbol: "BTC/USDT",
		Precision: Precision{
			Amount: numeric.LimitOf(8),
			Price:  numeric.LimitOf(2),
			Cost:   numeric.LimitOf(8),
		},
		Limits: Limits{
			Amount: MinMax{Min: numeric.LimitOf(0.001), Max: numeric.LimitOf(1000)},
			Cost:   MinMax{Min: numeric.LimitOf(5), Max: numeric.LimitOf(1e7)},
			Price:  MinMax{Min: numeric.LimitOf(1), Max: numeric.LimitOf(1e6)},
		},
	}
	assert.Equal(t, status, FixMarketStatus(status, 50000))
}

func TestFixMarketStatusMissingCostMinDefaultsToZero(t *testing.T) {
	status := MarketStatus{
		Limits: Limits{
			Amount: MinMax{Min: numeric.LimitOf(0.001), Max: numeric.LimitOf(1000)},
			Price:  MinMax{Max: numeric.LimitOf(1e6)},
		},
	}
	fixed := FixMarketStatus(status, 0)
	v, ok := fixed.Limits.Cost.Min.Get()
	assert.True(t, ok)
	assert.Equal(t, 0.0, v)
}
