package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marlin/internal/exchange"
	"marlin/internal/order"
	"marlin/internal/pkg/numeric"
	"marlin/internal/portfolio"
	"marlin/internal/sizing"
	"marlin/internal/store/journal"
	"marlin/internal/trader"
)

type stubExchange struct {
	trades []exchange.Trade
	status exchange.MarketStatus
}

func (s *stubExchange) Name() string { return "stub" }

func (s *stubExchange) RecentTrades(context.Context, string) ([]exchange.Trade, error) {
	return s.trades, nil
}

func (s *stubExchange) MarketStatus(context.Context, string) (exchange.MarketStatus, error) {
	return s.status, nil
}

func openMarket(price float64, n int) *stubExchange {
	trades := make([]exchange.Trade, n)
	for i := range trades {
		trades[i] = exchange.Trade{Price: price, Quantity: 1}
	}
	limit := numeric.LimitOf
	return &stubExchange{
		trades: trades,
		status: exchange.MarketStatus{
			Symbol: "BTC/USDT",
			Precision: exchange.Precision{
				Amount: limit(8),
				Price:  limit(2),
			},
			Limits: exchange.Limits{
				Amount: exchange.MinMax{Min: limit(0.001), Max: limit(1e9)},
				Cost:   exchange.MinMax{Min: limit(1), Max: limit(1e9)},
				Price:  exchange.MinMax{Min: limit(0.01), Max: limit(1e6)},
			},
		},
	}
}

func newTestService(t *testing.T, exch exchange.Exchange, balances map[string]float64) (*Service, *portfolio.Portfolio) {
	t.Helper()
	pf := portfolio.New(balances)
	trd, err := trader.New(trader.Options{Risk: 0.5, Simulated: true})
	require.NoError(t, err)
	jnl, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = jnl.Close() })

	svc, err := NewService(ServiceConfig{
		Exchange:    exch,
		Trader:      trd,
		Portfolio:   pf,
		Tuning:      sizing.DefaultTuning(),
		Journal:     jnl,
		LockTimeout: time.Second,
	})
	require.NoError(t, err)
	return svc, pf
}

func TestHandleSignalCreatesOrders(t *testing.T) {
	svc, pf := newTestService(t, openMarket(10, 20), map[string]float64{"USDT": 1000})

	// eval -0.9 at risk 0.5 is deep in the very-long band
	specs, err := svc.HandleSignal(context.Background(), "BTC/USDT", -0.9)
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, order.BuyMarket, specs[0].Type)
	assert.Greater(t, pf.Free("BTC"), 0.0, "simulated market buy settled")

	entries, err := svc.journal.Recent(context.Background(), "BTC/USDT", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, journal.OutcomeCreated, entries[0].Outcome)
	assert.Equal(t, 1, entries[0].OrderCount)
}

func TestHandleSignalUnchangedStateIsNoOp(t *testing.T) {
	svc, _ := newTestService(t, openMarket(10, 20), map[string]float64{"USDT": 1000})

	first, err := svc.HandleSignal(context.Background(), "BTC/USDT", -0.9)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := svc.HandleSignal(context.Background(), "BTC/USDT", -0.95)
	require.NoError(t, err)
	assert.NotNil(t, second)
	assert.Empty(t, second, "same state twice must not double-buy")
}

func TestHandleSignalNeutral(t *testing.T) {
	svc, _ := newTestService(t, openMarket(10, 20), map[string]float64{"USDT": 1000})

	specs, err := svc.HandleSignal(context.Background(), "BTC/USDT", 0.0)
	require.NoError(t, err)
	assert.NotNil(t, specs)
	assert.Empty(t, specs)
}

func TestHandleSignalNoFunds(t *testing.T) {
	svc, _ := newTestService(t, openMarket(10, 20), map[string]float64{})

	specs, err := svc.HandleSignal(context.Background(), "BTC/USDT", -0.9)
	require.NoError(t, err)
	assert.Empty(t, specs)

	entries, err := svc.journal.Recent(context.Background(), "BTC/USDT", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, journal.OutcomeNoFunds, entries[0].Outcome)
}

type flakySubmitter struct{ calls int }

func (f *flakySubmitter) SubmitOrder(context.Context, *order.Spec) error {
	f.calls++
	if f.calls >= 2 {
		return errors.New("exchange rejected the order")
	}
	return nil
}

func TestHandleSignalJournalsPartialSubmission(t *testing.T) {
	ctx := context.Background()
	pf := portfolio.New(map[string]float64{"BTC": 2})
	trd, err := trader.New(trader.Options{Risk: 0.5, Submitter: &flakySubmitter{}})
	require.NoError(t, err)
	jnl, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = jnl.Close() })

	svc, err := NewService(ServiceConfig{
		Exchange:    openMarket(100, 20),
		Trader:      trd,
		Portfolio:   pf,
		Tuning:      sizing.DefaultTuning(),
		Journal:     jnl,
		LockTimeout: time.Second,
	})
	require.NoError(t, err)

	// Short emits a sell limit then its linked stop; the stop's submission
	// fails, but the limit already went out.
	specs, err := svc.HandleSignal(ctx, "BTC/USDT", 0.5)
	require.Error(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, order.SellLimit, specs[0].Type)

	entries, err := jnl.Recent(ctx, "BTC/USDT", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, journal.OutcomeError, entries[0].Outcome)
	assert.Equal(t, 1, entries[0].OrderCount, "the journal counts what was actually submitted")
}

func TestHandleSignalStateTransitions(t *testing.T) {
	svc, pf := newTestService(t, openMarket(10, 20), map[string]float64{"USDT": 1000})
	ctx := context.Background()

	// buy in, then a sell signal flips the state and sells the holding
	buys, err := svc.HandleSignal(ctx, "BTC/USDT", -0.9)
	require.NoError(t, err)
	require.Len(t, buys, 1)
	held := pf.Free("BTC")
	require.Greater(t, held, 0.0)

	sells, err := svc.HandleSignal(ctx, "BTC/USDT", 0.9)
	require.NoError(t, err)
	require.Len(t, sells, 1)
	assert.Equal(t, order.SellMarket, sells[0].Type)
	assert.Less(t, pf.Free("BTC"), held)
}

func TestUpdateTuningRejectsInvalid(t *testing.T) {
	svc, _ := newTestService(t, openMarket(10, 20), map[string]float64{"USDT": 1000})

	bad := sizing.DefaultTuning()
	bad.StopLossMinPercent = 0.999
	assert.Error(t, svc.UpdateTuning(bad))

	good := sizing.DefaultTuning()
	good.QuantityMaxPercent = 0.8
	assert.NoError(t, svc.UpdateTuning(good))
}
