package sizing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marlin/internal/decision"
	"marlin/internal/exchange"
	"marlin/internal/order"
	"marlin/internal/portfolio"
)

type stubExchange struct {
	trades    []exchange.Trade
	status    exchange.MarketStatus
	tradesErr error
	statusErr error
}

func (s *stubExchange) Name() string { return "stub" }

func (s *stubExchange) RecentTrades(context.Context, string) ([]exchange.Trade, error) {
	return s.trades, s.tradesErr
}

func (s *stubExchange) MarketStatus(context.Context, string) (exchange.MarketStatus, error) {
	return s.status, s.statusErr
}

type stubTrader struct {
	risk      float64
	created   []*order.Spec
	failAfter int // fail on the n-th call when > 0
}

func (s *stubTrader) Risk() float64 { return s.risk }

func (s *stubTrader) CreateOrder(_ context.Context, spec *order.Spec, _ *portfolio.Portfolio) (*order.Spec, error) {
	if s.failAfter > 0 && len(s.created)+1 >= s.failAfter {
		return nil, errors.New("exchange refused the order")
	}
	spec.ID = fmt.Sprintf("order-%d", len(s.created)+1)
	spec.CreatedAt = time.Now()
	s.created = append(s.created, spec)
	return spec, nil
}

func tradesAt(price float64, n int) []exchange.Trade {
	trades := make([]exchange.Trade, n)
	for i := range trades {
		trades[i] = exchange.Trade{Price: price, Quantity: 1}
	}
	return trades
}

func openStatus() exchange.MarketStatus {
	return marketStatus(0.001, 1e9, 1, 1e9, 0.01, 1e6, 8, 2)
}

func TestCreateNewOrderVeryLongSingleOrder(t *testing.T) {
	exch := &stubExchange{trades: tradesAt(10, 20), status: openStatus()}
	trd := &stubTrader{risk: 0.5}
	pf := portfolio.New(map[string]float64{"USDT": 1000})
	engine := NewEngine(DefaultTuning())

	specs, err := engine.CreateNewOrder(context.Background(), 0.5, "BTC/USDT",
		exch, trd, pf, decision.StateVeryLong)
	require.NoError(t, err)
	require.Len(t, specs, 1)

	spec := specs[0]
	assert.Equal(t, order.BuyMarket, spec.Type)
	assert.Equal(t, "BTC/USDT", spec.Symbol)
	assert.Equal(t, 10.0, spec.Price)
	// market fraction clamp(0.5, 1, 0.5+(0.5+0.5)*0.25) * 0.2 throttle,
	// applied to the quote balance at the reference price
	expected := 0.75 * 0.2 * (1000.0 / 10.0)
	assert.InDelta(t, expected, spec.Quantity, 1e-6)
	assert.NotEmpty(t, spec.ID)
}

func TestCreateNewOrderVeryShortSellsHolding(t *testing.T) {
	exch := &stubExchange{trades: tradesAt(100, 10), status: openStatus()}
	trd := &stubTrader{risk: 0.5}
	pf := portfolio.New(map[string]float64{"BTC": 2})
	engine := NewEngine(DefaultTuning())

	specs, err := engine.CreateNewOrder(context.Background(), 0.8, "BTC/USDT",
		exch, trd, pf, decision.StateVeryShort)
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, order.SellMarket, specs[0].Type)
	// no buy throttle on sells: clamp(0.5, 1, 0.5+(0.8+0.5)*0.25) = 0.825
	assert.InDelta(t, 0.825*2, specs[0].Quantity, 1e-6)
}

func TestCreateNewOrderShortEmitsLinkedStop(t *testing.T) {
	exch := &stubExchange{trades: tradesAt(10, 10), status: openStatus()}
	trd := &stubTrader{risk: 0.5}
	pf := portfolio.New(map[string]float64{"BTC": 10})
	engine := NewEngine(DefaultTuning())

	specs, err := engine.CreateNewOrder(context.Background(), 0.6, "BTC/USDT",
		exch, trd, pf, decision.StateShort)
	require.NoError(t, err)
	require.Len(t, specs, 2)

	limit, stop := specs[0], specs[1]
	assert.Equal(t, order.SellLimit, limit.Type)
	assert.Equal(t, order.StopLoss, stop.Type)
	assert.Same(t, limit, stop.LinkedTo)
	assert.Equal(t, limit.Quantity, stop.Quantity)

	// limit prices above the reference, stop below it
	assert.Greater(t, limit.Price, 10.0)
	assert.Less(t, stop.Price, 10.0)
	assert.InDelta(t, 10*0.97, stop.Price, 1e-6)

	// the limit order was submitted before its stop
	require.Len(t, trd.created, 2)
	assert.Same(t, limit, trd.created[0])
}

func TestCreateNewOrderLongBuyLimitOnly(t *testing.T) {
	exch := &stubExchange{trades: tradesAt(10, 10), status: openStatus()}
	trd := &stubTrader{risk: 0.5}
	pf := portfolio.New(map[string]float64{"USDT": 500})
	engine := NewEngine(DefaultTuning())

	specs, err := engine.CreateNewOrder(context.Background(), -0.6, "BTC/USDT",
		exch, trd, pf, decision.StateLong)
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, order.BuyLimit, specs[0].Type)
	assert.Less(t, specs[0].Price, 10.0)
	// fraction of the quote balance in base units
	fraction := 0.1 + (0.6+0.5)*0.4
	assert.InDelta(t, fraction*(500.0/10.0), specs[0].Quantity, 1e-2)
}

func TestCreateNewOrderNeutralReturnsEmpty(t *testing.T) {
	// neutral must not even touch market data
	exch := &stubExchange{tradesErr: errors.New("down"), statusErr: errors.New("down")}
	engine := NewEngine(DefaultTuning())

	specs, err := engine.CreateNewOrder(context.Background(), 0, "BTC/USDT",
		exch, &stubTrader{risk: 0.5}, portfolio.New(nil), decision.StateNeutral)
	require.NoError(t, err)
	assert.NotNil(t, specs)
	assert.Empty(t, specs)
}

func TestCreateNewOrderUnknownStateFails(t *testing.T) {
	engine := NewEngine(DefaultTuning())
	_, err := engine.CreateNewOrder(context.Background(), 0, "BTC/USDT",
		&stubExchange{}, &stubTrader{}, portfolio.New(nil), decision.State(42))
	assert.Error(t, err)
}

func TestCreateNewOrderRecoversFromBadMarketData(t *testing.T) {
	exch := &stubExchange{tradesErr: errors.New("connection reset")}
	engine := NewEngine(DefaultTuning())

	specs, err := engine.CreateNewOrder(context.Background(), 0.9, "BTC/USDT",
		exch, &stubTrader{risk: 0.5}, portfolio.New(nil), decision.StateVeryShort)
	assert.NoError(t, err, "market data failures are contained")
	assert.Nil(t, specs, "aborted sizing is nil, not empty")
}

func TestCreateNewOrderEmptyTradesAborts(t *testing.T) {
	exch := &stubExchange{trades: nil, status: openStatus()}
	engine := NewEngine(DefaultTuning())

	specs, err := engine.CreateNewOrder(context.Background(), 0.9, "BTC/USDT",
		exch, &stubTrader{risk: 0.5}, portfolio.New(nil), decision.StateVeryShort)
	assert.NoError(t, err)
	assert.Nil(t, specs)
}

func TestCreateNewOrderComplianceRejectionIsNoOp(t *testing.T) {
	// minimum cost far above what the balance can produce
	status := marketStatus(0.001, 1e9, 1e9, -1, 0.01, 1e6, 8, 2)
	exch := &stubExchange{trades: tradesAt(10, 10), status: status}
	trd := &stubTrader{risk: 0.5}
	pf := portfolio.New(map[string]float64{"USDT": 100})
	engine := NewEngine(DefaultTuning())

	specs, err := engine.CreateNewOrder(context.Background(), 0.5, "BTC/USDT",
		exch, trd, pf, decision.StateVeryLong)
	require.NoError(t, err)
	assert.Empty(t, specs)
	assert.Empty(t, trd.created)
}

func TestCreateNewOrderSubmissionErrorPropagates(t *testing.T) {
	exch := &stubExchange{trades: tradesAt(10, 10), status: openStatus()}
	trd := &stubTrader{risk: 0.5, failAfter: 1}
	pf := portfolio.New(map[string]float64{"USDT": 1000})
	engine := NewEngine(DefaultTuning())

	_, err := engine.CreateNewOrder(context.Background(), 0.5, "BTC/USDT",
		exch, trd, pf, decision.StateVeryLong)
	assert.Error(t, err, "submission failures are surfaced for the caller to retry")
}

func TestCreateNewOrderReturnsPartialOnMidListFailure(t *testing.T) {
	exch := &stubExchange{trades: tradesAt(100, 10), status: openStatus()}
	trd := &stubTrader{risk: 0.5, failAfter: 2}
	pf := portfolio.New(map[string]float64{"BTC": 2})
	engine := NewEngine(DefaultTuning())

	// Short emits a sell limit then its linked stop; the stop fails.
	specs, err := engine.CreateNewOrder(context.Background(), 0.5, "BTC/USDT",
		exch, trd, pf, decision.StateShort)
	require.Error(t, err)
	require.Len(t, specs, 1, "the order that went out is reported alongside the error")
	assert.Equal(t, order.SellLimit, specs[0].Type)
	assert.Equal(t, specs[0].ID, trd.created[0].ID)
}

func TestCreateNewOrderSplitsLargeOrder(t *testing.T) {
	// max cost 100 forces a split of the 150 USDT buy
	status := marketStatus(0.001, -1, 1, 100, 0.01, 1e6, 8, 2)
	exch := &stubExchange{trades: tradesAt(10, 10), status: status}
	trd := &stubTrader{risk: 1}
	pf := portfolio.New(map[string]float64{"BTC": 100})
	engine := NewEngine(DefaultTuning())

	// very short at full risk and note sells the whole 100 BTC holding at 10:
	// total cost 1000 = 10 full orders of max cost
	specs, err := engine.CreateNewOrder(context.Background(), 1, "BTC/USDT",
		exch, trd, pf, decision.StateVeryShort)
	require.NoError(t, err)
	require.Len(t, specs, 10)
	total := 0.0
	for _, spec := range specs {
		assert.Equal(t, order.SellMarket, spec.Type)
		total += spec.Quantity
	}
	assert.InDelta(t, 100, total, 1e-6)
}

func TestReferencePriceAveragesTail(t *testing.T) {
	trades := []exchange.Trade{{Price: 1}, {Price: 1}, {Price: 10}, {Price: 20}}
	price, err := referencePrice(trades, 2)
	require.NoError(t, err)
	assert.Equal(t, 15.0, price)

	price, err = referencePrice(trades[:1], 10)
	require.NoError(t, err)
	assert.Equal(t, 1.0, price)

	_, err = referencePrice(nil, 10)
	assert.ErrorIs(t, err, ErrNoMarketData)
}
