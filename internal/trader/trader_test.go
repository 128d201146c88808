package trader

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marlin/internal/order"
	"marlin/internal/portfolio"
)

type fakeSubmitter struct {
	submitted []*order.Spec
	err       error
}

func (f *fakeSubmitter) SubmitOrder(_ context.Context, spec *order.Spec) error {
	if f.err != nil {
		return f.err
	}
	f.submitted = append(f.submitted, spec)
	return nil
}

func paperTrader(t *testing.T) *Trader {
	t.Helper()
	trd, err := New(Options{Risk: 0.5, Simulated: true})
	require.NoError(t, err)
	return trd
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{Risk: 0})
	assert.Error(t, err)

	_, err = New(Options{Risk: 1.5, Simulated: true})
	assert.Error(t, err)

	_, err = New(Options{Risk: 0.5})
	assert.Error(t, err, "live mode without a submitter")

	trd, err := New(Options{Risk: 0.5, Submitter: &fakeSubmitter{}})
	require.NoError(t, err)
	assert.Equal(t, 0.5, trd.Risk())
	assert.False(t, trd.Simulated())
}

func TestCreateOrderSimulatedBuyMarketSettles(t *testing.T) {
	trd := paperTrader(t)
	pf := portfolio.New(map[string]float64{"USDT": 1000})

	spec := &order.Spec{Type: order.BuyMarket, Symbol: "BTC/USDT", Quantity: 2, Price: 100}
	created, err := trd.CreateOrder(context.Background(), spec, pf)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	assert.Equal(t, 800.0, pf.Free("USDT"))
	assert.Equal(t, 0.0, pf.Balance("USDT").Used)
	assert.Equal(t, 2.0, pf.Free("BTC"))
}

func TestCreateOrderSimulatedSellMarketSettles(t *testing.T) {
	trd := paperTrader(t)
	pf := portfolio.New(map[string]float64{"BTC": 2})

	spec := &order.Spec{Type: order.SellMarket, Symbol: "BTC/USDT", Quantity: 1.5, Price: 100}
	_, err := trd.CreateOrder(context.Background(), spec, pf)
	require.NoError(t, err)

	assert.Equal(t, 0.5, pf.Free("BTC"))
	assert.Equal(t, 0.0, pf.Balance("BTC").Used)
	assert.Equal(t, 150.0, pf.Free("USDT"))
}

func TestCreateOrderLimitReservesFunds(t *testing.T) {
	trd := paperTrader(t)
	pf := portfolio.New(map[string]float64{"BTC": 2})

	spec := &order.Spec{Type: order.SellLimit, Symbol: "BTC/USDT", Quantity: 1.5, Price: 101}
	_, err := trd.CreateOrder(context.Background(), spec, pf)
	require.NoError(t, err)

	// a resting limit holds the base currency until it fills
	assert.Equal(t, 0.5, pf.Free("BTC"))
	assert.Equal(t, 1.5, pf.Balance("BTC").Used)
	assert.Equal(t, 0.0, pf.Free("USDT"))
}

func TestCreateOrderLinkedStopReservesNothing(t *testing.T) {
	trd := paperTrader(t)
	pf := portfolio.New(map[string]float64{"BTC": 2})

	limit := &order.Spec{Type: order.SellLimit, Symbol: "BTC/USDT", Quantity: 1.5, Price: 101}
	_, err := trd.CreateOrder(context.Background(), limit, pf)
	require.NoError(t, err)

	stop := &order.Spec{Type: order.StopLoss, Symbol: "BTC/USDT", Quantity: 1.5, Price: 95, LinkedTo: limit}
	_, err = trd.CreateOrder(context.Background(), stop, pf)
	require.NoError(t, err)

	// only the limit's reservation is held
	assert.Equal(t, 1.5, pf.Balance("BTC").Used)
	assert.Equal(t, 0.5, pf.Free("BTC"))
}

func TestCreateOrderInsufficientFunds(t *testing.T) {
	trd := paperTrader(t)
	pf := portfolio.New(map[string]float64{"USDT": 100})

	spec := &order.Spec{Type: order.BuyLimit, Symbol: "BTC/USDT", Quantity: 2, Price: 100}
	_, err := trd.CreateOrder(context.Background(), spec, pf)
	require.Error(t, err)
	assert.ErrorIs(t, err, portfolio.ErrInsufficientFunds)

	// balances untouched after the failed reserve
	assert.Equal(t, 100.0, pf.Free("USDT"))
	assert.Equal(t, 0.0, pf.Balance("USDT").Used)
}

func TestCreateOrderLiveSubmitFailureReleasesFunds(t *testing.T) {
	sub := &fakeSubmitter{err: errors.New("exchange rejected")}
	trd, err := New(Options{Risk: 0.5, Submitter: sub})
	require.NoError(t, err)
	pf := portfolio.New(map[string]float64{"USDT": 1000})

	spec := &order.Spec{Type: order.BuyLimit, Symbol: "BTC/USDT", Quantity: 2, Price: 100}
	_, err = trd.CreateOrder(context.Background(), spec, pf)
	require.ErrorContains(t, err, "exchange rejected")

	assert.Equal(t, 1000.0, pf.Free("USDT"))
	assert.Equal(t, 0.0, pf.Balance("USDT").Used)
}

func TestCreateOrderLiveSubmits(t *testing.T) {
	sub := &fakeSubmitter{}
	trd, err := New(Options{Risk: 0.5, Submitter: sub})
	require.NoError(t, err)
	pf := portfolio.New(map[string]float64{"USDT": 1000})

	spec := &order.Spec{Type: order.BuyLimit, Symbol: "BTC/USDT", Quantity: 2, Price: 100}
	_, err = trd.CreateOrder(context.Background(), spec, pf)
	require.NoError(t, err)
	require.Len(t, sub.submitted, 1)

	assert.Equal(t, 800.0, pf.Free("USDT"))
	assert.Equal(t, 200.0, pf.Balance("USDT").Used)
}

func TestCreateOrderRejectsBadSpecs(t *testing.T) {
	trd := paperTrader(t)
	pf := portfolio.New(map[string]float64{"USDT": 1000})

	_, err := trd.CreateOrder(context.Background(), nil, pf)
	assert.Error(t, err)

	_, err = trd.CreateOrder(context.Background(),
		&order.Spec{Type: order.BuyLimit, Symbol: "BTC/USDT", Quantity: 0, Price: 100}, pf)
	assert.Error(t, err)

	_, err = trd.CreateOrder(context.Background(),
		&order.Spec{Type: order.BuyLimit, Symbol: "BTC/USDT", Quantity: 1, Price: 0}, pf)
	assert.Error(t, err)

	_, err = trd.CreateOrder(context.Background(),
		&order.Spec{Type: order.BuyMarket, Symbol: "nonsense", Quantity: 1, Price: 10}, pf)
	assert.Error(t, err)
}
