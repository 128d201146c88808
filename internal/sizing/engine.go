package sizing

import (
	"context"
	"errors"
	"fmt"

	"marlin/internal/decision"
	"marlin/internal/exchange"
	"marlin/internal/logger"
	"marlin/internal/order"
	"marlin/internal/pkg/numeric"
	"marlin/internal/pkg/symbol"
	"marlin/internal/portfolio"
)

// ErrNoMarketData marks sizing aborts caused by unusable market data, e.g.
// an empty recent-trades list.
var ErrNoMarketData = errors.New("no usable market data")

// Trader submits orders and owns the per-session risk setting. The sizing
// engine hands every emitted spec to it, in order; for a linked stop-loss the
// parent limit order is always submitted first.
type Trader interface {
	Risk() float64
	CreateOrder(ctx context.Context, spec *order.Spec, pf *portfolio.Portfolio) (*order.Spec, error)
}

// Engine orchestrates one sizing call: reference price from recent trades,
// balances, market status, state-selected branch, risk model, compliance
// check, and submission through the trader. It keeps no state between calls.
type Engine struct {
	model    RiskModel
	handlers map[decision.State]branchFunc
}

type branchFunc func(ctx context.Context, evalNote float64, pre preOrderData, trd Trader, pf *portfolio.Portfolio) ([]*order.Spec, error)

func NewEngine(tuning Tuning) *Engine {
	e := &Engine{model: NewRiskModel(tuning)}
	e.handlers = map[decision.State]branchFunc{
		decision.StateVeryShort: e.sellMarket,
		decision.StateShort:     e.sellLimitWithStop,
		decision.StateNeutral:   nil, // resolved before any market data is fetched
		decision.StateLong:      e.buyLimit,
		decision.StateVeryLong:  e.buyMarket,
	}
	return e
}

func (e *Engine) Model() RiskModel {
	return e.model
}

// preOrderData is everything a branch needs, gathered up front.
type preOrderData struct {
	symbol         string
	currency       string // base, the currency being traded
	market         string // quote, the currency it is priced in
	holding        float64
	marketHolding  float64
	marketQuantity float64 // marketHolding expressed in base units at the reference price
	price          float64 // reference price
	status         exchange.MarketStatus
}

// CreateNewOrder sizes and submits orders for one signal. Returns:
//
//   - (nil, nil) when sizing aborted on bad market data (logged, recovered);
//   - (empty, nil) for Neutral: deliberately no action;
//   - (specs, nil) on success, one entry per submitted order;
//   - (nil, err) for an unknown state;
//   - (partial, err) for a submission failure. Submission errors are not
//     swallowed: orders already submitted stay submitted, are returned
//     alongside the error, and the caller decides whether to retry.
func (e *Engine) CreateNewOrder(ctx context.Context, evalNote float64, sym string,
	exch exchange.Exchange, trd Trader, pf *portfolio.Portfolio, state decision.State) ([]*order.Spec, error) {

	handler, known := e.handlers[state]
	if !known {
		return nil, fmt.Errorf("unknown trading state %d for %s", state, sym)
	}
	if state == decision.StateNeutral {
		return []*order.Spec{}, nil
	}

	pre, err := e.preOrder(ctx, exch, sym, pf)
	if err != nil {
		logger.Errorf("sizing aborted for %s (state %s): %v", sym, state, err)
		return nil, nil
	}

	specs, err := handler(ctx, evalNote, pre, trd, pf)
	if err != nil {
		return specs, fmt.Errorf("submitting orders for %s (state %s): %w", sym, state, err)
	}
	return specs, nil
}

// preOrder gathers the reference price, balances and market status.
func (e *Engine) preOrder(ctx context.Context, exch exchange.Exchange, sym string, pf *portfolio.Portfolio) (preOrderData, error) {
	trades, err := exch.RecentTrades(ctx, sym)
	if err != nil {
		return preOrderData{}, fmt.Errorf("recent trades: %w", err)
	}
	price, err := referencePrice(trades, e.model.Tuning().ReferenceTrades)
	if err != nil {
		return preOrderData{}, err
	}

	currency, market := symbol.Split(sym)
	if currency == "" || market == "" {
		return preOrderData{}, fmt.Errorf("%w: unparseable symbol %q", ErrNoMarketData, sym)
	}

	status, err := exch.MarketStatus(ctx, sym)
	if err != nil {
		return preOrderData{}, fmt.Errorf("market status: %w", err)
	}
	if !status.HasMinimums() {
		status = exchange.FixMarketStatus(status, price)
	}

	marketHolding := pf.Free(market)
	return preOrderData{
		symbol:         sym,
		currency:       currency,
		market:         market,
		holding:        pf.Free(currency),
		marketHolding:  marketHolding,
		marketQuantity: marketHolding / price,
		price:          price,
		status:         status,
	}, nil
}

// referencePrice averages the tail-most n trades.
func referencePrice(trades []exchange.Trade, n int) (float64, error) {
	if len(trades) == 0 {
		return 0, fmt.Errorf("%w: empty recent trades", ErrNoMarketData)
	}
	if len(trades) > n {
		trades = trades[len(trades)-n:]
	}
	sum := 0.0
	for _, t := range trades {
		sum += t.Price
	}
	return sum / float64(len(trades)), nil
}

// sellMarket handles VeryShort: dump a market-fraction of the holding at the
// reference price.
func (e *Engine) sellMarket(ctx context.Context, evalNote float64, pre preOrderData, trd Trader, pf *portfolio.Portfolio) ([]*order.Spec, error) {
	quantity := e.model.MarketQuantityFraction(evalNote, trd.Risk(), false) * pre.holding
	quantity = mergeDust(quantity, pre.price, pre.status, pre.holding)

	var specs []*order.Spec
	for _, adapted := range CheckAndAdapt(quantity, pre.price, pre.status) {
		if err := ctx.Err(); err != nil {
			return specs, err
		}
		created, err := trd.CreateOrder(ctx, &order.Spec{
			Type:     order.SellMarket,
			Symbol:   pre.symbol,
			Quantity: adapted.Quantity,
			Price:    adapted.Price,
		}, pf)
		if err != nil {
			return specs, err
		}
		specs = append(specs, created)
	}
	return specs, nil
}

// sellLimitWithStop handles Short: a sell limit above the reference plus a
// linked stop-loss below it for each compliant split.
func (e *Engine) sellLimitWithStop(ctx context.Context, evalNote float64, pre preOrderData, trd Trader, pf *portfolio.Portfolio) ([]*order.Spec, error) {
	risk := trd.Risk()
	quantity := e.model.LimitQuantityFraction(evalNote, risk) * pre.holding
	quantity = mergeDust(quantity, pre.price, pre.status, pre.holding)

	priceDigits := int32(pre.status.Precision.Price.Or(defaultPriceDigits))
	limitPrice := numeric.Truncate(pre.price*e.model.LimitPriceFactor(evalNote, risk), priceDigits)
	stopPrice := numeric.Truncate(pre.price*e.model.StopPriceFactor(risk), priceDigits)

	var specs []*order.Spec
	for _, adapted := range CheckAndAdapt(quantity, limitPrice, pre.status) {
		if err := ctx.Err(); err != nil {
			return specs, err
		}
		limit, err := trd.CreateOrder(ctx, &order.Spec{
			Type:     order.SellLimit,
			Symbol:   pre.symbol,
			Quantity: adapted.Quantity,
			Price:    adapted.Price,
		}, pf)
		if err != nil {
			return specs, err
		}
		specs = append(specs, limit)

		stop, err := trd.CreateOrder(ctx, &order.Spec{
			Type:     order.StopLoss,
			Symbol:   pre.symbol,
			Quantity: adapted.Quantity,
			Price:    stopPrice,
			LinkedTo: limit,
		}, pf)
		if err != nil {
			return specs, err
		}
		specs = append(specs, stop)
	}
	return specs, nil
}

// buyLimit handles Long: a buy limit below the reference, sized from the
// quote balance. No stop-loss leg.
func (e *Engine) buyLimit(ctx context.Context, evalNote float64, pre preOrderData, trd Trader, pf *portfolio.Portfolio) ([]*order.Spec, error) {
	risk := trd.Risk()
	quantity := e.model.LimitQuantityFraction(evalNote, risk) * pre.marketQuantity

	priceDigits := int32(pre.status.Precision.Price.Or(defaultPriceDigits))
	limitPrice := numeric.Truncate(pre.price*e.model.LimitPriceFactor(evalNote, risk), priceDigits)

	var specs []*order.Spec
	for _, adapted := range CheckAndAdapt(quantity, limitPrice, pre.status) {
		if err := ctx.Err(); err != nil {
			return specs, err
		}
		created, err := trd.CreateOrder(ctx, &order.Spec{
			Type:     order.BuyLimit,
			Symbol:   pre.symbol,
			Quantity: adapted.Quantity,
			Price:    adapted.Price,
		}, pf)
		if err != nil {
			return specs, err
		}
		specs = append(specs, created)
	}
	return specs, nil
}

// buyMarket handles VeryLong: a throttled market buy sized from the quote
// balance.
func (e *Engine) buyMarket(ctx context.Context, evalNote float64, pre preOrderData, trd Trader, pf *portfolio.Portfolio) ([]*order.Spec, error) {
	quantity := e.model.MarketQuantityFraction(evalNote, trd.Risk(), true) * pre.marketQuantity

	var specs []*order.Spec
	for _, adapted := range CheckAndAdapt(quantity, pre.price, pre.status) {
		if err := ctx.Err(); err != nil {
			return specs, err
		}
		created, err := trd.CreateOrder(ctx, &order.Spec{
			Type:     order.BuyMarket,
			Symbol:   pre.symbol,
			Quantity: adapted.Quantity,
			Price:    adapted.Price,
		}, pf)
		if err != nil {
			return specs, err
		}
		specs = append(specs, created)
	}
	return specs, nil
}
