package sizing

import (
	"context"
	"fmt"

	"marlin/internal/decision"
	"marlin/internal/exchange"
	"marlin/internal/pkg/symbol"
	"marlin/internal/portfolio"
)

// CanCreateOrder is the cheap precondition checked before any sizing work:
// does the portfolio hold enough of the relevant currency for this state to
// possibly produce an order. It reads balances without the scoped lock; the
// caller locks only around the actual read-size-submit sequence.
func CanCreateOrder(ctx context.Context, sym string, exch exchange.Exchange,
	state decision.State, pf *portfolio.Portfolio) (bool, error) {

	currency, market := symbol.Split(sym)
	if currency == "" || market == "" {
		return false, fmt.Errorf("unparseable symbol %q", sym)
	}

	status, err := exch.MarketStatus(ctx, sym)
	if err != nil {
		return false, fmt.Errorf("market status for %s: %w", sym, err)
	}
	minAmount := status.Limits.Amount.Min.Or(0)
	minCost := status.Limits.Cost.Min.Or(0)

	switch state {
	case decision.StateVeryShort, decision.StateShort:
		// selling needs the base currency
		return pf.Free(currency) > minAmount, nil
	case decision.StateLong, decision.StateVeryLong:
		// buying needs the quote currency
		return pf.Free(market) > minCost, nil
	default:
		return false, nil
	}
}
