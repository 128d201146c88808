package exchange

import "context"

// Exchange is the narrow market-data surface the sizing core needs. Backends
// (REST clients, simulators) implement it; the core never talks to an
// exchange SDK directly.
type Exchange interface {
	Name() string

	// RecentTrades returns a bounded list of the latest public trades for
	// symbol, oldest first. Implementations decide the window size; callers
	// take the tail.
	RecentTrades(ctx context.Context, symbol string) ([]Trade, error)

	// MarketStatus returns the current trading rules for symbol.
	MarketStatus(ctx context.Context, symbol string) (MarketStatus, error)
}
