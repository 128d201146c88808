// Package binance implements the exchange gateway on the go-binance spot SDK.
package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	binancesdk "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"marlin/internal/exchange"
	"marlin/internal/order"
	"marlin/internal/pkg/maputil"
	"marlin/internal/pkg/numeric"
	symbolpkg "marlin/internal/pkg/symbol"
	"marlin/internal/trader"
)

const recentTradesLimit = 100

type Source struct {
	cfg    Config
	client *binancesdk.Client
}

var (
	_ exchange.Exchange = (*Source)(nil)
	_ trader.Submitter  = (*Source)(nil)
)

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	client := binancesdk.NewClient(final.APIKey, final.APISecret)
	client.BaseURL = final.RESTBaseURL
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.ProxyEnabled && final.RESTProxyURL != "" {
		proxyURL, err := url.Parse(final.RESTProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REST proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	client.HTTPClient = httpClient
	return &Source{cfg: final, client: client}, nil
}

func (s *Source) Name() string { return "binance" }

// RecentTrades returns the latest public trades, oldest first.
func (s *Source) RecentTrades(ctx context.Context, sym string) ([]exchange.Trade, error) {
	cleanSymbol := symbolpkg.Binance.ToExchange(sym)
	if cleanSymbol == "" {
		return nil, fmt.Errorf("invalid symbol: %s", sym)
	}
	raw, err := s.client.NewRecentTradesService().
		Symbol(cleanSymbol).
		Limit(recentTradesLimit).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]exchange.Trade, 0, len(raw))
	for _, t := range raw {
		if t == nil {
			continue
		}
		out = append(out, exchange.Trade{
			Price:    parseFloat(t.Price),
			Quantity: parseFloat(t.Quantity),
			Time:     time.UnixMilli(t.Time),
		})
	}
	return out, nil
}

// MarketStatus fetches the symbol's trading rules from exchange info. The
// raw filter payloads are loosely typed, absent fields stay absent rather
// than turning into zeros.
func (s *Source) MarketStatus(ctx context.Context, sym string) (exchange.MarketStatus, error) {
	cleanSymbol := symbolpkg.Binance.ToExchange(sym)
	if cleanSymbol == "" {
		return exchange.MarketStatus{}, fmt.Errorf("invalid symbol: %s", sym)
	}
	info, err := s.client.NewExchangeInfoService().Symbols(cleanSymbol).Do(ctx)
	if err != nil {
		return exchange.MarketStatus{}, err
	}
	for _, entry := range info.Symbols {
		if !strings.EqualFold(entry.Symbol, cleanSymbol) {
			continue
		}
		status := exchange.MarketStatus{Symbol: symbolpkg.Normalize(sym)}
		for _, filter := range entry.Filters {
			applyFilter(&status, filter)
		}
		return status, nil
	}
	return exchange.MarketStatus{}, fmt.Errorf("symbol %s not found in exchange info", sym)
}

func applyFilter(status *exchange.MarketStatus, filter map[string]any) {
	switch maputil.String(filter, "filterType") {
	case "LOT_SIZE":
		status.Limits.Amount = minMax(filter, "minQty", "maxQty")
		if maputil.HasFloat(filter, "stepSize") {
			status.Precision.Amount = numeric.LimitOf(float64(stepDigits(maputil.Float(filter, "stepSize"))))
		}
	case "PRICE_FILTER":
		status.Limits.Price = minMax(filter, "minPrice", "maxPrice")
		if maputil.HasFloat(filter, "tickSize") {
			status.Precision.Price = numeric.LimitOf(float64(stepDigits(maputil.Float(filter, "tickSize"))))
		}
	case "MIN_NOTIONAL":
		if maputil.HasFloat(filter, "minNotional") {
			status.Limits.Cost.Min = numeric.LimitOf(maputil.Float(filter, "minNotional"))
		}
	case "NOTIONAL":
		status.Limits.Cost = minMax(filter, "minNotional", "maxNotional")
	}
}

func minMax(filter map[string]any, minKey, maxKey string) exchange.MinMax {
	var mm exchange.MinMax
	if maputil.HasFloat(filter, minKey) {
		mm.Min = numeric.LimitOf(maputil.Float(filter, minKey))
	}
	if maputil.HasFloat(filter, maxKey) {
		mm.Max = numeric.LimitOf(maputil.Float(filter, maxKey))
	}
	return mm
}

// stepDigits converts a step size like 0.001 into its digit count (3). A
// step of 1 or larger means integral values only.
func stepDigits(step float64) int32 {
	if step <= 0 {
		return 0
	}
	exp := decimal.NewFromFloat(step).Exponent()
	if exp >= 0 {
		return 0
	}
	return -exp
}

// SubmitOrder places a spot order. The spec's ID doubles as the client order
// ID so fills can be matched back.
func (s *Source) SubmitOrder(ctx context.Context, spec *order.Spec) error {
	cleanSymbol := symbolpkg.Binance.ToExchange(spec.Symbol)
	if cleanSymbol == "" {
		return fmt.Errorf("invalid symbol: %s", spec.Symbol)
	}
	side := binancesdk.SideTypeBuy
	if spec.Type.IsSell() {
		side = binancesdk.SideTypeSell
	}

	svc := s.client.NewCreateOrderService().
		Symbol(cleanSymbol).
		Side(side).
		Quantity(formatFloat(spec.Quantity)).
		NewClientOrderID(spec.ID)

	switch spec.Type {
	case order.BuyMarket, order.SellMarket:
		svc.Type(binancesdk.OrderTypeMarket)
	case order.BuyLimit, order.SellLimit:
		svc.Type(binancesdk.OrderTypeLimit).
			TimeInForce(binancesdk.TimeInForceTypeGTC).
			Price(formatFloat(spec.Price))
	case order.StopLoss:
		svc.Type(binancesdk.OrderTypeStopLoss).
			StopPrice(formatFloat(spec.Price))
	case order.StopLossLimit:
		svc.Type(binancesdk.OrderTypeStopLossLimit).
			TimeInForce(binancesdk.TimeInForceTypeGTC).
			Price(formatFloat(spec.Price)).
			StopPrice(formatFloat(spec.Price))
	case order.TakeProfit:
		svc.Type(binancesdk.OrderTypeTakeProfit).
			StopPrice(formatFloat(spec.Price))
	case order.TakeProfitLimit:
		svc.Type(binancesdk.OrderTypeTakeProfitLimit).
			TimeInForce(binancesdk.TimeInForceTypeGTC).
			Price(formatFloat(spec.Price)).
			StopPrice(formatFloat(spec.Price))
	default:
		return fmt.Errorf("unsupported order type %s", spec.Type)
	}

	_, err := svc.Do(ctx)
	return err
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
