package app

import (
	"context"
	"fmt"
	"strings"

	"marlin/internal/config"
	"marlin/internal/exchange"
	"marlin/internal/gateway/binance"
	"marlin/internal/logger"
	"marlin/internal/notifier"
	"marlin/internal/pkg/symbol"
	"marlin/internal/portfolio"
	"marlin/internal/sizing"
	"marlin/internal/sizing/preset"
	"marlin/internal/store/gormstore"
	"marlin/internal/store/journal"
	apihttp "marlin/internal/transport/http"
	"marlin/internal/trader"
)

// AppBuilder assembles the dependency graph. The *Fn fields exist so tests
// can substitute fakes without touching the wiring order.
type AppBuilder struct {
	cfg *config.Config

	exchangeFn func(config.ExchangeConfig) (*binance.Source, error)
	ordersFn   func(string) (*gormstore.OrderStore, error)
	journalFn  func(string) (*journal.Journal, error)
	presetsFn  func(string) (*preset.Registry, error)

	exchangeOverride exchange.Exchange
	submitOverride   trader.Submitter
}

type AppBuilderOption func(*AppBuilder)

// WithExchange substitutes the exchange gateway, for tests and replay runs.
func WithExchange(exch exchange.Exchange, submit trader.Submitter) AppBuilderOption {
	return func(b *AppBuilder) {
		b.exchangeOverride = exch
		b.submitOverride = submit
	}
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		exchangeFn: buildBinanceSource,
		ordersFn:   gormstore.NewOrderStore,
		journalFn:  journal.Open,
		presetsFn:  preset.NewRegistry,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func buildBinanceSource(cfg config.ExchangeConfig) (*binance.Source, error) {
	return binance.New(binance.Config{
		APIKey:       cfg.APIKey,
		APISecret:    cfg.APISecret,
		RESTBaseURL:  cfg.RESTBaseURL,
		HTTPTimeout:  cfg.HTTPTimeout(),
		ProxyEnabled: cfg.ProxyEnabled,
		RESTProxyURL: cfg.RESTProxyURL,
	})
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	exch, submit, err := b.buildExchange(cfg)
	if err != nil {
		return nil, err
	}

	tuning, presets, err := b.resolveTuning(cfg)
	if err != nil {
		return nil, err
	}

	orders, err := b.ordersFn(cfg.Store.OrdersPath)
	if err != nil {
		return nil, fmt.Errorf("order store: %w", err)
	}
	jnl, err := b.journalFn(cfg.Store.JournalPath)
	if err != nil {
		_ = orders.Close()
		return nil, fmt.Errorf("journal: %w", err)
	}

	pf := portfolio.New(cfg.Trading.InitialBalances)

	trd, err := trader.New(trader.Options{
		Risk:      cfg.Trading.Risk,
		Simulated: cfg.Trading.Simulated,
		Store:     orders,
		Submitter: submit,
	})
	if err != nil {
		_ = orders.Close()
		_ = jnl.Close()
		return nil, err
	}

	var notify notifier.TextNotifier = notifier.Nop{}
	if tg := cfg.Notify.Telegram; tg.Enabled {
		notify = notifier.NewTelegram(tg.BotToken, tg.ChatID)
	}

	service, err := NewService(ServiceConfig{
		Exchange:    exch,
		Trader:      trd,
		Portfolio:   pf,
		Tuning:      tuning,
		Journal:     jnl,
		Notifier:    notify,
		LockTimeout: cfg.Trading.LockTimeout(),
	})
	if err != nil {
		_ = orders.Close()
		_ = jnl.Close()
		return nil, err
	}

	if active := strings.TrimSpace(cfg.Presets.Active); presets != nil && active != "" {
		presets.Subscribe(func(snap preset.Snapshot) {
			p, ok := snap.Presets[active]
			if !ok {
				logger.Warnf("active preset %s missing after reload, keeping current tuning", active)
				return
			}
			if err := service.UpdateTuning(p.Tuning); err != nil {
				logger.Errorf("rejected preset %s: %v", active, err)
			}
		})
	}

	symbols := make([]string, 0, len(cfg.Trading.Symbols))
	for _, s := range cfg.Trading.Symbols {
		symbols = append(symbols, symbol.Normalize(s))
	}

	httpSrv, err := apihttp.NewServer(apihttp.ServerConfig{
		Addr:      cfg.App.HTTPAddr,
		Signals:   service,
		Orders:    orders,
		Journal:   jnl,
		Portfolio: pf,
		Symbols:   symbols,
	})
	if err != nil {
		_ = orders.Close()
		_ = jnl.Close()
		return nil, err
	}

	return &App{
		cfg:     cfg,
		service: service,
		httpSrv: httpSrv,
		orders:  orders,
		journal: jnl,
		presets: presets,
	}, nil
}

// resolveTuning picks the effective sizing tuning: the active preset when
// one is configured, the plain sizing section otherwise.
func (b *AppBuilder) resolveTuning(cfg *config.Config) (sizing.Tuning, *preset.Registry, error) {
	tuning := cfg.Sizing
	if strings.TrimSpace(cfg.Presets.Path) == "" {
		return tuning, nil, nil
	}
	presets, err := b.presetsFn(cfg.Presets.Path)
	if err != nil {
		return tuning, nil, fmt.Errorf("presets: %w", err)
	}
	if name := strings.TrimSpace(cfg.Presets.Active); name != "" {
		p, ok := presets.Preset(name)
		if !ok {
			return tuning, nil, fmt.Errorf("presets: unknown active preset %q", name)
		}
		tuning = p.Tuning
		logger.Infof("sizing tuning from preset %s", name)
	}
	return tuning, presets, nil
}

func (b *AppBuilder) buildExchange(cfg *config.Config) (exchange.Exchange, trader.Submitter, error) {
	if b.exchangeOverride != nil {
		return b.exchangeOverride, b.submitOverride, nil
	}
	source, err := b.exchangeFn(cfg.Exchange)
	if err != nil {
		return nil, nil, fmt.Errorf("exchange gateway: %w", err)
	}
	if cfg.Trading.Simulated {
		return source, nil, nil
	}
	return source, source, nil
}
