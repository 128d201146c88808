package config

import (
	"strings"

	"marlin/internal/sizing"
)

const (
	defaultAppEnv         = "dev"
	defaultAppLogLevel    = "info"
	defaultAppHTTPAddr    = ":9991"
	defaultExchangeName   = "binance"
	defaultExchangeREST   = "https://api.binance.com"
	defaultHTTPTimeout    = 15
	defaultTradingRisk    = 0.5
	defaultLockTimeout    = 30
	defaultOrdersDBPath   = "data/orders.db"
	defaultJournalDBPath  = "data/journal.db"
	defaultTradingBalance = 10000
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Exchange.applyDefaults(keys)
	c.Trading.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	applySizingDefaults(&c.Sizing, keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (e *ExchangeConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("exchange.name", &e.Name, defaultExchangeName),
		stringFieldDefault("exchange.rest_base_url", &e.RESTBaseURL, defaultExchangeREST),
		intFieldDefault("exchange.http_timeout_seconds", &e.HTTPTimeoutSeconds, defaultHTTPTimeout),
	)
}

func (t *TradingConfig) applyDefaults(keys keySet) {
	if t == nil {
		return
	}
	applyFieldDefaults(keys,
		floatFieldDefault("trading.risk", &t.Risk, defaultTradingRisk),
		intFieldDefault("trading.lock_timeout_seconds", &t.LockTimeoutSeconds, defaultLockTimeout),
	)
	if t.Simulated && len(t.InitialBalances) == 0 {
		t.InitialBalances = map[string]float64{"USDT": defaultTradingBalance}
	}
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.orders_path", &s.OrdersPath, defaultOrdersDBPath),
		stringFieldDefault("store.journal_path", &s.JournalPath, defaultJournalDBPath),
	)
}

// applySizingDefaults fills unset tuning fields from the stock constants,
// so a config can override a single band without restating the rest.
func applySizingDefaults(t *sizing.Tuning, keys keySet) {
	if t == nil {
		return
	}
	stock := sizing.DefaultTuning()
	applyFieldDefaults(keys,
		floatFieldDefault("sizing.stop_loss_min_percent", &t.StopLossMinPercent, stock.StopLossMinPercent),
		floatFieldDefault("sizing.stop_loss_max_percent", &t.StopLossMaxPercent, stock.StopLossMaxPercent),
		floatFieldDefault("sizing.buy_limit_min_percent", &t.BuyLimitMinPercent, stock.BuyLimitMinPercent),
		floatFieldDefault("sizing.buy_limit_max_percent", &t.BuyLimitMaxPercent, stock.BuyLimitMaxPercent),
		floatFieldDefault("sizing.quantity_min_percent", &t.QuantityMinPercent, stock.QuantityMinPercent),
		floatFieldDefault("sizing.quantity_max_percent", &t.QuantityMaxPercent, stock.QuantityMaxPercent),
		floatFieldDefault("sizing.quantity_market_min_percent", &t.QuantityMarketMinPercent, stock.QuantityMarketMinPercent),
		floatFieldDefault("sizing.quantity_market_max_percent", &t.QuantityMarketMaxPercent, stock.QuantityMarketMaxPercent),
		floatFieldDefault("sizing.buy_market_attenuation", &t.BuyMarketAttenuation, stock.BuyMarketAttenuation),
		intFieldDefault("sizing.reference_trades", &t.ReferenceTrades, stock.ReferenceTrades),
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target == 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target == 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
