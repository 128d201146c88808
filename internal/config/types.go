// Package config loads and validates the application configuration from
// yaml, with include merging and hot reload of the sizing tuning.
package config

import (
	"strings"
	"time"

	"marlin/internal/sizing"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Trading  TradingConfig  `mapstructure:"trading"`
	Sizing   sizing.Tuning  `mapstructure:"sizing"`
	Presets  PresetsConfig  `mapstructure:"presets"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Store    StoreConfig    `mapstructure:"store"`
}

// PresetsConfig points at the named-tuning file. When Active is set, that
// preset overrides the sizing section on startup and on every file reload.
type PresetsConfig struct {
	Path   string `mapstructure:"path"`
	Active string `mapstructure:"active"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
	HTTPAddr string `mapstructure:"http_addr"`
	LogPath  string `mapstructure:"log_path"`
}

type ExchangeConfig struct {
	Name               string `mapstructure:"name"`
	RESTBaseURL        string `mapstructure:"rest_base_url"`
	APIKey             string `mapstructure:"api_key"`
	APISecret          string `mapstructure:"api_secret"`
	HTTPTimeoutSeconds int    `mapstructure:"http_timeout_seconds"`
	ProxyEnabled       bool   `mapstructure:"proxy_enabled"`
	RESTProxyURL       string `mapstructure:"rest_proxy_url"`
}

func (e ExchangeConfig) HTTPTimeout() time.Duration {
	return time.Duration(e.HTTPTimeoutSeconds) * time.Second
}

// TradingConfig controls what is traded and how aggressively.
type TradingConfig struct {
	// Symbols in internal BASE/QUOTE form, e.g. "BTC/USDT".
	Symbols []string `mapstructure:"symbols"`
	// Risk in (0, 1].
	Risk float64 `mapstructure:"risk"`
	// Simulated runs against an in-memory portfolio, no exchange orders.
	Simulated bool `mapstructure:"simulated"`
	// InitialBalances seeds the simulated portfolio, currency -> free amount.
	InitialBalances map[string]float64 `mapstructure:"initial_balances"`
	// LockTimeoutSeconds bounds how long one sizing call may wait for the
	// portfolio lock.
	LockTimeoutSeconds int `mapstructure:"lock_timeout_seconds"`
}

func (t TradingConfig) LockTimeout() time.Duration {
	return time.Duration(t.LockTimeoutSeconds) * time.Second
}

type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

type StoreConfig struct {
	OrdersPath  string `mapstructure:"orders_path"`
	JournalPath string `mapstructure:"journal_path"`
}

// keySet tracks which field paths the config files set explicitly, so
// defaults never clobber a deliberate zero.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
