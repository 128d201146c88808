package config

import (
	"fmt"
	"strings"

	"marlin/internal/pkg/symbol"
)

func validate(c *Config) error {
	if err := c.Trading.validate(); err != nil {
		return err
	}
	if err := c.Exchange.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	if err := c.Sizing.Validate(); err != nil {
		return fmt.Errorf("sizing: %w", err)
	}
	if strings.TrimSpace(c.Presets.Active) != "" && strings.TrimSpace(c.Presets.Path) == "" {
		return fmt.Errorf("presets.active requires presets.path")
	}
	return nil
}

func (t *TradingConfig) validate() error {
	if len(t.Symbols) == 0 {
		return fmt.Errorf("trading.symbols requires at least one symbol")
	}
	for _, s := range t.Symbols {
		if !symbol.IsValid(s) {
			return fmt.Errorf("trading.symbols contains invalid symbol: %s", s)
		}
	}
	if t.Risk <= 0 || t.Risk > 1 {
		return fmt.Errorf("trading.risk must be in (0, 1], got %v", t.Risk)
	}
	if t.LockTimeoutSeconds <= 0 {
		return fmt.Errorf("trading.lock_timeout_seconds must be positive")
	}
	if !t.Simulated {
		return nil
	}
	for currency, amount := range t.InitialBalances {
		if strings.TrimSpace(currency) == "" {
			return fmt.Errorf("trading.initial_balances contains empty currency")
		}
		if amount < 0 {
			return fmt.Errorf("trading.initial_balances.%s must be >= 0", currency)
		}
	}
	return nil
}

func (e *ExchangeConfig) validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("exchange.name cannot be empty")
	}
	if e.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("exchange.http_timeout_seconds must be positive")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	tg := n.Telegram
	if !tg.Enabled {
		return nil
	}
	if strings.TrimSpace(tg.BotToken) == "" || strings.TrimSpace(tg.ChatID) == "" {
		return fmt.Errorf("notify.telegram requires bot_token and chat_id when enabled")
	}
	return nil
}
