// Package app wires configuration, gateway, stores, sizing service and the
// HTTP surface into a runnable application.
package app

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"marlin/internal/config"
	"marlin/internal/logger"
	"marlin/internal/sizing"
	"marlin/internal/sizing/preset"
	"marlin/internal/store/gormstore"
	"marlin/internal/store/journal"
	apihttp "marlin/internal/transport/http"
)

type App struct {
	cfg     *config.Config
	service *Service
	httpSrv *apihttp.Server

	orders  *gormstore.OrderStore
	journal *journal.Journal
	watcher *config.TuningWatcher
	presets *preset.Registry
}

// NewApp builds the application from config without starting it.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// WatchConfig hot-reloads the sizing tuning from path for the lifetime of
// the app. Call before Run. When an active preset is configured the preset
// file owns the tuning, so sizing changes in the main config are not
// applied.
func (a *App) WatchConfig(path string) error {
	if active := strings.TrimSpace(a.cfg.Presets.Active); active != "" {
		logger.Infof("sizing tuning pinned to preset %s, ignoring the sizing section of %s", active, path)
		return nil
	}
	watcher, err := config.WatchTuning(path)
	if err != nil {
		return err
	}
	watcher.Subscribe(func(tuning sizing.Tuning) {
		if err := a.service.UpdateTuning(tuning); err != nil {
			logger.Errorf("rejected tuning update: %v", err)
		}
	})
	a.watcher = watcher
	return nil
}

// Service exposes the sizing service, for tests and replay harnesses.
func (a *App) Service() *Service {
	if a == nil {
		return nil
	}
	return a.service
}

// Run serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	logger.Infof("starting %s mode on %s, symbols: %v",
		modeLabel(a.cfg.Trading.Simulated), a.httpSrv.Addr(), a.cfg.Trading.Symbols)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.httpSrv.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	err := group.Wait()
	a.close()
	return err
}

func (a *App) close() {
	if a.orders != nil {
		if err := a.orders.Close(); err != nil {
			logger.Warnf("closing order store: %v", err)
		}
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			logger.Warnf("closing journal: %v", err)
		}
	}
}

func modeLabel(simulated bool) string {
	if simulated {
		return "simulated"
	}
	return "live"
}
