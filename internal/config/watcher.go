package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"marlin/internal/logger"
	"marlin/internal/sizing"
)

// ChangeListener receives the new tuning after a successful reload.
type ChangeListener func(sizing.Tuning)

// TuningWatcher hot-reloads the sizing tuning when the config file changes
// on disk. A reload that fails validation is logged and dropped, the last
// good tuning stays active.
type TuningWatcher struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	tuning    sizing.Tuning
	listeners []ChangeListener
}

func WatchTuning(path string) (*TuningWatcher, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("tuning watcher requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config failed: %w", err)
	}
	w := &TuningWatcher{path: path, v: v}
	if err := w.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := w.reload(); err != nil {
			logger.Errorf("tuning reload failed (%s): %v", evt.Name, err)
			return
		}
		w.notify()
	})
	v.WatchConfig()
	return w, nil
}

// Tuning returns the last good tuning.
func (w *TuningWatcher) Tuning() sizing.Tuning {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.tuning
}

// Subscribe registers a listener and immediately delivers the current
// tuning.
func (w *TuningWatcher) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	w.listeners = append(w.listeners, fn)
	tuning := w.tuning
	w.mu.Unlock()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("tuning listener panic: %v", r)
			}
		}()
		fn(tuning)
	}()
}

func (w *TuningWatcher) reload() error {
	cfg, err := Load(w.path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.tuning = cfg.Sizing
	w.mu.Unlock()
	return nil
}

func (w *TuningWatcher) notify() {
	w.mu.RLock()
	tuning := w.tuning
	listeners := append([]ChangeListener(nil), w.listeners...)
	w.mu.RUnlock()
	for _, fn := range listeners {
		if fn == nil {
			continue
		}
		go func(cb ChangeListener) {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("tuning listener panic: %v", r)
				}
			}()
			cb(tuning)
		}(fn)
	}
}
