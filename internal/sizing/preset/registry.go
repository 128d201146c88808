// Package preset manages named sizing tunings loaded from a yaml file, so
// operators can switch between e.g. "conservative" and "aggressive" without
// editing the main config. The file is watched and reloaded in place.
package preset

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"marlin/internal/logger"
	"marlin/internal/sizing"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Preset is one named tuning. Tuning fields left out of the file fall back
// to the stock defaults, so a preset only has to spell out what it changes.
type Preset struct {
	Name        string        `yaml:"-"`
	Description string        `yaml:"description"`
	Tuning      sizing.Tuning `yaml:"tuning"`
}

type fileConfig struct {
	Presets map[string]yaml.Node `yaml:"presets"`
}

// Snapshot is an immutable view of the registry contents.
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Presets  map[string]Preset
}

// Names returns the preset names in sorted order.
func (s Snapshot) Names() []string {
	out := make([]string, 0, len(s.Presets))
	for name := range s.Presets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ChangeListener fires after a successful reload.
type ChangeListener func(Snapshot)

// Registry loads the preset file and keeps it fresh.
type Registry struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewRegistry reads the preset file at path and watches it for updates.
func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("preset registry requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read preset file failed: %w", err)
	}
	r := &Registry{path: path, v: v}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("preset reload failed: %v", err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	return r, nil
}

// Snapshot returns the current preset set.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// Preset returns the preset with the given name.
func (r *Registry) Preset(name string) (Preset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.snapshot.Presets[strings.TrimSpace(name)]
	return p, ok
}

// Subscribe registers a listener for future reloads.
func (r *Registry) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Registry) reload() error {
	presets, err := readPresetFile(r.path)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Presets:  presets,
	}
	r.mu.Unlock()
	logger.Infof("Preset registry loaded %d presets from %s", len(presets), filepath.Base(r.path))
	return nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := cloneSnapshot(r.snapshot)
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		if fn == nil {
			continue
		}
		go func(cb ChangeListener) {
			defer safeRecover("preset listener")
			cb(snap)
		}(fn)
	}
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Presets:  make(map[string]Preset, len(src.Presets)),
	}
	for name, p := range src.Presets {
		dst.Presets[name] = p
	}
	return dst
}

func safeRecover(tag string) {
	if r := recover(); r != nil {
		logger.Errorf("%s panic: %v", tag, r)
	}
}

func readPresetFile(path string) (map[string]Preset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read preset file failed: %w", err)
	}
	var cfg fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse preset file failed: %w", err)
	}
	presets := make(map[string]Preset, len(cfg.Presets))
	for name, node := range cfg.Presets {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		// Seed with defaults before decoding so partial presets inherit
		// the stock values for whatever they leave out.
		p := Preset{Name: name, Tuning: sizing.DefaultTuning()}
		if err := node.Decode(&p); err != nil {
			return nil, fmt.Errorf("parse preset %s failed: %w", name, err)
		}
		p.Name = name
		if err := p.Tuning.Validate(); err != nil {
			logger.Errorf("preset %s rejected: %v", name, err)
			continue
		}
		presets[name] = p
	}
	return presets, nil
}
