package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load reads the config file at path, merges any included files (includes
// first, the root file last, so the root wins on conflicts), fills defaults
// for everything the files left unset and validates the result.
func Load(path string) (*Config, error) {
	layers, err := loadLayers(path)
	if err != nil {
		return nil, err
	}
	merged := viper.New()
	for _, layer := range layers {
		if err := merged.MergeConfigMap(layer.settings); err != nil {
			return nil, fmt.Errorf("merging config file failed (%s): %w", layer.path, err)
		}
	}
	var cfg Config
	if err := merged.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	set := make(keySet)
	set.markAll("", merged.AllSettings())
	cfg.applyDefaults(set)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// configLayer is one parsed file, read exactly once during the include walk.
type configLayer struct {
	path     string
	settings map[string]any
}

func loadLayers(root string) ([]configLayer, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	w := includeWalk{done: map[string]bool{}, visiting: map[string]bool{}}
	if err := w.visit(abs); err != nil {
		return nil, err
	}
	return w.layers, nil
}

// includeWalk expands `include` lists depth first. visiting catches cycles,
// done deduplicates files reachable over more than one path.
type includeWalk struct {
	layers   []configLayer
	done     map[string]bool
	visiting map[string]bool
}

func (w *includeWalk) visit(path string) error {
	path = filepath.Clean(path)
	if w.visiting[path] {
		return fmt.Errorf("include cycle detected: %s", path)
	}
	if w.done[path] {
		return nil
	}
	w.visiting[path] = true
	settings, err := readSettings(path)
	if err != nil {
		return fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	for _, inc := range includeList(settings) {
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(filepath.Dir(path), inc)
		}
		if err := w.visit(inc); err != nil {
			return err
		}
	}
	delete(w.visiting, path)
	w.done[path] = true
	w.layers = append(w.layers, configLayer{path: path, settings: settings})
	return nil
}

func readSettings(path string) (map[string]any, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return v.AllSettings(), nil
}

func includeList(settings map[string]any) []string {
	raw, ok := settings["include"]
	if !ok {
		return nil
	}
	var out []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	switch val := raw.(type) {
	case string:
		add(val)
	case []string:
		for _, item := range val {
			add(item)
		}
	case []any:
		for _, item := range val {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	}
	return out
}

// markAll records every leaf key reachable under node, so applyDefaults can
// tell an explicit zero apart from an unset field.
func (k keySet) markAll(prefix string, node any) {
	settings, ok := node.(map[string]any)
	if !ok {
		k.mark(prefix)
		return
	}
	for name, child := range settings {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if prefix != "" {
			name = prefix + "." + name
		}
		k.markAll(name, child)
	}
}
