package preset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marlin/internal/sizing"
)

func writePresetFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "presets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRegistryLoadsPresets(t *testing.T) {
	path := writePresetFile(t, `
presets:
  conservative:
    description: small limit orders only
    tuning:
      quantity_max_percent: 0.5
      quantity_market_max_percent: 0.6
  aggressive:
    tuning:
      quantity_min_percent: 0.3
`)
	r, err := NewRegistry(path)
	require.NoError(t, err)

	snap := r.Snapshot()
	assert.Equal(t, []string{"aggressive", "conservative"}, snap.Names())

	p, ok := r.Preset("conservative")
	require.True(t, ok)
	assert.Equal(t, "small limit orders only", p.Description)
	assert.Equal(t, 0.5, p.Tuning.QuantityMaxPercent)
	assert.Equal(t, 0.6, p.Tuning.QuantityMarketMaxPercent)
}

func TestRegistryPartialPresetInheritsDefaults(t *testing.T) {
	path := writePresetFile(t, `
presets:
  tweaked:
    tuning:
      reference_trades: 25
`)
	r, err := NewRegistry(path)
	require.NoError(t, err)

	p, ok := r.Preset("tweaked")
	require.True(t, ok)
	assert.Equal(t, 25, p.Tuning.ReferenceTrades)

	stock := sizing.DefaultTuning()
	assert.Equal(t, stock.StopLossMinPercent, p.Tuning.StopLossMinPercent)
	assert.Equal(t, stock.QuantityMaxPercent, p.Tuning.QuantityMaxPercent)
	assert.Equal(t, stock.BuyMarketAttenuation, p.Tuning.BuyMarketAttenuation)
}

func TestRegistrySkipsInvalidPreset(t *testing.T) {
	path := writePresetFile(t, `
presets:
  broken:
    tuning:
      stop_loss_min_percent: 0.999
  fine:
    tuning:
      reference_trades: 5
`)
	r, err := NewRegistry(path)
	require.NoError(t, err)

	_, ok := r.Preset("broken")
	assert.False(t, ok)
	_, ok = r.Preset("fine")
	assert.True(t, ok)
}

func TestRegistryRejectsUnknownKeys(t *testing.T) {
	path := writePresetFile(t, `
presets: {}
unknown_section: true
`)
	_, err := NewRegistry(path)
	require.Error(t, err)
}

func TestRegistryUnknownPresetLookup(t *testing.T) {
	path := writePresetFile(t, `
presets:
  only:
    tuning: {}
`)
	r, err := NewRegistry(path)
	require.NoError(t, err)

	_, ok := r.Preset("missing")
	assert.False(t, ok)
}

func TestRegistryRequiresPath(t *testing.T) {
	_, err := NewRegistry("  ")
	require.Error(t, err)
}
