package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/daytrader/market"
	"github.com/rustyeddy/daytrader/risk"
)

func TestLoadFromFile_YAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
symbol: XAUUSD
magic_number: 777777
direction: BUY
margin_free_perc: 0.4
hedge_manager_enabled: true
dynamic_mf_strategy:
  enabled: true
  levels:
    - max_margin_free_pct: 0.30
      volume: 0.01
      order_percentage: 0.3
      tp_min: 100
      tp_max: 300
      sl_min: 1200
      sl_max: 1600
thresholds:
  - max_order_count: 8
    applies_to: buy
    decrease_amount: 1
    cooldown_minutes: 120
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "XAUUSD", cfg.Symbol)
	assert.Equal(t, int64(777777), cfg.Magic)
	assert.InDelta(t, 0.4, cfg.MarginFreePerc, 1e-12)
	require.Len(t, cfg.DynamicMF.Levels, 1)
	assert.InDelta(t, 0.30, cfg.DynamicMF.Levels[0].MaxMarginFreePct, 1e-12)
	require.Len(t, cfg.Thresholds, 1)
	assert.Equal(t, 8, cfg.Thresholds[0].MaxOrderCount)

	// Defaults filled in.
	assert.Equal(t, 10, cfg.CheckIntervalSeconds)
	require.NotNil(t, cfg.ShutdownHour)
	assert.Equal(t, 99, *cfg.ShutdownHour)
	assert.Equal(t, int64(777778), cfg.HedgeMagic)
	assert.Equal(t, "ceil", cfg.DynamicMF.RoundOrders)
	assert.Equal(t, "linear", cfg.DynamicMF.TPDistribution)
	assert.Equal(t, "none", cfg.Journal.Type)
}

func TestLoadFromFile_JSONFallback(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"symbol": "EURUSD", "magic_number": 123, "direction": "SELL"}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "EURUSD", cfg.Symbol)
	assert.Equal(t, market.Sell, cfg.PrimaryDirection())
}

func TestLoadFromFile_ExplicitShutdownHourZero(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "symbol: XAUUSD\nmagic_number: 777777\nshutdown_hour: 0\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.ShutdownHour)
	// An explicit 0 means stop after midnight, not "use the default".
	assert.Equal(t, 0, *cfg.ShutdownHour)
}

func TestLoadFromFile_Missing(t *testing.T) {
	t.Parallel()

	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing symbol", func(c *Config) { c.Symbol = "" }},
		{"missing magic", func(c *Config) { c.Magic = 0 }},
		{"bad direction", func(c *Config) { c.Direction = "LONG" }},
		{"bad check interval", func(c *Config) { c.CheckIntervalSeconds = -1 }},
		{"margin perc too high", func(c *Config) { c.MarginFreePerc = 1.0 }},
		{"margin perc zero", func(c *Config) { c.MarginFreePerc = -0.1 }},
		{"bad round mode", func(c *Config) { c.DynamicMF.RoundOrders = "up" }},
		{"bad distribution", func(c *Config) { c.DynamicMF.TPDistribution = "spread" }},
		{"unsorted tiers", func(c *Config) {
			c.DynamicMF.Levels[0].MaxMarginFreePct = 0.9
		}},
		{"bad journal type", func(c *Config) { c.Journal.Type = "excel" }},
		{"journal path required", func(c *Config) { c.Journal.Type = "sqlite"; c.Journal.Path = "" }},
		{"bad threshold applies_to", func(c *Config) {
			c.Thresholds = append(c.Thresholds, risk.Rule{MaxOrderCount: 5, AppliesTo: "BUY"})
		}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Default().Validate())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	orig := Default()
	orig.Symbol = "EURUSD"
	orig.Magic = 42
	require.NoError(t, orig.SaveToFile(path))

	got, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "EURUSD", got.Symbol)
	assert.Equal(t, int64(42), got.Magic)
	assert.Equal(t, orig.DynamicMF.Levels, got.DynamicMF.Levels)
}

func TestHedgeSettingsMapping(t *testing.T) {
	t.Parallel()

	cfg := Default()
	hs := cfg.HedgeSettings()

	assert.Equal(t, cfg.HedgeManagerEnabled, hs.Enabled)
	assert.Equal(t, market.Buy, hs.PrimaryDirection)
	assert.Equal(t, cfg.Magic, hs.PrimaryMagic)
	assert.Equal(t, cfg.HedgeMagic, hs.HedgeMagic)
	assert.InDelta(t, cfg.HedgeTriggerProfitBuy, hs.TriggerProfit, 1e-12)
	assert.Equal(t, time.Duration(cfg.HedgeCooldownMinutes)*time.Minute, hs.Cooldown)
}
