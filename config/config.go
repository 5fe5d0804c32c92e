// Package config loads the manager configuration from YAML or JSON.
// Unknown keys are ignored; missing optional keys take the documented
// defaults before validation runs.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rustyeddy/daytrader/balance"
	"github.com/rustyeddy/daytrader/hedge"
	"github.com/rustyeddy/daytrader/market"
	"github.com/rustyeddy/daytrader/risk"
	"gopkg.in/yaml.v3"
)

// Config is the complete configuration surface for one manager process
// (one account, one symbol, one direction).
type Config struct {
	Symbol    string `json:"symbol" yaml:"symbol"`
	Direction string `json:"direction" yaml:"direction"` // BUY | SELL
	Magic     int64  `json:"magic_number" yaml:"magic_number"`
	BridgeURL string `json:"bridge_url" yaml:"bridge_url"`

	CheckIntervalSeconds int `json:"check_interval_seconds" yaml:"check_interval_seconds"`
	// ShutdownHour is a pointer so an explicit 0 (stop after midnight) is
	// distinguishable from unset (default 99, never).
	ShutdownHour            *int `json:"shutdown_hour" yaml:"shutdown_hour"`
	ReconnectBackoffSeconds int  `json:"reconnect_backoff_seconds" yaml:"reconnect_backoff_seconds"`

	// AllPositions widens the analyzer, margin guard, and max-age sweep to
	// every position on the symbol, any magic. Default is this process's
	// magic only.
	AllPositions bool `json:"all_positions" yaml:"all_positions"`

	// Indicator / history settings.
	IndicatorsEnabled bool   `json:"indicators_ema_adx_active" yaml:"indicators_ema_adx_active"`
	Timeframe         string `json:"timeframe" yaml:"timeframe"`
	TimeframePrevious string `json:"timeframe_previous" yaml:"timeframe_previous"`
	HistoryHours      int    `json:"backtest_hours" yaml:"backtest_hours"`
	EMAPeriod         int    `json:"ema_period" yaml:"ema_period"`
	ADXPeriod         int    `json:"adx_period" yaml:"adx_period"`

	// Single-order entry parameters.
	StopPoints                float64 `json:"stop_points" yaml:"stop_points"`
	ProfitPoints              float64 `json:"profit_points" yaml:"profit_points"`
	TargetUpDollars           float64 `json:"target_up_dollars" yaml:"target_up_dollars"`
	TargetDownDollars         float64 `json:"target_down_dollars" yaml:"target_down_dollars"`
	TargetDownIntervalSeconds int     `json:"target_down_interval_seconds" yaml:"target_down_interval_seconds"`

	// Margin guard.
	MarginFreePerc               float64 `json:"margin_free_perc" yaml:"margin_free_perc"`
	ManagerMarginIntervalSeconds int     `json:"manager_margin_interval_seconds" yaml:"manager_margin_interval_seconds"`

	// Floating drawdown stop.
	EnableFloatingDDStop    bool    `json:"enable_floating_dd_stop" yaml:"enable_floating_dd_stop"`
	FloatingDDStopThreshold float64 `json:"floating_dd_stop_threshold" yaml:"floating_dd_stop_threshold"`
	NumWorstToCloseOnDDStop int     `json:"num_worst_to_close_on_dd_stop" yaml:"num_worst_to_close_on_dd_stop"`
	DrawdownIntervalSeconds int     `json:"drawdown_interval_seconds" yaml:"drawdown_interval_seconds"`

	// Hedge controller.
	HedgeManagerEnabled     bool    `json:"hedge_manager_enabled" yaml:"hedge_manager_enabled"`
	HedgeTriggerProfitBuy   float64 `json:"hedge_trigger_profit_buy" yaml:"hedge_trigger_profit_buy"`
	HedgeTriggerMaxOpenBuys int     `json:"hedge_trigger_max_open_buys" yaml:"hedge_trigger_max_open_buys"`
	HedgeSellVolume         float64 `json:"hedge_sell_volume" yaml:"hedge_sell_volume"`
	HedgeSellSLPts          float64 `json:"hedge_sell_sl_pts" yaml:"hedge_sell_sl_pts"`
	HedgeSellTPPts          float64 `json:"hedge_sell_tp_pts" yaml:"hedge_sell_tp_pts"`
	HedgeMagic              int64   `json:"hedge_magic_number" yaml:"hedge_magic_number"`
	HedgeCloseDrawdownCash  float64 `json:"hedge_close_drawdown_cash" yaml:"hedge_close_drawdown_cash"`
	HedgeCooldownMinutes    int     `json:"hedge_cooldown_minutes" yaml:"hedge_cooldown_minutes"`
	HedgeIntervalSeconds    int     `json:"hedge_interval_seconds" yaml:"hedge_interval_seconds"`
	HedgeStateFile          string  `json:"hedge_state_file" yaml:"hedge_state_file"`

	DynamicMF DynamicMFConfig `json:"dynamic_mf_strategy" yaml:"dynamic_mf_strategy"`

	Thresholds []risk.Rule `json:"thresholds" yaml:"thresholds"`

	// Position max-age sweep.
	ClosePositionsByTime       bool `json:"close_positions_by_time_enabled" yaml:"close_positions_by_time_enabled"`
	MaxPositionDurationMinutes int  `json:"max_position_duration_minutes" yaml:"max_position_duration_minutes"`

	Journal JournalConfig `json:"journal" yaml:"journal"`
	Alert   AlertConfig   `json:"alert" yaml:"alert"`

	MetricsListen string `json:"metrics_listen" yaml:"metrics_listen"`
}

// DynamicMFConfig is the tiered balancing strategy.
type DynamicMFConfig struct {
	Enabled        bool           `json:"enabled" yaml:"enabled"`
	Levels         []balance.Tier `json:"levels" yaml:"levels"`
	RoundOrders    string         `json:"round_orders" yaml:"round_orders"`       // ceil | floor | nearest
	TPDistribution string         `json:"tp_distribution" yaml:"tp_distribution"` // linear | random | fixed
}

// JournalConfig selects the cycle-summary export backend.
type JournalConfig struct {
	Type            string `json:"type" yaml:"type"` // csv | sqlite | none
	Path            string `json:"path" yaml:"path"`
	IntervalSeconds int    `json:"interval_seconds" yaml:"interval_seconds"`
}

// AlertConfig is the equity-target alert.
type AlertConfig struct {
	EquityTarget  float64 `json:"equity_target" yaml:"equity_target"`
	TelegramToken string  `json:"telegram_token" yaml:"telegram_token"`
	TelegramChat  int64   `json:"telegram_chat_id" yaml:"telegram_chat_id"`
}

// LoadFromFile loads configuration from a file, trying YAML first and
// falling back to JSON.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", jerr)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes the configuration, YAML or JSON by extension.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Direction == "" {
		c.Direction = "BUY"
	}
	if c.BridgeURL == "" {
		c.BridgeURL = "http://127.0.0.1:8787"
	}
	if c.CheckIntervalSeconds == 0 {
		c.CheckIntervalSeconds = 10
	}
	if c.ShutdownHour == nil {
		never := 99
		c.ShutdownHour = &never
	}
	if c.ReconnectBackoffSeconds == 0 {
		c.ReconnectBackoffSeconds = 30
	}
	if c.Timeframe == "" {
		c.Timeframe = "M5"
	}
	if c.TimeframePrevious == "" {
		c.TimeframePrevious = "M15"
	}
	if c.HistoryHours == 0 {
		c.HistoryHours = 48
	}
	if c.EMAPeriod == 0 {
		c.EMAPeriod = 20
	}
	if c.ADXPeriod == 0 {
		c.ADXPeriod = 14
	}
	if c.TargetDownIntervalSeconds == 0 {
		c.TargetDownIntervalSeconds = 300
	}
	if c.MarginFreePerc == 0 {
		c.MarginFreePerc = 0.5
	}
	if c.ManagerMarginIntervalSeconds == 0 {
		c.ManagerMarginIntervalSeconds = 60
	}
	if c.DrawdownIntervalSeconds == 0 {
		c.DrawdownIntervalSeconds = 60
	}
	if c.HedgeTriggerProfitBuy == 0 {
		c.HedgeTriggerProfitBuy = -80
	}
	if c.HedgeTriggerMaxOpenBuys == 0 {
		c.HedgeTriggerMaxOpenBuys = 2
	}
	if c.HedgeSellVolume == 0 {
		c.HedgeSellVolume = 0.01
	}
	if c.HedgeSellSLPts == 0 {
		c.HedgeSellSLPts = 1400
	}
	if c.HedgeSellTPPts == 0 {
		c.HedgeSellTPPts = 90000 // effectively unreachable
	}
	if c.HedgeMagic == 0 {
		c.HedgeMagic = c.Magic + 1
	}
	if c.HedgeCloseDrawdownCash == 0 {
		c.HedgeCloseDrawdownCash = 10
	}
	if c.HedgeCooldownMinutes == 0 {
		c.HedgeCooldownMinutes = 600
	}
	if c.HedgeIntervalSeconds == 0 {
		c.HedgeIntervalSeconds = 30
	}
	if c.HedgeStateFile == "" {
		c.HedgeStateFile = "hedge_state.json"
	}
	if c.DynamicMF.RoundOrders == "" {
		c.DynamicMF.RoundOrders = "ceil"
	}
	if c.DynamicMF.TPDistribution == "" {
		c.DynamicMF.TPDistribution = "linear"
	}
	if c.Journal.Type == "" {
		c.Journal.Type = "none"
	}
	if c.Journal.IntervalSeconds == 0 {
		c.Journal.IntervalSeconds = 300
	}
}

// Validate checks structural validity. Cross-field guard rules (negative
// drawdown threshold, distinct hedge magic) are enforced by the guards at
// runtime so a bad value disables one feature instead of the process.
func (c *Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if c.Magic == 0 {
		return fmt.Errorf("magic_number is required")
	}
	if c.Direction != "BUY" && c.Direction != "SELL" {
		return fmt.Errorf("direction must be BUY or SELL, got %q", c.Direction)
	}
	if c.CheckIntervalSeconds <= 0 {
		return fmt.Errorf("check_interval_seconds must be positive")
	}
	if c.MarginFreePerc <= 0 || c.MarginFreePerc >= 1 {
		return fmt.Errorf("margin_free_perc must be between 0 and 1")
	}
	switch balance.RoundMode(c.DynamicMF.RoundOrders) {
	case balance.RoundCeil, balance.RoundFloor, balance.RoundNearest:
	default:
		return fmt.Errorf("dynamic_mf_strategy.round_orders must be ceil, floor or nearest")
	}
	switch balance.DistMode(c.DynamicMF.TPDistribution) {
	case balance.DistLinear, balance.DistRandom, balance.DistFixed:
	default:
		return fmt.Errorf("dynamic_mf_strategy.tp_distribution must be linear, random or fixed")
	}
	for i := 1; i < len(c.DynamicMF.Levels); i++ {
		if c.DynamicMF.Levels[i].MaxMarginFreePct < c.DynamicMF.Levels[i-1].MaxMarginFreePct {
			return fmt.Errorf("dynamic_mf_strategy.levels must be sorted ascending by max_margin_free_pct")
		}
	}
	switch c.Journal.Type {
	case "csv", "sqlite", "none":
	default:
		return fmt.Errorf("journal.type must be csv, sqlite or none")
	}
	if c.Journal.Type != "none" && c.Journal.Path == "" {
		return fmt.Errorf("journal.path required for journal.type %q", c.Journal.Type)
	}
	for _, r := range c.Thresholds {
		switch r.AppliesTo {
		case "buy", "sell", "both":
		default:
			return fmt.Errorf("thresholds.applies_to must be buy, sell or both")
		}
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	cfg := &Config{
		Symbol:    "XAUUSD",
		Direction: "BUY",
		Magic:     777777,

		EnableFloatingDDStop:    true,
		FloatingDDStopThreshold: -200,
		NumWorstToCloseOnDDStop: 2,

		HedgeManagerEnabled: true,

		StopPoints:        1400,
		ProfitPoints:      400,
		TargetUpDollars:   4,
		TargetDownDollars: 6,

		IndicatorsEnabled: true,

		DynamicMF: DynamicMFConfig{
			Enabled: true,
			Levels: []balance.Tier{
				{MaxMarginFreePct: 0.30, Volume: 0.01, OrderPercentage: 0.3, TPMin: 100, TPMax: 300, SLMin: 1200, SLMax: 1600},
				{MaxMarginFreePct: 0.45, Volume: 0.02, OrderPercentage: 0.5, TPMin: 100, TPMax: 400, SLMin: 1200, SLMax: 1800},
			},
		},

		Journal: JournalConfig{Type: "csv", Path: "./cycles.csv"},
	}
	cfg.applyDefaults()
	return cfg
}

// PrimaryDirection is the configured process side as a market.Direction.
func (c *Config) PrimaryDirection() market.Direction {
	if c.Direction == "SELL" {
		return market.Sell
	}
	return market.Buy
}

// HedgeSettings maps the flat hedge keys into the controller's settings.
func (c *Config) HedgeSettings() hedge.Settings {
	return hedge.Settings{
		Enabled:          c.HedgeManagerEnabled,
		Symbol:           c.Symbol,
		PrimaryDirection: c.PrimaryDirection(),
		PrimaryMagic:     c.Magic,
		HedgeMagic:       c.HedgeMagic,
		TriggerProfit:    c.HedgeTriggerProfitBuy,
		MaxOpenPrimary:   c.HedgeTriggerMaxOpenBuys,
		Volume:           c.HedgeSellVolume,
		StopPoints:       c.HedgeSellSLPts,
		ProfitPoints:     c.HedgeSellTPPts,
		DrawdownCash:     c.HedgeCloseDrawdownCash,
		Cooldown:         time.Duration(c.HedgeCooldownMinutes) * time.Minute,
	}
}

// BalanceSettings maps the dynamic margin-free strategy for the balancer.
func (c *Config) BalanceSettings() balance.Settings {
	return balance.Settings{
		Enabled:      c.DynamicMF.Enabled,
		Symbol:       c.Symbol,
		Magic:        c.Magic,
		Tiers:        c.DynamicMF.Levels,
		RoundMode:    balance.RoundMode(c.DynamicMF.RoundOrders),
		Distribution: balance.DistMode(c.DynamicMF.TPDistribution),
	}
}
