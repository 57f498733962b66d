package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"mt5-smc-bot/internal/broker"
	"mt5-smc-bot/internal/fusion"
	"mt5-smc-bot/internal/lifecycle"
	"mt5-smc-bot/internal/market"
	"mt5-smc-bot/internal/poi"
	"mt5-smc-bot/internal/session"
	"mt5-smc-bot/internal/structure"
	"mt5-smc-bot/internal/wyckoff"
)

// Config is the full engine configuration.
type Config struct {
	EngineConfig       EngineConfig           `json:"engine"`
	FusionConfig       fusion.Config          `json:"fusion"`
	StructureConfig    structure.Config       `json:"structure"`
	WyckoffConfig      wyckoff.Config         `json:"wyckoff"`
	OrderBlockConfig   poi.OrderBlockConfig   `json:"order_blocks"`
	FVGConfig          poi.FVGConfig          `json:"fair_value_gaps"`
	SupplyDemandConfig poi.SupplyDemandConfig `json:"supply_demand"`
	LiquidityConfig    poi.LiquidityConfig    `json:"liquidity"`
	LifecycleConfig    lifecycle.Config       `json:"lifecycle"`
	SessionConfig      session.Config         `json:"session"`
	BridgeConfig       broker.BridgeConfig    `json:"bridge"`
	APIConfig          APIConfig              `json:"api"`
	LoggingConfig      LoggingConfig          `json:"logging"`
}

// EngineConfig holds the top-level run settings.
type EngineConfig struct {
	Symbol          string `json:"symbol"`
	DryRun          bool   `json:"dry_run"`           // mock broker instead of the terminal bridge
	PollIntervalSec int    `json:"poll_interval_sec"` // tick cadence of the run loop
	SessionFiltered bool   `json:"session_filtered"`  // apply the kill-zone filter
}

// APIConfig holds the status HTTP server settings.
type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Listen  string `json:"listen"`
}

// LoggingConfig mirrors the logging package configuration.
type LoggingConfig struct {
	Level      string `json:"level"`
	Output     string `json:"output"`
	JSONFormat bool   `json:"json_format"`
}

// Default returns a config with every section at its defaults.
func Default() *Config {
	return &Config{
		EngineConfig: EngineConfig{
			Symbol:          "EURUSD",
			DryRun:          true,
			PollIntervalSec: 5,
			SessionFiltered: true,
		},
		FusionConfig:       fusion.DefaultConfig(),
		StructureConfig:    structure.DefaultConfig(),
		WyckoffConfig:      wyckoff.DefaultConfig(),
		OrderBlockConfig:   poi.DefaultOrderBlockConfig(),
		FVGConfig:          poi.DefaultFVGConfig(),
		SupplyDemandConfig: poi.DefaultSupplyDemandConfig(),
		LiquidityConfig:    poi.DefaultLiquidityConfig(),
		LifecycleConfig:    lifecycle.DefaultConfig(),
		SessionConfig:      session.DefaultConfig(),
		BridgeConfig:       broker.DefaultBridgeConfig(),
		APIConfig:          APIConfig{Enabled: true, Listen: ":8090"},
		LoggingConfig:      LoggingConfig{Level: "INFO", Output: "stdout", JSONFormat: true},
	}
}

// Load reads config.json (or the path in CONFIG_FILE), applies env
// overrides and validates. A missing file falls back to defaults.
func Load() (*Config, error) {
	cfg := Default()

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = "config.json"
	}
	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SYMBOL"); v != "" {
		c.EngineConfig.Symbol = v
	}
	if v := os.Getenv("DRY_RUN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.EngineConfig.DryRun = b
		}
	}
	if v := os.Getenv("BRIDGE_URL"); v != "" {
		c.BridgeConfig.URL = v
	}
	if v := os.Getenv("API_LISTEN"); v != "" {
		c.APIConfig.Listen = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LoggingConfig.Level = v
	}
	if v := os.Getenv("RISK_AMOUNT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.FusionConfig.RiskAmount = f
		}
	}
}

// Validate rejects configurations the engine cannot start with. An empty
// timeframe tier is fatal here, before any tick is processed.
func (c *Config) Validate() error {
	if c.EngineConfig.Symbol == "" {
		return fmt.Errorf("config: symbol must be set")
	}
	tiers := []struct {
		name string
		tfs  []market.Timeframe
	}{
		{"higher", c.FusionConfig.HigherTimeframes},
		{"medium", c.FusionConfig.MediumTimeframes},
		{"lower", c.FusionConfig.LowerTimeframes},
	}
	for _, tier := range tiers {
		if len(tier.tfs) == 0 {
			return fmt.Errorf("config: no %s timeframe enabled", tier.name)
		}
		for _, tf := range tier.tfs {
			if !tf.Valid() {
				return fmt.Errorf("config: unknown %s timeframe %q", tier.name, tf)
			}
		}
	}
	if c.FusionConfig.RiskAmount <= 0 {
		return fmt.Errorf("config: risk amount must be positive")
	}
	if c.LifecycleConfig.RiskRewardRatio <= 0 {
		return fmt.Errorf("config: risk reward ratio must be positive")
	}
	if c.EngineConfig.PollIntervalSec <= 0 {
		c.EngineConfig.PollIntervalSec = 5
	}
	return nil
}

// BridgeSymbol returns the bridge config with the engine symbol filled in.
func (c *Config) BridgeSymbol() broker.BridgeConfig {
	bc := c.BridgeConfig
	if bc.Symbol == "" {
		bc.Symbol = c.EngineConfig.Symbol
	}
	return bc
}
