// Package config exposes strongly typed application configuration structs loaded from YAML or TOML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment, API address, and logging level.
type App struct {
	Name     string `yaml:"name" toml:"name"`
	Env      string `yaml:"env" toml:"env"`
	APIAddr  string `yaml:"api_addr" toml:"api_addr"`
	LogLevel string `yaml:"log_level" toml:"log_level"`
}

// Exchange describes where bars come from.
type Exchange struct {
	Name      string `yaml:"name" toml:"name"`
	Feed      string `yaml:"feed" toml:"feed"` // stub|binance
	APIKey    string `yaml:"api_key" toml:"api_key"`
	APISecret string `yaml:"api_secret" toml:"api_secret"`
	RestURL   string `yaml:"rest_url" toml:"rest_url"`
	WsURL     string `yaml:"ws_url" toml:"ws_url"`
}

// StrategyParams groups the pairs strategy knobs.
type StrategyParams struct {
	AssetA      string  `yaml:"asset_a" toml:"asset_a"`
	AssetB      string  `yaml:"asset_b" toml:"asset_b"`
	Lookback    int     `yaml:"lookback" toml:"lookback"`
	Timeframe   string  `yaml:"timeframe" toml:"timeframe"`
	EntryPValue float64 `yaml:"entry_p_value" toml:"entry_p_value"`
	ExitPValue  float64 `yaml:"exit_p_value" toml:"exit_p_value"`
	EntryZ      float64 `yaml:"entry_z" toml:"entry_z"` // overrides EntryPValue when > 0
	ExitZ       float64 `yaml:"exit_z" toml:"exit_z"`   // overrides ExitPValue when > 0
	MinSpread   float64 `yaml:"min_spread" toml:"min_spread"`
	Leverage    float64 `yaml:"leverage" toml:"leverage"`
}

// Strategy specifies which strategy is active along with the parameter bundle.
type Strategy struct {
	Mode   string         `yaml:"mode" toml:"mode"`
	Params StrategyParams `yaml:"params" toml:"params"`
}

// Risk encodes guard-rails applied before new exposure is taken.
type Risk struct {
	MaxGrossLeverage float64 `yaml:"max_gross_leverage" toml:"max_gross_leverage"`
}

// Paper captures paper-trading account settings such as starting cash and the fee model.
type Paper struct {
	StartingCash    float64 `yaml:"starting_cash" toml:"starting_cash"`
	MakerCommission float64 `yaml:"maker_commission" toml:"maker_commission"`
	TakerCommission float64 `yaml:"taker_commission" toml:"taker_commission"`
	Slippage        float64 `yaml:"slippage" toml:"slippage"`
	FillsPath       string  `yaml:"fills_path" toml:"fills_path"`
}

// Backtest bounds a historical simulation.
type Backtest struct {
	Start         string `yaml:"start" toml:"start"` // 2006-01-02
	End           string `yaml:"end" toml:"end"`
	BaseTimeframe string `yaml:"base_timeframe" toml:"base_timeframe"`
	Source        string `yaml:"source" toml:"source"` // binance|store
}

// Store selects the SQL backend used for bars, diagnostics, and fills.
type Store struct {
	Driver string `yaml:"driver" toml:"driver"` // sqlite|pgx, empty disables
	DSN    string `yaml:"dsn" toml:"dsn"`
}

// Redis configures the diagnostics stream publisher.
type Redis struct {
	Enabled  bool   `yaml:"enabled" toml:"enabled"`
	Addr     string `yaml:"addr" toml:"addr"`
	Password string `yaml:"password" toml:"password"`
	DB       int    `yaml:"db" toml:"db"`
	Stream   string `yaml:"stream" toml:"stream"`
	Channel  string `yaml:"channel" toml:"channel"`
	MaxLen   int64  `yaml:"max_len" toml:"max_len"`
}

// Telegram configures trade notifications.
type Telegram struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Token   string `yaml:"token" toml:"token"`
	ChatID  int64  `yaml:"chat_id" toml:"chat_id"`
}

// Config collects every configuration leaf.
type Config struct {
	App      App      `yaml:"app" toml:"app"`
	Exchange Exchange `yaml:"exchange" toml:"exchange"`
	Strategy Strategy `yaml:"strategy" toml:"strategy"`
	Risk     Risk     `yaml:"risk" toml:"risk"`
	Paper    Paper    `yaml:"paper" toml:"paper"`
	Backtest Backtest `yaml:"backtest" toml:"backtest"`
	Store    Store    `yaml:"store" toml:"store"`
	Redis    Redis    `yaml:"redis" toml:"redis"`
	Telegram Telegram `yaml:"telegram" toml:"telegram"`
}

// Load reads a YAML or TOML file (chosen by extension), fills defaults, overlays env secrets, and validates.
func Load(path string) (*Config, error) {
	config := zeroableDefaults()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, &config); err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
	default:
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(&config); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	}

	ApplyDefaults(&config)
	applyEnv(&config)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
