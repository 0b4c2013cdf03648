package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/xhit/go-str2duration/v2"

	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/stats"
)

const dateLayout = "2006-01-02"

// Default returns a config holding the stock XMR/NEO hourly setup.
func Default() *Config {
	cfg := zeroableDefaults()
	ApplyDefaults(&cfg)
	return &cfg
}

// zeroableDefaults holds the stock values of fields where 0 is a valid setting.
// Load decodes over it, so absent keys keep these values and explicit zeros survive.
func zeroableDefaults() Config {
	return Config{
		Strategy: Strategy{Params: StrategyParams{
			MinSpread: 0.035,
		}},
		Paper: Paper{
			MakerCommission: 0.001,
			TakerCommission: 0.002,
			Slippage:        0.0005,
		},
	}
}

// ApplyDefaults fills values that are meaningless when zero or empty.
// Fees, slippage and min_spread accept 0, so their stock values come from zeroableDefaults.
func ApplyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "pairbot"
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.Exchange.Name == "" {
		cfg.Exchange.Name = "binance"
	}
	if cfg.Exchange.Feed == "" {
		cfg.Exchange.Feed = "stub"
	}

	p := &cfg.Strategy.Params
	if p.AssetA == "" {
		p.AssetA = "XMRUSDT"
	}
	if p.AssetB == "" {
		p.AssetB = "NEOUSDT"
	}
	if p.Lookback <= 0 {
		p.Lookback = 72
	}
	if p.Timeframe == "" {
		p.Timeframe = "1h"
	}
	if p.EntryPValue <= 0 {
		p.EntryPValue = 0.0001
	}
	if p.ExitPValue <= 0 {
		p.ExitPValue = 0.60
	}
	if p.Leverage <= 0 {
		p.Leverage = 1.0
	}

	if cfg.Paper.StartingCash <= 0 {
		cfg.Paper.StartingCash = 10000
	}

	if cfg.Backtest.Start == "" {
		cfg.Backtest.Start = "2018-10-01"
	}
	if cfg.Backtest.End == "" {
		cfg.Backtest.End = "2018-11-30"
	}
	if cfg.Backtest.BaseTimeframe == "" {
		cfg.Backtest.BaseTimeframe = p.Timeframe
	}
	if cfg.Backtest.Source == "" {
		cfg.Backtest.Source = "binance"
	}

	if cfg.Redis.Stream == "" {
		cfg.Redis.Stream = "pairbot:records"
	}
	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = "pairbot:records:pub"
	}
	if cfg.Redis.MaxLen <= 0 {
		cfg.Redis.MaxLen = 10000
	}
}

// applyEnv overlays secrets from the environment (and a best-effort .env file).
func applyEnv(cfg *Config) {
	_ = godotenv.Load()
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		cfg.Exchange.APIKey = v
	}
	if v := os.Getenv("BINANCE_API_SECRET"); v != "" {
		cfg.Exchange.APISecret = v
	}
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Telegram.ChatID = id
		}
	}
	if v := os.Getenv("PAIRBOT_DB_DSN"); v != "" {
		cfg.Store.DSN = v
	}
}

// Validate rejects configurations the strategy cannot run with.
func (cfg *Config) Validate() error {
	p := cfg.Strategy.Params
	if strings.TrimSpace(p.AssetA) == "" || strings.TrimSpace(p.AssetB) == "" {
		return errors.New("strategy.params: both assets are required")
	}
	if strings.EqualFold(p.AssetA, p.AssetB) {
		return errors.New("strategy.params: asset_a and asset_b must differ")
	}
	if p.Lookback < 3 {
		return fmt.Errorf("strategy.params.lookback must be >= 3, got %d", p.Lookback)
	}
	if p.EntryPValue >= 1 || p.ExitPValue >= 1 {
		return errors.New("strategy.params: p-values must be in (0, 1)")
	}
	if p.MinSpread < 0 {
		return errors.New("strategy.params.min_spread must be >= 0")
	}
	if cfg.Paper.MakerCommission < 0 || cfg.Paper.TakerCommission < 0 || cfg.Paper.Slippage < 0 {
		return errors.New("paper: commissions and slippage must be >= 0")
	}
	if _, err := p.TimeframeDuration(); err != nil {
		return err
	}
	if _, err := ParseTimeframe(cfg.Backtest.BaseTimeframe); err != nil {
		return fmt.Errorf("backtest.base_timeframe: %w", err)
	}
	if _, _, err := cfg.Backtest.Range(); err != nil {
		return err
	}
	switch cfg.Store.Driver {
	case "", "sqlite", "pgx":
	default:
		return fmt.Errorf("store.driver %q not supported", cfg.Store.Driver)
	}
	if cfg.Store.Driver != "" && strings.TrimSpace(cfg.Store.DSN) == "" {
		return errors.New("store.dsn empty but driver set")
	}
	if cfg.Redis.Enabled && strings.TrimSpace(cfg.Redis.Addr) == "" {
		return errors.New("redis.addr empty but enabled")
	}
	if cfg.Telegram.Enabled && (cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0) {
		return errors.New("telegram enabled without token or chat_id")
	}
	return nil
}

// TimeframeDuration parses the bar timeframe.
func (p StrategyParams) TimeframeDuration() (time.Duration, error) {
	d, err := ParseTimeframe(p.Timeframe)
	if err != nil {
		return 0, fmt.Errorf("strategy.params.timeframe: %w", err)
	}
	return d, nil
}

// EntryThreshold is the z-score needed to open the pair.
func (p StrategyParams) EntryThreshold() float64 {
	if p.EntryZ > 0 {
		return p.EntryZ
	}
	return stats.TwoTailedZ(p.EntryPValue)
}

// ExitThreshold is the z-score band inside which an open pair is closed.
func (p StrategyParams) ExitThreshold() float64 {
	if p.ExitZ > 0 {
		return p.ExitZ
	}
	return stats.TwoTailedZ(p.ExitPValue)
}

// Range parses the backtest start and end dates as UTC days. The end day is included,
// so the returned end is midnight after it.
func (b Backtest) Range() (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(dateLayout, b.Start, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("backtest.start: %w", err)
	}
	end, err := time.ParseInLocation(dateLayout, b.End, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("backtest.end: %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("backtest.end must not be before backtest.start")
	}
	return start, end.AddDate(0, 0, 1), nil
}

// ParseTimeframe accepts Go-style durations ("1h", "90m", "1d") and pandas minute aliases ("60T").
func ParseTimeframe(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(strings.ToUpper(s), "T") {
		n, err := strconv.Atoi(s[:len(s)-1])
		if err != nil {
			return 0, fmt.Errorf("parse timeframe %q: %w", s, err)
		}
		s = strconv.Itoa(n) + "m"
	}
	d, err := str2duration.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parse timeframe %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeframe %q must be positive", s)
	}
	return d, nil
}
