package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/api"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/config"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/exchange"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/signal"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/util"
)

func main() {
	app := &cli.App{
		Name:  "pairbot",
		Usage: "z-score pairs trading on two crypto assets",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "internal/config/config.yaml", Usage: "YAML or TOML config file"},
			&cli.StringFlag{Name: "log-level", Usage: "override app.log_level"},
			&cli.BoolFlag{Name: "pretty", Usage: "human readable console logs"},
		},
		Commands: []*cli.Command{
			{
				Name:  "backtest",
				Usage: "replay historical bars through the strategy",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "start", Usage: "first day (2006-01-02)"},
					&cli.StringFlag{Name: "end", Usage: "last day, exclusive (2006-01-02)"},
					&cli.StringFlag{Name: "source", Usage: "binance or store"},
				},
				Action: runBacktest,
			},
			{
				Name:  "paper",
				Usage: "trade live bars against a simulated account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "feed", Usage: "stub or binance"},
				},
				Action: runPaper,
			},
		},
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(c *cli.Context) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	level := cfg.App.LogLevel
	if v := c.String("log-level"); v != "" {
		level = v
	}
	log := util.NewLogger(level)
	if c.Bool("pretty") {
		log = util.NewConsoleLogger(level)
	}
	return cfg, log.With().Str("app", cfg.App.Name).Logger(), nil
}

func runBacktest(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	if v := c.String("start"); v != "" {
		cfg.Backtest.Start = v
	}
	if v := c.String("end"); v != "" {
		cfg.Backtest.End = v
	}
	if v := c.String("source"); v != "" {
		cfg.Backtest.Source = v
	}
	start, end, err := cfg.Backtest.Range()
	if err != nil {
		return err
	}

	s, err := newSession(cfg, "backtest", log)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := c.Context
	p := cfg.Strategy.Params
	barsA, err := s.loadBars(ctx, p.AssetA, start, end)
	if err != nil {
		return err
	}
	barsB, err := s.loadBars(ctx, p.AssetB, start, end)
	if err != nil {
		return err
	}

	res, err := s.engine.Run(ctx, barsA, barsB)
	s.saveRun(context.Background(), res)
	if err != nil {
		return err
	}
	tot := s.ledger.Totals()
	s.log.Info().
		Int("fills", tot.Fills).
		Float64("turnover", tot.Notional).
		Float64("fees", tot.Fees).
		Msg("backtest turnover")
	fmt.Print(res.Summary())
	return nil
}

// loadBars reads a symbol's bars from the configured source. Downloads are cached in the store.
func (s *session) loadBars(ctx context.Context, symbol string, start, end time.Time) ([]signal.Bar, error) {
	switch strings.ToLower(s.cfg.Backtest.Source) {
	case "store":
		if s.repo == nil {
			return nil, errors.New("backtest.source store needs store.driver")
		}
		bars, err := s.repo.LoadBars(ctx, symbol, start, end)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", symbol, err)
		}
		if len(bars) == 0 {
			return nil, fmt.Errorf("no stored bars for %s in [%s, %s)", symbol, start.Format(time.DateOnly), end.Format(time.DateOnly))
		}
		return bars, nil
	case "binance":
		client := exchange.NewKlineClient(s.cfg.Exchange.APIKey, s.cfg.Exchange.APISecret, s.cfg.Exchange.RestURL, s.log)
		bars, err := client.Bars(ctx, symbol, s.base, start, end)
		if err != nil {
			return nil, fmt.Errorf("download %s: %w", symbol, err)
		}
		if s.repo != nil {
			if err := s.repo.SaveBars(ctx, bars); err != nil {
				s.log.Warn().Err(err).Str("symbol", symbol).Msg("cache bars")
			}
		}
		return bars, nil
	default:
		return nil, fmt.Errorf("unknown backtest.source %q", s.cfg.Backtest.Source)
	}
}

func runPaper(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	if v := c.String("feed"); v != "" {
		cfg.Exchange.Feed = v
	}

	s, err := newSession(cfg, "paper", log)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	p := cfg.Strategy.Params
	if cfg.Exchange.Feed == exchange.ProviderBinance {
		s.warmup(ctx, p.AssetA, p.AssetB)
	}

	if cfg.App.APIAddr != "" {
		srv := api.NewServer(cfg.App.APIAddr, api.StatusFunc(s.status), s.log)
		go func() {
			if err := srv.Run(ctx); err != nil {
				s.log.Error().Err(err).Msg("api stopped")
			}
		}()
	}

	feed := exchange.NewFeed(cfg.Exchange.Feed, []string{p.AssetA, p.AssetB}, s.base, s.log, exchange.WithWsURL(cfg.Exchange.WsURL))
	bars := make(chan signal.Bar, 256)
	go func() {
		if err := feed.Run(ctx, bars); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error().Err(err).Msg("feed stopped")
		}
		cancel()
	}()

	s.log.Info().Str("feed", cfg.Exchange.Feed).Msg("paper engine started")
	for {
		select {
		case <-ctx.Done():
			res := s.engine.Result()
			s.saveRun(context.Background(), res)
			s.log.Info().
				Int("bars", res.Bars).
				Int("trades", res.Trades).
				Float64("equity", res.EndEquity).
				Msg("shutting down")
			fmt.Print(res.Summary())
			return nil
		case bar := <-bars:
			if s.repo != nil {
				if err := s.repo.SaveBars(ctx, []signal.Bar{bar}); err != nil {
					s.log.Warn().Err(err).Msg("persist bar")
				}
			}
			if _, err := s.engine.OnBar(ctx, bar); err != nil {
				s.log.Warn().Err(err).Str("symbol", bar.Symbol).Msg("bar failed")
			}
		}
	}
}

// warmup seeds history with closed REST klines so trading can start on the first live bar.
func (s *session) warmup(ctx context.Context, symbols ...string) {
	client := exchange.NewKlineClient(s.cfg.Exchange.APIKey, s.cfg.Exchange.APISecret, s.cfg.Exchange.RestURL, s.log)
	now := time.Now().UTC()
	span := time.Duration(s.cfg.Strategy.Params.Lookback+1) * s.frequency
	for _, sym := range symbols {
		bars, err := client.Bars(ctx, sym, s.base, now.Add(-span).Truncate(s.frequency), now)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", sym).Msg("warmup failed")
			continue
		}
		n := 0
		for _, bar := range bars {
			if bar.OpenTime.Add(s.base).After(now) {
				continue
			}
			if s.history.Append(bar) {
				s.broker.Mark(bar.Symbol, bar.Close, bar.OpenTime.Add(s.base))
				n++
			}
		}
		s.log.Info().Str("symbol", sym).Int("bars", n).Msg("warmup loaded")
	}
}
