package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/api"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/backtest"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/config"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/execution"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/history"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/notify"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/paper"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/risk"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/store"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/strategy"
)

const recentFills = 50

// session holds everything one backtest or paper run needs.
type session struct {
	mode      string
	runID     string
	started   time.Time
	cfg       *config.Config
	log       zerolog.Logger
	base      time.Duration
	frequency time.Duration

	repo    *store.SQL
	history *history.Store
	broker  *paper.Broker
	ledger  *paper.Ledger
	trader  *strategy.Trader
	engine  *backtest.Engine

	closers []func() error
}

func newSession(cfg *config.Config, mode string, log zerolog.Logger) (*session, error) {
	p := cfg.Strategy.Params
	frequency, err := p.TimeframeDuration()
	if err != nil {
		return nil, err
	}
	base, err := config.ParseTimeframe(cfg.Backtest.BaseTimeframe)
	if err != nil {
		return nil, fmt.Errorf("backtest.base_timeframe: %w", err)
	}
	if frequency < base || frequency%base != 0 {
		return nil, fmt.Errorf("strategy timeframe %s is not a multiple of base timeframe %s", frequency, base)
	}

	s := &session{
		mode:      mode,
		runID:     uuid.NewString(),
		started:   time.Now().UTC(),
		cfg:       cfg,
		base:      base,
		frequency: frequency,
	}
	s.log = log.With().Str("run_id", s.runID).Str("mode", mode).Logger()

	strat, err := strategy.Build(cfg.Strategy.Mode, strategyParams(p))
	if err != nil {
		return nil, err
	}

	var recorders store.Fanout
	s.ledger = paper.NewLedger(recentFills)
	brokerOpts := []paper.BrokerOption{paper.WithBrokerRunID(s.runID), paper.WithFillRecorder(s.ledger)}

	if cfg.Paper.FillsPath != "" {
		jsonl, err := paper.NewJSONLRecorder(cfg.Paper.FillsPath)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("open %s: %w", cfg.Paper.FillsPath, err)
		}
		s.closers = append(s.closers, jsonl.Close)
		recorders = append(recorders, jsonl.Diagnostics())
		brokerOpts = append(brokerOpts, paper.WithFillRecorder(jsonl))
	}
	if cfg.Store.Driver != "" {
		repo, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("open store: %w", err)
		}
		s.repo = repo
		s.closers = append(s.closers, repo.Close)
		recorders = append(recorders, repo)
		brokerOpts = append(brokerOpts, paper.WithFillRecorder(repo.Fills(s.log)))
	}
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		pub := store.NewRedis(rdb, cfg.Redis.Stream, cfg.Redis.Channel, cfg.Redis.MaxLen)
		s.closers = append(s.closers, pub.Close)
		recorders = append(recorders, pub)
	}

	traderOpts := []strategy.TraderOption{
		strategy.WithRunID(s.runID),
		strategy.WithLimits(risk.Limits{MaxGrossLeverage: cfg.Risk.MaxGrossLeverage}),
	}
	if len(recorders) > 0 {
		traderOpts = append(traderOpts, strategy.WithRecorder(recorders))
	}
	if cfg.Telegram.Enabled {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, s.log)
		if err != nil {
			s.log.Warn().Err(err).Msg("telegram disabled")
		} else {
			traderOpts = append(traderOpts, strategy.WithNotifier(tg))
		}
	}

	// enough base bars for the lookback window plus one spare strategy period
	ratio := int(frequency / base)
	s.history = history.NewStore(base, (p.Lookback+1)*ratio*2)

	account := paper.NewAccount(cfg.Paper.StartingCash)
	fees := paper.Fees{Maker: cfg.Paper.MakerCommission, Taker: cfg.Paper.TakerCommission, Slippage: cfg.Paper.Slippage}
	s.broker = paper.NewBroker(account, execution.NewExecutor(s.log), fees, s.log, brokerOpts...)

	s.trader = strategy.NewTrader(strat, p.AssetA, p.AssetB, frequency, s.history, s.broker, s.broker, s.log, traderOpts...)
	s.engine = backtest.NewEngine(backtest.Config{
		RunID:     s.runID,
		AssetA:    p.AssetA,
		AssetB:    p.AssetB,
		Frequency: frequency,
	}, s.trader, s.history, s.broker, s.log)

	s.log.Info().
		Str("strategy", strat.Name()).
		Str("asset_a", p.AssetA).
		Str("asset_b", p.AssetB).
		Dur("timeframe", frequency).
		Dur("base_timeframe", base).
		Float64("entry_z", p.EntryThreshold()).
		Float64("exit_z", p.ExitThreshold()).
		Msg("session ready")
	return s, nil
}

// status is the live view served by the API.
func (s *session) status() api.Status {
	d, ts := s.trader.Last()
	return api.Status{
		RunID:    s.runID,
		Mode:     s.mode,
		AssetA:   s.cfg.Strategy.Params.AssetA,
		AssetB:   s.cfg.Strategy.Params.AssetB,
		LastBar:  ts,
		Action:   string(d.Action),
		Record:   d.Record,
		Account:  s.broker.Snapshot(),
		Fills:    s.ledger.Recent(recentFills),
		Turnover: s.ledger.Totals(),
	}
}

// saveRun persists the result summary when a store is configured.
func (s *session) saveRun(ctx context.Context, res backtest.Result) {
	if s.repo == nil {
		return
	}
	err := s.repo.SaveRun(ctx, store.Run{
		ID:          s.runID,
		Mode:        s.mode,
		StartedAt:   s.started,
		FinishedAt:  time.Now().UTC(),
		Bars:        res.Bars,
		Trades:      res.Trades,
		StartEquity: res.StartEquity,
		EndEquity:   res.EndEquity,
		TotalReturn: res.TotalReturn,
		Sortino:     res.Sortino,
		MaxDrawdown: res.MaxDrawdown,
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("save run")
	}
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.log.Warn().Err(err).Msg("close")
		}
	}
	s.closers = nil
}

// strategyParams maps loaded config onto the evaluator; a configured min_spread of 0 turns the filter off.
func strategyParams(p config.StrategyParams) strategy.Params {
	minSpread := p.MinSpread
	if minSpread == 0 {
		minSpread = strategy.NoMinSpread
	}
	return strategy.Params{
		AssetA:    p.AssetA,
		AssetB:    p.AssetB,
		Lookback:  p.Lookback,
		EntryZ:    p.EntryThreshold(),
		ExitZ:     p.ExitThreshold(),
		MinSpread: minSpread,
		Leverage:  p.Leverage,
	}
}
