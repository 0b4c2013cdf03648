// Package backtest replays bars for the A/B pair through the trader and a paper broker.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/history"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/metrics"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/paper"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/signal"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/strategy"
)

// Config names the pair and the strategy frequency.
type Config struct {
	RunID     string
	AssetA    string
	AssetB    string
	Frequency time.Duration
}

// Engine drives one session. Bars may arrive one symbol at a time; the trader
// runs when both legs have closed the same bar and that bar ends a strategy period.
type Engine struct {
	cfg     Config
	trader  *strategy.Trader
	history *history.Store
	broker  *paper.Broker
	log     zerolog.Logger

	mu          sync.Mutex
	startEquity float64
	bars        int
	start, end  time.Time
	equity      []EquityPoint
}

// NewEngine wires a trader to the shared history and broker and records the starting equity.
func NewEngine(cfg Config, trader *strategy.Trader, hist *history.Store, broker *paper.Broker, log zerolog.Logger) *Engine {
	if cfg.Frequency <= 0 {
		cfg.Frequency = hist.Timeframe()
	}
	hist.Track(cfg.AssetA, cfg.AssetB)
	return &Engine{
		cfg:         cfg,
		trader:      trader,
		history:     hist,
		broker:      broker,
		log:         log,
		startEquity: broker.Snapshot().Equity,
	}
}

// OnBar ingests one closed bar. It reports whether the trader was evaluated.
func (e *Engine) OnBar(ctx context.Context, bar signal.Bar) (bool, error) {
	if bar.Symbol != e.cfg.AssetA && bar.Symbol != e.cfg.AssetB {
		return false, nil
	}
	if !e.history.Append(bar) {
		e.log.Debug().Str("symbol", bar.Symbol).Time("open", bar.OpenTime).Msg("stale bar dropped")
		return false, nil
	}
	metrics.BarsTotal.WithLabelValues(bar.Symbol).Inc()

	base := e.history.Timeframe()
	closeTs := bar.OpenTime.Add(base)
	e.broker.Mark(bar.Symbol, bar.Close, closeTs)

	lastA, okA := e.history.Last(e.cfg.AssetA)
	lastB, okB := e.history.Last(e.cfg.AssetB)
	if !okA || !okB || !lastA.OpenTime.Equal(lastB.OpenTime) {
		return false, nil
	}

	evaluated := false
	var err error
	if closeTs.Truncate(e.cfg.Frequency).Equal(closeTs) {
		_, err = e.trader.OnBar(ctx, closeTs)
		switch {
		case errors.Is(err, history.ErrInsufficientHistory):
			err = nil
		case err == nil:
			evaluated = true
		}
	}

	snap := e.broker.Snapshot()
	e.mu.Lock()
	if e.bars == 0 {
		e.start = lastA.OpenTime
	}
	e.bars++
	e.end = closeTs
	e.equity = append(e.equity, EquityPoint{Ts: closeTs, Equity: snap.Equity})
	e.mu.Unlock()

	if err != nil {
		return evaluated, fmt.Errorf("bar %s: %w", closeTs.Format(time.RFC3339), err)
	}
	return evaluated, nil
}

// Run replays both series in open-time order and returns the session result.
func (e *Engine) Run(ctx context.Context, barsA, barsB []signal.Bar) (Result, error) {
	merged := make([]signal.Bar, 0, len(barsA)+len(barsB))
	merged = append(merged, barsA...)
	merged = append(merged, barsB...)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].OpenTime.Before(merged[j].OpenTime) })

	e.log.Info().
		Str("run_id", e.cfg.RunID).
		Int("bars_a", len(barsA)).
		Int("bars_b", len(barsB)).
		Dur("frequency", e.cfg.Frequency).
		Msg("backtest start")

	for _, bar := range merged {
		if err := ctx.Err(); err != nil {
			return e.Result(), err
		}
		if _, err := e.OnBar(ctx, bar); err != nil {
			return e.Result(), err
		}
	}

	res := e.Result()
	e.log.Info().
		Str("run_id", res.RunID).
		Int("bars", res.Bars).
		Int("trades", res.Trades).
		Float64("total_return", res.TotalReturn).
		Float64("max_drawdown", res.MaxDrawdown).
		Msg("backtest done")
	return res, nil
}

// Result summarises the session so far.
func (e *Engine) Result() Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	equity := make([]EquityPoint, len(e.equity))
	copy(equity, e.equity)
	res := Result{
		RunID:       e.cfg.RunID,
		Start:       e.start,
		End:         e.end,
		Bars:        e.bars,
		Trades:      e.broker.Trades(),
		StartEquity: e.startEquity,
		EndEquity:   e.startEquity,
		Equity:      equity,
	}
	if n := len(equity); n > 0 {
		res.EndEquity = equity[n-1].Equity
	}
	if res.StartEquity != 0 {
		res.TotalReturn = res.EndEquity/res.StartEquity - 1
	}
	values := make([]float64, 0, len(equity)+1)
	values = append(values, e.startEquity)
	for _, p := range equity {
		values = append(values, p.Equity)
	}
	res.Sortino = Sortino(values, periodsPerYear(e.history.Timeframe()))
	res.MaxDrawdown = MaxDrawdown(values)
	return res
}
