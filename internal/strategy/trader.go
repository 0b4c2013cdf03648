package strategy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/metrics"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/risk"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/signal"
)

// HistoryProvider serves close-price windows for a symbol.
type HistoryProvider interface {
	History(ctx context.Context, symbol string, bars int, frequency time.Duration) ([]float64, error)
}

// OrderSink moves a symbol to a target fraction of portfolio equity.
type OrderSink interface {
	OrderTargetPercent(ctx context.Context, symbol string, weight float64) error
}

// PositionReader reports the signed amount currently held.
type PositionReader interface {
	Position(symbol string) float64
}

// Recorder persists per-bar diagnostics.
type Recorder interface {
	Record(ctx context.Context, rec signal.Record) error
}

// Notifier is told about every decision that moves the book.
type Notifier interface {
	Notify(ctx context.Context, d Decision) error
}

// Trader runs a Strategy once per bar against its collaborators.
type Trader struct {
	strat     Strategy
	assetA    string
	assetB    string
	frequency time.Duration
	history   HistoryProvider
	orders    OrderSink
	positions PositionReader
	recorder  Recorder
	notifier  Notifier
	limits    risk.Limits
	runID     string
	log       zerolog.Logger

	mu     sync.RWMutex
	last   Decision
	lastTs time.Time
}

// TraderOption configures optional Trader collaborators.
type TraderOption func(*Trader)

// WithRecorder sends each bar's diagnostics to rec.
func WithRecorder(rec Recorder) TraderOption {
	return func(t *Trader) { t.recorder = rec }
}

// WithNotifier reports exits and entries to n.
func WithNotifier(n Notifier) TraderOption {
	return func(t *Trader) { t.notifier = n }
}

// WithLimits gates entries on gross exposure.
func WithLimits(l risk.Limits) TraderOption {
	return func(t *Trader) { t.limits = l }
}

// WithRunID tags diagnostics with a run identifier.
func WithRunID(id string) TraderOption {
	return func(t *Trader) { t.runID = id }
}

// NewTrader wires a strategy for the A/B pair sampled at frequency.
func NewTrader(strat Strategy, assetA, assetB string, frequency time.Duration, hist HistoryProvider, orders OrderSink, positions PositionReader, log zerolog.Logger, opts ...TraderOption) *Trader {
	t := &Trader{
		strat:     strat,
		assetA:    assetA,
		assetB:    assetB,
		frequency: frequency,
		history:   hist,
		orders:    orders,
		positions: positions,
		log:       log,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// OnBar pulls both windows, evaluates the strategy, issues its targets, and records diagnostics.
// History errors skip the bar without orders. Recorder and notifier failures are logged only.
func (t *Trader) OnBar(ctx context.Context, ts time.Time) (Decision, error) {
	n := t.strat.Lookback()
	pricesA, err := t.history.History(ctx, t.assetA, n, t.frequency)
	if err != nil {
		return Decision{}, fmt.Errorf("history %s: %w", t.assetA, err)
	}
	pricesB, err := t.history.History(ctx, t.assetB, n, t.frequency)
	if err != nil {
		return Decision{}, fmt.Errorf("history %s: %w", t.assetB, err)
	}

	pos := Positions{A: t.positions.Position(t.assetA), B: t.positions.Position(t.assetB)}
	d := t.strat.Evaluate(pricesA, pricesB, pos)
	d.Record.Ts = ts
	d.Record.RunID = t.runID

	if d.Action == ActionLongSpread || d.Action == ActionShortSpread {
		weights := make([]float64, len(d.Targets))
		for i, tgt := range d.Targets {
			weights[i] = tgt.Weight
		}
		if !t.limits.Allow(weights...) {
			t.log.Warn().Str("action", string(d.Action)).Floats64("weights", weights).Msg("entry blocked by risk limits")
			d.Action = ActionNone
			d.Targets = nil
		}
	}

	orderErr := t.submit(ctx, d.Targets)

	metrics.DecisionsTotal.WithLabelValues(string(d.Action)).Inc()
	metrics.ZScore.Set(d.Record.ZScore)
	metrics.Spread.Set(d.Record.Spread)

	if t.recorder != nil {
		if err := t.recorder.Record(ctx, d.Record); err != nil {
			t.log.Warn().Err(err).Msg("record diagnostics")
		}
	}
	if d.Action != ActionNone {
		t.log.Info().
			Str("action", string(d.Action)).
			Float64("zscore", d.Record.ZScore).
			Float64("spread", d.Record.Spread).
			Float64("pos_b", pos.B).
			Time("bar", ts).
			Msg("pairs decision")
		if t.notifier != nil {
			if err := t.notifier.Notify(ctx, d); err != nil {
				t.log.Warn().Err(err).Msg("notify decision")
			}
		}
	}

	t.mu.Lock()
	t.last = d
	t.lastTs = ts
	t.mu.Unlock()
	return d, orderErr
}

// submit issues both legs of a pair. Cancellation is checked once before the first leg;
// after that every leg is sent so a shutdown cannot leave one side of the book open.
func (t *Trader) submit(ctx context.Context, targets []signal.Target) error {
	if len(targets) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("skip orders: %w", err)
	}
	legCtx := context.WithoutCancel(ctx)
	var errs []error
	for _, tgt := range targets {
		if err := t.orders.OrderTargetPercent(legCtx, tgt.Symbol, tgt.Weight); err != nil {
			errs = append(errs, fmt.Errorf("order target %s %.4f: %w", tgt.Symbol, tgt.Weight, err))
		}
	}
	return errors.Join(errs...)
}

// Last returns the most recent decision and the bar it was made on.
func (t *Trader) Last() (Decision, time.Time) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last, t.lastTs
}
