package paper

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/execution"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/metrics"
)

// ErrNoMark is returned when an order targets a symbol with no known price.
var ErrNoMark = errors.New("no mark price")

// Fees models commissions and slippage. Market orders pay the taker rate.
type Fees struct {
	Maker    float64
	Taker    float64
	Slippage float64 // fraction of price paid away on every fill
}

// Broker fills target-weight orders against an Account at the latest marks.
type Broker struct {
	mu        sync.Mutex
	account   *Account
	exec      *execution.Executor
	fees      Fees
	marks     map[string]float64
	ts        time.Time
	runID     string
	recorders []FillRecorder
	trades    int
	log       zerolog.Logger
}

// BrokerOption configures optional Broker behaviour.
type BrokerOption func(*Broker)

// WithFillRecorder adds a sink that receives every fill.
func WithFillRecorder(r FillRecorder) BrokerOption {
	return func(b *Broker) {
		if r != nil {
			b.recorders = append(b.recorders, r)
		}
	}
}

// WithBrokerRunID tags fills with a run identifier.
func WithBrokerRunID(id string) BrokerOption {
	return func(b *Broker) { b.runID = id }
}

// NewBroker wires the account, the logging executor, and the fee model.
func NewBroker(account *Account, exec *execution.Executor, fees Fees, log zerolog.Logger, opts ...BrokerOption) *Broker {
	b := &Broker{
		account: account,
		exec:    exec,
		fees:    fees,
		marks:   make(map[string]float64),
		log:     log,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Mark updates the price used for sizing and filling orders in symbol.
func (b *Broker) Mark(symbol string, price float64, ts time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if price > 0 {
		b.marks[symbol] = price
	}
	if ts.After(b.ts) {
		b.ts = ts
	}
}

// Position returns the signed amount held in symbol.
func (b *Broker) Position(symbol string) float64 { return b.account.Position(symbol) }

// OrderTargetPercent trades symbol to weight × equity at the current mark, paying slippage and the taker fee.
func (b *Broker) OrderTargetPercent(ctx context.Context, symbol string, weight float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	mark, ok := b.marks[symbol]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoMark, symbol)
	}
	equity := b.account.Snapshot(b.marks).Equity
	target := weight * equity / mark
	delta := target - b.account.Position(symbol)
	if math.Abs(delta) <= epsilon {
		return nil
	}

	side := execution.Buy
	price := mark * (1 + b.fees.Slippage)
	if delta < 0 {
		side = execution.Sell
		price = mark * (1 - b.fees.Slippage)
	}
	qty := math.Abs(delta)
	fee := qty * price * b.fees.Taker

	if err := b.exec.Submit(execution.Order{Symbol: symbol, Side: side, Qty: qty, Price: price}); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	if err := b.account.MarketFill(symbol, side, qty, price, fee); err != nil {
		return fmt.Errorf("fill %s: %w", symbol, err)
	}
	b.trades++

	fill := execution.Fill{RunID: b.runID, Symbol: symbol, Side: side, Qty: qty, Price: price, Fee: fee, Ts: b.ts}
	for _, r := range b.recorders {
		r.Record(fill)
	}
	return nil
}

// Snapshot marks the account at the latest prices and publishes equity.
func (b *Broker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := b.account.Snapshot(b.marks)
	metrics.Equity.Set(snap.Equity)
	return snap
}

// Trades counts fills executed so far.
func (b *Broker) Trades() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.trades
}
