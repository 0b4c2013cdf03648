// Package execution defines order payloads and the logging submitter that fronts the paper venue.
package execution

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/metrics"
)

// ErrInvalidOrder is returned by Submit for orders that cannot be placed.
var ErrInvalidOrder = errors.New("invalid order")

// Side enumerates order directions used by the executor.
type Side string

const (
	// Buy increases a position (or covers a short).
	Buy Side = "BUY"
	// Sell decreases a position (or opens a short).
	Sell Side = "SELL"
)

// Order represents a placement request the executor can process.
type Order struct {
	Symbol string
	Side   Side
	Qty    float64
	Price  float64 // 0 for market
}

// Fill is an executed order including the commission charged.
type Fill struct {
	RunID  string    `json:"run_id,omitempty"`
	Symbol string    `json:"symbol"`
	Side   Side      `json:"side"`
	Qty    float64   `json:"qty"`
	Price  float64   `json:"price"`
	Fee    float64   `json:"fee"`
	Ts     time.Time `json:"ts"`
}

// Notional is qty times price.
func (f Fill) Notional() float64 { return f.Qty * f.Price }

// Executor implements a logger-backed submitter for orders.
type Executor struct{ log zerolog.Logger }

// NewExecutor wraps a zerolog logger for order submissions.
func NewExecutor(log zerolog.Logger) *Executor { return &Executor{log: log} }

// Validate checks symbol, side, and a positive finite quantity.
func (o Order) Validate() error {
	switch {
	case o.Symbol == "":
		return fmt.Errorf("%w: empty symbol", ErrInvalidOrder)
	case o.Side != Buy && o.Side != Sell:
		return fmt.Errorf("%w: side %q", ErrInvalidOrder, o.Side)
	case !(o.Qty > 0) || math.IsInf(o.Qty, 0):
		return fmt.Errorf("%w: qty %v", ErrInvalidOrder, o.Qty)
	case o.Price < 0 || math.IsNaN(o.Price):
		return fmt.Errorf("%w: price %v", ErrInvalidOrder, o.Price)
	}
	return nil
}

// Submit validates, logs, and counts the order; settlement happens in the paper account.
func (executor *Executor) Submit(order Order) error {
	if err := order.Validate(); err != nil {
		executor.log.Warn().Err(err).Str("sym", order.Symbol).Msg("reject order")
		return err
	}
	metrics.OrdersTotal.WithLabelValues(order.Symbol, string(order.Side)).Inc()
	executor.log.Info().Str("sym", order.Symbol).Str("side", string(order.Side)).Float64("qty", order.Qty).Float64("px", order.Price).Msg("submit order")
	return nil
}
