// Package paper simulates a margin account and a broker that fills target-weight orders at marked prices.
package paper

import (
	"errors"
	"math"
	"sync"

	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/execution"
)

// FillRecorder captures paper fills for later inspection.
type FillRecorder interface {
	Record(execution.Fill)
}

const epsilon = 1e-9

type positionState struct {
	Qty     float64 // signed, negative is short
	AvgCost float64
}

// Account tracks virtual cash, realized PnL, fees, and signed per-symbol positions.
type Account struct {
	mu           sync.Mutex
	startingCash float64
	cash         float64
	realizedPnL  float64
	feesPaid     float64
	positions    map[string]positionState
}

// PositionSnapshot exposes a read-only view of a single symbol position.
type PositionSnapshot struct {
	Qty         float64
	AvgCost     float64
	MarketValue float64
	Unrealized  float64
}

// Snapshot represents a thread-safe view of the account state marked to the provided prices.
type Snapshot struct {
	Cash          float64
	RealizedPnL   float64
	FeesPaid      float64
	Equity        float64
	GrossExposure float64
	Leverage      float64
	Positions     map[string]PositionSnapshot
}

// NewAccount constructs an account populated with starting cash.
func NewAccount(startingCash float64) *Account {
	return &Account{
		startingCash: startingCash,
		cash:         startingCash,
		positions:    make(map[string]positionState),
	}
}

// StartingCash returns the initial bankroll.
func (a *Account) StartingCash() float64 { return a.startingCash }

// MarketFill settles an execution at price and charges fee. Sells may open or extend shorts;
// buys against a short cover it first and realize PnL on the covered amount.
func (a *Account) MarketFill(symbol string, side execution.Side, qty, price, fee float64) error {
	if qty <= 0 {
		return errors.New("quantity must be positive")
	}
	if price <= 0 {
		return errors.New("price must be positive")
	}
	if fee < 0 {
		return errors.New("fee must not be negative")
	}

	var delta float64
	switch side {
	case execution.Buy:
		delta = qty
	case execution.Sell:
		delta = -qty
	default:
		return errors.New("unknown order side")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	state := a.positions[symbol]
	newQty := state.Qty + delta

	switch {
	case math.Abs(state.Qty) <= epsilon || sameSign(state.Qty, delta):
		state.AvgCost = (math.Abs(state.Qty)*state.AvgCost + qty*price) / math.Abs(newQty)
	default:
		closed := math.Min(qty, math.Abs(state.Qty))
		a.realizedPnL += closed * (price - state.AvgCost) * sign(state.Qty)
		if qty > math.Abs(state.Qty)+epsilon {
			state.AvgCost = price
		}
	}

	a.cash -= delta*price + fee
	a.feesPaid += fee
	if math.Abs(newQty) <= epsilon {
		delete(a.positions, symbol)
		return nil
	}
	state.Qty = newQty
	a.positions[symbol] = state
	return nil
}

// Snapshot returns a copy of balances marked using the supplied prices.
// Symbols without a mark are valued at their average cost.
func (a *Account) Snapshot(prices map[string]float64) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	positions := make(map[string]PositionSnapshot, len(a.positions))
	equity := a.cash
	var gross float64
	for sym, pos := range a.positions {
		mark := prices[sym]
		if mark <= 0 {
			mark = pos.AvgCost
		}
		marketValue := pos.Qty * mark
		positions[sym] = PositionSnapshot{
			Qty:         pos.Qty,
			AvgCost:     pos.AvgCost,
			MarketValue: marketValue,
			Unrealized:  (mark - pos.AvgCost) * pos.Qty,
		}
		equity += marketValue
		gross += math.Abs(marketValue)
	}

	snap := Snapshot{
		Cash:          a.cash,
		RealizedPnL:   a.realizedPnL,
		FeesPaid:      a.feesPaid,
		Equity:        equity,
		GrossExposure: gross,
		Positions:     positions,
	}
	if equity > 0 {
		snap.Leverage = gross / equity
	}
	return snap
}

// Cash reports the current cash balance, which grows when shorts are opened.
func (a *Account) Cash() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cash
}

// Position returns the signed position size for the supplied symbol.
func (a *Account) Position(symbol string) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.positions[symbol].Qty
}

// RealizedPnL returns total closed-trade profit and loss before fees.
func (a *Account) RealizedPnL() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.realizedPnL
}

func sameSign(a, b float64) bool { return (a > 0) == (b > 0) }

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
