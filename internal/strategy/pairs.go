// Package strategy contains the pairs z-score signal and the per-bar driver that wires it to history and orders.
package strategy

import (
	"math"

	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/signal"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/stats"
)

// Action names what a Decision asks for.
type Action string

const (
	ActionNone Action = "none"
	// ActionExit flattens both legs.
	ActionExit Action = "exit"
	// ActionShortSpread sells A and buys B (spread too wide on the upside).
	ActionShortSpread Action = "short_spread"
	// ActionLongSpread buys A and sells B.
	ActionLongSpread Action = "long_spread"
)

// Params expresses tunable knobs required by the pairs strategy.
type Params struct {
	AssetA    string
	AssetB    string
	Lookback  int
	EntryZ    float64
	ExitZ     float64
	MinSpread float64
	Leverage  float64
}

// NoMinSpread disables the minimum spread filter on entries. A zero MinSpread means unset.
const NoMinSpread = -1.0

// DefaultParams mirrors the stock XMR/NEO hourly setup.
func DefaultParams() Params {
	return Params{
		AssetA:    "XMRUSDT",
		AssetB:    "NEOUSDT",
		Lookback:  72,
		EntryZ:    stats.TwoTailedZ(0.0001),
		ExitZ:     stats.TwoTailedZ(0.60),
		MinSpread: 0.035,
		Leverage:  1.0,
	}
}

// Positions is a read-only snapshot of the signed amounts held in each leg.
type Positions struct {
	A float64
	B float64
}

// Decision is the outcome of one evaluation: zero or two targets plus diagnostics.
type Decision struct {
	Action  Action
	Targets []signal.Target
	Record  signal.Record
}

// Pairs trades the z-score of the return spread between two assets.
type Pairs struct {
	params Params
}

// NewPairs builds the evaluator, filling unset (zero) knobs from DefaultParams.
// Pass NoMinSpread to run without the minimum spread filter.
func NewPairs(params Params) *Pairs {
	def := DefaultParams()
	if params.AssetA == "" {
		params.AssetA = def.AssetA
	}
	if params.AssetB == "" {
		params.AssetB = def.AssetB
	}
	if params.Lookback <= 0 {
		params.Lookback = def.Lookback
	}
	if params.EntryZ <= 0 {
		params.EntryZ = def.EntryZ
	}
	if params.ExitZ <= 0 {
		params.ExitZ = def.ExitZ
	}
	switch {
	case params.MinSpread == 0:
		params.MinSpread = def.MinSpread
	case params.MinSpread < 0:
		params.MinSpread = 0
	}
	if params.Leverage <= 0 {
		params.Leverage = def.Leverage
	}
	return &Pairs{params: params}
}

// Name returns the identifier for the strategy implementation.
func (p *Pairs) Name() string { return "PairsZScore" }

// Lookback is the number of bars pulled for each leg.
func (p *Pairs) Lookback() int { return p.params.Lookback }

// Params returns the effective parameters.
func (p *Pairs) Params() Params { return p.params }

// Evaluate computes the spread z-score and maps it with the B-leg position to target weights.
//
// Exit rules run first and are not filtered by the minimum spread; entries need a flat B leg
// and a large enough latest spread. A NaN z-score fails every comparison and yields no targets.
func (p *Pairs) Evaluate(pricesA, pricesB []float64, pos Positions) Decision {
	retA := stats.PctChange(pricesA)
	retB := stats.PctChange(pricesB)
	spread := stats.Subtract(retA, retB)
	z := stats.ZScore(spread)
	latest := stats.Last(spread)

	d := Decision{
		Record: signal.Record{
			AReturn: stats.Last(retA),
			BReturn: stats.Last(retB),
			Spread:  latest,
			ZScore:  z,
		},
	}

	d.Action, d.Targets = p.Decide(z, latest, pos)
	return d
}

// Decide applies the exit and entry table to a z-score, the latest spread, and the position snapshot.
func (p *Pairs) Decide(z, latestSpread float64, pos Positions) (Action, []signal.Target) {
	action := ActionNone
	var targets []signal.Target

	a, b := p.params.AssetA, p.params.AssetB
	if pos.B < 0 && z >= -p.params.ExitZ {
		action, targets = ActionExit, pair(a, 0, b, 0)
	}
	if pos.B > 0 && z <= p.params.ExitZ {
		action, targets = ActionExit, pair(a, 0, b, 0)
	}

	if math.Abs(latestSpread) >= p.params.MinSpread {
		half := 0.5 * p.params.Leverage
		if pos.B == 0 && z > p.params.EntryZ {
			action, targets = ActionShortSpread, pair(a, -half, b, half)
		}
		if pos.B == 0 && z < -p.params.EntryZ {
			action, targets = ActionLongSpread, pair(a, half, b, -half)
		}
	}
	return action, targets
}

func pair(a string, wa float64, b string, wb float64) []signal.Target {
	return []signal.Target{{Symbol: a, Weight: wa}, {Symbol: b, Weight: wb}}
}
