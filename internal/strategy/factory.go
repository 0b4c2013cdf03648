package strategy

import (
	"fmt"
	"strings"
)

// Strategy defines behaviour shared by strategy implementations used by the bot.
type Strategy interface {
	Evaluate(pricesA, pricesB []float64, pos Positions) Decision
	Lookback() int
	Name() string
}

// Build returns a strategy implementation matching the configured mode.
func Build(mode string, params Params) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "pairs", "zscore_pairs":
		return NewPairs(params), nil
	default:
		return nil, fmt.Errorf("unknown strategy mode %q", mode)
	}
}
