package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/config"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/strategy"
)

func TestStrategyParamsKeepsConfiguredMinSpread(t *testing.T) {
	p := config.Default().Strategy.Params
	s := strategy.NewPairs(strategyParams(p))
	assert.Equal(t, 0.035, s.Params().MinSpread)
	assert.InDelta(t, 3.8906, s.Params().EntryZ, 1e-3)
}

func TestStrategyParamsZeroMinSpreadDisablesFilter(t *testing.T) {
	p := config.Default().Strategy.Params
	p.MinSpread = 0
	s := strategy.NewPairs(strategyParams(p))
	assert.Equal(t, 0.0, s.Params().MinSpread)

	action, targets := s.Decide(5.0, 0.001, strategy.Positions{})
	assert.Equal(t, strategy.ActionShortSpread, action)
	assert.Len(t, targets, 2)
}
