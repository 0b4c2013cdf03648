// Package history keeps per-symbol candle series and serves resampled close windows to the strategy.
package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sdcoffey/big"
	"github.com/sdcoffey/techan"

	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/signal"
)

var (
	// ErrInsufficientHistory is returned when fewer buckets exist than requested.
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrUnknownSymbol is returned for symbols the store does not track.
	ErrUnknownSymbol = errors.New("unknown symbol")
)

// Store holds one candle series per symbol at a fixed base timeframe.
type Store struct {
	mu        sync.RWMutex
	timeframe time.Duration
	maxBars   int
	series    map[string]*techan.TimeSeries
}

// NewStore creates a store for bars of the given timeframe. maxBars > 0 trims old candles.
func NewStore(timeframe time.Duration, maxBars int) *Store {
	return &Store{
		timeframe: timeframe,
		maxBars:   maxBars,
		series:    make(map[string]*techan.TimeSeries),
	}
}

// Timeframe returns the base bar duration.
func (s *Store) Timeframe() time.Duration { return s.timeframe }

// Track registers a symbol so History reports ErrInsufficientHistory rather than ErrUnknownSymbol before the first bar.
func (s *Store) Track(symbols ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sym := range symbols {
		if _, ok := s.series[sym]; !ok {
			s.series[sym] = techan.NewTimeSeries()
		}
	}
}

// Append adds a closed bar. Bars that do not start after the previous one are rejected.
func (s *Store) Append(bar signal.Bar) bool {
	if bar.Symbol == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.series[bar.Symbol]
	if ts == nil {
		ts = techan.NewTimeSeries()
		s.series[bar.Symbol] = ts
	}
	if last := ts.LastCandle(); last != nil && !bar.OpenTime.After(last.Period.Start) {
		return false
	}

	candle := techan.NewCandle(techan.NewTimePeriod(bar.OpenTime, s.timeframe))
	candle.ClosePrice = big.NewDecimal(bar.Close)
	candle.OpenPrice = candle.ClosePrice
	candle.MaxPrice = candle.ClosePrice
	candle.MinPrice = candle.ClosePrice
	candle.Volume = big.NewDecimal(bar.Volume)
	if !ts.AddCandle(candle) {
		return false
	}
	if s.maxBars > 0 && len(ts.Candles) > s.maxBars {
		ts.Candles = ts.Candles[len(ts.Candles)-s.maxBars:]
	}
	return true
}

// Len returns the number of base bars held for symbol.
func (s *Store) Len(symbol string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ts := s.series[symbol]; ts != nil {
		return len(ts.Candles)
	}
	return 0
}

// Last returns the most recent bar for symbol.
func (s *Store) Last(symbol string) (signal.Bar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts := s.series[symbol]
	if ts == nil || ts.LastCandle() == nil {
		return signal.Bar{}, false
	}
	return toBar(symbol, ts.LastCandle()), true
}

// History returns the last `bars` closes of symbol resampled to frequency.
// Each bucket takes the close of the latest base bar whose open time falls inside it.
func (s *Store) History(ctx context.Context, symbol string, bars int, frequency time.Duration) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if frequency <= 0 {
		frequency = s.timeframe
	}
	if frequency < s.timeframe || frequency%s.timeframe != 0 {
		return nil, fmt.Errorf("frequency %s is not a multiple of base timeframe %s", frequency, s.timeframe)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	ts, ok := s.series[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}

	closes := make([]float64, 0, len(ts.Candles))
	var bucket time.Time
	for _, c := range ts.Candles {
		b := c.Period.Start.Truncate(frequency)
		px := c.ClosePrice.Float()
		if len(closes) > 0 && b.Equal(bucket) {
			closes[len(closes)-1] = px
			continue
		}
		bucket = b
		closes = append(closes, px)
	}
	if len(closes) < bars {
		return nil, fmt.Errorf("%w: %s has %d of %d bars", ErrInsufficientHistory, symbol, len(closes), bars)
	}
	out := make([]float64, bars)
	copy(out, closes[len(closes)-bars:])
	return out, nil
}

func toBar(symbol string, c *techan.Candle) signal.Bar {
	return signal.Bar{
		Symbol:   symbol,
		OpenTime: c.Period.Start,
		Close:    c.ClosePrice.Float(),
		Volume:   c.Volume.Float(),
	}
}
