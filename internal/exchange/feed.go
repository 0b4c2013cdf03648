// Package exchange hosts market data sources: live bar feeds and historical kline downloads.
package exchange

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/metrics"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/signal"
)

const (
	// ProviderStub emits deterministic synthetic bars (useful for tests/offline work).
	ProviderStub = "stub"
	// ProviderBinance streams closed klines from Binance public websockets.
	ProviderBinance = "binance"
)

const (
	defaultBinanceWsURL = "wss://stream.binance.com:9443"
	defaultStubStep     = 500 * time.Millisecond
)

// Feed represents a pluggable closed-bar stream implementation.
type Feed struct {
	provider string
	symbols  []string
	interval time.Duration
	log      zerolog.Logger
	wsURL    string
	stubStep time.Duration
	stubFrom time.Time
	mu       sync.RWMutex
}

// Option configures Feed construction parameters.
type Option func(*Feed)

// WithWsURL overrides the websocket base URL (scheme and host, no path).
func WithWsURL(url string) Option {
	return func(f *Feed) {
		if url != "" {
			f.wsURL = strings.TrimSuffix(url, "/")
		}
	}
}

// WithStubClock sets the wall-clock pace and the first bar time of the stub provider.
func WithStubClock(step time.Duration, from time.Time) Option {
	return func(f *Feed) {
		if step > 0 {
			f.stubStep = step
		}
		f.stubFrom = from
	}
}

// NewFeed constructs a feed backed by the requested provider emitting bars of the given interval.
func NewFeed(provider string, symbols []string, interval time.Duration, log zerolog.Logger, opts ...Option) *Feed {
	if provider == "" {
		provider = ProviderStub
	}
	if interval <= 0 {
		interval = time.Hour
	}
	f := &Feed{
		provider: strings.ToLower(provider),
		interval: interval,
		log:      log,
		wsURL:    defaultBinanceWsURL,
		stubStep: defaultStubStep,
	}
	f.setSymbols(symbols)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SetSymbols replaces the tracked symbol list (deduplicated, sorted for determinism).
func (f *Feed) SetSymbols(symbols []string) {
	f.setSymbols(symbols)
}

func (f *Feed) setSymbols(symbols []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	unique := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		unique[sym] = struct{}{}
	}
	f.symbols = f.symbols[:0]
	for sym := range unique {
		f.symbols = append(f.symbols, sym)
	}
	sort.Strings(f.symbols)
}

func (f *Feed) snapshotSymbols() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, len(f.symbols))
	copy(out, f.symbols)
	return out
}

// Run pushes closed bars onto the provided channel until the context is canceled.
func (f *Feed) Run(ctx context.Context, out chan<- signal.Bar) error {
	switch f.provider {
	case ProviderBinance:
		return f.runBinance(ctx, out)
	case ProviderStub:
		return f.runStub(ctx, out)
	default:
		return fmt.Errorf("unknown feed provider %q", f.provider)
	}
}

// runStub walks each symbol along its own sine path so pairs drift apart and revert.
func (f *Feed) runStub(ctx context.Context, out chan<- signal.Bar) error {
	ticker := time.NewTicker(f.stubStep)
	defer ticker.Stop()

	openTime := f.stubFrom
	if openTime.IsZero() {
		openTime = time.Now().UTC().Truncate(f.interval)
	}
	var k int
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for i, s := range f.snapshotSymbols() {
				base := 100.0 / float64(i+1)
				px := base * (1 + 0.02*math.Sin(float64(k)*0.3+float64(i)*1.7))
				bar := signal.Bar{Symbol: s, OpenTime: openTime, Close: px, Volume: 1}
				select {
				case out <- bar:
					metrics.FeedBarsTotal.WithLabelValues(ProviderStub, s).Inc()
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			openTime = openTime.Add(f.interval)
			k++
		}
	}
}
