package integration

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/backtest"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/exchange"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/execution"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/history"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/paper"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/signal"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/store"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/strategy"
)

func TestPaperFlowTradesAndPersists(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "flow.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer repo.Close()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	const runID = "flow"

	hist := history.NewStore(time.Hour, 0)
	broker := paper.NewBroker(paper.NewAccount(10000), execution.NewExecutor(logger), paper.Fees{Taker: 0.001}, logger,
		paper.WithFillRecorder(repo.Fills(logger)), paper.WithBrokerRunID(runID))
	strat := strategy.NewPairs(strategy.Params{
		AssetA:    "AAAUSDT",
		AssetB:    "BBBUSDT",
		Lookback:  5,
		EntryZ:    0.8,
		ExitZ:     0.2,
		MinSpread: strategy.NoMinSpread,
		Leverage:  1,
	})
	trader := strategy.NewTrader(strat, "AAAUSDT", "BBBUSDT", time.Hour, hist, broker, broker, logger,
		strategy.WithRecorder(store.Fanout{repo}), strategy.WithRunID(runID))
	engine := backtest.NewEngine(backtest.Config{RunID: runID, AssetA: "AAAUSDT", AssetB: "BBBUSDT", Frequency: time.Hour},
		trader, hist, broker, logger)

	from := time.Date(2018, 10, 1, 0, 0, 0, 0, time.UTC)
	feed := exchange.NewFeed(exchange.ProviderStub, []string{"bbbusdt", "aaausdt"}, time.Hour, zerolog.Nop(),
		exchange.WithStubClock(2*time.Millisecond, from))
	bars := make(chan signal.Bar, 16)
	go func() {
		_ = feed.Run(ctx, bars)
	}()

	evaluated := 0
	for broker.Trades() < 2 {
		select {
		case bar := <-bars:
			ok, err := engine.OnBar(ctx, bar)
			if err != nil {
				t.Fatalf("on bar: %v", err)
			}
			if ok {
				evaluated++
			}
		case <-ctx.Done():
			t.Fatalf("timed out waiting for the pair to trade (evaluated %d bars)", evaluated)
		}
	}
	cancel()

	readCtx := context.Background()
	records, err := repo.ListRecords(readCtx, runID)
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != evaluated {
		t.Fatalf("expected %d diagnostics rows, got %d", evaluated, len(records))
	}
	fills, err := repo.ListFills(readCtx, runID)
	if err != nil {
		t.Fatalf("list fills: %v", err)
	}
	if len(fills) != broker.Trades() {
		t.Fatalf("expected %d fills, got %d", broker.Trades(), len(fills))
	}
	if fills[0].Symbol != "AAAUSDT" || fills[1].Symbol != "BBBUSDT" {
		t.Fatalf("expected A leg then B leg, got %s then %s", fills[0].Symbol, fills[1].Symbol)
	}
	if fills[0].Side == fills[1].Side {
		t.Fatalf("pair legs should trade opposite sides, both %s", fills[0].Side)
	}

	res := engine.Result()
	if res.EndEquity <= 0 || res.Bars == 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if !strings.Contains(buf.String(), "submit order") {
		t.Fatalf("expected executor log output, got %s", buf.String())
	}
}
