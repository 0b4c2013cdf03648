package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/execution"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/signal"
)

func openTestDB(t *testing.T) *SQL {
	t.Helper()
	db, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "nested", "pairbot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "x")
	assert.Error(t, err)
}

func TestBarsUpsertAndRange(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2018, 10, 1, 0, 0, 0, 0, time.UTC)

	var bars []signal.Bar
	for i := 0; i < 5; i++ {
		bars = append(bars, signal.Bar{Symbol: "XMRUSDT", OpenTime: base.Add(time.Duration(i) * time.Hour), Close: 100 + float64(i), Volume: 1})
	}
	require.NoError(t, db.SaveBars(ctx, bars))

	// second save overwrites the close of an existing bar
	require.NoError(t, db.SaveBars(ctx, []signal.Bar{{Symbol: "XMRUSDT", OpenTime: base.Add(2 * time.Hour), Close: 999, Volume: 2}}))

	got, err := db.LoadBars(ctx, "XMRUSDT", base.Add(time.Hour), base.Add(4*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, base.Add(time.Hour), got[0].OpenTime)
	assert.Equal(t, 999.0, got[1].Close)
	assert.Equal(t, 2.0, got[1].Volume)
	assert.Equal(t, "XMRUSDT", got[2].Symbol)

	none, err := db.LoadBars(ctx, "NEOUSDT", base, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecordsKeepNaNAsNull(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	ts := time.Date(2018, 10, 2, 5, 0, 0, 0, time.UTC)

	require.NoError(t, db.Record(ctx, signal.Record{RunID: "r1", Ts: ts, AReturn: 0.01, BReturn: -0.02, Spread: 0.03, ZScore: math.NaN()}))
	require.NoError(t, db.Record(ctx, signal.Record{RunID: "r1", Ts: ts.Add(time.Hour), AReturn: 0.02, BReturn: 0.01, Spread: 0.01, ZScore: 1.5}))
	require.NoError(t, db.Record(ctx, signal.Record{RunID: "r2", Ts: ts, ZScore: 2}))

	got, err := db.ListRecords(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, math.IsNaN(got[0].ZScore))
	assert.InDelta(t, 0.03, got[0].Spread, 1e-12)
	assert.Equal(t, 1.5, got[1].ZScore)
	assert.Equal(t, ts.Add(time.Hour), got[1].Ts)
}

func TestFillsViaWriter(t *testing.T) {
	db := openTestDB(t)
	ts := time.Date(2018, 10, 3, 0, 0, 0, 0, time.UTC)

	w := db.Fills(zerolog.Nop())
	w.Record(execution.Fill{RunID: "r1", Symbol: "XMRUSDT", Side: execution.Sell, Qty: 2, Price: 100, Fee: 0.4, Ts: ts})
	w.Record(execution.Fill{RunID: "r1", Symbol: "NEOUSDT", Side: execution.Buy, Qty: 10, Price: 20, Fee: 0.4, Ts: ts})

	got, err := db.ListFills(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, execution.Sell, got[0].Side)
	assert.Equal(t, "NEOUSDT", got[1].Symbol)
	assert.Equal(t, 200.0, got[1].Notional())
}

func TestSaveRunUpserts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	start := time.Date(2018, 10, 1, 0, 0, 0, 0, time.UTC)

	run := Run{ID: "r1", Mode: "backtest", StartedAt: start, FinishedAt: start, StartEquity: 10000, EndEquity: 10000, Sortino: math.NaN()}
	require.NoError(t, db.SaveRun(ctx, run))

	run.FinishedAt = start.Add(time.Hour)
	run.Bars, run.Trades = 1440, 12
	run.EndEquity, run.TotalReturn, run.MaxDrawdown = 10500, 0.05, -0.02
	require.NoError(t, db.SaveRun(ctx, run))

	got, err := db.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 1440, got.Bars)
	assert.Equal(t, 12, got.Trades)
	assert.Equal(t, 10500.0, got.EndEquity)
	assert.True(t, math.IsNaN(got.Sortino))
	assert.Equal(t, start.Add(time.Hour), got.FinishedAt)
}

func TestRebind(t *testing.T) {
	pg := &SQL{driver: DriverPostgres}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))
	lite := &SQL{driver: DriverSQLite}
	assert.Equal(t, "x = ?", lite.rebind("x = ?"))
}
