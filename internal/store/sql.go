// Package store persists bars, diagnostics, fills, and run summaries.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/execution"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/signal"
)

// Driver names accepted by Open, matching the registered database/sql drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// SQL is a database/sql repository usable with SQLite or Postgres.
type SQL struct {
	db     *sql.DB
	driver string
}

// Run summarises one backtest or paper session.
type Run struct {
	ID          string
	Mode        string
	StartedAt   time.Time
	FinishedAt  time.Time
	Bars        int
	Trades      int
	StartEquity float64
	EndEquity   float64
	TotalReturn float64
	Sortino     float64
	MaxDrawdown float64
}

// Open connects and migrates. For SQLite the parent directory of dsn is created.
func Open(driver, dsn string) (*SQL, error) {
	switch driver {
	case DriverSQLite:
		if dir := filepath.Dir(dsn); dir != "." && dir != "" {
			_ = os.MkdirAll(dir, 0o755)
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}

	s := &SQL{db: db, driver: driver}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *SQL) Close() error { return s.db.Close() }

func (s *SQL) migrate(ctx context.Context) error {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.driver == DriverPostgres {
		serial = "BIGSERIAL PRIMARY KEY"
	}
	_, err := s.db.ExecContext(ctx, strings.ReplaceAll(`
CREATE TABLE IF NOT EXISTS bars (
  symbol TEXT NOT NULL,
  open_time BIGINT NOT NULL,
  close DOUBLE PRECISION NOT NULL,
  volume DOUBLE PRECISION NOT NULL,
  PRIMARY KEY (symbol, open_time)
);

CREATE TABLE IF NOT EXISTS records (
  id {serial},
  run_id TEXT NOT NULL,
  ts_ms BIGINT NOT NULL,
  a_return DOUBLE PRECISION,
  b_return DOUBLE PRECISION,
  spread DOUBLE PRECISION,
  zscore DOUBLE PRECISION
);
CREATE INDEX IF NOT EXISTS idx_records_run ON records(run_id, ts_ms);

CREATE TABLE IF NOT EXISTS fills (
  id {serial},
  run_id TEXT NOT NULL,
  ts_ms BIGINT NOT NULL,
  symbol TEXT NOT NULL,
  side TEXT NOT NULL,
  qty DOUBLE PRECISION NOT NULL,
  price DOUBLE PRECISION NOT NULL,
  fee DOUBLE PRECISION NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fills_run ON fills(run_id, ts_ms);

CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  mode TEXT NOT NULL,
  started_at BIGINT NOT NULL,
  finished_at BIGINT NOT NULL,
  bars INTEGER NOT NULL,
  trades INTEGER NOT NULL,
  start_equity DOUBLE PRECISION NOT NULL,
  end_equity DOUBLE PRECISION NOT NULL,
  total_return DOUBLE PRECISION,
  sortino DOUBLE PRECISION,
  max_drawdown DOUBLE PRECISION
);
`, "{serial}", serial))
	return err
}

// rebind turns ? placeholders into $n for Postgres.
func (s *SQL) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SaveBars upserts bars in one transaction.
func (s *SQL) SaveBars(ctx context.Context, bars []signal.Bar) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO bars(symbol, open_time, close, volume) VALUES(?, ?, ?, ?)
		ON CONFLICT(symbol, open_time) DO UPDATE SET close=excluded.close, volume=excluded.volume`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, b.Symbol, b.OpenTime.UnixMilli(), b.Close, b.Volume); err != nil {
			return fmt.Errorf("save bar %s %s: %w", b.Symbol, b.OpenTime, err)
		}
	}
	return tx.Commit()
}

// LoadBars returns bars for symbol with open time in [from, to), oldest first.
func (s *SQL) LoadBars(ctx context.Context, symbol string, from, to time.Time) ([]signal.Bar, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT open_time, close, volume FROM bars
		WHERE symbol = ? AND open_time >= ? AND open_time < ?
		ORDER BY open_time`), symbol, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []signal.Bar
	for rows.Next() {
		var ts int64
		b := signal.Bar{Symbol: symbol}
		if err := rows.Scan(&ts, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		b.OpenTime = time.UnixMilli(ts).UTC()
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// Record stores one diagnostics row; non-finite values become NULL.
func (s *SQL) Record(ctx context.Context, rec signal.Record) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO records(run_id, ts_ms, a_return, b_return, spread, zscore) VALUES(?, ?, ?, ?, ?, ?)`),
		rec.RunID, rec.Ts.UnixMilli(), nullable(rec.AReturn), nullable(rec.BReturn), nullable(rec.Spread), nullable(rec.ZScore))
	return err
}

// ListRecords returns the diagnostics of a run in time order; NULLs come back as NaN.
func (s *SQL) ListRecords(ctx context.Context, runID string) ([]signal.Record, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT ts_ms, a_return, b_return, spread, zscore FROM records WHERE run_id = ? ORDER BY ts_ms, id`), runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []signal.Record
	for rows.Next() {
		var ts int64
		var a, b, sp, z sql.NullFloat64
		if err := rows.Scan(&ts, &a, &b, &sp, &z); err != nil {
			return nil, err
		}
		out = append(out, signal.Record{
			RunID:   runID,
			Ts:      time.UnixMilli(ts).UTC(),
			AReturn: orNaN(a),
			BReturn: orNaN(b),
			Spread:  orNaN(sp),
			ZScore:  orNaN(z),
		})
	}
	return out, rows.Err()
}

// InsertFill stores one execution.
func (s *SQL) InsertFill(ctx context.Context, f execution.Fill) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO fills(run_id, ts_ms, symbol, side, qty, price, fee) VALUES(?, ?, ?, ?, ?, ?, ?)`),
		f.RunID, f.Ts.UnixMilli(), f.Symbol, string(f.Side), f.Qty, f.Price, f.Fee)
	return err
}

// ListFills returns a run's executions in time order.
func (s *SQL) ListFills(ctx context.Context, runID string) ([]execution.Fill, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT ts_ms, symbol, side, qty, price, fee FROM fills WHERE run_id = ? ORDER BY ts_ms, id`), runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []execution.Fill
	for rows.Next() {
		var ts int64
		var side string
		f := execution.Fill{RunID: runID}
		if err := rows.Scan(&ts, &f.Symbol, &side, &f.Qty, &f.Price, &f.Fee); err != nil {
			return nil, err
		}
		f.Side = execution.Side(side)
		f.Ts = time.UnixMilli(ts).UTC()
		out = append(out, f)
	}
	return out, rows.Err()
}

// SaveRun upserts a run summary.
func (s *SQL) SaveRun(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO runs(id, mode, started_at, finished_at, bars, trades, start_equity, end_equity, total_return, sortino, max_drawdown)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		finished_at=excluded.finished_at, bars=excluded.bars, trades=excluded.trades,
		end_equity=excluded.end_equity, total_return=excluded.total_return,
		sortino=excluded.sortino, max_drawdown=excluded.max_drawdown`),
		r.ID, r.Mode, r.StartedAt.UnixMilli(), r.FinishedAt.UnixMilli(), r.Bars, r.Trades,
		r.StartEquity, r.EndEquity, nullable(r.TotalReturn), nullable(r.Sortino), nullable(r.MaxDrawdown))
	return err
}

// GetRun loads a run summary by id.
func (s *SQL) GetRun(ctx context.Context, id string) (Run, error) {
	var r Run
	var started, finished int64
	var total, sortino, dd sql.NullFloat64
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, mode, started_at, finished_at, bars, trades, start_equity, end_equity, total_return, sortino, max_drawdown
		FROM runs WHERE id = ?`), id).
		Scan(&r.ID, &r.Mode, &started, &finished, &r.Bars, &r.Trades, &r.StartEquity, &r.EndEquity, &total, &sortino, &dd)
	if err != nil {
		return Run{}, err
	}
	r.StartedAt = time.UnixMilli(started).UTC()
	r.FinishedAt = time.UnixMilli(finished).UTC()
	r.TotalReturn, r.Sortino, r.MaxDrawdown = orNaN(total), orNaN(sortino), orNaN(dd)
	return r, nil
}

// FillWriter adapts the repository to the paper broker's fill sink; failures are logged.
type FillWriter struct {
	repo *SQL
	log  zerolog.Logger
}

// Fills returns a FillWriter bound to the repository.
func (s *SQL) Fills(log zerolog.Logger) *FillWriter { return &FillWriter{repo: s, log: log} }

// Record persists fill.
func (w *FillWriter) Record(fill execution.Fill) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.repo.InsertFill(ctx, fill); err != nil {
		w.log.Warn().Err(err).Str("symbol", fill.Symbol).Msg("persist fill")
	}
}

func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
