package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/signal"
)

var t0 = time.Date(2018, 10, 1, 0, 0, 0, 0, time.UTC)

func fill(store *Store, symbol string, step time.Duration, closes ...float64) {
	for i, px := range closes {
		store.Append(signal.Bar{Symbol: symbol, OpenTime: t0.Add(time.Duration(i) * step), Close: px, Volume: 1})
	}
}

func TestHistoryReturnsLatestWindow(t *testing.T) {
	store := NewStore(time.Hour, 0)
	fill(store, "XMRUSDT", time.Hour, 100, 101, 102, 103, 104)

	got, err := store.History(context.Background(), "XMRUSDT", 3, time.Hour)
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	want := []float64{102, 103, 104}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: expected %.0f got %.4f", i, want[i], got[i])
		}
	}
}

func TestHistoryResamplesToLastClose(t *testing.T) {
	store := NewStore(15*time.Minute, 0)
	fill(store, "NEOUSDT", 15*time.Minute, 1, 2, 3, 4, 5, 6, 7, 8)

	got, err := store.History(context.Background(), "NEOUSDT", 2, time.Hour)
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(got) != 2 || got[0] != 4 || got[1] != 8 {
		t.Fatalf("expected hourly closes [4 8], got %v", got)
	}
}

func TestHistoryInsufficient(t *testing.T) {
	store := NewStore(time.Hour, 0)
	fill(store, "XMRUSDT", time.Hour, 100, 101)
	_, err := store.History(context.Background(), "XMRUSDT", 72, time.Hour)
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("expected ErrInsufficientHistory, got %v", err)
	}
}

func TestHistoryUnknownSymbol(t *testing.T) {
	store := NewStore(time.Hour, 0)
	_, err := store.History(context.Background(), "DOGEUSDT", 1, time.Hour)
	if !errors.Is(err, ErrUnknownSymbol) {
		t.Fatalf("expected ErrUnknownSymbol, got %v", err)
	}
	store.Track("DOGEUSDT")
	_, err = store.History(context.Background(), "DOGEUSDT", 1, time.Hour)
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("expected ErrInsufficientHistory after Track, got %v", err)
	}
}

func TestHistoryRejectsFinerFrequency(t *testing.T) {
	store := NewStore(time.Hour, 0)
	fill(store, "XMRUSDT", time.Hour, 100)
	if _, err := store.History(context.Background(), "XMRUSDT", 1, 30*time.Minute); err == nil {
		t.Fatalf("expected error for frequency finer than base timeframe")
	}
}

func TestAppendRejectsOutOfOrder(t *testing.T) {
	store := NewStore(time.Hour, 0)
	fill(store, "XMRUSDT", time.Hour, 100, 101)
	if store.Append(signal.Bar{Symbol: "XMRUSDT", OpenTime: t0, Close: 99}) {
		t.Fatalf("expected stale bar to be rejected")
	}
	if store.Len("XMRUSDT") != 2 {
		t.Fatalf("expected 2 bars, got %d", store.Len("XMRUSDT"))
	}
	last, ok := store.Last("XMRUSDT")
	if !ok || last.Close != 101 {
		t.Fatalf("unexpected last bar %+v", last)
	}
}

func TestAppendTrimsToMaxBars(t *testing.T) {
	store := NewStore(time.Hour, 3)
	fill(store, "XMRUSDT", time.Hour, 1, 2, 3, 4, 5)
	if store.Len("XMRUSDT") != 3 {
		t.Fatalf("expected trimmed length 3, got %d", store.Len("XMRUSDT"))
	}
}
