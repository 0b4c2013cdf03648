package paper

import (
	"math"
	"testing"

	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/execution"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestMarketFillBuySellPnL(t *testing.T) {
	account := NewAccount(1000)

	if err := account.MarketFill("XMRUSDT", execution.Buy, 2, 100, 0); err != nil {
		t.Fatalf("unexpected buy error: %v", err)
	}
	if err := account.MarketFill("XMRUSDT", execution.Buy, 2, 110, 0); err != nil {
		t.Fatalf("unexpected second buy error: %v", err)
	}
	snap := account.Snapshot(map[string]float64{"XMRUSDT": 120})
	pos := snap.Positions["XMRUSDT"]
	if !near(pos.Qty, 4) || !near(pos.AvgCost, 105) {
		t.Fatalf("unexpected position %+v", pos)
	}
	if !near(snap.Equity, 1000-420+480) {
		t.Fatalf("unexpected equity %.2f", snap.Equity)
	}

	if err := account.MarketFill("XMRUSDT", execution.Sell, 1, 115, 0); err != nil {
		t.Fatalf("unexpected sell error: %v", err)
	}
	if !near(account.RealizedPnL(), 10) {
		t.Fatalf("expected realized pnl 10 got %.2f", account.RealizedPnL())
	}

	snap = account.Snapshot(map[string]float64{"XMRUSDT": 118})
	if math.Abs(snap.Cash+snap.Positions["XMRUSDT"].MarketValue-snap.Equity) > 1e-6 {
		t.Fatalf("equity did not balance")
	}
}

func TestMarketFillShortAndCover(t *testing.T) {
	account := NewAccount(1000)
	if err := account.MarketFill("NEOUSDT", execution.Sell, 10, 20, 0); err != nil {
		t.Fatalf("unexpected short error: %v", err)
	}
	if account.Position("NEOUSDT") != -10 {
		t.Fatalf("expected short of 10, got %.2f", account.Position("NEOUSDT"))
	}
	if !near(account.Cash(), 1200) {
		t.Fatalf("short proceeds not credited, cash %.2f", account.Cash())
	}
	snap := account.Snapshot(map[string]float64{"NEOUSDT": 18})
	if !near(snap.Equity, 1020) || !near(snap.Positions["NEOUSDT"].Unrealized, 20) {
		t.Fatalf("unexpected short marking %+v", snap)
	}

	if err := account.MarketFill("NEOUSDT", execution.Buy, 10, 18, 0); err != nil {
		t.Fatalf("unexpected cover error: %v", err)
	}
	if account.Position("NEOUSDT") != 0 {
		t.Fatalf("expected flat after cover")
	}
	if !near(account.RealizedPnL(), 20) {
		t.Fatalf("expected realized 20 got %.2f", account.RealizedPnL())
	}
}

func TestMarketFillFlipsThroughZero(t *testing.T) {
	account := NewAccount(1000)
	_ = account.MarketFill("XMRUSDT", execution.Buy, 1, 100, 0)
	if err := account.MarketFill("XMRUSDT", execution.Sell, 3, 90, 0); err != nil {
		t.Fatalf("unexpected flip error: %v", err)
	}
	snap := account.Snapshot(map[string]float64{"XMRUSDT": 90})
	pos := snap.Positions["XMRUSDT"]
	if !near(pos.Qty, -2) || !near(pos.AvgCost, 90) {
		t.Fatalf("unexpected flipped position %+v", pos)
	}
	if !near(account.RealizedPnL(), -10) {
		t.Fatalf("expected realized -10 got %.2f", account.RealizedPnL())
	}
}

func TestMarketFillChargesFees(t *testing.T) {
	account := NewAccount(1000)
	_ = account.MarketFill("XMRUSDT", execution.Buy, 1, 100, 0.2)
	snap := account.Snapshot(map[string]float64{"XMRUSDT": 100})
	if !near(snap.FeesPaid, 0.2) || !near(snap.Equity, 999.8) {
		t.Fatalf("fee not applied: %+v", snap)
	}
}

func TestMarketFillRejectsBadInput(t *testing.T) {
	account := NewAccount(1000)
	if err := account.MarketFill("XMRUSDT", execution.Buy, 0, 100, 0); err == nil {
		t.Fatalf("expected quantity error")
	}
	if err := account.MarketFill("XMRUSDT", execution.Buy, 1, 0, 0); err == nil {
		t.Fatalf("expected price error")
	}
	if err := account.MarketFill("XMRUSDT", execution.Side("HOLD"), 1, 1, 0); err == nil {
		t.Fatalf("expected side error")
	}
}
