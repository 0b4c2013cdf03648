package paper

import (
	"testing"

	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/execution"
)

func TestLedgerRecordSnapshot(t *testing.T) {
	ledger := NewLedger(2)
	fill := execution.Fill{Symbol: "XMRUSDT", Qty: 1, Price: 100, Fee: 0.2}
	ledger.Record(fill)

	snapshot := ledger.Snapshot()
	if len(snapshot) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(snapshot))
	}
	if snapshot[0].Symbol != fill.Symbol {
		t.Fatalf("unexpected fill symbol")
	}
	if ledger.Len() != 1 {
		t.Fatalf("expected Len 1, got %d", ledger.Len())
	}

	ledger.Reset()
	if len(ledger.Snapshot()) != 0 || ledger.Totals().Fills != 0 {
		t.Fatalf("expected ledger reset")
	}
}

func TestLedgerEvictsOldestButKeepsTotals(t *testing.T) {
	ledger := NewLedger(2)
	ledger.Record(execution.Fill{Symbol: "XMRUSDT", Qty: 1, Price: 100, Fee: 0.2})
	ledger.Record(execution.Fill{Symbol: "NEOUSDT", Qty: 10, Price: 20, Fee: 0.4})
	ledger.Record(execution.Fill{Symbol: "XMRUSDT", Qty: 2, Price: 100, Fee: 0.4})

	fills := ledger.Snapshot()
	if len(fills) != 2 || fills[0].Symbol != "NEOUSDT" || fills[1].Qty != 2 {
		t.Fatalf("unexpected retained fills %+v", fills)
	}
	if recent := ledger.Recent(1); len(recent) != 1 || recent[0].Qty != 2 {
		t.Fatalf("unexpected recent fills %+v", recent)
	}

	tot := ledger.Totals()
	if tot.Fills != 3 || !near(tot.Notional, 500) || !near(tot.Fees, 1.0) {
		t.Fatalf("unexpected totals %+v", tot)
	}
	if !near(tot.BySymbol["XMRUSDT"], 300) || !near(tot.BySymbol["NEOUSDT"], 200) {
		t.Fatalf("unexpected per-symbol turnover %+v", tot.BySymbol)
	}
	tot.BySymbol["XMRUSDT"] = 0
	if near(ledger.Totals().BySymbol["XMRUSDT"], 0) {
		t.Fatal("Totals must return a copy")
	}
}

func TestLedgerUnbounded(t *testing.T) {
	ledger := NewLedger(0)
	for i := 0; i < 5; i++ {
		ledger.Record(execution.Fill{Symbol: "XMRUSDT", Qty: 1, Price: 1})
	}
	if ledger.Len() != 5 {
		t.Fatalf("expected 5 retained fills, got %d", ledger.Len())
	}
}
