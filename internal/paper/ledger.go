package paper

import (
	"sync"

	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/execution"
)

// LedgerTotals aggregates every fill a ledger has seen, including evicted ones.
type LedgerTotals struct {
	Fills    int                `json:"fills"`
	Notional float64            `json:"notional"`
	Fees     float64            `json:"fees"`
	BySymbol map[string]float64 `json:"by_symbol"` // traded notional per symbol
}

// Ledger keeps the most recent fills plus running turnover totals.
type Ledger struct {
	mu       sync.Mutex
	capacity int
	fills    []execution.Fill
	totals   LedgerTotals
}

// NewLedger retains up to capacity fills; capacity <= 0 keeps all of them.
func NewLedger(capacity int) *Ledger {
	if capacity < 0 {
		capacity = 0
	}
	return &Ledger{
		capacity: capacity,
		fills:    make([]execution.Fill, 0, capacity),
		totals:   LedgerTotals{BySymbol: make(map[string]float64)},
	}
}

// Record implements FillRecorder.
func (l *Ledger) Record(fill execution.Fill) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.capacity > 0 && len(l.fills) == l.capacity {
		copy(l.fills, l.fills[1:])
		l.fills = l.fills[:len(l.fills)-1]
	}
	l.fills = append(l.fills, fill)

	n := fill.Notional()
	l.totals.Fills++
	l.totals.Notional += n
	l.totals.Fees += fill.Fee
	l.totals.BySymbol[fill.Symbol] += n
}

// Snapshot returns a copy of the retained fills, oldest first.
func (l *Ledger) Snapshot() []execution.Fill {
	return l.Recent(0)
}

// Recent returns up to n of the newest fills, oldest first. n <= 0 returns all retained.
func (l *Ledger) Recent(n int) []execution.Fill {
	l.mu.Lock()
	defer l.mu.Unlock()
	src := l.fills
	if n > 0 && n < len(src) {
		src = src[len(src)-n:]
	}
	out := make([]execution.Fill, len(src))
	copy(out, src)
	return out
}

// Totals returns a copy of the running aggregates.
func (l *Ledger) Totals() LedgerTotals {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.totals
	out.BySymbol = make(map[string]float64, len(l.totals.BySymbol))
	for k, v := range l.totals.BySymbol {
		out.BySymbol[k] = v
	}
	return out
}

// Len reports how many fills are retained.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fills)
}

// Reset clears retained fills and totals.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fills = l.fills[:0]
	l.totals = LedgerTotals{BySymbol: make(map[string]float64)}
}
