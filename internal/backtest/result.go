package backtest

import (
	"fmt"
	"math"
	"time"
)

// EquityPoint is the marked account value after a bar.
type EquityPoint struct {
	Ts     time.Time `json:"ts"`
	Equity float64   `json:"equity"`
}

// Result is a finished (or partial) session.
type Result struct {
	RunID       string
	Start       time.Time
	End         time.Time
	Bars        int
	Trades      int
	StartEquity float64
	EndEquity   float64
	TotalReturn float64
	Sortino     float64
	MaxDrawdown float64
	Equity      []EquityPoint
}

// Summary prints the headline performance numbers.
func (r Result) Summary() string {
	return fmt.Sprintf("Total return: %.6f\nSortino coef: %.6f\nMax drawdown: %.6f\n", r.TotalReturn, r.Sortino, r.MaxDrawdown)
}

func periodsPerYear(bar time.Duration) float64 {
	if bar <= 0 {
		return 0
	}
	return float64(365*24*time.Hour) / float64(bar)
}

// Sortino annualises the mean per-period return over its downside deviation (target 0).
// No downside gives +Inf for a positive mean and NaN otherwise.
func Sortino(equity []float64, periods float64) float64 {
	if len(equity) < 2 {
		return math.NaN()
	}
	var sum, downside float64
	n := 0
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			continue
		}
		r := equity[i]/equity[i-1] - 1
		sum += r
		if r < 0 {
			downside += r * r
		}
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	mean := sum / float64(n)
	dd := math.Sqrt(downside / float64(n))
	if dd == 0 {
		if mean > 0 {
			return math.Inf(1)
		}
		return math.NaN()
	}
	return mean / dd * math.Sqrt(periods)
}

// MaxDrawdown returns the most negative peak-to-trough change as a fraction (<= 0).
func MaxDrawdown(equity []float64) float64 {
	var peak, worst float64
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := v/peak - 1; dd < worst {
				worst = dd
			}
		}
	}
	return worst
}
