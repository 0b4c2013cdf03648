// Package metrics exposes Prometheus collectors for bars, orders, and strategy state.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BarsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bars_total", Help: "Count of closed bars ingested"},
		[]string{"symbol"},
	)
	FeedBarsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "feed_bars_received_total", Help: "Closed bars received from a live feed"},
		[]string{"provider", "symbol"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Orders submitted"},
		[]string{"symbol", "side"},
	)
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "decisions_total", Help: "Strategy decisions by action"},
		[]string{"action"},
	)
	ZScore = prometheus.NewGauge(prometheus.GaugeOpts{Name: "spread_zscore", Help: "Latest spread z-score"})
	Spread = prometheus.NewGauge(prometheus.GaugeOpts{Name: "spread_latest", Help: "Latest return spread"})
	Equity = prometheus.NewGauge(prometheus.GaugeOpts{Name: "paper_equity", Help: "Paper account equity at last mark"})
)

func init() {
	prometheus.MustRegister(BarsTotal, FeedBarsTotal, OrdersTotal, DecisionsTotal, ZScore, Spread, Equity)
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
