// Package signal standardizes payloads shared between data ingestion, strategy, and recording layers.
package signal

import (
	"encoding/json"
	"math"
	"time"
)

// Bar is one closed candle for a symbol; only the close is consumed by the strategy.
type Bar struct {
	Symbol   string
	OpenTime time.Time
	Close    float64
	Volume   float64
}

// Target asks the order sink to move a symbol to a signed fraction of portfolio equity.
type Target struct {
	Symbol string
	Weight float64 // positive long, negative short, zero flat
}

// Record carries the per-bar diagnostics emitted by the pairs strategy.
type Record struct {
	RunID   string    `json:"run_id,omitempty"`
	Ts      time.Time `json:"ts"`
	AReturn float64   `json:"a_return"`
	BReturn float64   `json:"b_return"`
	Spread  float64   `json:"spread"`
	ZScore  float64   `json:"zscore"`
}

// MarshalJSON writes non-finite diagnostics (NaN z-scores on flat windows) as null.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		RunID   string    `json:"run_id,omitempty"`
		Ts      time.Time `json:"ts"`
		AReturn *float64  `json:"a_return"`
		BReturn *float64  `json:"b_return"`
		Spread  *float64  `json:"spread"`
		ZScore  *float64  `json:"zscore"`
	}{r.RunID, r.Ts, finite(r.AReturn), finite(r.BReturn), finite(r.Spread), finite(r.ZScore)})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
