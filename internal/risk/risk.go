// Package risk gates new exposure before it reaches the order sink.
package risk

import "math"

// Limits caps the gross exposure a set of target weights may carry.
type Limits struct {
	MaxGrossLeverage float64 // <= 0 disables the check
}

// Allow reports whether the summed absolute weights stay within the gross leverage cap.
func (l Limits) Allow(weights ...float64) bool {
	if l.MaxGrossLeverage <= 0 {
		return true
	}
	var gross float64
	for _, w := range weights {
		gross += math.Abs(w)
	}
	return gross <= l.MaxGrossLeverage+1e-9
}
