// Package stats implements the series arithmetic behind the spread z-score.
//
// The helpers follow pandas conventions where the two differ from a textbook
// definition: NaN entries are skipped by Mean and StdDev, and StdDev is the
// sample (n-1) estimator. Divisions are never guarded, so degenerate windows
// surface as NaN or ±Inf for the caller to absorb.
package stats

import "math"

// PctChange returns p[i]/p[i-1]-1 for every i >= 1. The undefined leading value is dropped.
func PctChange(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}
	out := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		out[i-1] = prices[i]/prices[i-1] - 1
	}
	return out
}

// Subtract returns a-b elementwise, aligned on the most recent end when lengths differ.
func Subtract(a, b []float64) []float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	a = a[len(a)-n:]
	b = b[len(b)-n:]
	out := make([]float64, n)
	for i := range out {
		out[i] = a[i] - b[i]
	}
	return out
}

// Mean averages the non-NaN values; NaN when there are none.
func Mean(xs []float64) float64 {
	var sum float64
	var n int
	for _, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		sum += x
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// StdDev is the sample standard deviation of the non-NaN values; NaN below two values.
func StdDev(xs []float64) float64 {
	mean := Mean(xs)
	var ss float64
	var n int
	for _, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		d := x - mean
		ss += d * d
		n++
	}
	if n < 2 {
		return math.NaN()
	}
	return math.Sqrt(ss / float64(n-1))
}

// Last returns the final element or NaN for an empty series.
func Last(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return xs[len(xs)-1]
}

// ZScore measures how many standard deviations the latest value sits from the window mean.
// The window includes the latest value.
func ZScore(xs []float64) float64 {
	return (Last(xs) - Mean(xs)) / StdDev(xs)
}

// TwoTailedZ returns the normal quantile z with P(|Z| > z) = p.
func TwoTailedZ(p float64) float64 {
	return math.Sqrt2 * math.Erfinv(1-p)
}
