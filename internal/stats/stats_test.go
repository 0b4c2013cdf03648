package stats

import (
	"math"
	"testing"
)

func approx(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestPctChange(t *testing.T) {
	prices := []float64{100, 110, 99, 99}
	got := PctChange(prices)
	if len(got) != 3 {
		t.Fatalf("expected 3 returns, got %d", len(got))
	}
	for i := 1; i < len(prices); i++ {
		want := prices[i]/prices[i-1] - 1
		if got[i-1] != want {
			t.Fatalf("return %d: expected %v got %v", i, want, got[i-1])
		}
	}
	if len(PctChange([]float64{5})) != 0 {
		t.Fatalf("single price must yield no returns")
	}
}

func TestPctChangeZeroPriceIsLiteral(t *testing.T) {
	got := PctChange([]float64{0, 1})
	if !math.IsInf(got[0], 1) {
		t.Fatalf("expected +Inf from division by zero, got %v", got[0])
	}
}

func TestSubtractAlignsOnLatest(t *testing.T) {
	got := Subtract([]float64{1, 2, 3, 4}, []float64{1, 1, 1})
	want := []float64{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("unexpected length %d", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: expected %v got %v", i, want[i], got[i])
		}
	}
}

func TestMeanStdDevSkipNaN(t *testing.T) {
	xs := []float64{math.NaN(), 2, 4, 4, 4, 5, 5, 7, 9}
	if m := Mean(xs); m != 5 {
		t.Fatalf("expected mean 5 got %v", m)
	}
	// sample std of 2,4,4,4,5,5,7,9 is sqrt(32/7)
	if s := StdDev(xs); !approx(s, math.Sqrt(32.0/7.0), 1e-12) {
		t.Fatalf("unexpected std %v", s)
	}
	if !math.IsNaN(StdDev([]float64{1})) {
		t.Fatalf("std of one value must be NaN")
	}
	if !math.IsNaN(Mean(nil)) {
		t.Fatalf("mean of empty must be NaN")
	}
}

func TestZScoreUsesFullWindow(t *testing.T) {
	xs := []float64{0.01, -0.02, 0.005, 0.03}
	want := (xs[3] - Mean(xs)) / StdDev(xs)
	if got := ZScore(xs); got != want {
		t.Fatalf("expected %v got %v", want, got)
	}
}

func TestZScoreFlatWindowIsNaN(t *testing.T) {
	for _, xs := range [][]float64{{0, 0, 0}, {0.5, 0.5, 0.5}} {
		if z := ZScore(xs); !math.IsNaN(z) {
			t.Fatalf("expected NaN for zero deviation in %v, got %v", xs, z)
		}
	}
	if z := ZScore(nil); !math.IsNaN(z) {
		t.Fatalf("expected NaN for empty window, got %v", z)
	}
}

func TestZScoreTinyDeviationIsLiteral(t *testing.T) {
	// 0.1 is not exact in binary: the mean lands one ulp off and the deviation is tiny but not zero
	xs := []float64{0.1, 0.1, 0.1}
	sd := StdDev(xs)
	if sd == 0 || math.IsNaN(sd) {
		t.Fatalf("expected a tiny non-zero deviation, got %v", sd)
	}
	want := (xs[2] - Mean(xs)) / sd
	z := ZScore(xs)
	if math.IsNaN(z) || z != want {
		t.Fatalf("expected literal division %v, got %v", want, z)
	}
}

func TestTwoTailedZ(t *testing.T) {
	if z := TwoTailedZ(0.0001); !approx(z, 3.8906, 1e-3) {
		t.Fatalf("entry threshold off: %v", z)
	}
	if z := TwoTailedZ(0.60); !approx(z, 0.5244, 1e-3) {
		t.Fatalf("exit threshold off: %v", z)
	}
	if z := TwoTailedZ(0.05); !approx(z, 1.95996, 1e-4) {
		t.Fatalf("5%% threshold off: %v", z)
	}
}
