package indicator

import (
	"math"
	"testing"
)

func TestCrossAboveAge_Today(t *testing.T) {
	fast := []float64{9, 9.5, 10.5}
	slow := []float64{10, 10, 10}

	if age := CrossAboveAge(fast, slow); age != 0 {
		t.Errorf("expected cross age 0, got %d", age)
	}
}

func TestCrossAboveAge_TwoBarsAgo(t *testing.T) {
	fast := []float64{9, 10.5, 10.6, 10.7}
	slow := []float64{10, 10, 10, 10}

	if age := CrossAboveAge(fast, slow); age != 2 {
		t.Errorf("expected cross age 2, got %d", age)
	}
}

func TestCrossAboveAge_NoCross(t *testing.T) {
	fast := []float64{11, 11, 11}
	slow := []float64{10, 10, 10}

	if age := CrossAboveAge(fast, slow); age != -1 {
		t.Errorf("expected -1 for no cross, got %d", age)
	}
}

func TestCrossAboveAge_UnequalLengths(t *testing.T) {
	// Tail-aligned: only the overlapping tail is scanned.
	fast := []float64{1, 2, 3, 9, 10.5}
	slow := []float64{10, 10}

	if age := CrossAboveAge(fast, slow); age != 0 {
		t.Errorf("expected cross age 0 on tail, got %d", age)
	}
}

func TestQuantile(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}

	if q := Quantile(xs, 0.5); q != 3 {
		t.Errorf("median = %f, want 3", q)
	}
	if q := Quantile(xs, 0); q != 1 {
		t.Errorf("q0 = %f, want 1", q)
	}
	if q := Quantile(xs, 1); q != 5 {
		t.Errorf("q1 = %f, want 5", q)
	}
	// Interpolated: 0.2 quantile of 5 points sits at position 0.8
	if q := Quantile(xs, 0.2); !almostEqual(q, 1.8, 1e-9) {
		t.Errorf("q0.2 = %f, want 1.8", q)
	}
	if !math.IsNaN(Quantile(nil, 0.5)) {
		t.Error("empty input should give NaN")
	}
}

func TestHighestClose(t *testing.T) {
	if h := HighestClose([]float64{3, 9, 4}); h != 9 {
		t.Errorf("expected 9, got %f", h)
	}
	if !math.IsNaN(HighestClose(nil)) {
		t.Error("empty input should give NaN")
	}
}
