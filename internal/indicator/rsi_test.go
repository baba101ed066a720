package indicator

import "testing"

func TestRSI_Range(t *testing.T) {
	prices := []float64{44, 44.3, 44.1, 43.6, 44.3, 44.8, 45.1, 45.4, 45.8, 46.1,
		46.0, 46.4, 46.2, 45.6, 46.2, 46.3, 46.3, 46.0, 46.4, 46.2}
	rsi := RSI(prices, 14)

	if len(rsi) != len(prices) {
		t.Fatalf("expected full-length output, got %d", len(rsi))
	}
	for i, v := range rsi {
		if v < 0 || v > 100 {
			t.Errorf("rsi[%d] = %f out of [0, 100]", i, v)
		}
	}
}

func TestRSI_HigherInUptrend(t *testing.T) {
	up := make([]float64, 30)
	down := make([]float64, 30)
	for i := range up {
		up[i] = 100 + float64(i) + float64(i%3) // rising with noise
		down[i] = 130 - float64(i) - float64(i%3)
	}

	rsiUp := RSI(up, 13)
	rsiDown := RSI(down, 13)

	if rsiUp[len(rsiUp)-1] <= rsiDown[len(rsiDown)-1] {
		t.Errorf("uptrend RSI (%f) should exceed downtrend RSI (%f)",
			rsiUp[len(rsiUp)-1], rsiDown[len(rsiDown)-1])
	}
}

func TestRSI_TooShort(t *testing.T) {
	rsi := RSI([]float64{10}, 14)
	if len(rsi) != 1 || rsi[0] != 0 {
		t.Errorf("expected single zero value, got %v", rsi)
	}
}
