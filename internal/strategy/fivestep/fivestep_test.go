package fivestep

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowfen/keel/internal/core"
	"github.com/lowfen/keel/internal/strategy"
)

func makeBars(closes []float64, volumes []int64) []core.Bar {
	bars := make([]core.Bar, len(closes))
	d := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	for i := range closes {
		bars[i] = core.Bar{
			Symbol: "TEST",
			Date:   d.AddDate(0, 0, i),
			Open:   closes[i],
			High:   closes[i],
			Low:    closes[i],
			Close:  closes[i],
			Volume: volumes[i],
		}
	}
	return bars
}

// uptrendHistory is a strong but not monotonic uptrend: two up days then a
// small pullback, which keeps the RSI high without pinning it at zero
// losses. The last bar is an up day on doubled volume.
func uptrendHistory(n int) ([]float64, []int64) {
	closes := make([]float64, n)
	volumes := make([]int64, n)
	p := 100.0
	closes[0] = p
	volumes[0] = 1000
	for i := 1; i < n; i++ {
		if i%3 == 2 {
			p *= 0.995
		} else {
			p *= 1.02
		}
		closes[i] = p
		volumes[i] = 1000
	}
	volumes[n-1] = 2000
	return closes, volumes
}

func TestEvaluateAt_AllFiltersPass(t *testing.T) {
	closes, volumes := uptrendHistory(250)
	e := New(nil)
	sig := e.EvaluateAt(makeBars(closes, volumes))
	require.NotNil(t, sig)

	// Score is the fast RSI, which a persistent uptrend keeps high.
	assert.Greater(t, sig.Score, 60.0)
	require.Len(t, sig.Secondary, 3)
	assert.Greater(t, sig.Secondary[0], 1.2, "volume ratio")
	assert.Greater(t, sig.Secondary[2], 0.05, "240-day momentum")
	assert.Greater(t, sig.Fields["rsi_slow"], 50.0)
}

func TestEvaluateAt_FlatTrendRejected(t *testing.T) {
	closes := make([]float64, 250)
	volumes := make([]int64, 250)
	for i := range closes {
		closes[i] = 100
		volumes[i] = 1000
	}
	volumes[249] = 2000

	e := New(nil)
	assert.Nil(t, e.EvaluateAt(makeBars(closes, volumes)))
}

func TestEvaluateAt_NoVolumeExpansion(t *testing.T) {
	closes, volumes := uptrendHistory(250)
	volumes[249] = 1000
	e := New(nil)
	assert.Nil(t, e.EvaluateAt(makeBars(closes, volumes)))
}

func TestEvaluateAt_InsufficientHistory(t *testing.T) {
	closes, volumes := uptrendHistory(240)
	e := New(nil)
	assert.Nil(t, e.EvaluateAt(makeBars(closes, volumes)))
}

func TestDecideExit(t *testing.T) {
	closes, volumes := uptrendHistory(250)
	e := New(nil)

	// Uptrend holds above the SMA30 stop.
	assert.False(t, e.DecideExit(makeBars(closes, volumes), strategy.Entry{}))

	// A crash through the stop line triggers the exit.
	closes[249] = closes[248] * 0.7
	assert.True(t, e.DecideExit(makeBars(closes, volumes), strategy.Entry{}))
}

func TestMinBars(t *testing.T) {
	assert.Equal(t, 241, New(nil).MinBars())
	assert.Equal(t, 121, New(strategy.Params{"ma_long_period": 120}).MinBars())
}
