package weeklymacd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowfen/keel/internal/core"
	"github.com/lowfen/keel/internal/strategy"
)

// fridayBars builds one bar per Friday, so every bar is its own trading
// week and the weekly series equals the daily series.
func fridayBars(closes []float64, volumes []int64) []core.Bar {
	bars := make([]core.Bar, len(closes))
	d := time.Date(2015, 1, 2, 0, 0, 0, 0, time.UTC) // a Friday
	for i := range closes {
		bars[i] = core.Bar{
			Symbol: "TEST",
			Date:   d.AddDate(0, 0, 7*i),
			Open:   closes[i],
			High:   closes[i],
			Low:    closes[i],
			Close:  closes[i],
			Volume: volumes[i],
		}
	}
	return bars
}

// dipHistory is a long flat series at 10 with a single-week dip to 9.5
// five weeks before the end. The dip pushes the weekly DIF negative; as
// the series recovers, DIF crosses back above DEA on the final week while
// still below the trailing 20-week 20th percentile and inside the
// zero-axis band.
func dipHistory(extraWeeks int) []core.Bar {
	n := 256 + extraWeeks
	closes := make([]float64, n)
	volumes := make([]int64, n)
	for i := range closes {
		closes[i] = 10
		volumes[i] = 1000
	}
	closes[251] = 9.5
	volumes[n-1] = 2000
	return fridayBars(closes, volumes)
}

func TestEvaluateAt_FullWeeklySignal(t *testing.T) {
	e := New(nil)
	sig := e.EvaluateAt(dipHistory(0))
	require.NotNil(t, sig)

	assert.Equal(t, 1.0, sig.Score, "cross on the latest week")
	assert.Equal(t, 0.0, sig.Fields["signal_age"])
	assert.InDelta(t, -0.0122, sig.Fields["dif"], 0.002)
	require.Len(t, sig.Secondary, 2)
	assert.Greater(t, sig.Secondary[1], 1.0, "volume ratio")
}

func TestEvaluateAt_StaleWeeklySignal(t *testing.T) {
	// Three more flat weeks after the cross exceed the validity window.
	e := New(nil)
	assert.Nil(t, e.EvaluateAt(dipHistory(3)))
}

func TestEvaluateAt_NoVolumeConfirmation(t *testing.T) {
	bars := dipHistory(0)
	bars[len(bars)-1].Volume = 1000
	e := New(nil)
	assert.Nil(t, e.EvaluateAt(bars))
}

func TestEvaluateAt_MonotonicRiseRejected(t *testing.T) {
	closes := make([]float64, 260)
	volumes := make([]int64, 260)
	p := 10.0
	for i := range closes {
		closes[i] = p
		volumes[i] = 1000
		p *= 1.002
	}
	volumes[259] = 2000

	// DIF stays positive and above DEA the whole way: no golden cross.
	e := New(nil)
	assert.Nil(t, e.EvaluateAt(fridayBars(closes, volumes)))
}

func TestEvaluateAt_InsufficientHistory(t *testing.T) {
	closes := make([]float64, 100)
	volumes := make([]int64, 100)
	for i := range closes {
		closes[i] = 10
		volumes[i] = 1000
	}
	e := New(nil)
	assert.Nil(t, e.EvaluateAt(fridayBars(closes, volumes)))
}

func TestWeeklyPoints_GroupsByFridayLabel(t *testing.T) {
	// Mon 2024-01-01 through Wed 2024-01-10: two weeks, the second cut
	// short mid-week.
	var bars []core.Bar
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		d := start.AddDate(0, 0, i)
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		bars = append(bars, core.Bar{Symbol: "TEST", Date: d, Close: float64(i + 1)})
	}

	weeks := weeklyPoints(bars)
	require.Len(t, weeks, 2)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), weeks[0].weekEnds)
	assert.Equal(t, 5.0, weeks[0].close, "Friday close ends the first week")
	assert.Equal(t, 4, weeks[0].lastDay)
	assert.Equal(t, time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC), weeks[1].weekEnds)
	assert.Equal(t, 8.0, weeks[1].close)
}

func TestFridayOf(t *testing.T) {
	fri := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
		assert.Equal(t, fri, fridayOf(d), d.Weekday().String())
	}
	// Weekend days roll to the next week's Friday.
	sat := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC), fridayOf(sat))
}

func TestDecideExit(t *testing.T) {
	closes := make([]float64, 40)
	volumes := make([]int64, 40)
	for i := range closes {
		closes[i] = 10
		volumes[i] = 1000
	}
	e := New(nil)

	closes[39] = 9
	assert.True(t, e.DecideExit(fridayBars(closes, volumes), strategy.Entry{}))

	closes[39] = 11
	assert.False(t, e.DecideExit(fridayBars(closes, volumes), strategy.Entry{}))
}
