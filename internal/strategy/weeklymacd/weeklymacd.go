// Package weeklymacd implements a weekly MACD trend confirmation entry:
// a Friday-close MACD golden cross near the zero axis and in the low
// quantile of its own history, combined with a daily price/volume filter
// and an SMA20 stop.
package weeklymacd

import (
	"math"
	"time"

	"github.com/lowfen/keel/internal/core"
	"github.com/lowfen/keel/internal/indicator"
	"github.com/lowfen/keel/internal/strategy"
)

const (
	minBars    = 241
	minWeeks   = 30
	difRangeLo = -0.05
	difRangeHi = 0.15
	// quantileWeeks is the trailing window (excluding the current week)
	// the DIF low-quantile filter looks at.
	quantileWeeks = 20
)

// Evaluator confirms trend on the weekly MACD and times entry on the
// daily bar.
type Evaluator struct {
	macdFast   int
	macdSlow   int
	macdSignal int
	priceSMA   int
	volShort   int
	volLong    int
	validDays  int
}

// New builds the evaluator from params. Defaults: macd_fast 12, macd_slow
// 26, macd_signal 9, price_sma 20, vol_ma_short 3, vol_ma_long 18,
// signal_valid_days 3.
func New(p strategy.Params) strategy.Evaluator {
	validDays := p.Int("signal_valid_days", 3)
	if validDays < 1 {
		validDays = 1
	}
	return &Evaluator{
		macdFast:   p.Int("macd_fast", 12),
		macdSlow:   p.Int("macd_slow", 26),
		macdSignal: p.Int("macd_signal", 9),
		priceSMA:   p.Int("price_sma", 20),
		volShort:   p.Int("vol_ma_short", 3),
		volLong:    p.Int("vol_ma_long", 18),
		validDays:  validDays,
	}
}

func (e *Evaluator) Name() string { return "weeklymacd" }

func (e *Evaluator) Description() string {
	return "weekly MACD golden cross near zero axis with daily volume filter, SMA20 stop"
}

func (e *Evaluator) MinBars() int { return minBars }

// weekPoint is the Friday-labelled aggregation of one trading week: its
// last close and the daily index of the week's last bar.
type weekPoint struct {
	close    float64
	lastDay  int
	weekEnds time.Time
}

// fridayOf returns the Friday ending the trading week containing d, with
// Saturday and Sunday rolling forward to the next week.
func fridayOf(d time.Time) time.Time {
	days := (int(time.Friday) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, days)
}

func weeklyPoints(history []core.Bar) []weekPoint {
	var weeks []weekPoint
	for i, b := range history {
		label := fridayOf(b.Date)
		if len(weeks) > 0 && weeks[len(weeks)-1].weekEnds.Equal(label) {
			weeks[len(weeks)-1].close = b.Close
			weeks[len(weeks)-1].lastDay = i
			continue
		}
		weeks = append(weeks, weekPoint{close: b.Close, lastDay: i, weekEnds: label})
	}
	return weeks
}

func (e *Evaluator) EvaluateAt(history []core.Bar) *strategy.Signal {
	if len(history) < e.MinBars() {
		return nil
	}

	weeks := weeklyPoints(history)
	if len(weeks) < minWeeks {
		return nil
	}

	weeklyCloses := make([]float64, len(weeks))
	for i, w := range weeks {
		weeklyCloses[i] = w.close
	}
	dif, dea, _ := indicator.MACD(weeklyCloses, e.macdFast, e.macdSlow, e.macdSignal)

	// Most recent week with the full weekly signal: golden cross, DIF in
	// the band around the zero axis, DIF at or below the trailing
	// 20-week 20th percentile.
	signalWeek := -1
	for i := len(weeks) - 1; i >= quantileWeeks; i-- {
		if dif[i-1] > dea[i-1] || dif[i] <= dea[i] {
			continue
		}
		if dif[i] < difRangeLo || dif[i] > difRangeHi {
			continue
		}
		q20 := indicator.Quantile(dif[i-quantileWeeks:i], 0.2)
		if dif[i] > q20 {
			continue
		}
		signalWeek = i
		break
	}
	if signalWeek < 0 {
		return nil
	}

	// Staleness in trading bars since the signal week's last bar.
	n := len(history)
	age := (n - 1) - weeks[signalWeek].lastDay
	if age > e.validDays-1 {
		return nil
	}

	closes := strategy.Closes(history)
	volumes := strategy.Volumes(history)
	priceSMA := indicator.SMA(closes, e.priceSMA)
	volShort := indicator.SMA(volumes, e.volShort)
	volLong := indicator.SMA(volumes, e.volLong)
	if len(priceSMA) == 0 || len(volShort) == 0 || len(volLong) == 0 {
		return nil
	}

	last := history[n-1]
	if last.Close <= priceSMA[len(priceSMA)-1] {
		return nil
	}
	vol := float64(last.Volume)
	volLongNow := volLong[len(volLong)-1]
	if vol <= volShort[len(volShort)-1] || vol <= volLongNow {
		return nil
	}

	latest := len(weeks) - 1
	crossNow := 0.0
	if latest > 0 && dif[latest-1] <= dea[latest-1] && dif[latest] > dea[latest] {
		crossNow = 1
	}
	volRatio := 0.0
	if volLongNow > 0 {
		volRatio = vol / volLongNow
	}

	return &strategy.Signal{
		Symbol:    last.Symbol,
		Date:      last.Date,
		Score:     crossNow,
		Secondary: []float64{-math.Abs(dif[latest]), volRatio},
		Fields: map[string]float64{
			"dif":        dif[latest],
			"dea":        dea[latest],
			"signal_age": float64(age),
			"vol_ratio":  volRatio,
		},
	}
}

func (e *Evaluator) DecideExit(history []core.Bar, _ strategy.Entry) bool {
	if len(history) < e.priceSMA {
		return false
	}
	sma := indicator.SMA(strategy.Closes(history), e.priceSMA)
	return history[len(history)-1].Close < sma[len(sma)-1]
}
