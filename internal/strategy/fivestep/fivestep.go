// Package fivestep implements a five-filter momentum entry: long-trend
// slope, 240-day price gain, short-trend slope, volume expansion and dual
// RSI confirmation, with an SMA30 stop.
package fivestep

import (
	"fmt"

	"github.com/lowfen/keel/internal/core"
	"github.com/lowfen/keel/internal/indicator"
	"github.com/lowfen/keel/internal/strategy"
)

// Evaluator requires all five filters to hold on the latest bar.
type Evaluator struct {
	maLong        int
	maShort1      int
	maShort2      int
	maStop        int
	priceFactor   float64
	volMultiplier float64
	volMAPeriod   int
	rsiPeriod1    int
	rsiPeriod2    int
	rsiThreshold1 float64
	rsiThreshold2 float64
}

// New builds the evaluator from params. Defaults: ma_long_period 240,
// ma_short_period_1 60, ma_short_period_2 20, ma_stop 30,
// price_increase_factor 1.05, vol_multiplier 1.2, rsi_period_1 13,
// rsi_period_2 6, rsi_buy_threshold_1 50, rsi_buy_threshold_2 60.
func New(p strategy.Params) strategy.Evaluator {
	return &Evaluator{
		maLong:        p.Int("ma_long_period", 240),
		maShort1:      p.Int("ma_short_period_1", 60),
		maShort2:      p.Int("ma_short_period_2", 20),
		maStop:        p.Int("ma_stop", 30),
		priceFactor:   p.Get("price_increase_factor", 1.05),
		volMultiplier: p.Get("vol_multiplier", 1.2),
		volMAPeriod:   p.Int("vol_ma_period", 20),
		rsiPeriod1:    p.Int("rsi_period_1", 13),
		rsiPeriod2:    p.Int("rsi_period_2", 6),
		rsiThreshold1: p.Get("rsi_buy_threshold_1", 50),
		rsiThreshold2: p.Get("rsi_buy_threshold_2", 60),
	}
}

func (e *Evaluator) Name() string { return "fivestep" }

func (e *Evaluator) Description() string {
	return fmt.Sprintf("five-step momentum entry over MA%d trend, SMA%d stop", e.maLong, e.maStop)
}

// MinBars needs one bar beyond the long window for both the MA slope and
// the 240-day momentum base.
func (e *Evaluator) MinBars() int { return e.maLong + 1 }

func (e *Evaluator) EvaluateAt(history []core.Bar) *strategy.Signal {
	if len(history) < e.MinBars() {
		return nil
	}

	closes := strategy.Closes(history)
	volumes := strategy.Volumes(history)
	n := len(closes)

	maLong := indicator.SMA(closes, e.maLong)
	maShort1 := indicator.SMA(closes, e.maShort1)
	maShort2 := indicator.SMA(closes, e.maShort2)
	volSMA := indicator.SMA(volumes, e.volMAPeriod)
	if len(maLong) < 2 || len(maShort1) < 2 || len(maShort2) < 2 || len(volSMA) == 0 {
		return nil
	}

	last := history[n-1]

	// Step 1: long trend rising.
	if maLong[len(maLong)-1] <= maLong[len(maLong)-2] {
		return nil
	}

	// Step 2: price up by the configured factor over the long window.
	base := closes[n-1-e.maLong]
	if base <= 0 || last.Close < base*e.priceFactor {
		return nil
	}
	momentum := last.Close/base - 1

	// Step 3: at least one short trend rising.
	short1Up := maShort1[len(maShort1)-1] > maShort1[len(maShort1)-2]
	short2Up := maShort2[len(maShort2)-1] > maShort2[len(maShort2)-2]
	if !short1Up && !short2Up {
		return nil
	}

	// Step 4: volume expansion.
	volBase := volSMA[len(volSMA)-1]
	vol := float64(last.Volume)
	if volBase <= 0 || vol <= volBase*e.volMultiplier {
		return nil
	}
	volRatio := vol / volBase

	// Step 5: dual RSI confirmation.
	rsiSlow := indicator.RSI(closes, e.rsiPeriod1)
	rsiFast := indicator.RSI(closes, e.rsiPeriod2)
	rsiSlowNow := rsiSlow[n-1]
	rsiFastNow := rsiFast[n-1]
	if rsiSlowNow <= e.rsiThreshold1 || rsiFastNow <= e.rsiThreshold2 {
		return nil
	}

	maShort2Now := maShort2[len(maShort2)-1]
	ma20Dist := 0.0
	if maShort2Now > 0 {
		ma20Dist = last.Close/maShort2Now - 1
	}

	return &strategy.Signal{
		Symbol:    last.Symbol,
		Date:      last.Date,
		Score:     rsiFastNow,
		Secondary: []float64{volRatio, ma20Dist, momentum},
		Fields: map[string]float64{
			"rsi_fast":  rsiFastNow,
			"rsi_slow":  rsiSlowNow,
			"vol_ratio": volRatio,
			"ma20_dist": ma20Dist,
			"momentum":  momentum,
		},
	}
}

func (e *Evaluator) DecideExit(history []core.Bar, _ strategy.Entry) bool {
	if len(history) < e.maStop {
		return false
	}
	smaStop := indicator.SMA(strategy.Closes(history), e.maStop)
	return history[len(history)-1].Close < smaStop[len(smaStop)-1]
}
