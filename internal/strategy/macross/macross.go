// Package macross implements the SMA20/120 golden cross entry with volume
// confirmation and an SMA30 stop.
package macross

import (
	"fmt"
	"math"

	"github.com/lowfen/keel/internal/core"
	"github.com/lowfen/keel/internal/indicator"
	"github.com/lowfen/keel/internal/strategy"
)

// absoluteMinBars is the floor on history length regardless of the
// configured windows, so long-lookback filters always have clean input.
const absoluteMinBars = 241

// Evaluator buys when the fast SMA crossed above the slow SMA within the
// validity window, the close holds above the fast SMA and volume runs
// above both its short and long averages. It exits when the close drops
// below the stop SMA.
type Evaluator struct {
	fast      int
	slow      int
	stop      int
	volShort  int
	volLong   int
	validDays int
}

// New builds the evaluator from params. Defaults: sma_fast 20, sma_slow
// 120, sma_stop 30, vol_ma_short 3, vol_ma_long 18, signal_valid_days 3.
func New(p strategy.Params) strategy.Evaluator {
	validDays := p.Int("signal_valid_days", 3)
	if validDays < 1 {
		validDays = 1
	}
	return &Evaluator{
		fast:      p.Int("sma_fast", 20),
		slow:      p.Int("sma_slow", 120),
		stop:      p.Int("sma_stop", 30),
		volShort:  p.Int("vol_ma_short", 3),
		volLong:   p.Int("vol_ma_long", 18),
		validDays: validDays,
	}
}

func (e *Evaluator) Name() string { return "macross" }

func (e *Evaluator) Description() string {
	return fmt.Sprintf("SMA%d/%d golden cross with volume confirmation, SMA%d stop", e.fast, e.slow, e.stop)
}

func (e *Evaluator) MinBars() int {
	if e.slow+1 > absoluteMinBars {
		return e.slow + 1
	}
	return absoluteMinBars
}

func (e *Evaluator) EvaluateAt(history []core.Bar) *strategy.Signal {
	if len(history) < e.MinBars() {
		return nil
	}

	closes := strategy.Closes(history)
	volumes := strategy.Volumes(history)

	smaFast := indicator.SMA(closes, e.fast)
	smaSlow := indicator.SMA(closes, e.slow)
	volShort := indicator.SMA(volumes, e.volShort)
	volLong := indicator.SMA(volumes, e.volLong)
	if len(smaSlow) < 2 || len(volShort) == 0 || len(volLong) == 0 {
		return nil
	}

	crossAge := indicator.CrossAboveAge(smaFast, smaSlow)
	if crossAge < 0 || crossAge >= e.validDays {
		return nil
	}

	last := history[len(history)-1]
	fastNow := smaFast[len(smaFast)-1]
	slowNow := smaSlow[len(smaSlow)-1]
	volShortNow := volShort[len(volShort)-1]
	volLongNow := volLong[len(volLong)-1]

	if last.Close < fastNow {
		return nil
	}
	vol := float64(last.Volume)
	if vol <= volShortNow || vol <= volLongNow {
		return nil
	}

	// Smaller divergence from the slow line ranks first, volume ratio
	// breaks ties.
	dist := math.Abs(last.Close/slowNow - 1)
	volRatio := vol / math.Max(volLongNow, 1e-9)

	return &strategy.Signal{
		Symbol:    last.Symbol,
		Date:      last.Date,
		Score:     -dist,
		Secondary: []float64{volRatio},
		Fields: map[string]float64{
			"sma_fast":     fastNow,
			"sma_slow":     slowNow,
			"vol_ma_short": volShortNow,
			"vol_ma_long":  volLongNow,
			"cross_age":    float64(crossAge),
			"vol_ratio":    volRatio,
		},
	}
}

func (e *Evaluator) DecideExit(history []core.Bar, _ strategy.Entry) bool {
	if len(history) < e.stop {
		return false
	}
	smaStop := indicator.SMA(strategy.Closes(history), e.stop)
	return history[len(history)-1].Close < smaStop[len(smaStop)-1]
}
