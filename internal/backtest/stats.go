package backtest

import (
	"math"
	"time"

	"github.com/lowfen/keel/internal/core"
)

const tradingDaysPerYear = 252

// EquityCurve converts the raw portfolio value series into the reported
// curve: normalized to 1.0 at the initial capital, or left in capital
// units.
func EquityCurve(values []Point, initial float64, normalize bool) []Point {
	out := make([]Point, len(values))
	copy(out, values)
	if normalize && initial > 0 {
		for i := range out {
			out[i].Value /= initial
		}
	}
	return out
}

// BenchmarkCurve normalizes the index closes to the first close of the
// requested range, truncates to dates at or after firstDate so the
// benchmark starts with the portfolio, and scales like EquityCurve.
func BenchmarkCurve(bars []core.Bar, firstDate time.Time, initial float64, normalize bool) []Point {
	if len(bars) == 0 {
		return nil
	}
	base := bars[0].Close
	if base <= 0 {
		return nil
	}

	out := make([]Point, 0, len(bars))
	for _, b := range bars {
		if b.Date.Before(firstDate) {
			continue
		}
		v := b.Close / base
		if !normalize {
			v *= initial
		}
		out = append(out, Point{Date: b.Date, Value: v})
	}
	return out
}

// Drawdown computes value/runningMax - 1 per point; every value is <= 0.
func Drawdown(curve []Point) []Point {
	out := make([]Point, len(curve))
	runMax := math.Inf(-1)
	for i, p := range curve {
		if p.Value > runMax {
			runMax = p.Value
		}
		v := 0.0
		if runMax > 0 {
			v = p.Value/runMax - 1
		}
		out[i] = Point{Date: p.Date, Value: v}
	}
	return out
}

// Returns derives the per-period return series from the raw value series,
// with the first return taken against the initial capital.
func Returns(values []Point, initial float64) []float64 {
	out := make([]float64, 0, len(values))
	prev := initial
	for _, p := range values {
		if prev > 0 {
			out = append(out, p.Value/prev-1)
		}
		prev = p.Value
	}
	return out
}

// Summarize computes the run's summary metrics from the raw value series
// and the completed round trips. Degenerate inputs yield zeros, never an
// error.
func Summarize(values []Point, initial float64, trades []core.ClosedTrade) Metrics {
	m := Metrics{TotalTrades: len(trades)}

	if len(trades) > 0 {
		wins := 0
		for _, t := range trades {
			if t.IsWin() {
				wins++
			}
		}
		m.WinRate = float64(wins) / float64(len(trades)) * 100
	}

	if len(values) == 0 || initial <= 0 {
		return m
	}

	final := values[len(values)-1].Value
	total := final/initial - 1
	m.TotalReturn = total * 100

	periods := len(values)
	if total > -1 {
		m.AnnualReturn = (math.Pow(1+total, tradingDaysPerYear/float64(periods)) - 1) * 100
	} else {
		m.AnnualReturn = -100
	}

	dd := Drawdown(values)
	for _, p := range dd {
		if -p.Value*100 > m.MaxDrawdown {
			m.MaxDrawdown = -p.Value * 100
		}
	}

	m.SharpeRatio = sharpe(Returns(values, initial))
	return m
}

// sharpe is the annualized mean/stddev of the per-period returns, 0 when
// the series is too short or flat.
func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	std := math.Sqrt(variance / float64(len(returns)-1))
	if std == 0 {
		return 0
	}
	return mean * tradingDaysPerYear / (std * math.Sqrt(tradingDaysPerYear))
}
