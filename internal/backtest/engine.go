// Package backtest runs deterministic daily-bar simulations across many
// instruments sharing one capital pool, and turns the resulting value
// series into performance curves and summary metrics.
package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lowfen/keel/internal/core"
	"github.com/lowfen/keel/internal/strategy"
)

// BarSource supplies the price history a run replays.
type BarSource interface {
	GetBars(symbol string, start, end time.Time) ([]core.Bar, error)
	GetIndexBars(symbol string, start, end time.Time) ([]core.Bar, error)
}

// Engine replays one evaluator day by day over a set of instruments.
type Engine struct {
	source BarSource
	logger *zap.Logger
}

// NewEngine creates an engine over the given bar source.
func NewEngine(source BarSource, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{source: source, logger: logger}
}

// holding is one open position inside a run.
type holding struct {
	qty       float64
	avgCost   float64
	openDate  time.Time
	openPrice float64
	fees      float64
}

// Run executes the backtest. Instruments with insufficient or malformed
// history are excluded up front and reported in Result.Skipped; the run
// itself proceeds date by date in the strict phase order exits, capacity,
// entry scan, ranking, fills.
func (e *Engine) Run(ctx context.Context, eval strategy.Evaluator, symbols []string, start, end time.Time, cfg Config) (*Result, error) {
	minBars := cfg.MinBars
	if eval.MinBars() > minBars {
		minBars = eval.MinBars()
	}

	series := make(map[string][]core.Bar)
	var included, skipped []string
	for _, sym := range sortedUnique(symbols) {
		bars, err := e.source.GetBars(sym, start, end)
		if err != nil {
			e.logger.Warn("excluding instrument, bar load failed",
				zap.String("symbol", sym), zap.Error(err))
			skipped = append(skipped, sym)
			continue
		}
		if len(bars) < minBars {
			skipped = append(skipped, sym)
			continue
		}
		if malformed(bars) {
			e.logger.Warn("excluding instrument, malformed history",
				zap.String("symbol", sym))
			skipped = append(skipped, sym)
			continue
		}
		series[sym] = bars
		included = append(included, sym)
	}

	// Date axis: union of all included trading dates, ascending. Each
	// symbol keeps its own cursor into its series per date.
	index := make(map[string]map[time.Time]int, len(included))
	dateSet := make(map[time.Time]struct{})
	for _, sym := range included {
		index[sym] = make(map[time.Time]int, len(series[sym]))
		for i, b := range series[sym] {
			index[sym][b.Date] = i
			dateSet[b.Date] = struct{}{}
		}
	}
	axis := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		axis = append(axis, d)
	}
	sort.Slice(axis, func(i, j int) bool { return axis[i].Before(axis[j]) })

	cash := cfg.InitialCapital
	positions := make(map[string]*holding)
	lastClose := make(map[string]float64)
	var orders []core.Order
	var closed []core.ClosedTrade
	equity := make([]Point, 0, len(axis))

	for _, d := range axis {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		// Exit pass: same-bar close execution for stop-style exits.
		var sells []string
		for _, sym := range included {
			h := positions[sym]
			if h == nil {
				continue
			}
			t, ok := index[sym][d]
			if !ok {
				continue
			}
			hist := series[sym][:t+1]
			if eval.DecideExit(hist, strategy.Entry{Date: h.openDate, Price: h.openPrice}) {
				sells = append(sells, sym)
			}
		}
		for _, sym := range sells {
			bar := series[sym][index[sym][d]]
			px := bar.Close * (1 - cfg.Slippage)
			h := positions[sym]
			fee := px * h.qty * cfg.FeeRate

			cash += px*h.qty - fee
			orders = append(orders, core.Order{
				Date: d, Symbol: sym, Side: core.SideSell,
				Qty: h.qty, Price: px, Commission: fee,
			})
			closed = append(closed, core.ClosedTrade{
				Symbol:     sym,
				OpenDate:   h.openDate,
				CloseDate:  d,
				Qty:        h.qty,
				OpenPrice:  h.openPrice,
				ClosePrice: px,
				PnL:        (px - h.avgCost) * h.qty,
				PnLNet:     (px-h.avgCost)*h.qty - h.fees - fee,
			})
			delete(positions, sym)
		}

		// Capacity check after exits.
		if len(positions) < cfg.MaxPositions {
			var candidates []*strategy.Signal
			for _, sym := range included {
				if positions[sym] != nil {
					continue
				}
				t, ok := index[sym][d]
				if !ok || t+1 < minBars {
					continue
				}
				if sig := eval.EvaluateAt(series[sym][:t+1]); sig != nil {
					candidates = append(candidates, sig)
				}
			}
			rankCandidates(candidates)

			// Admission recomputes cash and slots after every fill, so
			// later-ranked entries on the same day get smaller slots.
			for _, c := range candidates {
				if len(positions) >= cfg.MaxPositions {
					break
				}
				bar := series[c.Symbol][index[c.Symbol][d]]
				px := bar.Close * (1 + cfg.Slippage)
				qty := SizeOrder(cash, cfg.MaxPositions, len(positions), px)
				for qty > 0 && px*qty*(1+cfg.FeeRate) > cash {
					qty--
				}
				if qty <= 0 {
					continue
				}
				fee := px * qty * cfg.FeeRate
				cost := px*qty + fee
				if cost > cash {
					// Cannot happen given the affordability loop above.
					panic(fmt.Sprintf("backtest: admitted buy exceeds cash: %s cost=%.2f cash=%.2f", c.Symbol, cost, cash))
				}

				cash -= cost
				positions[c.Symbol] = &holding{
					qty:       qty,
					avgCost:   px,
					openDate:  d,
					openPrice: px,
					fees:      fee,
				}
				orders = append(orders, core.Order{
					Date: d, Symbol: c.Symbol, Side: core.SideBuy,
					Qty: qty, Price: px, Commission: fee,
				})
			}
		}

		// End-of-date valuation at the latest known close.
		for _, sym := range included {
			if t, ok := index[sym][d]; ok {
				lastClose[sym] = series[sym][t].Close
			}
		}
		invested := 0.0
		for sym, h := range positions {
			invested += h.qty * lastClose[sym]
		}
		equity = append(equity, Point{Date: d, Value: cash + invested})
	}

	res := &Result{
		RunID:        uuid.NewString(),
		Strategy:     eval.Name(),
		Start:        start,
		End:          end,
		ClosedTrades: closed,
		Orders:       orders,
		Included:     included,
		Skipped:      skipped,
	}

	res.Equity = EquityCurve(equity, cfg.InitialCapital, cfg.Normalize)
	res.EquityDrawdown = Drawdown(res.Equity)
	res.Metrics = Summarize(equity, cfg.InitialCapital, closed)

	if cfg.Benchmark != "" && len(res.Equity) > 0 {
		benchBars, err := e.source.GetIndexBars(cfg.Benchmark, start, end)
		if err != nil {
			e.logger.Warn("benchmark series unavailable",
				zap.String("symbol", cfg.Benchmark), zap.Error(err))
		} else {
			res.Benchmark = BenchmarkCurve(benchBars, res.Equity[0].Date, cfg.InitialCapital, cfg.Normalize)
			res.BenchmarkDrawdown = Drawdown(res.Benchmark)
		}
	}

	e.logger.Info("backtest finished",
		zap.String("run_id", res.RunID),
		zap.String("strategy", res.Strategy),
		zap.Int("included", len(included)),
		zap.Int("skipped", len(skipped)),
		zap.Int("orders", len(orders)),
		zap.Int("round_trips", len(closed)),
	)
	return res, nil
}

// rankCandidates orders entry signals by score descending, secondary keys
// descending, then symbol ascending for determinism.
func rankCandidates(candidates []*strategy.Signal) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		n := len(a.Secondary)
		if len(b.Secondary) < n {
			n = len(b.Secondary)
		}
		for k := 0; k < n; k++ {
			if a.Secondary[k] != b.Secondary[k] {
				return a.Secondary[k] > b.Secondary[k]
			}
		}
		return a.Symbol < b.Symbol
	})
}

func malformed(bars []core.Bar) bool {
	for i, b := range bars {
		if !b.IsValid() {
			return true
		}
		if i > 0 && !bars[i-1].Date.Before(b.Date) {
			return true
		}
	}
	return false
}

func sortedUnique(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
