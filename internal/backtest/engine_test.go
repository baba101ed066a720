package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowfen/keel/internal/core"
	"github.com/lowfen/keel/internal/strategy"
)

// fakeSource serves bars from memory, ignoring the range bounds.
type fakeSource struct {
	bars  map[string][]core.Bar
	index map[string][]core.Bar
}

func (f *fakeSource) GetBars(symbol string, _, _ time.Time) ([]core.Bar, error) {
	return f.bars[symbol], nil
}

func (f *fakeSource) GetIndexBars(symbol string, _, _ time.Time) ([]core.Bar, error) {
	return f.index[symbol], nil
}

// scriptEval fires scripted entry scores and exits keyed by date and
// symbol, so tests control the decision sequence exactly.
type scriptEval struct {
	minBars int
	entries map[string]map[string]float64
	exits   map[string]map[string]bool
}

func (s *scriptEval) Name() string        { return "script" }
func (s *scriptEval) Description() string { return "scripted test evaluator" }
func (s *scriptEval) MinBars() int        { return s.minBars }

func (s *scriptEval) EvaluateAt(history []core.Bar) *strategy.Signal {
	last := history[len(history)-1]
	score, ok := s.entries[last.Date.Format(core.DateLayout)][last.Symbol]
	if !ok {
		return nil
	}
	return &strategy.Signal{Symbol: last.Symbol, Date: last.Date, Score: score}
}

func (s *scriptEval) DecideExit(history []core.Bar, _ strategy.Entry) bool {
	last := history[len(history)-1]
	return s.exits[last.Date.Format(core.DateLayout)][last.Symbol]
}

func dailyBars(symbol string, start time.Time, closes ...float64) []core.Bar {
	bars := make([]core.Bar, len(closes))
	for i, c := range closes {
		bars[i] = core.Bar{
			Symbol: symbol,
			Date:   start.AddDate(0, 0, i),
			Open:   c, High: c, Low: c, Close: c,
			Volume: 1000,
		}
	}
	return bars
}

var (
	day1 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	day2 = day1.AddDate(0, 0, 1)
)

func TestEngine_SequentialSizingWithinDay(t *testing.T) {
	src := &fakeSource{bars: map[string][]core.Bar{
		"AAA": dailyBars("AAA", day1, 3000),
		"BBB": dailyBars("BBB", day1, 3000),
		"CCC": dailyBars("CCC", day1, 3000),
	}}
	eval := &scriptEval{
		minBars: 1,
		entries: map[string]map[string]float64{
			"2024-01-02": {"AAA": 3, "BBB": 2, "CCC": 1},
		},
	}

	engine := NewEngine(src, nil)
	res, err := engine.Run(context.Background(), eval, []string{"AAA", "BBB", "CCC"}, day1, day2, Config{
		InitialCapital: 300000,
		MaxPositions:   3,
		MinBars:        1,
	})
	require.NoError(t, err)
	require.Len(t, res.Orders, 3)

	// First two admissions get floor(100000/3000) and floor(100500/3000)
	// shares; the third sees all remaining cash in its single slot and
	// gets one share more. A single top-of-day snapshot would give every
	// candidate 33.
	assert.Equal(t, "AAA", res.Orders[0].Symbol)
	assert.Equal(t, 33.0, res.Orders[0].Qty)
	assert.Equal(t, "BBB", res.Orders[1].Symbol)
	assert.Equal(t, 33.0, res.Orders[1].Qty)
	assert.Equal(t, "CCC", res.Orders[2].Symbol)
	assert.Equal(t, 34.0, res.Orders[2].Qty)

	// Every yuan is deployed: equity equals the initial capital.
	require.Len(t, res.Equity, 1)
	assert.InDelta(t, 300000.0, res.Equity[0].Value, 1e-6)
}

func TestEngine_BuyCostWithFeesStaysWithinCash(t *testing.T) {
	src := &fakeSource{bars: map[string][]core.Bar{
		"AAA": dailyBars("AAA", day1, 100),
	}}
	eval := &scriptEval{
		minBars: 1,
		entries: map[string]map[string]float64{"2024-01-02": {"AAA": 1}},
	}

	res, err := NewEngine(src, nil).Run(context.Background(), eval, []string{"AAA"}, day1, day1, Config{
		InitialCapital: 10000,
		MaxPositions:   1,
		FeeRate:        0.01,
		MinBars:        1,
	})
	require.NoError(t, err)
	require.Len(t, res.Orders, 1)

	// The bare slot fits 100 shares, but the commission would overdraw
	// the account; the admitted quantity shrinks until the all-in cost
	// fits.
	order := res.Orders[0]
	assert.Equal(t, 99.0, order.Qty)
	assert.LessOrEqual(t, order.Price*order.Qty+order.Commission, 10000.0)
}

func TestEngine_RoundTripAccounting(t *testing.T) {
	src := &fakeSource{bars: map[string][]core.Bar{
		"AAA": dailyBars("AAA", day1, 100, 90),
	}}
	eval := &scriptEval{
		minBars: 1,
		entries: map[string]map[string]float64{"2024-01-02": {"AAA": 1}},
		exits:   map[string]map[string]bool{"2024-01-03": {"AAA": true}},
	}

	engine := NewEngine(src, nil)
	res, err := engine.Run(context.Background(), eval, []string{"AAA"}, day1, day2, Config{
		InitialCapital: 10000,
		MaxPositions:   2,
		FeeRate:        0.001,
		MinBars:        1,
	})
	require.NoError(t, err)

	require.Len(t, res.Orders, 2)
	buy, sell := res.Orders[0], res.Orders[1]
	assert.Equal(t, core.SideBuy, buy.Side)
	assert.Equal(t, 50.0, buy.Qty)
	assert.InDelta(t, 5.0, buy.Commission, 1e-9)
	assert.Equal(t, core.SideSell, sell.Side)
	assert.InDelta(t, 4.5, sell.Commission, 1e-9)

	require.Len(t, res.ClosedTrades, 1)
	trade := res.ClosedTrades[0]
	assert.Equal(t, day1, trade.OpenDate)
	assert.Equal(t, day2, trade.CloseDate)
	assert.InDelta(t, -500.0, trade.PnL, 1e-9)
	assert.InDelta(t, -509.5, trade.PnLNet, 1e-9)
	assert.False(t, trade.IsWin())

	// Accounting identity: final equity = initial + net PnL of the
	// round trip, and it is all cash again.
	require.Len(t, res.Equity, 2)
	assert.InDelta(t, 9490.5, res.Equity[1].Value, 1e-9)

	assert.Equal(t, 1, res.Metrics.TotalTrades)
	assert.Zero(t, res.Metrics.WinRate)
}

func TestEngine_SkipsInsufficientHistory(t *testing.T) {
	src := &fakeSource{bars: map[string][]core.Bar{
		"AAA": dailyBars("AAA", day1, 100, 101, 102),
		"BBB": dailyBars("BBB", day1, 50, 51),
	}}
	eval := &scriptEval{minBars: 3}

	engine := NewEngine(src, nil)
	res, err := engine.Run(context.Background(), eval, []string{"AAA", "BBB"}, day1, day2, Config{
		InitialCapital: 100000,
		MaxPositions:   5,
		MinBars:        3,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"AAA"}, res.Included)
	assert.Equal(t, []string{"BBB"}, res.Skipped)
}

func TestEngine_CapacityLimitsAdmissions(t *testing.T) {
	src := &fakeSource{bars: map[string][]core.Bar{
		"AAA": dailyBars("AAA", day1, 100),
		"BBB": dailyBars("BBB", day1, 100),
	}}
	eval := &scriptEval{
		minBars: 1,
		entries: map[string]map[string]float64{
			"2024-01-02": {"AAA": 1, "BBB": 2},
		},
	}

	engine := NewEngine(src, nil)
	res, err := engine.Run(context.Background(), eval, []string{"AAA", "BBB"}, day1, day2, Config{
		InitialCapital: 100000,
		MaxPositions:   1,
		MinBars:        1,
	})
	require.NoError(t, err)

	// Only the higher-scored candidate is admitted.
	require.Len(t, res.Orders, 1)
	assert.Equal(t, "BBB", res.Orders[0].Symbol)
}

func TestEngine_TieBreaksBySymbol(t *testing.T) {
	src := &fakeSource{bars: map[string][]core.Bar{
		"ZZZ": dailyBars("ZZZ", day1, 100),
		"AAA": dailyBars("AAA", day1, 100),
	}}
	eval := &scriptEval{
		minBars: 1,
		entries: map[string]map[string]float64{
			"2024-01-02": {"ZZZ": 1, "AAA": 1},
		},
	}

	engine := NewEngine(src, nil)
	res, err := engine.Run(context.Background(), eval, []string{"ZZZ", "AAA"}, day1, day2, Config{
		InitialCapital: 100000,
		MaxPositions:   2,
		MinBars:        1,
	})
	require.NoError(t, err)

	require.Len(t, res.Orders, 2)
	assert.Equal(t, "AAA", res.Orders[0].Symbol)
	assert.Equal(t, "ZZZ", res.Orders[1].Symbol)
}

func TestEngine_BenchmarkAlignedToEquity(t *testing.T) {
	src := &fakeSource{
		bars: map[string][]core.Bar{
			"AAA": dailyBars("AAA", day1, 100, 101),
		},
		index: map[string][]core.Bar{
			"000300.SH": dailyBars("000300.SH", day1, 4000, 4100),
		},
	}
	eval := &scriptEval{minBars: 1}

	engine := NewEngine(src, nil)
	res, err := engine.Run(context.Background(), eval, []string{"AAA"}, day1, day2, Config{
		InitialCapital: 100000,
		MaxPositions:   5,
		MinBars:        1,
		Benchmark:      "000300.SH",
		Normalize:      true,
	})
	require.NoError(t, err)

	require.Len(t, res.Benchmark, 2)
	assert.Equal(t, res.Equity[0].Date, res.Benchmark[0].Date)
	assert.Equal(t, 1.0, res.Benchmark[0].Value)
	assert.InDelta(t, 4100.0/4000, res.Benchmark[1].Value, 1e-12)
	for _, p := range res.BenchmarkDrawdown {
		assert.LessOrEqual(t, p.Value, 0.0)
	}
	assert.NotEmpty(t, res.RunID)
}
