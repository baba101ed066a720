package backtest

import (
	"time"

	"github.com/lowfen/keel/internal/core"
)

// Config controls one backtest run.
type Config struct {
	InitialCapital float64
	MaxPositions   int
	// FeeRate is the proportional commission charged on every fill.
	FeeRate float64
	// Slippage is applied against the fill: buys execute above the close,
	// sells below it.
	Slippage float64
	// MinBars is the global history floor; the evaluator's own minimum
	// applies on top when larger.
	MinBars   int
	Benchmark string
	// Normalize reports equity curves starting at 1.0 instead of scaled
	// to the initial capital.
	Normalize bool
}

// Point is one date-indexed value of a curve.
type Point struct {
	Date  time.Time
	Value float64
}

// Metrics summarizes a backtest run.
type Metrics struct {
	TotalReturn  float64 // percent
	AnnualReturn float64 // percent
	SharpeRatio  float64
	MaxDrawdown  float64 // percent, reported positive
	TotalTrades  int
	WinRate      float64 // percent of round trips closed with profit
}

// Result is the complete output of one run.
type Result struct {
	RunID    string
	Strategy string
	Start    time.Time
	End      time.Time

	Metrics           Metrics
	Equity            []Point
	Benchmark         []Point
	EquityDrawdown    []Point
	BenchmarkDrawdown []Point

	ClosedTrades []core.ClosedTrade
	Orders       []core.Order

	Included []string
	Skipped  []string
}
