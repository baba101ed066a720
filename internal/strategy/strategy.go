// Package strategy defines the signal evaluator contract shared by the
// backtest engine and live screening. Both call the same EvaluateAt on the
// same bar history, so a "screen today" result and a "backtest on day t"
// result can never disagree.
package strategy

import (
	"time"

	"github.com/lowfen/keel/internal/core"
)

// Params is a flat name -> value configuration map. Missing keys take the
// evaluator's documented default; unrecognized keys are ignored.
type Params map[string]float64

// Get returns the named parameter or def when absent.
func (p Params) Get(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Int returns the named parameter truncated to int, or def when absent.
func (p Params) Int(key string, def int) int {
	if v, ok := p[key]; ok {
		return int(v)
	}
	return def
}

// Signal is a positive entry decision for the latest bar of a history.
// Candidates are ranked by Score descending, then by each Secondary key
// descending, then by symbol ascending for full determinism.
type Signal struct {
	Symbol    string
	Date      time.Time
	Score     float64
	Secondary []float64
	Fields    map[string]float64
}

// Entry describes the open position an exit decision is made for.
type Entry struct {
	Date  time.Time
	Price float64
}

// Evaluator is one strategy's entry/exit logic over a single instrument's
// bar series. Decisions for the latest bar of history may use only that
// history; evaluators hold no hidden state, so replaying the same history
// always yields the same decision.
type Evaluator interface {
	Name() string
	Description() string

	// MinBars is the minimum history length required before the
	// evaluator can produce any decision. Callers skip instruments with
	// fewer bars.
	MinBars() int

	// EvaluateAt decides entry for the latest bar of history, returning
	// nil when any precondition fails.
	EvaluateAt(history []core.Bar) *Signal

	// DecideExit decides whether the open position described by entry
	// should be closed on the latest bar of history.
	DecideExit(history []core.Bar, entry Entry) bool
}

// Closes extracts the close price series from bars.
func Closes(bars []core.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Volumes extracts the volume series from bars.
func Volumes(bars []core.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = float64(b.Volume)
	}
	return out
}
