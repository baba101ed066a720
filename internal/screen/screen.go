// Package screen runs a strategy evaluator over a symbol universe
// against the latest persisted history. It shares the evaluator code
// path with the backtest loop, so a symbol flagged here is the same
// symbol the backtest would have bought on the most recent bar.
package screen

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lowfen/keel/internal/core"
	"github.com/lowfen/keel/internal/strategy"
)

const defaultWorkers = 8

// Source supplies price history and instrument metadata. *store.Store
// satisfies it.
type Source interface {
	GetBars(symbol string, start, end time.Time) ([]core.Bar, error)
	GetInstrument(symbol string) (*core.Instrument, error)
}

// Row is one screening hit.
type Row struct {
	Symbol string
	Name   string
	Date   time.Time
	Score  float64
	Fields map[string]float64
}

// Screener fans the evaluation out over a bounded worker pool.
type Screener struct {
	source      Source
	logger      *zap.Logger
	workers     int
	historyDays int
}

// New builds a screener. historyDays bounds how far back each symbol's
// history is loaded (calendar days before end); zero loads everything.
func New(source Source, workers, historyDays int, logger *zap.Logger) *Screener {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Screener{source: source, logger: logger, workers: workers, historyDays: historyDays}
}

// Run evaluates the strategy on each symbol's history up to end and
// returns the hits sorted by symbol. Symbols with less history than the
// evaluator requires are skipped.
func (s *Screener) Run(ctx context.Context, eval strategy.Evaluator, symbols []string, end time.Time) ([]Row, error) {
	started := time.Now()
	var loadFrom time.Time
	if s.historyDays > 0 {
		loadFrom = end.AddDate(0, 0, -s.historyDays)
	}
	results := make([]*Row, len(symbols))
	sem := make(chan struct{}, s.workers)

	g, gctx := errgroup.WithContext(ctx)
	for i, sym := range symbols {
		i, sym := i, sym
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			bars, err := s.source.GetBars(sym, loadFrom, end)
			if err != nil {
				s.logger.Warn("screening load failed",
					zap.String("symbol", sym), zap.Error(err))
				return nil
			}
			if len(bars) < eval.MinBars() {
				s.logger.Debug("screening skipped, short history",
					zap.String("symbol", sym), zap.Int("bars", len(bars)))
				return nil
			}

			sig := eval.EvaluateAt(bars)
			if sig == nil {
				return nil
			}
			row := &Row{
				Symbol: sym,
				Date:   sig.Date,
				Score:  sig.Score,
				Fields: sig.Fields,
			}
			if inst, err := s.source.GetInstrument(sym); err == nil {
				row.Name = inst.Name
			}
			results[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(results))
	for _, r := range results {
		if r != nil {
			rows = append(rows, *r)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Symbol < rows[j].Symbol })

	s.logger.Info("screening finished",
		zap.String("strategy", eval.Name()),
		zap.Int("universe", len(symbols)),
		zap.Int("hits", len(rows)),
		zap.Duration("elapsed", time.Since(started)))
	return rows, nil
}
