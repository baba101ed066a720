// Package app wires the Keel components together behind one facade:
// store, strategy registry, backtest engine, ledger, screening, snapshot
// reconstruction, risk analytics, and artifact export.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lowfen/keel/internal/backtest"
	"github.com/lowfen/keel/internal/config"
	"github.com/lowfen/keel/internal/export"
	"github.com/lowfen/keel/internal/metrics"
	"github.com/lowfen/keel/internal/portfolio"
	"github.com/lowfen/keel/internal/risk"
	"github.com/lowfen/keel/internal/screen"
	"github.com/lowfen/keel/internal/snapshot"
	"github.com/lowfen/keel/internal/storage/archive"
	"github.com/lowfen/keel/internal/store"
	"github.com/lowfen/keel/internal/strategy"
	"github.com/lowfen/keel/internal/strategy/fivestep"
	"github.com/lowfen/keel/internal/strategy/macross"
	"github.com/lowfen/keel/internal/strategy/weeklymacd"
)

// App owns the shared handles and exposes the operation surface the CLI
// drives.
type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *store.Store
	registry *strategy.Registry
	metrics  *metrics.Registry
	archive  archive.Storage
}

// New opens the store and builds the component graph from config.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	registry := strategy.NewRegistry()
	registry.Register("macross", macross.New)
	registry.Register("fivestep", fivestep.New)
	registry.Register("weeklymacd", weeklymacd.New)

	arc, err := newArchive(cfg.Archive)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &App{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		registry: registry,
		metrics:  metrics.NewRegistry(),
		archive:  arc,
	}, nil
}

func newArchive(cfg config.ArchiveConfig) (archive.Storage, error) {
	switch cfg.Type {
	case "s3":
		return archive.NewS3(archive.S3Config{
			Bucket:    cfg.S3.Bucket,
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
	default:
		return archive.NewLocalFS(cfg.Path)
	}
}

// Close flushes the metrics textfile, when configured, and releases the
// store handle.
func (a *App) Close() error {
	if a.cfg.Metrics.Enabled && a.cfg.Metrics.Path != "" {
		if err := a.metrics.WriteTextfile(a.cfg.Metrics.Path); err != nil {
			a.logger.Warn("metrics textfile write failed",
				zap.String("path", a.cfg.Metrics.Path), zap.Error(err))
		}
	}
	return a.store.Close()
}

// Config exposes the effective configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Store exposes the persistence layer for data loading tooling.
func (a *App) Store() *store.Store { return a.store }

// Metrics exposes the prometheus registry.
func (a *App) Metrics() *metrics.Registry { return a.metrics }

// Strategies lists the registered strategy identifiers.
func (a *App) Strategies() []string { return a.registry.Names() }

// evaluator builds a strategy instance, layering call-site params over
// the config file's per-strategy params.
func (a *App) evaluator(name string, params strategy.Params) (strategy.Evaluator, error) {
	merged := strategy.Params{}
	if sc, ok := a.cfg.Strategies[name]; ok {
		for k, v := range sc.Params {
			merged[k] = v
		}
	}
	for k, v := range params {
		merged[k] = v
	}
	return a.registry.New(name, merged)
}

// RunBacktest simulates the strategy over the universe in [start, end]
// and, when exportResult is set, writes the run's CSV artifacts to the
// archive backend.
func (a *App) RunBacktest(ctx context.Context, strategyName string, symbols []string, start, end time.Time, params strategy.Params, exportResult bool) (*backtest.Result, error) {
	eval, err := a.evaluator(strategyName, params)
	if err != nil {
		return nil, err
	}

	bc := a.cfg.Backtest
	engine := backtest.NewEngine(a.store, a.logger)

	started := time.Now()
	res, err := engine.Run(ctx, eval, symbols, start, end, backtest.Config{
		InitialCapital: bc.InitialCapital,
		MaxPositions:   bc.MaxPositions,
		FeeRate:        bc.FeeRate,
		Slippage:       bc.SlippagePerc,
		MinBars:        bc.MinBars,
		Benchmark:      bc.Benchmark,
		Normalize:      true,
	})
	elapsed := time.Since(started).Seconds()
	if err != nil {
		a.metrics.RecordBacktest(strategyName, "error", elapsed)
		return nil, err
	}
	a.metrics.RecordBacktest(strategyName, "success", elapsed)

	if exportResult {
		exp := export.New(a.archive, a.logger)
		if _, err := exp.WriteResult(ctx, res); err != nil {
			a.logger.Warn("artifact export failed",
				zap.String("run_id", res.RunID), zap.Error(err))
		}
	}
	return res, nil
}

// RunScreening evaluates the strategy over the universe as of today.
// An empty universe falls back to the stored watchlist.
func (a *App) RunScreening(ctx context.Context, strategyName string, symbols []string, params strategy.Params) ([]screen.Row, error) {
	eval, err := a.evaluator(strategyName, params)
	if err != nil {
		return nil, err
	}
	if len(symbols) == 0 {
		symbols, err = a.store.Watchlist(false)
		if err != nil {
			return nil, err
		}
		a.metrics.SetWatchlistSize(len(symbols))
	}

	sc := screen.New(a.store, a.cfg.Screen.Workers, a.cfg.Screen.HistoryDays, a.logger)
	started := time.Now()
	rows, err := sc.Run(ctx, eval, symbols, time.Now())
	if err != nil {
		return nil, err
	}
	a.metrics.RecordScreening(strategyName, len(symbols), len(rows), time.Since(started).Seconds())
	return rows, nil
}

// Ledger opens the configured live portfolio.
func (a *App) Ledger() (*portfolio.Ledger, error) {
	pc := a.cfg.Portfolio
	return portfolio.Open(a.store, pc.Name, portfolio.Config{
		TrailingStopFactor: pc.TrailingStopFactor,
		EntryStopFactor:    pc.EntryStopFactor,
		MAStopWindow:       pc.MAStopWindow,
	}, a.logger)
}

// PortfolioReport builds the live portfolio report.
func (a *App) PortfolioReport() (*portfolio.Report, error) {
	l, err := a.Ledger()
	if err != nil {
		return nil, err
	}
	return l.Report()
}

// RebuildSnapshots reconstructs the configured portfolio's NAV series.
func (a *App) RebuildSnapshots(ctx context.Context, start, end time.Time) (int, error) {
	r := snapshot.New(a.store, a.cfg.Portfolio.Name, a.logger)
	rows, err := r.Rebuild(ctx, start, end)
	if err != nil {
		return 0, err
	}
	a.metrics.RecordSnapshotRebuild(rows)
	return rows, nil
}

// AnalyzeRisk runs the risk analyzer over the live portfolio.
func (a *App) AnalyzeRisk() (*risk.Report, error) {
	rep, err := a.PortfolioReport()
	if err != nil {
		return nil, err
	}
	limits := risk.Limits{
		MaxSinglePosition: a.cfg.Risk.MaxSinglePositionRatio,
		MaxSectorExposure: a.cfg.Risk.MaxSectorExposure,
	}
	return risk.New(a.store, limits, a.logger).Analyze(rep)
}
