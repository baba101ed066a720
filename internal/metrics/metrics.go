package metrics

import (
	"bytes"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/expfmt"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	backtestsTotal    *prometheus.CounterVec
	backtestDuration  prometheus.Histogram
	symbolsScreened   *prometheus.CounterVec
	screeningHits     *prometheus.CounterVec
	screeningDuration prometheus.Histogram
	snapshotRebuilds  prometheus.Counter
	snapshotRows      prometheus.Counter
	fillsRecorded     *prometheus.CounterVec
	watchlistSymbols  prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		backtestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keel_backtests_total",
				Help: "Total number of backtests",
			},
			[]string{"strategy", "status"},
		),
		backtestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "keel_backtest_duration_seconds",
				Help:    "Backtest duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
		),
		symbolsScreened: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keel_symbols_screened_total",
				Help: "Total number of symbols evaluated by screening runs",
			},
			[]string{"strategy"},
		),
		screeningHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keel_screening_hits_total",
				Help: "Total number of screening hits",
			},
			[]string{"strategy"},
		),
		screeningDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "keel_screening_duration_seconds",
				Help:    "Screening run duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		snapshotRebuilds: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "keel_snapshot_rebuilds_total",
				Help: "Total number of NAV snapshot rebuilds",
			},
		),
		snapshotRows: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "keel_snapshot_rows_written_total",
				Help: "Total number of NAV snapshot rows written",
			},
		),
		fillsRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keel_fills_recorded_total",
				Help: "Total number of fills recorded in the trade ledger",
			},
			[]string{"side"},
		),
		watchlistSymbols: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "keel_watchlist_symbols",
				Help: "Number of symbols in the watchlist",
			},
		),
	}

	reg.MustRegister(r.backtestsTotal)
	reg.MustRegister(r.backtestDuration)
	reg.MustRegister(r.symbolsScreened)
	reg.MustRegister(r.screeningHits)
	reg.MustRegister(r.screeningDuration)
	reg.MustRegister(r.snapshotRebuilds)
	reg.MustRegister(r.snapshotRows)
	reg.MustRegister(r.fillsRecorded)
	reg.MustRegister(r.watchlistSymbols)

	return r
}

// RecordBacktest records a backtest completion.
func (r *Registry) RecordBacktest(strategy, status string, duration float64) {
	r.backtestsTotal.WithLabelValues(strategy, status).Inc()
	r.backtestDuration.Observe(duration)
}

// RecordScreening records a finished screening run.
func (r *Registry) RecordScreening(strategy string, universe, hits int, duration float64) {
	r.symbolsScreened.WithLabelValues(strategy).Add(float64(universe))
	r.screeningHits.WithLabelValues(strategy).Add(float64(hits))
	r.screeningDuration.Observe(duration)
}

// RecordSnapshotRebuild records a snapshot rebuild and the rows written.
func (r *Registry) RecordSnapshotRebuild(rows int) {
	r.snapshotRebuilds.Inc()
	r.snapshotRows.Add(float64(rows))
}

// RecordFill records a ledger fill.
func (r *Registry) RecordFill(side string) {
	r.fillsRecorded.WithLabelValues(side).Inc()
}

// SetWatchlistSize sets the watchlist size.
func (r *Registry) SetWatchlistSize(size int) {
	r.watchlistSymbols.Set(float64(size))
}

// WriteTextfile dumps the current metric values to path in the Prometheus
// text exposition format, for pickup by node_exporter's textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	families, err := r.Gather()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
