// Package risk computes tail-risk and concentration analytics over a
// portfolio: parametric VaR and historical CVaR from the NAV snapshot
// series, sector concentration via the Herfindahl-Hirschman index, and
// exposure-limit checks.
package risk

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/lowfen/keel/internal/core"
	"github.com/lowfen/keel/internal/portfolio"
)

// Store supplies the snapshot series and the trade log. *store.Store
// satisfies it.
type Store interface {
	ListSnapshots(portfolio string) ([]core.Snapshot, error)
	ListFills(portfolio, symbol string) ([]core.Fill, error)
}

// Limits are the exposure thresholds checked by Analyze.
type Limits struct {
	// MaxSinglePosition is the maximum fraction of total value one
	// position may hold.
	MaxSinglePosition float64
	// MaxSectorExposure is the maximum fraction of invested value one
	// sector may hold.
	MaxSectorExposure float64
}

func DefaultLimits() Limits {
	return Limits{MaxSinglePosition: 0.20, MaxSectorExposure: 0.40}
}

// Violation is one breached exposure limit.
type Violation struct {
	Kind   string // "single_position" or "sector_exposure"
	Symbol string
	Sector string
	Ratio  float64
	Limit  float64
}

// Report is the analyzer output. VaR and CVaR are percentages of
// portfolio value; HHI is on the conventional 0..10000 scale.
type Report struct {
	Portfolio  string
	VaR95      float64
	VaR99      float64
	CVaR95     float64
	HHI        float64
	Violations []Violation
}

// Analyzer evaluates portfolio risk against configured limits.
type Analyzer struct {
	store  Store
	logger *zap.Logger
	limits Limits
}

func New(st Store, limits Limits, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{store: st, logger: logger, limits: limits}
}

// Analyze computes the risk report for the given portfolio report.
func (a *Analyzer) Analyze(rep *portfolio.Report) (*Report, error) {
	returns, err := a.returns(rep.Portfolio, rep.Cash)
	if err != nil {
		return nil, err
	}

	out := &Report{
		Portfolio: rep.Portfolio,
		VaR95:     VaR(returns, 0.95),
		VaR99:     VaR(returns, 0.99),
		CVaR95:    CVaR(returns, 0.95),
		HHI:       HHI(rep.Summary.SectorExposure),
	}

	total := rep.Summary.TotalValue
	if total > 0 {
		for _, pos := range rep.Positions {
			ratio := pos.MarketValue / total
			if ratio > a.limits.MaxSinglePosition {
				out.Violations = append(out.Violations, Violation{
					Kind:   "single_position",
					Symbol: pos.Symbol,
					Ratio:  ratio,
					Limit:  a.limits.MaxSinglePosition,
				})
			}
		}
		sectors := make([]string, 0, len(rep.Summary.SectorExposure))
		for sector := range rep.Summary.SectorExposure {
			sectors = append(sectors, sector)
		}
		sort.Strings(sectors)
		for _, sector := range sectors {
			ratio := rep.Summary.SectorExposure[sector]
			if ratio > a.limits.MaxSectorExposure {
				out.Violations = append(out.Violations, Violation{
					Kind:   "sector_exposure",
					Sector: sector,
					Ratio:  ratio,
					Limit:  a.limits.MaxSectorExposure,
				})
			}
		}
	}

	if len(out.Violations) > 0 {
		a.logger.Warn("risk limits breached",
			zap.String("portfolio", rep.Portfolio),
			zap.Int("violations", len(out.Violations)))
	}
	return out, nil
}

// returns builds the daily return series, preferring the NAV snapshot
// series and falling back to a coarse per-trade approximation when no
// snapshots exist.
func (a *Analyzer) returns(name string, cash float64) ([]float64, error) {
	snaps, err := a.store.ListSnapshots(name)
	if err != nil {
		return nil, err
	}
	if len(snaps) >= 2 {
		out := make([]float64, 0, len(snaps)-1)
		for i := 1; i < len(snaps); i++ {
			prev := snaps[i-1].Total
			if prev > 0 {
				out = append(out, snaps[i].Total/prev-1)
			}
		}
		return out, nil
	}

	fills, err := a.store.ListFills(name, "")
	if err != nil {
		return nil, err
	}
	if len(fills) == 0 {
		return nil, nil
	}
	pnl := make([]float64, len(fills))
	meanAbs := 0.0
	for i, f := range fills {
		if f.Side == core.SideSell {
			pnl[i] = f.Price * f.Qty
		} else {
			pnl[i] = -f.Price * f.Qty
		}
		meanAbs += math.Abs(pnl[i])
	}
	meanAbs /= float64(len(pnl))

	base := cash
	if base == 0 {
		base = meanAbs
	}
	if base == 0 {
		base = 1
	}
	out := make([]float64, len(pnl))
	for i, v := range pnl {
		out[i] = v / base
	}
	return out, nil
}

// VaR is the parametric value at risk at the given confidence level, as
// a percentage: (mean - z(1-confidence) x stddev) x 100.
func VaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean, std := meanStd(returns)
	z := normPPF(1 - confidence)
	return (mean - z*std) * 100
}

// CVaR is the historical conditional value at risk: the absolute mean of
// the returns at or below the (1-confidence) percentile, as a percentage.
func CVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	threshold := percentile(returns, (1-confidence)*100)
	sum, n := 0.0, 0
	for _, r := range returns {
		if r <= threshold {
			sum += r
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return math.Abs(sum/float64(n)) * 100
}

// HHI is the Herfindahl-Hirschman concentration index over sector
// exposure fractions, scaled to 0..10000.
func HHI(exposure map[string]float64) float64 {
	hhi := 0.0
	for _, share := range exposure {
		hhi += share * share
	}
	return hhi * 10000
}

func meanStd(xs []float64) (mean, std float64) {
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	if len(xs) < 2 {
		return mean, 0
	}
	variance := 0.0
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs) - 1)
	return mean, math.Sqrt(variance)
}

// percentile returns the p-th percentile (0..100) with linear
// interpolation between order statistics.
func percentile(xs []float64, p float64) float64 {
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(rank)
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
