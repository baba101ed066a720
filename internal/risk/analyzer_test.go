package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowfen/keel/internal/core"
	"github.com/lowfen/keel/internal/portfolio"
	"github.com/lowfen/keel/internal/store"
)

func TestNormPPF(t *testing.T) {
	assert.InDelta(t, -1.6449, normPPF(0.05), 1e-3)
	assert.InDelta(t, -2.3263, normPPF(0.01), 1e-3)
	assert.InDelta(t, 0.0, normPPF(0.5), 1e-9)
	assert.InDelta(t, 1.6449, normPPF(0.95), 1e-3)
}

func TestVaR(t *testing.T) {
	returns := []float64{0.01, -0.02, 0.015, -0.005, 0.02}
	// mean 0.004, sample stddev ~0.016355, z(0.05) ~ -1.6449.
	assert.InDelta(t, 3.09, VaR(returns, 0.95), 0.01)
	assert.Greater(t, VaR(returns, 0.99), VaR(returns, 0.95))
	assert.Zero(t, VaR(nil, 0.95))
}

func TestCVaR(t *testing.T) {
	returns := []float64{0.01, -0.02, 0.015, -0.005, 0.02}
	// The 5th percentile interpolates to -0.017; only -0.02 sits below.
	assert.InDelta(t, 2.0, CVaR(returns, 0.95), 1e-9)
	assert.Zero(t, CVaR(nil, 0.95))
}

func TestHHI(t *testing.T) {
	assert.InDelta(t, 10000.0, HHI(map[string]float64{"白酒": 1}), 1e-9)
	assert.InDelta(t, 5000.0, HHI(map[string]float64{"白酒": 0.5, "银行": 0.5}), 1e-9)
	assert.Zero(t, HHI(nil))
}

func TestPercentile(t *testing.T) {
	xs := []float64{3, 1, 2}
	assert.Equal(t, 1.0, percentile(xs, 0))
	assert.Equal(t, 2.0, percentile(xs, 50))
	assert.Equal(t, 3.0, percentile(xs, 100))
	assert.InDelta(t, 1.5, percentile(xs, 25), 1e-9)
}

func snapDay(n int) time.Time {
	return time.Date(2024, 1, n, 0, 0, 0, 0, time.UTC)
}

func TestAnalyze_UsesSnapshotReturnsAndFlagsViolations(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.UpsertSnapshots([]core.Snapshot{
		{Portfolio: "default", Date: snapDay(2), Total: 100000},
		{Portfolio: "default", Date: snapDay(3), Total: 102000},
		{Portfolio: "default", Date: snapDay(4), Total: 99960},
		{Portfolio: "default", Date: snapDay(5), Total: 101959},
	}))

	rep := &portfolio.Report{
		Portfolio: "default",
		Cash:      20000,
		Positions: []portfolio.PositionReport{
			{Symbol: "600519.SH", Sector: "白酒", MarketValue: 60000},
			{Symbol: "000001.SZ", Sector: "银行", MarketValue: 20000},
		},
		Summary: portfolio.Summary{
			TotalValue:    100000,
			InvestedValue: 80000,
			PositionCount: 2,
			SectorExposure: map[string]float64{
				"白酒": 0.75,
				"银行": 0.25,
			},
		},
	}

	a := New(st, DefaultLimits(), nil)
	out, err := a.Analyze(rep)
	require.NoError(t, err)

	assert.NotZero(t, out.VaR95)
	assert.InDelta(t, (0.75*0.75+0.25*0.25)*10000, out.HHI, 1e-9)

	require.Len(t, out.Violations, 2)
	assert.Equal(t, "single_position", out.Violations[0].Kind)
	assert.Equal(t, "600519.SH", out.Violations[0].Symbol)
	assert.InDelta(t, 0.6, out.Violations[0].Ratio, 1e-9)
	assert.Equal(t, "sector_exposure", out.Violations[1].Kind)
	assert.Equal(t, "白酒", out.Violations[1].Sector)
	assert.InDelta(t, 0.75, out.Violations[1].Ratio, 1e-9)
}

func TestAnalyze_FallsBackToTradeApproximation(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	// No snapshots: the return series comes from per-trade cash deltas
	// scaled by the cash balance.
	_, err = st.InsertFill(core.Fill{
		Portfolio: "default", Date: snapDay(2), Symbol: "600519.SH",
		Side: core.SideBuy, Price: 10, Qty: 100,
	})
	require.NoError(t, err)
	_, err = st.InsertFill(core.Fill{
		Portfolio: "default", Date: snapDay(3), Symbol: "600519.SH",
		Side: core.SideSell, Price: 12, Qty: 100,
	})
	require.NoError(t, err)

	rep := &portfolio.Report{
		Portfolio: "default",
		Cash:      10000,
		Summary:   portfolio.Summary{TotalValue: 10000},
	}
	a := New(st, DefaultLimits(), nil)
	out, err := a.Analyze(rep)
	require.NoError(t, err)

	// Returns are [-0.1, 0.12]: both VaR and CVaR are nonzero.
	assert.NotZero(t, out.VaR95)
	assert.InDelta(t, 10.0, out.CVaR95, 1e-9)
	assert.Empty(t, out.Violations)
}

func TestAnalyze_EmptyPortfolio(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	rep := &portfolio.Report{Portfolio: "default"}
	out, err := New(st, DefaultLimits(), nil).Analyze(rep)
	require.NoError(t, err)

	assert.Zero(t, out.VaR95)
	assert.Zero(t, out.CVaR95)
	assert.Zero(t, out.HHI)
	assert.Empty(t, out.Violations)
}
