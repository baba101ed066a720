// Package snapshot rebuilds daily portfolio NAV rows from the trade
// ledger and the price history. The trade log is the source of truth:
// snapshots are a derived, idempotently rebuildable view.
package snapshot

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/lowfen/keel/internal/core"
)

// Store is the persistence collaborator. *store.Store satisfies it.
type Store interface {
	ListFills(portfolio, symbol string) ([]core.Fill, error)
	ListCashFlows(portfolio string) ([]core.CashFlow, error)
	GetClosesBySymbol(symbols []string, start, end time.Time) (map[time.Time]map[string]float64, error)
	UpsertSnapshots(snaps []core.Snapshot) error
	LastSnapshotDate(portfolio string) (time.Time, bool, error)
	ListSnapshots(portfolio string) ([]core.Snapshot, error)
}

// Reconstructor replays one portfolio's fills and cash flows against
// daily closes to produce a NAV snapshot per trading date.
type Reconstructor struct {
	store     Store
	logger    *zap.Logger
	portfolio string
}

func New(st Store, portfolio string, logger *zap.Logger) *Reconstructor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconstructor{store: st, logger: logger, portfolio: portfolio}
}

// event is one ledger entry flattened for replay.
type event struct {
	date      time.Time
	cashDelta float64
	symbol    string
	qtyDelta  float64
}

// Rebuild reconstructs snapshots over [start, end] and upserts them,
// returning the number of rows written. A zero start resumes the day
// after the last existing snapshot, or at the first ledger event when
// none exist. A zero end means today. Each snapshot reflects every fill
// and cash flow dated on or before it, with cash replayed from zero.
func (r *Reconstructor) Rebuild(ctx context.Context, start, end time.Time) (int, error) {
	fills, err := r.store.ListFills(r.portfolio, "")
	if err != nil {
		return 0, err
	}
	flows, err := r.store.ListCashFlows(r.portfolio)
	if err != nil {
		return 0, err
	}
	if len(fills) == 0 && len(flows) == 0 {
		return 0, nil
	}

	events := make([]event, 0, len(fills)+len(flows))
	for _, cf := range flows {
		events = append(events, event{date: core.Day(cf.Date), cashDelta: cf.Amount})
	}
	seen := map[string]bool{}
	for _, f := range fills {
		qty := f.Qty
		if f.Side == core.SideSell {
			qty = -qty
		}
		events = append(events, event{
			date:      core.Day(f.Date),
			cashDelta: f.CashDelta(),
			symbol:    f.Symbol,
			qtyDelta:  qty,
		})
		seen[f.Symbol] = true
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].date.Before(events[j].date)
	})

	first := events[0].date
	if end.IsZero() {
		end = core.Day(time.Now())
	} else {
		end = core.Day(end)
	}

	cutoff := first
	if !start.IsZero() {
		cutoff = core.Day(start)
	} else if last, ok, err := r.store.LastSnapshotDate(r.portfolio); err != nil {
		return 0, err
	} else if ok {
		cutoff = last.AddDate(0, 0, 1)
	}

	symbols := make([]string, 0, len(seen))
	for sym := range seen {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	closes := map[time.Time]map[string]float64{}
	if len(symbols) > 0 {
		closes, err = r.store.GetClosesBySymbol(symbols, first, end)
		if err != nil {
			return 0, err
		}
	}
	dates := r.dateAxis(closes, events, end)

	var (
		cash      float64
		positions = map[string]float64{}
		lastClose = map[string]float64{}
		idx       int
		snaps     []core.Snapshot
	)
	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		for idx < len(events) && !events[idx].date.After(date) {
			ev := events[idx]
			cash += ev.cashDelta
			if ev.symbol != "" {
				positions[ev.symbol] += ev.qtyDelta
				if positions[ev.symbol] < 1e-9 {
					delete(positions, ev.symbol)
				}
			}
			idx++
		}

		for sym, px := range closes[date] {
			lastClose[sym] = px
		}
		invested := 0.0
		for sym, qty := range positions {
			invested += qty * lastClose[sym]
		}

		if date.Before(cutoff) {
			continue
		}
		snaps = append(snaps, core.Snapshot{
			Portfolio: r.portfolio,
			Date:      date,
			Total:     cash + invested,
			Cash:      cash,
			Invested:  invested,
		})
	}

	if len(snaps) == 0 {
		return 0, nil
	}
	if err := r.store.UpsertSnapshots(snaps); err != nil {
		return 0, err
	}
	r.logger.Info("snapshots rebuilt",
		zap.String("portfolio", r.portfolio),
		zap.Int("rows", len(snaps)),
		zap.Time("from", snaps[0].Date),
		zap.Time("to", snaps[len(snaps)-1].Date))
	return len(snaps), nil
}

// dateAxis returns the snapshot dates in ascending order: every trading
// date with a bar for a traded symbol, or the ledger event dates when no
// price data exists (cash-only portfolios).
func (r *Reconstructor) dateAxis(closes map[time.Time]map[string]float64, events []event, end time.Time) []time.Time {
	uniq := map[time.Time]bool{}
	if len(closes) > 0 {
		for d := range closes {
			uniq[d] = true
		}
	} else {
		for _, ev := range events {
			if !ev.date.After(end) {
				uniq[ev.date] = true
			}
		}
	}
	dates := make([]time.Time, 0, len(uniq))
	for d := range uniq {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// Series returns the stored snapshots in date order.
func (r *Reconstructor) Series() ([]core.Snapshot, error) {
	return r.store.ListSnapshots(r.portfolio)
}
