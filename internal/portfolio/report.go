package portfolio

import (
	"math"
	"sort"
	"time"

	"github.com/lowfen/keel/internal/core"
	"github.com/lowfen/keel/internal/indicator"
)

// PositionReport is one open position enriched with market data and
// advisory stop references.
type PositionReport struct {
	Symbol        string
	Name          string
	Sector        string
	Qty           float64
	AvgCost       float64
	CurrentPrice  float64
	MarketValue   float64
	UnrealizedPnL float64
	// TrailingStop is the higher of the trailing factor applied to the
	// highest close since the position opened and the entry factor
	// applied to the average cost.
	TrailingStop float64
	// MAStop is the latest short moving average of the close.
	MAStop      float64
	TargetPrice float64
}

// Summary aggregates the report.
type Summary struct {
	TotalValue    float64
	InvestedValue float64
	PositionCount int
	// SectorExposure maps sector to its fraction of invested value.
	SectorExposure map[string]float64
}

// Report is the full portfolio report.
type Report struct {
	Portfolio string
	Cash      float64
	Positions []PositionReport
	Summary   Summary
}

// Report builds the portfolio report against the latest known prices.
// Stop prices are advisory figures, not enforced.
func (l *Ledger) Report() (*Report, error) {
	if !l.Initialized() {
		return nil, core.ErrNotInitialized
	}

	positions := l.Positions()
	cash := l.Cash()

	rep := &Report{
		Portfolio: l.name,
		Cash:      cash,
		Summary: Summary{
			TotalValue:     cash,
			PositionCount:  len(positions),
			SectorExposure: map[string]float64{},
		},
	}
	if len(positions) == 0 {
		return rep, nil
	}

	symbols := make([]string, 0, len(positions))
	for sym := range positions {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	latest, haveLatest, err := l.store.LatestBarDate(symbols)
	if err != nil {
		return nil, err
	}
	prices := map[string]float64{}
	if haveLatest {
		prices, err = l.store.LatestCloses(symbols, latest)
		if err != nil {
			return nil, err
		}
	}

	sectorValue := map[string]float64{}
	for _, sym := range symbols {
		pos := positions[sym]
		pr := PositionReport{
			Symbol:      sym,
			Qty:         pos.Qty,
			AvgCost:     pos.AvgCost,
			TargetPrice: pos.TargetPrice,
		}
		if inst, err := l.store.GetInstrument(sym); err == nil {
			pr.Name = inst.Name
			pr.Sector = inst.Sector
		}

		price := prices[sym]
		pr.CurrentPrice = price
		pr.MarketValue = pos.Qty * price
		if price > 0 {
			pr.UnrealizedPnL = (price - pos.AvgCost) * pos.Qty
		}

		pr.TrailingStop = l.trailingStop(sym, pos.AvgCost, latest, haveLatest)
		pr.MAStop = l.maStop(sym, latest, haveLatest)

		rep.Summary.InvestedValue += pr.MarketValue
		sector := pr.Sector
		if sector == "" {
			sector = "unknown"
		}
		sectorValue[sector] += pr.MarketValue
		rep.Positions = append(rep.Positions, pr)
	}

	rep.Summary.TotalValue = cash + rep.Summary.InvestedValue
	if rep.Summary.InvestedValue > 0 {
		for sector, v := range sectorValue {
			rep.Summary.SectorExposure[sector] = v / rep.Summary.InvestedValue
		}
	}
	return rep, nil
}

// trailingStop computes max(highest close since open x trailing factor,
// avg cost x entry factor). Without price data it falls back to the
// entry floor alone.
func (l *Ledger) trailingStop(symbol string, avgCost float64, latest time.Time, haveLatest bool) float64 {
	floor := avgCost * l.cfg.EntryStopFactor
	if !haveLatest {
		return floor
	}
	openDate, ok := l.positionOpenDate(symbol)
	if !ok {
		return floor
	}
	bars, err := l.store.GetBars(symbol, openDate, latest)
	if err != nil || len(bars) == 0 {
		return floor
	}

	high := bars[0].Close
	for _, b := range bars[1:] {
		if b.Close > high {
			high = b.Close
		}
	}
	return math.Max(high*l.cfg.TrailingStopFactor, floor)
}

// maStop returns the latest MAStopWindow-bar simple moving average of the
// close, 0 when there is not enough history.
func (l *Ledger) maStop(symbol string, latest time.Time, haveLatest bool) float64 {
	if !haveLatest || l.cfg.MAStopWindow <= 0 {
		return 0
	}
	// Fetch a generous window so non-trading days do not starve the MA.
	start := latest.AddDate(0, 0, -4*l.cfg.MAStopWindow)
	bars, err := l.store.GetBars(symbol, start, latest)
	if err != nil || len(bars) < l.cfg.MAStopWindow {
		return 0
	}
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	ma := indicator.SMA(closes, l.cfg.MAStopWindow)
	return ma[len(ma)-1]
}

// positionOpenDate replays the symbol's fills and returns the date the
// current open position started: the last time cumulative quantity rose
// from zero.
func (l *Ledger) positionOpenDate(symbol string) (time.Time, bool) {
	fills, err := l.store.ListFills(l.name, symbol)
	if err != nil {
		return time.Time{}, false
	}

	var cum float64
	var openDate time.Time
	open := false
	for _, f := range fills {
		if f.Side == core.SideBuy {
			if cum <= 1e-9 {
				openDate = f.Date
				open = true
			}
			cum += f.Qty
		} else {
			cum -= f.Qty
			if cum <= 1e-9 {
				open = false
			}
		}
	}
	return openDate, open
}
