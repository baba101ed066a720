package core

import "time"

// DateLayout is the canonical trading-date format used across the system.
const DateLayout = "2006-01-02"

// Day normalizes a timestamp to its trading date (UTC midnight).
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// AssetType represents the type of instrument a bar series belongs to.
type AssetType string

const (
	AssetStock AssetType = "stock"
	AssetIndex AssetType = "index"
)

// Instrument is a tradable symbol with its listing metadata.
type Instrument struct {
	Symbol string
	Name   string
	Sector string
	Type   AssetType
}

// Bar is one daily OHLCV record for one instrument.
type Bar struct {
	Symbol   string
	Date     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   int64
	Turnover float64
}

// IsValid checks the bar carries positive prices.
func (b Bar) IsValid() bool {
	return b.Symbol != "" && b.Open > 0 && b.High > 0 && b.Low > 0 && b.Close > 0 && b.Volume >= 0
}

// Side is the direction of a fill.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Fill is one executed buy or sell, the atomic unit of the trade ledger.
// Fills are append-only: they are never mutated after being recorded.
type Fill struct {
	ID        string
	Portfolio string
	Date      time.Time
	Symbol    string
	Side      Side
	Price     float64
	Qty       float64
	Fee       float64
}

// CashDelta is the cash change a fill causes: negative for buys, positive
// for sells, fees included.
func (f Fill) CashDelta() float64 {
	if f.Side == SideBuy {
		return -(f.Price*f.Qty + f.Fee)
	}
	return f.Price*f.Qty - f.Fee
}

// Position is the open holding in one instrument. Qty and AvgCost are
// derived caches of the trade ledger; a position that returns to Qty 0 is
// removed, never stored.
type Position struct {
	Symbol      string
	Qty         float64
	AvgCost     float64
	TargetPrice float64 // 0 means unset
}

// MarketValue returns the position value at the given price.
func (p Position) MarketValue(price float64) float64 {
	return p.Qty * price
}

// CashFlow is an external deposit (positive) or withdrawal (negative).
// Cash flows affect NAV reconstruction but never positions.
type CashFlow struct {
	Portfolio string
	Date      time.Time
	Amount    float64
	Note      string
}

// Snapshot is one reconstructed NAV row per (portfolio, date).
type Snapshot struct {
	Portfolio string
	Date      time.Time
	Total     float64
	Cash      float64
	Invested  float64
}

// ClosedTrade is a completed round trip: the fills that opened a position
// paired with the fill that brought it back to zero.
type ClosedTrade struct {
	Symbol     string
	OpenDate   time.Time
	CloseDate  time.Time
	Qty        float64
	OpenPrice  float64
	ClosePrice float64
	PnL        float64 // gross of fees
	PnLNet     float64 // net of fees
}

// IsWin reports whether the round trip was profitable after fees.
func (c ClosedTrade) IsWin() bool {
	return c.PnLNet > 0
}

// Order is the reporting echo of one executed fill inside a backtest run.
type Order struct {
	Date       time.Time
	Symbol     string
	Side       Side
	Qty        float64
	Price      float64
	Commission float64
}
