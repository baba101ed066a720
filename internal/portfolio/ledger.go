// Package portfolio implements the live portfolio ledger: an authoritative
// cash + positions state machine driven by an append-only trade log, with
// reporting against latest market prices.
package portfolio

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lowfen/keel/internal/core"
)

// Store is the persistence collaborator the ledger writes through.
// *store.Store satisfies it.
type Store interface {
	LoadPositions(portfolio string) (map[string]core.Position, float64, bool, error)
	SavePositions(portfolio string, positions map[string]core.Position, cash float64) error
	InsertFill(f core.Fill) (core.Fill, error)
	ListFills(portfolio, symbol string) ([]core.Fill, error)
	InsertCashFlow(cf core.CashFlow) error
	ListCashFlows(portfolio string) ([]core.CashFlow, error)
	DeletePortfolio(portfolio string) error
	GetInstrument(symbol string) (*core.Instrument, error)
	AddToWatchlist(symbol, name string, addDate time.Time) error
	GetBars(symbol string, start, end time.Time) ([]core.Bar, error)
	LatestCloses(symbols []string, asOf time.Time) (map[string]float64, error)
	LatestBarDate(symbols []string) (time.Time, bool, error)
}

// Config holds the advisory stop parameters used by Report.
type Config struct {
	// TrailingStopFactor is applied to the highest close since the
	// position opened.
	TrailingStopFactor float64
	// EntryStopFactor is applied to the average cost as the stop floor.
	EntryStopFactor float64
	// MAStopWindow is the moving-average window of the MA stop.
	MAStopWindow int
}

// DefaultConfig returns the standard stop parameters.
func DefaultConfig() Config {
	return Config{
		TrailingStopFactor: 0.85,
		EntryStopFactor:    0.92,
		MAStopWindow:       20,
	}
}

// Ledger is one named portfolio's state machine. It starts uninitialized;
// Initialize sets the cash balance, Reset deletes everything. All other
// operations require the initialized state.
//
// One mutator at a time; concurrent reads are safe.
type Ledger struct {
	store  Store
	logger *zap.Logger
	name   string
	cfg    Config

	mu          sync.RWMutex
	cash        float64
	initialized bool
	positions   map[string]core.Position
}

// Open loads the named portfolio's persisted state.
func Open(st Store, name string, cfg Config, logger *zap.Logger) (*Ledger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	positions, cash, initialized, err := st.LoadPositions(name)
	if err != nil {
		return nil, fmt.Errorf("loading portfolio %q: %w", name, err)
	}
	return &Ledger{
		store:       st,
		logger:      logger,
		name:        name,
		cfg:         cfg,
		cash:        cash,
		initialized: initialized,
		positions:   positions,
	}, nil
}

// Name returns the portfolio identity.
func (l *Ledger) Name() string { return l.name }

// Initialized reports whether the cash balance has been set.
func (l *Ledger) Initialized() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.initialized
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash
}

// Positions returns a copy of the open positions.
func (l *Ledger) Positions() map[string]core.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]core.Position, len(l.positions))
	for k, v := range l.positions {
		out[k] = v
	}
	return out
}

// Initialize sets the starting cash and records it as the first cash
// flow, so NAV reconstruction can replay the balance from zero.
func (l *Ledger) Initialize(amount float64, date time.Time) error {
	if amount <= 0 {
		return fmt.Errorf("initial capital must be positive, got %v", amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.initialized {
		return fmt.Errorf("portfolio %q already initialized", l.name)
	}

	if err := l.store.InsertCashFlow(core.CashFlow{
		Portfolio: l.name,
		Date:      core.Day(date),
		Amount:    amount,
		Note:      "initial capital",
	}); err != nil {
		return err
	}
	if err := l.store.SavePositions(l.name, map[string]core.Position{}, amount); err != nil {
		return err
	}

	l.cash = amount
	l.initialized = true
	l.positions = make(map[string]core.Position)
	l.logger.Info("portfolio initialized",
		zap.String("portfolio", l.name), zap.Float64("cash", amount))
	return nil
}

// Reset deletes the portfolio's trades, cash flows, position state, and
// NAV snapshots, returning it to uninitialized. Irreversible.
func (l *Ledger) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.DeletePortfolio(l.name); err != nil {
		return err
	}
	l.cash = 0
	l.initialized = false
	l.positions = make(map[string]core.Position)
	l.logger.Info("portfolio reset", zap.String("portfolio", l.name))
	return nil
}

// ApplyFill applies one buy or sell: it validates, debits or credits
// cash, updates the position (quantity-weighted average cost on buys,
// cost unchanged on sells), appends the trade record and persists the
// new state. Rejected fills leave the ledger untouched.
func (l *Ledger) ApplyFill(side core.Side, symbol string, price, qty, fee float64, date time.Time) (core.Fill, error) {
	if price <= 0 || qty <= 0 || fee < 0 {
		return core.Fill{}, fmt.Errorf("invalid fill: price=%v qty=%v fee=%v", price, qty, fee)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.initialized {
		return core.Fill{}, core.ErrNotInitialized
	}

	newCash := l.cash
	newPos := l.positions[symbol]
	firstBuy := false

	switch side {
	case core.SideBuy:
		cost := price*qty + fee
		if newCash < cost {
			return core.Fill{}, core.WrapError(core.ErrInsufficientCash,
				fmt.Errorf("need %.2f, have %.2f", cost, newCash))
		}
		newCash -= cost
		if newPos.Qty > 0 {
			totalQty := newPos.Qty + qty
			newPos.AvgCost = (newPos.Qty*newPos.AvgCost + price*qty) / totalQty
			newPos.Qty = totalQty
		} else {
			firstBuy = true
			newPos = core.Position{Symbol: symbol, Qty: qty, AvgCost: price}
		}
	case core.SideSell:
		if newPos.Qty < qty {
			return core.Fill{}, core.WrapError(core.ErrInsufficientPosition,
				fmt.Errorf("%s: hold %v, sell %v", symbol, newPos.Qty, qty))
		}
		newCash += price*qty - fee
		newPos.Qty -= qty
	default:
		return core.Fill{}, fmt.Errorf("unknown side %q", side)
	}

	fill, err := l.store.InsertFill(core.Fill{
		Portfolio: l.name,
		Date:      core.Day(date),
		Symbol:    symbol,
		Side:      side,
		Price:     price,
		Qty:       qty,
		Fee:       fee,
	})
	if err != nil {
		return core.Fill{}, err
	}

	positions := make(map[string]core.Position, len(l.positions)+1)
	for k, v := range l.positions {
		positions[k] = v
	}
	if newPos.Qty > 0 {
		positions[symbol] = newPos
	} else {
		delete(positions, symbol)
	}
	if err := l.store.SavePositions(l.name, positions, newCash); err != nil {
		return core.Fill{}, err
	}

	l.cash = newCash
	l.positions = positions

	if firstBuy {
		l.watch(symbol, fill.Date)
	}
	return fill, nil
}

// watch auto-adds a newly bought instrument to the watchlist.
func (l *Ledger) watch(symbol string, date time.Time) {
	name := ""
	if inst, err := l.store.GetInstrument(symbol); err == nil {
		name = inst.Name
	}
	if err := l.store.AddToWatchlist(symbol, name, date); err != nil {
		l.logger.Warn("auto-watchlist add failed",
			zap.String("symbol", symbol), zap.Error(err))
	}
}

// UpdateCash applies an external deposit (positive) or withdrawal
// (negative), recording it in the cash-flow ledger. Overdrawing fails.
func (l *Ledger) UpdateCash(amount float64, date time.Time, note string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.initialized {
		return core.ErrNotInitialized
	}
	if l.cash+amount < 0 {
		return core.WrapError(core.ErrInsufficientCash,
			fmt.Errorf("withdraw %.2f exceeds balance %.2f", -amount, l.cash))
	}

	if err := l.store.InsertCashFlow(core.CashFlow{
		Portfolio: l.name,
		Date:      core.Day(date),
		Amount:    amount,
		Note:      note,
	}); err != nil {
		return err
	}
	if err := l.store.SavePositions(l.name, l.positions, l.cash+amount); err != nil {
		return err
	}
	l.cash += amount
	return nil
}

// SetTargetPrice records an advisory target price on an open position.
func (l *Ledger) SetTargetPrice(symbol string, price float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.initialized {
		return core.ErrNotInitialized
	}
	pos, ok := l.positions[symbol]
	if !ok {
		return core.WrapError(core.ErrPositionNotFound, fmt.Errorf("%s", symbol))
	}
	if price <= 0 {
		return core.WrapError(core.ErrInvalidTarget, fmt.Errorf("%v", price))
	}

	pos.TargetPrice = price
	positions := make(map[string]core.Position, len(l.positions))
	for k, v := range l.positions {
		positions[k] = v
	}
	positions[symbol] = pos
	if err := l.store.SavePositions(l.name, positions, l.cash); err != nil {
		return err
	}
	l.positions = positions
	return nil
}

// LiquidateAll sells every open position at the supplied latest price,
// skipping instruments with no available price. Returns the number of
// positions liquidated.
func (l *Ledger) LiquidateAll(prices map[string]float64, date time.Time) (int, error) {
	if !l.Initialized() {
		return 0, core.ErrNotInitialized
	}

	symbols := make([]string, 0, len(l.Positions()))
	for sym := range l.Positions() {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	count := 0
	for _, sym := range symbols {
		price, ok := prices[sym]
		if !ok || price <= 0 {
			l.logger.Warn("liquidation skipped, no price",
				zap.String("symbol", sym))
			continue
		}
		qty := l.Positions()[sym].Qty
		if _, err := l.ApplyFill(core.SideSell, sym, price, qty, 0, date); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// TradeHistory returns the portfolio's fills, optionally narrowed to one
// symbol.
func (l *Ledger) TradeHistory(symbol string) ([]core.Fill, error) {
	return l.store.ListFills(l.name, symbol)
}

// CashFlows returns the deposit/withdrawal ledger.
func (l *Ledger) CashFlows() ([]core.CashFlow, error) {
	return l.store.ListCashFlows(l.name)
}
