package store

import (
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/lowfen/keel/internal/core"
)

// InsertFill appends one fill to the trade ledger. A missing ID is
// assigned a ULID so ledger order is recoverable lexically.
func (s *Store) InsertFill(f core.Fill) (core.Fill, error) {
	if f.ID == "" {
		f.ID = ulid.Make().String()
	}
	_, err := s.db.Exec(`
		INSERT INTO trades (id, portfolio, date, symbol, side, price, qty, fee)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Portfolio, f.Date.Format(core.DateLayout),
		f.Symbol, string(f.Side), f.Price, f.Qty, f.Fee)
	return f, err
}

// ListFills returns the portfolio's trade ledger ordered by date then
// insertion order. symbol narrows to one instrument when non-empty.
func (s *Store) ListFills(portfolio, symbol string) ([]core.Fill, error) {
	query := `
		SELECT id, portfolio, date, symbol, side, price, qty, fee
		FROM trades WHERE portfolio = ?`
	args := []any{portfolio}
	if symbol != "" {
		query += " AND symbol = ?"
		args = append(args, symbol)
	}
	query += " ORDER BY date ASC, id ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Fill
	for rows.Next() {
		var f core.Fill
		var date, side string
		if err := rows.Scan(&f.ID, &f.Portfolio, &date, &f.Symbol, &side, &f.Price, &f.Qty, &f.Fee); err != nil {
			return nil, err
		}
		f.Date, err = time.Parse(core.DateLayout, date)
		if err != nil {
			return nil, err
		}
		f.Side = core.Side(side)
		out = append(out, f)
	}
	return out, rows.Err()
}

// InsertCashFlow appends one deposit/withdrawal record.
func (s *Store) InsertCashFlow(cf core.CashFlow) error {
	_, err := s.db.Exec(`
		INSERT INTO cash_flows (portfolio, date, amount, note)
		VALUES (?, ?, ?, ?)`,
		cf.Portfolio, cf.Date.Format(core.DateLayout), cf.Amount, cf.Note)
	return err
}

// ListCashFlows returns the portfolio's cash-flow ledger ordered by date
// then insertion order.
func (s *Store) ListCashFlows(portfolio string) ([]core.CashFlow, error) {
	rows, err := s.db.Query(`
		SELECT portfolio, date, amount, note
		FROM cash_flows WHERE portfolio = ?
		ORDER BY date ASC, id ASC`, portfolio)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.CashFlow
	for rows.Next() {
		var cf core.CashFlow
		var date string
		if err := rows.Scan(&cf.Portfolio, &date, &cf.Amount, &cf.Note); err != nil {
			return nil, err
		}
		cf.Date, err = time.Parse(core.DateLayout, date)
		if err != nil {
			return nil, err
		}
		out = append(out, cf)
	}
	return out, rows.Err()
}

// cashRow is the reserved symbol holding the cash balance in the position
// snapshot table. Its absence marks the portfolio uninitialized.
const cashRow = "CASH"

// LoadPositions reads the persisted position snapshot and cash balance.
// initialized is false when no cash row exists.
func (s *Store) LoadPositions(portfolio string) (positions map[string]core.Position, cash float64, initialized bool, err error) {
	rows, err := s.db.Query(`
		SELECT symbol, qty, cost, target_price
		FROM portfolio WHERE portfolio = ?`, portfolio)
	if err != nil {
		return nil, 0, false, err
	}
	defer rows.Close()

	positions = make(map[string]core.Position)
	for rows.Next() {
		var symbol string
		var qty, cost float64
		var target sql.NullFloat64
		if err := rows.Scan(&symbol, &qty, &cost, &target); err != nil {
			return nil, 0, false, err
		}
		if symbol == cashRow {
			cash = cost
			initialized = true
			continue
		}
		positions[symbol] = core.Position{
			Symbol:      symbol,
			Qty:         qty,
			AvgCost:     cost,
			TargetPrice: target.Float64,
		}
	}
	return positions, cash, initialized, rows.Err()
}

// SavePositions replaces the persisted position snapshot and cash balance
// atomically.
func (s *Store) SavePositions(portfolio string, positions map[string]core.Position, cash float64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM portfolio WHERE portfolio = ?", portfolio); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO portfolio (portfolio, symbol, qty, cost, target_price)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range positions {
		var target any
		if p.TargetPrice > 0 {
			target = p.TargetPrice
		}
		if _, err := stmt.Exec(portfolio, p.Symbol, p.Qty, p.AvgCost, target); err != nil {
			return err
		}
	}
	if _, err := stmt.Exec(portfolio, cashRow, 1.0, cash, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// DeletePortfolio removes every record tied to one portfolio identity:
// trade ledger, cash flows, position state, and NAV snapshots.
// Irreversible. A partial delete would leave a reinitialized portfolio
// replaying flows from a dead generation, so all four tables go in one
// transaction.
func (s *Store) DeletePortfolio(portfolio string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"trades", "cash_flows", "portfolio", "portfolio_snapshots"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE portfolio = ?", portfolio); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// UpsertSnapshots writes NAV snapshots, replacing rows for existing dates.
func (s *Store) UpsertSnapshots(snaps []core.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO portfolio_snapshots (portfolio, date, total_value, cash, investment_value)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, snap := range snaps {
		if _, err := stmt.Exec(snap.Portfolio, snap.Date.Format(core.DateLayout),
			snap.Total, snap.Cash, snap.Invested); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListSnapshots returns NAV snapshots ascending by date.
func (s *Store) ListSnapshots(portfolio string) ([]core.Snapshot, error) {
	rows, err := s.db.Query(`
		SELECT portfolio, date, total_value, cash, investment_value
		FROM portfolio_snapshots WHERE portfolio = ?
		ORDER BY date ASC`, portfolio)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Snapshot
	for rows.Next() {
		var snap core.Snapshot
		var date string
		if err := rows.Scan(&snap.Portfolio, &date, &snap.Total, &snap.Cash, &snap.Invested); err != nil {
			return nil, err
		}
		snap.Date, err = time.Parse(core.DateLayout, date)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// LastSnapshotDate returns the most recent snapshot date for incremental
// rebuilds, or ok=false when no snapshot exists.
func (s *Store) LastSnapshotDate(portfolio string) (time.Time, bool, error) {
	var date sql.NullString
	err := s.db.QueryRow(
		"SELECT MAX(date) FROM portfolio_snapshots WHERE portfolio = ?",
		portfolio).Scan(&date)
	if err != nil {
		return time.Time{}, false, err
	}
	if !date.Valid || date.String == "" {
		return time.Time{}, false, nil
	}
	d, err := time.Parse(core.DateLayout, date.String)
	if err != nil {
		return time.Time{}, false, err
	}
	return d, true, nil
}
