package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lowfen/keel/internal/core"
)

// UpsertBars writes daily bars, replacing existing (symbol, date) rows.
func (s *Store) UpsertBars(bars []core.Bar) error {
	return s.upsertBars("daily_price", bars)
}

// UpsertIndexBars writes benchmark index bars.
func (s *Store) UpsertIndexBars(bars []core.Bar) error {
	return s.upsertBars("index_daily_price", bars)
}

func (s *Store) upsertBars(table string, bars []core.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(fmt.Sprintf(`
		INSERT OR REPLACE INTO %s (symbol, date, open, high, low, close, volume, turnover)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, table))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.Exec(b.Symbol, b.Date.Format(core.DateLayout),
			b.Open, b.High, b.Low, b.Close, b.Volume, b.Turnover); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetBars returns daily bars for symbol within [start, end], ascending by
// date. The result may be empty.
func (s *Store) GetBars(symbol string, start, end time.Time) ([]core.Bar, error) {
	return s.getBars("daily_price", symbol, start, end)
}

// GetIndexBars returns benchmark index bars within [start, end].
func (s *Store) GetIndexBars(symbol string, start, end time.Time) ([]core.Bar, error) {
	return s.getBars("index_daily_price", symbol, start, end)
}

func (s *Store) getBars(table, symbol string, start, end time.Time) ([]core.Bar, error) {
	rows, err := s.db.Query(fmt.Sprintf(`
		SELECT symbol, date, open, high, low, close, volume, turnover
		FROM %s
		WHERE symbol = ? AND date BETWEEN ? AND ?
		ORDER BY date ASC`, table),
		symbol, start.Format(core.DateLayout), end.Format(core.DateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Bar
	for rows.Next() {
		var b core.Bar
		var date string
		if err := rows.Scan(&b.Symbol, &date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.Turnover); err != nil {
			return nil, err
		}
		b.Date, err = time.Parse(core.DateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("bad date %q for %s: %w", date, symbol, err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// GetClosesBySymbol returns close prices per symbol per date for the given
// symbols in [start, end], keyed by date then symbol. Used by the NAV
// reconstructor to value positions day by day.
func (s *Store) GetClosesBySymbol(symbols []string, start, end time.Time) (map[time.Time]map[string]float64, error) {
	if len(symbols) == 0 {
		return map[time.Time]map[string]float64{}, nil
	}

	query := fmt.Sprintf(`
		SELECT symbol, date, close FROM daily_price
		WHERE symbol IN (%s) AND date BETWEEN ? AND ?`,
		placeholders(len(symbols)))
	args := make([]any, 0, len(symbols)+2)
	for _, sym := range symbols {
		args = append(args, sym)
	}
	args = append(args, start.Format(core.DateLayout), end.Format(core.DateLayout))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[time.Time]map[string]float64)
	for rows.Next() {
		var symbol, date string
		var close float64
		if err := rows.Scan(&symbol, &date, &close); err != nil {
			return nil, err
		}
		d, err := time.Parse(core.DateLayout, date)
		if err != nil {
			return nil, err
		}
		if out[d] == nil {
			out[d] = make(map[string]float64)
		}
		out[d][symbol] = close
	}
	return out, rows.Err()
}

// LatestBarDate returns the most recent trading date with a bar for any of
// the given symbols, or ok=false when none exists.
func (s *Store) LatestBarDate(symbols []string) (time.Time, bool, error) {
	if len(symbols) == 0 {
		return time.Time{}, false, nil
	}

	query := fmt.Sprintf("SELECT MAX(date) FROM daily_price WHERE symbol IN (%s)",
		placeholders(len(symbols)))
	args := make([]any, len(symbols))
	for i, sym := range symbols {
		args[i] = sym
	}

	var date sql.NullString
	if err := s.db.QueryRow(query, args...).Scan(&date); err != nil {
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

// LatestCloses returns the most recent close per symbol up to and
// including asOf.
func (s *Store) LatestCloses(symbols []string, asOf time.Time) (map[string]float64, error) {
	out := make(map[string]float64, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}

	query := fmt.Sprintf(`
		SELECT p.symbol, p.close
		FROM daily_price p
		JOIN (
			SELECT symbol, MAX(date) AS max_date
			FROM daily_price
			WHERE symbol IN (%s) AND date <= ?
			GROUP BY symbol
		) latest ON p.symbol = latest.symbol AND p.date = latest.max_date`,
		placeholders(len(symbols)))
	args := make([]any, 0, len(symbols)+1)
	for _, sym := range symbols {
		args = append(args, sym)
	}
	args = append(args, asOf.Format(core.DateLayout))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var symbol string
		var close float64
		if err := rows.Scan(&symbol, &close); err != nil {
			return nil, err
		}
		out[symbol] = close
	}
	return out, rows.Err()
}

// UpsertInstrument writes instrument metadata.
func (s *Store) UpsertInstrument(inst core.Instrument) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO instruments (symbol, name, sector, asset_type)
		VALUES (?, ?, ?, ?)`,
		inst.Symbol, inst.Name, inst.Sector, string(inst.Type))
	return err
}

// GetInstrument returns instrument metadata, or ErrSymbolNotFound.
func (s *Store) GetInstrument(symbol string) (*core.Instrument, error) {
	var inst core.Instrument
	var assetType string
	err := s.db.QueryRow(`
		SELECT symbol, name, sector, asset_type FROM instruments WHERE symbol = ?`,
		symbol).Scan(&inst.Symbol, &inst.Name, &inst.Sector, &assetType)
	if err == sql.ErrNoRows {
		return nil, core.ErrSymbolNotFound
	}
	if err != nil {
		return nil, err
	}
	inst.Type = core.AssetType(assetType)
	return &inst, nil
}

// Watchlist returns watched symbols in ascending order; poolOnly restricts
// to the trading pool subset.
func (s *Store) Watchlist(poolOnly bool) ([]string, error) {
	query := "SELECT symbol FROM watchlist"
	if poolOnly {
		query += " WHERE in_pool = 1"
	}
	query += " ORDER BY symbol"

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, err
		}
		out = append(out, symbol)
	}
	return out, rows.Err()
}

// AddToWatchlist adds a symbol if not already present.
func (s *Store) AddToWatchlist(symbol, name string, addDate time.Time) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO watchlist (symbol, name, add_date, in_pool)
		VALUES (?, ?, ?, 0)`,
		symbol, name, addDate.Format(core.DateLayout))
	return err
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
