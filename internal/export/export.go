// Package export writes backtest artifacts as CSV through the archive
// storage backend. Artifacts for one run live under backtests/<run-id>/.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/lowfen/keel/internal/backtest"
	"github.com/lowfen/keel/internal/core"
	"github.com/lowfen/keel/internal/storage/archive"
)

// Exporter persists backtest results to cold storage.
type Exporter struct {
	storage archive.Storage
	logger  *zap.Logger
}

func New(storage archive.Storage, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{storage: storage, logger: logger}
}

// WriteResult writes the run's closed trades, orders, and equity curve,
// returning the storage paths written.
func (e *Exporter) WriteResult(ctx context.Context, res *backtest.Result) ([]string, error) {
	base := "backtests/" + res.RunID

	artifacts := []struct {
		path string
		data func() ([]byte, error)
	}{
		{base + "/trades.csv", func() ([]byte, error) { return tradesCSV(res.ClosedTrades) }},
		{base + "/orders.csv", func() ([]byte, error) { return ordersCSV(res.Orders) }},
		{base + "/equity.csv", func() ([]byte, error) { return curveCSV(res.Equity) }},
	}

	paths := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		data, err := a.data()
		if err != nil {
			return paths, fmt.Errorf("encoding %s: %w", a.path, err)
		}
		if err := e.storage.Write(ctx, a.path, data); err != nil {
			return paths, fmt.Errorf("writing %s: %w", a.path, err)
		}
		paths = append(paths, a.path)
	}

	e.logger.Info("backtest artifacts exported",
		zap.String("run_id", res.RunID),
		zap.Strings("paths", paths))
	return paths, nil
}

func tradesCSV(trades []core.ClosedTrade) ([]byte, error) {
	records := [][]string{{
		"symbol", "open_date", "close_date", "qty",
		"open_price", "close_price", "pnl", "pnl_net",
	}}
	for _, tr := range trades {
		records = append(records, []string{
			tr.Symbol,
			tr.OpenDate.Format(core.DateLayout),
			tr.CloseDate.Format(core.DateLayout),
			num(tr.Qty),
			num(tr.OpenPrice),
			num(tr.ClosePrice),
			num(tr.PnL),
			num(tr.PnLNet),
		})
	}
	return encode(records)
}

func ordersCSV(orders []core.Order) ([]byte, error) {
	records := [][]string{{
		"date", "symbol", "side", "qty", "price", "commission",
	}}
	for _, o := range orders {
		records = append(records, []string{
			o.Date.Format(core.DateLayout),
			o.Symbol,
			string(o.Side),
			num(o.Qty),
			num(o.Price),
			num(o.Commission),
		})
	}
	return encode(records)
}

func curveCSV(curve []backtest.Point) ([]byte, error) {
	records := [][]string{{"date", "value"}}
	for _, p := range curve {
		records = append(records, []string{
			p.Date.Format(core.DateLayout),
			num(p.Value),
		})
	}
	return encode(records)
}

func encode(records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
