package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/lowfen/keel/internal/core"
)

var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Manage the live portfolio ledger",
}

var (
	pfInitCapital float64
	pfInitDate    string

	pfTradePrice float64
	pfTradeQty   float64
	pfTradeFee   float64
	pfTradeDate  string

	pfCashAmount float64
	pfCashNote   string
	pfCashDate   string

	pfResetYes bool
)

var pfInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the portfolio with starting capital",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		l, err := a.Ledger()
		if err != nil {
			return err
		}
		date, err := tradeDate(pfInitDate)
		if err != nil {
			return err
		}
		capital := pfInitCapital
		if !cmd.Flags().Changed("capital") {
			capital = a.Config().Portfolio.InitialCapital
		}
		if err := l.Initialize(capital, date); err != nil {
			return err
		}
		fmt.Printf("Portfolio %q initialized with %.2f\n", l.Name(), capital)
		return nil
	},
}

var pfTradeCmd = &cobra.Command{
	Use:   "trade [buy|sell] [symbol]",
	Short: "Record an executed trade in the ledger",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		side := core.Side(args[0])
		if side != core.SideBuy && side != core.SideSell {
			return fmt.Errorf("side must be buy or sell, got %q", args[0])
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		l, err := a.Ledger()
		if err != nil {
			return err
		}
		date, err := tradeDate(pfTradeDate)
		if err != nil {
			return err
		}
		fill, err := l.ApplyFill(side, args[1], pfTradePrice, pfTradeQty, pfTradeFee, date)
		if err != nil {
			return err
		}
		a.Metrics().RecordFill(string(side))
		fmt.Printf("Recorded %s %s x%.0f @ %.3f (fill %s), cash %.2f\n",
			side, fill.Symbol, fill.Qty, fill.Price, fill.ID, l.Cash())
		return nil
	},
}

var pfCashCmd = &cobra.Command{
	Use:   "cash",
	Short: "Deposit (positive) or withdraw (negative) cash",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		l, err := a.Ledger()
		if err != nil {
			return err
		}
		date, err := tradeDate(pfCashDate)
		if err != nil {
			return err
		}
		if err := l.UpdateCash(pfCashAmount, date, pfCashNote); err != nil {
			return err
		}
		fmt.Printf("Cash updated by %.2f, balance %.2f\n", pfCashAmount, l.Cash())
		return nil
	},
}

var pfTargetCmd = &cobra.Command{
	Use:   "target [symbol] [price]",
	Short: "Set an advisory target price on an open position",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		price, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid price %q", args[1])
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		l, err := a.Ledger()
		if err != nil {
			return err
		}
		if err := l.SetTargetPrice(args[0], price); err != nil {
			return err
		}
		fmt.Printf("Target for %s set to %.3f\n", args[0], price)
		return nil
	},
}

var pfReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show positions, stops, and sector exposure",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		rep, err := a.PortfolioReport()
		if err != nil {
			return err
		}

		fmt.Printf("Portfolio: %s\n", rep.Portfolio)
		fmt.Printf("Cash:      %.2f\n", rep.Cash)
		fmt.Printf("Total:     %.2f (invested %.2f, %d positions)\n",
			rep.Summary.TotalValue, rep.Summary.InvestedValue, rep.Summary.PositionCount)
		if len(rep.Positions) == 0 {
			return nil
		}

		fmt.Println()
		fmt.Printf("%-12s %-12s %8s %10s %10s %12s %10s %10s %10s\n",
			"SYMBOL", "NAME", "QTY", "AVG COST", "PRICE", "VALUE", "PNL", "TRAIL", "MA STOP")
		for _, p := range rep.Positions {
			fmt.Printf("%-12s %-12s %8.0f %10.3f %10.3f %12.2f %10.2f %10.3f %10.3f\n",
				p.Symbol, p.Name, p.Qty, p.AvgCost, p.CurrentPrice,
				p.MarketValue, p.UnrealizedPnL, p.TrailingStop, p.MAStop)
		}

		if len(rep.Summary.SectorExposure) > 0 {
			fmt.Println("\nSector exposure:")
			for sector, share := range rep.Summary.SectorExposure {
				fmt.Printf("  %-12s %.1f%%\n", sector, share*100)
			}
		}
		return nil
	},
}

var pfLiquidateCmd = &cobra.Command{
	Use:   "liquidate",
	Short: "Sell every position at the latest known close",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		l, err := a.Ledger()
		if err != nil {
			return err
		}

		positions := l.Positions()
		symbols := make([]string, 0, len(positions))
		for sym := range positions {
			symbols = append(symbols, sym)
		}
		prices := map[string]float64{}
		if latest, ok, err := a.Store().LatestBarDate(symbols); err != nil {
			return err
		} else if ok {
			prices, err = a.Store().LatestCloses(symbols, latest)
			if err != nil {
				return err
			}
		}

		count, err := l.LiquidateAll(prices, time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("Liquidated %d of %d positions, cash %.2f\n", count, len(positions), l.Cash())
		return nil
	},
}

var pfResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all trades, cash flows, and snapshots (irreversible)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !pfResetYes {
			return fmt.Errorf("refusing to reset without --yes")
		}
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		l, err := a.Ledger()
		if err != nil {
			return err
		}
		if err := l.Reset(); err != nil {
			return err
		}
		fmt.Printf("Portfolio %q reset\n", l.Name())
		return nil
	},
}

var pfHistoryCmd = &cobra.Command{
	Use:   "history [symbol]",
	Short: "List recorded fills, optionally for one symbol",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		l, err := a.Ledger()
		if err != nil {
			return err
		}
		symbol := ""
		if len(args) == 1 {
			symbol = args[0]
		}
		fills, err := l.TradeHistory(symbol)
		if err != nil {
			return err
		}
		if len(fills) == 0 {
			fmt.Println("No trades.")
			return nil
		}

		fmt.Printf("%-12s %-12s %-5s %10s %10s %8s\n",
			"DATE", "SYMBOL", "SIDE", "PRICE", "QTY", "FEE")
		for _, f := range fills {
			fmt.Printf("%-12s %-12s %-5s %10.3f %10.0f %8.2f\n",
				f.Date.Format("2006-01-02"), f.Symbol, f.Side, f.Price, f.Qty, f.Fee)
		}
		return nil
	},
}

func tradeDate(value string) (time.Time, error) {
	if value == "" {
		return core.Day(time.Now()), nil
	}
	return parseDate(value, "date")
}

func init() {
	pfInitCmd.Flags().Float64Var(&pfInitCapital, "capital", 0, "starting capital (default from config)")
	pfInitCmd.Flags().StringVar(&pfInitDate, "date", "", "value date YYYY-MM-DD (default today)")

	pfTradeCmd.Flags().Float64Var(&pfTradePrice, "price", 0, "execution price (required)")
	pfTradeCmd.Flags().Float64Var(&pfTradeQty, "qty", 0, "quantity (required)")
	pfTradeCmd.Flags().Float64Var(&pfTradeFee, "fee", 0, "commission paid")
	pfTradeCmd.Flags().StringVar(&pfTradeDate, "date", "", "trade date YYYY-MM-DD (default today)")
	pfTradeCmd.MarkFlagRequired("price")
	pfTradeCmd.MarkFlagRequired("qty")

	pfCashCmd.Flags().Float64Var(&pfCashAmount, "amount", 0, "amount, negative to withdraw (required)")
	pfCashCmd.Flags().StringVar(&pfCashNote, "note", "", "free-form note")
	pfCashCmd.Flags().StringVar(&pfCashDate, "date", "", "value date YYYY-MM-DD (default today)")
	pfCashCmd.MarkFlagRequired("amount")

	pfResetCmd.Flags().BoolVar(&pfResetYes, "yes", false, "confirm the reset")

	portfolioCmd.AddCommand(pfInitCmd, pfTradeCmd, pfCashCmd, pfTargetCmd,
		pfReportCmd, pfLiquidateCmd, pfResetCmd, pfHistoryCmd)
	rootCmd.AddCommand(portfolioCmd)
}
