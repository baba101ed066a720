package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lowfen/keel/internal/config"
)

var (
	backtestUniverse string
	backtestSymbols  []string
	backtestFrom     string
	backtestTo       string
	backtestExport   bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest [strategy]",
	Short: "Run a strategy backtest over a symbol universe",
	Long:  "Simulate a strategy against historical daily bars with a shared capital pool and show performance statistics",
	Args:  cobra.ExactArgs(1),
	RunE:  runBacktest,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestUniverse, "universe", "", "universe YAML file")
	backtestCmd.Flags().StringSliceVar(&backtestSymbols, "symbol", nil, "symbol to include (repeatable)")
	backtestCmd.Flags().StringVar(&backtestFrom, "from", "", "start date YYYY-MM-DD (required)")
	backtestCmd.Flags().StringVar(&backtestTo, "to", "", "end date YYYY-MM-DD (required)")
	backtestCmd.Flags().BoolVar(&backtestExport, "export", false, "write trade/order CSV artifacts to the archive")

	backtestCmd.MarkFlagRequired("from")
	backtestCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(backtestCmd)
}

func resolveSymbols(universePath string, symbols []string) ([]string, error) {
	if universePath != "" {
		u, err := config.LoadUniverse(universePath)
		if err != nil {
			return nil, err
		}
		return append(u.Symbols, symbols...), nil
	}
	return symbols, nil
}

func runBacktest(cmd *cobra.Command, args []string) error {
	strategyName := args[0]

	from, err := parseDate(backtestFrom, "from")
	if err != nil {
		return err
	}
	to, err := parseDate(backtestTo, "to")
	if err != nil {
		return err
	}
	if to.Before(from) {
		return fmt.Errorf("end date must be after start date")
	}

	symbols, err := resolveSymbols(backtestUniverse, backtestSymbols)
	if err != nil {
		return err
	}
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols: pass --universe or --symbol")
	}

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.RunBacktest(cmd.Context(), strategyName, symbols, from, to, nil, backtestExport)
	if err != nil {
		return err
	}

	fmt.Println("=== Keel Backtest ===")
	fmt.Printf("Run ID:    %s\n", res.RunID)
	fmt.Printf("Strategy:  %s\n", res.Strategy)
	fmt.Printf("Period:    %s to %s\n", from.Format("2006-01-02"), to.Format("2006-01-02"))
	fmt.Printf("Universe:  %d symbols (%d skipped, short history)\n", len(res.Included), len(res.Skipped))
	fmt.Println()
	fmt.Printf("Total return:   %.2f%%\n", res.Metrics.TotalReturn)
	fmt.Printf("Annual return:  %.2f%%\n", res.Metrics.AnnualReturn)
	fmt.Printf("Sharpe ratio:   %.2f\n", res.Metrics.SharpeRatio)
	fmt.Printf("Max drawdown:   %.2f%%\n", res.Metrics.MaxDrawdown)
	fmt.Printf("Trades:         %d (win rate %.1f%%)\n", res.Metrics.TotalTrades, res.Metrics.WinRate)
	return nil
}
