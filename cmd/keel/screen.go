package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	screenUniverse string
	screenSymbols  []string
)

var screenCmd = &cobra.Command{
	Use:   "screen [strategy]",
	Short: "Screen a universe for live entry signals",
	Long:  "Evaluate a strategy over each symbol's full history as of today; the decision path is the same one the backtest uses",
	Args:  cobra.ExactArgs(1),
	RunE:  runScreen,
}

func init() {
	screenCmd.Flags().StringVar(&screenUniverse, "universe", "", "universe YAML file (default: watchlist)")
	screenCmd.Flags().StringSliceVar(&screenSymbols, "symbol", nil, "symbol to include (repeatable)")
	rootCmd.AddCommand(screenCmd)
}

func runScreen(cmd *cobra.Command, args []string) error {
	symbols, err := resolveSymbols(screenUniverse, screenSymbols)
	if err != nil {
		return err
	}

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	rows, err := a.RunScreening(cmd.Context(), args[0], symbols, nil)
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		fmt.Println("No signals.")
		return nil
	}
	fmt.Printf("%-12s %-16s %-12s %s\n", "SYMBOL", "NAME", "DATE", "SCORE")
	for _, r := range rows {
		fmt.Printf("%-12s %-16s %-12s %.4f\n",
			r.Symbol, r.Name, r.Date.Format("2006-01-02"), r.Score)
	}
	return nil
}
