package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var riskCmd = &cobra.Command{
	Use:   "risk",
	Short: "Analyze portfolio tail risk and concentration",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		rep, err := a.AnalyzeRisk()
		if err != nil {
			return err
		}

		fmt.Printf("Portfolio: %s\n", rep.Portfolio)
		fmt.Printf("VaR 95%%:   %.2f%%\n", rep.VaR95)
		fmt.Printf("VaR 99%%:   %.2f%%\n", rep.VaR99)
		fmt.Printf("CVaR 95%%:  %.2f%%\n", rep.CVaR95)
		fmt.Printf("HHI:       %.0f\n", rep.HHI)

		if len(rep.Violations) == 0 {
			fmt.Println("No limit violations.")
			return nil
		}
		fmt.Println("\nViolations:")
		for _, v := range rep.Violations {
			switch v.Kind {
			case "single_position":
				fmt.Printf("  position %s at %.1f%% exceeds %.0f%% limit\n",
					v.Symbol, v.Ratio*100, v.Limit*100)
			case "sector_exposure":
				fmt.Printf("  sector %s at %.1f%% exceeds %.0f%% limit\n",
					v.Sector, v.Ratio*100, v.Limit*100)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(riskCmd)
}
