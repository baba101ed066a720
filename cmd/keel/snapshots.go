package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	snapFrom string
	snapTo   string
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Manage NAV snapshots",
}

var snapshotsRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Reconstruct daily NAV snapshots from the trade ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := parseOptionalDate(snapFrom, "from")
		if err != nil {
			return err
		}
		to, err := parseOptionalDate(snapTo, "to")
		if err != nil {
			return err
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		rows, err := a.RebuildSnapshots(cmd.Context(), from, to)
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %d snapshot rows\n", rows)
		return nil
	},
}

func init() {
	snapshotsRebuildCmd.Flags().StringVar(&snapFrom, "from", "", "start date YYYY-MM-DD (default: resume after last snapshot)")
	snapshotsRebuildCmd.Flags().StringVar(&snapTo, "to", "", "end date YYYY-MM-DD (default: today)")
	snapshotsCmd.AddCommand(snapshotsRebuildCmd)
	rootCmd.AddCommand(snapshotsCmd)
}
