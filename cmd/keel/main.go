package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lowfen/keel/internal/app"
	"github.com/lowfen/keel/internal/config"
	"github.com/lowfen/keel/internal/core"
	"github.com/lowfen/keel/internal/logger"
)

var (
	cfgFile  string
	debug    bool
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "keel",
	Short: "Keel - portfolio backtesting, screening, and risk engine",
	Long: `Keel runs deterministic daily-bar backtests over a shared capital pool,
screens live universes with the same strategy code path, and maintains a
persistent trade ledger with NAV snapshots and risk analytics.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

// loadApp bootstraps the logger, config, and application graph shared by
// every subcommand.
func loadApp() (*app.App, error) {
	log := logger.Must(debug, logLevel)

	var cfg *config.Config
	var err error
	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
		log.Warn("no config file specified, using defaults")
	}

	return app.New(cfg, log)
}

func parseDate(value, flag string) (time.Time, error) {
	d, err := time.Parse(core.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s date %q (expected YYYY-MM-DD)", flag, value)
	}
	return d, nil
}

func parseOptionalDate(value, flag string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return parseDate(value, flag)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
