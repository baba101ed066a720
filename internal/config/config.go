package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/lowfen/keel/internal/core"
)

type Config struct {
	Database   DatabaseConfig            `mapstructure:"database"`
	Backtest   BacktestConfig            `mapstructure:"backtest"`
	Portfolio  PortfolioConfig           `mapstructure:"portfolio"`
	Risk       RiskConfig                `mapstructure:"risk"`
	Screen     ScreenConfig              `mapstructure:"screen"`
	Archive    ArchiveConfig             `mapstructure:"archive"`
	Strategies map[string]StrategyConfig `mapstructure:"strategies"`
	Metrics    MetricsConfig             `mapstructure:"metrics"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// BacktestConfig holds simulation defaults. Rates are fractions, not
// percentages (0.0003 = 0.03%).
type BacktestConfig struct {
	InitialCapital float64 `mapstructure:"initial_capital"`
	MaxPositions   int     `mapstructure:"max_positions"`
	FeeRate        float64 `mapstructure:"fee_rate"`
	SlippagePerc   float64 `mapstructure:"slippage_perc"`
	MinBars        int     `mapstructure:"min_bars"`
	Benchmark      string  `mapstructure:"benchmark"`
}

// PortfolioConfig holds live ledger settings, including the advisory stop
// references surfaced in reports.
type PortfolioConfig struct {
	Name               string  `mapstructure:"name"`
	InitialCapital     float64 `mapstructure:"initial_capital"`
	TrailingStopFactor float64 `mapstructure:"trailing_stop_factor"`
	EntryStopFactor    float64 `mapstructure:"entry_stop_factor"`
	MAStopWindow       int     `mapstructure:"ma_stop_window"`
}

type RiskConfig struct {
	MaxSinglePositionRatio float64 `mapstructure:"max_single_position_ratio"`
	MaxSectorExposure      float64 `mapstructure:"max_sector_exposure"`
}

type ScreenConfig struct {
	Workers     int `mapstructure:"workers"`
	HistoryDays int `mapstructure:"history_days"`
}

type ArchiveConfig struct {
	Type string   `mapstructure:"type"` // "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type StrategyConfig struct {
	Enabled bool               `mapstructure:"enabled"`
	Params  map[string]float64 `mapstructure:"params"`
}

// MetricsConfig controls the Prometheus textfile export written when the
// process shuts down. Path is a filesystem path, typically inside a
// node_exporter textfile collector directory.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "keel.db",
		},
		Backtest: BacktestConfig{
			InitialCapital: 300000,
			MaxPositions:   10,
			FeeRate:        0.0003,
			SlippagePerc:   0.0001,
			MinBars:        241,
			Benchmark:      "000300.SH",
		},
		Portfolio: PortfolioConfig{
			Name:               "default",
			InitialCapital:     1000000,
			TrailingStopFactor: 0.85,
			EntryStopFactor:    0.92,
			MAStopWindow:       20,
		},
		Risk: RiskConfig{
			MaxSinglePositionRatio: 0.2,
			MaxSectorExposure:      0.4,
		},
		Screen: ScreenConfig{
			Workers:     8,
			HistoryDays: 365,
		},
		Archive: ArchiveConfig{
			Type: "localfs",
			Path: "output",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Path:    "keel_metrics.prom",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("database path is required"))
	}
	if c.Backtest.InitialCapital <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("initial_capital must be positive, got %f", c.Backtest.InitialCapital))
	}
	if c.Backtest.MaxPositions < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_positions must be at least 1, got %d", c.Backtest.MaxPositions))
	}
	if c.Backtest.FeeRate < 0 || c.Backtest.FeeRate >= 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("fee_rate must be in [0, 1), got %f", c.Backtest.FeeRate))
	}
	if c.Backtest.SlippagePerc < 0 || c.Backtest.SlippagePerc >= 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("slippage_perc must be in [0, 1), got %f", c.Backtest.SlippagePerc))
	}
	if c.Backtest.MinBars < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("min_bars must be at least 1, got %d", c.Backtest.MinBars))
	}
	if c.Risk.MaxSinglePositionRatio <= 0 || c.Risk.MaxSinglePositionRatio > 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_single_position_ratio must be in (0, 1], got %f", c.Risk.MaxSinglePositionRatio))
	}
	if c.Risk.MaxSectorExposure <= 0 || c.Risk.MaxSectorExposure > 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_sector_exposure must be in (0, 1], got %f", c.Risk.MaxSectorExposure))
	}
	if c.Screen.Workers < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("screen workers must be at least 1, got %d", c.Screen.Workers))
	}
	switch c.Archive.Type {
	case "localfs", "s3":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("archive type must be localfs or s3, got %q", c.Archive.Type))
	}
	return nil
}
