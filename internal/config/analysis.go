package config

import (
	"errors"
	"time"
)

const (
	defaultOutputDir     = "outputs"
	defaultTopOperators  = 15
	defaultWatchInterval = 1 * time.Hour
)

type AnalysisConfig struct {
	// OutputDir is the root directory for CSV/PNG/HTML artifacts; each
	// analysis module writes into its own subdirectory underneath it.
	OutputDir string `mapstructure:"output-dir"`
	// TopOperators caps the number of bars on per-group operator charts.
	TopOperators  int           `mapstructure:"top-operators"`
	WatchInterval time.Duration `mapstructure:"watch-interval"`

	// Saved Dune query IDs backing each dataset.
	OperatorQueryID           int64 `mapstructure:"operator-query-id"`
	AVSQueryID                int64 `mapstructure:"avs-query-id"`
	PriceVolumeQueryID        int64 `mapstructure:"price-volume-query-id"`
	WethDrainQueryID          int64 `mapstructure:"weth-drain-query-id"`
	MorphoLiquidationsQueryID int64 `mapstructure:"morpho-liquidations-query-id"`
	BlastFlowsQueryID         int64 `mapstructure:"blast-flows-query-id"`
	DexVolumeQueryID          int64 `mapstructure:"dex-volume-query-id"`

	// Markets maps AVS display names to their contract addresses; each entry
	// is fed as the avs_address parameter of the master AVS query.
	Markets map[string]string `mapstructure:"markets"`

	// OverallMarketHHI is the fallback overall-market baseline for the AVS
	// comparison chart when no overall-market summary has been computed yet.
	OverallMarketHHI float64 `mapstructure:"overall-market-hhi"`
}

func (cfg *AnalysisConfig) Validate() error {
	if cfg.OutputDir == "" {
		cfg.OutputDir = defaultOutputDir
	}
	if cfg.TopOperators <= 0 {
		cfg.TopOperators = defaultTopOperators
	}
	if cfg.WatchInterval <= 0 {
		cfg.WatchInterval = defaultWatchInterval
	}
	if cfg.OperatorQueryID <= 0 {
		return errors.New("operator-query-id must be positive")
	}
	if cfg.AVSQueryID <= 0 {
		return errors.New("avs-query-id must be positive")
	}

	return nil
}
