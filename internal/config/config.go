package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Dune     DuneConfig     `mapstructure:"dune"`
	Db       DbConfig       `mapstructure:"db"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
}

func (cfg *Config) Validate() error {
	if err := cfg.Dune.Validate(); err != nil {
		return err
	}
	if err := cfg.Db.Validate(); err != nil {
		return err
	}
	if err := cfg.Metrics.Validate(); err != nil {
		return err
	}
	if err := cfg.Analysis.Validate(); err != nil {
		return err
	}

	return nil
}

// New returns a fully parsed and validated configuration from the given file.
// Values can be overridden from the environment, e.g. DUNE_API_KEY overrides
// dune.api-key, which keeps the API key out of the config file.
func New(cfgFile string) (*Config, error) {
	viper.SetConfigFile(cfgFile)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	// Unmarshal only sees env values for keys it knows about, so the secret
	// has to be bound explicitly to work when absent from the file.
	if err := viper.BindEnv("dune.api-key", "DUNE_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind env: %w", err)
	}

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
