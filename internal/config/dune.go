package config

import (
	"errors"
	"time"
)

const (
	defaultDuneBaseURL       = "https://api.dune.com"
	defaultDuneTimeout       = 30 * time.Second
	defaultDuneMaxRetryTimes = 3
	defaultDunePollInterval  = 5 * time.Second
	defaultDuneRetryInterval = 10 * time.Second
	defaultDuneCooldown      = 3 * time.Second
)

type DuneConfig struct {
	// APIKey authenticates against the Dune Analytics API. Usually supplied
	// through the DUNE_API_KEY environment variable rather than the file.
	APIKey        string        `mapstructure:"api-key"`
	BaseURL       string        `mapstructure:"base-url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetryTimes uint          `mapstructure:"max-retry-times"`
	RetryInterval time.Duration `mapstructure:"retry-interval"`
	// PollInterval is the pause between execution status checks for
	// parameterized query runs.
	PollInterval time.Duration `mapstructure:"poll-interval"`
	// Cooldown is the pause between consecutive API calls in the AVS loop,
	// required to stay inside the free-tier rate limits.
	Cooldown time.Duration `mapstructure:"cooldown"`
}

func (cfg *DuneConfig) Validate() error {
	if cfg.APIKey == "" {
		return errors.New("dune api key is required (set dune.api-key or DUNE_API_KEY)")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultDuneBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultDuneTimeout
	}
	if cfg.MaxRetryTimes == 0 {
		cfg.MaxRetryTimes = defaultDuneMaxRetryTimes
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultDuneRetryInterval
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultDunePollInterval
	}
	if cfg.Cooldown < 0 {
		cfg.Cooldown = defaultDuneCooldown
	}

	return nil
}
