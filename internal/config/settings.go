package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"wordpress-sync/internal/wp"
)

// Settings are the runtime knobs read from wpsync.yaml and WPSYNC_*
// environment variables. Flags override both.
type Settings struct {
	LogLevel    string        `mapstructure:"log_level"`
	RetryMax    int           `mapstructure:"retry_max"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	BackoffCap  time.Duration `mapstructure:"backoff_cap"`
	RateBurst   int           `mapstructure:"rate_burst"`
	RateRPS     float64       `mapstructure:"rate_rps"`
}

// LoadSettings reads wpsync.yaml from the working directory and the user
// config directory, then the environment. A missing config file is fine;
// a malformed one is not.
func LoadSettings() (*Settings, error) {
	v := viper.New()
	v.SetConfigName("wpsync")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/" + configDirName)
	v.SetEnvPrefix("WPSYNC")
	v.AutomaticEnv()

	def := wp.DefaultTransportOptions()
	v.SetDefault("log_level", "info")
	v.SetDefault("retry_max", def.RetryMax)
	v.SetDefault("backoff_base", def.BackoffBase)
	v.SetDefault("backoff_cap", def.BackoffCap)
	v.SetDefault("rate_burst", def.DefaultLimit.Burst)
	v.SetDefault("rate_rps", def.DefaultLimit.RPS)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &s, nil
}

// TransportOptions maps the settings onto the HTTP transport knobs.
func (s *Settings) TransportOptions() wp.TransportOptions {
	opts := wp.DefaultTransportOptions()
	if s.RetryMax > 0 {
		opts.RetryMax = s.RetryMax
	}
	if s.BackoffBase > 0 {
		opts.BackoffBase = s.BackoffBase
	}
	if s.BackoffCap > 0 {
		opts.BackoffCap = s.BackoffCap
	}
	if s.RateBurst > 0 && s.RateRPS > 0 {
		opts.DefaultLimit = wp.Limit{RPS: s.RateRPS, Burst: s.RateBurst}
	}
	return opts
}
