/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"fmt"
	"time"

	"github.com/acronis/go-ratelimit/config"
)

const cfgDefaultKeyPrefix = "rateLimit"

const (
	cfgKeyOperations       = "operations"
	cfgKeyInterval         = "interval"
	cfgKeyStoreKeyPrefix   = "storeKeyPrefix"
	cfgKeyReservedKeyChars = "reservedKeyChars"
)

// Default values.
const (
	DefaultOperations = 60
	DefaultInterval   = time.Minute
)

// Config represents a set of configuration parameters for the Limiter.
// Configuration can be loaded in different formats (YAML, JSON) using config.Loader, viper,
// or with json.Unmarshal/yaml.Unmarshal functions directly.
type Config struct {
	Operations int                 `mapstructure:"operations" yaml:"operations" json:"operations"`
	Interval   config.TimeDuration `mapstructure:"interval" yaml:"interval" json:"interval"`

	// StoreKeyPrefix is prepended to all storage keys (see Opts.KeyPrefix).
	StoreKeyPrefix string `mapstructure:"storeKeyPrefix" yaml:"storeKeyPrefix" json:"storeKeyPrefix"`

	// ReservedKeyChars overrides characters reserved by the store (see Opts.ReservedKeyChars).
	ReservedKeyChars string `mapstructure:"reservedKeyChars" yaml:"reservedKeyChars" json:"reservedKeyChars"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// ConfigOption is a type for functional options for the Config.
type ConfigOption func(*configOptions)

type configOptions struct {
	keyPrefix string
}

// WithKeyPrefix returns a ConfigOption that sets a key prefix for parsing configuration parameters.
// This prefix will be used by config.Loader.
func WithKeyPrefix(keyPrefix string) ConfigOption {
	return func(o *configOptions) {
		o.keyPrefix = keyPrefix
	}
}

// NewConfig creates a new instance of the Config.
func NewConfig(options ...ConfigOption) *Config {
	opts := configOptions{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{keyPrefix: opts.keyPrefix}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig(options ...ConfigOption) *Config {
	cfg := NewConfig(options...)
	cfg.Operations = DefaultOperations
	cfg.Interval = config.TimeDuration(DefaultInterval)
	return cfg
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for the Limiter in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyOperations, DefaultOperations)
	dp.SetDefault(cfgKeyInterval, DefaultInterval.String())
}

// Set sets Limiter configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.Operations, err = dp.GetInt(cfgKeyOperations); err != nil {
		return err
	}
	if c.Operations <= 0 {
		return dp.WrapKeyErr(cfgKeyOperations, fmt.Errorf("must be greater than 0"))
	}

	var interval time.Duration
	if interval, err = dp.GetDuration(cfgKeyInterval); err != nil {
		return err
	}
	if interval < time.Second {
		return dp.WrapKeyErr(cfgKeyInterval, fmt.Errorf("must be at least 1s"))
	}
	if interval%time.Second != 0 {
		return dp.WrapKeyErr(cfgKeyInterval, fmt.Errorf("must be a whole number of seconds"))
	}
	c.Interval = config.TimeDuration(interval)

	if c.StoreKeyPrefix, err = dp.GetString(cfgKeyStoreKeyPrefix); err != nil {
		return err
	}
	if c.ReservedKeyChars, err = dp.GetString(cfgKeyReservedKeyChars); err != nil {
		return err
	}
	return nil
}

// Rate returns the Rate described by the configuration.
func (c *Config) Rate() (Rate, error) {
	return NewRate(c.Operations, int64(time.Duration(c.Interval)/time.Second))
}

// LimiterOpts returns the Limiter options described by the configuration.
func (c *Config) LimiterOpts() Opts {
	return Opts{KeyPrefix: c.StoreKeyPrefix, ReservedKeyChars: c.ReservedKeyChars}
}
