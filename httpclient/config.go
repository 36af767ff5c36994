/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/acronis/go-ratelimit/config"
	"github.com/acronis/go-ratelimit/retry"
)

const cfgDefaultKeyPrefix = "client"

// Retry policy strategies.
const (
	RetryPolicyExponential = "exponential"
	RetryPolicyConstant    = "constant"
)

const (
	cfgKeyTimeout                         = "timeout"
	cfgKeyRetriesEnabled                  = "retries.enabled"
	cfgKeyRetriesMaxAttempts              = "retries.maxAttempts"
	cfgKeyRetriesPolicyStrategy           = "retries.policy.strategy"
	cfgKeyRetriesPolicyExpInitialInterval = "retries.policy.exponentialBackoffInitialInterval"
	cfgKeyRetriesPolicyConstantInterval   = "retries.policy.constantBackoffInterval"
	cfgKeyLogEnabled                      = "log.enabled"
	cfgKeyLogMode                         = "log.mode"
	cfgKeyLogSlowRequestThreshold         = "log.slowRequestThreshold"
)

const (
	// DefaultClientWaitTimeout is a default timeout of a whole request including retries.
	DefaultClientWaitTimeout = 10 * time.Second

	defaultRetriesConstantInterval = time.Second
	defaultLogSlowRequestThreshold = time.Second
)

// Config represents options for HTTP client configuration.
type Config struct {
	// Timeout is the maximum time to wait for a request to be made, including retries.
	Timeout time.Duration `mapstructure:"timeout"`

	Retries RetriesConfig `mapstructure:"retries"`
	Log     LogConfig     `mapstructure:"log"`

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
	cfg.Timeout = DefaultClientWaitTimeout
	cfg.Retries = RetriesConfig{
		Enabled:     true,
		MaxAttempts: DefaultMaxRetryAttempts,
		Policy: PolicyConfig{
			Strategy:                          RetryPolicyExponential,
			ExponentialBackoffInitialInterval: DefaultExponentialBackoffInitialInterval,
		},
	}
	cfg.Log = LogConfig{Enabled: true, Mode: LoggingModeFailed, SlowRequestThreshold: defaultLogSlowRequestThreshold}
	return cfg
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for the HTTP client in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyTimeout, DefaultClientWaitTimeout)
	dp.SetDefault(cfgKeyRetriesEnabled, true)
	dp.SetDefault(cfgKeyRetriesMaxAttempts, DefaultMaxRetryAttempts)
	dp.SetDefault(cfgKeyRetriesPolicyStrategy, RetryPolicyExponential)
	dp.SetDefault(cfgKeyRetriesPolicyExpInitialInterval, DefaultExponentialBackoffInitialInterval)
	dp.SetDefault(cfgKeyRetriesPolicyConstantInterval, defaultRetriesConstantInterval)
	dp.SetDefault(cfgKeyLogEnabled, true)
	dp.SetDefault(cfgKeyLogMode, string(LoggingModeFailed))
	dp.SetDefault(cfgKeyLogSlowRequestThreshold, defaultLogSlowRequestThreshold)
}

// Set sets HTTP client configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error
	if c.Timeout, err = dp.GetDuration(cfgKeyTimeout); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return dp.WrapKeyErr(cfgKeyTimeout, fmt.Errorf("cannot be negative"))
	}
	if err = c.Retries.Set(dp); err != nil {
		return err
	}
	return c.Log.Set(dp)
}

// RetriesConfig represents configuration options for HTTP client retries.
type RetriesConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// MaxAttempts is the maximum number of retry attempts.
	MaxAttempts int `mapstructure:"maxAttempts"`

	Policy PolicyConfig `mapstructure:"policy"`
}

// PolicyConfig represents configuration options for the retry backoff policy.
type PolicyConfig struct {
	// Strategy is exponential or constant.
	Strategy string `mapstructure:"strategy"`

	ExponentialBackoffInitialInterval time.Duration `mapstructure:"exponentialBackoffInitialInterval"`
	ConstantBackoffInterval           time.Duration `mapstructure:"constantBackoffInterval"`
}

// Set sets retries configuration values from config.DataProvider.
func (c *RetriesConfig) Set(dp config.DataProvider) error {
	var err error
	if c.Enabled, err = dp.GetBool(cfgKeyRetriesEnabled); err != nil {
		return err
	}
	if !c.Enabled {
		return nil
	}
	if c.MaxAttempts, err = dp.GetInt(cfgKeyRetriesMaxAttempts); err != nil {
		return err
	}
	if c.MaxAttempts <= 0 {
		return dp.WrapKeyErr(cfgKeyRetriesMaxAttempts, fmt.Errorf("must be positive"))
	}

	strategies := []string{RetryPolicyExponential, RetryPolicyConstant}
	if c.Policy.Strategy, err = dp.GetStringFromSet(cfgKeyRetriesPolicyStrategy, strategies, false); err != nil {
		return err
	}
	switch c.Policy.Strategy {
	case RetryPolicyExponential:
		c.Policy.ExponentialBackoffInitialInterval, err = getPositiveDuration(dp, cfgKeyRetriesPolicyExpInitialInterval)
	case RetryPolicyConstant:
		c.Policy.ConstantBackoffInterval, err = getPositiveDuration(dp, cfgKeyRetriesPolicyConstantInterval)
	}
	return err
}

// GetPolicy returns a retry policy based on the strategy or nil if none is configured.
func (c *RetriesConfig) GetPolicy() retry.Policy {
	switch c.Policy.Strategy {
	case RetryPolicyExponential:
		initialInterval := c.Policy.ExponentialBackoffInitialInterval
		return retry.PolicyFunc(func() backoff.BackOff {
			bf := backoff.NewExponentialBackOff()
			bf.InitialInterval = initialInterval
			bf.Multiplier = DefaultExponentialBackoffMultiplier
			bf.Reset()
			return bf
		})
	case RetryPolicyConstant:
		return retry.NewConstantBackoffPolicy(c.Policy.ConstantBackoffInterval, 0)
	}
	return nil
}

// TransportOpts returns options for RetryableRoundTripper.
func (c *RetriesConfig) TransportOpts() RetryableRoundTripperOpts {
	return RetryableRoundTripperOpts{MaxRetryAttempts: c.MaxAttempts, BackoffPolicy: c.GetPolicy()}
}

// LogConfig represents configuration options for HTTP client logging.
type LogConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Mode is none, all or failed.
	Mode LoggingMode `mapstructure:"mode"`

	// SlowRequestThreshold makes successful requests logged only if they take longer.
	SlowRequestThreshold time.Duration `mapstructure:"slowRequestThreshold"`
}

// Set sets logging configuration values from config.DataProvider.
func (c *LogConfig) Set(dp config.DataProvider) error {
	var err error
	if c.Enabled, err = dp.GetBool(cfgKeyLogEnabled); err != nil {
		return err
	}
	if !c.Enabled {
		return nil
	}
	modes := []string{string(LoggingModeNone), string(LoggingModeAll), string(LoggingModeFailed)}
	mode, err := dp.GetStringFromSet(cfgKeyLogMode, modes, false)
	if err != nil {
		return err
	}
	c.Mode = LoggingMode(mode)
	if c.SlowRequestThreshold, err = dp.GetDuration(cfgKeyLogSlowRequestThreshold); err != nil {
		return err
	}
	if c.SlowRequestThreshold < 0 {
		return dp.WrapKeyErr(cfgKeyLogSlowRequestThreshold, fmt.Errorf("cannot be negative"))
	}
	return nil
}

// TransportOpts returns options for LoggingRoundTripper.
func (c *LogConfig) TransportOpts() LoggingRoundTripperOpts {
	return LoggingRoundTripperOpts{Mode: c.Mode, SlowRequestThreshold: c.SlowRequestThreshold}
}

func getPositiveDuration(dp config.DataProvider, key string) (time.Duration, error) {
	val, err := dp.GetDuration(key)
	if err != nil {
		return 0, err
	}
	if val <= 0 {
		return 0, dp.WrapKeyErr(key, fmt.Errorf("must be positive"))
	}
	return val, nil
}
