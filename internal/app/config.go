/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/acronis/go-ratelimit/config"
	"github.com/acronis/go-ratelimit/httpclient"
	"github.com/acronis/go-ratelimit/httpserver"
	"github.com/acronis/go-ratelimit/log"
	"github.com/acronis/go-ratelimit/profserver"
	"github.com/acronis/go-ratelimit/ratelimit"
	"github.com/acronis/go-ratelimit/ratelimit/lrustore"
	"github.com/acronis/go-ratelimit/ratelimit/sqlstore"
)

// EnvVarsPrefix is a prefix of environment variables overriding configuration values
// (e.g. FWLIMIT_STORE_TYPE=redis).
const EnvVarsPrefix = "fwlimit"

// StoreType is a kind of the counters store.
type StoreType string

// Store types.
const (
	StoreTypeMemory    StoreType = "memory"
	StoreTypeLRU       StoreType = "lru"
	StoreTypeThrottled StoreType = "throttled"
	StoreTypeSQL       StoreType = "sql"
	StoreTypeRedis     StoreType = "redis"
)

var storeTypes = []string{
	string(StoreTypeMemory), string(StoreTypeLRU), string(StoreTypeThrottled), string(StoreTypeSQL), string(StoreTypeRedis),
}

const (
	cfgKeyStoreType             = "type"
	cfgKeyStoreMaxKeys          = "maxKeys"
	cfgKeyStoreSQLDSN           = "sql.dsn"
	cfgKeyStoreSQLTableName     = "sql.tableName"
	cfgKeyStoreSQLPurgeInterval = "sql.purgeInterval"
	cfgKeyStoreRedisURL         = "redis.url"
	cfgKeyStoreRedisKeyPrefix   = "redis.keyPrefix"
)

const (
	defaultStoreType             = StoreTypeSQL
	defaultStoreSQLDSN           = "file:fwlimit.db"
	defaultStoreSQLPurgeInterval = 5 * time.Minute
)

// StoreConfig represents a set of configuration parameters for the counters store.
type StoreConfig struct {
	Type StoreType `mapstructure:"type" yaml:"type" json:"type"`

	// MaxKeys limits the number of counters for the in-process bounded stores (lru, throttled).
	MaxKeys int `mapstructure:"maxKeys" yaml:"maxKeys" json:"maxKeys"`

	SQL   SQLStoreConfig   `mapstructure:"sql" yaml:"sql" json:"sql"`
	Redis RedisStoreConfig `mapstructure:"redis" yaml:"redis" json:"redis"`
}

// SQLStoreConfig configures the SQLite store.
type SQLStoreConfig struct {
	DSN       string `mapstructure:"dsn" yaml:"dsn" json:"dsn"`
	TableName string `mapstructure:"tableName" yaml:"tableName" json:"tableName"`

	// PurgeInterval is a period of removing expired counters by the serve command. Zero disables purging.
	PurgeInterval config.TimeDuration `mapstructure:"purgeInterval" yaml:"purgeInterval" json:"purgeInterval"`
}

// RedisStoreConfig configures the Redis store.
type RedisStoreConfig struct {
	URL       string `mapstructure:"url" yaml:"url" json:"url"`
	KeyPrefix string `mapstructure:"keyPrefix" yaml:"keyPrefix" json:"keyPrefix"`
}

var _ config.Config = (*StoreConfig)(nil)
var _ config.KeyPrefixProvider = (*StoreConfig)(nil)

// KeyPrefix returns a key prefix with which all store configuration parameters should be presented.
func (c *StoreConfig) KeyPrefix() string {
	return "store"
}

// SetProviderDefaults sets default configuration values for the store in config.DataProvider.
func (c *StoreConfig) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyStoreType, string(defaultStoreType))
	dp.SetDefault(cfgKeyStoreMaxKeys, lrustore.DefaultMaxKeys)
	dp.SetDefault(cfgKeyStoreSQLDSN, defaultStoreSQLDSN)
	dp.SetDefault(cfgKeyStoreSQLTableName, sqlstore.DefaultTableName)
	dp.SetDefault(cfgKeyStoreSQLPurgeInterval, defaultStoreSQLPurgeInterval)
}

// Set sets store configuration values from config.DataProvider.
func (c *StoreConfig) Set(dp config.DataProvider) error {
	storeType, err := dp.GetStringFromSet(cfgKeyStoreType, storeTypes, true)
	if err != nil {
		return err
	}
	c.Type = StoreType(strings.ToLower(storeType))

	if c.MaxKeys, err = dp.GetInt(cfgKeyStoreMaxKeys); err != nil {
		return err
	}
	if c.MaxKeys < 0 {
		return dp.WrapKeyErr(cfgKeyStoreMaxKeys, fmt.Errorf("cannot be negative"))
	}

	if c.SQL.DSN, err = dp.GetString(cfgKeyStoreSQLDSN); err != nil {
		return err
	}
	if c.SQL.TableName, err = dp.GetString(cfgKeyStoreSQLTableName); err != nil {
		return err
	}
	var purgeInterval time.Duration
	if purgeInterval, err = dp.GetDuration(cfgKeyStoreSQLPurgeInterval); err != nil {
		return err
	}
	if purgeInterval < 0 {
		return dp.WrapKeyErr(cfgKeyStoreSQLPurgeInterval, fmt.Errorf("cannot be negative"))
	}
	c.SQL.PurgeInterval = config.TimeDuration(purgeInterval)

	if c.Redis.URL, err = dp.GetString(cfgKeyStoreRedisURL); err != nil {
		return err
	}
	if c.Type == StoreTypeRedis && c.Redis.URL == "" {
		return dp.WrapKeyErr(cfgKeyStoreRedisURL, fmt.Errorf("must be set for %q store", StoreTypeRedis))
	}
	c.Redis.KeyPrefix, err = dp.GetString(cfgKeyStoreRedisKeyPrefix)
	return err
}

// Config is the whole configuration of fwlimit.
type Config struct {
	Log       *log.Config
	RateLimit *ratelimit.Config
	Store     *StoreConfig
	Server    *httpserver.Config

	// Client configures requests to a remote server made by "hit --server" and "status --server".
	Client *httpclient.Config

	// ProfServer configures the optional pprof server started by "serve".
	ProfServer *profserver.Config
}

// NewConfig creates an empty Config. Values are set by LoadConfig.
func NewConfig() *Config {
	return &Config{
		Log:        log.NewConfig(),
		RateLimit:  ratelimit.NewConfig(),
		Store:      &StoreConfig{},
		Server:     httpserver.NewConfig(),
		Client:     httpclient.NewConfig(),
		ProfServer: profserver.NewConfig(),
	}
}

// LoadConfig loads the configuration from the file (YAML or JSON by extension), if path is not empty,
// and from FWLIMIT_* environment variables.
func LoadConfig(path string) (*Config, error) {
	return loadConfig(config.NewDefaultLoader(EnvVarsPrefix), path)
}

func loadConfig(loader *config.Loader, path string) (*Config, error) {
	cfg := NewConfig()
	err := loader.LoadFromPath(path, cfg.Log, cfg.RateLimit, cfg.Store, cfg.Server, cfg.Client, cfg.ProfServer)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
