/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-ratelimit/config"
)

func TestConfig(t *testing.T) {
	tests := []struct {
		name        string
		cfgDataType config.DataType
		cfgData     string
		expectedCfg func() *Config
	}{
		{
			name:        "defaults",
			cfgDataType: config.DataTypeYAML,
			cfgData:     ``,
			expectedCfg: func() *Config { return NewDefaultConfig() },
		},
		{
			name:        "yaml config",
			cfgDataType: config.DataTypeYAML,
			cfgData: `
log:
  level: warn
  format: text
  output: file
  nocolor: true
  file:
    path: fwlimit.log
    rotation:
      compress: true
      maxSize: 100M
      maxBackups: 42
      maxAgeDays: 7
  addCaller: true
`,
			expectedCfg: func() *Config {
				cfg := NewDefaultConfig()
				cfg.Level = LevelWarn
				cfg.Format = FormatText
				cfg.Output = OutputFile
				cfg.NoColor = true
				cfg.File.Path = "fwlimit.log"
				cfg.File.Rotation.MaxSize = 100 * 1024 * 1024
				cfg.File.Rotation.MaxBackups = 42
				cfg.File.Rotation.MaxAgeDays = 7
				cfg.File.Rotation.Compress = true
				cfg.AddCaller = true
				return cfg
			},
		},
		{
			name:        "json config",
			cfgDataType: config.DataTypeJSON,
			cfgData:     `{"log":{"level":"DEBUG","output":"stderr"}}`,
			expectedCfg: func() *Config {
				cfg := NewDefaultConfig()
				cfg.Level = LevelDebug
				cfg.Output = OutputStderr
				return cfg
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(
				bytes.NewBufferString(tt.cfgData), tt.cfgDataType, cfg)
			require.NoError(t, err)
			require.Equal(t, tt.expectedCfg(), cfg)
		})
	}
}

func TestConfigWithKeyPrefix(t *testing.T) {
	cfg := NewConfig(WithKeyPrefix("custom.logging"))
	err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(
		bytes.NewBufferString("custom:\n  logging:\n    level: error\n"), config.DataTypeYAML, cfg)
	require.NoError(t, err)
	require.Equal(t, LevelError, cfg.Level)
	require.Equal(t, "custom.logging", cfg.KeyPrefix())
}

func TestConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		errMsg string
	}{
		{
			name:   "unknown level",
			data:   "log:\n  level: trace\n",
			errMsg: `log.level: unknown value "trace", should be one of [error warn info debug]`,
		},
		{
			name:   "unknown output",
			data:   "log:\n  output: syslog\n",
			errMsg: `log.output: unknown value "syslog", should be one of [stdout stderr file]`,
		},
		{
			name:   "file output without path",
			data:   "log:\n  output: file\n",
			errMsg: `log.file.path: cannot be empty when "file" output is used`,
		},
		{
			name:   "too small rotation size",
			data:   "log:\n  file:\n    rotation:\n      maxSize: 1K\n",
			errMsg: `log.file.rotation.maxSize: should be >= 1M`,
		},
		{
			name:   "too few backups",
			data:   "log:\n  file:\n    rotation:\n      maxBackups: 0\n",
			errMsg: `log.file.rotation.maxBackups: should be >= 1`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(
				bytes.NewBufferString(tt.data), config.DataTypeYAML, NewConfig())
			require.EqualError(t, err, tt.errMsg)
		})
	}
}
