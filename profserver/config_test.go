/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package profserver

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/acronis/go-ratelimit/config"
)

type appConfig struct {
	ProfServer *Config `mapstructure:"profServer" json:"profServer" yaml:"profServer"`
}

func TestConfig(t *testing.T) {
	tests := []struct {
		name        string
		cfgDataType config.DataType
		cfgData     string
	}{
		{
			name:        "yaml config",
			cfgDataType: config.DataTypeYAML,
			cfgData:     "profServer:\n  enabled: true\n  address: \"0.0.0.0:6060\"\n",
		},
		{
			name:        "json config",
			cfgDataType: config.DataTypeJSON,
			cfgData:     `{"profServer": {"enabled": true, "address": "0.0.0.0:6060"}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantCfg := NewDefaultConfig()
			wantCfg.Enabled = true
			wantCfg.Address = "0.0.0.0:6060"

			// config.Loader
			cfg := NewConfig()
			err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(
				bytes.NewBufferString(tt.cfgData), tt.cfgDataType, cfg)
			require.NoError(t, err)
			require.Equal(t, wantCfg, cfg)

			// viper.Unmarshal
			appCfg := appConfig{ProfServer: NewDefaultConfig()}
			vpr := viper.New()
			vpr.SetConfigType(string(tt.cfgDataType))
			require.NoError(t, vpr.ReadConfig(bytes.NewBufferString(tt.cfgData)))
			require.NoError(t, vpr.Unmarshal(&appCfg))
			require.Equal(t, wantCfg, appCfg.ProfServer)

			// yaml/json unmarshal
			appCfg = appConfig{ProfServer: NewDefaultConfig()}
			switch tt.cfgDataType {
			case config.DataTypeYAML:
				require.NoError(t, yaml.Unmarshal([]byte(tt.cfgData), &appCfg))
			case config.DataTypeJSON:
				require.NoError(t, json.Unmarshal([]byte(tt.cfgData), &appCfg))
			}
			require.Equal(t, wantCfg, appCfg.ProfServer)
		})
	}
}

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, config.NewDefaultLoader("").LoadFromReader(bytes.NewBuffer(nil), config.DataTypeYAML, cfg))
	require.Equal(t, NewDefaultConfig(), cfg)
	require.False(t, cfg.Enabled)
}

func TestConfigWithKeyPrefix(t *testing.T) {
	cfg := NewConfigWithKeyPrefix("pprof")
	err := config.NewDefaultLoader("").LoadFromReader(
		bytes.NewBufferString("pprof:\n  enabled: true\n  address: \"127.0.0.1:7070\"\n"), config.DataTypeYAML, cfg)
	require.NoError(t, err)
	require.True(t, cfg.Enabled)
	require.Equal(t, "127.0.0.1:7070", cfg.Address)
}

func TestConfig_EmptyAddress(t *testing.T) {
	cfg := NewConfig()
	err := config.NewDefaultLoader("").LoadFromReader(
		bytes.NewBufferString("profServer:\n  enabled: true\n  address: \"\"\n"), config.DataTypeYAML, cfg)
	require.EqualError(t, err, "profServer.address: must be set when profiling is enabled")
}
