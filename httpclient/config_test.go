/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-ratelimit/config"
	"github.com/acronis/go-ratelimit/retry"
)

func TestConfig(t *testing.T) {
	tests := []struct {
		name       string
		cfgData    string
		wantCfg    func() *Config
		wantErrMsg string
	}{
		{
			name:    "defaults",
			cfgData: ``,
			wantCfg: func() *Config { return NewDefaultConfig() },
		},
		{
			name: "custom",
			cfgData: `
client:
  timeout: 30s
  retries:
    maxAttempts: 5
    policy:
      strategy: constant
      constantBackoffInterval: 2s
  log:
    mode: all
    slowRequestThreshold: 100ms
`,
			wantCfg: func() *Config {
				cfg := NewConfig()
				cfg.Timeout = 30 * time.Second
				cfg.Retries = RetriesConfig{
					Enabled:     true,
					MaxAttempts: 5,
					Policy:      PolicyConfig{Strategy: RetryPolicyConstant, ConstantBackoffInterval: 2 * time.Second},
				}
				cfg.Log = LogConfig{Enabled: true, Mode: LoggingModeAll, SlowRequestThreshold: 100 * time.Millisecond}
				return cfg
			},
		},
		{
			name:    "disabled retries and logging",
			cfgData: "client:\n  retries:\n    enabled: false\n  log:\n    enabled: false\n",
			wantCfg: func() *Config {
				cfg := NewConfig()
				cfg.Timeout = DefaultClientWaitTimeout
				return cfg
			},
		},
		{
			name:       "negative timeout",
			cfgData:    "client:\n  timeout: -1s\n",
			wantErrMsg: "client.timeout: cannot be negative",
		},
		{
			name:       "zero max attempts",
			cfgData:    "client:\n  retries:\n    maxAttempts: 0\n",
			wantErrMsg: "client.retries.maxAttempts: must be positive",
		},
		{
			name:       "unknown strategy",
			cfgData:    "client:\n  retries:\n    policy:\n      strategy: linear\n",
			wantErrMsg: `client.retries.policy.strategy: unknown value "linear", should be one of [exponential constant]`,
		},
		{
			name:       "zero backoff interval",
			cfgData:    "client:\n  retries:\n    policy:\n      exponentialBackoffInitialInterval: 0s\n",
			wantErrMsg: "client.retries.policy.exponentialBackoffInitialInterval: must be positive",
		},
		{
			name:       "unknown log mode",
			cfgData:    "client:\n  log:\n    mode: verbose\n",
			wantErrMsg: `client.log.mode: unknown value "verbose", should be one of [none all failed]`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(
				bytes.NewBufferString(tt.cfgData), config.DataTypeYAML, cfg)
			if tt.wantErrMsg != "" {
				require.EqualError(t, err, tt.wantErrMsg)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantCfg(), cfg)
		})
	}
}

func TestRetriesConfig_GetPolicy(t *testing.T) {
	cfg := RetriesConfig{Policy: PolicyConfig{Strategy: RetryPolicyConstant, ConstantBackoffInterval: time.Second}}
	require.Equal(t, retry.NewConstantBackoffPolicy(time.Second, 0), cfg.GetPolicy())

	cfg = RetriesConfig{Policy: PolicyConfig{Strategy: RetryPolicyExponential, ExponentialBackoffInitialInterval: time.Second}}
	bf := cfg.GetPolicy().NewBackOff()
	require.InDelta(t, float64(time.Second), float64(bf.NextBackOff()), float64(time.Second/2))

	require.Nil(t, (&RetriesConfig{}).GetPolicy())
}
