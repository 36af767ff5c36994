/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-ratelimit/config"
	"github.com/acronis/go-ratelimit/ratelimit"
)

func TestConfig(t *testing.T) {
	tests := []struct {
		name       string
		cfgData    string
		wantRate   ratelimit.Rate
		wantOpts   ratelimit.Opts
		wantErrMsg string
	}{
		{
			name:     "defaults",
			cfgData:  ``,
			wantRate: ratelimit.MustNewRate(ratelimit.DefaultOperations, 60),
		},
		{
			name: "custom",
			cfgData: `
rateLimit:
  operations: 5
  interval: 1h
  storeKeyPrefix: login.
  reservedKeyChars: "{}:"
`,
			wantRate: ratelimit.MustPerHour(5),
			wantOpts: ratelimit.Opts{KeyPrefix: "login.", ReservedKeyChars: "{}:"},
		},
		{
			name:       "zero operations",
			cfgData:    "rateLimit:\n  operations: 0\n",
			wantErrMsg: "rateLimit.operations: must be greater than 0",
		},
		{
			name:       "sub-second interval",
			cfgData:    "rateLimit:\n  interval: 500ms\n",
			wantErrMsg: "rateLimit.interval: must be at least 1s",
		},
		{
			name:       "fractional interval",
			cfgData:    "rateLimit:\n  interval: 1500ms\n",
			wantErrMsg: "rateLimit.interval: must be a whole number of seconds",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ratelimit.NewConfig()
			err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(
				bytes.NewBufferString(tt.cfgData), config.DataTypeYAML, cfg)
			if tt.wantErrMsg != "" {
				require.EqualError(t, err, tt.wantErrMsg)
				return
			}
			require.NoError(t, err)
			rate, err := cfg.Rate()
			require.NoError(t, err)
			require.True(t, rate.Equal(tt.wantRate), "got %s", rate)
			require.Equal(t, tt.wantOpts, cfg.LimiterOpts())
		})
	}
}

func TestNewDefaultConfig(t *testing.T) {
	cfg := ratelimit.NewDefaultConfig(ratelimit.WithKeyPrefix("limits.login"))
	require.Equal(t, "limits.login", cfg.KeyPrefix())
	require.Equal(t, ratelimit.DefaultOperations, cfg.Operations)
	require.Equal(t, config.TimeDuration(time.Minute), cfg.Interval)
}
