/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-ratelimit/log"
	"github.com/acronis/go-ratelimit/log/logtest"
)

func TestNewWithOpts(t *testing.T) {
	var reqsNum atomic.Int32
	var lastUserAgent, lastRequestID atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		lastUserAgent.Store(r.Header.Get("User-Agent"))
		lastRequestID.Store(r.Header.Get(RequestIDHeader))
		if reqsNum.Add(1) == 1 {
			rw.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		rw.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	logRecorder := logtest.NewRecorder()
	cfg := NewDefaultConfig()
	cfg.Retries.Policy = PolicyConfig{Strategy: RetryPolicyConstant, ConstantBackoffInterval: time.Millisecond}
	cfg.Log.Mode = LoggingModeAll
	cfg.Log.SlowRequestThreshold = 0
	client := MustWithOpts(cfg, Opts{
		UserAgent:         "fwlimit/v1.0.0",
		RequestType:       "limits",
		LoggerProvider:    func(ctx context.Context) log.FieldLogger { return logRecorder },
		RequestIDProvider: func(ctx context.Context) string { return "req-42" },
	})
	require.Equal(t, DefaultClientWaitTimeout, client.Timeout)

	t.Run("GET is retried", func(t *testing.T) {
		resp, err := client.Get(server.URL)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.EqualValues(t, 2, reqsNum.Load())
		require.Equal(t, "fwlimit/v1.0.0", lastUserAgent.Load())
		require.Equal(t, "req-42", lastRequestID.Load())

		// Every attempt is logged.
		entries := logRecorder.FindAllEntriesByFilter(func(entry logtest.RecordedEntry) bool {
			return entry.Text == "client http request done"
		})
		require.Len(t, entries, 2)
		require.Equal(t, "limits", entries[0].FieldString("request_type"))
		require.Equal(t, "req-42", entries[0].FieldString("request_id"))
	})

	t.Run("POST is not retried", func(t *testing.T) {
		reqsNum.Store(0)
		resp, err := client.Post(server.URL, "application/json", http.NoBody)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		require.EqualValues(t, 1, reqsNum.Load())
	})
}

func TestNew_WithoutRetriesAndLogging(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := NewConfig()
	cfg.Timeout = time.Second
	client, err := New(cfg)
	require.NoError(t, err)
	_, isRequestIDRT := client.Transport.(*RequestIDRoundTripper)
	require.True(t, isRequestIDRT)

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestNew_InvalidRetries(t *testing.T) {
	cfg := NewConfig()
	cfg.Retries = RetriesConfig{Enabled: true, MaxAttempts: -5}
	_, err := New(cfg)
	require.EqualError(t, err, "create retryable round tripper: incorrect max retry attempts -5")
	require.Panics(t, func() { Must(cfg) })
}
