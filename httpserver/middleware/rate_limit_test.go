/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/acronis/go-ratelimit/log"
	"github.com/acronis/go-ratelimit/log/logtest"
	"github.com/acronis/go-ratelimit/ratelimit"
	"github.com/acronis/go-ratelimit/ratelimit/lrustore"
	"github.com/acronis/go-ratelimit/ratelimit/memstore"
	"github.com/acronis/go-ratelimit/ratelimit/ratelimittest"
	"github.com/acronis/go-ratelimit/restapi"
	"github.com/acronis/go-ratelimit/testutil"
)

const testErrDomain = "MyService"

// windowStart is aligned to a minute boundary.
var windowStart = time.Unix(1_700_000_040, 0)

type mockRateLimitNextHandler struct {
	calls atomic.Int32
}

func (h *mockRateLimitNextHandler) ServeHTTP(rw http.ResponseWriter, _ *http.Request) {
	h.calls.Inc()
	rw.WriteHeader(http.StatusOK)
}

type failingLimiter struct {
	err error
}

func (l failingLimiter) LimitSilently(context.Context, string) (ratelimit.Status, error) {
	return ratelimit.Status{}, l.err
}

func newTestLimiter(t *testing.T, rate ratelimit.Rate, clock ratelimit.Clock) *ratelimit.Limiter {
	t.Helper()
	l, err := ratelimit.NewWithOpts(rate, memstore.NewWithOpts(memstore.Opts{Clock: clock}), ratelimit.Opts{Clock: clock})
	require.NoError(t, err)
	return l
}

func sendRequest(handler http.Handler, remoteAddr string, logger log.FieldLogger) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	if logger != nil {
		req = req.WithContext(NewContextWithLogger(req.Context(), logger))
	}
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func TestRateLimitHandler_ServeHTTP(t *testing.T) {
	t.Run("requests over quota are rejected until the window rolls over", func(t *testing.T) {
		clock := ratelimittest.NewManualClock(windowStart)
		next := &mockRateLimitNextHandler{}
		handler := MustRateLimitWithOpts(
			newTestLimiter(t, ratelimit.MustPerMinute(2), clock), testErrDomain, RateLimitOpts{Clock: clock})(next)
		resetTime := windowStart.Unix() + 60

		resp := sendRequest(handler, "10.0.0.1:1000", nil)
		require.Equal(t, http.StatusOK, resp.Code)
		testutil.RequireRateLimitHeaders(t, resp.Header(), 2, 1, resetTime)

		clock.Advance(10 * time.Second)
		resp = sendRequest(handler, "10.0.0.1:1001", nil)
		require.Equal(t, http.StatusOK, resp.Code)
		testutil.RequireRateLimitHeaders(t, resp.Header(), 2, 0, resetTime)

		clock.Advance(10 * time.Second)
		for i := 0; i < 3; i++ {
			resp = sendRequest(handler, "10.0.0.1:1002", nil)
			testutil.RequireErrorInRecorder(t, resp, http.StatusTooManyRequests, testErrDomain, "tooManyRequests")
			testutil.RequireRateLimitHeaders(t, resp.Header(), 2, 0, resetTime)
			require.Equal(t, "40", resp.Header().Get("Retry-After"))
		}
		require.Equal(t, int32(2), next.calls.Load())

		clock.Set(windowStart.Add(time.Minute))
		resp = sendRequest(handler, "10.0.0.1:1003", nil)
		require.Equal(t, http.StatusOK, resp.Code)
		testutil.RequireRateLimitHeaders(t, resp.Header(), 2, 1, windowStart.Unix()+120)
		require.Equal(t, int32(3), next.calls.Load())
	})

	t.Run("remote addresses are limited independently", func(t *testing.T) {
		clock := ratelimittest.NewManualClock(windowStart)
		next := &mockRateLimitNextHandler{}
		handler := MustRateLimit(newTestLimiter(t, ratelimit.MustPerMinute(1), clock), testErrDomain)(next)

		require.Equal(t, http.StatusOK, sendRequest(handler, "10.0.0.1:1000", nil).Code)
		require.Equal(t, http.StatusOK, sendRequest(handler, "10.0.0.2:1000", nil).Code)
		require.Equal(t, http.StatusTooManyRequests, sendRequest(handler, "10.0.0.1:2000", nil).Code)
		require.Equal(t, http.StatusTooManyRequests, sendRequest(handler, "10.0.0.2:2000", nil).Code)
		require.Equal(t, int32(2), next.calls.Load())
	})

	t.Run("custom status code and reject callback", func(t *testing.T) {
		clock := ratelimittest.NewManualClock(windowStart)
		var rejectedKey string
		handler := MustRateLimitWithOpts(newTestLimiter(t, ratelimit.MustPerMinute(1), clock), testErrDomain, RateLimitOpts{
			ResponseStatusCode: http.StatusServiceUnavailable,
			OnReject: func(rw http.ResponseWriter, r *http.Request, params RateLimitParams, next http.Handler, logger log.FieldLogger) {
				rejectedKey = params.Key
				require.Equal(t, http.StatusServiceUnavailable, params.ResponseStatusCode)
				require.True(t, params.Status.LimitExceeded())
				rw.WriteHeader(params.ResponseStatusCode)
			},
		})(&mockRateLimitNextHandler{})

		require.Equal(t, http.StatusOK, sendRequest(handler, "10.0.0.1:1000", nil).Code)
		require.Equal(t, http.StatusServiceUnavailable, sendRequest(handler, "10.0.0.1:1000", nil).Code)
		require.Equal(t, "10.0.0.1", rejectedKey)
	})

	t.Run("dry run", func(t *testing.T) {
		clock := ratelimittest.NewManualClock(windowStart)
		next := &mockRateLimitNextHandler{}
		logRecorder := logtest.NewRecorder()
		handler := MustRateLimitWithOpts(newTestLimiter(t, ratelimit.MustPerMinute(1), clock), testErrDomain,
			RateLimitOpts{DryRun: true, Clock: clock})(next)

		for i := 0; i < 3; i++ {
			require.Equal(t, http.StatusOK, sendRequest(handler, "10.0.0.1:1000", logRecorder).Code)
		}
		require.Equal(t, int32(3), next.calls.Load())
		warnings := logRecorder.FindAllEntriesByLevel(log.LevelWarn)
		require.Len(t, warnings, 2)
		require.Equal(t, "too many requests, serving will be continued because of dry run mode", warnings[0].Text)
		key, found := warnings[0].FindField(RateLimitLogFieldKey)
		require.True(t, found)
		require.Equal(t, "10.0.0.1", string(key.Bytes))
	})

	t.Run("status is passed to the next handler", func(t *testing.T) {
		clock := ratelimittest.NewManualClock(windowStart)
		var gotStatus ratelimit.Status
		var gotOK bool
		handler := MustRateLimit(newTestLimiter(t, ratelimit.MustPerMinute(5), clock), testErrDomain)(
			http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
				gotStatus, gotOK = GetRateLimitStatusFromContext(r.Context())
			}))

		sendRequest(handler, "10.0.0.1:1000", nil)
		require.True(t, gotOK)
		require.Equal(t, ratelimit.Status{
			Identifier: "10.0.0.1", Current: 1, Limit: 5, ResetTime: windowStart.Unix() + 60,
		}, gotStatus)
	})

	t.Run("limiter failure", func(t *testing.T) {
		next := &mockRateLimitNextHandler{}
		logRecorder := logtest.NewRecorder()
		storeErr := &ratelimit.StoreError{Op: "hit", Key: "10.0.0.1", Err: errors.New("connection refused")}
		handler := MustRateLimit(failingLimiter{err: storeErr}, testErrDomain)(next)

		resp := sendRequest(handler, "10.0.0.1:1000", logRecorder)
		testutil.RequireErrorInRecorder(t, resp, http.StatusInternalServerError, testErrDomain, "internalError")
		require.Empty(t, resp.Header().Get("X-RateLimit-Limit"))
		require.Equal(t, int32(0), next.calls.Load())
		require.Len(t, logRecorder.FindAllEntriesByLevel(log.LevelError), 1)
	})

	t.Run("key cannot be determined", func(t *testing.T) {
		var gotErr error
		handler := MustRateLimitWithOpts(failingLimiter{}, testErrDomain, RateLimitOpts{
			OnError: func(rw http.ResponseWriter, _ *http.Request, _ RateLimitParams, err error, _ http.Handler, _ log.FieldLogger) {
				gotErr = err
				rw.WriteHeader(http.StatusBadRequest)
			},
		})(&mockRateLimitNextHandler{})

		require.Equal(t, http.StatusBadRequest, sendRequest(handler, "no-port", nil).Code)
		require.ErrorContains(t, gotErr, "get key for rate limit")
	})

	t.Run("chain of limiters", func(t *testing.T) {
		clock := ratelimittest.NewManualClock(windowStart)
		store := memstore.NewWithOpts(memstore.Opts{Clock: clock})
		perMinute, err := ratelimit.NewWithOpts(ratelimit.MustPerMinute(3), store, ratelimit.Opts{Clock: clock})
		require.NoError(t, err)
		perHour, err := ratelimit.NewWithOpts(ratelimit.MustPerHour(4), store, ratelimit.Opts{Clock: clock})
		require.NoError(t, err)
		chain, err := ratelimit.NewChain(perMinute, perHour)
		require.NoError(t, err)
		handler := MustRateLimitWithOpts(chain, testErrDomain, RateLimitOpts{Clock: clock})(&mockRateLimitNextHandler{})

		for i := 0; i < 3; i++ {
			require.Equal(t, http.StatusOK, sendRequest(handler, "10.0.0.1:1000", nil).Code)
		}
		require.Equal(t, http.StatusTooManyRequests, sendRequest(handler, "10.0.0.1:1000", nil).Code)

		clock.Advance(time.Minute)
		resp := sendRequest(handler, "10.0.0.1:1000", nil)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Equal(t, "0", resp.Header().Get("X-RateLimit-Remaining"))
		require.Equal(t, http.StatusTooManyRequests, sendRequest(handler, "10.0.0.1:1000", nil).Code)
	})

	t.Run("concurrent requests with atomic store", func(t *testing.T) {
		clock := ratelimittest.NewManualClock(windowStart)
		store, err := lrustore.NewWithOpts(lrustore.Opts{Clock: clock})
		require.NoError(t, err)
		limiter, err := ratelimit.NewWithOpts(ratelimit.MustPerMinute(5), store, ratelimit.Opts{Clock: clock})
		require.NoError(t, err)
		next := &mockRateLimitNextHandler{}
		handler := MustRateLimit(limiter, testErrDomain)(next)

		var rejected atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if sendRequest(handler, "10.0.0.1:1000", nil).Code == http.StatusTooManyRequests {
					rejected.Inc()
				}
			}()
		}
		wg.Wait()
		require.Equal(t, int32(5), next.calls.Load())
		require.Equal(t, int32(15), rejected.Load())
	})
}

func TestRateLimitWithOpts_PredefinedKeys(t *testing.T) {
	tests := []struct {
		name         string
		includedKeys []string
		excludedKeys []string
		remoteAddr   string
		wantLimited  bool
	}{
		{name: "excluded key", excludedKeys: []string{"10.0.0.*"}, remoteAddr: "10.0.0.7:1000", wantLimited: false},
		{name: "not excluded key", excludedKeys: []string{"10.0.0.*"}, remoteAddr: "10.1.0.7:1000", wantLimited: true},
		{name: "included key", includedKeys: []string{"192.168.*", "10.0.0.1"}, remoteAddr: "10.0.0.1:1000", wantLimited: true},
		{name: "not included key", includedKeys: []string{"192.168.*"}, remoteAddr: "10.0.0.1:1000", wantLimited: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := ratelimittest.NewManualClock(windowStart)
			next := &mockRateLimitNextHandler{}
			handler := MustRateLimitWithOpts(newTestLimiter(t, ratelimit.MustPerMinute(1), clock), testErrDomain, RateLimitOpts{
				IncludedKeys: tt.includedKeys,
				ExcludedKeys: tt.excludedKeys,
			})(next)

			first := sendRequest(handler, tt.remoteAddr, nil)
			require.Equal(t, http.StatusOK, first.Code)
			require.Equal(t, tt.wantLimited, first.Header().Get("X-RateLimit-Limit") != "")

			wantCode := http.StatusOK
			if tt.wantLimited {
				wantCode = http.StatusTooManyRequests
			}
			require.Equal(t, wantCode, sendRequest(handler, tt.remoteAddr, nil).Code)
		})
	}

	_, err := RateLimitWithOpts(failingLimiter{}, testErrDomain, RateLimitOpts{
		IncludedKeys: []string{"a"}, ExcludedKeys: []string{"b"},
	})
	require.EqualError(t, err, "excluded and included keys cannot be used together")

	_, err = RateLimit(nil, testErrDomain)
	require.Error(t, err)
}

func TestGetKeyByHeader(t *testing.T) {
	getKey := GetKeyByHeader("X-Client-ID")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	key, bypass, err := getKey(req)
	require.NoError(t, err)
	require.True(t, bypass)
	require.Empty(t, key)

	req.Header.Set("X-Client-ID", "client-42")
	key, bypass, err = getKey(req)
	require.NoError(t, err)
	require.False(t, bypass)
	require.Equal(t, "client-42", key)
}

func TestRateLimitParams_RetryAfter(t *testing.T) {
	params := RateLimitParams{Status: ratelimit.Status{ResetTime: windowStart.Unix() + 60}, Now: windowStart.Add(59500 * time.Millisecond)}
	require.Equal(t, time.Second, params.RetryAfter())

	params.Now = windowStart.Add(15 * time.Second)
	require.Equal(t, 45*time.Second, params.RetryAfter())
}

func TestDefaultRateLimitOnReject_ErrorContext(t *testing.T) {
	decodeErr := func(resp *httptest.ResponseRecorder) *restapi.Error {
		var respData restapi.ErrorResponseData
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &respData))
		require.NotNil(t, respData.Err)
		return respData.Err
	}

	clock := ratelimittest.NewManualClock(windowStart)
	store := memstore.NewWithOpts(memstore.Opts{Clock: clock})
	perMinute, err := ratelimit.NewWithOpts(ratelimit.MustPerMinute(1), store, ratelimit.Opts{Clock: clock})
	require.NoError(t, err)

	handler := MustRateLimitWithOpts(perMinute, testErrDomain, RateLimitOpts{Clock: clock})(&mockRateLimitNextHandler{})
	require.Equal(t, http.StatusOK, sendRequest(handler, "10.0.0.1:1000", nil).Code)
	apiErr := decodeErr(sendRequest(handler, "10.0.0.1:1000", nil))
	require.True(t, apiErr.IsLimitExceeded())
	limit, _ := apiErr.ContextInt64(restapi.ErrContextKeyLimit)
	require.EqualValues(t, 1, limit)
	resetTime, _ := apiErr.ContextInt64(restapi.ErrContextKeyResetTime)
	require.Equal(t, windowStart.Unix()+60, resetTime)
	interval, ok := apiErr.ContextInt64(restapi.ErrContextKeyInterval)
	require.True(t, ok)
	require.EqualValues(t, 60, interval)

	// A chain has no single interval.
	perHour, err := ratelimit.NewWithOpts(ratelimit.MustPerHour(1), store, ratelimit.Opts{Clock: clock})
	require.NoError(t, err)
	chain, err := ratelimit.NewChain(perHour)
	require.NoError(t, err)
	handler = MustRateLimitWithOpts(chain, testErrDomain, RateLimitOpts{Clock: clock})(&mockRateLimitNextHandler{})
	require.Equal(t, http.StatusOK, sendRequest(handler, "10.0.0.2:1000", nil).Code)
	apiErr = decodeErr(sendRequest(handler, "10.0.0.2:1000", nil))
	require.True(t, apiErr.IsLimitExceeded())
	_, ok = apiErr.ContextInt64(restapi.ErrContextKeyInterval)
	require.False(t, ok)
}
