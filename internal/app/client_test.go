/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-ratelimit/httpclient"
	"github.com/acronis/go-ratelimit/log/logtest"
	"github.com/acronis/go-ratelimit/ratelimit/ratelimittest"
	"github.com/acronis/go-ratelimit/restapi"
)

func TestClient(t *testing.T) {
	ctx := context.Background()
	clock := ratelimittest.NewManualClock(windowStart)
	cfg := newTestConfig(1, StoreTypeMemory)
	a := newTestApp(t, cfg, clock)
	_, srv, err := a.NewServerUnit(cfg)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.HTTPRouter)
	defer ts.Close()
	resetTime := windowStart.Unix() + 60

	logRecorder := logtest.NewRecorder()
	client, err := NewClient(ts.URL+"/", httpclient.NewDefaultConfig(), logRecorder)
	require.NoError(t, err)

	status, err := client.Status(ctx, "user/42")
	require.NoError(t, err)
	require.Equal(t, StatusResponse{Identifier: "user/42", Limit: 1, Interval: 60, RemainingAttempts: 1, ResetTime: resetTime}, status)

	status, err = client.Hit(ctx, "user/42")
	require.NoError(t, err)
	require.Equal(t, StatusResponse{Identifier: "user/42", Current: 1, Limit: 1, Interval: 60, ResetTime: resetTime}, status)

	clock.Advance(10 * time.Second)
	status, err = client.Hit(ctx, "user/42")
	require.NoError(t, err)
	require.Equal(t, StatusResponse{Identifier: "user/42", Current: 2, Limit: 1, Interval: 60, ResetTime: resetTime, LimitExceeded: true}, status)

	status, err = client.Status(ctx, "user/42")
	require.NoError(t, err)
	require.Equal(t, 2, status.Current)
	require.True(t, status.LimitExceeded)

	// Rejected hits are logged as failed requests.
	entry, found := logRecorder.FindEntry("client http request done")
	require.True(t, found)
	require.Equal(t, http.MethodPost, entry.FieldString("method"))
	require.NotEmpty(t, entry.FieldString("request_id"))
}

func TestClient_IdentifiersRoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(1, StoreTypeMemory)
	a := newTestApp(t, cfg, ratelimittest.NewManualClock(windowStart))
	_, srv, err := a.NewServerUnit(cfg)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.HTTPRouter)
	defer ts.Close()

	client, err := NewClient(ts.URL, httpclient.NewDefaultConfig(), nil)
	require.NoError(t, err)

	identifiers := []string{"a%41", "aA", "user/42", "user%2F42", "2001:db8::1", "100%", "ping.127.0.0.1"}
	for _, identifier := range identifiers {
		status, err := client.Hit(ctx, identifier)
		require.NoError(t, err, identifier)
		require.Equal(t, identifier, status.Identifier)
		require.Equal(t, 1, status.Current, identifier)
	}
	for _, identifier := range identifiers {
		status, err := client.Status(ctx, identifier)
		require.NoError(t, err, identifier)
		require.Equal(t, identifier, status.Identifier)
		require.Equal(t, 1, status.Current, identifier)
	}

	status, err := client.Hit(ctx, "a%41")
	require.NoError(t, err)
	require.True(t, status.LimitExceeded)
	rate, err := status.Rate()
	require.NoError(t, err)
	require.True(t, rate.Equal(a.Limiter.Rate()))
}

func TestClient_ServerError(t *testing.T) {
	var reqsNum atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		reqsNum.Add(1)
		restapi.RespondInternalError(rw, ErrorDomain, nil)
	}))
	defer ts.Close()

	cfg := httpclient.NewDefaultConfig()
	cfg.Retries.Policy = httpclient.PolicyConfig{
		Strategy:                httpclient.RetryPolicyConstant,
		ConstantBackoffInterval: time.Millisecond,
	}
	client, err := NewClient(ts.URL, cfg, nil)
	require.NoError(t, err)

	// A hit is sent once so it is never counted twice.
	_, err = client.Hit(context.Background(), "alice")
	require.EqualValues(t, 1, reqsNum.Load())
	var clientErr *restapi.ClientError
	require.True(t, errors.As(err, &clientErr))
	require.Equal(t, http.StatusInternalServerError, clientErr.StatusCode)
	apiErr, ok := clientErr.APIError()
	require.True(t, ok)
	require.Equal(t, restapi.ErrCodeInternal, apiErr.Code)

	reqsNum.Store(0)
	_, err = client.Status(context.Background(), "alice")
	require.Error(t, err)
	require.EqualValues(t, 1+cfg.Retries.MaxAttempts, reqsNum.Load())
}
