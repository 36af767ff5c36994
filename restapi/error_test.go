/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package restapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorCodeFromHTTPStatus(t *testing.T) {
	tests := []struct {
		httpCode    int
		wantErrCode string
	}{
		{http.StatusInternalServerError, ErrCodeInternal},
		{http.StatusNotFound, ErrCodeNotFound},
		{http.StatusBadRequest, ErrCodeBadRequest},
		{http.StatusTooManyRequests, ErrCodeTooManyRequests},
		{http.StatusServiceUnavailable, "serviceUnavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.wantErrCode, func(t *testing.T) {
			require.Equal(t, tt.wantErrCode, ErrorCodeFromHTTPStatus(tt.httpCode))
		})
	}
}

func TestError_AddContextAndDebug(t *testing.T) {
	err := NewTooManyRequestsError("Limits").AddContext("limit", 5).AddDebug("key", "ip-1.2.3.4")
	require.Equal(t, "Limits", err.Domain)
	require.Equal(t, ErrCodeTooManyRequests, err.Code)
	require.Equal(t, map[string]interface{}{"limit": 5}, err.Context)
	require.Equal(t, map[string]interface{}{"key": "ip-1.2.3.4"}, err.Debug)
}

func TestNewLimitExceededError(t *testing.T) {
	err := NewLimitExceededError("Limits", 5, 1700000060)
	require.True(t, err.IsLimitExceeded())
	require.Equal(t, ErrMessageTooManyRequests, err.Message)

	limit, ok := err.ContextInt64(ErrContextKeyLimit)
	require.True(t, ok)
	require.EqualValues(t, 5, limit)
	resetTime, ok := err.ContextInt64(ErrContextKeyResetTime)
	require.True(t, ok)
	require.EqualValues(t, 1700000060, resetTime)

	require.False(t, NewInternalError("Limits").IsLimitExceeded())
}

func TestError_ContextInt64(t *testing.T) {
	err := NewError("Limits", ErrCodeBadRequest, "").
		AddContext("decoded", float64(42)).
		AddContext("name", "bob")

	v, ok := err.ContextInt64("decoded")
	require.True(t, ok)
	require.EqualValues(t, 42, v)

	_, ok = err.ContextInt64("name")
	require.False(t, ok)
	_, ok = err.ContextInt64("missing")
	require.False(t, ok)
}
