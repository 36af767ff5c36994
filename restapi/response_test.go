/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package restapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/acronis/go-ratelimit/log"
	"github.com/acronis/go-ratelimit/log/logtest"
	"github.com/acronis/go-ratelimit/testutil"
)

const testDomain = "TestDomain"

type failingWriteRecorder struct {
	*httptest.ResponseRecorder
}

func (rw *failingWriteRecorder) Write(_ []byte) (int, error) {
	return 0, errors.New("error on write")
}

func TestRespondJSON(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		type status struct {
			Identifier string `json:"identifier"`
			Current    int    `json:"current"`
		}
		resp := httptest.NewRecorder()
		logger := logtest.NewRecorder()
		RespondJSON(resp, &status{"ip:1.2.3.4", 1}, logger)
		require.Equal(t, http.StatusOK, resp.Code)
		testutil.RequireJSONInRecorder(t, resp, &status{"ip:1.2.3.4", 1}, &status{})
		require.Empty(t, logger.Entries())
	})

	t.Run("html is not escaped", func(t *testing.T) {
		resp := httptest.NewRecorder()
		RespondJSON(resp, map[string]string{"identifier": "<a&b>"}, nil)
		require.Equal(t, `{"identifier":"<a&b>"}`, resp.Body.String())
	})

	t.Run("marshaling error", func(t *testing.T) {
		resp := httptest.NewRecorder()
		logger := logtest.NewRecorder()
		RespondJSON(resp, make(chan bool), logger)
		require.Equal(t, http.StatusInternalServerError, resp.Code)
		testutil.RequireEmptyBodyInRecorder(t, resp)
		require.Len(t, logger.FindAllEntriesByLevel(log.LevelError), 1)
	})

	t.Run("writing error", func(t *testing.T) {
		logger := logtest.NewRecorder()
		RespondJSON(&failingWriteRecorder{httptest.NewRecorder()}, "foo", logger)
		require.Len(t, logger.FindAllEntriesByLevel(log.LevelError), 1)
	})

	t.Run("nil data", func(t *testing.T) {
		resp := httptest.NewRecorder()
		RespondCodeAndJSON(resp, http.StatusNoContent, nil, nil)
		require.Equal(t, http.StatusNoContent, resp.Code)
		testutil.RequireEmptyBodyInRecorder(t, resp)
	})
}

func TestRespondError(t *testing.T) {
	MustInitAndRegisterMetrics("test")
	defer UnregisterMetrics()

	resp := httptest.NewRecorder()
	logger := logtest.NewRecorder()
	RespondError(resp, http.StatusTooManyRequests, NewTooManyRequestsError(testDomain).AddContext("limit", 5), logger)
	testutil.RequireErrorInRecorder(t, resp, http.StatusTooManyRequests, testDomain, ErrCodeTooManyRequests)

	entry, found := logger.FindEntry("error in response")
	require.True(t, found)
	require.Equal(t, ErrCodeTooManyRequests, entry.FieldString("error_code"))
	require.Equal(t, 1.0, promtestutil.ToFloat64(metricsResponseErrors.WithLabelValues(testDomain, ErrCodeTooManyRequests)))

	resp = httptest.NewRecorder()
	RespondInternalError(resp, testDomain, nil)
	testutil.RequireErrorInRecorder(t, resp, http.StatusInternalServerError, testDomain, ErrCodeInternal)
}

func TestErrorResponseData_Error(t *testing.T) {
	err := &ErrorResponseData{Err: NewTooManyRequestsError(testDomain)}
	require.EqualError(t, err, "HTTP error occurs: TestDomain.tooManyRequests: Too many requests.")
	require.EqualError(t, &ErrorResponseData{}, "HTTP error occurs")
}
