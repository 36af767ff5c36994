/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package restapi

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-ratelimit/log/logtest"
)

type statusResp struct {
	Identifier string `json:"identifier"`
	Current    int    `json:"current"`
}

func newTestServer(t *testing.T, statusCode int, contentType, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if contentType != "" {
			rw.Header().Set("Content-Type", contentType)
		}
		rw.WriteHeader(statusCode)
		_, _ = rw.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestDoRequest(t *testing.T) {
	server := newTestServer(t, http.StatusOK, ContentTypeAppJSON, `{}`)
	logger := logtest.NewRecorder()

	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/v1/limits/user-1", http.NoBody)
	require.NoError(t, err)
	resp, err := DoRequest(server.Client(), req, logger)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	_, found := logger.FindEntry("got response")
	require.True(t, found)

	req, err = http.NewRequest(http.MethodGet, "http://127.0.0.1:1/unreachable", http.NoBody)
	require.NoError(t, err)
	_, err = DoRequest(server.Client(), req, logger)
	require.Error(t, err)
}

func TestDoRequestAndUnmarshalJSON(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := newTestServer(t, http.StatusOK, ContentTypeAppJSON, `{"identifier":"user-1","current":2}`)
		req, err := http.NewRequest(http.MethodGet, server.URL, http.NoBody)
		require.NoError(t, err)
		var got statusResp
		require.NoError(t, DoRequestAndUnmarshalJSON(server.Client(), req, &got, nil))
		require.Equal(t, statusResp{Identifier: "user-1", Current: 2}, got)
	})

	t.Run("malformed response", func(t *testing.T) {
		server := newTestServer(t, http.StatusOK, ContentTypeAppJSON, `|`)
		req, err := http.NewRequest(http.MethodGet, server.URL, http.NoBody)
		require.NoError(t, err)
		err = DoRequestAndUnmarshalJSON(server.Client(), req, &statusResp{}, logtest.NewRecorder())
		var clientErr *ClientError
		require.ErrorAs(t, err, &clientErr)
		require.Equal(t, http.StatusOK, clientErr.StatusCode)
		require.ErrorContains(t, clientErr.Err, "invalid character")
	})

	t.Run("json error", func(t *testing.T) {
		server := newTestServer(t, http.StatusTooManyRequests, ContentTypeAppJSON,
			`{"error":{"domain":"Limits","code":"tooManyRequests","message":"Too many requests."}}`)
		req, err := http.NewRequest(http.MethodPost, server.URL, http.NoBody)
		require.NoError(t, err)
		err = DoRequestAndUnmarshalJSON(server.Client(), req, &statusResp{}, nil)
		var clientErr *ClientError
		require.ErrorAs(t, err, &clientErr)
		require.Equal(t, http.StatusTooManyRequests, clientErr.StatusCode)
		apiErr, ok := clientErr.APIError()
		require.True(t, ok)
		require.Equal(t, NewTooManyRequestsError("Limits"), apiErr)
	})

	t.Run("text error", func(t *testing.T) {
		server := newTestServer(t, http.StatusForbidden, "text/plain", "access denied")
		req, err := http.NewRequest(http.MethodGet, server.URL, http.NoBody)
		require.NoError(t, err)
		err = DoRequestAndUnmarshalJSON(server.Client(), req, nil, nil)
		var clientErr *ClientError
		require.ErrorAs(t, err, &clientErr)
		apiErr, ok := clientErr.APIError()
		require.True(t, ok)
		require.Equal(t, "forbidden", apiErr.Code)
		require.Equal(t, "access denied", apiErr.Debug["body"])
	})

	t.Run("malformed json error", func(t *testing.T) {
		server := newTestServer(t, http.StatusBadRequest, ContentTypeAppJSON, `|`)
		req, err := http.NewRequest(http.MethodGet, server.URL, http.NoBody)
		require.NoError(t, err)
		err = DoRequestAndUnmarshalJSON(server.Client(), req, nil, nil)
		var clientErr *ClientError
		require.ErrorAs(t, err, &clientErr)
		_, ok := clientErr.APIError()
		require.False(t, ok)
		require.ErrorContains(t, err, "unmarshaling error response")
	})

	t.Run("unexpected status", func(t *testing.T) {
		server := newTestServer(t, http.StatusNotModified, "", "")
		req, err := http.NewRequest(http.MethodGet, server.URL, http.NoBody)
		require.NoError(t, err)
		err = DoRequestAndUnmarshalJSON(server.Client(), req, nil, nil)
		require.ErrorContains(t, err, "unexpected status code")
	})
}

func TestReadResponseBody(t *testing.T) {
	logger := logtest.NewRecorder()

	_, err := readResponseBody(&http.Response{Body: io.NopCloser(iotest.ErrReader(errors.New("broken")))}, logger, &ClientError{})
	require.ErrorContains(t, err, "broken")

	_, err = readResponseBody(&http.Response{Body: io.NopCloser(bytes.NewReader(nil))}, logger, &ClientError{})
	require.ErrorContains(t, err, "empty response")

	buf, err := readResponseBody(&http.Response{Body: io.NopCloser(bytes.NewReader([]byte("{}")))}, logger, &ClientError{})
	require.NoError(t, err)
	require.Equal(t, []byte("{}"), buf)
}
