/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserAgentRoundTripper(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("X-Echo-User-Agent", r.Header.Get("User-Agent"))
		rw.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	const rtUserAgent = "fwlimit/v1.0.0"
	tests := []struct {
		name          string
		reqUserAgent  string
		strategy      UserAgentUpdateStrategy
		wantUserAgent string
	}{
		{"set if empty", "", UserAgentUpdateStrategySetIfEmpty, rtUserAgent},
		{"set if empty, existing", "curl/8.0", UserAgentUpdateStrategySetIfEmpty, "curl/8.0"},
		{"append, empty", "", UserAgentUpdateStrategyAppend, rtUserAgent},
		{"append, existing", "curl/8.0", UserAgentUpdateStrategyAppend, "curl/8.0 " + rtUserAgent},
		{"prepend, empty", "", UserAgentUpdateStrategyPrepend, rtUserAgent},
		{"prepend, existing", "curl/8.0", UserAgentUpdateStrategyPrepend, rtUserAgent + " curl/8.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, server.URL+"/", http.NoBody)
			require.NoError(t, err)
			if tt.reqUserAgent != "" {
				req.Header.Set("User-Agent", tt.reqUserAgent)
			}
			rt := NewUserAgentRoundTripperWithOpts(http.DefaultTransport, rtUserAgent, UserAgentRoundTripperOpts{
				UpdateStrategy: tt.strategy,
			})
			resp, err := (&http.Client{Transport: rt}).Do(req)
			require.NoError(t, err)
			require.NoError(t, resp.Body.Close())
			require.Equal(t, tt.wantUserAgent, resp.Header.Get("X-Echo-User-Agent"))
		})
	}
}
