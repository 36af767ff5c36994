/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package restapi_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/acronis/go-ratelimit/restapi"
)

func Example() {
	handler := http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		apiErr := restapi.NewTooManyRequestsError("Limits").AddContext("identifier", "ip:1.2.3.4")
		restapi.RespondError(rw, http.StatusTooManyRequests, apiErr, nil)
	})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/limits/ip:1.2.3.4", http.NoBody))

	fmt.Println(resp.Code)
	fmt.Println(resp.Body.String())

	// Output:
	// 429
	// {"error":{"domain":"Limits","code":"tooManyRequests","message":"Too many requests.","context":{"identifier":"ip:1.2.3.4"}}}
}
