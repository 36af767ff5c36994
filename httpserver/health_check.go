/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"context"
	"errors"
	"net/http"
	"sort"

	"github.com/acronis/go-ratelimit/httpserver/middleware"
	"github.com/acronis/go-ratelimit/log"
	"github.com/acronis/go-ratelimit/restapi"
)

// StatusClientClosedRequest is the non-standard code (introduced by Nginx) answered
// when the client has gone before the health-check finished.
const StatusClientClosedRequest = 499

// HealthCheckComponentName names a checked component ("store", for example).
type HealthCheckComponentName = string

// HealthCheckStatus is a resulting status of the health-check.
type HealthCheckStatus int

// Health-check statuses.
const (
	HealthCheckStatusOK HealthCheckStatus = iota
	HealthCheckStatusFail
)

// HealthCheckResult maps components to their statuses.
type HealthCheckResult = map[HealthCheckComponentName]HealthCheckStatus

// HealthCheck is a health-check operation which has access to the request context.
type HealthCheck = func(ctx context.Context) (HealthCheckResult, error)

// HealthProbe checks a single component. A non-nil error marks the component unhealthy.
type HealthProbe = func(ctx context.Context) error

// NewHealthCheckFromProbes combines per-component probes into a HealthCheck.
// Probes run sequentially in the order of component names.
// A failed probe is logged with a warning and does not stop the others,
// while the cancellation of the context aborts the whole check.
func NewHealthCheckFromProbes(probes map[HealthCheckComponentName]HealthProbe, logger log.FieldLogger) HealthCheck {
	names := make([]HealthCheckComponentName, 0, len(probes))
	for name := range probes {
		names = append(names, name)
	}
	sort.Strings(names)
	if logger == nil {
		logger = log.NewDisabledLogger()
	}

	return func(ctx context.Context) (HealthCheckResult, error) {
		result := make(HealthCheckResult, len(names))
		for _, name := range names {
			err := probes[name](ctx)
			if err == nil {
				result[name] = HealthCheckStatusOK
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("component is unhealthy", log.String("component", name), log.Error(err))
			result[name] = HealthCheckStatusFail
		}
		return result, nil
	}
}

type healthCheckResponseData struct {
	Components map[string]bool `json:"components"`
}

// HealthCheckHandler is an http.Handler answering 200 when every component is healthy and 503 otherwise.
type HealthCheckHandler struct {
	healthCheckFn HealthCheck
}

// NewHealthCheckHandler creates a new http.Handler for doing health-check.
// A nil fn reports no components, so the service is healthy while it is able to answer.
func NewHealthCheckHandler(fn HealthCheck) *HealthCheckHandler {
	if fn == nil {
		fn = func(ctx context.Context) (HealthCheckResult, error) {
			return HealthCheckResult{}, ctx.Err()
		}
	}
	return &HealthCheckHandler{fn}
}

// ServeHTTP serves heath-check HTTP request.
func (h *HealthCheckHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLoggerFromContext(r.Context())

	hcResult, err := h.healthCheckFn(r.Context())
	if err == nil {
		err = r.Context().Err()
	}
	switch {
	case errors.Is(err, context.Canceled):
		rw.WriteHeader(StatusClientClosedRequest)
		return
	case err != nil:
		if logger != nil {
			logger.Error("health-check failed", log.Error(err))
		}
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}

	respStatus := http.StatusOK
	respData := healthCheckResponseData{Components: make(map[string]bool, len(hcResult))}
	for name, status := range hcResult {
		healthy := status == HealthCheckStatusOK
		respData.Components[name] = healthy
		if !healthy {
			respStatus = http.StatusServiceUnavailable
		}
	}
	restapi.RespondCodeAndJSON(rw, respStatus, respData, logger)
}
