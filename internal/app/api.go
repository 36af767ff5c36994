/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package app

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/acronis/go-ratelimit/httpserver"
	"github.com/acronis/go-ratelimit/httpserver/middleware"
	"github.com/acronis/go-ratelimit/log"
	"github.com/acronis/go-ratelimit/ratelimit"
	"github.com/acronis/go-ratelimit/restapi"
)

// ErrorDomain is a domain of errors in HTTP responses.
const ErrorDomain = "FWLimit"

const urlParamIdentifier = "identifier"

// StatusResponse is the JSON representation of ratelimit.Status in HTTP responses and the CLI output.
type StatusResponse struct {
	Identifier        string `json:"identifier"`
	Current           int    `json:"current"`
	Limit             int    `json:"limit"`
	Interval          int64  `json:"interval"`
	RemainingAttempts int    `json:"remainingAttempts"`
	ResetTime         int64  `json:"resetTime"`
	LimitExceeded     bool   `json:"limitExceeded"`
}

// NewStatusResponse converts ratelimit.Status of a limiter with the given rate into StatusResponse.
func NewStatusResponse(status ratelimit.Status, rate ratelimit.Rate) StatusResponse {
	return StatusResponse{
		Identifier:        status.Identifier,
		Current:           status.Current,
		Limit:             status.Limit,
		Interval:          rate.IntervalSeconds(),
		RemainingAttempts: status.RemainingAttempts(),
		ResetTime:         status.ResetTime,
		LimitExceeded:     status.LimitExceeded(),
	}
}

// Rate returns the rate the status was counted with.
func (sr StatusResponse) Rate() (ratelimit.Rate, error) {
	return ratelimit.NewRate(sr.Limit, sr.Interval)
}

type apiHandler struct {
	app *App
}

// APIRoutes returns routes of the v1 API:
//
//	POST /limits/{identifier}  registers a hit (429 if the limit is exceeded)
//	GET  /limits/{identifier}  returns the current status without counting
//	GET  /ping                 is limited per client (remote IP or the configured header)
func (a *App) APIRoutes(cfg httpserver.RateLimitConfig) (map[httpserver.APIVersion]httpserver.APIRoute, error) {
	getClientKey := middleware.GetKeyByRemoteAddr
	if cfg.KeyHeader != "" {
		getClientKey = middleware.GetKeyByHeader(cfg.KeyHeader)
	}
	pingLimiterOpts := a.limiterOpts
	pingLimiterOpts.KeyPrefix += pingKeyPrefix
	pingLimiter, err := ratelimit.NewWithOpts(a.Limiter.Rate(), a.Store.Backend, pingLimiterOpts)
	if err != nil {
		return nil, fmt.Errorf("create ping limiter: %w", err)
	}
	pingLimit, err := middleware.RateLimitWithOpts(pingLimiter, ErrorDomain, middleware.RateLimitOpts{
		GetKey:       getClientKey,
		IncludedKeys: cfg.IncludedKeys,
		ExcludedKeys: cfg.ExcludedKeys,
		DryRun:       cfg.DryRun,
		Clock:        a.limiterOpts.Clock,
	})
	if err != nil {
		return nil, err
	}
	hitLimit, err := middleware.RateLimitWithOpts(a.Limiter, ErrorDomain, middleware.RateLimitOpts{
		GetKey: getKeyByIdentifier,
		Clock:  a.limiterOpts.Clock,
	})
	if err != nil {
		return nil, err
	}

	h := &apiHandler{app: a}
	return map[httpserver.APIVersion]httpserver.APIRoute{
		1: func(router chi.Router) {
			router.With(hitLimit).Post("/limits/{"+urlParamIdentifier+"}", h.hit)
			router.Get("/limits/{"+urlParamIdentifier+"}", h.status)
			router.With(pingLimit).Get("/ping", h.ping)
		},
	}, nil
}

func getKeyByIdentifier(r *http.Request) (key string, bypass bool, err error) {
	return identifierFromRequest(r), false, nil
}

// identifierFromRequest returns the decoded identifier.
// Chi routes by r.URL.RawPath when it is set (e.g. "user%2F42"), and the param is still escaped then.
// Otherwise the param comes from the already decoded r.URL.Path and must not be decoded twice.
func identifierFromRequest(r *http.Request) string {
	param := chi.URLParam(r, urlParamIdentifier)
	if r.URL.RawPath == "" {
		return param
	}
	if identifier, err := url.PathUnescape(param); err == nil {
		return identifier
	}
	return param
}

func (h *apiHandler) hit(rw http.ResponseWriter, r *http.Request) {
	status, _ := middleware.GetRateLimitStatusFromContext(r.Context())
	restapi.RespondJSON(rw, NewStatusResponse(status, h.app.Limiter.Rate()), middleware.GetLoggerFromContext(r.Context()))
}

func (h *apiHandler) status(rw http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLoggerFromContext(r.Context())
	status, err := h.app.Status(r.Context(), identifierFromRequest(r))
	if err != nil {
		if logger != nil {
			logger.Error("failed to read rate limit status", log.Error(err))
		}
		restapi.RespondInternalError(rw, ErrorDomain, logger)
		return
	}
	middleware.SetRateLimitHeaders(rw.Header(), status)
	restapi.RespondJSON(rw, NewStatusResponse(status, h.app.Limiter.Rate()), logger)
}

func (h *apiHandler) ping(rw http.ResponseWriter, r *http.Request) {
	restapi.RespondJSON(rw, map[string]string{"message": "pong"}, middleware.GetLoggerFromContext(r.Context()))
}

// HealthCheck reports the store availability.
func (a *App) HealthCheck(ctx context.Context) (httpserver.HealthCheckResult, error) {
	return a.healthCheck(ctx)
}
