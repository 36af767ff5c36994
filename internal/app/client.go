/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/xid"

	"github.com/acronis/go-ratelimit/httpclient"
	"github.com/acronis/go-ratelimit/httpserver/middleware"
	"github.com/acronis/go-ratelimit/internal/libinfo"
	"github.com/acronis/go-ratelimit/log"
	"github.com/acronis/go-ratelimit/restapi"
)

const clientRequestType = "fwlimit-limits"

// Client calls the HTTP API of a running "fwlimit serve".
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     log.FieldLogger
}

// NewClient creates a new Client for the server at baseURL (e.g. "http://localhost:8080").
// Status requests are retried according to cfg, hits never are.
func NewClient(baseURL string, cfg *httpclient.Config, logger log.FieldLogger) (*Client, error) {
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	httpClient, err := httpclient.NewWithOpts(cfg, httpclient.Opts{
		UserAgent:         "fwlimit/" + libinfo.GetLibVersion(),
		RequestType:       clientRequestType,
		LoggerProvider:    func(context.Context) log.FieldLogger { return logger },
		RequestIDProvider: clientRequestID,
	})
	if err != nil {
		return nil, fmt.Errorf("create http client: %w", err)
	}
	return &Client{BaseURL: strings.TrimSuffix(baseURL, "/"), HTTPClient: httpClient, Logger: logger}, nil
}

// clientRequestID propagates the ID of the request being served, if any, or generates a new one.
func clientRequestID(ctx context.Context) string {
	if reqID := middleware.GetRequestIDFromContext(ctx); reqID != "" {
		return reqID
	}
	return xid.New().String()
}

// Hit registers a hit for the identifier on the server.
// A rejected hit is not an error: the status with LimitExceeded set is returned.
func (c *Client) Hit(ctx context.Context, identifier string) (StatusResponse, error) {
	status, err := c.do(ctx, http.MethodPost, identifier)
	if err == nil {
		return status, nil
	}
	var clientErr *restapi.ClientError
	if !errors.As(err, &clientErr) || clientErr.StatusCode != http.StatusTooManyRequests {
		return StatusResponse{}, err
	}
	apiErr, ok := clientErr.APIError()
	if !ok || !apiErr.IsLimitExceeded() {
		return StatusResponse{}, err
	}
	limit, _ := apiErr.ContextInt64(restapi.ErrContextKeyLimit)
	resetTime, _ := apiErr.ContextInt64(restapi.ErrContextKeyResetTime)
	interval, _ := apiErr.ContextInt64(restapi.ErrContextKeyInterval)
	return StatusResponse{
		Identifier:    identifier,
		Current:       int(limit) + 1, // the counter stops growing right after the limit
		Limit:         int(limit),
		Interval:      interval,
		ResetTime:     resetTime,
		LimitExceeded: true,
	}, nil
}

// Status returns the state of the identifier without counting a hit.
func (c *Client) Status(ctx context.Context, identifier string) (StatusResponse, error) {
	return c.do(ctx, http.MethodGet, identifier)
}

func (c *Client) do(ctx context.Context, method, identifier string) (StatusResponse, error) {
	reqURL := c.BaseURL + "/api/v1/limits/" + url.PathEscape(identifier)
	req, err := http.NewRequestWithContext(ctx, method, reqURL, http.NoBody)
	if err != nil {
		return StatusResponse{}, fmt.Errorf("create request: %w", err)
	}
	var status StatusResponse
	if err = restapi.DoRequestAndUnmarshalJSON(c.HTTPClient, req, &status, c.Logger); err != nil {
		return StatusResponse{}, err
	}
	return status, nil
}
