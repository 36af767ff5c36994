/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/vasayxtx/go-glob"

	"github.com/acronis/go-ratelimit/log"
	"github.com/acronis/go-ratelimit/ratelimit"
	"github.com/acronis/go-ratelimit/restapi"
)

// RateLimitLogFieldKey it is the name of the logged field that contains a key for the requests rate limiter.
const RateLimitLogFieldKey = "rate_limit_key"

// Response headers set by the RateLimit middleware.
const (
	headerRateLimitLimit     = "X-RateLimit-Limit"
	headerRateLimitRemaining = "X-RateLimit-Remaining"
	headerRateLimitReset     = "X-RateLimit-Reset"
	headerRetryAfter         = "Retry-After"
)

// Limiter is a fixed-window limiter used by the RateLimit middleware.
// Both *ratelimit.Limiter and ratelimit.Chain implement it.
type Limiter interface {
	LimitSilently(ctx context.Context, identifier string) (ratelimit.Status, error)
}

// RateLimitParams contains data that relates to the rate limiting procedure
// and could be used for rejecting or handling an occurred error.
type RateLimitParams struct {
	ErrDomain          string
	ResponseStatusCode int
	Key                string
	Status             ratelimit.Status

	// Rate is the rate of the limiter. It's zero when the limiter doesn't have a single rate (ratelimit.Chain).
	Rate ratelimit.Rate

	// Now is the time when the request has been checked (according to RateLimitOpts.Clock).
	Now time.Time
}

// RetryAfter returns how long the client should wait before the current window is over.
// It's never less than a second.
func (p RateLimitParams) RetryAfter() time.Duration {
	retryAfter := p.Status.ResetAt().Sub(p.Now)
	if retryAfter < time.Second {
		return time.Second
	}
	return retryAfter
}

// RateLimitOnRejectFunc is a function that is called for rejecting HTTP request when the rate limit is exceeded.
type RateLimitOnRejectFunc func(
	rw http.ResponseWriter, r *http.Request, params RateLimitParams, next http.Handler, logger log.FieldLogger)

// RateLimitOnErrorFunc is a function that is called when the key cannot be determined or the limiter fails.
type RateLimitOnErrorFunc func(
	rw http.ResponseWriter, r *http.Request, params RateLimitParams, err error, next http.Handler, logger log.FieldLogger)

// RateLimitGetKeyFunc is a function that is called for getting the identifier for rate limiting.
// If bypass is true, the request is not counted.
type RateLimitGetKeyFunc func(r *http.Request) (key string, bypass bool, err error)

// RateLimitOpts represents an options for the RateLimit middleware.
type RateLimitOpts struct {
	// GetKey returns the identifier of the request. GetKeyByRemoteAddr is used by default.
	GetKey RateLimitGetKeyFunc

	// IncludedKeys is a list of glob patterns. Only requests with matching keys are limited.
	IncludedKeys []string

	// ExcludedKeys is a list of glob patterns. Requests with matching keys are not limited.
	// It cannot be used together with IncludedKeys.
	ExcludedKeys []string

	// ResponseStatusCode is sent when the limit is exceeded. 429 is used by default.
	ResponseStatusCode int

	// DryRun enables the mode when exceeded requests are only logged and served as usual.
	DryRun bool

	// Clock is used for computing Retry-After. It should be the same clock the limiter uses.
	Clock ratelimit.Clock

	OnReject         RateLimitOnRejectFunc
	OnRejectInDryRun RateLimitOnRejectFunc
	OnError          RateLimitOnErrorFunc
}

type rateLimitHandler struct {
	next           http.Handler
	limiter        Limiter
	getKey         RateLimitGetKeyFunc
	errDomain      string
	respStatusCode int
	clock          ratelimit.Clock
	rate           ratelimit.Rate

	onReject RateLimitOnRejectFunc
	onError  RateLimitOnErrorFunc
}

// RateLimit is a middleware that limits the rate of HTTP requests per remote IP address
// using fixed windows (see ratelimit.Limiter).
func RateLimit(limiter Limiter, errDomain string) (func(next http.Handler) http.Handler, error) {
	return RateLimitWithOpts(limiter, errDomain, RateLimitOpts{})
}

// MustRateLimit is a version of RateLimit that panics if an error occurs.
func MustRateLimit(limiter Limiter, errDomain string) func(next http.Handler) http.Handler {
	mw, err := RateLimit(limiter, errDomain)
	if err != nil {
		panic(err)
	}
	return mw
}

// RateLimitWithOpts is a configurable version of a middleware to limit the rate of HTTP requests.
func RateLimitWithOpts(limiter Limiter, errDomain string, opts RateLimitOpts) (func(next http.Handler) http.Handler, error) {
	if limiter == nil {
		return nil, fmt.Errorf("limiter cannot be nil")
	}

	getKey := opts.GetKey
	if getKey == nil {
		getKey = GetKeyByRemoteAddr
	}
	getKey, err := makeGetKeyWithPredefinedKeys(getKey, opts.IncludedKeys, opts.ExcludedKeys)
	if err != nil {
		return nil, err
	}

	respStatusCode := opts.ResponseStatusCode
	if respStatusCode == 0 {
		respStatusCode = http.StatusTooManyRequests
	}
	clock := opts.Clock
	if clock == nil {
		clock = ratelimit.SystemClock
	}

	var rate ratelimit.Rate
	if rp, ok := limiter.(interface{ Rate() ratelimit.Rate }); ok {
		rate = rp.Rate()
	}

	return func(next http.Handler) http.Handler {
		return &rateLimitHandler{
			next:           next,
			limiter:        limiter,
			rate:           rate,
			getKey:         getKey,
			errDomain:      errDomain,
			respStatusCode: respStatusCode,
			clock:          clock,
			onReject:       makeRateLimitOnRejectFunc(opts),
			onError:        makeRateLimitOnErrorFunc(opts),
		}
	}, nil
}

// MustRateLimitWithOpts is a version of RateLimitWithOpts that panics if an error occurs.
func MustRateLimitWithOpts(limiter Limiter, errDomain string, opts RateLimitOpts) func(next http.Handler) http.Handler {
	mw, err := RateLimitWithOpts(limiter, errDomain, opts)
	if err != nil {
		panic(err)
	}
	return mw
}

func (h *rateLimitHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	params := RateLimitParams{ErrDomain: h.errDomain, ResponseStatusCode: h.respStatusCode, Rate: h.rate}
	logger := GetLoggerFromContext(r.Context())

	key, bypass, err := h.getKey(r)
	if err != nil {
		h.onError(rw, r, params, fmt.Errorf("get key for rate limit: %w", err), h.next, logger)
		return
	}
	if bypass {
		h.next.ServeHTTP(rw, r)
		return
	}
	params.Key = key

	status, err := h.limiter.LimitSilently(r.Context(), key)
	if err != nil {
		h.onError(rw, r, params, err, h.next, logger)
		return
	}
	params.Status = status
	params.Now = h.clock.Now()

	SetRateLimitHeaders(rw.Header(), status)

	r = r.WithContext(NewContextWithRateLimitStatus(r.Context(), status))
	if status.LimitExceeded() {
		h.onReject(rw, r, params, h.next, logger)
		return
	}
	h.next.ServeHTTP(rw, r)
}

// SetRateLimitHeaders sets X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset headers.
func SetRateLimitHeaders(header http.Header, status ratelimit.Status) {
	header.Set(headerRateLimitLimit, strconv.Itoa(status.Limit))
	header.Set(headerRateLimitRemaining, strconv.Itoa(status.RemainingAttempts()))
	header.Set(headerRateLimitReset, strconv.FormatInt(status.ResetTime, 10))
}

// GetKeyByRemoteAddr returns the IP address of the client as the identifier for rate limiting.
func GetKeyByRemoteAddr(r *http.Request) (key string, bypass bool, err error) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	return host, false, err
}

// GetKeyByHeader returns a RateLimitGetKeyFunc that uses the value of the given HTTP header as the identifier.
// Requests without the header are not limited.
func GetKeyByHeader(headerName string) RateLimitGetKeyFunc {
	return func(r *http.Request) (string, bool, error) {
		val := r.Header.Get(headerName)
		return val, val == "", nil
	}
}

// DefaultRateLimitOnReject sends 429 HTTP response with Retry-After header and JSON error in body.
func DefaultRateLimitOnReject(
	rw http.ResponseWriter, r *http.Request, params RateLimitParams, _ http.Handler, logger log.FieldLogger,
) {
	if logger != nil {
		logger = logger.With(
			log.String(RateLimitLogFieldKey, params.Key),
			log.String(userAgentLogFieldKey, r.UserAgent()),
		)
	}
	rw.Header().Set(headerRetryAfter, strconv.Itoa(int(math.Ceil(params.RetryAfter().Seconds()))))
	apiErr := restapi.NewLimitExceededError(params.ErrDomain, params.Status.Limit, params.Status.ResetTime)
	if !params.Rate.IsZero() {
		apiErr.AddContext(restapi.ErrContextKeyInterval, params.Rate.IntervalSeconds())
	}
	restapi.RespondError(rw, params.ResponseStatusCode, apiErr, logger)
}

// DefaultRateLimitOnError sends 500 HTTP response with JSON error in body.
func DefaultRateLimitOnError(
	rw http.ResponseWriter, _ *http.Request, params RateLimitParams, err error, _ http.Handler, logger log.FieldLogger,
) {
	if logger != nil {
		logger.Error(err.Error(), log.String(RateLimitLogFieldKey, params.Key))
	}
	restapi.RespondInternalError(rw, params.ErrDomain, logger)
}

// DefaultRateLimitOnRejectInDryRun logs the exceeded limit and serves the request as usual.
func DefaultRateLimitOnRejectInDryRun(
	rw http.ResponseWriter, r *http.Request, params RateLimitParams, next http.Handler, logger log.FieldLogger,
) {
	if logger != nil {
		logger.Warn("too many requests, serving will be continued because of dry run mode",
			log.String(RateLimitLogFieldKey, params.Key),
			log.String(userAgentLogFieldKey, r.UserAgent()),
		)
	}
	next.ServeHTTP(rw, r)
}

func makeRateLimitOnRejectFunc(opts RateLimitOpts) RateLimitOnRejectFunc {
	if opts.DryRun {
		if opts.OnRejectInDryRun != nil {
			return opts.OnRejectInDryRun
		}
		return DefaultRateLimitOnRejectInDryRun
	}
	if opts.OnReject != nil {
		return opts.OnReject
	}
	return DefaultRateLimitOnReject
}

func makeRateLimitOnErrorFunc(opts RateLimitOpts) RateLimitOnErrorFunc {
	if opts.OnError != nil {
		return opts.OnError
	}
	return DefaultRateLimitOnError
}

func makeGetKeyWithPredefinedKeys(
	getKey RateLimitGetKeyFunc, includedKeys, excludedKeys []string,
) (RateLimitGetKeyFunc, error) {
	if len(excludedKeys) == 0 && len(includedKeys) == 0 {
		return getKey, nil
	}
	if len(excludedKeys) != 0 && len(includedKeys) != 0 {
		return nil, fmt.Errorf("excluded and included keys cannot be used together")
	}

	exclude := len(excludedKeys) != 0
	keys := includedKeys
	if exclude {
		keys = excludedKeys
	}
	matchers := make([]func(s string) bool, 0, len(keys))
	for _, key := range keys {
		matchers = append(matchers, glob.Compile(key))
	}

	return func(r *http.Request) (string, bool, error) {
		key, bypass, err := getKey(r)
		if err != nil || bypass {
			return key, bypass, err
		}
		found := false
		for i := range matchers {
			if matchers[i](key) {
				found = true
				break
			}
		}
		return key, found == exclude, nil
	}, nil
}
