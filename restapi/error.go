/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package restapi

import (
	"net/http"
	"strings"
)

// Error is the body of every non-2xx response of the API.
type Error struct {
	Domain  string         `json:"domain"`
	Code    string         `json:"code"`
	Message string         `json:"message,omitempty"`
	Context map[string]interface{} `json:"context,omitempty"`
	Debug   map[string]interface{} `json:"debug,omitempty"`
}

// Error codes.
// They are variables so a service may replace them with its own vocabulary.
var (
	ErrCodeInternal         = "internalError"
	ErrCodeNotFound         = "notFound"
	ErrCodeBadRequest       = "badRequest"
	ErrCodeTooManyRequests  = "tooManyRequests"
	ErrCodeMethodNotAllowed = "methodNotAllowed"
)

// Error messages.
var (
	ErrMessageInternal         = "Internal error."
	ErrMessageNotFound         = "Not found."
	ErrMessageTooManyRequests  = "Too many requests."
	ErrMessageMethodNotAllowed = "Method not allowed."
)

// Keys of the context of a rate limit error.
const (
	ErrContextKeyLimit     = "limit"
	ErrContextKeyResetTime = "resetTime"
	ErrContextKeyInterval  = "interval"
)

// NewError creates a new Error with specified params.
func NewError(domain, code, message string) *Error {
	return &Error{Domain: domain, Code: code, Message: message}
}

// NewInternalError creates a new internal error with specified domain.
func NewInternalError(domain string) *Error {
	return NewError(domain, ErrCodeInternal, ErrMessageInternal)
}

// NewTooManyRequestsError creates a new error which is sent when the rate limit is exceeded.
func NewTooManyRequestsError(domain string) *Error {
	return NewError(domain, ErrCodeTooManyRequests, ErrMessageTooManyRequests)
}

// NewLimitExceededError creates a tooManyRequests error that tells the client
// the quota of the window and when (unix seconds) the window is reset.
func NewLimitExceededError(domain string, limit int, resetTime int64) *Error {
	return NewTooManyRequestsError(domain).
		AddContext(ErrContextKeyLimit, limit).
		AddContext(ErrContextKeyResetTime, resetTime)
}

// IsLimitExceeded reports whether the error was sent because a rate limit was exceeded.
func (e *Error) IsLimitExceeded() bool {
	return e.Code == ErrCodeTooManyRequests
}

// AddContext adds value to error context.
func (e *Error) AddContext(field string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[field] = value
	return e
}

// AddDebug adds value to debug info.
func (e *Error) AddDebug(field string, value interface{}) *Error {
	if e.Debug == nil {
		e.Debug = make(map[string]interface{})
	}
	e.Debug[field] = value
	return e
}

// ContextInt64 returns the integer stored in the error context.
// Numbers of a decoded response body are float64, so both kinds are accepted.
func (e *Error) ContextInt64(field string) (int64, bool) {
	switch v := e.Context[field].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

// ErrorCodeFromHTTPStatus converts an HTTP status code into an error code ("Too Many Requests" -> "tooManyRequests").
func ErrorCodeFromHTTPStatus(httpCode int) string {
	if httpCode == http.StatusInternalServerError {
		return ErrCodeInternal
	}
	words := strings.Fields(strings.ToLower(http.StatusText(httpCode)))
	for i := 1; i < len(words); i++ {
		words[i] = strings.ToUpper(words[i][:1]) + words[i][1:]
	}
	return strings.Join(words, "")
}
