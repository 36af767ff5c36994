/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import "context"

type ctxKey int

const ctxKeyIdempotentHint ctxKey = iota

// NewContextWithIdempotentHint returns a derived context that carries an "idempotent request" hint.
// When set to true, RetryableRoundTripper may retry the request even if its method is not GET, HEAD or OPTIONS.
// A hit (POST) must never carry it: a retried hit could be counted twice.
func NewContextWithIdempotentHint(ctx context.Context, isIdempotent bool) context.Context {
	return context.WithValue(ctx, ctxKeyIdempotentHint, isIdempotent)
}

// GetIdempotentHintFromContext extracts the "idempotent request" hint from context.
func GetIdempotentHintFromContext(ctx context.Context) bool {
	b, ok := ctx.Value(ctxKeyIdempotentHint).(bool)
	return ok && b
}
