/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertCounterValue asserts that the passed prometheus.Counter has the given value.
func AssertCounterValue(t assert.TestingT, counter prometheus.Counter, want int) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	reg := prometheus.NewPedanticRegistry()
	if !assert.NoError(t, reg.Register(counter)) {
		return false
	}
	families, err := reg.Gather()
	if !assert.NoError(t, err) {
		return false
	}
	if !assert.Len(t, families, 1) {
		return false
	}
	return assert.Equal(t, want, int(families[0].GetMetric()[0].GetCounter().GetValue()))
}

// RequireCounterValue calls AssertCounterValue and fails the test immediately if the assertion fails.
func RequireCounterValue(t require.TestingT, counter prometheus.Counter, want int) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if !AssertCounterValue(t, counter, want) {
		t.FailNow()
	}
}
