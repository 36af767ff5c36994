/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/acronis/go-ratelimit/internal/libinfo"
)

// HitResult is a result of a hit, used as a metrics label value.
type HitResult string

// Hit results.
const (
	HitResultAllowed  HitResult = "allowed"
	HitResultExceeded HitResult = "exceeded"
)

const metricsLabelResult = "result"

// MetricsCollector represents a collector of metrics for the Limiter.
type MetricsCollector interface {
	// IncHits increments the total number of hits with the given result.
	IncHits(result HitResult)

	// IncStoreErrors increments the total number of store failures.
	IncStoreErrors()
}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels

	// CurriedLabelNames is a list of label names that will be curried with the provided labels.
	// See PrometheusMetrics.MustCurryWith method for more details.
	CurriedLabelNames []string
}

// PrometheusMetrics represents Prometheus metrics for the Limiter.
type PrometheusMetrics struct {
	HitsTotal        *prometheus.CounterVec
	StoreErrorsTotal *prometheus.CounterVec
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	constLabels := libinfo.AddPrometheusLibVersionLabel(opts.ConstLabels)

	hitsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "rate_limit_hits_total",
			Help:        "Number of rate limit hits partitioned by result.",
			ConstLabels: constLabels,
		},
		append(append([]string{}, opts.CurriedLabelNames...), metricsLabelResult),
	)

	storeErrorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "rate_limit_store_errors_total",
			Help:        "Number of failed rate limit store operations.",
			ConstLabels: constLabels,
		},
		opts.CurriedLabelNames,
	)

	return &PrometheusMetrics{
		HitsTotal:        hitsTotal,
		StoreErrorsTotal: storeErrorsTotal,
	}
}

// MustCurryWith curries the metrics collector with the provided labels.
func (pm *PrometheusMetrics) MustCurryWith(labels prometheus.Labels) *PrometheusMetrics {
	return &PrometheusMetrics{
		HitsTotal:        pm.HitsTotal.MustCurryWith(labels),
		StoreErrorsTotal: pm.StoreErrorsTotal.MustCurryWith(labels),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(pm.HitsTotal, pm.StoreErrorsTotal)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.HitsTotal)
	prometheus.Unregister(pm.StoreErrorsTotal)
}

// IncHits increments the total number of hits with the given result.
func (pm *PrometheusMetrics) IncHits(result HitResult) {
	pm.HitsTotal.With(prometheus.Labels{metricsLabelResult: string(result)}).Inc()
}

// IncStoreErrors increments the total number of store failures.
func (pm *PrometheusMetrics) IncStoreErrors() {
	pm.StoreErrorsTotal.With(nil).Inc()
}

type disabledMetrics struct{}

func (disabledMetrics) IncHits(HitResult) {}
func (disabledMetrics) IncStoreErrors()   {}
