// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package web

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"blackout/internal/scan"
)

// Metrics holds the Prometheus collectors of one Server.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP requests by route pattern, method and status code
	Requests *prometheus.CounterVec

	// Request latency by route pattern
	RequestLatency *prometheus.HistogramVec

	// Scan outcomes by detection and redaction status
	ScanOutcome *prometheus.CounterVec

	// Documents served from the analysis cache
	CacheHits prometheus.Counter

	// Requests turned away by the rate limiter
	RateLimited prometheus.Counter
}

// NewMetrics registers the server collectors on a private registry so that
// several servers can live in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "blackout_http_requests_total",
			Help: "Total HTTP requests by route, method and status code",
		}, []string{"route", "method", "code"}),

		RequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "blackout_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"route"}),

		ScanOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "blackout_scans_total",
			Help: "Completed scans by detection and redaction status",
		}, []string{"detection", "redaction"}),

		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "blackout_scan_cache_hits_total",
			Help: "Scans whose extraction and matching were served from cache",
		}),

		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "blackout_http_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		}),
	}
}

// ObserveRequest records one finished request.
func (m *Metrics) ObserveRequest(route, method, code string, d time.Duration) {
	if m != nil {
		m.Requests.WithLabelValues(route, method, code).Inc()
		m.RequestLatency.WithLabelValues(route).Observe(d.Seconds())
	}
}

// ObserveScan records the outcome of a completed scan.
func (m *Metrics) ObserveScan(result *scan.ScanResult) {
	if m == nil || result == nil {
		return
	}
	m.ScanOutcome.WithLabelValues(string(result.Status.Detection), string(result.Status.Redaction)).Inc()
	if result.CacheHit {
		m.CacheHits.Inc()
	}
}

// IncrementRateLimited counts a rejected request.
func (m *Metrics) IncrementRateLimited() {
	if m != nil {
		m.RateLimited.Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
