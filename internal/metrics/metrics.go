// package metrics exposes Prometheus instrumentation for token refreshes, provider calls, and the HTTP API.
//
// A nil [*Metrics] is valid and records nothing, so components can be constructed without it in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Token lookup outcomes recorded by [Metrics.RecordTokenLookup].
const (
	TokenCached    = "cached"
	TokenRefreshed = "refreshed"
	TokenFailed    = "failed"
)

// Metrics holds all Prometheus metrics for the service
type Metrics struct {
	// TokenLookups counts access token requests by provider and outcome
	TokenLookups *prometheus.CounterVec
	// RefreshCalls counts outbound calls to the token endpoint by provider and result
	RefreshCalls *prometheus.CounterVec
	// RefreshLatency tracks token endpoint latency
	RefreshLatency *prometheus.HistogramVec
	// ProviderCalls counts listing calls by operation and result class
	ProviderCalls *prometheus.CounterVec
	// PlaylistMutations counts playlist store writes by operation and status
	PlaylistMutations *prometheus.CounterVec
	// HTTPRequestsTotal total HTTP requests
	HTTPRequestsTotal *prometheus.CounterVec
	// RequestLatency tracks HTTP request latency by route and method
	RequestLatency *prometheus.HistogramVec
	// HTTPRequestsInFlight current HTTP requests being processed
	HTTPRequestsInFlight prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics on a private registry
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		TokenLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_lookups_total",
				Help:      "Access token lookups by outcome",
			},
			[]string{"provider", "outcome"},
		),
		RefreshCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_refresh_calls_total",
				Help:      "Outbound token refresh calls by result",
			},
			[]string{"provider", "result"},
		),
		RefreshLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "token_refresh_duration_seconds",
				Help:      "Token endpoint latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		ProviderCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_calls_total",
				Help:      "Provider listing calls by operation and result",
			},
			[]string{"operation", "result"},
		),
		PlaylistMutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "playlist_mutations_total",
				Help:      "Playlist store writes by operation and status",
			},
			[]string{"operation", "status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		RequestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"route", "method"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
	}

	registry.MustRegister(
		m.TokenLookups,
		m.RefreshCalls,
		m.RefreshLatency,
		m.ProviderCalls,
		m.PlaylistMutations,
		m.HTTPRequestsTotal,
		m.RequestLatency,
		m.HTTPRequestsInFlight,
	)

	return m
}

// Handler returns a Prometheus handler for these metrics
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and custom collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordTokenLookup records how a token request was satisfied
func (m *Metrics) RecordTokenLookup(provider, outcome string) {
	if m == nil {
		return
	}
	m.TokenLookups.WithLabelValues(provider, outcome).Inc()
}

// RecordRefreshCall records one outbound token refresh and its latency
func (m *Metrics) RecordRefreshCall(provider, result string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.RefreshCalls.WithLabelValues(provider, result).Inc()
	m.RefreshLatency.WithLabelValues(provider).Observe(durationSeconds)
}

// RecordProviderCall records a listing call
func (m *Metrics) RecordProviderCall(operation, result string) {
	if m == nil {
		return
	}
	m.ProviderCalls.WithLabelValues(operation, result).Inc()
}

// RecordPlaylistMutation records a playlist store write
func (m *Metrics) RecordPlaylistMutation(operation, status string) {
	if m == nil {
		return
	}
	m.PlaylistMutations.WithLabelValues(operation, status).Inc()
}

// RecordHTTPRequest records a completed HTTP request
func (m *Metrics) RecordHTTPRequest(route, method, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(route, method, status).Inc()
	m.RequestLatency.WithLabelValues(route, method).Observe(durationSeconds)
}

// IncHTTPRequestsInFlight increments the in-flight requests gauge
func (m *Metrics) IncHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.HTTPRequestsInFlight.Inc()
}

// DecHTTPRequestsInFlight decrements the in-flight requests gauge
func (m *Metrics) DecHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.HTTPRequestsInFlight.Dec()
}
