// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "fundboard"

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	// Explorer metrics
	ExplorerRequests *prometheus.CounterVec
	MalformedRecords *prometheus.CounterVec

	// Cache metrics
	CacheLookups *prometheus.CounterVec

	// Remote read metrics
	RemoteReadAttempts *prometheus.CounterVec
	RemoteReadOutcomes *prometheus.CounterVec
	RemoteCallLatency  *prometheus.HistogramVec

	// Serving metrics
	DegradedResponses *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance registered on reg.
// A nil reg leaves the metrics unregistered.
func NewMetrics(namespace string, reg *prometheus.Registry) *Metrics {
	if namespace == "" {
		namespace = defaultNamespace
	}
	var registerer prometheus.Registerer
	if reg != nil {
		registerer = reg
	}
	factory := promauto.With(registerer)

	m := &Metrics{
		ExplorerRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "explorer_requests_total",
			Help:      "Block explorer requests by action and outcome",
		}, []string{"action", "outcome"}),
		MalformedRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_records_total",
			Help:      "Transfer records skipped as malformed",
		}, []string{"asset"}),

		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by slot and result",
		}, []string{"slot", "result"}),

		RemoteReadAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_read_attempts_total",
			Help:      "Remote read attempts, retries included",
		}, []string{"read"}),
		RemoteReadOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_read_outcomes_total",
			Help:      "Remote read final outcomes",
		}, []string{"read", "outcome"}),
		RemoteCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_call_latency_seconds",
			Help:      "Latency of a single remote call",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"call"}),

		DegradedResponses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_responses_total",
			Help:      "Responses served with stale, fallback or zero data",
		}, []string{"endpoint"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by path and status code",
		}, []string{"path", "code"}),
	}
	if reg != nil {
		m.gatherer = reg
	}
	return m
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RecordExplorerRequest counts one explorer request.
func (m *Metrics) RecordExplorerRequest(action, outcome string) {
	if m == nil {
		return
	}
	m.ExplorerRequests.WithLabelValues(action, outcome).Inc()
}

// RecordMalformed counts skipped records for an asset kind.
func (m *Metrics) RecordMalformed(asset string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.MalformedRecords.WithLabelValues(asset).Add(float64(n))
}

// RecordCacheLookup counts a cache hit or miss.
func (m *Metrics) RecordCacheLookup(slot string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(slot, result).Inc()
}

// RecordReadAttempt counts one attempt of a remote read and its latency.
func (m *Metrics) RecordReadAttempt(read string, took time.Duration) {
	if m == nil {
		return
	}
	m.RemoteReadAttempts.WithLabelValues(read).Inc()
	m.RemoteCallLatency.WithLabelValues(read).Observe(took.Seconds())
}

// RecordReadOutcome records the final outcome of a remote read.
func (m *Metrics) RecordReadOutcome(read, outcome string) {
	if m == nil {
		return
	}
	m.RemoteReadOutcomes.WithLabelValues(read, outcome).Inc()
}

// RecordDegraded counts a response served with degraded data.
func (m *Metrics) RecordDegraded(endpoint string) {
	if m == nil {
		return
	}
	m.DegradedResponses.WithLabelValues(endpoint).Inc()
}

// RecordHTTPRequest counts one served HTTP request.
func (m *Metrics) RecordHTTPRequest(path string, code int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(path, httpCode(code)).Inc()
}

func httpCode(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
