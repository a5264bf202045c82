// Package metrics defines the Prometheus collectors exported by SkillPath.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "skillpath"

// Outcome label values.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeInvalid   = "invalid"
	OutcomeNotFound  = "not_found"
	OutcomeCancelled = "cancelled"
)

// Metrics holds every collector. A nil *Metrics is valid and records nothing,
// which keeps unit tests free of registry plumbing.
type Metrics struct {
	toolCalls      *prometheus.CounterVec
	toolLatency    *prometheus.HistogramVec
	batchLatency   prometheus.Histogram
	catalogFetches *prometheus.CounterVec
	fetchLatency   prometheus.Histogram
	selectionSize  prometheus.Histogram
	activeSessions prometheus.Gauge
	upstreamCalls  *prometheus.CounterVec
}

// New registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		toolCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tools",
			Name:      "calls_total",
			Help:      "Tool invocations by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		toolLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tools",
			Name:      "call_duration_seconds",
			Help:      "Time spent handling a single tool invocation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		batchLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tools",
			Name:      "batch_duration_seconds",
			Help:      "Time from receiving a tool call batch to having every response ready.",
			Buckets:   prometheus.DefBuckets,
		}),
		catalogFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "fetches_total",
			Help:      "Catalog fetches by outcome.",
		}, []string{"outcome"}),
		fetchLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "fetch_duration_seconds",
			Help:      "Catalog fetch latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		selectionSize: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "selection_size",
			Help:      "Number of entries returned per content search.",
			Buckets:   []float64{0, 1, 2, 4, 6, 8, 10},
		}),
		activeSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Currently open sessions.",
		}),
		upstreamCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Requests to external endpoints by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
	}
}

// ToolCall records one finished tool invocation.
func (m *Metrics) ToolCall(tool, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
	m.toolLatency.WithLabelValues(tool).Observe(d.Seconds())
}

// Batch records how long a batch took to complete.
func (m *Metrics) Batch(d time.Duration) {
	if m == nil {
		return
	}
	m.batchLatency.Observe(d.Seconds())
}

// CatalogFetch records one catalog fetch attempt.
func (m *Metrics) CatalogFetch(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.catalogFetches.WithLabelValues(outcome).Inc()
	m.fetchLatency.Observe(d.Seconds())
}

// Selection records the size of a search result.
func (m *Metrics) Selection(n int) {
	if m == nil {
		return
	}
	m.selectionSize.Observe(float64(n))
}

// SessionOpened increments the active session gauge.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

// SessionClosed decrements the active session gauge.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

// Upstream records one request to an external endpoint.
func (m *Metrics) Upstream(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.upstreamCalls.WithLabelValues(endpoint, outcome).Inc()
}
