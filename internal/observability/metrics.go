package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors. All methods are safe
// on a nil receiver so components can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	errors           *prometheus.CounterVec
	activeSessions   prometheus.Gauge
	transcriptEvents *prometheus.CounterVec
	signals          *prometheus.CounterVec
	failures         *prometheus.CounterVec
}

// NewMetrics registers collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "support_chat_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"path", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "support_chat_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "support_chat_http_errors_total",
			Help: "HTTP errors by route, method and error code.",
		}, []string{"path", "method", "code"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "support_chat_sessions_active",
			Help: "Open ticket view sessions.",
		}),
		transcriptEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "support_chat_transcript_events_total",
			Help: "Transcript reducer inputs by kind and whether they changed state.",
		}, []string{"kind", "changed"}),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "support_chat_signals_total",
			Help: "Ephemeral signals by direction and kind.",
		}, []string{"direction", "kind"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "support_chat_operation_failures_total",
			Help: "Failed fetches, sends and ticket mutations.",
		}, []string{"operation"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.requests,
		m.requestDuration,
		m.errors,
		m.activeSessions,
		m.transcriptEvents,
		m.signals,
		m.failures,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// SessionOpened tracks a new ticket view session.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

// SessionClosed tracks a torn down session.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

// RecordTranscriptEvent counts a reducer input.
func (m *Metrics) RecordTranscriptEvent(kind string, changed bool) {
	if m == nil {
		return
	}
	m.transcriptEvents.WithLabelValues(kind, strconv.FormatBool(changed)).Inc()
}

// RecordSignal counts an inbound or outbound signal.
func (m *Metrics) RecordSignal(direction, kind string) {
	if m == nil {
		return
	}
	m.signals.WithLabelValues(direction, kind).Inc()
}

// RecordFailure counts a failed fetch, send or mutation.
func (m *Metrics) RecordFailure(operation string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(operation).Inc()
}
