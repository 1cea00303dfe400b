// Package metrics owns the Prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kaisurf"

// Metrics is a per-process collector set with its own registry. All recording
// methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	credits        *prometheus.CounterVec
	creditedAmount prometheus.Counter
	authFailures   *prometheus.CounterVec
	auditEvents    *prometheus.CounterVec
	pluginLoads    *prometheus.CounterVec
	eventPublishes *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "path"}),
		credits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kones",
			Name:      "credits_total",
			Help:      "Credit attempts by outcome.",
		}, []string{"result"}),
		creditedAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kones",
			Name:      "credited_amount_total",
			Help:      "Sum of Kones credited across all identities.",
		}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "failures_total",
			Help:      "Rejected requests by gate and reason.",
		}, []string{"reason"}),
		auditEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chronolog",
			Name:      "events_total",
			Help:      "Audit log entries written by source.",
		}, []string{"source"}),
		pluginLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "plugins",
			Name:      "loads_total",
			Help:      "Plugin load attempts by outcome.",
		}, []string{"result"}),
		eventPublishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "publishes_total",
			Help:      "Host event publications by outcome.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.credits,
		m.creditedAmount,
		m.authFailures,
		m.auditEvents,
		m.pluginLoads,
		m.eventPublishes,
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) IncInFlight() {
	if m != nil {
		m.httpInFlight.Inc()
	}
}

func (m *Metrics) DecInFlight() {
	if m != nil {
		m.httpInFlight.Dec()
	}
}

// ObserveHTTP records a finished request. path should be a route template.
func (m *Metrics) ObserveHTTP(method, path, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(took.Seconds())
}

func (m *Metrics) CreditApplied(amount int64) {
	if m == nil {
		return
	}
	m.credits.WithLabelValues("applied").Inc()
	m.creditedAmount.Add(float64(amount))
}

func (m *Metrics) CreditRejected(reason string) {
	if m != nil {
		m.credits.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) AuthFailed(reason string) {
	if m != nil {
		m.authFailures.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) AuditRecorded(source string) {
	if m != nil {
		m.auditEvents.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) PluginLoaded(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.pluginLoads.WithLabelValues("loaded").Inc()
		return
	}
	m.pluginLoads.WithLabelValues("failed").Inc()
}

func (m *Metrics) EventPublished(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.eventPublishes.WithLabelValues("failed").Inc()
		return
	}
	m.eventPublishes.WithLabelValues("ok").Inc()
}
