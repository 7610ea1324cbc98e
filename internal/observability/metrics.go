package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ariadriver"

// Metrics is a per driver set of collectors on a private registry, so two
// drivers in one process never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	operations  *prometheus.CounterVec
	diagnostics *prometheus.CounterVec
	pollSeconds *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "widget_operations_total",
			Help:      "Widget operations by kind and outcome code.",
		}, []string{"kind", "outcome"}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Advisory diagnostics published, by code.",
		}, []string{"code"}),
		pollSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "await_state_seconds",
			Help:      "Time spent awaiting the post-activation state.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"kind", "satisfied"}),
	}
	m.registry.MustRegister(m.operations, m.diagnostics, m.pollSeconds)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveOperation counts one finished widget operation. outcome is "ok" or
// the fatal error code.
func (m *Metrics) ObserveOperation(kind, outcome string) {
	m.operations.WithLabelValues(kind, outcome).Inc()
}

// ObserveDiagnostic counts one published warning.
func (m *Metrics) ObserveDiagnostic(code string) {
	m.diagnostics.WithLabelValues(code).Inc()
}

// ObserveAwait records how long the awaiting phase took.
func (m *Metrics) ObserveAwait(kind string, satisfied bool, d time.Duration) {
	label := "false"
	if satisfied {
		label = "true"
	}
	m.pollSeconds.WithLabelValues(kind, label).Observe(d.Seconds())
}
