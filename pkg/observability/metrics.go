package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes recorded for companion creation
const (
	OutcomeCreated         = "created"
	OutcomeInvalid         = "invalid"
	OutcomeUnauthenticated = "unauthenticated"
	OutcomeFailed          = "failed"
)

// Metrics groups the Prometheus instruments of the service. Each instance owns
// its registry so tests can build as many as they like.
type Metrics struct {
	registry         *prometheus.Registry
	CompanionCreates *prometheus.CounterVec
	CreateLatency    prometheus.Histogram
	HTTPRequests     *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		CompanionCreates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "companion_creates_total",
			Help:      "Companion creation attempts by outcome.",
		}, []string{"outcome"}),
		CreateLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "companion_create_duration_ms",
			Help:      "Latency of companion creation including the database insert, in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveCreate records one creation attempt
func (m *Metrics) ObserveCreate(outcome string, d time.Duration) {
	m.CompanionCreates.WithLabelValues(outcome).Inc()
	m.CreateLatency.Observe(float64(d.Milliseconds()))
}

// Registry exposes the underlying registry, mostly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
