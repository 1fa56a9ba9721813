package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the deployment engine. A nil
// *Metrics is a valid no-op collector, so callers never need to guard
// their observation calls.
type Metrics struct {
	config MetricsConfig

	deploysStarted   prometheus.Counter
	deploysCompleted *prometheus.CounterVec
	deployDuration   *prometheus.HistogramVec
	phaseDuration    *prometheus.HistogramVec

	invalidationFailures prometheus.Counter
	activeDeploys        prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		deploysStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deploys_started_total",
				Help:      "Total number of deployment sessions started",
			},
		),
		deploysCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deploys_completed_total",
				Help:      "Total number of deployment sessions completed",
			},
			[]string{"status"},
		),
		deployDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "deploy_duration_seconds",
				Help:      "Duration of deployment sessions in seconds",
				Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200, 1800},
			},
			[]string{"status"},
		),
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "phase_duration_seconds",
				Help:      "Duration of individual lifecycle phases in seconds",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"phase"},
		),
		invalidationFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_invalidation_failures_total",
				Help:      "Total number of swallowed cache invalidation failures",
			},
		),
		activeDeploys: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_deploys",
				Help:      "Number of deployment sessions currently running",
			},
		),
	}

	collectors := []prometheus.Collector{
		m.deploysStarted,
		m.deploysCompleted,
		m.deployDuration,
		m.phaseDuration,
		m.invalidationFailures,
		m.activeDeploys,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	return m, nil
}

// DeployStarted records the start of a deployment session.
func (m *Metrics) DeployStarted() {
	if m == nil {
		return
	}
	m.deploysStarted.Inc()
	m.activeDeploys.Inc()
}

// DeployCompleted records a terminal deployment session outcome.
func (m *Metrics) DeployCompleted(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.deploysCompleted.WithLabelValues(status).Inc()
	m.deployDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeDeploys.Dec()
}

// ObservePhase records the duration of one lifecycle phase.
func (m *Metrics) ObservePhase(phase string, duration time.Duration) {
	if m == nil {
		return
	}
	m.phaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// InvalidationFailure counts a swallowed cache invalidation failure.
func (m *Metrics) InvalidationFailure() {
	if m == nil {
		return
	}
	m.invalidationFailures.Inc()
}

// Handler returns an HTTP handler serving the metrics registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve starts the metrics HTTP listener. It blocks until the server
// stops and is intended to be run in its own goroutine.
func (m *Metrics) Serve() error {
	if m == nil {
		return nil
	}
	mux := http.NewServeMux()
	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux.Handle(path, m.Handler())
	return http.ListenAndServe(m.config.ListenAddress, mux)
}
