// Package metrics exposes optimizer and HTTP bandwidth metrics on a private
// Prometheus registry.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

// Metrics records optimizer runs. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	runs          *prometheus.CounterVec
	fallbacks     *prometheus.CounterVec
	solveDuration *prometheus.HistogramVec
	makespan      prometheus.Gauge
	utilization   prometheus.Gauge
	solverNodes   prometheus.Histogram

	bytesReceived *prometheus.CounterVec
	bytesSent     *prometheus.CounterVec
	requestSize   *prometheus.HistogramVec
	responseSize  *prometheus.HistogramVec
}

// New creates the metric set and registers it on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schedopt_runs_total",
				Help: "Optimizer runs by solver used and result status",
			},
			[]string{"solver", "status"},
		),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schedopt_fallbacks_total",
				Help: "Exact solver attempts routed to the greedy scheduler, by reason",
			},
			[]string{"reason"},
		),
		solveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "schedopt_solve_duration_seconds",
				Help:    "Wall time spent producing a schedule",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
			[]string{"solver"},
		),
		makespan: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "schedopt_makespan_minutes",
			Help: "Makespan of the most recent schedule",
		}),
		utilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "schedopt_utilization_ratio",
			Help: "Machine utilization of the most recent schedule",
		}),
		solverNodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "schedopt_solver_nodes",
			Help:    "Search nodes explored by the exact solver per run",
			Buckets: prometheus.ExponentialBuckets(10, 10, 7),
		}),
		bytesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schedopt_http_request_bytes_total",
				Help: "Total bytes received in HTTP requests",
			},
			[]string{"method", "endpoint"},
		),
		bytesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schedopt_http_response_bytes_total",
				Help: "Total bytes sent in HTTP responses",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "schedopt_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "endpoint"},
		),
		responseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "schedopt_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "endpoint", "status"},
		),
	}

	m.registry.MustRegister(
		m.runs,
		m.fallbacks,
		m.solveDuration,
		m.makespan,
		m.utilization,
		m.solverNodes,
		m.bytesReceived,
		m.bytesSent,
		m.requestSize,
		m.responseSize,
	)
	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRun records a finished optimizer run
func (m *Metrics) ObserveRun(solver, status string, elapsed time.Duration, makespanMin int, utilization float64) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(solver, status).Inc()
	m.solveDuration.WithLabelValues(solver).Observe(elapsed.Seconds())
	m.makespan.Set(float64(makespanMin))
	m.utilization.Set(utilization)
}

// ObserveFallback records an exact attempt that was routed to the greedy path
func (m *Metrics) ObserveFallback(reason string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(reason).Inc()
}

// ObserveSolverNodes records the search effort of one exact solve
func (m *Metrics) ObserveSolverNodes(nodes int64) {
	if m == nil {
		return
	}
	m.solverNodes.Observe(float64(nodes))
}

// Handler returns the HTTP handler serving this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// WriteText writes every metric family in the Prometheus text format
func (m *Metrics) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	encoder := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := encoder.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
