package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Package metrics
	Installs        *prometheus.CounterVec
	InstallDuration prometheus.Histogram

	// Script metrics
	Scripts        *prometheus.CounterVec
	ScriptDuration prometheus.Histogram

	// Worker channel metrics
	SessionsActive prometheus.Gauge
	Messages       *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time
}

// NewMetrics creates a new metrics collector backed by its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worker_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "worker_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		Installs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worker_package_installs_total",
				Help: "Total number of package install attempts",
			},
			[]string{"status"},
		),
		InstallDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "worker_package_install_duration_seconds",
				Help:    "Package install duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),

		Scripts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worker_script_runs_total",
				Help: "Total number of main script executions",
			},
			[]string{"status"},
		),
		ScriptDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "worker_script_duration_seconds",
				Help:    "Main script execution duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "worker_sessions_active",
				Help: "Number of connected host pages",
			},
		),
		Messages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worker_messages_total",
				Help: "Total number of worker channel messages",
			},
			[]string{"direction", "type"},
		),
	}

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "worker_uptime_seconds",
			Help: "Worker uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Handler exposes the metrics in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordInstall records one package install attempt
func (m *Metrics) RecordInstall(success bool, duration time.Duration) {
	m.Installs.WithLabelValues(statusLabel(success)).Inc()
	m.InstallDuration.Observe(duration.Seconds())
}

// RecordScript records one main script execution
func (m *Metrics) RecordScript(success bool, duration time.Duration) {
	m.Scripts.WithLabelValues(statusLabel(success)).Inc()
	m.ScriptDuration.Observe(duration.Seconds())
}

// RecordMessage records a message crossing the worker channel
func (m *Metrics) RecordMessage(direction, msgType string) {
	m.Messages.WithLabelValues(direction, msgType).Inc()
}

// IncSessions increments connected sessions
func (m *Metrics) IncSessions() {
	m.SessionsActive.Inc()
}

// DecSessions decrements connected sessions
func (m *Metrics) DecSessions() {
	m.SessionsActive.Dec()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
