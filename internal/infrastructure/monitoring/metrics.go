// Package monitoring exposes Prometheus metrics for the terminal engine and
// its HTTP surface.
package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Terminal metrics
	SessionsActive prometheus.Gauge
	SessionsTotal  prometheus.Counter
	CommandsTotal  *prometheus.CounterVec
	ExecutorErrors prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on reg. Passing a fresh
// registry keeps tests independent of each other.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shellpane_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shellpane_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "shellpane_sessions_active",
				Help: "Number of open terminal sessions",
			},
		),
		SessionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "shellpane_sessions_total",
				Help: "Total number of terminal sessions created",
			},
		),
		CommandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shellpane_commands_total",
				Help: "Commands dispatched, by resolution",
			},
			[]string{"resolution"},
		),
		ExecutorErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "shellpane_executor_errors_total",
				Help: "Executor failures surfaced as error lines",
			},
		),
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "shellpane_ws_connections",
				Help: "Open WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shellpane_ws_messages_total",
				Help: "WebSocket messages, by direction and type",
			},
			[]string{"direction", "type"},
		),
	}
}

// CommandDispatched implements the dispatcher's metrics hook.
func (m *Metrics) CommandDispatched(builtin bool) {
	resolution := "external"
	if builtin {
		resolution = "builtin"
	}
	m.CommandsTotal.WithLabelValues(resolution).Inc()
}

// ExecutorFailed implements the dispatcher's metrics hook.
func (m *Metrics) ExecutorFailed() {
	m.ExecutorErrors.Inc()
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, path string, status int, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
