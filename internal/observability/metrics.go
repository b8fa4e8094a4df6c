package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector holds all Prometheus metrics for the connector server.
// Uses a custom registry, no global state.
type MetricsCollector struct {
	Registry *prometheus.Registry

	// Script engine metrics.
	ScriptExecutionsTotal   *prometheus.CounterVec
	ScriptExecutionDuration *prometheus.HistogramVec
	ScriptTimeoutsTotal     prometheus.Counter
	ScriptTruncationsTotal  prometheus.Counter

	// Tool invocation metrics.
	ToolInvocationsTotal   *prometheus.CounterVec
	ToolInvocationDuration *prometheus.HistogramVec

	// Policy metrics.
	PolicyDenialsTotal *prometheus.CounterVec

	// HTTP gateway metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// System metrics.
	ActiveScripts prometheus.Gauge
}

// NewMetricsCollector creates a MetricsCollector with all metrics registered
// on a custom prometheus.Registry.
func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()

	m := &MetricsCollector{
		Registry: reg,

		ScriptExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "connectors",
			Subsystem: "script",
			Name:      "executions_total",
			Help:      "Total automation script executions.",
		}, []string{"status"}),

		ScriptExecutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "connectors",
			Subsystem: "script",
			Name:      "execution_duration_seconds",
			Help:      "Automation script execution duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 45},
		}, []string{"status"}),

		ScriptTimeoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "connectors",
			Subsystem: "script",
			Name:      "timeouts_total",
			Help:      "Total scripts killed by the timeout governor.",
		}),

		ScriptTruncationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "connectors",
			Subsystem: "script",
			Name:      "truncations_total",
			Help:      "Total scripts killed by the output-size governor.",
		}),

		ToolInvocationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "connectors",
			Subsystem: "tool",
			Name:      "invocations_total",
			Help:      "Total tool invocations.",
		}, []string{"tool", "status"}),

		ToolInvocationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "connectors",
			Subsystem: "tool",
			Name:      "invocation_duration_seconds",
			Help:      "Tool invocation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),

		PolicyDenialsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "connectors",
			Subsystem: "policy",
			Name:      "denials_total",
			Help:      "Total requests blocked by the script or path policy.",
		}, []string{"guard"}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "connectors",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"method", "path", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "connectors",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		ActiveScripts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "connectors",
			Name:      "active_scripts",
			Help:      "Number of automation scripts currently running.",
		}),
	}

	// Register all collectors.
	reg.MustRegister(
		m.ScriptExecutionsTotal,
		m.ScriptExecutionDuration,
		m.ScriptTimeoutsTotal,
		m.ScriptTruncationsTotal,
		m.ToolInvocationsTotal,
		m.ToolInvocationDuration,
		m.PolicyDenialsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ActiveScripts,
	)

	return m
}
