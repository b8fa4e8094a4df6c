package scheduler

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the script scheduler.
type Metrics struct {
	JobsFired     prometheus.Counter
	JobsSucceeded prometheus.Counter
	JobsFailed    prometheus.Counter
	JobDuration   prometheus.Histogram
}

// NewMetrics creates and registers scheduler metrics.
// Returns nil if reg is nil.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		JobsFired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "connectors",
			Subsystem: "scheduler",
			Name:      "jobs_fired_total",
			Help:      "Total scheduled scripts fired.",
		}),
		JobsSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "connectors",
			Subsystem: "scheduler",
			Name:      "jobs_succeeded_total",
			Help:      "Total scheduled scripts that exited zero.",
		}),
		JobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "connectors",
			Subsystem: "scheduler",
			Name:      "jobs_failed_total",
			Help:      "Total scheduled scripts that were rejected or exited nonzero.",
		}),
		JobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "connectors",
			Subsystem: "scheduler",
			Name:      "job_duration_seconds",
			Help:      "Duration of each scheduled script run.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 45},
		}),
	}

	reg.MustRegister(
		m.JobsFired,
		m.JobsSucceeded,
		m.JobsFailed,
		m.JobDuration,
	)

	return m
}
