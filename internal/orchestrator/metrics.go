package orchestrator

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danpasecinic/harvester/internal/types"
)

const namespace = "harvester"

// Metrics exports engine state in the Prometheus format. Counters are read
// from the task service on scrape; attempts are observed as they finish.
type Metrics struct {
	registry *prometheus.Registry

	attempts     *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	healthStatus *prometheus.GaugeVec
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_attempts_total",
				Help:      "Task execution attempts by job type and outcome",
			},
			[]string{"job_type", "outcome"},
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_duration_seconds",
				Help:      "Task attempt duration in seconds",
				Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 300, 600, 1800},
			},
			[]string{"job_type"},
		),
		healthStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "health_status",
				Help:      "1 for the current health verdict, 0 otherwise",
			},
			[]string{"status"},
		),
	}

	m.registry.MustRegister(
		m.attempts,
		m.taskDuration,
		m.healthStatus,
		collectors.NewGoCollector(),
	)

	return m
}

// ObserveAttempt records a finished task attempt.
func (m *Metrics) ObserveAttempt(task types.Task, elapsed time.Duration) {
	m.attempts.WithLabelValues(task.Name, string(task.Status)).Inc()
	m.taskDuration.WithLabelValues(task.Name).Observe(elapsed.Seconds())
}

func (m *Metrics) observeHealth(status types.HealthStatus) {
	for _, v := range []types.Verdict{
		types.VerdictHealthy, types.VerdictDegraded, types.VerdictUnhealthy, types.VerdictIdle,
	} {
		value := 0.0
		if v == status.Status {
			value = 1
		}
		m.healthStatus.WithLabelValues(string(v)).Set(value)
	}
}

// registerSources exposes the task counters and pool gauges.
func (m *Metrics) registerSources(tasks func() types.Metrics, pool func() types.PoolStats) {
	counter := func(name, help string, read func(types.Metrics) int64) prometheus.Collector {
		return prometheus.NewCounterFunc(
			prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help},
			func() float64 { return float64(read(tasks())) },
		)
	}
	gauge := func(name, help string, read func() float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help},
			read,
		)
	}

	m.registry.MustRegister(
		counter(
			"tasks_created_total", "Tasks created",
			func(t types.Metrics) int64 { return t.TasksCreated },
		),
		counter(
			"tasks_completed_total", "Tasks completed",
			func(t types.Metrics) int64 { return t.TasksCompleted },
		),
		counter(
			"tasks_failed_total", "Tasks failed after exhausting retries",
			func(t types.Metrics) int64 { return t.TasksFailed },
		),
		counter(
			"tasks_retried_total", "Task retries scheduled",
			func(t types.Metrics) int64 { return t.TasksRetried },
		),
		counter(
			"tasks_cancelled_total", "Tasks cancelled",
			func(t types.Metrics) int64 { return t.TasksCancelled },
		),
		gauge(
			"tasks_active", "Tasks currently running",
			func() float64 { return float64(tasks().ActiveTasks) },
		),
		gauge(
			"tasks_pending", "Tasks waiting to be submitted",
			func() float64 { return float64(tasks().PendingTasks) },
		),
		gauge(
			"tasks_retrying", "Tasks waiting for a retry",
			func() float64 { return float64(tasks().RetryingTasks) },
		),
		gauge(
			"task_average_execution_seconds", "Mean duration of successful attempts",
			func() float64 { return tasks().AverageExecutionTime.Seconds() },
		),
		gauge(
			"pool_workers", "Worker pool size",
			func() float64 { return float64(pool().Workers) },
		),
		gauge(
			"pool_queued", "Attempts waiting for a worker",
			func() float64 { return float64(pool().Queued) },
		),
		gauge(
			"pool_active", "Attempts currently executing",
			func() float64 { return float64(pool().Active) },
		),
	)
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
