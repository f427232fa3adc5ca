// Package metrics exposes run and task measurements to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cgast/gigsmith/pkg/orchestrator"
	"github.com/cgast/gigsmith/pkg/task"
)

const namespace = "gigsmith"

// Task outcomes.
const (
	OutcomeAccepted   = "accepted"
	OutcomeNormalized = "normalized"
	OutcomeRepaired   = "repaired"
	OutcomeUnresolved = "unresolved"
)

// Metrics implements orchestrator.Recorder on its own registry.
type Metrics struct {
	registry      *prometheus.Registry
	tasks         *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec
	taskAttempts  *prometheus.HistogramVec
	generationErr *prometheus.CounterVec
	unresolved    *prometheus.CounterVec
	runs          prometheus.Counter
	runDuration   prometheus.Histogram
	runRepaired   prometheus.Histogram
}

var _ orchestrator.Recorder = (*Metrics)(nil)

// New creates the collectors and registers them, along with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Completed tasks by task id and outcome.",
		}, []string{"task", "outcome"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Task wall time from start to accepted value.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"task"}),
		taskAttempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_generation_attempts",
			Help:      "Generation attempts per task.",
			Buckets:   []float64{0, 1, 2, 3, 5},
		}, []string{"task"}),
		generationErr: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_failures_total",
			Help:      "Tasks whose generation attempts all failed.",
		}, []string{"task"}),
		unresolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unresolved_violations_total",
			Help:      "Constraint violations left in accepted task values.",
		}, []string{"task"}),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed runs.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Run wall time.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		runRepaired: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_repaired_tasks",
			Help:      "Tasks per run whose value came from the fallback.",
			Buckets:   prometheus.LinearBuckets(0, 1, 10),
		}),
	}
	m.registry.MustRegister(
		m.tasks, m.taskDuration, m.taskAttempts, m.generationErr, m.unresolved,
		m.runs, m.runDuration, m.runRepaired,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Outcome classifies a task output.
func Outcome(out task.Output) string {
	switch {
	case len(out.Unresolved) > 0:
		return OutcomeUnresolved
	case out.Repaired:
		return OutcomeRepaired
	case out.Normalized:
		return OutcomeNormalized
	default:
		return OutcomeAccepted
	}
}

func (m *Metrics) ObserveTask(out task.Output) {
	m.tasks.WithLabelValues(out.TaskID, Outcome(out)).Inc()
	m.taskDuration.WithLabelValues(out.TaskID).Observe(out.Duration.Seconds())
	m.taskAttempts.WithLabelValues(out.TaskID).Observe(float64(out.Attempts))
	if out.GenerationError != "" {
		m.generationErr.WithLabelValues(out.TaskID).Inc()
	}
	if n := len(out.Unresolved); n > 0 {
		m.unresolved.WithLabelValues(out.TaskID).Add(float64(n))
	}
}

func (m *Metrics) ObserveRun(res *orchestrator.Result) {
	m.runs.Inc()
	m.runDuration.Observe(res.Duration().Seconds())
	m.runRepaired.Observe(float64(len(res.Repaired())))
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
