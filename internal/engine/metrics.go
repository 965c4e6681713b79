package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/procflow/internal/ir"
)

// Metrics are the Prometheus collectors an Engine reports to.
type Metrics struct {
	Runs         *prometheus.CounterVec // project_type, result
	NodeOutcomes *prometheus.CounterVec // kind, outcome
	Failures     *prometheus.CounterVec // kind, failure
	RunDuration  *prometheus.HistogramVec
	ReportErrors prometheus.Counter
	NodesPerRun  prometheus.Histogram
}

// NewMetrics creates the engine collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "procflow_runs_total",
				Help: "Runs by project type and result (completed or the abort code).",
			},
			[]string{"project_type", "result"},
		),
		NodeOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "procflow_node_outcomes_total",
				Help: "Processed nodes by produced kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		Failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "procflow_materialization_failures_total",
				Help: "Failed materializations by produced kind and failure kind.",
			},
			[]string{"kind", "failure"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "procflow_run_duration_seconds",
				Help:    "Duration of runs.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"project_type"},
		),
		ReportErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "procflow_report_write_errors_total",
			Help: "Reports that could not be persisted.",
		}),
		NodesPerRun: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "procflow_nodes_per_run",
			Help:    "Nodes processed per run.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Runs, m.NodeOutcomes, m.Failures, m.RunDuration, m.ReportErrors, m.NodesPerRun)
	}
	return m
}

func (m *Metrics) observeOutcome(o ir.NodeOutcome) {
	if m == nil {
		return
	}
	m.NodeOutcomes.WithLabelValues(string(o.Kind), string(o.Outcome)).Inc()
}

func (m *Metrics) observeFailure(kind ir.EntityKind, failure string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(string(kind), failure).Inc()
}

func (m *Metrics) observeRun(r *ir.ExecutionReport, seconds float64) {
	if m == nil {
		return
	}
	result := "completed"
	if r.Abort != nil {
		result = r.Abort.Code
	}
	m.Runs.WithLabelValues(r.ProjectTypeID, result).Inc()
	m.RunDuration.WithLabelValues(r.ProjectTypeID).Observe(seconds)
	m.NodesPerRun.Observe(float64(len(r.Nodes)))
}

func (m *Metrics) observeReportError() {
	if m == nil {
		return
	}
	m.ReportErrors.Inc()
}
