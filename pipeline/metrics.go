package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts pass and phase executions.  Each Metrics owns its own
// prometheus registry so that several builds in one process do not share
// counters.
type Metrics struct {
	Registry *prometheus.Registry

	passRuns        *prometheus.CounterVec
	passChanges     *prometheus.CounterVec
	passDuration    *prometheus.HistogramVec
	phaseIterations *prometheus.CounterVec
	groupRounds     *prometheus.CounterVec
}

// NewMetrics creates and registers the pipeline metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		passRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chunkc_pass_runs_total",
				Help: "Number of pass invocations.",
			},
			[]string{"phase", "pass"},
		),
		passChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chunkc_pass_changes_total",
				Help: "Number of pass invocations which changed the chunk graph.",
			},
			[]string{"phase", "pass"},
		),
		passDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chunkc_pass_duration_seconds",
				Help:    "Time taken by a single pass invocation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"phase", "pass"},
		),
		phaseIterations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chunkc_phase_iterations_total",
				Help: "Number of fixed-point iterations by phase.",
			},
			[]string{"phase"},
		),
		groupRounds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chunkc_group_rounds_total",
				Help: "Number of rounds by phase group.",
			},
			[]string{"group"},
		),
	}

	m.Registry.MustRegister(
		m.passRuns,
		m.passChanges,
		m.passDuration,
		m.phaseIterations,
		m.groupRounds,
	)

	return m
}

// WriteTextfile writes the metrics in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}

func (m *Metrics) observePass(phase, pass string, changed bool, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.passRuns.WithLabelValues(phase, pass).Inc()
	if changed {
		m.passChanges.WithLabelValues(phase, pass).Inc()
	}

	m.passDuration.WithLabelValues(phase, pass).Observe(elapsed.Seconds())
}

func (m *Metrics) observeIteration(phase string) {
	if m != nil {
		m.phaseIterations.WithLabelValues(phase).Inc()
	}
}

func (m *Metrics) observeRound(group string) {
	if m != nil {
		m.groupRounds.WithLabelValues(group).Inc()
	}
}
