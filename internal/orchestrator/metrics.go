package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's Prometheus instruments.
type Metrics struct {
	PipelineRuns   *prometheus.CounterVec
	FilesGenerated prometheus.Counter
	FixAttempts    prometheus.Counter
	Challenges     *prometheus.CounterVec
}

// NewMetrics registers the pipeline metrics on reg. A nil reg gets a
// private registry, which keeps tests isolated from the default one.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		PipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "craftd",
			Name:      "pipeline_runs_total",
			Help:      "Completed pipeline runs by terminal status.",
		}, []string{"status"}),
		FilesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "craftd",
			Name:      "files_generated_total",
			Help:      "Files generated and persisted across all projects.",
		}),
		FixAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "craftd",
			Name:      "fix_attempts_total",
			Help:      "Fix-loop attempts across all projects.",
		}),
		Challenges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "craftd",
			Name:      "challenges_total",
			Help:      "Sabotage challenges by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.PipelineRuns, m.FilesGenerated, m.FixAttempts, m.Challenges)
	return m
}
