package detect

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes recorded by Metrics.
const (
	outcomeOK      = "ok"
	outcomeInvalid = "invalid"
	outcomeNumeric = "numeric"
	outcomeLimit   = "limit"
	outcomeAborted = "aborted"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	runs            *prometheus.CounterVec
	costEvaluations prometheus.Counter
	pruned          prometheus.Counter
	peakCandidates  prometheus.Histogram
	duration        *prometheus.HistogramVec
}

// NewMetrics creates the engine collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them on /metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "capa_detection_runs_total",
				Help: "Total number of detection runs by mode and outcome.",
			},
			[]string{"mode", "outcome"},
		),
		costEvaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "capa_cost_evaluations_total",
			Help: "Total number of robust segment cost evaluations.",
		}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "capa_candidates_pruned_total",
			Help: "Total number of candidate changepoints pruned.",
		}),
		peakCandidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "capa_live_candidates_peak",
			Help:    "Largest number of simultaneously live candidates per run.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "capa_detection_duration_seconds",
				Help:    "Detection run duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.costEvaluations, m.pruned, m.peakCandidates, m.duration)
	}
	return m
}

func (m *Metrics) observeRun(mode, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(mode, outcome).Inc()
	if outcome == outcomeOK {
		m.duration.WithLabelValues(mode).Observe(seconds)
	}
}

func (m *Metrics) observeScan(evaluations, pruned, peak int) {
	if m == nil {
		return
	}
	m.costEvaluations.Add(float64(evaluations))
	m.pruned.Add(float64(pruned))
	m.peakCandidates.Observe(float64(peak))
}
