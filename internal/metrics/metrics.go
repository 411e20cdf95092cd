// Package metrics exposes saturation progress as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gnoswap-labs/witness/internal/saturate"
)

const namespace = "witness"

// Saturation holds the collectors fed by a saturation runner. Every
// instance registers on its own registry so that tests and servers do not
// collide.
type Saturation struct {
	Registry *prometheus.Registry

	// Labels: rule
	RuleMatches *prometheus.CounterVec
	// Labels: rule
	RuleApplied *prometheus.CounterVec
	// Labels: state
	Runs *prometheus.CounterVec

	Iterations        prometheus.Counter
	IterationDuration prometheus.Histogram
	Classes           prometheus.Gauge
	Nodes             prometheus.Gauge
	Candidates        prometheus.Gauge
}

func NewSaturation() *Saturation {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Saturation{
		Registry: reg,
		RuleMatches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rewrite",
			Name:      "matches_total",
			Help:      "Classes matched by each rewrite rule",
		}, []string{"rule"}),
		RuleApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rewrite",
			Name:      "applied_total",
			Help:      "Unions produced by each rewrite rule",
		}, []string{"rule"}),
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "saturation",
			Name:      "runs_total",
			Help:      "Finished saturation runs by terminal state",
		}, []string{"state"}),
		Iterations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "saturation",
			Name:      "iterations_total",
			Help:      "Saturation rounds executed",
		}),
		IterationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "saturation",
			Name:      "iteration_duration_seconds",
			Help:      "Duration of one saturation round",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		Classes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "egraph",
			Name:      "classes",
			Help:      "Live equivalence classes after the last round",
		}),
		Nodes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "egraph",
			Name:      "nodes",
			Help:      "Member nodes after the last round",
		}),
		Candidates: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "candidate",
			Name:      "count",
			Help:      "Distinct candidates produced by the last run",
		}),
	}
}

// Observe records one finished round. It has the shape of saturate.Hook.
func (m *Saturation) Observe(s saturate.IterationStats) {
	m.Iterations.Inc()
	m.IterationDuration.Observe(s.Duration.Seconds())
	m.Classes.Set(float64(s.Classes))
	m.Nodes.Set(float64(s.Nodes))
	for _, r := range s.Rules {
		m.RuleMatches.WithLabelValues(r.Rule).Add(float64(r.Matches))
		m.RuleApplied.WithLabelValues(r.Rule).Add(float64(r.Applied))
	}
}

// Hook returns Observe as a saturate.Hook.
func (m *Saturation) Hook() saturate.Hook {
	return m.Observe
}

// Finish records the outcome of a whole run.
func (m *Saturation) Finish(state saturate.State, candidates int) {
	m.Runs.WithLabelValues(state.String()).Inc()
	m.Candidates.Set(float64(candidates))
}
