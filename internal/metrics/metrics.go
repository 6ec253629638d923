package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all Prometheus metrics for the risk governance engine.
type Registry struct {
	// Governor evaluation metrics
	Evaluations        *prometheus.CounterVec
	EvaluationReasons  *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram

	// Classification metrics
	RegimeClassifications *prometheus.CounterVec
	FlowStates            *prometheus.CounterVec
	FlowHolds             prometheus.Counter

	// Guard toggle metrics
	GuardTransitions *prometheus.CounterVec

	// Evolution metrics
	EvolutionCycles  *prometheus.CounterVec
	EvolutionSamples prometheus.Histogram

	// Audit sink metrics
	AuditFallbacks prometheus.Counter
}

// NewRegistry creates and registers all metrics. A nil registerer uses the
// default Prometheus registry.
func NewRegistry(reg prometheus.Registerer) *Registry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Registry{
		Evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskgov_evaluations_total",
				Help: "Total candidate evaluations by outcome",
			},
			[]string{"outcome"},
		),

		EvaluationReasons: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskgov_evaluation_reasons_total",
				Help: "Total reason codes emitted by evaluations",
			},
			[]string{"reason"},
		),

		EvaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "riskgov_evaluation_duration_seconds",
				Help:    "Duration of a single candidate evaluation",
				Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
			},
		),

		RegimeClassifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskgov_regime_classifications_total",
				Help: "Total regime classifications by governor regime",
			},
			[]string{"regime"},
		),

		FlowStates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskgov_flow_states_total",
				Help: "Total flow state computations by resulting state",
			},
			[]string{"state"},
		),

		FlowHolds: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "riskgov_flow_holds_total",
				Help: "Total flow state computations held at the cached state",
			},
		),

		GuardTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskgov_guard_transitions_total",
				Help: "Total guard toggle transitions by action",
			},
			[]string{"action"},
		),

		EvolutionCycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskgov_evolution_cycles_total",
				Help: "Total evolution cycles by mode and status",
			},
			[]string{"mode", "status"},
		),

		EvolutionSamples: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "riskgov_evolution_samples",
				Help:    "Outcome sample counts fed into evolution cycles",
				Buckets: []float64{30, 50, 100, 250, 500, 1000, 2500, 5000},
			},
		),

		AuditFallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "riskgov_audit_fallbacks_total",
				Help: "Total audit entries diverted to the in-memory fallback",
			},
		),
	}

	reg.MustRegister(
		r.Evaluations,
		r.EvaluationReasons,
		r.EvaluationDuration,
		r.RegimeClassifications,
		r.FlowStates,
		r.FlowHolds,
		r.GuardTransitions,
		r.EvolutionCycles,
		r.EvolutionSamples,
		r.AuditFallbacks,
	)

	return r
}

// ObserveEvaluation records one evaluation outcome plus its reason codes.
func (r *Registry) ObserveEvaluation(outcome string, reasons []string, elapsed time.Duration) {
	r.Evaluations.WithLabelValues(outcome).Inc()
	for _, reason := range reasons {
		r.EvaluationReasons.WithLabelValues(reason).Inc()
	}
	r.EvaluationDuration.Observe(elapsed.Seconds())
}

// ObserveEvolution records one evolution cycle.
func (r *Registry) ObserveEvolution(mode, status string, sampleCount int) {
	r.EvolutionCycles.WithLabelValues(mode, status).Inc()
	if sampleCount > 0 {
		r.EvolutionSamples.Observe(float64(sampleCount))
	}
}

// Nop returns a registry whose metrics are not registered anywhere. Useful
// for tests and tooling that wire the application without a scrape target.
func Nop() *Registry {
	return NewRegistry(prometheus.NewRegistry())
}
