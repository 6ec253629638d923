package governor

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantfort/riskgov/internal/domain/evolve"
	"github.com/quantfort/riskgov/internal/domain/regime"
)

// Governor evaluates candidate intents against a permission snapshot. All
// methods are pure with respect to their arguments; the only mutable state
// is the weight vector and armed threshold swapped in by evolution cycles
// through ApplyAdjustment.
type Governor struct {
	cfg     Config
	weights evolve.WeightVector
	armed   float64
}

// New builds a governor with the given config and baseline weights.
func New(cfg Config) *Governor {
	return &Governor{
		cfg:     cfg,
		weights: evolve.DefaultWeights(),
		armed:   cfg.ArmedConfidence,
	}
}

// SetBaseline replaces the weights and armed threshold in force. Meant for
// startup seeding from configuration, before any evolution cycle has run.
func (g *Governor) SetBaseline(w evolve.WeightVector, armed float64) error {
	if err := w.Validate(); err != nil {
		return err
	}
	g.weights = w
	if armed > 0 {
		g.armed = armed
	}
	return nil
}

// Weights returns the scoring weights currently in force.
func (g *Governor) Weights() evolve.WeightVector { return g.weights }

// ArmedConfidence returns the current armed threshold.
func (g *Governor) ArmedConfidence() float64 { return g.armed }

// ApplyAdjustment swaps in an evolution result. Passive adjustments must not
// be applied; the caller gates on Mode before calling this.
func (g *Governor) ApplyAdjustment(adj evolve.Adjustment) error {
	if err := adj.Weights.Validate(); err != nil {
		return err
	}
	g.weights = adj.Weights
	g.armed = adj.ArmedConfidence
	log.Info().
		Str("workspace", adj.Workspace).
		Float64("armed_confidence", adj.ArmedConfidence).
		Msg("Governor weights updated from evolution cycle")
	return nil
}

// Score computes the weighted composite confidence for per-category factor
// scores using the weights currently in force.
func (g *Governor) Score(factors evolve.FactorScores) float64 {
	return g.weights.Composite(factors)
}

// BuildPermissionSnapshot assembles a point-in-time permission snapshot from
// session counters. No side effects. Fallbacks: empty data status reads OK,
// empty severity reads none, nil data age reads DefaultDataAgeSec, empty
// regime reads the conservative RANGE_NEUTRAL.
func BuildPermissionSnapshot(p SnapshotParams) PermissionSnapshot {
	cfg := DefaultConfig()

	status := p.DataStatus
	if status == "" {
		status = DataOK
	}
	severity := p.EventSeverity
	if severity == "" {
		severity = EventNone
	}
	age := cfg.DefaultDataAgeSec
	if p.DataAgeSeconds != nil {
		age = *p.DataAgeSeconds
	}
	reg := p.Regime
	if reg == "" {
		reg = regime.RangeNeutral
	}
	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}

	return PermissionSnapshot{
		GovernorEnabled:   p.Enabled,
		Regime:            reg,
		DataStatus:        status,
		DataAgeSeconds:    age,
		EventSeverity:     severity,
		RealizedDailyR:    p.RealizedDailyR,
		OpenRiskR:         p.OpenRiskR,
		ConsecutiveLosses: p.ConsecutiveLosses,
		BuiltAt:           now,
	}
}

// Evaluate checks one candidate intent against the snapshot. A malformed
// intent returns a *ValidationError before any risk rule runs. Every check
// contributes reason codes independently so a block reports all grounds at
// once, not just the first.
func (g *Governor) Evaluate(snap PermissionSnapshot, intent CandidateIntent) (Decision, error) {
	if err := ValidateIntent(intent); err != nil {
		return Decision{}, err
	}

	d := Decision{Allowed: true, SizeMultiplier: 1.0, ReasonCodes: []string{}}
	block := func(code string) {
		d.Allowed = false
		d.ReasonCodes = append(d.ReasonCodes, code)
	}
	shrink := func(code string, mult float64) {
		if mult < d.SizeMultiplier {
			d.SizeMultiplier = mult
		}
		d.ReasonCodes = append(d.ReasonCodes, code)
	}

	// A disabled governor still evaluates; its budgets run at half size.
	dailyFloor := g.cfg.DailyLossFloorR
	openCeiling := g.cfg.OpenRiskCeilingR
	if !snap.GovernorEnabled {
		dailyFloor *= g.cfg.DisabledBudgetScale
		openCeiling *= g.cfg.DisabledBudgetScale
		d.ReasonCodes = append(d.ReasonCodes, ReasonGovernorDisabled)
	}

	// Data health: staleness is a recoverable runtime condition, folded into
	// the decision rather than raised as an error.
	switch snap.DataStatus {
	case DataDown:
		block(ReasonDataDown)
	case DataDegraded:
		if snap.DataAgeSeconds > g.cfg.StaleToleranceSec {
			block(ReasonDataStale)
		}
	}

	switch snap.EventSeverity {
	case EventHigh:
		block(ReasonEventHigh)
	case EventMedium:
		if eventSensitive[intent.Strategy] {
			shrink(ReasonEventMediumShrink, g.cfg.EventMediumShrink)
		}
	}

	if snap.RealizedDailyR <= dailyFloor {
		block(ReasonDailyLossCap)
	}
	if snap.OpenRiskR >= openCeiling {
		block(ReasonOpenRiskCeiling)
	}
	if snap.ConsecutiveLosses > g.cfg.LossStreakThreshold {
		shrink(ReasonLossStreakShrink, g.cfg.LossStreakShrink)
	}

	if !StrategyCompatible(intent.Strategy, snap.Regime) {
		block(ReasonStrategyRegime)
	}

	if intent.Confidence < g.armed {
		block(ReasonBelowArmedConfidence)
	}

	if !d.Allowed {
		d.SizeMultiplier = 0
	}

	log.Debug().
		Str("symbol", intent.Symbol).
		Str("strategy", string(intent.Strategy)).
		Bool("allowed", d.Allowed).
		Float64("size_multiplier", d.SizeMultiplier).
		Strs("reasons", d.ReasonCodes).
		Msg("Candidate evaluated")

	return d, nil
}
