package application

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantfort/riskgov/internal/audit"
	"github.com/quantfort/riskgov/internal/config"
	"github.com/quantfort/riskgov/internal/domain/evolve"
	"github.com/quantfort/riskgov/internal/domain/flowstate"
	"github.com/quantfort/riskgov/internal/domain/governor"
	"github.com/quantfort/riskgov/internal/domain/guard"
	"github.com/quantfort/riskgov/internal/domain/packet"
	"github.com/quantfort/riskgov/internal/domain/regime"
	"github.com/quantfort/riskgov/internal/metrics"
	"github.com/quantfort/riskgov/internal/persistence"
	"github.com/quantfort/riskgov/internal/store"
)

// Deps are the externally owned collaborators the engine wires together.
// Adjustments and Outcomes may be nil; evolution cycles then run only on
// samples pushed by the caller and results are applied without persistence.
type Deps struct {
	Store       store.Store
	GuardRepo   guard.Repo
	Recorder    audit.Recorder
	Clock       evolve.Clock
	Adjustments persistence.AdjustmentRepo
	Outcomes    persistence.OutcomeRepo
	Metrics     *metrics.Registry
}

// Engine is the single entry point collaborating services call. It owns no
// goroutines; every operation runs on the caller's goroutine and returns.
type Engine struct {
	cfg *config.Config

	guards  *guard.Manager
	evolver *evolve.Engine

	flowStore store.Store
	flowTTL   time.Duration
	keyPrefix string
	flowMu    sync.Mutex
	flows     map[string]*flowstate.Classifier

	adjustments persistence.AdjustmentRepo
	outcomes    persistence.OutcomeRepo
	metrics     *metrics.Registry

	mu  sync.RWMutex // guards gov against concurrent weight swaps
	gov *governor.Governor
}

// NewEngine wires the engine from config and collaborators. Missing deps
// fall back to in-process defaults so tooling can run without Redis or
// Postgres.
func NewEngine(cfg *config.Config, deps Deps) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if deps.Store == nil {
		deps.Store = store.NewMemory()
	}
	if deps.GuardRepo == nil {
		deps.GuardRepo = guard.NewMemoryRepo()
	}
	if deps.Recorder == nil {
		deps.Recorder = audit.NopRecorder{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop()
	}

	gov := governor.New(cfg.Governor)
	if cfg.Evolution.Baseline.Sum() > 0 {
		if err := gov.SetBaseline(cfg.Evolution.Baseline, cfg.Evolution.BaselineArmed); err != nil {
			log.Warn().Err(err).Msg("Configured baseline weights rejected, keeping defaults")
		}
	}
	return &Engine{
		cfg:         cfg,
		gov:         gov,
		guards:      guard.NewManager(deps.GuardRepo, deps.Recorder),
		evolver:     evolve.NewEngine(deps.Clock).WithRates(cfg.Evolution.LearningRate, cfg.Evolution.MinWeight),
		flowStore:   deps.Store,
		flowTTL:     cfg.Flow.CacheTTL,
		keyPrefix:   cfg.Flow.KeyPrefix,
		flows:       make(map[string]*flowstate.Classifier),
		adjustments: deps.Adjustments,
		outcomes:    deps.Outcomes,
		metrics:     deps.Metrics,
	}
}

// ClassifyRegime runs the fixed-priority regime rules over one indicator
// reading.
func (e *Engine) ClassifyRegime(in regime.IndicatorReading) regime.Classification {
	cls := regime.Classify(in)
	e.metrics.RegimeClassifications.WithLabelValues(string(cls.Governor)).Inc()
	return cls
}

// ComputeFlowState classifies one symbol for a workspace. The previous-state
// cache is partitioned per workspace so tenants never observe each other.
func (e *Engine) ComputeFlowState(workspace string, in flowstate.Input) flowstate.Result {
	res := e.flowClassifier(workspace).Compute(in)
	e.metrics.FlowStates.WithLabelValues(string(res.State)).Inc()
	for _, note := range res.Notes {
		if strings.HasPrefix(note, "hysteresis") {
			e.metrics.FlowHolds.Inc()
		}
	}
	return res
}

func (e *Engine) flowClassifier(workspace string) *flowstate.Classifier {
	e.flowMu.Lock()
	defer e.flowMu.Unlock()
	c, ok := e.flows[workspace]
	if !ok {
		prefix := fmt.Sprintf("%s:%s", e.keyPrefix, workspace)
		c = flowstate.NewClassifier(e.flowStore, prefix).WithTTL(e.flowTTL)
		e.flows[workspace] = c
	}
	return c
}

// BuildSnapshot assembles a permission snapshot, folding in the workspace's
// derived guard state. Guard read failures degrade to guard-enabled, which
// is the tighter side.
func (e *Engine) BuildSnapshot(ctx context.Context, workspace string, p governor.SnapshotParams) governor.PermissionSnapshot {
	st, err := e.guards.Read(ctx, workspace)
	if err != nil {
		log.Warn().Err(err).Str("workspace", workspace).Msg("Guard read failed, assuming enabled")
		p.Enabled = true
	} else {
		p.Enabled = st.EffectivelyEnabled()
	}
	return governor.BuildPermissionSnapshot(p)
}

// EvaluateCandidate runs the full permission decision for one candidate.
func (e *Engine) EvaluateCandidate(snap governor.PermissionSnapshot, intent governor.CandidateIntent) (governor.Decision, error) {
	start := time.Now()

	e.mu.RLock()
	gov := e.gov
	e.mu.RUnlock()

	dec, err := gov.Evaluate(snap, intent)
	if err != nil {
		e.metrics.ObserveEvaluation("invalid", nil, time.Since(start))
		return governor.Decision{}, err
	}

	outcome := "allowed"
	switch {
	case !dec.Allowed:
		outcome = "blocked"
	case dec.SizeMultiplier < 1.0:
		outcome = "shrunk"
	}
	e.metrics.ObserveEvaluation(outcome, dec.ReasonCodes, time.Since(start))
	return dec, nil
}

// GuardState returns the derived guard state for a workspace.
func (e *Engine) GuardState(ctx context.Context, workspace string) (guard.State, error) {
	return e.guards.Read(ctx, workspace)
}

// RequestGuardDisable starts the disable cooldown.
func (e *Engine) RequestGuardDisable(ctx context.Context, workspace string) (guard.State, error) {
	st, err := e.guards.RequestDisable(ctx, workspace)
	if err == nil {
		e.metrics.GuardTransitions.WithLabelValues("request_disable").Inc()
	}
	return st, err
}

// CancelGuardDisable aborts a pending disable.
func (e *Engine) CancelGuardDisable(ctx context.Context, workspace string) (guard.State, error) {
	st, err := e.guards.Cancel(ctx, workspace)
	if err == nil {
		e.metrics.GuardTransitions.WithLabelValues("cancel_disable").Inc()
	}
	return st, err
}

// EnableGuard re-enables immediately from any mode.
func (e *Engine) EnableGuard(ctx context.Context, workspace string) (guard.State, error) {
	st, err := e.guards.Enable(ctx, workspace)
	if err == nil {
		e.metrics.GuardTransitions.WithLabelValues("enable").Inc()
	}
	return st, err
}

// RunEvolutionCycle recomputes weights for a workspace and symbol group.
// Samples come from the outcome repo when wired, otherwise from p.Samples.
// Applied adjustments are persisted (best effort when no repo) and swapped
// into the live governor. Passive results are returned to the caller only,
// never persisted and never applied.
func (e *Engine) RunEvolutionCycle(ctx context.Context, p evolve.Params) (evolve.Adjustment, error) {
	if len(p.Samples) == 0 && e.outcomes != nil {
		window, err := p.Cadence.Window()
		if err != nil {
			return evolve.Adjustment{}, err
		}
		now := p.Now
		if now.IsZero() {
			now = time.Now()
		}
		samples, err := e.outcomes.ListWindow(ctx, p.Workspace, now.Add(-window), now)
		if err != nil {
			return evolve.Adjustment{}, fmt.Errorf("failed to load outcome samples: %w", err)
		}
		p.Samples = samples
	}

	if p.Baseline.Sum() == 0 {
		e.mu.RLock()
		p.Baseline = e.gov.Weights()
		p.BaselineArmed = e.gov.ArmedConfidence()
		e.mu.RUnlock()
	}

	adj, err := e.evolver.RunCycle(ctx, p)
	if err != nil {
		e.metrics.ObserveEvolution("", "error", len(p.Samples))
		return evolve.Adjustment{}, err
	}

	if adj.Mode == evolve.ModeApplied {
		if e.adjustments != nil {
			if perr := e.adjustments.Insert(ctx, adj); perr != nil {
				log.Error().Err(perr).Str("workspace", p.Workspace).Msg("Failed to persist adjustment")
			}
		}
		e.mu.Lock()
		err = e.gov.ApplyAdjustment(adj)
		e.mu.Unlock()
		if err != nil {
			e.metrics.ObserveEvolution(adj.Mode, "apply_error", adj.SampleCount)
			return evolve.Adjustment{}, fmt.Errorf("failed to apply adjustment: %w", err)
		}
	}

	e.metrics.ObserveEvolution(adj.Mode, "ok", adj.SampleCount)
	return adj, nil
}

// NewPacket creates a decision packet from a signal.
func (e *Engine) NewPacket(in packet.FingerprintInput, signalScore float64) packet.Packet {
	return packet.New(in, signalScore, time.Now())
}

// AdvancePacket applies a lifecycle event to a packet in place.
func (e *Engine) AdvancePacket(p *packet.Packet, eventType string, explicit packet.Status) {
	p.Apply(eventType, explicit)
}

// Fingerprint computes the normalized content fingerprint for dedupe.
func (e *Engine) Fingerprint(in packet.FingerprintInput) string {
	return packet.BuildFingerprint(in)
}

// Weights returns the governor's current scoring weights.
func (e *Engine) Weights() evolve.WeightVector {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.gov.Weights()
}

// ArmedConfidence returns the governor's current armed threshold.
func (e *Engine) ArmedConfidence() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.gov.ArmedConfidence()
}

// Score computes the weighted composite for a factor score set.
func (e *Engine) Score(f evolve.FactorScores) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.gov.Score(f)
}
