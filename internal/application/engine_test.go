package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfort/riskgov/internal/config"
	"github.com/quantfort/riskgov/internal/domain/evolve"
	"github.com/quantfort/riskgov/internal/domain/flowstate"
	"github.com/quantfort/riskgov/internal/domain/governor"
	"github.com/quantfort/riskgov/internal/domain/packet"
	"github.com/quantfort/riskgov/internal/domain/regime"
)

type fakeOutcomes struct {
	samples []evolve.OutcomeSample
}

func (f *fakeOutcomes) ListWindow(_ context.Context, _ string, from, to time.Time) ([]evolve.OutcomeSample, error) {
	var out []evolve.OutcomeSample
	for _, s := range f.samples {
		if s.ClosedAt.After(from) && !s.ClosedAt.After(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeAdjustments struct {
	inserted []evolve.Adjustment
}

func (f *fakeAdjustments) Insert(_ context.Context, adj evolve.Adjustment) error {
	f.inserted = append(f.inserted, adj)
	return nil
}

func (f *fakeAdjustments) Latest(_ context.Context, _, _ string) (*evolve.Adjustment, error) {
	if len(f.inserted) == 0 {
		return nil, nil
	}
	adj := f.inserted[len(f.inserted)-1]
	return &adj, nil
}

func validIntent() governor.CandidateIntent {
	return governor.CandidateIntent{
		Symbol:     "SPY",
		AssetClass: "equity",
		Strategy:   governor.TrendBreakout,
		Direction:  governor.Long,
		Confidence: 80,
		Entry:      500.0,
		Stop:       495.0,
		ATR:        2.5,
	}
}

func TestEngineEvaluateHappyPath(t *testing.T) {
	eng := NewEngine(nil, Deps{})

	snap := eng.BuildSnapshot(context.Background(), "ws-1", governor.SnapshotParams{
		Regime:     regime.TrendUp,
		DataStatus: governor.DataOK,
	})
	assert.True(t, snap.GovernorEnabled)

	dec, err := eng.EvaluateCandidate(snap, validIntent())
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
	assert.Equal(t, 1.0, dec.SizeMultiplier)
	assert.Empty(t, dec.ReasonCodes)
}

func TestEngineEvaluateRejectsMalformedIntent(t *testing.T) {
	eng := NewEngine(nil, Deps{})
	snap := eng.BuildSnapshot(context.Background(), "ws-1", governor.SnapshotParams{
		Regime:     regime.TrendUp,
		DataStatus: governor.DataOK,
	})

	bad := validIntent()
	bad.Stop = 510.0 // wrong side for LONG
	_, err := eng.EvaluateCandidate(snap, bad)
	require.Error(t, err)
}

func TestEngineSnapshotFoldsGuardState(t *testing.T) {
	eng := NewEngine(nil, Deps{})
	ctx := context.Background()

	// Pending disable still protects.
	_, err := eng.RequestGuardDisable(ctx, "ws-1")
	require.NoError(t, err)
	snap := eng.BuildSnapshot(ctx, "ws-1", governor.SnapshotParams{
		Regime:     regime.TrendUp,
		DataStatus: governor.DataOK,
	})
	assert.True(t, snap.GovernorEnabled)

	// Other workspaces are unaffected.
	snap = eng.BuildSnapshot(ctx, "ws-2", governor.SnapshotParams{
		Regime:     regime.TrendUp,
		DataStatus: governor.DataOK,
	})
	assert.True(t, snap.GovernorEnabled)
}

func TestEngineFlowStateIsolatesWorkspaces(t *testing.T) {
	eng := NewEngine(nil, Deps{})
	in := flowstate.Input{
		Symbol:        "AAPL",
		MarketType:    flowstate.MarketEquity,
		DataFreshness: 90,
	}

	a := eng.ComputeFlowState("ws-a", in)
	b := eng.ComputeFlowState("ws-b", in)
	assert.Equal(t, a.State, b.State)
	assert.Equal(t, a.Confidence, b.Confidence)
}

// mixedOutcomeSamples builds n samples with regime-fit mostly winning and
// timing mostly losing, so adaptation always moves weight between them.
func mixedOutcomeSamples(closedAt time.Time, n int) []evolve.OutcomeSample {
	var out []evolve.OutcomeSample
	for i := 0; i < n; i++ {
		cat := evolve.RegimeFit
		r := 1.0
		if i%4 == 0 {
			cat = evolve.Timing
			r = -1.0
		}
		out = append(out, evolve.OutcomeSample{
			Category: cat,
			ResultR:  r,
			ClosedAt: closedAt.Add(-time.Duration(i) * time.Hour),
		})
	}
	return out
}

func TestEngineEvolutionCycleAppliesWeights(t *testing.T) {
	closedAt := time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC) // Saturday
	outcomes := &fakeOutcomes{samples: mixedOutcomeSamples(closedAt, 40)}
	adjRepo := &fakeAdjustments{}
	eng := NewEngine(nil, Deps{
		Clock:       evolve.StaticClock(false),
		Outcomes:    outcomes,
		Adjustments: adjRepo,
	})

	before := eng.Weights()
	adj, err := eng.RunEvolutionCycle(context.Background(), evolve.Params{
		Workspace:   "ws-1",
		SymbolGroup: "us-equity",
		Cadence:     evolve.CadenceWeekly,
		Now:         closedAt,
	})
	require.NoError(t, err)

	assert.Equal(t, evolve.ModeApplied, adj.Mode)
	assert.Len(t, adjRepo.inserted, 1)
	assert.InDelta(t, 1.0, adj.Weights.Sum(), 1e-6)
	assert.NotEqual(t, before, eng.Weights())
	assert.Equal(t, adj.ArmedConfidence, eng.ArmedConfidence())
}

func TestEngineEvolutionCyclePassiveNotPersisted(t *testing.T) {
	closedAt := time.Date(2025, 6, 16, 12, 0, 0, 0, time.UTC)
	adjRepo := &fakeAdjustments{}
	eng := NewEngine(nil, Deps{
		Clock:       evolve.StaticClock(true),
		Adjustments: adjRepo,
	})

	before := eng.Weights()
	adj, err := eng.RunEvolutionCycle(context.Background(), evolve.Params{
		Workspace:   "ws-1",
		SymbolGroup: "us-equity",
		Cadence:     evolve.CadenceWeekly,
		Samples:     mixedOutcomeSamples(closedAt, 40),
		Now:         closedAt,
	})
	require.NoError(t, err)

	assert.Equal(t, evolve.ModePassiveOnly, adj.Mode)
	assert.Empty(t, adjRepo.inserted)
	assert.Equal(t, before, eng.Weights())
}

func TestEngineEvolutionLearningRateFromConfig(t *testing.T) {
	closedAt := time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC)
	p := evolve.Params{
		Workspace: "ws-1",
		Cadence:   evolve.CadenceWeekly,
		Samples:   mixedOutcomeSamples(closedAt, 40),
		Now:       closedAt,
	}

	tuned := config.Default()
	tuned.Evolution.LearningRate = 0.05
	tuned.Evolution.MinWeight = 0.09

	defAdj, err := NewEngine(nil, Deps{Clock: evolve.StaticClock(false)}).
		RunEvolutionCycle(context.Background(), p)
	require.NoError(t, err)
	tunedAdj, err := NewEngine(tuned, Deps{Clock: evolve.StaticClock(false)}).
		RunEvolutionCycle(context.Background(), p)
	require.NoError(t, err)

	assert.NotEqual(t, defAdj.Weights, tunedAdj.Weights)
	assert.InDelta(t, 1.0, tunedAdj.Weights.Sum(), 1e-6)
}

func TestEngineBaselineSeededFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Evolution.Baseline = evolve.WeightVector{
		RegimeFit:        0.30,
		CapitalFlow:      0.20,
		StructureQuality: 0.15,
		OptionsAlignment: 0.10,
		Timing:           0.15,
		DataHealth:       0.10,
	}
	cfg.Evolution.BaselineArmed = 72

	eng := NewEngine(cfg, Deps{})
	assert.Equal(t, cfg.Evolution.Baseline, eng.Weights())
	assert.Equal(t, 72.0, eng.ArmedConfidence())
}

func TestEngineEvolutionCycleInsufficientData(t *testing.T) {
	eng := NewEngine(nil, Deps{Outcomes: &fakeOutcomes{}})
	_, err := eng.RunEvolutionCycle(context.Background(), evolve.Params{
		Workspace: "ws-1",
		Cadence:   evolve.CadenceDaily,
	})
	require.ErrorIs(t, err, evolve.ErrInsufficientData)
}

func TestEnginePacketLifecycle(t *testing.T) {
	eng := NewEngine(nil, Deps{})
	p := eng.NewPacket(packet.FingerprintInput{
		Symbol:        "spy",
		SignalSource:  "scanner",
		Bias:          "LONG",
		TimeframeBias: []string{"15m", "1h"},
		EntryZone:     500.0,
		Invalidation:  495.0,
		RiskScore:     62.0,
	}, 78.5)

	assert.Equal(t, packet.StatusCandidate, p.Status)
	eng.AdvancePacket(&p, "plan", "")
	assert.Equal(t, packet.StatusPlanned, p.Status)
	eng.AdvancePacket(&p, "", packet.StatusExecuted)
	assert.Equal(t, packet.StatusExecuted, p.Status)
	// Stale lower-rank event cannot regress the packet.
	eng.AdvancePacket(&p, "alert", "")
	assert.Equal(t, packet.StatusExecuted, p.Status)
}
