package evolve

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC) // a Saturday

func makeSamples(n int, winners int) []OutcomeSample {
	samples := make([]OutcomeSample, 0, n)
	for i := 0; i < n; i++ {
		cat := AllCategories[i%len(AllCategories)]
		r := -0.8
		if i < winners {
			r = 1.4
		}
		samples = append(samples, OutcomeSample{
			Category:    cat,
			WeightsUsed: DefaultWeights(),
			ResultR:     r,
			ClosedAt:    testNow.Add(-time.Duration(i+1) * time.Minute),
		})
	}
	return samples
}

func TestRunCycle_InsufficientSamples(t *testing.T) {
	e := NewEngine(StaticClock(false))
	_, err := e.RunCycle(context.Background(), Params{
		Cadence: CadenceDaily,
		Samples: makeSamples(29, 15),
		Now:     testNow,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientData)
	assert.Contains(t, err.Error(), "have 29")
}

func TestRunCycle_ThirtySamplesSucceeds(t *testing.T) {
	e := NewEngine(StaticClock(false))
	adj, err := e.RunCycle(context.Background(), Params{
		Workspace: "ws-1",
		Cadence:   CadenceDaily,
		Samples:   makeSamples(30, 18),
		Now:       testNow,
	})
	require.NoError(t, err)
	assert.Equal(t, 30, adj.SampleCount)
	assert.Equal(t, ModeApplied, adj.Mode)
	assert.InDelta(t, 1.0, adj.Weights.Sum(), 1e-6)
	require.NoError(t, adj.Weights.Validate())
}

func TestRunCycle_WeightsNonNegativeUnderLopsidedOutcomes(t *testing.T) {
	// Every dataHealth-labeled sample loses; its weight must shrink but stay
	// non-negative and the vector must renormalize.
	samples := make([]OutcomeSample, 0, 60)
	for i := 0; i < 60; i++ {
		cat := AllCategories[i%len(AllCategories)]
		r := 1.0
		if cat == DataHealth {
			r = -1.0
		}
		samples = append(samples, OutcomeSample{
			Category: cat, ResultR: r, ClosedAt: testNow.Add(-time.Hour),
		})
	}

	e := NewEngine(StaticClock(false))
	adj, err := e.RunCycle(context.Background(), Params{
		Cadence: CadenceDaily, Samples: samples, Now: testNow,
	})
	require.NoError(t, err)
	require.NoError(t, adj.Weights.Validate())
	assert.Less(t, adj.Weights.DataHealth, DefaultWeights().DataHealth)
	assert.Greater(t, adj.Weights.RegimeFit, DefaultWeights().RegimeFit)
}

func TestRunCycle_Deterministic(t *testing.T) {
	p := Params{Cadence: CadenceWeekly, Samples: makeSamples(45, 20), Now: testNow}
	e := NewEngine(StaticClock(false))

	a, err := e.RunCycle(context.Background(), p)
	require.NoError(t, err)
	b, err := e.RunCycle(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRunCycle_PassiveDuringLiveSession(t *testing.T) {
	e := NewEngine(StaticClock(true))
	adj, err := e.RunCycle(context.Background(), Params{
		Cadence: CadenceDaily, Samples: makeSamples(40, 20), Now: testNow,
	})
	require.NoError(t, err)
	assert.Equal(t, ModePassiveOnly, adj.Mode, "live session computes but must not be applied")
	assert.InDelta(t, 1.0, adj.Weights.Sum(), 1e-6)
}

func TestRunCycle_WindowExcludesOldSamples(t *testing.T) {
	samples := makeSamples(25, 12)
	// 20 more outside the daily window.
	for i := 0; i < 20; i++ {
		samples = append(samples, OutcomeSample{
			Category: RegimeFit, ResultR: 1.0,
			ClosedAt: testNow.Add(-48 * time.Hour),
		})
	}
	e := NewEngine(StaticClock(false))
	_, err := e.RunCycle(context.Background(), Params{
		Cadence: CadenceDaily, Samples: samples, Now: testNow,
	})
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestRunCycle_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := NewEngine(StaticClock(false))
	_, err := e.RunCycle(ctx, Params{
		Cadence: CadenceDaily, Samples: makeSamples(40, 20), Now: testNow,
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunCycle_ArmedConfidenceBounds(t *testing.T) {
	e := NewEngine(StaticClock(false))

	allWin, err := e.RunCycle(context.Background(), Params{
		Cadence: CadenceDaily, Samples: makeSamples(30, 30), Now: testNow,
	})
	require.NoError(t, err)
	allLose, err := e.RunCycle(context.Background(), Params{
		Cadence: CadenceDaily, Samples: makeSamples(30, 0), Now: testNow,
	})
	require.NoError(t, err)

	// Strong edge lowers the bar, a losing window raises it.
	assert.Less(t, allWin.ArmedConfidence, allLose.ArmedConfidence)
	assert.GreaterOrEqual(t, allWin.ArmedConfidence, 50.0)
	assert.LessOrEqual(t, allLose.ArmedConfidence, 90.0)
}

func TestRunCycle_UnknownCadence(t *testing.T) {
	e := NewEngine(StaticClock(false))
	_, err := e.RunCycle(context.Background(), Params{
		Cadence: Cadence("hourly"), Samples: makeSamples(40, 20), Now: testNow,
	})
	assert.Error(t, err)
}

func TestWeightVector_Validate(t *testing.T) {
	require.NoError(t, DefaultWeights().Validate())

	bad := DefaultWeights()
	bad.Timing = -0.1
	assert.Error(t, bad.Validate())

	unsummed := WeightVector{RegimeFit: 0.5, CapitalFlow: 0.6}
	assert.Error(t, unsummed.Validate())
}

func TestWeightVector_Composite(t *testing.T) {
	w := DefaultWeights()
	f := FactorScores{}
	for _, c := range AllCategories {
		f[c] = 80
	}
	assert.InDelta(t, 80.0, w.Composite(f), 1e-9)
}

func TestSessionClock(t *testing.T) {
	clock, err := NewSessionClock()
	require.NoError(t, err)

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	assert.True(t, clock.IsLive(time.Date(2025, 6, 10, 10, 0, 0, 0, ny)))  // Tuesday 10:00
	assert.True(t, clock.IsLive(time.Date(2025, 6, 10, 9, 30, 0, 0, ny)))  // open
	assert.False(t, clock.IsLive(time.Date(2025, 6, 10, 9, 29, 0, 0, ny))) // pre-open
	assert.False(t, clock.IsLive(time.Date(2025, 6, 10, 16, 0, 0, 0, ny))) // close
	assert.False(t, clock.IsLive(time.Date(2025, 6, 14, 12, 0, 0, 0, ny))) // Saturday
}

func TestRunCycle_SumToleranceTight(t *testing.T) {
	e := NewEngine(StaticClock(false))
	adj, err := e.RunCycle(context.Background(), Params{
		Cadence: CadenceMonthly, Samples: makeSamples(90, 40), Now: testNow,
	})
	require.NoError(t, err)
	assert.True(t, math.Abs(adj.Weights.Sum()-1.0) <= 1e-6)
}
