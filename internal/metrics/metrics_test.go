package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveEvaluationCountsOutcomeAndReasons(t *testing.T) {
	r := NewRegistry(prometheus.NewRegistry())

	r.ObserveEvaluation("blocked", []string{"DATA_DOWN", "DAILY_LOSS_CAP"}, time.Millisecond)
	r.ObserveEvaluation("allowed", nil, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.Evaluations.WithLabelValues("blocked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Evaluations.WithLabelValues("allowed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.EvaluationReasons.WithLabelValues("DATA_DOWN")))
}

func TestObserveEvolutionSkipsZeroSampleHistogram(t *testing.T) {
	r := NewRegistry(prometheus.NewRegistry())

	r.ObserveEvolution("applied", "ok", 120)
	r.ObserveEvolution("", "error", 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.EvolutionCycles.WithLabelValues("applied", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.EvolutionCycles.WithLabelValues("", "error")))
}

func TestNopRegistryIsIsolated(t *testing.T) {
	a := Nop()
	b := Nop()
	a.FlowHolds.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.FlowHolds))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.FlowHolds))
}
