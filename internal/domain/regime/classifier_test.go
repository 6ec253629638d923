package regime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_VolatilityExtremeWinsRegardlessOfTrend(t *testing.T) {
	// Priority rule: vol% > 7 must classify VOL_EXPANSION even when a strong
	// trend is also present.
	cases := []IndicatorReading{
		{VolatilityPct: M(7.1)},
		{VolatilityPct: M(9.0), TrendStrength: M(45), Momentum: M(80), Hint: HintBullish},
		{VolatilityPct: M(12.0), TrendStrength: M(10)},
	}
	for _, in := range cases {
		c := Classify(in)
		assert.Equal(t, VolExpansion, c.Governor)
		assert.Equal(t, ScoringVolChaos, c.Scoring)
		assert.Equal(t, InstVolatile, c.Institutional)
	}
}

func TestClassify_VolatilityExtremeConfidenceBump(t *testing.T) {
	base := Classify(IndicatorReading{VolatilityPct: M(8.0)})
	withTrend := Classify(IndicatorReading{VolatilityPct: M(8.0), TrendStrength: M(25)})
	assert.Equal(t, 65.0, base.Confidence)
	assert.Equal(t, 75.0, withTrend.Confidence)
}

func TestClassify_StrongTrendEndToEnd(t *testing.T) {
	c := Classify(IndicatorReading{
		TrendStrength:    M(35),
		Momentum:         M(75),
		VolatilityPct:    M(2),
		PlusDirectional:  M(60),
		MinusDirectional: M(10),
		Hint:             HintBullish,
	})
	assert.Equal(t, TrendUp, c.Governor)
	assert.Equal(t, ScoringTrendMature, c.Scoring)
	assert.Equal(t, InstTrending, c.Institutional)
	// All three measured signals agree, plus the >=30 trend strength bump,
	// capped at 95.
	assert.Equal(t, 95.0, c.Confidence)
}

func TestClassify_BearishTrendExpansion(t *testing.T) {
	c := Classify(IndicatorReading{
		TrendStrength:    M(24),
		Momentum:         M(42), // bearish-agreeing but not extreme
		PlusDirectional:  M(12),
		MinusDirectional: M(38),
		Hint:             HintBearish,
	})
	assert.Equal(t, TrendDown, c.Governor)
	assert.Equal(t, ScoringTrendExpansion, c.Scoring)
}

func TestClassify_TrendDirectionFromLongTermFlag(t *testing.T) {
	c := Classify(IndicatorReading{
		TrendStrength:     M(28),
		AboveLongTermMean: M(1),
	})
	assert.Equal(t, TrendUp, c.Governor)

	c = Classify(IndicatorReading{
		TrendStrength:     M(28),
		AboveLongTermMean: M(-1),
	})
	assert.Equal(t, TrendDown, c.Governor)
}

func TestClassify_RangeContractionVsNeutral(t *testing.T) {
	contract := Classify(IndicatorReading{TrendStrength: M(12), VolatilityPct: M(0.8)})
	require.Equal(t, RangeNeutral, contract.Governor)
	assert.Equal(t, ScoringRangeContract, contract.Scoring)

	neutral := Classify(IndicatorReading{TrendStrength: M(12), VolatilityPct: M(2.2)})
	assert.Equal(t, ScoringRangeNeutral, neutral.Scoring)
	assert.Equal(t, InstRanging, neutral.Institutional)
	assert.LessOrEqual(t, neutral.Confidence, 85.0)
}

func TestClassify_ModerateVolExpansion(t *testing.T) {
	// Not extreme, not trending, not ranging: moderate vol rule fires.
	c := Classify(IndicatorReading{
		VolatilityPct:    M(5.0),
		TrendStrength:    M(20),
		PlusDirectional:  M(40),
		MinusDirectional: M(15),
	})
	assert.Equal(t, VolExpansion, c.Governor)
	assert.Equal(t, ScoringVolExpansion, c.Scoring)
	assert.Equal(t, 60.0, c.Confidence) // 50 + 10 for trend strength present
}

func TestClassify_ConservativeFallback(t *testing.T) {
	// Mixed or missing signals must never produce a directional trend.
	cases := []IndicatorReading{
		{},
		{Momentum: M(55)},
		{TrendStrength: M(20), VolatilityPct: M(3), PlusDirectional: M(30), MinusDirectional: M(5)},
		{TrendStrength: M(25)}, // strong trend but no resolvable direction
	}
	for _, in := range cases {
		c := Classify(in)
		assert.NotEqual(t, TrendUp, c.Governor)
		assert.NotEqual(t, TrendDown, c.Governor)
		assert.LessOrEqual(t, c.Confidence, 85.0)
	}
}

func TestClassify_FallbackConfidenceFloor(t *testing.T) {
	empty := Classify(IndicatorReading{})
	assert.Equal(t, ScoringTransition, empty.Scoring)
	assert.Equal(t, 30.0, empty.Confidence)

	// trendStrength=25 with no direction falls back; one indicator present.
	one := Classify(IndicatorReading{TrendStrength: M(25)})
	assert.Equal(t, 35.0, one.Confidence)
	assert.LessOrEqual(t, one.Confidence, 55.0)
}

func TestPhaseFrom(t *testing.T) {
	assert.Equal(t, PhaseMarkup, PhaseFrom(110, 105, 100))
	assert.Equal(t, PhaseMarkdown, PhaseFrom(90, 95, 100))
	assert.Equal(t, PhaseAccumulation, PhaseFrom(102, 99, 100))
	assert.Equal(t, PhaseDistribution, PhaseFrom(98, 101, 100))
	assert.Equal(t, PhaseUnknown, PhaseFrom(98, 0, 0))
}
