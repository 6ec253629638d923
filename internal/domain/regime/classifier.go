package regime

import (
	"math"
)

// Classify maps one indicator reading to a unified regime classification.
//
// Rules are evaluated in fixed priority order and the first match wins. The
// ordering is load-bearing: a later rule (moderate volatility) must never
// override an extreme-volatility or strong-trend match, and the fallback is
// deliberately conservative (never a directional trend when signals are
// mixed or missing).
func Classify(in IndicatorReading) Classification {
	// Rule 1: volatility extreme.
	if in.VolatilityPct.Valid && in.VolatilityPct.Value > 7.0 {
		conf := 65.0
		if in.TrendStrength.Valid {
			conf += 10.0
		}
		return Classification{
			Governor:      VolExpansion,
			Scoring:       ScoringVolChaos,
			Institutional: InstVolatile,
			Label:         "High volatility chaos",
			Confidence:    conf,
		}
	}

	spread, spreadValid := directionalSpread(in)

	// Rule 2: strong trend.
	strongTrend := in.TrendStrength.Valid &&
		(in.TrendStrength.Value >= 22.0 ||
			(in.TrendStrength.Value >= 30.0 && spreadValid && spread > 40.0))
	if strongTrend {
		if dir, ok := resolveDirection(in); ok {
			return classifyTrend(in, dir)
		}
		// No resolvable direction: fall through to the conservative rules.
	}

	// Rule 3: range / compression.
	inRange := (in.TrendStrength.Valid && in.TrendStrength.Value <= 18.0) ||
		(spreadValid && spread < 20.0)
	if inRange {
		return classifyRange(in, spread, spreadValid)
	}

	// Rule 4: moderate volatility expansion.
	if in.VolatilityPct.Valid && in.VolatilityPct.Value > 4.0 {
		conf := 50.0
		if in.TrendStrength.Valid {
			conf += 10.0
		}
		return Classification{
			Governor:      VolExpansion,
			Scoring:       ScoringVolExpansion,
			Institutional: InstVolatile,
			Label:         "Volatility expansion",
			Confidence:    conf,
		}
	}

	// Rule 5: fallback transition. Governor view stays RANGE_NEUTRAL so the
	// compatibility matrix never sees a directional trend from mixed signals.
	conf := math.Min(55.0, 30.0+5.0*float64(indicatorsPresent(in)))
	return Classification{
		Governor:      RangeNeutral,
		Scoring:       ScoringTransition,
		Institutional: InstTransitional,
		Label:         "Transition",
		Confidence:    conf,
	}
}

type direction int

const (
	dirBullish direction = iota
	dirBearish
)

// resolveDirection picks the trend direction from the hint first, then the
// long-term trend position flag.
func resolveDirection(in IndicatorReading) (direction, bool) {
	switch in.Hint {
	case HintBullish:
		return dirBullish, true
	case HintBearish:
		return dirBearish, true
	}
	if in.AboveLongTermMean.Valid {
		if in.AboveLongTermMean.Value > 0 {
			return dirBullish, true
		}
		return dirBearish, true
	}
	return dirBullish, false
}

func classifyTrend(in IndicatorReading, dir direction) Classification {
	agree, total := trendAgreement(in, dir)

	conf := 50.0
	if total > 0 {
		conf += 40.0 * float64(agree) / float64(total)
	}
	if in.TrendStrength.Value >= 30.0 {
		conf += 10.0
	}
	conf = math.Min(conf, 95.0)

	mature := false
	if in.Momentum.Valid {
		if dir == dirBullish && in.Momentum.Value > 70.0 {
			mature = true
		}
		if dir == dirBearish && in.Momentum.Value < 30.0 {
			mature = true
		}
	}

	c := Classification{Institutional: InstTrending, Confidence: conf}
	if dir == dirBullish {
		c.Governor = TrendUp
	} else {
		c.Governor = TrendDown
	}
	word := "bullish"
	if dir == dirBearish {
		word = "bearish"
	}
	if mature {
		c.Scoring = ScoringTrendMature
		c.Label = "Mature " + word + " trend"
	} else {
		c.Scoring = ScoringTrendExpansion
		c.Label = capitalize(word) + " trend expansion"
	}
	return c
}

// trendAgreement counts direction-bearing signals that were measured and how
// many of them agree with the resolved direction.
func trendAgreement(in IndicatorReading, dir direction) (agree, total int) {
	if in.Hint != HintNone {
		total++
		if (dir == dirBullish && in.Hint == HintBullish) ||
			(dir == dirBearish && in.Hint == HintBearish) {
			agree++
		}
	}
	if in.Momentum.Valid {
		total++
		if (dir == dirBullish && in.Momentum.Value > 50.0) ||
			(dir == dirBearish && in.Momentum.Value < 50.0) {
			agree++
		}
	}
	if in.PlusDirectional.Valid && in.MinusDirectional.Valid {
		total++
		if (dir == dirBullish && in.PlusDirectional.Value > in.MinusDirectional.Value) ||
			(dir == dirBearish && in.MinusDirectional.Value > in.PlusDirectional.Value) {
			agree++
		}
	}
	if in.AboveLongTermMean.Valid {
		total++
		if (dir == dirBullish && in.AboveLongTermMean.Value > 0) ||
			(dir == dirBearish && in.AboveLongTermMean.Value <= 0) {
			agree++
		}
	}
	return agree, total
}

func classifyRange(in IndicatorReading, spread float64, spreadValid bool) Classification {
	agree, total := 0, 0
	if in.TrendStrength.Valid {
		total++
		if in.TrendStrength.Value <= 18.0 {
			agree++
		}
	}
	if spreadValid {
		total++
		if spread < 20.0 {
			agree++
		}
	}
	if in.Momentum.Valid {
		total++
		if in.Momentum.Value >= 40.0 && in.Momentum.Value <= 60.0 {
			agree++
		}
	}
	if in.VolatilityPct.Valid {
		total++
		if in.VolatilityPct.Value < 1.5 {
			agree++
		}
	}

	conf := 45.0
	if total > 0 {
		conf += 35.0 * float64(agree) / float64(total)
	}
	conf = math.Min(conf, 85.0)

	c := Classification{
		Governor:      RangeNeutral,
		Institutional: InstRanging,
		Confidence:    conf,
	}
	if in.VolatilityPct.Valid && in.VolatilityPct.Value < 1.5 {
		c.Scoring = ScoringRangeContract
		c.Label = "Volatility contraction"
	} else {
		c.Scoring = ScoringRangeNeutral
		c.Label = "Neutral range"
	}
	return c
}

func directionalSpread(in IndicatorReading) (float64, bool) {
	if !in.PlusDirectional.Valid || !in.MinusDirectional.Valid {
		return 0, false
	}
	return math.Abs(in.PlusDirectional.Value - in.MinusDirectional.Value), true
}

func indicatorsPresent(in IndicatorReading) int {
	n := 0
	for _, m := range []Metric{in.TrendStrength, in.Momentum, in.VolatilityPct, in.AboveLongTermMean} {
		if m.Valid {
			n++
		}
	}
	if in.PlusDirectional.Valid && in.MinusDirectional.Valid {
		n++
	}
	if in.Hint != HintNone {
		n++
	}
	return n
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

// PhaseFrom labels the long-term structural phase from closing price and the
// 50/200 period moving averages.
func PhaseFrom(close, ma50, ma200 float64) MarketPhase {
	if ma50 <= 0 || ma200 <= 0 {
		return PhaseUnknown
	}
	switch {
	case close > ma200 && ma50 > ma200:
		return PhaseMarkup
	case close < ma200 && ma50 < ma200:
		return PhaseMarkdown
	case close > ma200:
		return PhaseAccumulation
	default:
		return PhaseDistribution
	}
}
