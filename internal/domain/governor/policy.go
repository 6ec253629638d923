package governor

import (
	"github.com/quantfort/riskgov/internal/domain/regime"
)

// Config holds the governor's risk thresholds. Values are per-session R
// units unless noted.
type Config struct {
	DailyLossFloorR     float64 `yaml:"daily_loss_floor_r"`    // Block new risk at or below (-2.0)
	OpenRiskCeilingR    float64 `yaml:"open_risk_ceiling_r"`   // Block at or above (3.0)
	LossStreakThreshold int     `yaml:"loss_streak_threshold"` // Shrink beyond (3)
	LossStreakShrink    float64 `yaml:"loss_streak_shrink"`    // Multiplier under a streak (0.5)
	EventMediumShrink   float64 `yaml:"event_medium_shrink"`   // Multiplier for medium events (0.6)
	StaleToleranceSec   float64 `yaml:"stale_tolerance_sec"`   // Max DEGRADED staleness (45)
	DefaultDataAgeSec   float64 `yaml:"default_data_age_sec"`  // Snapshot fallback age (3)
	ArmedConfidence     float64 `yaml:"armed_confidence"`      // Minimum intent confidence (60)
	DisabledBudgetScale float64 `yaml:"disabled_budget_scale"` // Budget factor while guard disabled (0.5)
}

// DefaultConfig returns production thresholds.
func DefaultConfig() Config {
	return Config{
		DailyLossFloorR:     -2.0,
		OpenRiskCeilingR:    3.0,
		LossStreakThreshold: 3,
		LossStreakShrink:    0.5,
		EventMediumShrink:   0.6,
		StaleToleranceSec:   45.0,
		DefaultDataAgeSec:   3.0,
		ArmedConfidence:     60.0,
		DisabledBudgetScale: 0.5,
	}
}

// compatibleRegimes maps each playbook to the governor regimes it may trade
// in. Anything absent is incompatible and blocks.
var compatibleRegimes = map[StrategyTag][]regime.GovernorRegime{
	TrendBreakout:        {regime.TrendUp, regime.TrendDown, regime.VolExpansion},
	TrendPullback:        {regime.TrendUp, regime.TrendDown},
	RangeFade:            {regime.RangeNeutral},
	SqueezeRelease:       {regime.RangeNeutral, regime.VolExpansion},
	MomentumContinuation: {regime.TrendUp, regime.TrendDown, regime.VolExpansion},
	ExhaustionReversal:   {regime.TrendUp, regime.TrendDown, regime.VolExpansion},
}

// eventSensitive marks playbooks that shrink (rather than ride through)
// medium-severity scheduled events.
var eventSensitive = map[StrategyTag]bool{
	RangeFade:          true,
	TrendPullback:      true,
	ExhaustionReversal: true,
}

// StrategyCompatible reports whether the playbook may trade the regime.
func StrategyCompatible(s StrategyTag, r regime.GovernorRegime) bool {
	for _, ok := range compatibleRegimes[s] {
		if ok == r {
			return true
		}
	}
	return false
}
