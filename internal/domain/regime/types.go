package regime

// GovernorRegime is the taxonomy consumed by the risk governor's
// strategy-compatibility matrix.
type GovernorRegime string

const (
	TrendUp      GovernorRegime = "TREND_UP"
	TrendDown    GovernorRegime = "TREND_DOWN"
	RangeNeutral GovernorRegime = "RANGE_NEUTRAL"
	VolExpansion GovernorRegime = "VOL_EXPANSION"
)

// ScoringRegime is the taxonomy consumed by the scoring/weighting layer.
type ScoringRegime string

const (
	ScoringTrendExpansion ScoringRegime = "TREND_EXPANSION"
	ScoringTrendMature    ScoringRegime = "TREND_MATURE"
	ScoringRangeContract  ScoringRegime = "RANGE_CONTRACTION"
	ScoringRangeNeutral   ScoringRegime = "RANGE_NEUTRAL"
	ScoringVolExpansion   ScoringRegime = "VOL_EXPANSION"
	ScoringVolChaos       ScoringRegime = "HIGH_VOLATILITY_CHAOS"
	ScoringTransition     ScoringRegime = "TRANSITION"
)

// InstitutionalRegime is the coarse taxonomy shown to flow-state consumers.
type InstitutionalRegime string

const (
	InstTrending     InstitutionalRegime = "trending"
	InstRanging      InstitutionalRegime = "ranging"
	InstVolatile     InstitutionalRegime = "volatile"
	InstTransitional InstitutionalRegime = "transitional"
)

// Metric is an optional indicator reading. Valid=false means the indicator
// was not measured for this call, which matters for confidence floors.
type Metric struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// M builds a valid Metric.
func M(v float64) Metric { return Metric{Value: v, Valid: true} }

// DirectionHint is an upstream directional suggestion. Empty means no hint.
type DirectionHint string

const (
	HintBullish DirectionHint = "bullish"
	HintBearish DirectionHint = "bearish"
	HintNone    DirectionHint = ""
)

// IndicatorReading is the ephemeral input to Classify. No identity, no
// persistence; consumed once per call.
type IndicatorReading struct {
	TrendStrength     Metric        `json:"trend_strength"`    // ADX-like, 0-100+
	Momentum          Metric        `json:"momentum"`          // RSI-like, 0-100
	VolatilityPct     Metric        `json:"volatility_pct"`    // ATR as % of price
	PlusDirectional   Metric        `json:"plus_directional"`  // +DI-like
	MinusDirectional  Metric        `json:"minus_directional"` // -DI-like
	Hint              DirectionHint `json:"hint,omitempty"`
	AboveLongTermMean Metric        `json:"above_long_term_mean"` // >0 above, <=0 below
}

// Classification exposes one underlying regime in all three taxonomies.
// The three fields are views of the same decision and are always derived
// together, never computed independently.
type Classification struct {
	Governor      GovernorRegime      `json:"governor"`
	Scoring       ScoringRegime       `json:"scoring"`
	Institutional InstitutionalRegime `json:"institutional"`
	Label         string              `json:"label"`
	Confidence    float64             `json:"confidence"` // 0-100
}

// MarketPhase is the coarse long-term structural phase attached to scan
// results (markup/markdown style labeling from EMA structure).
type MarketPhase string

const (
	PhaseMarkup       MarketPhase = "MARKUP"
	PhaseMarkdown     MarketPhase = "MARKDOWN"
	PhaseAccumulation MarketPhase = "ACCUMULATION"
	PhaseDistribution MarketPhase = "DISTRIBUTION"
	PhaseUnknown      MarketPhase = "UNKNOWN"
)
