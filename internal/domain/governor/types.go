package governor

import (
	"time"

	"github.com/quantfort/riskgov/internal/domain/regime"
)

// DataStatus describes the health of the indicator/data pipeline feeding the
// engine. Staleness is an expected runtime condition, never an error.
type DataStatus string

const (
	DataOK       DataStatus = "OK"
	DataDegraded DataStatus = "DEGRADED"
	DataDown     DataStatus = "DOWN"
)

// EventSeverity describes scheduled-event risk (CPI prints, FOMC, earnings).
type EventSeverity string

const (
	EventNone   EventSeverity = "none"
	EventMedium EventSeverity = "medium"
	EventHigh   EventSeverity = "high"
)

// Direction of a candidate trade.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// StrategyTag enumerates the six playbooks the governor understands.
type StrategyTag string

const (
	TrendBreakout        StrategyTag = "TREND_BREAKOUT"
	TrendPullback        StrategyTag = "TREND_PULLBACK"
	RangeFade            StrategyTag = "RANGE_FADE"
	SqueezeRelease       StrategyTag = "SQUEEZE_RELEASE"
	MomentumContinuation StrategyTag = "MOMENTUM_CONTINUATION"
	ExhaustionReversal   StrategyTag = "EXHAUSTION_REVERSAL"
)

// AllStrategies in canonical order.
var AllStrategies = []StrategyTag{
	TrendBreakout, TrendPullback, RangeFade,
	SqueezeRelease, MomentumContinuation, ExhaustionReversal,
}

// PermissionSnapshot is a point-in-time view of what risk the account may
// take. Built fresh per evaluation request; never mutated in place.
type PermissionSnapshot struct {
	GovernorEnabled   bool                  `json:"governor_enabled"`
	Regime            regime.GovernorRegime `json:"regime"`
	DataStatus        DataStatus            `json:"data_status"`
	DataAgeSeconds    float64               `json:"data_age_seconds"`
	EventSeverity     EventSeverity         `json:"event_severity"`
	RealizedDailyR    float64               `json:"realized_daily_r"`
	OpenRiskR         float64               `json:"open_risk_r"`
	ConsecutiveLosses int                   `json:"consecutive_losses"`
	BuiltAt           time.Time             `json:"built_at"`
}

// SnapshotParams are the raw session counters handed in by the caller. Zero
// values fall back to documented defaults in BuildPermissionSnapshot.
type SnapshotParams struct {
	Enabled           bool
	Regime            regime.GovernorRegime
	DataStatus        DataStatus
	DataAgeSeconds    *float64
	EventSeverity     EventSeverity
	RealizedDailyR    float64
	OpenRiskR         float64
	ConsecutiveLosses int
	Now               time.Time
}

// CandidateIntent is one proposed trade. Immutable input to Evaluate.
// Validation tags reject malformed intents before any risk logic runs.
type CandidateIntent struct {
	Symbol     string      `json:"symbol" validate:"required,min=1,max=20"`
	AssetClass string      `json:"asset_class" validate:"required,oneof=equity crypto futures fx"`
	Strategy   StrategyTag `json:"strategy" validate:"required"`
	Direction  Direction   `json:"direction" validate:"required,oneof=LONG SHORT"`
	Confidence float64     `json:"confidence" validate:"gte=0,lte=100"`
	Entry      float64     `json:"entry" validate:"gt=0"`
	Stop       float64     `json:"stop" validate:"gt=0"`
	ATR        float64     `json:"atr" validate:"gt=0"`
}

// Reason codes attached to decisions. Stable identifiers for callers and
// audit rows; never user-facing copy.
const (
	ReasonDataDown             = "DATA_DOWN"
	ReasonDataStale            = "DATA_STALE"
	ReasonEventHigh            = "EVENT_HIGH_BLOCK"
	ReasonEventMediumShrink    = "EVENT_MEDIUM_SHRINK"
	ReasonDailyLossCap         = "DAILY_LOSS_CAP"
	ReasonOpenRiskCeiling      = "OPEN_RISK_CEILING"
	ReasonLossStreakShrink     = "LOSS_STREAK_SHRINK"
	ReasonStrategyRegime       = "STRATEGY_REGIME_MISMATCH"
	ReasonGovernorDisabled     = "GOVERNOR_DISABLED_HALF_BUDGET"
	ReasonBelowArmedConfidence = "BELOW_ARMED_CONFIDENCE"
)

// Decision is the plain evaluation output. ALLOW_SMALL is signaled by
// Allowed=true with SizeMultiplier < 0.7; BLOCK is Allowed=false.
type Decision struct {
	Allowed        bool     `json:"allowed"`
	SizeMultiplier float64  `json:"size_multiplier"` // 0..1
	ReasonCodes    []string `json:"reason_codes"`
}

// AllowSmall reports whether the decision is an allow at reduced size.
func (d Decision) AllowSmall() bool {
	return d.Allowed && d.SizeMultiplier < 0.7
}
