package flowstate

// State is the institutional-flow state of one symbol.
type State string

const (
	Accumulation State = "ACCUMULATION"
	Positioning  State = "POSITIONING"
	Launch       State = "LAUNCH"
	Exhaustion   State = "EXHAUSTION"
)

// AllStates in canonical order. Order matters only for stable iteration.
var AllStates = []State{Accumulation, Positioning, Launch, Exhaustion}

// Bias is the directional lean attached to a flow state.
type Bias string

const (
	BiasBullish Bias = "bullish"
	BiasBearish Bias = "bearish"
	BiasNeutral Bias = "neutral"
)

// RiskMode is the coarse risk posture derived from state and confidence.
type RiskMode string

const (
	RiskLow    RiskMode = "low"
	RiskMedium RiskMode = "medium"
	RiskHigh   RiskMode = "high"
)

// MarketType selects the per-asset-class weighting profile.
type MarketType string

const (
	MarketEquity MarketType = "equity"
	MarketCrypto MarketType = "crypto"
)

// Input carries one symbol's normalized flow features. Probability fields
// are 0-1; delta fields are signed; DataFreshness is 0-100.
type Input struct {
	Symbol     string     `json:"symbol"`
	MarketType MarketType `json:"market_type"`

	TrendProb          float64 `json:"trend_prob"`
	PinProb            float64 `json:"pin_prob"`
	ExpansionProb      float64 `json:"expansion_prob"`
	TrendProbDelta     float64 `json:"trend_prob_delta"`
	ExpansionProbDelta float64 `json:"expansion_prob_delta"`

	Compression       float64 `json:"compression"`
	TrendStructure    float64 `json:"trend_structure"`
	VWAPFlatness      float64 `json:"vwap_flatness"`
	VWAPSlopeStrength float64 `json:"vwap_slope_strength"`
	BreakoutPressure  float64 `json:"breakout_pressure"`
	ATRExpansionRate  float64 `json:"atr_expansion_rate"`

	FlowVelocity       float64 `json:"flow_velocity"`        // signed, -1..1
	FlowNeutrality     float64 `json:"flow_neutrality"`      // 0-1
	OrderFlowImbalance float64 `json:"order_flow_imbalance"` // signed, -1..1

	LiquidityTargetHit bool `json:"liquidity_target_hit"`
	MomentumDivergence bool `json:"momentum_divergence"`

	DataFreshness float64 `json:"data_freshness"` // 0-100
}

// Result is the classified flow state. Probabilities holds the full vector
// over all four states, rounded to sum to 100.
type Result struct {
	Symbol        string        `json:"symbol"`
	State         State         `json:"state"`
	Confidence    float64       `json:"confidence"` // 0-100
	Bias          Bias          `json:"bias"`
	RiskMode      RiskMode      `json:"risk_mode"`
	Probabilities map[State]int `json:"probabilities"`
	Notes         []string      `json:"notes,omitempty"`
}

// cachedState is the hysteresis entry persisted to the injected store.
type cachedState struct {
	State      State   `json:"state"`
	Confidence float64 `json:"confidence"`
}
