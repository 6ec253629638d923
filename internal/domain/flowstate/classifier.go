package flowstate

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantfort/riskgov/internal/store"
)

// Hysteresis thresholds: a new argmax only displaces a cached state when it
// wins by at least marginPoints or reaches confidentPoints outright.
const (
	marginPoints    = 6.0
	confidentPoints = 55.0
	holdDecay       = 2.0

	freshnessDiscountBelow = 60.0
	freshnessHighRiskBelow = 55.0

	// softmaxScale spreads the 0-1 weighted scores before exponentiation so
	// the probability vector is not near-uniform.
	softmaxScale = 4.0
)

// Weights is one state's scoring profile. Each component multiplies a
// normalized 0-1 sub-signal.
type Weights struct {
	Accumulation struct {
		PinProb        float64 `yaml:"pin_prob"`
		Compression    float64 `yaml:"compression"`
		VWAPFlatness   float64 `yaml:"vwap_flatness"`
		FlowNeutrality float64 `yaml:"flow_neutrality"`
	} `yaml:"accumulation"`
	Positioning struct {
		ExpansionDelta float64 `yaml:"expansion_delta"`
		UpFlowVelocity float64 `yaml:"up_flow_velocity"`
		Compression    float64 `yaml:"compression"`
		TrendStructure float64 `yaml:"trend_structure"`
	} `yaml:"positioning"`
	Launch struct {
		ATRExpansion     float64 `yaml:"atr_expansion"`
		TrendProb        float64 `yaml:"trend_prob"`
		VWAPSlope        float64 `yaml:"vwap_slope"`
		BreakoutPressure float64 `yaml:"breakout_pressure"`
	} `yaml:"launch"`
	Exhaustion struct {
		LiquidityTarget  float64 `yaml:"liquidity_target"`
		NegTrendDelta    float64 `yaml:"neg_trend_delta"`
		DownFlowVelocity float64 `yaml:"down_flow_velocity"`
		MomentumDiverge  float64 `yaml:"momentum_diverge"`
	} `yaml:"exhaustion"`
}

// DefaultWeights returns the per-asset-class scoring profile. Pin probability
// carries far more accumulation signal for equities than for crypto, where
// option-pinning mechanics are weaker.
func DefaultWeights(market MarketType) Weights {
	var w Weights
	if market == MarketCrypto {
		w.Accumulation.PinProb = 0.18
	} else {
		w.Accumulation.PinProb = 0.35
	}
	w.Accumulation.Compression = 0.25
	w.Accumulation.VWAPFlatness = 0.20
	w.Accumulation.FlowNeutrality = 0.20

	w.Positioning.ExpansionDelta = 0.30
	w.Positioning.UpFlowVelocity = 0.25
	w.Positioning.Compression = 0.20
	w.Positioning.TrendStructure = 0.25

	w.Launch.ATRExpansion = 0.30
	w.Launch.TrendProb = 0.30
	w.Launch.VWAPSlope = 0.20
	w.Launch.BreakoutPressure = 0.20

	w.Exhaustion.LiquidityTarget = 0.30
	w.Exhaustion.NegTrendDelta = 0.30
	w.Exhaustion.DownFlowVelocity = 0.20
	w.Exhaustion.MomentumDiverge = 0.20
	return w
}

// Classifier scores symbols into flow states. The previous-state cache lives
// behind the injected store, partitioned per workspace through the key
// prefix, so concurrent tenants never bleed state into each other.
type Classifier struct {
	store     store.Store
	keyPrefix string
	cacheTTL  time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewClassifier builds a classifier over the given store. keyPrefix should
// identify the workspace (e.g. "ws-1234").
func NewClassifier(s store.Store, keyPrefix string) *Classifier {
	return &Classifier{
		store:     s,
		keyPrefix: keyPrefix,
		cacheTTL:  6 * time.Hour,
		locks:     make(map[string]*sync.Mutex),
	}
}

// WithTTL overrides the previous-state cache lifetime. Returns c for
// chaining at construction.
func (c *Classifier) WithTTL(ttl time.Duration) *Classifier {
	if ttl > 0 {
		c.cacheTTL = ttl
	}
	return c
}

// keyLock serializes evaluations for the same symbol; different symbols never
// contend.
func (c *Classifier) keyLock(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[key]
	if !ok {
		l = &sync.Mutex{}
		c.locks[key] = l
	}
	return l
}

// Compute classifies one symbol. Deterministic for identical input and
// identical prior cache state.
func (c *Classifier) Compute(in Input) Result {
	key := fmt.Sprintf("%s:flow:%s:%s", c.keyPrefix, in.MarketType, in.Symbol)
	l := c.keyLock(key)
	l.Lock()
	defer l.Unlock()

	scores := scoreStates(in, DefaultWeights(in.MarketType))
	probs := softmax(scores)
	vector := roundedVector(probs)

	candidate, second := topTwo(probs)
	conf := probs[candidate] * 100.0
	margin := (probs[candidate] - probs[second]) * 100.0

	res := Result{
		Symbol:        in.Symbol,
		State:         candidate,
		Confidence:    conf,
		Probabilities: vector,
	}

	// Hysteresis: a marginal, low-confidence flip keeps the cached state and
	// decays its confidence instead of oscillating on single-sample noise.
	if prev, ok := c.loadCached(key); ok && prev.State != candidate &&
		margin < marginPoints && conf < confidentPoints {
		held := math.Max(conf, prev.Confidence-holdDecay)
		log.Debug().
			Str("symbol", in.Symbol).
			Str("held", string(prev.State)).
			Str("rejected", string(candidate)).
			Float64("margin", margin).
			Msg("Flow state hysteresis hold")
		res.State = prev.State
		res.Confidence = held
		res.Notes = append(res.Notes, fmt.Sprintf(
			"hysteresis: held %s over %s (margin %.1f < %.1f)",
			prev.State, candidate, margin, marginPoints))
	}

	if in.DataFreshness < freshnessDiscountBelow {
		res.Confidence *= 0.9
		res.Notes = append(res.Notes, fmt.Sprintf(
			"confidence discounted for data freshness %.0f", in.DataFreshness))
	}

	res.Bias = deriveBias(in)
	res.RiskMode = deriveRiskMode(res.State, res.Confidence, in.DataFreshness)

	c.storeCached(key, cachedState{State: res.State, Confidence: res.Confidence})
	return res
}

func (c *Classifier) loadCached(key string) (cachedState, bool) {
	b, ok := c.store.Get(key)
	if !ok {
		return cachedState{}, false
	}
	var cs cachedState
	if err := json.Unmarshal(b, &cs); err != nil {
		log.Warn().Str("key", key).Err(err).Msg("Corrupt flow-state cache entry dropped")
		return cachedState{}, false
	}
	return cs, true
}

func (c *Classifier) storeCached(key string, cs cachedState) {
	b, err := json.Marshal(cs)
	if err != nil {
		return
	}
	c.store.Set(key, b, c.cacheTTL)
}

func scoreStates(in Input, w Weights) map[State]float64 {
	up := clamp01(in.FlowVelocity)
	down := clamp01(-in.FlowVelocity)

	scores := make(map[State]float64, 4)
	scores[Accumulation] = w.Accumulation.PinProb*clamp01(in.PinProb) +
		w.Accumulation.Compression*clamp01(in.Compression) +
		w.Accumulation.VWAPFlatness*clamp01(in.VWAPFlatness) +
		w.Accumulation.FlowNeutrality*clamp01(in.FlowNeutrality)

	scores[Positioning] = w.Positioning.ExpansionDelta*clamp01(in.ExpansionProbDelta) +
		w.Positioning.UpFlowVelocity*up +
		w.Positioning.Compression*clamp01(in.Compression) +
		w.Positioning.TrendStructure*clamp01(in.TrendStructure)

	scores[Launch] = w.Launch.ATRExpansion*clamp01(in.ATRExpansionRate) +
		w.Launch.TrendProb*clamp01(in.TrendProb) +
		w.Launch.VWAPSlope*clamp01(in.VWAPSlopeStrength) +
		w.Launch.BreakoutPressure*clamp01(in.BreakoutPressure)

	exh := w.Exhaustion.NegTrendDelta*clamp01(-in.TrendProbDelta) +
		w.Exhaustion.DownFlowVelocity*down
	if in.LiquidityTargetHit {
		exh += w.Exhaustion.LiquidityTarget
	}
	if in.MomentumDivergence {
		exh += w.Exhaustion.MomentumDiverge
	}
	scores[Exhaustion] = exh

	return scores
}

func softmax(scores map[State]float64) map[State]float64 {
	max := math.Inf(-1)
	for _, s := range scores {
		if s > max {
			max = s
		}
	}
	sum := 0.0
	out := make(map[State]float64, len(scores))
	for st, s := range scores {
		e := math.Exp((s - max) * softmaxScale)
		out[st] = e
		sum += e
	}
	for st := range out {
		out[st] /= sum
	}
	return out
}

// roundedVector converts softmax probabilities to integer percentages that
// sum to exactly 100, assigning the rounding residual to the argmax.
func roundedVector(probs map[State]float64) map[State]int {
	out := make(map[State]int, len(probs))
	total := 0
	for _, st := range AllStates {
		out[st] = int(math.Round(probs[st] * 100.0))
		total += out[st]
	}
	top, _ := topTwo(probs)
	out[top] += 100 - total
	return out
}

// topTwo returns the argmax state and the runner-up, with deterministic
// tie-breaking on canonical state order.
func topTwo(probs map[State]float64) (first, second State) {
	ordered := append([]State(nil), AllStates...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return probs[ordered[i]] > probs[ordered[j]]
	})
	return ordered[0], ordered[1]
}

func deriveBias(in Input) Bias {
	pressure := 0.5*in.OrderFlowImbalance + 0.3*in.FlowVelocity + 0.2*in.TrendProbDelta
	switch {
	case pressure > 0.05:
		return BiasBullish
	case pressure < -0.05:
		return BiasBearish
	default:
		return BiasNeutral
	}
}

func deriveRiskMode(st State, confidence, freshness float64) RiskMode {
	switch {
	case freshness < freshnessHighRiskBelow:
		return RiskHigh
	case st == Exhaustion:
		return RiskHigh
	case st == Launch && confidence >= 70.0:
		return RiskMedium
	case st == Accumulation && confidence >= 65.0:
		return RiskLow
	default:
		return RiskMedium
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
