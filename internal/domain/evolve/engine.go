package evolve

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// MinSamples is the floor below which an evolution cycle refuses to run.
const MinSamples = 30

// ErrInsufficientData is returned when fewer than MinSamples outcome samples
// fall inside the cadence window. Callers must not treat this as an empty
// adjustment.
var ErrInsufficientData = errors.New("insufficient outcome samples")

// Cadence selects the lookback window for an evolution cycle.
type Cadence string

const (
	CadenceDaily   Cadence = "daily"
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
)

// Window returns the lookback duration for the cadence.
func (c Cadence) Window() (time.Duration, error) {
	switch c {
	case CadenceDaily:
		return 24 * time.Hour, nil
	case CadenceWeekly:
		return 7 * 24 * time.Hour, nil
	case CadenceMonthly:
		return 30 * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("unknown cadence %q", c)
}

// OutcomeSample is one labeled historical outcome: which category the
// original prediction leaned on, the weights in force, and the realized
// result in R units.
type OutcomeSample struct {
	Category    Category     `json:"category" db:"category"`
	WeightsUsed WeightVector `json:"weights_used" db:"weights_used"`
	ResultR     float64      `json:"result_r" db:"result_r"`
	ClosedAt    time.Time    `json:"closed_at" db:"closed_at"`
}

// Favorable reports whether the sample counts as a win for adaptation.
func (s OutcomeSample) Favorable() bool { return s.ResultR > 0 }

// Mode of a computed adjustment.
const (
	ModeApplied     = "applied"
	ModePassiveOnly = "passive_learning_only"
)

// Adjustment is an immutable, timestamped evolution record. It is never
// edited, only superseded by a later record for the same workspace and
// symbol group.
type Adjustment struct {
	Workspace       string       `json:"workspace" db:"workspace"`
	SymbolGroup     string       `json:"symbol_group" db:"symbol_group"`
	Cadence         Cadence      `json:"cadence" db:"cadence"`
	Weights         WeightVector `json:"weights" db:"weights"`
	ArmedConfidence float64      `json:"armed_confidence" db:"armed_confidence"`
	WindowFrom      time.Time    `json:"window_from" db:"window_from"`
	WindowTo        time.Time    `json:"window_to" db:"window_to"`
	SampleCount     int          `json:"sample_count" db:"sample_count"`
	Mode            string       `json:"mode" db:"mode"`
	ComputedAt      time.Time    `json:"computed_at" db:"computed_at"`
}

// Params is one cycle's full input. All external data is pushed in; the
// engine performs no I/O of its own.
type Params struct {
	Workspace     string
	SymbolGroup   string
	Cadence       Cadence
	Baseline      WeightVector
	BaselineArmed float64
	Samples       []OutcomeSample
	Now           time.Time // zero means time.Now()
}

// Clock reports whether the cash session is live. Injected so tests control
// time.
type Clock interface {
	IsLive(t time.Time) bool
}

// Engine recomputes scoring weights from labeled outcomes. Runs as an
// explicitly triggered batch job; persistence of the returned adjustment is
// the caller's responsibility.
type Engine struct {
	clock        Clock
	learningRate float64
	minWeight    float64
}

// NewEngine builds an engine with the default learning rate.
func NewEngine(clock Clock) *Engine {
	return &Engine{clock: clock, learningRate: 0.5, minWeight: 0.02}
}

// WithRates overrides the learning rate and weight floor. Non-positive
// values keep the defaults.
func (e *Engine) WithRates(learningRate, minWeight float64) *Engine {
	if learningRate > 0 {
		e.learningRate = learningRate
	}
	if minWeight > 0 {
		e.minWeight = minWeight
	}
	return e
}

// RunCycle computes a new weight vector and armed confidence threshold from
// the sample window. Deterministic for a given sample set. If the market is
// live the adjustment is still computed and returned, flagged
// passive_learning_only so operators can see what would change without it
// being applied mid-session.
func (e *Engine) RunCycle(ctx context.Context, p Params) (Adjustment, error) {
	window, err := p.Cadence.Window()
	if err != nil {
		return Adjustment{}, err
	}
	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}
	from := now.Add(-window)

	baseline := p.Baseline
	if baseline.Sum() == 0 {
		baseline = DefaultWeights()
	}
	if err := baseline.Validate(); err != nil {
		return Adjustment{}, fmt.Errorf("invalid baseline weights: %w", err)
	}

	// Sample scan honors cancellation: windows can be large.
	var inWindow []OutcomeSample
	for i, s := range p.Samples {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return Adjustment{}, err
			}
		}
		if s.ClosedAt.After(from) && !s.ClosedAt.After(now) {
			inWindow = append(inWindow, s)
		}
	}
	if len(inWindow) < MinSamples {
		return Adjustment{}, fmt.Errorf("%w: have %d, need %d",
			ErrInsufficientData, len(inWindow), MinSamples)
	}

	weights, overallWinRate := e.adapt(baseline, inWindow)
	if err := weights.Validate(); err != nil {
		return Adjustment{}, fmt.Errorf("adapted weights invalid: %w", err)
	}

	baseArmed := p.BaselineArmed
	if baseArmed == 0 {
		baseArmed = 60.0
	}
	armed := clampF(baseArmed-20.0*(overallWinRate-0.5), 50.0, 90.0)

	mode := ModeApplied
	if e.clock != nil && e.clock.IsLive(now) {
		mode = ModePassiveOnly
	}

	adj := Adjustment{
		Workspace:       p.Workspace,
		SymbolGroup:     p.SymbolGroup,
		Cadence:         p.Cadence,
		Weights:         weights,
		ArmedConfidence: armed,
		WindowFrom:      from,
		WindowTo:        now,
		SampleCount:     len(inWindow),
		Mode:            mode,
		ComputedAt:      now,
	}

	log.Info().
		Str("workspace", p.Workspace).
		Str("cadence", string(p.Cadence)).
		Int("samples", len(inWindow)).
		Float64("overall_win_rate", overallWinRate).
		Float64("armed_confidence", armed).
		Str("mode", mode).
		Msg("Evolution cycle computed")

	return adj, nil
}

// adapt nudges each category's weight multiplicatively toward its win-rate
// edge over the overall win rate, clamps at the weight floor and
// renormalizes. Categories with no samples in the window keep their baseline
// weight. Gradient-free on purpose: the contract is non-negative weights
// summing to 1.0, deterministic per sample set.
func (e *Engine) adapt(baseline WeightVector, samples []OutcomeSample) (WeightVector, float64) {
	wins := make(map[Category]int, len(AllCategories))
	totals := make(map[Category]int, len(AllCategories))
	overallWins := 0
	for _, s := range samples {
		totals[s.Category]++
		if s.Favorable() {
			wins[s.Category]++
			overallWins++
		}
	}
	overall := float64(overallWins) / float64(len(samples))

	out := baseline
	for _, c := range AllCategories {
		if totals[c] == 0 {
			continue
		}
		winRate := float64(wins[c]) / float64(totals[c])
		adjusted := baseline.Get(c) * (1.0 + e.learningRate*(winRate-overall))
		if adjusted < e.minWeight {
			adjusted = e.minWeight
		}
		out.set(c, adjusted)
	}
	return out.normalize(), overall
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
