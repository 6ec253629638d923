package evolve

import (
	"fmt"
	"math"
)

// Category names one scored dimension of a candidate trade. Outcome samples
// are labeled with the category the original prediction leaned on.
type Category string

const (
	RegimeFit        Category = "regimeFit"
	CapitalFlow      Category = "capitalFlow"
	StructureQuality Category = "structureQuality"
	OptionsAlignment Category = "optionsAlignment"
	Timing           Category = "timing"
	DataHealth       Category = "dataHealth"
)

// AllCategories in canonical order.
var AllCategories = []Category{
	RegimeFit, CapitalFlow, StructureQuality, OptionsAlignment, Timing, DataHealth,
}

// WeightVector holds the six named scoring weights. A valid vector is
// non-negative and sums to 1.0 within floating tolerance.
type WeightVector struct {
	RegimeFit        float64 `json:"regimeFit" yaml:"regime_fit"`
	CapitalFlow      float64 `json:"capitalFlow" yaml:"capital_flow"`
	StructureQuality float64 `json:"structureQuality" yaml:"structure_quality"`
	OptionsAlignment float64 `json:"optionsAlignment" yaml:"options_alignment"`
	Timing           float64 `json:"timing" yaml:"timing"`
	DataHealth       float64 `json:"dataHealth" yaml:"data_health"`
}

// DefaultWeights is the baseline vector used before any evolution cycle has
// produced an adjustment.
func DefaultWeights() WeightVector {
	return WeightVector{
		RegimeFit:        0.25,
		CapitalFlow:      0.20,
		StructureQuality: 0.20,
		OptionsAlignment: 0.10,
		Timing:           0.15,
		DataHealth:       0.10,
	}
}

// Get returns the weight for one category.
func (w WeightVector) Get(c Category) float64 {
	switch c {
	case RegimeFit:
		return w.RegimeFit
	case CapitalFlow:
		return w.CapitalFlow
	case StructureQuality:
		return w.StructureQuality
	case OptionsAlignment:
		return w.OptionsAlignment
	case Timing:
		return w.Timing
	case DataHealth:
		return w.DataHealth
	}
	return 0
}

func (w *WeightVector) set(c Category, v float64) {
	switch c {
	case RegimeFit:
		w.RegimeFit = v
	case CapitalFlow:
		w.CapitalFlow = v
	case StructureQuality:
		w.StructureQuality = v
	case OptionsAlignment:
		w.OptionsAlignment = v
	case Timing:
		w.Timing = v
	case DataHealth:
		w.DataHealth = v
	}
}

// Sum returns the total of all six weights.
func (w WeightVector) Sum() float64 {
	s := 0.0
	for _, c := range AllCategories {
		s += w.Get(c)
	}
	return s
}

// Validate checks non-negativity and the sum-to-1 constraint.
func (w WeightVector) Validate() error {
	for _, c := range AllCategories {
		if w.Get(c) < 0 {
			return fmt.Errorf("weight %s is negative: %.6f", c, w.Get(c))
		}
	}
	if s := w.Sum(); math.Abs(s-1.0) > 1e-6 {
		return fmt.Errorf("weights sum to %.6f, must equal 1.000000 (±1e-6)", s)
	}
	return nil
}

// normalize rescales all weights so they sum to exactly 1.0.
func (w WeightVector) normalize() WeightVector {
	s := w.Sum()
	if s <= 0 {
		return DefaultWeights()
	}
	out := w
	for _, c := range AllCategories {
		out.set(c, w.Get(c)/s)
	}
	return out
}

// FactorScores carries per-category 0-100 scores for one candidate.
type FactorScores map[Category]float64

// Composite computes the weighted composite score of per-category factors.
func (w WeightVector) Composite(f FactorScores) float64 {
	s := 0.0
	for _, c := range AllCategories {
		s += w.Get(c) * f[c]
	}
	return s
}
