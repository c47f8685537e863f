// internal/matching/factors.go

package matching

import "math"

// MaxScore is the top of the score scale.
const MaxScore = 100.0

// Factor names a scoring factor.
type Factor string

const (
	FactorInterests Factor = "interests"
	FactorAge       Factor = "age"
	FactorGender    Factor = "gender"
	FactorSymmetry  Factor = "preference_symmetry"
	FactorLocation  Factor = "location"
	FactorTime      Factor = "time"
)

// priority orders factors for tie-breaks. Lower wins.
var priority = map[Factor]int{
	FactorInterests: 0,
	FactorAge:       1,
	FactorLocation:  1,
	FactorSymmetry:  2,
	FactorTime:      2,
	FactorGender:    3,
}

// Contribution is one factor's share of a score.
type Contribution struct {
	Factor Factor `json:"factor"`
	// Weight is the effective weight after renormalization.
	Weight float64 `json:"weight"`
	// Ratio is the factor's raw credit in [0,1].
	Ratio   float64 `json:"ratio"`
	Points  float64 `json:"points"`
	Omitted bool    `json:"omitted,omitempty"`

	// Measure is the factor's underlying quantity: years apart for age,
	// kilometres for location, days for time.
	Measure float64  `json:"measure,omitempty"`
	Shared  []string `json:"shared,omitempty"`
}

// Result is a pairwise score with its breakdown.
type Result struct {
	Score         float64        `json:"score"`
	Contributions []Contribution `json:"contributions"`
	// Disqualified is set when a gating factor forced the score to zero.
	Disqualified bool `json:"disqualified,omitempty"`
}

// Contribution returns the entry for f, if present.
func (r Result) Contribution(f Factor) (Contribution, bool) {
	for _, c := range r.Contributions {
		if c.Factor == f {
			return c, true
		}
	}
	return Contribution{}, false
}

// renormalize spreads pool across the non-omitted parts in proportion to
// their nominal weights and computes their points.
func renormalize(parts []Contribution, pool float64) {
	available := 0.0
	for _, p := range parts {
		if !p.Omitted {
			available += p.Weight
		}
	}

	for i := range parts {
		if parts[i].Omitted || available == 0 {
			parts[i].Weight = 0
			parts[i].Points = 0
			continue
		}
		parts[i].Weight = parts[i].Weight * pool / available
		parts[i].Points = parts[i].Ratio * parts[i].Weight
	}
}

func clampScore(score float64) float64 {
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	if score > MaxScore {
		return MaxScore
	}
	return roundScore(score)
}

func roundScore(v float64) float64 {
	return math.Round(v*100) / 100
}

func clampRatio(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
