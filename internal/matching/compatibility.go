// internal/matching/compatibility.go
// Pairwise buddy compatibility between two attendees of the same event.

package matching

import "math"

// CompatibilityWeights are the nominal factor weights. Interests, Age and
// Symmetry form the renormalized pool; Gender is a flat bonus behind a gate.
type CompatibilityWeights struct {
	Interests float64
	Age       float64
	Gender    float64
	Symmetry  float64
}

// DefaultCompatibilityWeights sum to 100.
var DefaultCompatibilityWeights = CompatibilityWeights{
	Interests: 50,
	Age:       20,
	Gender:    15,
	Symmetry:  15,
}

// ageCreditSpanYears is the age gap at which age credit reaches zero.
const ageCreditSpanYears = 10.0

// CompatibilityScorer scores two people. It holds no mutable state.
type CompatibilityScorer struct {
	weights CompatibilityWeights
}

// NewCompatibilityScorer returns a scorer with the default weights.
func NewCompatibilityScorer() *CompatibilityScorer {
	return NewCompatibilityScorerWithWeights(DefaultCompatibilityWeights)
}

// NewCompatibilityScorerWithWeights returns a scorer with custom weights.
func NewCompatibilityScorerWithWeights(w CompatibilityWeights) *CompatibilityScorer {
	return &CompatibilityScorer{weights: w}
}

// Score rates candidate against subject. Attendance of the shared event is
// the caller's precondition and is not a factor.
func (s *CompatibilityScorer) Score(subject, candidate PersonFeatures) Result {
	w := s.weights

	parts := []Contribution{
		interestContribution(subject.Interests, candidate.Interests, w.Interests),
		ageContribution(subject.Age, candidate.Age, w.Age),
		{
			Factor: FactorSymmetry,
			Weight: w.Symmetry,
			Ratio:  symmetryRatio(subject, candidate),
		},
	}
	renormalize(parts, w.Interests+w.Age+w.Symmetry)

	gate := acceptsGender(subject.Prefs, candidate.Gender) && acceptsGender(candidate.Prefs, subject.Gender)
	gender := Contribution{Factor: FactorGender, Weight: w.Gender}
	if gate {
		gender.Ratio = 1
		gender.Points = w.Gender
	}
	parts = append(parts, gender)

	if !gate {
		return Result{Score: 0, Contributions: parts, Disqualified: true}
	}

	total := 0.0
	for _, p := range parts {
		total += p.Points
	}
	return Result{Score: clampScore(total), Contributions: parts}
}

func interestContribution(a, b InterestSet, weight float64) Contribution {
	c := Contribution{Factor: FactorInterests, Weight: weight}
	if a.Len() == 0 || b.Len() == 0 {
		c.Omitted = true
		return c
	}
	c.Ratio = clampRatio(a.Jaccard(b))
	c.Shared = a.Shared(b)
	return c
}

func ageContribution(a, b OptionalInt, weight float64) Contribution {
	c := Contribution{Factor: FactorAge, Weight: weight}
	if !a.Valid || !b.Valid {
		c.Omitted = true
		return c
	}
	gap := math.Abs(float64(a.Value - b.Value))
	c.Measure = gap
	c.Ratio = clampRatio(1 - gap/ageCreditSpanYears)
	return c
}

// acceptsGender is the hard filter. An unknown gender cannot be excluded.
func acceptsGender(prefs Preferences, g Gender) bool {
	if len(prefs.Genders) == 0 || g == GenderUnknown {
		return true
	}
	return prefs.Genders.Contains(g)
}

// satisfies reports whether other meets every preference prefs states.
// Unknown attributes do not satisfy a stated preference.
func satisfies(prefs Preferences, other PersonFeatures) bool {
	if prefs.AgeRange.Stated() {
		if !other.Age.Valid || !prefs.AgeRange.Contains(other.Age.Value) {
			return false
		}
	}
	if len(prefs.Genders) > 0 {
		if other.Gender == GenderUnknown || !prefs.Genders.Contains(other.Gender) {
			return false
		}
	}
	return true
}

// symmetryRatio: full when every stated preference on both sides is met
// (vacuously so when neither side states any), half when only one side
// states preferences and they are met, zero otherwise.
func symmetryRatio(subject, candidate PersonFeatures) float64 {
	subjectStated := subject.Prefs.Stated()
	candidateStated := candidate.Prefs.Stated()
	subjectMet := satisfies(subject.Prefs, candidate)
	candidateMet := satisfies(candidate.Prefs, subject)

	switch {
	case !subjectStated && !candidateStated:
		return 1
	case subjectStated && candidateStated:
		if subjectMet && candidateMet {
			return 1
		}
		return 0
	case subjectStated:
		if subjectMet {
			return 0.5
		}
		return 0
	default:
		if candidateMet {
			return 0.5
		}
		return 0
	}
}
