// internal/matching/similarity.go
// Pairwise similarity between two events, used for "similar events".

package matching

import (
	"math"
	"time"
)

// SimilarityWeights are the nominal factor weights; they sum to 100.
type SimilarityWeights struct {
	Interests float64
	Location  float64
	Time      float64
}

// DefaultSimilarityWeights sum to 100.
var DefaultSimilarityWeights = SimilarityWeights{
	Interests: 50,
	Location:  30,
	Time:      20,
}

// SimilarityConfig tunes the decay of the proximity factors.
type SimilarityConfig struct {
	Weights SimilarityWeights
	// CutoffKm is the distance at which location credit reaches zero.
	CutoffKm float64
	// CutoffWindow is the start-time gap at which time credit reaches zero.
	CutoffWindow time.Duration
}

// DefaultSimilarityConfig uses a 25 km radius and a 14 day window.
func DefaultSimilarityConfig() SimilarityConfig {
	return SimilarityConfig{
		Weights:      DefaultSimilarityWeights,
		CutoffKm:     25,
		CutoffWindow: 14 * 24 * time.Hour,
	}
}

// SimilarityScorer scores two events. It holds no mutable state.
type SimilarityScorer struct {
	cfg SimilarityConfig
}

// NewSimilarityScorer returns a scorer; non-positive cutoffs fall back to
// the defaults.
func NewSimilarityScorer(cfg SimilarityConfig) *SimilarityScorer {
	def := DefaultSimilarityConfig()
	if cfg.CutoffKm <= 0 {
		cfg.CutoffKm = def.CutoffKm
	}
	if cfg.CutoffWindow <= 0 {
		cfg.CutoffWindow = def.CutoffWindow
	}
	if cfg.Weights == (SimilarityWeights{}) {
		cfg.Weights = def.Weights
	}
	return &SimilarityScorer{cfg: cfg}
}

// Score rates candidate against subject.
func (s *SimilarityScorer) Score(subject, candidate EventFeatures) Result {
	w := s.cfg.Weights

	parts := []Contribution{
		interestContribution(subject.Interests, candidate.Interests, w.Interests),
		s.locationContribution(subject.Location, candidate.Location),
		s.timeContribution(subject.StartsAt, candidate.StartsAt),
	}
	renormalize(parts, w.Interests+w.Location+w.Time)

	total := 0.0
	for _, p := range parts {
		total += p.Points
	}
	return Result{Score: clampScore(total), Contributions: parts}
}

func (s *SimilarityScorer) locationContribution(a, b OptionalPoint) Contribution {
	c := Contribution{Factor: FactorLocation, Weight: s.cfg.Weights.Location}
	if !a.Valid || !b.Valid {
		c.Omitted = true
		return c
	}
	km := HaversineKm(a.Point, b.Point)
	c.Measure = km
	c.Ratio = clampRatio(1 - km/s.cfg.CutoffKm)
	return c
}

func (s *SimilarityScorer) timeContribution(a, b time.Time) Contribution {
	gap := a.Sub(b)
	if gap < 0 {
		gap = -gap
	}
	return Contribution{
		Factor:  FactorTime,
		Weight:  s.cfg.Weights.Time,
		Measure: gap.Hours() / 24,
		Ratio:   clampRatio(1 - float64(gap)/float64(s.cfg.CutoffWindow)),
	}
}

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two points.
func HaversineKm(a, b Point) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
