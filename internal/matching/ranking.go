// internal/matching/ranking.go
// Scores a candidate pool against a subject and returns the ranked top-N.

package matching

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/imadgeboyega/kiekky-events/internal/common/apperr"
)

// ScoredCandidate is one ranked entry. It is built per request and never
// persisted.
type ScoredCandidate struct {
	ID            uuid.UUID      `json:"id"`
	Score         float64        `json:"score"`
	Reasons       []string       `json:"reasons"`
	Contributions []Contribution `json:"contributions,omitempty"`
}

// BuddyQuery ranks the attendees of one event for a subject attendee.
type BuddyQuery struct {
	Subject    RawPerson
	Candidates []RawPerson
	// Exclude holds people already in an active match with the subject
	// for the same event.
	Exclude map[uuid.UUID]struct{}
	Limit   int
}

// EventQuery ranks candidate events against a subject event.
type EventQuery struct {
	Subject    RawEvent
	Candidates []RawEvent
	Limit      int
}

// Ranker runs extraction, scoring and explanation for a whole pool. It
// holds no per-request state and is safe for concurrent use.
type Ranker struct {
	extractor     *Extractor
	compatibility *CompatibilityScorer
	similarity    *SimilarityScorer
	observe       func(kind string, score float64)
}

// RankerOption configures a Ranker.
type RankerOption func(*Ranker)

// WithClock sets the clock used to derive ages.
func WithClock(now func() time.Time) RankerOption {
	return func(r *Ranker) { r.extractor = NewExtractor(now) }
}

// WithSimilarityConfig overrides the similarity cutoffs.
func WithSimilarityConfig(cfg SimilarityConfig) RankerOption {
	return func(r *Ranker) { r.similarity = NewSimilarityScorer(cfg) }
}

// WithScoreObserver registers a callback invoked for every computed score,
// with kind "compatibility" or "similarity".
func WithScoreObserver(fn func(kind string, score float64)) RankerOption {
	return func(r *Ranker) { r.observe = fn }
}

// NewRanker returns a Ranker with default scorers.
func NewRanker(opts ...RankerOption) *Ranker {
	r := &Ranker{
		extractor:     NewExtractor(nil),
		compatibility: NewCompatibilityScorer(),
		similarity:    NewSimilarityScorer(DefaultSimilarityConfig()),
		observe:       func(string, float64) {},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Compatibility scores a single pair, for previews and request snapshots.
func (r *Ranker) Compatibility(subject, candidate RawPerson) (Result, error) {
	s, err := r.extractor.Person(subject)
	if err != nil {
		return Result{}, apperr.Validation(fmt.Sprintf("subject: %v", err))
	}
	c, err := r.extractor.Person(candidate)
	if err != nil {
		return Result{}, apperr.Validation(fmt.Sprintf("candidate: %v", err))
	}
	res := r.compatibility.Score(s, c)
	r.observe("compatibility", res.Score)
	return res, nil
}

// RankBuddies excludes the subject, excluded ids and gender-gated
// candidates, then sorts and truncates.
func (r *Ranker) RankBuddies(q BuddyQuery) ([]ScoredCandidate, error) {
	subject, err := r.extractor.Person(q.Subject)
	if err != nil {
		return nil, apperr.Validation(fmt.Sprintf("subject: %v", err))
	}

	pool := r.extractor.People(q.Candidates)
	out := make([]ScoredCandidate, 0, len(pool))
	for id, candidate := range pool {
		if id == subject.ID {
			continue
		}
		if _, skip := q.Exclude[id]; skip {
			continue
		}
		res := r.compatibility.Score(subject, candidate)
		r.observe("compatibility", res.Score)
		if res.Disqualified {
			continue
		}
		out = append(out, newScoredCandidate(id, res))
	}

	return sortAndTruncate(out, q.Limit), nil
}

// RankEvents excludes the subject and zero-score candidates, then sorts
// and truncates.
func (r *Ranker) RankEvents(q EventQuery) ([]ScoredCandidate, error) {
	subject, err := r.extractor.Event(q.Subject)
	if err != nil {
		return nil, apperr.Validation(fmt.Sprintf("subject event: %v", err))
	}

	pool := r.extractor.Events(q.Candidates)
	out := make([]ScoredCandidate, 0, len(pool))
	for id, candidate := range pool {
		if id == subject.ID {
			continue
		}
		res := r.similarity.Score(subject, candidate)
		r.observe("similarity", res.Score)
		if res.Score <= 0 {
			continue
		}
		out = append(out, newScoredCandidate(id, res))
	}

	return sortAndTruncate(out, q.Limit), nil
}

func newScoredCandidate(id uuid.UUID, res Result) ScoredCandidate {
	return ScoredCandidate{
		ID:            id,
		Score:         res.Score,
		Reasons:       Reasons(res),
		Contributions: res.Contributions,
	}
}

// sortAndTruncate orders by score descending, then id ascending. A
// non-positive limit keeps everything.
func sortAndTruncate(list []ScoredCandidate, limit int) []ScoredCandidate {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Score != list[j].Score {
			return list[i].Score > list[j].Score
		}
		return list[i].ID.String() < list[j].ID.String()
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list
}
