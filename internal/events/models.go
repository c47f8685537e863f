// internal/events/models.go

package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/imadgeboyega/kiekky-events/internal/common/apperr"
	"github.com/imadgeboyega/kiekky-events/internal/matching"
)

var (
	ErrEventNotFound = apperr.NotFound("event not found")
	ErrNotAttending  = apperr.Validation("you are not attending this event")
)

// Event is the read-only slice of an event row used for scoring.
type Event struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	Title     string         `json:"title" db:"title"`
	Interests pq.StringArray `json:"interests" db:"interests"`
	Latitude  *float64       `json:"latitude,omitempty" db:"latitude"`
	Longitude *float64       `json:"longitude,omitempty" db:"longitude"`
	StartsAt  time.Time      `json:"starts_at" db:"starts_at"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// Raw converts the row into the scorer's input type.
func (e *Event) Raw() matching.RawEvent {
	return matching.RawEvent{
		ID:        e.ID,
		Interests: []string(e.Interests),
		Latitude:  e.Latitude,
		Longitude: e.Longitude,
		StartsAt:  e.StartsAt,
	}
}

// EventView is an event as seen by a caller. Attending is set only for
// signed-in viewers.
type EventView struct {
	*Event
	Attending *bool `json:"attending,omitempty"`
}

// HasStarted reports whether the event start lies before now.
func (e *Event) HasStarted(now time.Time) bool {
	return !e.StartsAt.After(now)
}

// SimilarEvent is one entry of a similar-events listing.
type SimilarEvent struct {
	matching.ScoredCandidate
	Title    string    `json:"title"`
	StartsAt time.Time `json:"starts_at"`
}

// CandidateFilter bounds the pool of events scored against a subject.
type CandidateFilter struct {
	Subject *Event
	// Window admits events starting within this distance of the subject.
	Window time.Duration
	// After drops events that start before this instant.
	After time.Time
	// RadiusKm admits events located within this distance of the subject.
	// Ignored when the subject has no coordinates.
	RadiusKm float64
	Limit    int
}

// Area returns the box for the proximity branch, or false when the subject
// cannot be located.
func (f CandidateFilter) Area() (BoundingBox, bool) {
	s := f.Subject
	if s.Latitude == nil || s.Longitude == nil || f.RadiusKm <= 0 {
		return BoundingBox{}, false
	}
	return NewBoundingBox(*s.Latitude, *s.Longitude, f.RadiusKm), true
}
