// internal/buddies/models.go

package buddies

import (
	"bytes"
	"time"

	"github.com/google/uuid"

	"github.com/imadgeboyega/kiekky-events/internal/matching"
	"github.com/imadgeboyega/kiekky-events/internal/profile"
)

// Status is the lifecycle state of a buddy match.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusDeclined  Status = "declined"
	StatusCancelled Status = "cancelled"
)

// AllStatuses in lifecycle order.
var AllStatuses = []Status{StatusPending, StatusAccepted, StatusDeclined, StatusCancelled}

// ActiveStatuses block a new request for the same pair and event.
var ActiveStatuses = []Status{StatusPending, StatusAccepted}

// Active reports whether s blocks a new request for the pair.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusAccepted
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// BuddyMatch is a persisted request between two attendees of one event.
// UserIDA is always the requester.
type BuddyMatch struct {
	ID                 uuid.UUID     `json:"id" db:"id"`
	EventID            uuid.UUID     `json:"event_id" db:"event_id"`
	UserIDA            uuid.UUID     `json:"user_id_a" db:"user_id_a"`
	UserIDB            uuid.UUID     `json:"user_id_b" db:"user_id_b"`
	CompatibilityScore float64       `json:"compatibility_score" db:"compatibility_score"`
	Status             Status        `json:"status" db:"status"`
	AcceptedByA        bool          `json:"accepted_by_a" db:"accepted_by_a"`
	AcceptedByB        bool          `json:"accepted_by_b" db:"accepted_by_b"`
	CancelledBy        uuid.NullUUID `json:"cancelled_by" db:"cancelled_by"`
	RespondedAt        *time.Time    `json:"responded_at,omitempty" db:"responded_at"`
	CreatedAt          time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at" db:"updated_at"`
}

// IsParticipant reports whether userID is either side of the match.
func (m *BuddyMatch) IsParticipant(userID uuid.UUID) bool {
	return userID == m.UserIDA || userID == m.UserIDB
}

// Requester is the user who created the match.
func (m *BuddyMatch) Requester() uuid.UUID { return m.UserIDA }

// Recipient is the user the request was sent to.
func (m *BuddyMatch) Recipient() uuid.UUID { return m.UserIDB }

// Partner returns the other participant.
func (m *BuddyMatch) Partner(userID uuid.UUID) uuid.UUID {
	if userID == m.UserIDA {
		return m.UserIDB
	}
	return m.UserIDA
}

// WasAccepted reports whether both sides accepted at some point. Cancelling
// an accepted match keeps both flags, so this holds for accepted and for
// cancelled-after-accept rows.
func (m *BuddyMatch) WasAccepted() bool {
	return m.AcceptedByA && m.AcceptedByB
}

// flagsConsistent mirrors the flag CHECK constraints on buddy_matches:
// accepted has both flags, pending exactly one, and only accepted or
// cancelled rows may carry both.
func (m *BuddyMatch) flagsConsistent() bool {
	switch m.Status {
	case StatusAccepted:
		return m.WasAccepted()
	case StatusPending:
		return m.AcceptedByA != m.AcceptedByB
	case StatusCancelled:
		return m.AcceptedByA || m.AcceptedByB
	default:
		return !m.WasAccepted()
	}
}

// PairKey identifies the unordered pair within an event.
type PairKey struct {
	EventID uuid.UUID
	Low     uuid.UUID
	High    uuid.UUID
}

// NewPairKey orders a and b bytewise, as PostgreSQL orders uuid values.
func NewPairKey(eventID, a, b uuid.UUID) PairKey {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return PairKey{EventID: eventID, Low: a, High: b}
}

// Key returns the match's pair key.
func (m *BuddyMatch) Key() PairKey {
	return NewPairKey(m.EventID, m.UserIDA, m.UserIDB)
}

// Candidate is one entry of a potential-buddies listing.
type Candidate struct {
	matching.ScoredCandidate
	Profile profile.Summary `json:"profile"`
}

// CompatibilityPreview explains the score between the caller and one attendee.
type CompatibilityPreview struct {
	UserID        uuid.UUID               `json:"user_id"`
	Score         float64                 `json:"score"`
	Disqualified  bool                    `json:"disqualified"`
	Reasons       []string                `json:"reasons"`
	Contributions []matching.Contribution `json:"contributions"`
	ActiveMatch   *BuddyMatch             `json:"active_match,omitempty"`
}

// MatchView is a match as listed to one of its participants.
type MatchView struct {
	*BuddyMatch
	Role    string           `json:"role"` // requester | recipient
	Partner *profile.Summary `json:"partner,omitempty"`
}

// Stats summarizes the buddy_matches table.
type Stats struct {
	Pending              int64     `json:"pending" db:"pending"`
	Accepted             int64     `json:"accepted" db:"accepted"`
	Declined             int64     `json:"declined" db:"declined"`
	Cancelled            int64     `json:"cancelled" db:"cancelled"`
	Responded            int64     `json:"responded" db:"responded"`
	EverAccepted         int64     `json:"ever_accepted" db:"ever_accepted"`
	AcceptanceRate       float64   `json:"acceptance_rate"`
	AverageAcceptedScore float64   `json:"average_accepted_score" db:"average_accepted_score"`
	GeneratedAt          time.Time `json:"generated_at"`
}

// finish derives the ratio fields.
func (s *Stats) finish(now time.Time) {
	if s.Responded > 0 {
		s.AcceptanceRate = float64(s.EverAccepted) / float64(s.Responded)
	}
	s.GeneratedAt = now
}
