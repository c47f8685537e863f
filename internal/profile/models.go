// internal/profile/models.go

package profile

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/imadgeboyega/kiekky-events/internal/common/apperr"
	"github.com/imadgeboyega/kiekky-events/internal/matching"
)

var (
	ErrProfileNotFound = apperr.NotFound("profile not found")
	ErrSelfBlock       = apperr.Validation("cannot block yourself")
)

// Snapshot is the read-only slice of a user row the matching core scores.
type Snapshot struct {
	ID          uuid.UUID      `json:"id" db:"id"`
	DisplayName string         `json:"display_name" db:"display_name"`
	BirthYear   *int           `json:"birth_year,omitempty" db:"birth_year"`
	Gender      *string        `json:"gender,omitempty" db:"gender"`
	Interests   pq.StringArray `json:"interests" db:"interests"`
	PrefMinAge  *int           `json:"pref_min_age,omitempty" db:"pref_min_age"`
	PrefMaxAge  *int           `json:"pref_max_age,omitempty" db:"pref_max_age"`
	PrefGenders pq.StringArray `json:"pref_genders" db:"pref_genders"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
}

// Raw converts the row into the scorer's input type.
func (s *Snapshot) Raw() matching.RawPerson {
	return matching.RawPerson{
		ID:          s.ID,
		Interests:   []string(s.Interests),
		BirthYear:   s.BirthYear,
		Gender:      s.Gender,
		PrefMinAge:  s.PrefMinAge,
		PrefMaxAge:  s.PrefMaxAge,
		PrefGenders: []string(s.PrefGenders),
	}
}

// Summary is the public view of a participant, joined onto match listings.
type Summary struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Interests   []string  `json:"interests"`
}

// Summary returns the public view of s.
func (s *Snapshot) Summary() Summary {
	interests := []string(s.Interests)
	if interests == nil {
		interests = []string{}
	}
	return Summary{ID: s.ID, DisplayName: s.DisplayName, Interests: interests}
}

// RawPeople converts a batch of snapshots.
func RawPeople(snapshots []*Snapshot) []matching.RawPerson {
	out := make([]matching.RawPerson, 0, len(snapshots))
	for _, s := range snapshots {
		out = append(out, s.Raw())
	}
	return out
}
