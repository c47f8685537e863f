// internal/matching/features.go
// Normalization of raw profile and event rows into comparable feature sets.

package matching

import (
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrMissingIdentity is returned for rows without an id. Callers skip
	// such entities rather than score them.
	ErrMissingIdentity = errors.New("entity has no id")

	// ErrMissingStartTime is returned for events without a start timestamp.
	ErrMissingStartTime = errors.New("event has no start time")
)

// maxPlausibleAge bounds ages derived from a birth year.
const maxPlausibleAge = 130

// Gender is the enumerated gender category. GenderUnknown means absent.
type Gender string

const (
	GenderUnknown   Gender = ""
	GenderMale      Gender = "male"
	GenderFemale    Gender = "female"
	GenderNonBinary Gender = "non_binary"
	GenderOther     Gender = "other"
)

// ParseGender normalizes free-form input. Unrecognized values are absent.
func ParseGender(s string) Gender {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "man", "m":
		return GenderMale
	case "female", "woman", "f":
		return GenderFemale
	case "non_binary", "non-binary", "nonbinary", "nb":
		return GenderNonBinary
	case "other":
		return GenderOther
	default:
		return GenderUnknown
	}
}

// GenderSet is a gender filter. An empty set means no preference.
type GenderSet []Gender

// Contains reports whether g is in the set.
func (s GenderSet) Contains(g Gender) bool {
	for _, v := range s {
		if v == g {
			return true
		}
	}
	return false
}

// OptionalInt is an integer that may be absent.
type OptionalInt struct {
	Value int
	Valid bool
}

// SomeInt returns a present OptionalInt.
func SomeInt(v int) OptionalInt {
	return OptionalInt{Value: v, Valid: true}
}

// AgeRange is an inclusive age filter; either bound may be open.
type AgeRange struct {
	Min OptionalInt
	Max OptionalInt
}

// Stated reports whether at least one bound is set.
func (r AgeRange) Stated() bool {
	return r.Min.Valid || r.Max.Valid
}

// Contains reports whether age falls inside the range.
func (r AgeRange) Contains(age int) bool {
	if r.Min.Valid && age < r.Min.Value {
		return false
	}
	if r.Max.Valid && age > r.Max.Value {
		return false
	}
	return true
}

// Preferences are a person's match preferences.
type Preferences struct {
	AgeRange AgeRange
	Genders  GenderSet
}

// Stated reports whether any preference is set.
func (p Preferences) Stated() bool {
	return p.AgeRange.Stated() || len(p.Genders) > 0
}

// InterestSet is a case-insensitive set of interest tags that keeps the
// display form of the first occurrence.
type InterestSet struct {
	tags map[string]string
}

// NewInterestSet trims, de-duplicates and drops empty tags.
func NewInterestSet(tags []string) InterestSet {
	set := InterestSet{tags: make(map[string]string, len(tags))}
	for _, tag := range tags {
		display := strings.TrimSpace(tag)
		if display == "" {
			continue
		}
		key := strings.ToLower(display)
		if _, ok := set.tags[key]; !ok {
			set.tags[key] = display
		}
	}
	return set
}

// Len returns the number of distinct tags.
func (s InterestSet) Len() int {
	return len(s.tags)
}

// Contains reports whether tag is in the set, ignoring case.
func (s InterestSet) Contains(tag string) bool {
	_, ok := s.tags[strings.ToLower(strings.TrimSpace(tag))]
	return ok
}

// Tags returns the display forms, sorted.
func (s InterestSet) Tags() []string {
	out := make([]string, 0, len(s.tags))
	for _, display := range s.tags {
		out = append(out, display)
	}
	sort.Strings(out)
	return out
}

// Shared returns the display forms (taken from s) of tags present in both
// sets, sorted.
func (s InterestSet) Shared(other InterestSet) []string {
	var out []string
	for key, display := range s.tags {
		if _, ok := other.tags[key]; ok {
			out = append(out, display)
		}
	}
	sort.Strings(out)
	return out
}

// Jaccard returns |A∩B| / |A∪B|. Zero when either set is empty.
func (s InterestSet) Jaccard(other InterestSet) float64 {
	if s.Len() == 0 || other.Len() == 0 {
		return 0
	}
	shared := 0
	for key := range s.tags {
		if _, ok := other.tags[key]; ok {
			shared++
		}
	}
	union := s.Len() + other.Len() - shared
	return float64(shared) / float64(union)
}

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64
	Lng float64
}

// OptionalPoint is a coordinate that may be absent.
type OptionalPoint struct {
	Point
	Valid bool
}

// PersonFeatures is the normalized, read-only snapshot of a person.
type PersonFeatures struct {
	ID        uuid.UUID
	Interests InterestSet
	Age       OptionalInt
	Gender    Gender
	Prefs     Preferences
}

// EventFeatures is the normalized, read-only snapshot of an event.
type EventFeatures struct {
	ID        uuid.UUID
	Interests InterestSet
	Location  OptionalPoint
	StartsAt  time.Time
}

// RawPerson is a person as read from storage, with nullable columns.
type RawPerson struct {
	ID          uuid.UUID
	Interests   []string
	BirthYear   *int
	Gender      *string
	PrefMinAge  *int
	PrefMaxAge  *int
	PrefGenders []string
}

// RawEvent is an event as read from storage, with nullable columns.
type RawEvent struct {
	ID        uuid.UUID
	Interests []string
	Latitude  *float64
	Longitude *float64
	StartsAt  time.Time
}

// Extractor turns raw rows into feature records. Ages are derived against
// the extractor's clock.
type Extractor struct {
	now func() time.Time
}

// NewExtractor returns an Extractor using now as its clock; nil means
// time.Now.
func NewExtractor(now func() time.Time) *Extractor {
	if now == nil {
		now = time.Now
	}
	return &Extractor{now: now}
}

// Person normalizes a person row.
func (x *Extractor) Person(raw RawPerson) (PersonFeatures, error) {
	if raw.ID == uuid.Nil {
		return PersonFeatures{}, ErrMissingIdentity
	}

	features := PersonFeatures{
		ID:        raw.ID,
		Interests: NewInterestSet(raw.Interests),
		Age:       x.ageFromBirthYear(raw.BirthYear),
	}
	if raw.Gender != nil {
		features.Gender = ParseGender(*raw.Gender)
	}

	if raw.PrefMinAge != nil {
		features.Prefs.AgeRange.Min = SomeInt(*raw.PrefMinAge)
	}
	if raw.PrefMaxAge != nil {
		features.Prefs.AgeRange.Max = SomeInt(*raw.PrefMaxAge)
	}
	for _, g := range raw.PrefGenders {
		parsed := ParseGender(g)
		if parsed != GenderUnknown && !features.Prefs.Genders.Contains(parsed) {
			features.Prefs.Genders = append(features.Prefs.Genders, parsed)
		}
	}

	return features, nil
}

func (x *Extractor) ageFromBirthYear(birthYear *int) OptionalInt {
	if birthYear == nil {
		return OptionalInt{}
	}
	age := x.now().Year() - *birthYear
	if age < 0 || age > maxPlausibleAge {
		return OptionalInt{}
	}
	return SomeInt(age)
}

// Event normalizes an event row.
func (x *Extractor) Event(raw RawEvent) (EventFeatures, error) {
	if raw.ID == uuid.Nil {
		return EventFeatures{}, ErrMissingIdentity
	}
	if raw.StartsAt.IsZero() {
		return EventFeatures{}, ErrMissingStartTime
	}

	features := EventFeatures{
		ID:        raw.ID,
		Interests: NewInterestSet(raw.Interests),
		StartsAt:  raw.StartsAt,
	}
	if raw.Latitude != nil && raw.Longitude != nil && validCoordinate(*raw.Latitude, *raw.Longitude) {
		features.Location = OptionalPoint{
			Point: Point{Lat: *raw.Latitude, Lng: *raw.Longitude},
			Valid: true,
		}
	}
	return features, nil
}

func validCoordinate(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// People extracts every row with an identity, keyed by id. Rows without an
// id are skipped; the first row wins for duplicate ids.
func (x *Extractor) People(raws []RawPerson) map[uuid.UUID]PersonFeatures {
	out := make(map[uuid.UUID]PersonFeatures, len(raws))
	for _, raw := range raws {
		if _, seen := out[raw.ID]; seen {
			continue
		}
		features, err := x.Person(raw)
		if err != nil {
			continue
		}
		out[features.ID] = features
	}
	return out
}

// Events extracts every valid row, keyed by id.
func (x *Extractor) Events(raws []RawEvent) map[uuid.UUID]EventFeatures {
	out := make(map[uuid.UUID]EventFeatures, len(raws))
	for _, raw := range raws {
		if _, seen := out[raw.ID]; seen {
			continue
		}
		features, err := x.Event(raw)
		if err != nil {
			continue
		}
		out[features.ID] = features
	}
	return out
}
