// internal/events/repository.go

package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Repository defines the event reads the matching core needs
type Repository interface {
	GetEvent(ctx context.Context, eventID uuid.UUID) (*Event, error)
	// ListCandidateEvents returns events sharing an interest with the
	// subject, starting within the window or located within the radius,
	// excluding the subject. Events sharing an interest come first, then
	// by distance in time from the subject.
	ListCandidateEvents(ctx context.Context, filter CandidateFilter) ([]*Event, error)

	// Attendance
	ListAttendees(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error)
	IsAttending(ctx context.Context, eventID, userID uuid.UUID) (bool, error)
}

// postgresRepository implements Repository using PostgreSQL
type postgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

const eventColumns = `e.id, e.title, e.interests, e.latitude, e.longitude, e.starts_at, e.created_at`

// GetEvent retrieves an event by ID
func (r *postgresRepository) GetEvent(ctx context.Context, eventID uuid.UUID) (*Event, error) {
	var event Event
	query := `SELECT ` + eventColumns + ` FROM events e WHERE e.id = $1`

	if err := r.db.GetContext(ctx, &event, query, eventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return &event, nil
}

// ListCandidateEvents uses the array overlap operator for interests, a
// start-time range for temporal neighbours and a bounding box for nearby events
func (r *postgresRepository) ListCandidateEvents(ctx context.Context, filter CandidateFilter) ([]*Event, error) {
	subject := filter.Subject
	lowered := make([]string, 0, len(subject.Interests))
	for _, tag := range subject.Interests {
		lowered = append(lowered, strings.ToLower(strings.TrimSpace(tag)))
	}
	box, located := filter.Area()

	query := `
		SELECT ` + eventColumns + `
		FROM events e
		CROSS JOIN LATERAL (
			SELECT COALESCE((SELECT array_agg(lower(t)) FROM unnest(e.interests) t) && $3::text[], false) AS shares_tag
		) s
		WHERE e.id <> $1
		AND e.starts_at >= $2
		AND (
			s.shares_tag
			OR e.starts_at BETWEEN $4 AND $5
			OR ($6::boolean AND e.latitude BETWEEN $7 AND $8 AND e.longitude BETWEEN $9 AND $10)
		)
		ORDER BY s.shares_tag DESC, ABS(EXTRACT(EPOCH FROM (e.starts_at - $11::timestamptz))) ASC, e.id
		LIMIT $12`

	var events []*Event
	err := r.db.SelectContext(ctx, &events, query,
		subject.ID,
		filter.After,
		pq.Array(lowered),
		subject.StartsAt.Add(-filter.Window),
		subject.StartsAt.Add(filter.Window),
		located,
		box.MinLat, box.MaxLat,
		box.MinLng, box.MaxLng,
		subject.StartsAt,
		filter.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidate events: %w", err)
	}
	return events, nil
}

// ListAttendees returns the user ids attending an event
func (r *postgresRepository) ListAttendees(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := `SELECT user_id FROM event_attendees WHERE event_id = $1 ORDER BY joined_at`

	if err := r.db.SelectContext(ctx, &ids, query, eventID); err != nil {
		return nil, fmt.Errorf("failed to list attendees: %w", err)
	}
	return ids, nil
}

// IsAttending checks the attendee roster
func (r *postgresRepository) IsAttending(ctx context.Context, eventID, userID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM event_attendees WHERE event_id = $1 AND user_id = $2)`

	if err := r.db.GetContext(ctx, &exists, query, eventID, userID); err != nil {
		return false, fmt.Errorf("failed to check attendance: %w", err)
	}
	return exists, nil
}

// MemoryRepository is an in-process Repository for local runs and tests.
type MemoryRepository struct {
	mu        sync.RWMutex
	events    map[uuid.UUID]Event
	attendees map[uuid.UUID][]uuid.UUID
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		events:    make(map[uuid.UUID]Event),
		attendees: make(map[uuid.UUID][]uuid.UUID),
	}
}

// Put inserts or replaces an event.
func (m *MemoryRepository) Put(e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.ID] = e
}

// Attend adds users to an event's roster.
func (m *MemoryRepository) Attend(eventID uuid.UUID, userIDs ...uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range userIDs {
		if !contains(m.attendees[eventID], id) {
			m.attendees[eventID] = append(m.attendees[eventID], id)
		}
	}
}

func (m *MemoryRepository) GetEvent(_ context.Context, eventID uuid.UUID) (*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.events[eventID]
	if !ok {
		return nil, ErrEventNotFound
	}
	return &e, nil
}

func (m *MemoryRepository) ListCandidateEvents(_ context.Context, filter CandidateFilter) ([]*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subject := filter.Subject
	tags := make(map[string]struct{}, len(subject.Interests))
	for _, tag := range subject.Interests {
		tags[strings.ToLower(strings.TrimSpace(tag))] = struct{}{}
	}
	lo, hi := subject.StartsAt.Add(-filter.Window), subject.StartsAt.Add(filter.Window)
	box, located := filter.Area()

	type candidate struct {
		event  *Event
		shared bool
		gap    time.Duration
	}
	var pool []candidate
	for id, e := range m.events {
		if id == subject.ID || e.StartsAt.Before(filter.After) {
			continue
		}
		shared := sharesTag(e.Interests, tags)
		nearby := located && e.Latitude != nil && e.Longitude != nil && box.Contains(*e.Latitude, *e.Longitude)
		if shared || within(e.StartsAt, lo, hi) || nearby {
			e := e
			pool = append(pool, candidate{event: &e, shared: shared, gap: absDuration(e.StartsAt.Sub(subject.StartsAt))})
		}
	}

	sort.Slice(pool, func(i, j int) bool {
		a, b := pool[i], pool[j]
		if a.shared != b.shared {
			return a.shared
		}
		if a.gap != b.gap {
			return a.gap < b.gap
		}
		return a.event.ID.String() < b.event.ID.String()
	})
	if filter.Limit > 0 && len(pool) > filter.Limit {
		pool = pool[:filter.Limit]
	}

	out := make([]*Event, 0, len(pool))
	for _, c := range pool {
		out = append(out, c.event)
	}
	return out, nil
}

func (m *MemoryRepository) ListAttendees(_ context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]uuid.UUID(nil), m.attendees[eventID]...), nil
}

func (m *MemoryRepository) IsAttending(_ context.Context, eventID, userID uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return contains(m.attendees[eventID], userID), nil
}

func contains(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func sharesTag(interests []string, tags map[string]struct{}) bool {
	for _, tag := range interests {
		if _, ok := tags[strings.ToLower(strings.TrimSpace(tag))]; ok {
			return true
		}
	}
	return false
}

func within(t, lo, hi time.Time) bool {
	return !t.Before(lo) && !t.After(hi)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
