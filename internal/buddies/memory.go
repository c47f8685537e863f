// internal/buddies/memory.go

package buddies

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventStartFunc resolves an event's start time for expiry.
type EventStartFunc func(ctx context.Context, eventID uuid.UUID) (time.Time, error)

// MemoryRepository is an in-process Repository. A single mutex guards the
// rows and the active-pair index, which together give the same guarantees
// as the partial unique index.
type MemoryRepository struct {
	mu      sync.Mutex
	matches map[uuid.UUID]*BuddyMatch
	active  map[PairKey]uuid.UUID
	startOf EventStartFunc
	now     func() time.Time
}

// NewMemoryRepository creates an empty store. startOf may be nil, in which
// case ExpirePending never expires anything.
func NewMemoryRepository(startOf EventStartFunc) *MemoryRepository {
	return &MemoryRepository{
		matches: make(map[uuid.UUID]*BuddyMatch),
		active:  make(map[PairKey]uuid.UUID),
		startOf: startOf,
		now:     time.Now,
	}
}

func (r *MemoryRepository) Create(_ context.Context, m *BuddyMatch) error {
	if m.UserIDA == m.UserIDB {
		return ErrSelfMatch
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !m.flagsConsistent() {
		return fmt.Errorf("buddy match %s: inconsistent acceptance flags for status %s", m.ID, m.Status)
	}

	key := m.Key()
	if _, taken := r.active[key]; taken && m.Status.Active() {
		return ErrActiveMatchExists
	}

	now := r.now()
	m.CreatedAt = now
	m.UpdatedAt = now

	row := *m
	r.matches[row.ID] = &row
	if row.Status.Active() {
		r.active[key] = row.ID
	}
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (*BuddyMatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.matches[id]
	if !ok {
		return nil, ErrMatchNotFound
	}
	out := *row
	return &out, nil
}

func (r *MemoryRepository) Transition(_ context.Context, t Transition) (*BuddyMatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.matches[t.ID]
	if !ok || !statusIn(row.Status, t.From) {
		return nil, errStaleState
	}

	now := r.now()
	next := *row
	next.Status = t.To
	next.AcceptedByA = row.AcceptedByA || t.AcceptA
	next.AcceptedByB = row.AcceptedByB || t.AcceptB
	if t.CancelledBy.Valid {
		next.CancelledBy = t.CancelledBy
	}
	if t.Respond {
		next.RespondedAt = &now
	}
	next.UpdatedAt = now
	if !next.flagsConsistent() {
		return nil, fmt.Errorf("buddy match %s: inconsistent acceptance flags for status %s", row.ID, next.Status)
	}
	*row = next

	if !row.Status.Active() {
		key := row.Key()
		if r.active[key] == row.ID {
			delete(r.active, key)
		}
	}

	out := *row
	return &out, nil
}

func (r *MemoryRepository) FindActive(_ context.Context, eventID, a, b uuid.UUID) (*BuddyMatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.active[NewPairKey(eventID, a, b)]
	if !ok {
		return nil, ErrMatchNotFound
	}
	out := *r.matches[id]
	return &out, nil
}

func (r *MemoryRepository) ActivePartnerIDs(_ context.Context, eventID, userID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []uuid.UUID
	for key := range r.active {
		if key.EventID != eventID {
			continue
		}
		switch userID {
		case key.Low:
			ids = append(ids, key.High)
		case key.High:
			ids = append(ids, key.Low)
		}
	}
	return ids, nil
}

func (r *MemoryRepository) ListUserMatches(_ context.Context, userID uuid.UUID, statuses []Status) ([]*BuddyMatch, error) {
	if len(statuses) == 0 {
		statuses = AllStatuses
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*BuddyMatch
	for _, row := range r.matches {
		if row.IsParticipant(userID) && statusIn(row.Status, statuses) {
			m := *row
			out = append(out, &m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r *MemoryRepository) ExpirePending(ctx context.Context, now time.Time) ([]*BuddyMatch, error) {
	if r.startOf == nil {
		return nil, nil
	}

	r.mu.Lock()
	pending := make([]BuddyMatch, 0)
	for _, row := range r.matches {
		if row.Status == StatusPending {
			pending = append(pending, *row)
		}
	}
	r.mu.Unlock()

	var expired []*BuddyMatch
	for _, m := range pending {
		startsAt, err := r.startOf(ctx, m.EventID)
		if err != nil || startsAt.After(now) {
			continue
		}
		updated, err := r.Transition(ctx, Transition{
			ID:   m.ID,
			From: []Status{StatusPending},
			To:   StatusCancelled,
		})
		if err != nil {
			// Responded to in the meantime.
			continue
		}
		expired = append(expired, updated)
	}
	return expired, nil
}

func (r *MemoryRepository) Stats(_ context.Context, userID uuid.NullUUID) (*Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stats Stats
	var acceptedScore float64
	for _, row := range r.matches {
		if userID.Valid && !row.IsParticipant(userID.UUID) {
			continue
		}
		switch row.Status {
		case StatusPending:
			stats.Pending++
		case StatusAccepted:
			stats.Accepted++
		case StatusDeclined:
			stats.Declined++
		case StatusCancelled:
			stats.Cancelled++
		}
		if row.RespondedAt != nil {
			stats.Responded++
		}
		if row.WasAccepted() {
			stats.EverAccepted++
			acceptedScore += row.CompatibilityScore
		}
	}
	if stats.EverAccepted > 0 {
		stats.AverageAcceptedScore = acceptedScore / float64(stats.EverAccepted)
	}
	stats.finish(r.now())
	return &stats, nil
}

func statusIn(s Status, set []Status) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}
