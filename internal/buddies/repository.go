// internal/buddies/repository.go

package buddies

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// errStaleState is returned by Transition when the row is not in one of
// the expected source states. Callers re-read to decide the outcome.
var errStaleState = errors.New("buddy match changed state")

// Transition is a single-row compare-and-swap on status.
type Transition struct {
	ID   uuid.UUID
	From []Status
	To   Status
	// Flags are only ever raised.
	AcceptA bool
	AcceptB bool
	// CancelledBy is recorded when set.
	CancelledBy uuid.NullUUID
	// Respond stamps responded_at.
	Respond bool
}

// Repository is the persistence contract of the lifecycle manager.
type Repository interface {
	// Create inserts a pending match. A second active match for the same
	// pair and event fails with ErrActiveMatchExists.
	Create(ctx context.Context, m *BuddyMatch) error
	Get(ctx context.Context, id uuid.UUID) (*BuddyMatch, error)
	// Transition applies t and returns the updated row, or errStaleState.
	Transition(ctx context.Context, t Transition) (*BuddyMatch, error)

	FindActive(ctx context.Context, eventID, a, b uuid.UUID) (*BuddyMatch, error)
	ActivePartnerIDs(ctx context.Context, eventID, userID uuid.UUID) ([]uuid.UUID, error)
	// ListUserMatches returns the user's matches, newest first. An empty
	// status list means all statuses.
	ListUserMatches(ctx context.Context, userID uuid.UUID, statuses []Status) ([]*BuddyMatch, error)

	// ExpirePending cancels pending matches whose event started at or
	// before now and returns them.
	ExpirePending(ctx context.Context, now time.Time) ([]*BuddyMatch, error)
	// Stats aggregates matches involving userID, or every match when
	// userID is not valid.
	Stats(ctx context.Context, userID uuid.NullUUID) (*Stats, error)
}

// Postgres error codes
const (
	pqUniqueViolation = "23505"
	pqCheckViolation  = "23514"
)

// activePairIndex is the partial unique index enforcing one active match
// per pair and event.
const activePairIndex = "buddy_matches_active_pair_idx"

type postgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

const matchColumns = `
	id, event_id, user_id_a, user_id_b, compatibility_score, status,
	accepted_by_a, accepted_by_b, cancelled_by, responded_at, created_at, updated_at`

func (r *postgresRepository) Create(ctx context.Context, m *BuddyMatch) error {
	query := `
		INSERT INTO buddy_matches (
			id, event_id, user_id_a, user_id_b, compatibility_score,
			status, accepted_by_a, accepted_by_b
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		m.ID, m.EventID, m.UserIDA, m.UserIDB, m.CompatibilityScore,
		m.Status, m.AcceptedByA, m.AcceptedByB,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch {
			case pqErr.Code == pqUniqueViolation && pqErr.Constraint == activePairIndex:
				return ErrActiveMatchExists
			case pqErr.Code == pqCheckViolation && pqErr.Constraint == "buddy_matches_not_self":
				return ErrSelfMatch
			}
		}
		return fmt.Errorf("failed to create buddy match: %w", err)
	}
	return nil
}

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (*BuddyMatch, error) {
	var m BuddyMatch
	query := `SELECT ` + matchColumns + ` FROM buddy_matches WHERE id = $1`

	if err := r.db.GetContext(ctx, &m, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get buddy match: %w", err)
	}
	return &m, nil
}

func (r *postgresRepository) Transition(ctx context.Context, t Transition) (*BuddyMatch, error) {
	query := `
		UPDATE buddy_matches SET
			status = $2,
			accepted_by_a = accepted_by_a OR $3,
			accepted_by_b = accepted_by_b OR $4,
			cancelled_by = COALESCE($5, cancelled_by),
			responded_at = CASE WHEN $6 THEN NOW() ELSE responded_at END,
			updated_at = NOW()
		WHERE id = $1 AND status = ANY($7)
		RETURNING ` + matchColumns

	var m BuddyMatch
	err := r.db.GetContext(ctx, &m, query,
		t.ID, t.To, t.AcceptA, t.AcceptB, t.CancelledBy, t.Respond, pq.Array(statusStrings(t.From)),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errStaleState
		}
		return nil, fmt.Errorf("failed to update buddy match: %w", err)
	}
	return &m, nil
}

func (r *postgresRepository) FindActive(ctx context.Context, eventID, a, b uuid.UUID) (*BuddyMatch, error) {
	var m BuddyMatch
	query := `
		SELECT ` + matchColumns + `
		FROM buddy_matches
		WHERE event_id = $1
		AND LEAST(user_id_a, user_id_b) = LEAST($2::uuid, $3::uuid)
		AND GREATEST(user_id_a, user_id_b) = GREATEST($2::uuid, $3::uuid)
		AND status IN ('pending', 'accepted')`

	if err := r.db.GetContext(ctx, &m, query, eventID, a, b); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to find active buddy match: %w", err)
	}
	return &m, nil
}

func (r *postgresRepository) ActivePartnerIDs(ctx context.Context, eventID, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := `
		SELECT CASE WHEN user_id_a = $2 THEN user_id_b ELSE user_id_a END
		FROM buddy_matches
		WHERE event_id = $1
		AND (user_id_a = $2 OR user_id_b = $2)
		AND status IN ('pending', 'accepted')`

	if err := r.db.SelectContext(ctx, &ids, query, eventID, userID); err != nil {
		return nil, fmt.Errorf("failed to list active partners: %w", err)
	}
	return ids, nil
}

func (r *postgresRepository) ListUserMatches(ctx context.Context, userID uuid.UUID, statuses []Status) ([]*BuddyMatch, error) {
	if len(statuses) == 0 {
		statuses = AllStatuses
	}

	var matches []*BuddyMatch
	query := `
		SELECT ` + matchColumns + `
		FROM buddy_matches
		WHERE (user_id_a = $1 OR user_id_b = $1)
		AND status = ANY($2)
		ORDER BY created_at DESC, id`

	if err := r.db.SelectContext(ctx, &matches, query, userID, pq.Array(statusStrings(statuses))); err != nil {
		return nil, fmt.Errorf("failed to list buddy matches: %w", err)
	}
	return matches, nil
}

func (r *postgresRepository) ExpirePending(ctx context.Context, now time.Time) ([]*BuddyMatch, error) {
	query := `
		UPDATE buddy_matches m SET
			status = 'cancelled',
			updated_at = NOW()
		FROM events e
		WHERE m.event_id = e.id
		AND m.status = 'pending'
		AND e.starts_at <= $1
		RETURNING m.*`

	var expired []*BuddyMatch
	if err := r.db.SelectContext(ctx, &expired, query, now); err != nil {
		return nil, fmt.Errorf("failed to expire pending buddy matches: %w", err)
	}
	return expired, nil
}

func (r *postgresRepository) Stats(ctx context.Context, userID uuid.NullUUID) (*Stats, error) {
	var stats Stats
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending') AS pending,
			COUNT(*) FILTER (WHERE status = 'accepted') AS accepted,
			COUNT(*) FILTER (WHERE status = 'declined') AS declined,
			COUNT(*) FILTER (WHERE status = 'cancelled') AS cancelled,
			COUNT(*) FILTER (WHERE responded_at IS NOT NULL) AS responded,
			COUNT(*) FILTER (WHERE accepted_by_a AND accepted_by_b) AS ever_accepted,
			COALESCE(AVG(compatibility_score) FILTER (WHERE accepted_by_a AND accepted_by_b), 0) AS average_accepted_score
		FROM buddy_matches
		WHERE $1::uuid IS NULL OR user_id_a = $1 OR user_id_b = $1`

	if err := r.db.GetContext(ctx, &stats, query, userID); err != nil {
		return nil, fmt.Errorf("failed to collect buddy stats: %w", err)
	}
	stats.finish(time.Now())
	return &stats, nil
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
