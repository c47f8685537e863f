// internal/profile/repository.go

package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Repository defines the profile reads the matching core needs, plus the
// block list that filters candidates.
type Repository interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*Snapshot, error)
	// GetProfiles returns the rows that exist; unknown ids are skipped.
	GetProfiles(ctx context.Context, userIDs []uuid.UUID) ([]*Snapshot, error)

	// Blocking
	BlockUser(ctx context.Context, userID, blockedID uuid.UUID) error
	UnblockUser(ctx context.Context, userID, blockedID uuid.UUID) error
	// BlockedIDs returns everyone blocked by or blocking userID.
	BlockedIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	// IsBlocked reports a block in either direction.
	IsBlocked(ctx context.Context, userID, targetID uuid.UUID) (bool, error)
}

// postgresRepository implements Repository using PostgreSQL
type postgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

const snapshotColumns = `
	u.id, u.display_name, u.birth_year, u.gender, u.interests,
	u.pref_min_age, u.pref_max_age, u.pref_genders, u.created_at`

// GetProfile retrieves one snapshot by user ID
func (r *postgresRepository) GetProfile(ctx context.Context, userID uuid.UUID) (*Snapshot, error) {
	var snapshot Snapshot
	query := `SELECT ` + snapshotColumns + ` FROM users u WHERE u.id = $1`

	err := r.db.GetContext(ctx, &snapshot, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return &snapshot, nil
}

// GetProfiles retrieves a batch of snapshots in one round trip
func (r *postgresRepository) GetProfiles(ctx context.Context, userIDs []uuid.UUID) ([]*Snapshot, error) {
	if len(userIDs) == 0 {
		return []*Snapshot{}, nil
	}

	var snapshots []*Snapshot
	query := `SELECT ` + snapshotColumns + ` FROM users u WHERE u.id = ANY($1) ORDER BY u.id`

	if err := r.db.SelectContext(ctx, &snapshots, query, pq.Array(uuidStrings(userIDs))); err != nil {
		return nil, fmt.Errorf("failed to get profiles: %w", err)
	}
	return snapshots, nil
}

// BlockUser creates a block record
func (r *postgresRepository) BlockUser(ctx context.Context, userID, blockedID uuid.UUID) error {
	query := `
		INSERT INTO blocked_users (user_id, blocked_id, blocked_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, blocked_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, userID, blockedID); err != nil {
		return fmt.Errorf("failed to block user: %w", err)
	}
	return nil
}

// UnblockUser removes a block record
func (r *postgresRepository) UnblockUser(ctx context.Context, userID, blockedID uuid.UUID) error {
	query := `DELETE FROM blocked_users WHERE user_id = $1 AND blocked_id = $2`
	if _, err := r.db.ExecContext(ctx, query, userID, blockedID); err != nil {
		return fmt.Errorf("failed to unblock user: %w", err)
	}
	return nil
}

// BlockedIDs retrieves ids blocked in either direction
func (r *postgresRepository) BlockedIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := `
		SELECT blocked_id FROM blocked_users WHERE user_id = $1
		UNION
		SELECT user_id FROM blocked_users WHERE blocked_id = $1`

	if err := r.db.SelectContext(ctx, &ids, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list blocked users: %w", err)
	}
	return ids, nil
}

// IsBlocked checks for a block in either direction
func (r *postgresRepository) IsBlocked(ctx context.Context, userID, targetID uuid.UUID) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS(
			SELECT 1 FROM blocked_users
			WHERE (user_id = $1 AND blocked_id = $2) OR (user_id = $2 AND blocked_id = $1)
		)`

	if err := r.db.GetContext(ctx, &exists, query, userID, targetID); err != nil {
		return false, fmt.Errorf("failed to check block: %w", err)
	}
	return exists, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// MemoryRepository is an in-process Repository for local runs and tests.
type MemoryRepository struct {
	mu       sync.RWMutex
	profiles map[uuid.UUID]Snapshot
	blocks   map[[2]uuid.UUID]struct{}
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		profiles: make(map[uuid.UUID]Snapshot),
		blocks:   make(map[[2]uuid.UUID]struct{}),
	}
}

// Put inserts or replaces a snapshot.
func (m *MemoryRepository) Put(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[s.ID] = s
}

func (m *MemoryRepository) GetProfile(_ context.Context, userID uuid.UUID) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.profiles[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return &s, nil
}

func (m *MemoryRepository) GetProfiles(_ context.Context, userIDs []uuid.UUID) ([]*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Snapshot, 0, len(userIDs))
	for _, id := range userIDs {
		if s, ok := m.profiles[id]; ok {
			s := s
			out = append(out, &s)
		}
	}
	return out, nil
}

func (m *MemoryRepository) BlockUser(_ context.Context, userID, blockedID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[[2]uuid.UUID{userID, blockedID}] = struct{}{}
	return nil
}

func (m *MemoryRepository) UnblockUser(_ context.Context, userID, blockedID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blocks, [2]uuid.UUID{userID, blockedID})
	return nil
}

func (m *MemoryRepository) BlockedIDs(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []uuid.UUID
	for pair := range m.blocks {
		switch userID {
		case pair[0]:
			out = append(out, pair[1])
		case pair[1]:
			out = append(out, pair[0])
		}
	}
	return out, nil
}

func (m *MemoryRepository) IsBlocked(_ context.Context, userID, targetID uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, forward := m.blocks[[2]uuid.UUID{userID, targetID}]
	_, backward := m.blocks[[2]uuid.UUID{targetID, userID}]
	return forward || backward, nil
}
