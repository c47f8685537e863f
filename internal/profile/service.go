// internal/profile/service.go

package profile

import (
	"context"

	"github.com/google/uuid"

	"github.com/imadgeboyega/kiekky-events/internal/common/apperr"
)

var ErrUserBlocked = apperr.Forbidden("user is blocked")

// Service defines the profile service interface
type Service interface {
	GetMyProfile(ctx context.Context, userID uuid.UUID) (*Snapshot, error)
	// GetProfile returns the public view of userID as seen by viewerID.
	GetProfile(ctx context.Context, userID, viewerID uuid.UUID) (*Summary, error)

	// Blocking
	BlockUser(ctx context.Context, userID, blockedID uuid.UUID) error
	UnblockUser(ctx context.Context, userID, blockedID uuid.UUID) error
	GetBlockedUsers(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// service implements the profile service
type service struct {
	repo Repository
}

// NewService creates a new profile service
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) GetMyProfile(ctx context.Context, userID uuid.UUID) (*Snapshot, error) {
	return s.repo.GetProfile(ctx, userID)
}

func (s *service) GetProfile(ctx context.Context, userID, viewerID uuid.UUID) (*Summary, error) {
	if userID != viewerID {
		blocked, err := s.repo.IsBlocked(ctx, userID, viewerID)
		if err != nil {
			return nil, err
		}
		if blocked {
			return nil, ErrUserBlocked
		}
	}

	snapshot, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary := snapshot.Summary()
	return &summary, nil
}

func (s *service) BlockUser(ctx context.Context, userID, blockedID uuid.UUID) error {
	if userID == blockedID {
		return ErrSelfBlock
	}
	if _, err := s.repo.GetProfile(ctx, blockedID); err != nil {
		return err
	}
	return s.repo.BlockUser(ctx, userID, blockedID)
}

func (s *service) UnblockUser(ctx context.Context, userID, blockedID uuid.UUID) error {
	return s.repo.UnblockUser(ctx, userID, blockedID)
}

// GetBlockedUsers lists everyone the user cannot be matched with.
func (s *service) GetBlockedUsers(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	ids, err := s.repo.BlockedIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return ids, nil
}
