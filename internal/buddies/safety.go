// internal/buddies/safety.go

package buddies

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/imadgeboyega/kiekky-events/internal/common/apperr"
	"github.com/imadgeboyega/kiekky-events/internal/common/logger"
)

var (
	ErrBlocked         = apperr.Forbidden("you cannot send a buddy request to this user")
	ErrTooManyRequests = apperr.RateLimited("too many buddy requests, please slow down")
)

// RateLimiter counts attempts per identifier.
type RateLimiter interface {
	Allow(ctx context.Context, identifier string) (bool, error)
}

// BlockChecker reports a block in either direction.
type BlockChecker interface {
	IsBlocked(ctx context.Context, userID, targetID uuid.UUID) (bool, error)
}

// SafetyGuard vets a buddy request before it reaches the lifecycle manager.
type SafetyGuard struct {
	blocks  BlockChecker
	limiter RateLimiter
	log     *logger.Logger
}

// NewSafetyGuard creates a guard. A nil limiter disables rate limiting.
func NewSafetyGuard(blocks BlockChecker, limiter RateLimiter, log *logger.Logger) *SafetyGuard {
	return &SafetyGuard{blocks: blocks, limiter: limiter, log: log.With("component", "buddy_safety")}
}

// VerifyRequest rejects requests between blocked users and requesters over
// their request budget. Limiter errors let the request through.
func (s *SafetyGuard) VerifyRequest(ctx context.Context, requesterID, targetID uuid.UUID) error {
	blocked, err := s.blocks.IsBlocked(ctx, requesterID, targetID)
	if err != nil {
		return fmt.Errorf("failed to check block list: %w", err)
	}
	if blocked {
		return ErrBlocked
	}

	if s.limiter == nil {
		return nil
	}
	allowed, err := s.limiter.Allow(ctx, requesterID.String())
	if err != nil {
		s.log.Warn("Rate limiter unavailable", "user_id", requesterID, "error", err)
		return nil
	}
	if !allowed {
		return ErrTooManyRequests
	}
	return nil
}
