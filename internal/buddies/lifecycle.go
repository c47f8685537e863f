// internal/buddies/lifecycle.go

package buddies

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/imadgeboyega/kiekky-events/internal/common/apperr"
	"github.com/imadgeboyega/kiekky-events/internal/common/logger"
)

var (
	ErrInvalidID             = apperr.Validation("user and event ids are required")
	ErrSelfMatch             = apperr.Validation("cannot request a match with yourself")
	ErrScoreOutOfRange       = apperr.Validation("compatibility score must be between 0 and 100")
	ErrRequesterNotAttending = apperr.Validation("you are not attending this event")
	ErrTargetNotAttending    = apperr.Validation("user is not attending this event")

	ErrActiveMatchExists = apperr.Conflict("an active buddy match already exists for this event")
	ErrNotRecipient      = apperr.Conflict("only the recipient can accept a buddy request")
	ErrInvalidTransition = apperr.Conflict("invalid buddy match transition")

	ErrMatchNotFound  = apperr.NotFound("buddy match not found")
	ErrNotParticipant = apperr.Forbidden("you are not part of this buddy match")
)

// AttendanceChecker answers roster membership.
type AttendanceChecker interface {
	IsAttending(ctx context.Context, eventID, userID uuid.UUID) (bool, error)
}

// Manager owns the buddy match state machine:
//
//	pending -> accepted | declined | cancelled
//	accepted -> cancelled
//
// Declined and cancelled are terminal.
type Manager struct {
	repo       Repository
	attendance AttendanceChecker
	notifier   Notifier
	log        *logger.Logger
	now        func() time.Time
}

// NewManager creates a lifecycle manager. A nil notifier drops events.
func NewManager(repo Repository, attendance AttendanceChecker, notifier Notifier, log *logger.Logger) *Manager {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Manager{
		repo:       repo,
		attendance: attendance,
		notifier:   notifier,
		log:        log.With("component", "buddy_lifecycle"),
		now:        time.Now,
	}
}

// Request creates a pending match from requester to target. score is
// stored as a snapshot and never recomputed.
func (m *Manager) Request(ctx context.Context, requester, target, eventID uuid.UUID, score float64) (*BuddyMatch, error) {
	match, err := m.request(ctx, requester, target, eventID, score)
	recordTransition("request", err)
	if errors.Is(err, ErrActiveMatchExists) {
		recordRequestConflict()
	}
	return match, err
}

func (m *Manager) request(ctx context.Context, requester, target, eventID uuid.UUID, score float64) (*BuddyMatch, error) {
	if requester == uuid.Nil || target == uuid.Nil || eventID == uuid.Nil {
		return nil, ErrInvalidID
	}
	if requester == target {
		return nil, ErrSelfMatch
	}
	if math.IsNaN(score) || score < 0 || score > 100 {
		return nil, ErrScoreOutOfRange
	}

	var requesterAttends, targetAttends bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		requesterAttends, err = m.attendance.IsAttending(gctx, eventID, requester)
		return err
	})
	g.Go(func() error {
		var err error
		targetAttends, err = m.attendance.IsAttending(gctx, eventID, target)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to check attendance: %w", err)
	}
	if !requesterAttends {
		return nil, ErrRequesterNotAttending
	}
	if !targetAttends {
		return nil, ErrTargetNotAttending
	}

	match := &BuddyMatch{
		ID:                 uuid.New(),
		EventID:            eventID,
		UserIDA:            requester,
		UserIDB:            target,
		CompatibilityScore: score,
		Status:             StatusPending,
		AcceptedByA:        true,
	}
	if err := m.repo.Create(ctx, match); err != nil {
		return nil, err
	}

	m.log.Info("Buddy match requested", "match_id", match.ID, "event_id", eventID, "requester", requester, "target", target)
	m.notify(ctx, EventRequested, match, target)
	return match, nil
}

// Accept moves a pending match to accepted on behalf of its recipient.
// Accepting an already accepted match returns it unchanged.
func (m *Manager) Accept(ctx context.Context, actor, matchID uuid.UUID) (*BuddyMatch, error) {
	match, err := m.accept(ctx, actor, matchID)
	recordTransition("accept", err)
	return match, err
}

func (m *Manager) accept(ctx context.Context, actor, matchID uuid.UUID) (*BuddyMatch, error) {
	current, err := m.participantMatch(ctx, actor, matchID)
	if err != nil {
		return nil, err
	}
	if current.Status == StatusAccepted {
		return current, nil
	}
	if current.Status != StatusPending {
		return nil, invalidTransition("accept", current.Status)
	}
	if actor == current.Requester() {
		return nil, ErrNotRecipient
	}

	updated, err := m.repo.Transition(ctx, Transition{
		ID:      matchID,
		From:    []Status{StatusPending},
		To:      StatusAccepted,
		AcceptB: true,
		Respond: true,
	})
	if errors.Is(err, errStaleState) {
		latest, err := m.repo.Get(ctx, matchID)
		if err != nil {
			return nil, err
		}
		if latest.Status == StatusAccepted {
			return latest, nil
		}
		return nil, invalidTransition("accept", latest.Status)
	}
	if err != nil {
		return nil, err
	}

	m.log.Info("Buddy match accepted", "match_id", matchID, "actor", actor)
	m.notify(ctx, EventAccepted, updated, updated.Requester(), updated.Recipient())
	return updated, nil
}

// Decline moves a pending match to declined. Either participant may decline.
func (m *Manager) Decline(ctx context.Context, actor, matchID uuid.UUID) (*BuddyMatch, error) {
	match, err := m.decline(ctx, actor, matchID)
	recordTransition("decline", err)
	return match, err
}

func (m *Manager) decline(ctx context.Context, actor, matchID uuid.UUID) (*BuddyMatch, error) {
	current, err := m.participantMatch(ctx, actor, matchID)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusPending {
		return nil, invalidTransition("decline", current.Status)
	}

	updated, err := m.repo.Transition(ctx, Transition{
		ID:      matchID,
		From:    []Status{StatusPending},
		To:      StatusDeclined,
		Respond: actor == current.Recipient(),
	})
	if err != nil {
		return nil, m.staleOr(ctx, err, "decline", matchID)
	}

	m.log.Info("Buddy match declined", "match_id", matchID, "actor", actor)
	m.notify(ctx, EventDeclined, updated, updated.Partner(actor))
	return updated, nil
}

// Cancel withdraws a pending or accepted match and records who did it.
func (m *Manager) Cancel(ctx context.Context, actor, matchID uuid.UUID) (*BuddyMatch, error) {
	match, err := m.cancel(ctx, actor, matchID)
	recordTransition("cancel", err)
	return match, err
}

func (m *Manager) cancel(ctx context.Context, actor, matchID uuid.UUID) (*BuddyMatch, error) {
	current, err := m.participantMatch(ctx, actor, matchID)
	if err != nil {
		return nil, err
	}
	if !current.Status.Active() {
		return nil, invalidTransition("cancel", current.Status)
	}

	updated, err := m.repo.Transition(ctx, Transition{
		ID:          matchID,
		From:        ActiveStatuses,
		To:          StatusCancelled,
		CancelledBy: uuid.NullUUID{UUID: actor, Valid: true},
	})
	if err != nil {
		return nil, m.staleOr(ctx, err, "cancel", matchID)
	}

	m.log.Info("Buddy match cancelled", "match_id", matchID, "actor", actor)
	m.notify(ctx, EventCancelled, updated, updated.Partner(actor))
	return updated, nil
}

// ExpireStarted cancels pending requests whose event has already started
// and reports how many were expired.
func (m *Manager) ExpireStarted(ctx context.Context) (int, error) {
	expired, err := m.repo.ExpirePending(ctx, m.now())
	if err != nil {
		return 0, err
	}
	for _, match := range expired {
		transitionsTotal.WithLabelValues("expire", "ok").Inc()
		m.notify(ctx, EventExpired, match, match.Requester(), match.Recipient())
	}
	if len(expired) > 0 {
		m.log.Info("Expired pending buddy requests", "count", len(expired))
	}
	return len(expired), nil
}

// Get returns a match visible to actor.
func (m *Manager) Get(ctx context.Context, actor, matchID uuid.UUID) (*BuddyMatch, error) {
	return m.participantMatch(ctx, actor, matchID)
}

func (m *Manager) participantMatch(ctx context.Context, actor, matchID uuid.UUID) (*BuddyMatch, error) {
	match, err := m.repo.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !match.IsParticipant(actor) {
		return nil, ErrNotParticipant
	}
	return match, nil
}

// staleOr turns a lost compare-and-swap into a Conflict naming the state
// the match moved to.
func (m *Manager) staleOr(ctx context.Context, err error, action string, matchID uuid.UUID) error {
	if !errors.Is(err, errStaleState) {
		return err
	}
	latest, getErr := m.repo.Get(ctx, matchID)
	if getErr != nil {
		return getErr
	}
	return invalidTransition(action, latest.Status)
}

func (m *Manager) notify(ctx context.Context, typ EventType, match *BuddyMatch, recipients ...uuid.UUID) {
	event := MatchEvent{
		Type:       typ,
		Match:      match,
		Recipients: recipients,
		OccurredAt: m.now(),
	}
	if err := m.notifier.NotifyMatch(ctx, event); err != nil {
		m.log.Warn("Failed to deliver match event", "type", typ, "match_id", match.ID, "error", err)
	}
}

func invalidTransition(action string, status Status) error {
	return fmt.Errorf("%w: cannot %s a match that is %s", ErrInvalidTransition, action, status)
}
