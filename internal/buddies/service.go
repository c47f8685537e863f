// internal/buddies/service.go

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
	"github.com/imadgeboyega/kiekky-events/internal/common/utils"
	"github.com/imadgeboyega/kiekky-events/internal/events"
	"github.com/imadgeboyega/kiekky-events/internal/matching"
	"github.com/imadgeboyega/kiekky-events/internal/profile"
)

var (
	ErrInvalidTarget = apperr.Validation("invalid target user id")
	ErrInvalidAction = apperr.Validation("action must be accept or decline")
	ErrInvalidFilter = apperr.Validation("unknown status filter")
)

// scoreTolerance is how far a client's score hint may drift from the
// recomputed score before it is logged.
const scoreTolerance = 0.01

// Profiles is the profile read model used for scoring and blocking.
type Profiles interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*profile.Snapshot, error)
	GetProfiles(ctx context.Context, userIDs []uuid.UUID) ([]*profile.Snapshot, error)
	BlockedIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	IsBlocked(ctx context.Context, userID, targetID uuid.UUID) (bool, error)
}

// Roster is the event read model.
type Roster interface {
	GetEvent(ctx context.Context, eventID uuid.UUID) (*events.Event, error)
	ListAttendees(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error)
	IsAttending(ctx context.Context, eventID, userID uuid.UUID) (bool, error)
}

// Service defines the buddies service interface
type Service interface {
	ListPotentialMatches(ctx context.Context, userID, eventID uuid.UUID, limit int) ([]Candidate, error)
	PreviewCompatibility(ctx context.Context, userID, eventID, targetID uuid.UUID) (*CompatibilityPreview, error)

	RequestMatch(ctx context.Context, requesterID, eventID uuid.UUID, req *RequestMatchDTO) (*BuddyMatch, error)
	RespondMatch(ctx context.Context, actorID, matchID uuid.UUID, action string) (*BuddyMatch, error)
	CancelMatch(ctx context.Context, actorID, matchID uuid.UUID) (*BuddyMatch, error)

	GetMatch(ctx context.Context, userID, matchID uuid.UUID) (*MatchView, error)
	ListMyMatches(ctx context.Context, userID uuid.UUID, filter string) ([]MatchView, error)
	// GetStats summarizes the user's own matches.
	GetStats(ctx context.Context, userID uuid.UUID) (*Stats, error)
}

// Config bounds candidate listings.
type Config struct {
	DefaultLimit int
	MaxLimit     int
}

func DefaultConfig() Config {
	return Config{DefaultLimit: 50, MaxLimit: 200}
}

// service implements the buddies service
type service struct {
	repo     Repository
	manager  *Manager
	profiles Profiles
	roster   Roster
	ranker   *matching.Ranker
	safety   *SafetyGuard
	cfg      Config
	log      *logger.Logger
}

// NewService creates a new buddies service
func NewService(
	repo Repository,
	manager *Manager,
	profiles Profiles,
	roster Roster,
	ranker *matching.Ranker,
	safety *SafetyGuard,
	cfg Config,
	log *logger.Logger,
) Service {
	return &service{
		repo:     repo,
		manager:  manager,
		profiles: profiles,
		roster:   roster,
		ranker:   ranker,
		safety:   safety,
		cfg:      cfg,
		log:      log.With("component", "buddies"),
	}
}

func (s *service) ListPotentialMatches(ctx context.Context, userID, eventID uuid.UUID, limit int) ([]Candidate, error) {
	limit = utils.ClampLimit(limit, s.cfg.DefaultLimit, s.cfg.MaxLimit)
	started := time.Now()

	if err := s.requireAttendee(ctx, eventID, userID); err != nil {
		return nil, err
	}

	var (
		subject  *profile.Snapshot
		pool     []*profile.Snapshot
		partners []uuid.UUID
		blocked  []uuid.UUID
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		subject, err = s.profiles.GetProfile(gctx, userID)
		return err
	})
	g.Go(func() error {
		attendees, err := s.roster.ListAttendees(gctx, eventID)
		if err != nil {
			return err
		}
		pool, err = s.profiles.GetProfiles(gctx, attendees)
		return err
	})
	g.Go(func() error {
		var err error
		partners, err = s.repo.ActivePartnerIDs(gctx, eventID, userID)
		return err
	})
	g.Go(func() error {
		var err error
		blocked, err = s.profiles.BlockedIDs(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	exclude := make(map[uuid.UUID]struct{}, len(partners)+len(blocked))
	for _, id := range partners {
		exclude[id] = struct{}{}
	}
	for _, id := range blocked {
		exclude[id] = struct{}{}
	}

	ranked, err := s.ranker.RankBuddies(matching.BuddyQuery{
		Subject:    subject.Raw(),
		Candidates: profile.RawPeople(pool),
		Exclude:    exclude,
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*profile.Snapshot, len(pool))
	for _, p := range pool {
		byID[p.ID] = p
	}
	candidates := make([]Candidate, 0, len(ranked))
	for _, c := range ranked {
		candidates = append(candidates, Candidate{ScoredCandidate: c, Profile: byID[c.ID].Summary()})
	}
	recordRankDuration(time.Since(started))

	s.log.Debug("Ranked buddy candidates", "user_id", userID, "event_id", eventID,
		"pool", len(pool), "excluded", len(exclude), "returned", len(candidates))
	return candidates, nil
}

func (s *service) PreviewCompatibility(ctx context.Context, userID, eventID, targetID uuid.UUID) (*CompatibilityPreview, error) {
	if userID == targetID {
		return nil, ErrSelfMatch
	}
	if err := s.requireAttendee(ctx, eventID, userID); err != nil {
		return nil, err
	}
	attending, err := s.roster.IsAttending(ctx, eventID, targetID)
	if err != nil {
		return nil, err
	}
	if !attending {
		return nil, ErrTargetNotAttending
	}
	blocked, err := s.profiles.IsBlocked(ctx, userID, targetID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrBlocked
	}

	result, err := s.score(ctx, userID, targetID)
	if err != nil {
		return nil, err
	}

	preview := &CompatibilityPreview{
		UserID:        targetID,
		Score:         result.Score,
		Disqualified:  result.Disqualified,
		Reasons:       matching.Reasons(result),
		Contributions: result.Contributions,
	}
	active, err := s.repo.FindActive(ctx, eventID, userID, targetID)
	switch {
	case err == nil:
		preview.ActiveMatch = active
	case !errors.Is(err, ErrMatchNotFound):
		return nil, err
	}
	return preview, nil
}

func (s *service) RequestMatch(ctx context.Context, requesterID, eventID uuid.UUID, req *RequestMatchDTO) (*BuddyMatch, error) {
	targetID, err := uuid.Parse(req.TargetID)
	if err != nil {
		return nil, ErrInvalidTarget
	}
	if targetID == requesterID {
		return nil, ErrSelfMatch
	}
	if _, err := s.roster.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	if err := s.safety.VerifyRequest(ctx, requesterID, targetID); err != nil {
		return nil, err
	}

	result, err := s.score(ctx, requesterID, targetID)
	if err != nil {
		return nil, err
	}
	if req.CompatibilityScore != nil && math.Abs(*req.CompatibilityScore-result.Score) > scoreTolerance {
		s.log.Info("Client compatibility score differs from recomputed score",
			"requester", requesterID, "target", targetID, "client_score", *req.CompatibilityScore, "score", result.Score)
	}

	return s.manager.Request(ctx, requesterID, targetID, eventID, result.Score)
}

func (s *service) RespondMatch(ctx context.Context, actorID, matchID uuid.UUID, action string) (*BuddyMatch, error) {
	switch action {
	case ActionAccept:
		return s.manager.Accept(ctx, actorID, matchID)
	case ActionDecline:
		return s.manager.Decline(ctx, actorID, matchID)
	default:
		return nil, ErrInvalidAction
	}
}

func (s *service) CancelMatch(ctx context.Context, actorID, matchID uuid.UUID) (*BuddyMatch, error) {
	return s.manager.Cancel(ctx, actorID, matchID)
}

func (s *service) GetMatch(ctx context.Context, userID, matchID uuid.UUID) (*MatchView, error) {
	match, err := s.manager.Get(ctx, userID, matchID)
	if err != nil {
		return nil, err
	}
	views, err := s.views(ctx, userID, []*BuddyMatch{match})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *service) ListMyMatches(ctx context.Context, userID uuid.UUID, filter string) ([]MatchView, error) {
	statuses, err := parseFilter(filter)
	if err != nil {
		return nil, err
	}
	matches, err := s.repo.ListUserMatches(ctx, userID, statuses)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, userID, matches)
}

func (s *service) GetStats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	return s.repo.Stats(ctx, uuid.NullUUID{UUID: userID, Valid: true})
}

// views joins partner summaries onto matches as seen by userID.
func (s *service) views(ctx context.Context, userID uuid.UUID, matches []*BuddyMatch) ([]MatchView, error) {
	views := make([]MatchView, 0, len(matches))
	if len(matches) == 0 {
		return views, nil
	}

	partnerIDs := make([]uuid.UUID, 0, len(matches))
	for _, m := range matches {
		partnerIDs = append(partnerIDs, m.Partner(userID))
	}
	partners, err := s.profiles.GetProfiles(ctx, partnerIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]profile.Summary, len(partners))
	for _, p := range partners {
		byID[p.ID] = p.Summary()
	}

	for _, m := range matches {
		view := MatchView{BuddyMatch: m, Role: "recipient"}
		if m.Requester() == userID {
			view.Role = "requester"
		}
		if summary, ok := byID[m.Partner(userID)]; ok {
			view.Partner = &summary
		}
		views = append(views, view)
	}
	return views, nil
}

// score recomputes compatibility from current profile state.
func (s *service) score(ctx context.Context, userID, targetID uuid.UUID) (matching.Result, error) {
	snapshots, err := s.profiles.GetProfiles(ctx, []uuid.UUID{userID, targetID})
	if err != nil {
		return matching.Result{}, err
	}
	var subject, target *profile.Snapshot
	for _, snap := range snapshots {
		switch snap.ID {
		case userID:
			subject = snap
		case targetID:
			target = snap
		}
	}
	if subject == nil || target == nil {
		return matching.Result{}, profile.ErrProfileNotFound
	}
	return s.ranker.Compatibility(subject.Raw(), target.Raw())
}

func (s *service) requireAttendee(ctx context.Context, eventID, userID uuid.UUID) error {
	if _, err := s.roster.GetEvent(ctx, eventID); err != nil {
		return err
	}
	attending, err := s.roster.IsAttending(ctx, eventID, userID)
	if err != nil {
		return fmt.Errorf("failed to check attendance: %w", err)
	}
	if !attending {
		return ErrRequesterNotAttending
	}
	return nil
}

func parseFilter(filter string) ([]Status, error) {
	switch filter {
	case "", FilterActive:
		return ActiveStatuses, nil
	case FilterAll:
		return nil, nil
	}
	if status := Status(filter); status.Valid() {
		return []Status{status}, nil
	}
	return nil, ErrInvalidFilter
}
