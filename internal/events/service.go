// internal/events/service.go

package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/imadgeboyega/kiekky-events/internal/common/logger"
	"github.com/imadgeboyega/kiekky-events/internal/common/utils"
	"github.com/imadgeboyega/kiekky-events/internal/matching"
)

// Service defines the events service interface
type Service interface {
	// ViewEvent adds the viewer's attendance when viewerID is non-nil.
	ViewEvent(ctx context.Context, eventID uuid.UUID, viewerID *uuid.UUID) (*EventView, error)
	// ListSimilarEvents ranks upcoming events against eventID.
	ListSimilarEvents(ctx context.Context, eventID uuid.UUID, limit int) ([]SimilarEvent, error)
}

// Config tunes candidate loading and result sizes.
type Config struct {
	// Window is the start-time radius used to pull temporal neighbours.
	Window time.Duration
	// RadiusKm is the distance used to pull geographic neighbours.
	RadiusKm      float64
	CandidatePool int
	DefaultLimit  int
	MaxLimit      int
}

// DefaultConfig matches the similarity scorer's default window and radius.
func DefaultConfig() Config {
	return Config{
		Window:        14 * 24 * time.Hour,
		RadiusKm:      25,
		CandidatePool: 500,
		DefaultLimit:  20,
		MaxLimit:      100,
	}
}

// service implements the events service
type service struct {
	repo   Repository
	ranker *matching.Ranker
	cache  Cache
	cfg    Config
	log    *logger.Logger
	now    func() time.Time
}

// NewService creates a new events service. A nil cache disables caching.
func NewService(repo Repository, ranker *matching.Ranker, cache Cache, cfg Config, log *logger.Logger) Service {
	if cache == nil {
		cache = NoopCache{}
	}
	return &service{
		repo:   repo,
		ranker: ranker,
		cache:  cache,
		cfg:    cfg,
		log:    log.With("component", "events"),
		now:    time.Now,
	}
}

func (s *service) ViewEvent(ctx context.Context, eventID uuid.UUID, viewerID *uuid.UUID) (*EventView, error) {
	event, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	view := &EventView{Event: event}
	if viewerID != nil {
		attending, err := s.repo.IsAttending(ctx, eventID, *viewerID)
		if err != nil {
			return nil, err
		}
		view.Attending = &attending
	}
	return view, nil
}

func (s *service) ListSimilarEvents(ctx context.Context, eventID uuid.UUID, limit int) ([]SimilarEvent, error) {
	limit = utils.ClampLimit(limit, s.cfg.DefaultLimit, s.cfg.MaxLimit)

	cached, ok, err := s.cache.Get(ctx, eventID, limit)
	if err != nil {
		s.log.Warn("similar events cache read failed", "event_id", eventID, "error", err)
	}
	if ok {
		recordCacheLookup("hit")
		return cached, nil
	}
	recordCacheLookup("miss")

	started := time.Now()
	subject, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.repo.ListCandidateEvents(ctx, CandidateFilter{
		Subject:  subject,
		Window:   s.cfg.Window,
		After:    s.now(),
		RadiusKm: s.cfg.RadiusKm,
		Limit:    s.cfg.CandidatePool,
	})
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*Event, len(candidates))
	raws := make([]matching.RawEvent, 0, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
		raws = append(raws, c.Raw())
	}

	ranked, err := s.ranker.RankEvents(matching.EventQuery{
		Subject:    subject.Raw(),
		Candidates: raws,
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}

	list := make([]SimilarEvent, 0, len(ranked))
	for _, c := range ranked {
		e := byID[c.ID]
		list = append(list, SimilarEvent{ScoredCandidate: c, Title: e.Title, StartsAt: e.StartsAt})
	}
	recordRankDuration(time.Since(started))

	if err := s.cache.Set(ctx, eventID, limit, list); err != nil {
		s.log.Warn("similar events cache write failed", "event_id", eventID, "error", err)
	}

	s.log.Debug("ranked similar events", "event_id", eventID, "candidates", len(candidates), "returned", len(list))
	return list, nil
}
