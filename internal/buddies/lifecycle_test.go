package buddies

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imadgeboyega/kiekky-events/internal/common/apperr"
	"github.com/imadgeboyega/kiekky-events/internal/common/database"
	"github.com/imadgeboyega/kiekky-events/internal/common/logger"
	"github.com/imadgeboyega/kiekky-events/internal/events"
)

// fixture provides a store plus a way to seed events and attendees.
type fixture struct {
	repo       Repository
	attendance AttendanceChecker
	// event creates an event starting at startsAt.
	event func(t *testing.T, startsAt time.Time) uuid.UUID
	// attendee creates a user attending eventID.
	attendee func(t *testing.T, eventID uuid.UUID) uuid.UUID
}

func newMemoryFixture(t *testing.T) *fixture {
	roster := events.NewMemoryRepository()
	repo := NewMemoryRepository(func(ctx context.Context, eventID uuid.UUID) (time.Time, error) {
		e, err := roster.GetEvent(ctx, eventID)
		if err != nil {
			return time.Time{}, err
		}
		return e.StartsAt, nil
	})
	return &fixture{
		repo:       repo,
		attendance: roster,
		event: func(t *testing.T, startsAt time.Time) uuid.UUID {
			id := uuid.New()
			roster.Put(events.Event{ID: id, Title: "test", StartsAt: startsAt})
			return id
		},
		attendee: func(t *testing.T, eventID uuid.UUID) uuid.UUID {
			id := uuid.New()
			roster.Attend(eventID, id)
			return id
		},
	}
}

func newPostgresFixture(t *testing.T) *fixture {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Connect("postgres", url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = database.RunMigrations(db.DB)
	require.NoError(t, err)

	ctx := context.Background()
	return &fixture{
		repo:       NewPostgresRepository(db),
		attendance: events.NewPostgresRepository(db),
		event: func(t *testing.T, startsAt time.Time) uuid.UUID {
			id := uuid.New()
			_, err := db.ExecContext(ctx, `INSERT INTO events (id, title, starts_at) VALUES ($1, 'test', $2)`, id, startsAt)
			require.NoError(t, err)
			return id
		},
		attendee: func(t *testing.T, eventID uuid.UUID) uuid.UUID {
			id := uuid.New()
			_, err := db.ExecContext(ctx, `INSERT INTO users (id, display_name) VALUES ($1, 'tester')`, id)
			require.NoError(t, err)
			_, err = db.ExecContext(ctx, `INSERT INTO event_attendees (event_id, user_id) VALUES ($1, $2)`, eventID, id)
			require.NoError(t, err)
			return id
		},
	}
}

// recorder captures delivered match events.
type recorder struct {
	mu     sync.Mutex
	events []MatchEvent
}

func (r *recorder) NotifyMatch(_ context.Context, e MatchEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recorder) last() MatchEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func TestLifecycleMemory(t *testing.T) {
	runLifecycleSuite(t, newMemoryFixture)
}

func TestLifecyclePostgres(t *testing.T) {
	runLifecycleSuite(t, newPostgresFixture)
}

func runLifecycleSuite(t *testing.T, newFixture func(t *testing.T) *fixture) {
	ctx := context.Background()

	// setup returns a manager over a fresh event with two attendees.
	setup := func(t *testing.T) (*Manager, *recorder, *fixture, uuid.UUID, uuid.UUID, uuid.UUID) {
		f := newFixture(t)
		rec := &recorder{}
		m := NewManager(f.repo, f.attendance, rec, logger.NewNop())
		eventID := f.event(t, time.Now().Add(72*time.Hour))
		return m, rec, f, eventID, f.attendee(t, eventID), f.attendee(t, eventID)
	}

	t.Run("request creates pending match", func(t *testing.T) {
		m, rec, _, eventID, alice, bob := setup(t)

		match, err := m.Request(ctx, alice, bob, eventID, 72.5)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, match.Status)
		assert.True(t, match.AcceptedByA)
		assert.False(t, match.AcceptedByB)
		assert.Equal(t, alice, match.UserIDA)
		assert.Equal(t, 72.5, match.CompatibilityScore)

		stored, err := m.Get(ctx, bob, match.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, stored.Status)

		assert.Equal(t, []EventType{EventRequested}, rec.types())
		assert.Equal(t, []uuid.UUID{bob}, rec.last().Recipients)
	})

	t.Run("request validation", func(t *testing.T) {
		m, _, f, eventID, alice, bob := setup(t)
		outsider := f.attendee(t, f.event(t, time.Now().Add(time.Hour)))

		tests := []struct {
			name      string
			requester uuid.UUID
			target    uuid.UUID
			event     uuid.UUID
			score     float64
			want      error
		}{
			{"self", alice, alice, eventID, 50, ErrSelfMatch},
			{"nil target", alice, uuid.Nil, eventID, 50, ErrInvalidID},
			{"nil event", alice, bob, uuid.Nil, 50, ErrInvalidID},
			{"score above range", alice, bob, eventID, 100.5, ErrScoreOutOfRange},
			{"negative score", alice, bob, eventID, -1, ErrScoreOutOfRange},
			{"requester not attending", outsider, bob, eventID, 50, ErrRequesterNotAttending},
			{"target not attending", alice, outsider, eventID, 50, ErrTargetNotAttending},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := m.Request(ctx, tt.requester, tt.target, tt.event, tt.score)
				assert.ErrorIs(t, err, tt.want)
				assert.ErrorIs(t, err, apperr.ErrValidation)
			})
		}
	})

	t.Run("duplicate request conflicts until declined", func(t *testing.T) {
		m, _, _, eventID, alice, bob := setup(t)

		first, err := m.Request(ctx, alice, bob, eventID, 60)
		require.NoError(t, err)

		_, err = m.Request(ctx, alice, bob, eventID, 60)
		assert.ErrorIs(t, err, ErrActiveMatchExists)
		assert.ErrorIs(t, err, apperr.ErrConflict)

		// The pair is unordered.
		_, err = m.Request(ctx, bob, alice, eventID, 60)
		assert.ErrorIs(t, err, ErrActiveMatchExists)

		_, err = m.Decline(ctx, bob, first.ID)
		require.NoError(t, err)

		second, err := m.Request(ctx, alice, bob, eventID, 60)
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)
	})

	t.Run("same pair may match at another event", func(t *testing.T) {
		m, _, f, eventID, alice, bob := setup(t)
		_, err := m.Request(ctx, alice, bob, eventID, 60)
		require.NoError(t, err)

		other := f.event(t, time.Now().Add(48*time.Hour))
		carol := f.attendee(t, other)
		dave := f.attendee(t, other)
		_, err = m.Request(ctx, carol, dave, other, 60)
		require.NoError(t, err)
	})

	t.Run("accept is idempotent", func(t *testing.T) {
		m, rec, _, eventID, alice, bob := setup(t)
		match, err := m.Request(ctx, alice, bob, eventID, 80)
		require.NoError(t, err)

		_, err = m.Accept(ctx, alice, match.ID)
		assert.ErrorIs(t, err, ErrNotRecipient)
		assert.ErrorIs(t, err, apperr.ErrConflict)

		accepted, err := m.Accept(ctx, bob, match.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusAccepted, accepted.Status)
		assert.True(t, accepted.AcceptedByA)
		assert.True(t, accepted.AcceptedByB)
		require.NotNil(t, accepted.RespondedAt)

		again, err := m.Accept(ctx, bob, match.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusAccepted, again.Status)
		assert.True(t, again.AcceptedByB)

		assert.Equal(t, []EventType{EventRequested, EventAccepted}, rec.types())
		assert.ElementsMatch(t, []uuid.UUID{alice, bob}, rec.last().Recipients)
	})

	t.Run("access control", func(t *testing.T) {
		m, _, f, eventID, alice, bob := setup(t)
		mallory := f.attendee(t, eventID)
		match, err := m.Request(ctx, alice, bob, eventID, 80)
		require.NoError(t, err)

		_, err = m.Accept(ctx, mallory, match.ID)
		assert.ErrorIs(t, err, ErrNotParticipant)
		assert.ErrorIs(t, err, apperr.ErrForbidden)

		_, err = m.Cancel(ctx, mallory, match.ID)
		assert.ErrorIs(t, err, ErrNotParticipant)

		_, err = m.Decline(ctx, bob, uuid.New())
		assert.ErrorIs(t, err, ErrMatchNotFound)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("decline on accepted conflicts and cancel succeeds", func(t *testing.T) {
		m, rec, _, eventID, alice, bob := setup(t)
		match, err := m.Request(ctx, alice, bob, eventID, 80)
		require.NoError(t, err)
		_, err = m.Accept(ctx, bob, match.ID)
		require.NoError(t, err)

		_, err = m.Decline(ctx, bob, match.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.ErrorIs(t, err, apperr.ErrConflict)
		assert.Contains(t, err.Error(), "cannot decline a match that is accepted")

		cancelled, err := m.Cancel(ctx, alice, match.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, cancelled.Status)
		assert.Equal(t, uuid.NullUUID{UUID: alice, Valid: true}, cancelled.CancelledBy)
		assert.Equal(t, []uuid.UUID{bob}, rec.last().Recipients)

		_, err = m.Cancel(ctx, bob, match.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		_, err = m.Accept(ctx, bob, match.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)

		// A cancelled match frees the pair.
		_, err = m.Request(ctx, bob, alice, eventID, 80)
		require.NoError(t, err)
	})

	t.Run("acceptance flags record history", func(t *testing.T) {
		m, _, _, eventID, alice, bob := setup(t)
		match, err := m.Request(ctx, alice, bob, eventID, 80)
		require.NoError(t, err)
		_, err = m.Accept(ctx, bob, match.ID)
		require.NoError(t, err)
		cancelled, err := m.Cancel(ctx, bob, match.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, cancelled.Status)
		assert.True(t, cancelled.WasAccepted())

		declined, err := m.Request(ctx, alice, bob, eventID, 80)
		require.NoError(t, err)
		declined, err = m.Decline(ctx, bob, declined.ID)
		require.NoError(t, err)
		assert.True(t, declined.AcceptedByA)
		assert.False(t, declined.AcceptedByB)
		assert.False(t, declined.WasAccepted())
	})

	t.Run("terminal states", func(t *testing.T) {
		m, _, _, eventID, alice, bob := setup(t)
		match, err := m.Request(ctx, alice, bob, eventID, 80)
		require.NoError(t, err)
		declined, err := m.Decline(ctx, bob, match.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusDeclined, declined.Status)
		assert.NotNil(t, declined.RespondedAt)

		for name, op := range map[string]func(context.Context, uuid.UUID, uuid.UUID) (*BuddyMatch, error){
			"accept":  m.Accept,
			"decline": m.Decline,
			"cancel":  m.Cancel,
		} {
			_, err := op(ctx, bob, match.ID)
			assert.ErrorIs(t, err, ErrInvalidTransition, name)
		}
	})

	t.Run("requester may cancel a pending request", func(t *testing.T) {
		m, _, _, eventID, alice, bob := setup(t)
		match, err := m.Request(ctx, alice, bob, eventID, 80)
		require.NoError(t, err)

		cancelled, err := m.Cancel(ctx, alice, match.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, cancelled.Status)
		assert.Nil(t, cancelled.RespondedAt)
	})

	t.Run("active partners and listings", func(t *testing.T) {
		m, _, f, eventID, alice, bob := setup(t)
		carol := f.attendee(t, eventID)
		dave := f.attendee(t, eventID)

		ab, err := m.Request(ctx, alice, bob, eventID, 80)
		require.NoError(t, err)
		ca, err := m.Request(ctx, carol, alice, eventID, 70)
		require.NoError(t, err)
		ad, err := m.Request(ctx, alice, dave, eventID, 60)
		require.NoError(t, err)
		_, err = m.Decline(ctx, dave, ad.ID)
		require.NoError(t, err)
		_, err = m.Accept(ctx, alice, ca.ID)
		require.NoError(t, err)

		partners, err := f.repo.ActivePartnerIDs(ctx, eventID, alice)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{bob, carol}, partners)

		active, err := f.repo.ListUserMatches(ctx, alice, ActiveStatuses)
		require.NoError(t, err)
		assert.Len(t, active, 2)

		all, err := f.repo.ListUserMatches(ctx, alice, nil)
		require.NoError(t, err)
		assert.Len(t, all, 3)

		found, err := f.repo.FindActive(ctx, eventID, bob, alice)
		require.NoError(t, err)
		assert.Equal(t, ab.ID, found.ID)

		_, err = f.repo.FindActive(ctx, eventID, alice, dave)
		assert.ErrorIs(t, err, ErrMatchNotFound)
	})

	t.Run("expire started events", func(t *testing.T) {
		f := newFixture(t)
		rec := &recorder{}
		m := NewManager(f.repo, f.attendance, rec, logger.NewNop())

		started := f.event(t, time.Now().Add(-time.Hour))
		alice, bob, carol := f.attendee(t, started), f.attendee(t, started), f.attendee(t, started)
		pending, err := m.Request(ctx, alice, bob, started, 50)
		require.NoError(t, err)
		accepted, err := m.Request(ctx, alice, carol, started, 50)
		require.NoError(t, err)
		_, err = m.Accept(ctx, carol, accepted.ID)
		require.NoError(t, err)

		upcoming := f.event(t, time.Now().Add(time.Hour))
		dave, erin := f.attendee(t, upcoming), f.attendee(t, upcoming)
		future, err := m.Request(ctx, dave, erin, upcoming, 50)
		require.NoError(t, err)

		n, err := m.ExpireStarted(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 1)

		got, err := m.Get(ctx, alice, pending.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, got.Status)
		assert.False(t, got.CancelledBy.Valid)

		got, err = m.Get(ctx, alice, accepted.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusAccepted, got.Status)

		got, err = m.Get(ctx, dave, future.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, got.Status)

		assert.Contains(t, rec.types(), EventExpired)
	})

	t.Run("concurrent requests for one pair", func(t *testing.T) {
		m, _, _, eventID, alice, bob := setup(t)

		const n = 16
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			conflicts int
			others    []error
		)
		start := make(chan struct{})
		for i := 0; i < n; i++ {
			requester, target := alice, bob
			if i%2 == 1 {
				requester, target = bob, alice
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := m.Request(ctx, requester, target, eventID, 50)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					successes++
				case errors.Is(err, ErrActiveMatchExists):
					conflicts++
				default:
					others = append(others, err)
				}
			}()
		}
		close(start)
		wg.Wait()

		assert.Empty(t, others)
		assert.Equal(t, 1, successes)
		assert.Equal(t, n-1, conflicts)
	})

	t.Run("concurrent accept and cancel", func(t *testing.T) {
		m, _, _, eventID, alice, bob := setup(t)
		match, err := m.Request(ctx, alice, bob, eventID, 50)
		require.NoError(t, err)

		var wg sync.WaitGroup
		var acceptErr, cancelErr error
		wg.Add(2)
		go func() { defer wg.Done(); _, acceptErr = m.Accept(ctx, bob, match.ID) }()
		go func() { defer wg.Done(); _, cancelErr = m.Cancel(ctx, alice, match.ID) }()
		wg.Wait()

		// Cancel always wins eventually: either it cancelled the pending
		// request or the accepted match.
		require.NoError(t, cancelErr)
		if acceptErr != nil {
			assert.ErrorIs(t, acceptErr, ErrInvalidTransition)
		}
		got, err := m.Get(ctx, alice, match.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, got.Status)
	})
}

func TestMemoryStats(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture(t)
	m := NewManager(f.repo, f.attendance, nil, logger.NewNop())
	eventID := f.event(t, time.Now().Add(time.Hour))
	a, b, c, d := f.attendee(t, eventID), f.attendee(t, eventID), f.attendee(t, eventID), f.attendee(t, eventID)

	ab, err := m.Request(ctx, a, b, eventID, 80)
	require.NoError(t, err)
	ac, err := m.Request(ctx, a, c, eventID, 60)
	require.NoError(t, err)
	ad, err := m.Request(ctx, a, d, eventID, 40)
	require.NoError(t, err)
	_, err = m.Request(ctx, b, c, eventID, 30)
	require.NoError(t, err)

	_, err = m.Accept(ctx, b, ab.ID)
	require.NoError(t, err)
	_, err = m.Accept(ctx, c, ac.ID)
	require.NoError(t, err)
	_, err = m.Cancel(ctx, a, ac.ID)
	require.NoError(t, err)
	_, err = m.Decline(ctx, d, ad.ID)
	require.NoError(t, err)

	stats, err := f.repo.Stats(ctx, uuid.NullUUID{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Pending)
	assert.Equal(t, int64(1), stats.Accepted)
	assert.Equal(t, int64(1), stats.Declined)
	assert.Equal(t, int64(1), stats.Cancelled)
	assert.Equal(t, int64(3), stats.Responded)
	assert.Equal(t, int64(2), stats.EverAccepted)
	assert.InDelta(t, 2.0/3.0, stats.AcceptanceRate, 1e-9)
	assert.InDelta(t, 70.0, stats.AverageAcceptedScore, 1e-9)
	assert.False(t, stats.GeneratedAt.IsZero())
}

func TestFlagsConsistent(t *testing.T) {
	tests := []struct {
		status Status
		a, b   bool
		want   bool
	}{
		{StatusPending, true, false, true},
		{StatusPending, true, true, false},
		{StatusAccepted, true, true, true},
		{StatusAccepted, true, false, false},
		{StatusDeclined, true, false, true},
		{StatusDeclined, true, true, false},
		{StatusCancelled, true, false, true},
		{StatusCancelled, true, true, true},
		{StatusCancelled, false, false, false},
	}
	for _, tt := range tests {
		m := &BuddyMatch{Status: tt.status, AcceptedByA: tt.a, AcceptedByB: tt.b}
		assert.Equal(t, tt.want, m.flagsConsistent(), "%s a=%v b=%v", tt.status, tt.a, tt.b)
	}
}

func TestPairKeyIsUnordered(t *testing.T) {
	event, a, b := uuid.New(), uuid.New(), uuid.New()
	assert.Equal(t, NewPairKey(event, a, b), NewPairKey(event, b, a))
	assert.NotEqual(t, NewPairKey(event, a, b), NewPairKey(uuid.New(), a, b))
}
