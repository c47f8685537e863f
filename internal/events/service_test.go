package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imadgeboyega/kiekky-events/internal/auth"
	"github.com/imadgeboyega/kiekky-events/internal/common/apperr"
	"github.com/imadgeboyega/kiekky-events/internal/common/logger"
	"github.com/imadgeboyega/kiekky-events/internal/common/utils"
	"github.com/imadgeboyega/kiekky-events/internal/matching"
)

var testNow = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]SimilarEvent
	gets    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]SimilarEvent)}
}

func (c *memoryCache) Get(_ context.Context, eventID uuid.UUID, limit int) ([]SimilarEvent, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	list, ok := c.entries[cacheKey(eventID, limit)]
	return list, ok, nil
}

func (c *memoryCache) Set(_ context.Context, eventID uuid.UUID, limit int, list []SimilarEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(eventID, limit)] = list
	return nil
}

func newTestService(repo Repository, cache Cache) *service {
	svc := NewService(repo, matching.NewRanker(), cache, DefaultConfig(), logger.NewNop()).(*service)
	svc.now = func() time.Time { return testNow }
	return svc
}

func putEvent(repo *MemoryRepository, title string, startsIn time.Duration, interests ...string) Event {
	e := Event{ID: uuid.New(), Title: title, Interests: pq.StringArray(interests), StartsAt: testNow.Add(startsIn)}
	repo.Put(e)
	return e
}

func TestListSimilarEvents(t *testing.T) {
	repo := NewMemoryRepository()
	day := 24 * time.Hour

	subject := putEvent(repo, "Jazz night", 3*day, "Jazz", "Wine")
	brunch := putEvent(repo, "Jazz brunch", 4*day, "jazz", "Wine")
	related := putEvent(repo, "Wine tasting", 30*day, "Wine")
	putEvent(repo, "Chess club", 60*day, "Chess")
	putEvent(repo, "Past jazz", -2*day, "Jazz")

	svc := newTestService(repo, nil)

	list, err := svc.ListSimilarEvents(context.Background(), subject.ID, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, brunch.ID, list[0].ID)
	assert.Equal(t, "Jazz brunch", list[0].Title)
	assert.Equal(t, related.ID, list[1].ID)
	assert.Greater(t, list[0].Score, list[1].Score)
	assert.NotEmpty(t, list[0].Reasons)

	list, err = svc.ListSimilarEvents(context.Background(), subject.ID, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func putEventAt(repo *MemoryRepository, title string, startsIn time.Duration, lat, lng float64, interests ...string) Event {
	e := Event{
		ID:        uuid.New(),
		Title:     title,
		Interests: pq.StringArray(interests),
		Latitude:  &lat,
		Longitude: &lng,
		StartsAt:  testNow.Add(startsIn),
	}
	repo.Put(e)
	return e
}

func TestListSimilarEventsIncludesNearbyEvents(t *testing.T) {
	repo := NewMemoryRepository()
	day := 24 * time.Hour

	subject := putEventAt(repo, "Jazz night", 3*day, 52.5200, 13.4050, "Jazz")
	sameVenue := putEventAt(repo, "Chess club", 40*day, 52.5200, 13.4050, "Chess")
	putEventAt(repo, "Chess in Paris", 40*day, 48.8566, 2.3522, "Chess")

	svc := newTestService(repo, nil)

	list, err := svc.ListSimilarEvents(context.Background(), subject.ID, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, sameVenue.ID, list[0].ID)
	assert.InDelta(t, 30.0, list[0].Score, 0.01)
}

func TestCandidatePoolPrefersSharedInterests(t *testing.T) {
	repo := NewMemoryRepository()
	day := 24 * time.Hour

	subject := putEvent(repo, "Jazz night", 30*day, "Jazz")
	putEvent(repo, "Chess club", 25*day, "Chess")
	later := putEvent(repo, "Jazz festival", 60*day, "Jazz")

	svc := newTestService(repo, nil)
	svc.cfg.CandidatePool = 1

	list, err := svc.ListSimilarEvents(context.Background(), subject.ID, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, later.ID, list[0].ID)
}

func TestBoundingBox(t *testing.T) {
	box := NewBoundingBox(60, 10, 25)
	assert.True(t, box.Contains(60+24/kmPerDegreeLat, 10))
	assert.True(t, box.Contains(60, 10+24/(kmPerDegreeLat*0.5)))
	assert.False(t, box.Contains(60+30/kmPerDegreeLat, 10))
	assert.False(t, box.Contains(60, 12))

	polar := NewBoundingBox(89.9, 0, 25)
	assert.True(t, polar.Contains(89.9, 179))

	dateline := NewBoundingBox(0, 179.9, 25)
	assert.True(t, dateline.Contains(0, -179.95))

	withoutCoords := CandidateFilter{Subject: &Event{}, RadiusKm: 25}
	_, ok := withoutCoords.Area()
	assert.False(t, ok)
}

func TestListSimilarEventsUnknownEvent(t *testing.T) {
	svc := newTestService(NewMemoryRepository(), nil)

	_, err := svc.ListSimilarEvents(context.Background(), uuid.New(), 10)
	assert.ErrorIs(t, err, ErrEventNotFound)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListSimilarEventsUsesCache(t *testing.T) {
	repo := NewMemoryRepository()
	subject := putEvent(repo, "Jazz night", 24*time.Hour, "Jazz")
	putEvent(repo, "Jazz brunch", 48*time.Hour, "Jazz")

	cache := newMemoryCache()
	svc := newTestService(repo, cache)

	first, err := svc.ListSimilarEvents(context.Background(), subject.ID, 5)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// A new event is invisible until the cached listing expires.
	putEvent(repo, "Jazz picnic", 24*time.Hour, "Jazz")
	second, err := svc.ListSimilarEvents(context.Background(), subject.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, cache.gets)
}

func TestSimilarEventsHandler(t *testing.T) {
	repo := NewMemoryRepository()
	subject := putEvent(repo, "Jazz night", 24*time.Hour, "Jazz")
	putEvent(repo, "Jazz brunch", 48*time.Hour, "Jazz")

	handler := NewHandler(newTestService(repo, nil), logger.NewNop())
	router := mux.NewRouter()
	router.HandleFunc("/events/{eventId}/similar", handler.ListSimilarEvents)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events/"+subject.ID.String()+"/similar?limit=3", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Count  int            `json:"count"`
			Events []SimilarEvent `json:"events"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 1, body.Data.Count)
	assert.Equal(t, "Jazz brunch", body.Data.Events[0].Title)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events/not-a-uuid/similar", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events/"+uuid.NewString()+"/similar", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetEventViewerContext(t *testing.T) {
	const secret = "test-secret"
	repo := NewMemoryRepository()
	event := putEvent(repo, "Jazz night", 24*time.Hour, "Jazz")
	attendee, stranger := uuid.New(), uuid.New()
	repo.Attend(event.ID, attendee)

	router := mux.NewRouter()
	RegisterRoutes(router, NewHandler(newTestService(repo, nil), logger.NewNop()), auth.NewMiddleware(secret, logger.NewNop()))

	get := func(t *testing.T, bearer string) (int, map[string]interface{}) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/events/"+event.ID.String(), nil)
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		var body struct {
			Data map[string]interface{} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return rec.Code, body.Data
	}
	tokenFor := func(t *testing.T, userID uuid.UUID) string {
		token, err := utils.GenerateJWT(utils.NewAccessClaims(userID, time.Hour), secret)
		require.NoError(t, err)
		return token
	}

	t.Run("anonymous", func(t *testing.T) {
		code, data := get(t, "")
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "Jazz night", data["title"])
		assert.NotContains(t, data, "attending")
	})

	t.Run("attendee", func(t *testing.T) {
		code, data := get(t, tokenFor(t, attendee))
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, true, data["attending"])
	})

	t.Run("other user", func(t *testing.T) {
		code, data := get(t, tokenFor(t, stranger))
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, false, data["attending"])
	})

	t.Run("invalid token reads anonymously", func(t *testing.T) {
		code, data := get(t, "garbage")
		require.Equal(t, http.StatusOK, code)
		assert.NotContains(t, data, "attending")
	})
}

func TestRedisCache(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	cache := NewRedisCache(client, time.Minute)
	eventID := uuid.New()
	t.Cleanup(func() { client.Del(ctx, cacheKey(eventID, 3)) })

	_, ok, err := cache.Get(ctx, eventID, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	want := []SimilarEvent{{
		ScoredCandidate: matching.ScoredCandidate{ID: uuid.New(), Score: 72.5, Reasons: []string{"Starts 1 day apart"}},
		Title:           "Jazz brunch",
		StartsAt:        testNow,
	}}
	require.NoError(t, cache.Set(ctx, eventID, 3, want))

	got, ok, err := cache.Get(ctx, eventID, 3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want[0].ID, got[0].ID)
	assert.Equal(t, want[0].Reasons, got[0].Reasons)
	assert.True(t, want[0].StartsAt.Equal(got[0].StartsAt))
}
