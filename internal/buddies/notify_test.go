package buddies

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imadgeboyega/kiekky-events/internal/auth"
	"github.com/imadgeboyega/kiekky-events/internal/common/logger"
)

type publishedMessage struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	published []publishedMessage
	err       error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, publishedMessage{subject: subject, data: data})
	return nil
}

type failingNotifier struct{}

func (failingNotifier) NotifyMatch(context.Context, MatchEvent) error {
	return errors.New("unreachable")
}

func sampleEvent(typ EventType, recipients ...uuid.UUID) MatchEvent {
	return MatchEvent{
		Type:       typ,
		Match:      &BuddyMatch{ID: uuid.New(), EventID: uuid.New(), Status: StatusAccepted},
		Recipients: recipients,
		OccurredAt: time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "buddy.match.requested", Subject(EventRequested))
	assert.Equal(t, "buddy.match.expired", Subject(EventExpired))
}

func TestNATSNotifier(t *testing.T) {
	pub := &fakePublisher{}
	recipient := uuid.New()
	event := sampleEvent(EventAccepted, recipient)

	require.NoError(t, NewNATSNotifier(pub).NotifyMatch(context.Background(), event))
	require.Len(t, pub.published, 1)
	assert.Equal(t, "buddy.match.accepted", pub.published[0].subject)

	var decoded MatchEvent
	require.NoError(t, json.Unmarshal(pub.published[0].data, &decoded))
	assert.Equal(t, EventAccepted, decoded.Type)
	assert.Equal(t, event.Match.ID, decoded.Match.ID)
	assert.Equal(t, []uuid.UUID{recipient}, decoded.Recipients)

	pub.err = errors.New("connection closed")
	assert.Error(t, NewNATSNotifier(pub).NotifyMatch(context.Background(), event))
}

func TestRelayForwardsPublishedEvents(t *testing.T) {
	pub := &fakePublisher{}
	recipient := uuid.New()
	event := sampleEvent(EventCancelled, recipient)
	require.NoError(t, NewNATSNotifier(pub).NotifyMatch(context.Background(), event))

	rec := &recorder{}
	relay := Relay(rec, logger.NewNop())
	relay(pub.published[0].subject, pub.published[0].data)
	relay("buddy.match.cancelled", []byte("{not json"))

	require.Equal(t, []EventType{EventCancelled}, rec.types())
	assert.Equal(t, event.Match.ID, rec.last().Match.ID)
	assert.Equal(t, []uuid.UUID{recipient}, rec.last().Recipients)
}

func TestMultiNotifier(t *testing.T) {
	rec := &recorder{}
	multi := MultiNotifier{rec, failingNotifier{}, NopNotifier{}}

	err := multi.NotifyMatch(context.Background(), sampleEvent(EventDeclined))
	assert.EqualError(t, err, "unreachable")
	assert.Equal(t, []EventType{EventDeclined}, rec.types())

	assert.NoError(t, MultiNotifier{rec}.NotifyMatch(context.Background(), sampleEvent(EventDeclined)))
}

func TestNotifierFailureDoesNotFailTransition(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture(t)
	m := NewManager(f.repo, f.attendance, failingNotifier{}, logger.NewNop())
	eventID := f.event(t, time.Now().Add(time.Hour))
	a, b := f.attendee(t, eventID), f.attendee(t, eventID)

	match, err := m.Request(ctx, a, b, eventID, 50)
	require.NoError(t, err)
	_, err = m.Accept(ctx, b, match.ID)
	require.NoError(t, err)
}

func TestHubDeliversToRecipients(t *testing.T) {
	hub := NewHub(logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	alice, bob := uuid.New(), uuid.New()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := uuid.MustParse(r.URL.Query().Get("user"))
		hub.ServeWS(w, r.WithContext(auth.WithUserID(r.Context(), userID)))
	}))
	defer server.Close()

	dial := func(userID uuid.UUID) *websocket.Conn {
		url := "ws" + strings.TrimPrefix(server.URL, "http") + "/?user=" + userID.String()
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return conn
	}
	aliceConn := dial(alice)
	bobConn := dial(bob)
	require.Eventually(t, func() bool {
		return hub.Connected(alice) == 1 && hub.Connected(bob) == 1
	}, 2*time.Second, 10*time.Millisecond)

	event := sampleEvent(EventRequested, bob)
	require.NoError(t, hub.NotifyMatch(ctx, event))

	bobConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, bobConn.ReadJSON(&msg))
	assert.Equal(t, EventRequested, msg.Type)
	assert.Equal(t, event.Match.ID, msg.Data.ID)

	// Alice was not a recipient.
	aliceConn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := aliceConn.ReadMessage()
	assert.Error(t, err)

	bobConn.Close()
	require.Eventually(t, func() bool { return hub.Connected(bob) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServeWSRequiresUser(t *testing.T) {
	hub := NewHub(logger.NewNop())
	rec := httptest.NewRecorder()
	hub.ServeWS(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
