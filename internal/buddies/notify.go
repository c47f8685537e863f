// internal/buddies/notify.go

package buddies

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/imadgeboyega/kiekky-events/internal/common/logger"
)

// EventType names a committed lifecycle change.
type EventType string

const (
	EventRequested EventType = "buddy.requested"
	EventAccepted  EventType = "buddy.accepted"
	EventDeclined  EventType = "buddy.declined"
	EventCancelled EventType = "buddy.cancelled"
	EventExpired   EventType = "buddy.expired"
)

// MatchEvent is emitted after a transition commits.
type MatchEvent struct {
	Type       EventType   `json:"type"`
	Match      *BuddyMatch `json:"match"`
	Recipients []uuid.UUID `json:"recipients"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// Notifier delivers match events. Failures never roll back a transition.
type Notifier interface {
	NotifyMatch(ctx context.Context, event MatchEvent) error
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) NotifyMatch(context.Context, MatchEvent) error { return nil }

// MultiNotifier fans an event out to every notifier and joins their errors.
type MultiNotifier []Notifier

func (mn MultiNotifier) NotifyMatch(ctx context.Context, event MatchEvent) error {
	var errs []error
	for _, n := range mn {
		if err := n.NotifyMatch(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Publisher is the subset of the NATS client used for match events.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes events on buddy.match.<action>.
type NATSNotifier struct {
	pub Publisher
}

func NewNATSNotifier(pub Publisher) *NATSNotifier {
	return &NATSNotifier{pub: pub}
}

func (n *NATSNotifier) NotifyMatch(_ context.Context, event MatchEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode match event: %w", err)
	}
	if err := n.pub.Publish(Subject(event.Type), data); err != nil {
		return fmt.Errorf("failed to publish match event: %w", err)
	}
	return nil
}

// Relay decodes match events received from NATS and hands them to next,
// typically the local websocket hub.
func Relay(next Notifier, log *logger.Logger) func(subject string, data []byte) {
	return func(subject string, data []byte) {
		var event MatchEvent
		if err := json.Unmarshal(data, &event); err != nil {
			log.Warn("Dropping undecodable match event", "subject", subject, "error", err)
			return
		}
		if err := next.NotifyMatch(context.Background(), event); err != nil {
			log.Warn("Failed to relay match event", "subject", subject, "type", event.Type, "error", err)
		}
	}
}

// Subject returns the NATS subject for an event type.
func Subject(t EventType) string {
	return "buddy.match." + strings.TrimPrefix(string(t), "buddy.")
}
