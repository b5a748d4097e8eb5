package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates all domain event types.
type EventType string

const (
	EventPlayerCreated      EventType = "gaming.player.created"
	EventPlayerScoreUpdated EventType = "gaming.player.score_updated"
	EventPlayerInfoUpdated  EventType = "gaming.player.info_updated"
	EventPlayerDeactivated  EventType = "gaming.player.deactivated"
	EventPlayerReactivated  EventType = "gaming.player.reactivated"
	EventSessionStarted     EventType = "gaming.session.started"
	EventSessionEnded       EventType = "gaming.session.ended"
)

// AggregateType enumerates the aggregate root types for outbox events.
type AggregateType string

const (
	AggregatePlayer  AggregateType = "player"
	AggregateSession AggregateType = "session"
)

// Event is a fact recorded by a domain mutation. Events are collected in an
// EventLog during a request and written to the outbox in the same store
// transaction as the entities that produced them.
type Event interface {
	EventType() EventType
	AggregateType() AggregateType
	AggregateID() string
	// PartitionKey keeps all events for one player ordered on the bus.
	PartitionKey() string
	OccurredAt() time.Time
}

// EventLog is the caller-supplied sink domain operations record into.
// A nil *EventLog discards events.
type EventLog struct {
	events []Event
}

func (l *EventLog) Record(e Event) {
	if l == nil {
		return
	}
	l.events = append(l.events, e)
}

func (l *EventLog) Events() []Event {
	if l == nil {
		return nil
	}
	return l.events
}

func (l *EventLog) Len() int {
	if l == nil {
		return 0
	}
	return len(l.events)
}

// Drafts converts the recorded events into outbox rows.
func (l *EventLog) Drafts() []OutboxDraft {
	drafts := make([]OutboxDraft, 0, l.Len())
	for _, e := range l.Events() {
		drafts = append(drafts, NewOutboxDraft(e))
	}
	return drafts
}

// OutboxDraft is the payload written to the event_outbox table.
type OutboxDraft struct {
	SeqID         int64           `json:"seqId,omitempty"`
	EventID       uuid.UUID       `json:"eventId"`
	AggregateType AggregateType   `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     EventType       `json:"eventType"`
	PartitionKey  string          `json:"partitionKey"`
	Headers       json.RawMessage `json:"headers"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

// NewOutboxDraft serializes e into an outbox row.
func NewOutboxDraft(e Event) OutboxDraft {
	payload, _ := json.Marshal(e)
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: e.AggregateType(),
		AggregateID:   e.AggregateID(),
		EventType:     e.EventType(),
		PartitionKey:  e.PartitionKey(),
		Headers:       json.RawMessage(`{}`),
		Payload:       payload,
		OccurredAt:    e.OccurredAt(),
	}
}
