package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/rogerbap/gaminglibrary/internal/domain"
)

// Topic maps an event onto its bus topic, e.g. "gaminglibrary.session.ended"
// for gaming.session.ended.
func Topic(event domain.OutboxDraft) string {
	suffix := string(event.EventType)
	if i := strings.LastIndex(suffix, "."); i >= 0 {
		suffix = suffix[i+1:]
	}
	return "gaminglibrary." + string(event.AggregateType) + "." + suffix
}

// Envelope serializes an event for sinks that forward it verbatim.
func Envelope(event domain.OutboxDraft) ([]byte, error) {
	return json.Marshal(event)
}

// LogSink writes every event to the logger. It is the fallback sink when no
// other is configured, so the outbox still drains.
type LogSink struct {
	Logger *slog.Logger
}

func (LogSink) Name() string { return "log" }

func (s LogSink) Deliver(ctx context.Context, event domain.OutboxDraft) error {
	s.Logger.InfoContext(ctx, "domain event",
		"event_id", event.EventID.String(),
		"event_type", string(event.EventType),
		"aggregate_id", event.AggregateID,
		"topic", Topic(event),
	)
	return nil
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc struct {
	SinkName string
	Fn       func(ctx context.Context, event domain.OutboxDraft) error
}

func (f SinkFunc) Name() string { return f.SinkName }

func (f SinkFunc) Deliver(ctx context.Context, event domain.OutboxDraft) error {
	return f.Fn(ctx, event)
}
