package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rogerbap/gaminglibrary/internal/domain"
	"github.com/rogerbap/gaminglibrary/internal/events"
	"github.com/rogerbap/gaminglibrary/internal/infra"
	"github.com/spf13/cobra"
)

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Event bus commands",
	}

	cmd.AddCommand(newEventsTailCmd())

	return cmd
}

func newEventsTailCmd() *cobra.Command {
	var brokers, eventType string
	var count int

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Stream events of one type from Kafka",
		Long: `Read events of one type from its Kafka topic as they are published.

Event types:
  - gaming.player.created, gaming.player.score_updated, gaming.player.info_updated
  - gaming.player.deactivated, gaming.player.reactivated
  - gaming.session.started, gaming.session.ended

Press Ctrl+C to disconnect.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			topic, err := topicFor(eventType)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
			consumer := infra.NewKafkaConsumer(brokers, topic, "", true, logger)
			defer consumer.Close()

			fmt.Fprintf(cmd.ErrOrStderr(), "Tailing %s on %s\n", topic, brokers)
			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			for seen := 0; count <= 0 || seen < count; seen++ {
				msg, err := consumer.ReadMessage(ctx)
				if err != nil {
					if errors.Is(err, context.Canceled) || ctx.Err() != nil {
						return nil
					}
					return fmt.Errorf("read message: %w", err)
				}
				printEvent(out, msg.Value)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&brokers, "brokers", getEnvOrDefault("KAFKA_BROKERS", "localhost:9092"), "Kafka brokers (env: KAFKA_BROKERS)")
	cmd.Flags().StringVar(&eventType, "event", string(domain.EventSessionEnded), "Event type to follow")
	cmd.Flags().IntVar(&count, "count", 0, "Stop after this many events (0 streams until interrupted)")

	return cmd
}

// topicFor maps an event type such as gaming.session.ended onto its topic.
func topicFor(eventType string) (string, error) {
	parts := strings.Split(eventType, ".")
	if len(parts) != 3 || parts[0] != "gaming" {
		return "", fmt.Errorf("unknown event type %q", eventType)
	}
	return events.Topic(domain.OutboxDraft{
		AggregateType: domain.AggregateType(parts[1]),
		EventType:     domain.EventType(eventType),
	}), nil
}

func printEvent(out *Output, raw []byte) {
	var event domain.OutboxDraft
	if err := json.Unmarshal(raw, &event); err != nil {
		out.PrintMessage(string(raw))
		return
	}
	if out.format == "json" {
		fmt.Fprintln(out.w, string(raw))
		return
	}
	fmt.Fprintf(out.w, "%s  %s  %s  %s\n",
		event.OccurredAt.Format(time.RFC3339), event.EventType, event.AggregateID, string(event.Payload))
}
