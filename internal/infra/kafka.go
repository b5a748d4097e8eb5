package infra

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rogerbap/gaminglibrary/internal/domain"
	"github.com/rogerbap/gaminglibrary/internal/events"
	"github.com/segmentio/kafka-go"
)

// KafkaProducer wraps a kafka-go writer for publishing messages.
type KafkaProducer struct {
	writer  *kafka.Writer
	logger  *slog.Logger
	enabled bool
}

// NewKafkaProducer creates a Kafka producer. If brokers is empty or disabled, writes are no-ops.
func NewKafkaProducer(brokers string, enabled bool, logger *slog.Logger) *KafkaProducer {
	if !enabled || brokers == "" {
		logger.Info("kafka producer disabled")
		return &KafkaProducer{enabled: false, logger: logger}
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(brokers, ",")...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	logger.Info("kafka producer initialized", "brokers", brokers)
	return &KafkaProducer{writer: w, logger: logger, enabled: true}
}

func (p *KafkaProducer) Enabled() bool { return p.enabled }

// Publish sends a message to the given topic. No-op if disabled.
func (p *KafkaProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	if !p.enabled {
		return nil
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
	})
}

// Close shuts down the Kafka writer.
func (p *KafkaProducer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

// KafkaSink publishes outbox events to per-event topics, keyed by player so
// one player's events stay ordered on a partition.
type KafkaSink struct {
	producer *KafkaProducer
}

func NewKafkaSink(producer *KafkaProducer) *KafkaSink {
	return &KafkaSink{producer: producer}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Deliver(ctx context.Context, event domain.OutboxDraft) error {
	value, err := events.Envelope(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.EventID, err)
	}
	if err := s.producer.Publish(ctx, events.Topic(event), []byte(event.PartitionKey), value); err != nil {
		return fmt.Errorf("publish %s: %w", event.EventType, err)
	}
	return nil
}

// KafkaConsumer wraps a kafka-go reader for consuming messages.
type KafkaConsumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	enabled bool
}

// NewKafkaConsumer creates a Kafka consumer for the given topic and group.
// An empty groupID reads the partition directly from the latest offset.
func NewKafkaConsumer(brokers, topic, groupID string, enabled bool, logger *slog.Logger) *KafkaConsumer {
	if !enabled || brokers == "" {
		return &KafkaConsumer{enabled: false, logger: logger}
	}

	rc := kafka.ReaderConfig{
		Brokers:  strings.Split(brokers, ","),
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	}
	if groupID == "" {
		rc.StartOffset = kafka.LastOffset
	}

	return &KafkaConsumer{reader: kafka.NewReader(rc), logger: logger, enabled: true}
}

func (c *KafkaConsumer) Enabled() bool { return c.enabled }

// ReadMessage reads the next message from the consumer. Blocks until a message is available.
func (c *KafkaConsumer) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if !c.enabled {
		return kafka.Message{}, fmt.Errorf("kafka consumer disabled")
	}
	return c.reader.ReadMessage(ctx)
}

// Close shuts down the Kafka reader.
func (c *KafkaConsumer) Close() error {
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}
