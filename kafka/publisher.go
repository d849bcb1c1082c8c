package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/price-tracker/internal/tracker/domain"
	"github.com/tair/price-tracker/pkg/logger"
)

// Publisher publishes price drop alerts to Kafka. It implements domain.Notifier.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	now      func() time.Time
}

// NewProducerConfig returns the producer settings used by NewPublisher
func NewProducerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Retry.Max = 0 // alerts are attempted once
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.MaxMessageBytes = 1000000
	return config
}

// NewPublisher creates a new Kafka publisher
func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	logger.Logger.Info().
		Strs("brokers", brokers).
		Str("topic", topic).
		Msg("Kafka publisher initialized")

	return NewPublisherWithProducer(producer, topic), nil
}

// NewPublisherWithProducer wraps an existing producer
func NewPublisherWithProducer(producer sarama.SyncProducer, topic string) *Publisher {
	if topic == "" {
		topic = TopicPriceDrops
	}
	return &Publisher{producer: producer, topic: topic, now: time.Now}
}

// Notify publishes the alert as a PriceDropEvent with tracing
func (p *Publisher) Notify(ctx context.Context, alert domain.Alert) error {
	tracer := otel.Tracer("kafka-publisher")
	ctx, span := tracer.Start(ctx, "kafka.publish.price_dropped",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", p.topic),
			attribute.String("messaging.destination_kind", "topic"),
			attribute.String("event.type", EventTypePriceDrop),
			attribute.Int64("product.id", int64(alert.ProductID)),
			attribute.Float64("product.price", alert.Price),
		),
	)
	defer span.End()

	event := NewPriceDropEvent(alert)
	event.EventID = uuid.NewString()
	event.Timestamp = p.now()

	span.SetAttributes(attribute.String("event.id", event.EventID))

	eventBytes, err := json.Marshal(event)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to marshal event")
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// Inject trace context into Kafka headers
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := []sarama.RecordHeader{
		{Key: []byte("event_type"), Value: []byte(EventTypePriceDrop)},
		{Key: []byte("event_id"), Value: []byte(event.EventID)},
	}
	for key, value := range carrier {
		headers = append(headers, sarama.RecordHeader{Key: []byte(key), Value: []byte(value)})
	}

	msg := &sarama.ProducerMessage{
		Topic:   p.topic,
		Key:     sarama.StringEncoder(fmt.Sprintf("product_%d", alert.ProductID)),
		Value:   sarama.ByteEncoder(eventBytes),
		Headers: headers,
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to send message")
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}

	span.SetAttributes(
		attribute.Int("messaging.kafka.partition", int(partition)),
		attribute.Int64("messaging.kafka.offset", offset),
	)
	span.SetStatus(codes.Ok, "Event published successfully")

	logger.Info(ctx).
		Str("event_id", event.EventID).
		Str("topic", p.topic).
		Int32("partition", partition).
		Int64("offset", offset).
		Uint("product_id", alert.ProductID).
		Msg("Price drop event published")

	return nil
}

// Close closes the Kafka producer
func (p *Publisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
