package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/price-tracker/internal/tracker/domain"
	"github.com/tair/price-tracker/pkg/logger"
)

var errSkipMessage = errors.New("message skipped")

// Relay consumes price drop events and hands them to a local notifier, so
// that alerts published by the server can be delivered on another machine.
type Relay struct {
	group    sarama.ConsumerGroup
	topic    string
	notifier domain.Notifier
}

// NewRelay creates a consumer group member for topic
func NewRelay(brokers []string, groupID, topic string, notifier domain.Notifier) (*Relay, error) {
	config := sarama.NewConfig()
	config.Version = sarama.V2_6_0_0
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	logger.Logger.Info().
		Strs("brokers", brokers).
		Str("group_id", groupID).
		Str("topic", topic).
		Msg("Kafka relay initialized")

	return newRelay(group, topic, notifier), nil
}

func newRelay(group sarama.ConsumerGroup, topic string, notifier domain.Notifier) *Relay {
	if topic == "" {
		topic = TopicPriceDrops
	}
	return &Relay{group: group, topic: topic, notifier: notifier}
}

// Run consumes until ctx is cancelled
func (r *Relay) Run(ctx context.Context) error {
	go func() {
		for err := range r.group.Errors() {
			logger.Logger.Error().Err(err).Msg("Consumer error")
		}
	}()

	handler := &groupHandler{relay: r}
	for {
		if err := r.group.Consume(ctx, []string{r.topic}, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			logger.Logger.Error().Err(err).Msg("Error from consumer")
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Close closes the consumer group
func (r *Relay) Close() error {
	if r.group != nil {
		return r.group.Close()
	}
	return nil
}

// handleMessage decodes one message and delivers its alert
func (r *Relay) handleMessage(ctx context.Context, message *sarama.ConsumerMessage) error {
	carrier := propagation.MapCarrier{}
	eventType := ""
	for _, header := range message.Headers {
		switch key := string(header.Key); key {
		case "traceparent", "tracestate":
			carrier[key] = string(header.Value)
		case "event_type":
			eventType = string(header.Value)
		}
	}
	ctx = otel.GetTextMapPropagator().Extract(ctx, carrier)

	ctx, span := otel.Tracer("kafka-consumer").Start(ctx, "kafka.consume.price_dropped",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.source", message.Topic),
			attribute.Int("messaging.kafka.partition", int(message.Partition)),
			attribute.Int64("messaging.kafka.offset", message.Offset),
		),
	)
	defer span.End()

	if eventType != EventTypePriceDrop {
		span.SetStatus(codes.Error, "Unknown event type")
		logger.Warn(ctx).Str("event_type", eventType).Msg("Skipping message with unknown event type")
		return errSkipMessage
	}

	var event PriceDropEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to unmarshal event")
		logger.Error(ctx).Err(err).Msg("Failed to unmarshal event")
		return errSkipMessage
	}
	span.SetAttributes(attribute.String("event.id", event.EventID))

	if err := r.notifier.Notify(ctx, event.Alert()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to deliver alert")
		logger.Error(ctx).
			Err(err).
			Str("event_id", event.EventID).
			Msg("Failed to deliver relayed alert")
		return err
	}

	logger.Info(ctx).
		Str("event_id", event.EventID).
		Uint("product_id", event.ProductID).
		Msg("Relayed price drop alert")
	return nil
}

// groupHandler implements sarama.ConsumerGroupHandler
type groupHandler struct {
	relay *Relay
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim marks every message, so relayed alerts are at-most-once
// like locally raised ones: a failed delivery is logged, not retried.
func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if err := h.relay.handleMessage(session.Context(), message); err != nil && !errors.Is(err, errSkipMessage) {
			logger.Debug(session.Context()).
				Int64("offset", message.Offset).
				Msg("Marking undelivered message as consumed")
		}
		session.MarkMessage(message, "")
	}
	return nil
}
