package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/rl1809/ticket-booking/internal/core/domain"
)

const TopicCompensationFailed = "booking.compensation-failed"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEscalator publishes stuck compensations. Messages are keyed by
// resource id so incidents for one resource stay ordered on one partition.
type KafkaEscalator struct {
	writer messageWriter
}

func NewKafkaEscalator(brokers []string, topic string) *KafkaEscalator {
	if topic == "" {
		topic = TopicCompensationFailed
	}
	return &KafkaEscalator{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
	}
}

func (e *KafkaEscalator) Escalate(ctx context.Context, incident domain.CompensationIncident) error {
	payload, err := json.Marshal(incident)
	if err != nil {
		return fmt.Errorf("marshal incident: %w", err)
	}

	msg := kafka.Message{
		Key:     []byte(incident.ResourceID),
		Value:   payload,
		Headers: injectTraceHeaders(ctx, nil),
	}
	if err := e.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish incident %s: %w", incident.ID, err)
	}
	return nil
}

func (e *KafkaEscalator) Close() error {
	return e.writer.Close()
}

func injectTraceHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	for k, v := range carrier {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return headers
}
