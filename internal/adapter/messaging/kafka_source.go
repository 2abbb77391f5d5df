package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/rl1809/ticket-booking/internal/core/domain"
	"github.com/rl1809/ticket-booking/internal/port"
)

var ErrMalformedIncident = errors.New("malformed incident")

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaIncidentSource reads escalated incidents with explicit commits. An
// incident that is never acknowledged is redelivered to the group.
type KafkaIncidentSource struct {
	reader messageReader
}

func NewKafkaIncidentSource(brokers []string, topic, group string) *KafkaIncidentSource {
	if topic == "" {
		topic = TopicCompensationFailed
	}
	return &KafkaIncidentSource{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: group,
		}),
	}
}

func (s *KafkaIncidentSource) Next(ctx context.Context) (port.Delivery, error) {
	msg, err := s.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	return &kafkaDelivery{reader: s.reader, msg: msg}, nil
}

func (s *KafkaIncidentSource) Close() error {
	return s.reader.Close()
}

type kafkaDelivery struct {
	reader messageReader
	msg    kafka.Message
}

func (d *kafkaDelivery) Incident() (domain.CompensationIncident, error) {
	var incident domain.CompensationIncident
	if err := json.Unmarshal(d.msg.Value, &incident); err != nil {
		return domain.CompensationIncident{}, fmt.Errorf("%w at offset %d: %w", ErrMalformedIncident, d.msg.Offset, err)
	}
	if incident.ResourceID == "" || incident.ReservationID == "" {
		return domain.CompensationIncident{}, fmt.Errorf("%w at offset %d: missing resource or reservation id",
			ErrMalformedIncident, d.msg.Offset)
	}
	return incident, nil
}

func (d *kafkaDelivery) Ack(ctx context.Context) error {
	if err := d.reader.CommitMessages(ctx, d.msg); err != nil {
		return fmt.Errorf("commit offset %d: %w", d.msg.Offset, err)
	}
	return nil
}
