package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
)

const DefaultAuditTopic = "sectorgoals.audit"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaAuditSink writes one message per audit event keyed by entity id, so
// events for the same entity stay ordered within a partition.
type KafkaAuditSink struct {
	log *logger.Logger
	w   messageWriter
}

func NewKafkaAuditSink(brokers []string, topic string, log *logger.Logger) (*KafkaAuditSink, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers required")
	}
	if topic == "" {
		topic = DefaultAuditTopic
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return newKafkaAuditSink(w, log), nil
}

func newKafkaAuditSink(w messageWriter, log *logger.Logger) *KafkaAuditSink {
	return &KafkaAuditSink{log: log.With("service", "KafkaAuditSink"), w: w}
}

func (s *KafkaAuditSink) Audit(ctx context.Context, ev AuditEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.EntityID),
		Value: raw,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(ev.Kind)},
		},
	})
}

func (s *KafkaAuditSink) Close() error { return s.w.Close() }
