package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaSink forwards domain events to a Kafka topic, best effort.
// With no brokers configured every call is a no-op.
type KafkaSink struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaSink creates the sink.
func NewKafkaSink(brokers []string, topic string, logger *zap.Logger) *KafkaSink {
	if len(brokers) == 0 || topic == "" {
		return &KafkaSink{logger: logger}
	}
	return &KafkaSink{
		logger: logger,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Enabled reports whether events are forwarded.
func (s *KafkaSink) Enabled() bool {
	return s.writer != nil
}

// Handle is an EventHandler writing the event keyed by entity.
func (s *KafkaSink) Handle(ctx context.Context, event Event) error {
	if s.writer == nil {
		return nil
	}
	msg, err := kafkaMessage(event)
	if err != nil {
		return err
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		s.logger.Warn("kafka write failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
	return nil
}

// Close flushes and closes the writer.
func (s *KafkaSink) Close() error {
	if s.writer == nil {
		return nil
	}
	return s.writer.Close()
}

func kafkaMessage(event Event) (kafka.Message, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(event.EntityType + ":" + strconv.FormatInt(event.EntityID, 10)),
		Value: body,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}, nil
}
