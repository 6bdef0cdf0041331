// Package kafka publishes messages through segmentio/kafka-go.
package kafka

import (
	"context"
	"time"

	"clob/infra/logging"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// Message is one keyed record for the broker.
type Message struct {
	Key   []byte
	Value []byte
}

// messageWriter is the part of *kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer messageWriter
}

func NewProducer(log *logging.Logger, brokers []string, topic string) *Producer {
	log = log.Named("kafka-go")
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
			Logger:       kafka.LoggerFunc(log.Printf),
			ErrorLogger:  kafka.LoggerFunc(log.Errorf),
		},
	}
}

// Publish writes msgs synchronously; either all of them are acknowledged
// by every in-sync replica or an error is returned.
func (p *Producer) Publish(ctx context.Context, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]kafka.Message, len(msgs))
	for i, m := range msgs {
		out[i] = kafka.Message{Key: m.Key, Value: m.Value}
	}
	return errors.Wrap(p.writer.WriteMessages(ctx, out...), "kafka-go publish")
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
