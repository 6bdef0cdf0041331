package reporter

import (
	"context"

	"clob/infra/kafka"
	"clob/infra/logging"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
)

// Publisher hands a batch of report messages to the broker. A nil error
// means every message was acknowledged.
type Publisher interface {
	Publish(ctx context.Context, msgs []kafka.Message) error
	Close() error
}

const (
	DriverSarama  = "sarama"
	DriverKafkaGo = "kafka-go"
	DriverLog     = "log"
)

// NewPublisher builds the publisher selected by cfg.Driver.
func NewPublisher(log *logging.Logger, cfg Config) (Publisher, error) {
	switch cfg.Driver {
	case DriverSarama:
		return NewSaramaPublisher(log, cfg.Brokers, cfg.Topic)
	case DriverKafkaGo:
		return kafka.NewProducer(log, cfg.Brokers, cfg.Topic), nil
	case DriverLog:
		return &LogPublisher{log: log.Named("reports")}, nil
	default:
		return nil, errors.Errorf("unknown report driver %q", cfg.Driver)
	}
}

type SaramaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewSaramaPublisher(log *logging.Logger, brokers []string, topic string) (*SaramaPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	sarama.Logger = log.Named("sarama").StdLogger()

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "creating sarama producer")
	}
	log.Named("sarama").Info("producer connected", logging.Strings("brokers", brokers), logging.String("topic", topic))
	return newSaramaPublisher(producer, topic), nil
}

func newSaramaPublisher(producer sarama.SyncProducer, topic string) *SaramaPublisher {
	return &SaramaPublisher{producer: producer, topic: topic}
}

func (p *SaramaPublisher) Publish(_ context.Context, msgs []kafka.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]*sarama.ProducerMessage, len(msgs))
	for i, m := range msgs {
		out[i] = &sarama.ProducerMessage{
			Topic: p.topic,
			Key:   sarama.ByteEncoder(m.Key),
			Value: sarama.ByteEncoder(m.Value),
		}
	}
	return errors.Wrap(p.producer.SendMessages(out), "sarama publish")
}

func (p *SaramaPublisher) Close() error {
	return p.producer.Close()
}

// LogPublisher writes reports to the log instead of a broker.
type LogPublisher struct {
	log *logging.Logger
}

func (p *LogPublisher) Publish(_ context.Context, msgs []kafka.Message) error {
	for _, m := range msgs {
		r, err := DecodeReport(m.Value)
		if err != nil {
			return err
		}
		p.log.Info("execution report",
			logging.Instrument(r.Instrument),
			logging.Uint64("seq", r.Seq),
			logging.Uint64("buy-order", r.BuyOrderID),
			logging.Uint64("sell-order", r.SellOrderID),
			logging.Uint64("price", r.Price),
			logging.Uint64("size", r.Size),
			logging.String("aggressor", r.Aggressor.String()))
	}
	return nil
}

func (p *LogPublisher) Close() error { return nil }
