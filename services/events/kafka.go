package eventsvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"github.com/trezcool/edupulse/core"
	"github.com/trezcool/edupulse/core/weekly"
)

// messageWriter is satisfied by *kafka.Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes snapshot events as JSON, keyed by week start so that the events
// of a week stay ordered within one partition.
type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
}

var _ weekly.EventPublisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(conf *core.Config) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(conf.Kafka.Brokers...),
			Topic:        conf.Kafka.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
			Async:        false,
		},
		timeout: 5 * time.Second,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev weekly.SnapshotEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "encoding snapshot event")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(ev.WeekStart),
		Value:   value,
		Time:    ev.OccurredAt,
		Headers: []kafka.Header{{Key: "type", Value: []byte(ev.Type)}},
	})
	return errors.Wrap(err, "writing snapshot event")
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Publisher is a weekly.EventPublisher that can be closed on shutdown.
type Publisher interface {
	weekly.EventPublisher
	Close() error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, weekly.SnapshotEvent) error { return nil }
func (noopPublisher) Close() error                                      { return nil }

// NewPublisher returns a Kafka publisher when brokers are configured and a no-op one otherwise.
func NewPublisher(conf *core.Config, logger core.Logger) Publisher {
	if len(conf.Kafka.Brokers) == 0 || conf.TestMode {
		logger.Info("events: no kafka brokers configured, snapshot events are dropped")
		return noopPublisher{}
	}
	return NewKafkaPublisher(conf)
}
