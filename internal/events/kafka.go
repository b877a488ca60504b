package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/sirupsen/logrus"

	"dairy-market-lab/internal/observability"
)

// Kafka defaults.
const (
	DefaultKafkaBroker  = "localhost:9092"
	DefaultKafkaTopic   = "dairy_market_events"
	DefaultFlushTimeout = 5 * time.Second
)

// KafkaConfig holds producer settings.
type KafkaConfig struct {
	Broker string
	Topic  string
}

// KafkaPublisher produces events to a single topic. Delivery failures are
// reported asynchronously by the delivery report loop.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
	logger   logrus.FieldLogger

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewKafkaPublisher creates the producer and starts the delivery report loop.
func NewKafkaPublisher(cfg KafkaConfig, logger logrus.FieldLogger) (*KafkaPublisher, error) {
	if cfg.Broker == "" {
		cfg.Broker = DefaultKafkaBroker
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultKafkaTopic
	}

	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Broker,
		"acks":              "all",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	p := &KafkaPublisher{
		producer: producer,
		topic:    cfg.Topic,
		logger:   logger,
	}
	p.wg.Add(1)
	go p.deliveryReports()

	logger.WithFields(logrus.Fields{
		"broker": cfg.Broker,
		"topic":  cfg.Topic,
	}).Info("Kafka producer initialized")
	return p, nil
}

// Compile-time interface check.
var _ Publisher = (*KafkaPublisher)(nil)

// Publish enqueues the event. Returns an error when the local queue rejects it.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := buildMessage(p.topic, e)
	if err != nil {
		observability.RecordEventPublished(p.topic, err)
		return err
	}

	if err := p.producer.Produce(msg, nil); err != nil {
		observability.RecordEventPublished(p.topic, err)
		return fmt.Errorf("produce %s: %w", e.Type, err)
	}
	return nil
}

// Close flushes pending messages and closes the producer. Safe to call twice.
func (p *KafkaPublisher) Close() error {
	p.closeOnce.Do(func() {
		if remaining := p.producer.Flush(int(DefaultFlushTimeout / time.Millisecond)); remaining > 0 {
			p.logger.WithField("remaining", remaining).Warn("Kafka flush timed out")
		}
		p.producer.Close()
		p.wg.Wait()
		p.logger.Info("Kafka producer closed")
	})
	return nil
}

// deliveryReports drains the producer events channel until Close.
func (p *KafkaPublisher) deliveryReports() {
	defer p.wg.Done()

	for ev := range p.producer.Events() {
		switch m := ev.(type) {
		case *kafka.Message:
			err := m.TopicPartition.Error
			observability.RecordEventPublished(p.topic, err)
			if err != nil {
				p.logger.WithError(err).WithField("key", string(m.Key)).Error("Message delivery failed")
			}
		case kafka.Error:
			p.logger.WithError(m).Warn("Kafka producer error")
		}
	}
}

func buildMessage(topic string, e Event) (*kafka.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(e.Key),
		Value:          value,
		Timestamp:      e.OccurredAt,
		Headers:        []kafka.Header{{Key: "event_type", Value: []byte(e.Type)}},
	}, nil
}
