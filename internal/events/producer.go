package events

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Shopify/sarama"
)

// Producer publishes game events to Kafka, keyed by game id so all events of
// one game land on the same partition. Delivery is fire-and-forget: errors
// are drained and logged, never surfaced to gameplay.
type Producer struct {
	logger *slog.Logger
	prod   sarama.AsyncProducer
	topic  string
}

func NewProducer(logger *slog.Logger, brokers []string, topic string) (*Producer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Return.Successes = false
	cfg.Producer.Return.Errors = true
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create async producer: %w", err)
	}

	producer := &Producer{
		logger: logger.With("component", "events-producer"),
		prod:   prod,
		topic:  topic,
	}

	go producer.drainErrors()

	return producer, nil
}

func (that *Producer) Publish(event GameEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		that.logger.Error("failed to marshal game event", "type", event.EventType, "error", err)
		return
	}

	that.prod.Input() <- &sarama.ProducerMessage{
		Topic: that.topic,
		Key:   sarama.StringEncoder(event.GameID),
		Value: sarama.ByteEncoder(data),
	}
}

func (that *Producer) drainErrors() {
	for err := range that.prod.Errors() {
		that.logger.Error("failed to deliver game event", "error", err)
	}
}

func (that *Producer) Close() error {
	if err := that.prod.Close(); err != nil {
		return fmt.Errorf("failed to close producer: %w", err)
	}

	return nil
}
