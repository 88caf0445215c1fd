package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Shopify/sarama"
)

type eventProcessor interface {
	Process(ctx context.Context, event *GameEvent) error
}

// Consumer feeds the analytics worker from the game event topic. It runs as
// part of the backend process; a processing failure skips the event and moves
// on, it never stops the group.
type Consumer struct {
	logger    *slog.Logger
	group     sarama.ConsumerGroup
	topic     string
	processor eventProcessor
}

func NewConsumer(logger *slog.Logger, brokers []string, groupID, topic string, processor eventProcessor) (*Consumer, error) {
	cfg := sarama.NewConfig()
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &Consumer{
		logger:    logger.With("component", "events-consumer"),
		group:     group,
		topic:     topic,
		processor: processor,
	}, nil
}

// Run - consumes until the context is cancelled.
func (that *Consumer) Run(ctx context.Context) error {
	go func() {
		for err := range that.group.Errors() {
			that.logger.Error("consumer group error", "error", err)
		}
	}()

	handler := &groupHandler{logger: that.logger, processor: that.processor}

	for {
		if err := that.group.Consume(ctx, []string{that.topic}, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return fmt.Errorf("failed to consume: %w", err)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (that *Consumer) Close() error {
	if err := that.group.Close(); err != nil {
		return fmt.Errorf("failed to close consumer group: %w", err)
	}

	return nil
}

type groupHandler struct {
	logger    *slog.Logger
	processor eventProcessor
}

func (that *groupHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (that *groupHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

func (that *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		var event GameEvent
		if err := json.Unmarshal(message.Value, &event); err != nil {
			that.logger.Error("failed to unmarshal game event", "offset", message.Offset, "error", err)
			session.MarkMessage(message, "")
			continue
		}

		if err := that.processor.Process(session.Context(), &event); err != nil {
			that.logger.Error("failed to process game event", "type", event.EventType, "gameID", event.GameID, "error", err)
		}

		session.MarkMessage(message, "")
	}

	return nil
}
