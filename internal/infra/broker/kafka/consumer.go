package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

// MessageHandler processes one message. A returned error is treated as
// transient and the message is redelivered after a backoff; handlers drop
// poison messages themselves by returning nil.
type MessageHandler interface {
	Handle(ctx context.Context, msg *sarama.ConsumerMessage) error
}

type Consumer struct {
	group   sarama.ConsumerGroup
	handler MessageHandler
	backoff []time.Duration
	logger  *slog.Logger
}

func NewConsumer(brokers []string, groupID string, cfg *sarama.Config, handler MessageHandler, backoff []time.Duration, logger *slog.Logger) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if cfg == nil {
		cfg = NewConfig("staybook")
	}
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	g, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{group: g, handler: handler, backoff: backoff, logger: logger}, nil
}

// Run consumes topics until ctx is done, rejoining the group after rebalances.
func (c *Consumer) Run(ctx context.Context, topics []string) error {
	h := groupHandler{handler: c.handler, backoff: c.backoff, logger: c.logger}
	for {
		if err := c.group.Consume(ctx, topics, h); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

type groupHandler struct {
	handler MessageHandler
	backoff []time.Duration
	logger  *slog.Logger
}

func (h groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if !h.deliver(sess.Context(), message) {
			return nil
		}
		sess.MarkMessage(message, "")
	}
	return nil
}

// deliver retries message until it succeeds; it reports false when the session
// ended first, leaving the offset unmarked for the next owner.
func (h groupHandler) deliver(ctx context.Context, message *sarama.ConsumerMessage) bool {
	for attempt := 0; ; attempt++ {
		err := h.handler.Handle(ctx, message)
		if err == nil {
			return true
		}
		wait := retryDelay(h.backoff, attempt)
		h.logger.Error("kafka message handling failed",
			"topic", message.Topic,
			"partition", message.Partition,
			"offset", message.Offset,
			"attempt", attempt+1,
			"retry_in", wait,
			"err", err)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
	}
}

func retryDelay(backoff []time.Duration, attempt int) time.Duration {
	if len(backoff) == 0 {
		return time.Second
	}
	if attempt >= len(backoff) {
		return backoff[len(backoff)-1]
	}
	return backoff[attempt]
}
