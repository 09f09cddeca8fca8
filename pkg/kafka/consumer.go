// Package kafka carries counter updates between the API processes and the
// indexer's sync consumer over segmentio/kafka-go. Events are JSON, keyed by
// recipe id, and tagged with an event-type header.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/resilience"
	"github.com/segmentio/kafka-go"
)

const (
	headerEventType   = "event-type"
	headerContentType = "content-type"
)

// Message is a fetched record as seen by a MessageHandler.
type Message struct {
	Key       []byte
	Type      string
	Value     []byte
	Partition int
	Offset    int64
	Time      time.Time
}

// MessageHandler processes one message. A nil return commits the offset.
type MessageHandler func(ctx context.Context, msg Message) error

// Consumer reads a topic as part of a consumer group. Handler errors that
// look like engine outages are retried with backoff before the message is
// given up on; any other error is logged and the message committed, since
// redelivering it would fail the same way.
type Consumer struct {
	reader  *kafka.Reader
	handler MessageHandler
	retry   resilience.RetryConfig
	logger  *slog.Logger
}

// NewConsumer creates a Consumer for topic.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    topic,
			GroupID:  cfg.ConsumerGroup,
			MinBytes: 1,
			MaxBytes: 10e6,
			MaxWait:  500 * time.Millisecond,
			// A new group replays retained updates; applying a counter value
			// twice is harmless.
			StartOffset: kafka.FirstOffset,
		}),
		handler: handler,
		retry: resilience.RetryConfig{
			MaxAttempts:  5,
			InitialDelay: 250 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Retryable:    apperrors.IsEngineFailure,
		},
		logger: slog.Default().With("component", "kafka-consumer", "topic", topic, "group", cfg.ConsumerGroup),
	}
}

// Start consumes until ctx is cancelled, then closes the reader.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.reader.Close()
	for {
		km, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping")
				return nil
			}
			c.logger.Error("fetch failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		msg := toMessage(km)
		err = resilience.Retry(ctx, "kafka.handle", c.retry, func() error {
			return c.handler(ctx, msg)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("message dropped after handler failure",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"key", string(msg.Key),
				"error", err,
			)
		}
		if err := c.reader.CommitMessages(ctx, km); err != nil && ctx.Err() == nil {
			c.logger.Error("commit failed", "partition", km.Partition, "offset", km.Offset, "error", err)
		}
	}
}

// Close closes the reader. Start also closes it on return.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

func toMessage(km kafka.Message) Message {
	msg := Message{
		Key:       km.Key,
		Value:     km.Value,
		Partition: km.Partition,
		Offset:    km.Offset,
		Time:      km.Time,
	}
	for _, h := range km.Headers {
		if h.Key == headerEventType {
			msg.Type = string(h.Value)
		}
	}
	return msg
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var out T
	if err := json.Unmarshal(value, &out); err != nil {
		return out, fmt.Errorf("decoding kafka message: %w", err)
	}
	return out, nil
}
