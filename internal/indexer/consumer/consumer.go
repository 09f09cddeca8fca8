// Package consumer applies counter updates published by the API processes
// to the search index. It is the receiving end of the Kafka sync mode.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/counters"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/schema"
	apperrors "github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/metrics"
)

// Runner is the consume loop the sync consumer drives.
type Runner interface {
	Start(ctx context.Context) error
}

// SyncConsumer wraps a Kafka consumer to drive counter sync.
type SyncConsumer struct {
	runner Runner
	logger *slog.Logger
}

// New creates a SyncConsumer backed by the given Kafka consumer.
func New(runner Runner) *SyncConsumer {
	return &SyncConsumer{
		runner: runner,
		logger: slog.Default().With("component", "sync-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (c *SyncConsumer) Start(ctx context.Context) error {
	c.logger.Info("counter sync consumer starting")
	return c.runner.Start(ctx)
}

// HandleMessage returns a Kafka MessageHandler that applies each update
// through sink. Malformed messages, unknown fields and recipes missing from
// the index are logged and acknowledged; engine failures are returned so the
// message is not committed.
func HandleMessage(sink counters.Sink, m *metrics.Metrics) kafka.MessageHandler {
	logger := slog.Default().With("component", "sync-consumer")
	if m == nil {
		m = metrics.NewUnregistered()
	}
	return func(ctx context.Context, msg kafka.Message) error {
		u, err := counters.DecodeUpdate(msg.Value)
		if err != nil {
			logger.Error("failed to decode counter update",
				"error", err,
				"key", string(msg.Key),
				"partition", msg.Partition,
				"offset", msg.Offset,
			)
			return nil
		}
		if msg.Type != "" && msg.Type != u.Field {
			logger.Warn("event type header disagrees with payload", "type", msg.Type, "field", u.Field, "recipe_id", u.RecipeID)
		}
		if u.Field != schema.FieldLikes && u.Field != schema.FieldPopupClicks {
			logger.Warn("ignoring update for unknown counter", "recipe_id", u.RecipeID, "field", u.Field)
			return nil
		}

		err = sink.Apply(ctx, u)
		switch {
		case err == nil:
			m.CounterSyncTotal.WithLabelValues(u.Field, "success").Inc()
			logger.Debug("counter applied", "recipe_id", u.RecipeID, "field", u.Field, "value", u.Value)
			return nil
		case errors.Is(err, apperrors.ErrRecipeNotFound):
			m.CounterSyncTotal.WithLabelValues(u.Field, "failure").Inc()
			logger.Warn("recipe not in index, update skipped",
				"recipe_id", u.RecipeID,
				"field", u.Field,
				"error", apperrors.ErrSyncDrift,
			)
			return nil
		default:
			m.CounterSyncTotal.WithLabelValues(u.Field, "failure").Inc()
			return fmt.Errorf("applying %s=%d to %s: %w", u.Field, u.Value, u.RecipeID, err)
		}
	}
}
