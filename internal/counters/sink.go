package counters

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/kafka"
)

// IndexSink writes updates straight into the index as partial documents.
type IndexSink struct {
	engine engine.Engine
	index  string
}

// NewIndexSink creates a Sink that updates index through eng.
func NewIndexSink(eng engine.Engine, index string) *IndexSink {
	return &IndexSink{engine: eng, index: index}
}

// Apply implements Sink.
func (s *IndexSink) Apply(ctx context.Context, u Update) error {
	return s.engine.UpdateCounters(ctx, s.index, u.RecipeID, map[string]int64{u.Field: u.Value})
}

// Publisher is the subset of the Kafka producer used by KafkaSink.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// KafkaSink publishes updates keyed by recipe id so the indexer's sync
// consumer applies them in order per recipe.
type KafkaSink struct {
	publisher Publisher
}

// NewKafkaSink creates a Sink backed by publisher.
func NewKafkaSink(publisher Publisher) *KafkaSink {
	return &KafkaSink{publisher: publisher}
}

// Apply implements Sink.
func (s *KafkaSink) Apply(ctx context.Context, u Update) error {
	return s.publisher.Publish(ctx, kafka.Event{Key: u.RecipeID, Type: u.Field, Value: u})
}

// DecodeUpdate parses a published update.
func DecodeUpdate(value []byte) (Update, error) {
	u, err := kafka.DecodeJSON[Update](value)
	if err != nil {
		return u, fmt.Errorf("decoding counter update: %w", err)
	}
	return u, nil
}
