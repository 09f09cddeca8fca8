// Package counters records likes and views in the recipe store and keeps the
// search index's popularity fields eventually consistent with it.
package counters

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/schema"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/metrics"
)

// Update carries the new absolute value of one counter field.
type Update struct {
	RecipeID  string    `json:"recipeId"`
	Field     string    `json:"field"`
	Value     int64     `json:"value"`
	ChangedAt time.Time `json:"changedAt"`
}

// Syncer propagates committed counter changes to the index. Calls never
// block the caller and never fail it.
type Syncer interface {
	OnLikeChanged(ctx context.Context, recipeID string, likes int64)
	OnViewChanged(ctx context.Context, recipeID string, popupClicks int64)
}

// Sink applies one update somewhere downstream.
type Sink interface {
	Apply(ctx context.Context, u Update) error
}

// Dispatcher applies updates with a fixed pool of workers, each draining its
// own bounded queue. A recipe always hashes to the same worker, so updates
// for one recipe are applied in the order they were queued. A full queue
// drops the update.
type Dispatcher struct {
	sink    Sink
	queues  []chan Update
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

var _ Syncer = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher. Call Start before queuing updates and
// Close to drain the queue on shutdown.
func NewDispatcher(sink Sink, cfg config.SyncConfig, m *metrics.Metrics) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if m == nil {
		m = metrics.NewUnregistered()
	}
	perWorker := max(cfg.QueueSize/cfg.Workers, 1)
	queues := make([]chan Update, cfg.Workers)
	for i := range queues {
		queues[i] = make(chan Update, perWorker)
	}
	return &Dispatcher{
		sink:    sink,
		queues:  queues,
		timeout: cfg.Timeout,
		metrics: m,
		logger:  slog.Default().With("component", "counter-sync"),
	}
}

// Start launches the workers. They exit once Close has drained their queues.
func (d *Dispatcher) Start() {
	for _, q := range d.queues {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for u := range q {
				d.apply(u)
			}
		}()
	}
	d.logger.Info("counter sync started", "workers", len(d.queues), "queue_size", cap(d.queues[0]))
}

func (d *Dispatcher) queueFor(recipeID string) chan Update {
	if len(d.queues) == 1 {
		return d.queues[0]
	}
	return d.queues[xxhash.Sum64String(recipeID)%uint64(len(d.queues))]
}

// OnLikeChanged implements Syncer.
func (d *Dispatcher) OnLikeChanged(_ context.Context, recipeID string, likes int64) {
	d.enqueue(Update{RecipeID: recipeID, Field: schema.FieldLikes, Value: likes, ChangedAt: time.Now().UTC()})
}

// OnViewChanged implements Syncer.
func (d *Dispatcher) OnViewChanged(_ context.Context, recipeID string, popupClicks int64) {
	d.enqueue(Update{RecipeID: recipeID, Field: schema.FieldPopupClicks, Value: popupClicks, ChangedAt: time.Now().UTC()})
}

func (d *Dispatcher) enqueue(u Update) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.metrics.CounterSyncDropped.Inc()
		d.logger.Warn("counter update dropped (sync stopped)",
			"recipe_id", u.RecipeID,
			"field", u.Field,
			"error", apperrors.ErrSyncDrift,
		)
		return
	}
	select {
	case d.queueFor(u.RecipeID) <- u:
	default:
		d.metrics.CounterSyncDropped.Inc()
		d.logger.Warn("counter update dropped (queue full)",
			"recipe_id", u.RecipeID,
			"field", u.Field,
			"error", apperrors.ErrSyncDrift,
		)
	}
}

// apply runs detached from any request context so a finished request does
// not cancel its own update.
func (d *Dispatcher) apply(u Update) {
	ctx := context.Background()
	var cancel context.CancelFunc
	if d.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	if err := d.sink.Apply(ctx, u); err != nil {
		d.metrics.CounterSyncTotal.WithLabelValues(u.Field, "failure").Inc()
		d.logger.Error("counter sync failed",
			"recipe_id", u.RecipeID,
			"field", u.Field,
			"value", u.Value,
			"error", fmt.Errorf("%w: %w", apperrors.ErrSyncDrift, err),
		)
		return
	}
	d.metrics.CounterSyncTotal.WithLabelValues(u.Field, "success").Inc()
}

// Close stops accepting updates and waits for queued ones to be applied.
// Updates arriving afterwards are dropped. Close is idempotent.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()
	d.wg.Wait()
	d.logger.Info("counter sync stopped")
}
