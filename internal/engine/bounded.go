package engine

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/schema"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/resilience"
)

// Bounded wraps e so that every call runs under timeout. Deadline expiry is
// reported as apperrors.ErrTimeout. Results are only read when the call
// finished in time.
func Bounded(e Engine, timeout time.Duration) Engine {
	return &bounded{next: e, timeout: timeout}
}

type bounded struct {
	next    Engine
	timeout time.Duration
}

func (b *bounded) Ping(ctx context.Context) error {
	return resilience.WithTimeout(ctx, b.timeout, "engine.ping", b.next.Ping)
}

func (b *bounded) IndexExists(ctx context.Context, index string) (bool, error) {
	var exists bool
	err := resilience.WithTimeout(ctx, b.timeout, "engine.index_exists", func(ctx context.Context) error {
		var err error
		exists, err = b.next.IndexExists(ctx, index)
		return err
	})
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (b *bounded) CreateIndex(ctx context.Context, index string, def *schema.Definition) error {
	return resilience.WithTimeout(ctx, b.timeout, "engine.create_index", func(ctx context.Context) error {
		return b.next.CreateIndex(ctx, index, def)
	})
}

func (b *bounded) DeleteIndex(ctx context.Context, index string) error {
	return resilience.WithTimeout(ctx, b.timeout, "engine.delete_index", func(ctx context.Context) error {
		return b.next.DeleteIndex(ctx, index)
	})
}

func (b *bounded) BulkIndex(ctx context.Context, index string, docs []schema.RecipeDocument) (BulkResult, error) {
	var res BulkResult
	err := resilience.WithTimeout(ctx, b.timeout, "engine.bulk_index", func(ctx context.Context) error {
		var err error
		res, err = b.next.BulkIndex(ctx, index, docs)
		return err
	})
	if err != nil {
		return BulkResult{}, err
	}
	return res, nil
}

func (b *bounded) UpdateCounters(ctx context.Context, index, id string, fields map[string]int64) error {
	return resilience.WithTimeout(ctx, b.timeout, "engine.update_counters", func(ctx context.Context) error {
		return b.next.UpdateCounters(ctx, index, id, fields)
	})
}

func (b *bounded) Search(ctx context.Context, index string, req *query.Request) (*Result, error) {
	var res *Result
	err := resilience.WithTimeout(ctx, b.timeout, "engine.search", func(ctx context.Context) error {
		var err error
		res, err = b.next.Search(ctx, index, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (b *bounded) Count(ctx context.Context, index string) (int, error) {
	var n int
	err := resilience.WithTimeout(ctx, b.timeout, "engine.count", func(ctx context.Context) error {
		var err error
		n, err = b.next.Count(ctx, index)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
