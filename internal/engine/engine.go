// Package engine defines the search-engine port the indexer and searcher
// talk to, plus a decorator that bounds every call with a deadline. The
// elastic and memory subpackages provide the adapters.
package engine

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/schema"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/searcher/query"
)

// Engine is the set of index operations the platform needs.
//
// Adapters report transport failures wrapped in apperrors.ErrEngineUnavailable
// so callers can tell them apart from requests the engine rejected.
type Engine interface {
	Ping(ctx context.Context) error
	IndexExists(ctx context.Context, index string) (bool, error)
	// CreateIndex returns apperrors.ErrIndexExists when the index is present.
	CreateIndex(ctx context.Context, index string, def *schema.Definition) error
	// DeleteIndex returns apperrors.ErrIndexNotFound when the index is absent.
	DeleteIndex(ctx context.Context, index string) error
	BulkIndex(ctx context.Context, index string, docs []schema.RecipeDocument) (BulkResult, error)
	// UpdateCounters applies a partial update of numeric scoring fields to
	// the document with the given id.
	UpdateCounters(ctx context.Context, index, id string, fields map[string]int64) error
	Search(ctx context.Context, index string, req *query.Request) (*Result, error)
	Count(ctx context.Context, index string) (int, error)
}

// Hit is one ranked search result.
type Hit struct {
	ID       string
	Score    float64
	Document schema.RecipeDocument
}

// Result is a ranked page of hits.
type Result struct {
	Total int
	Hits  []Hit
}

// BulkItemError describes a document the engine rejected inside a bulk
// request.
type BulkItemError struct {
	ID     string
	Reason string
}

// BulkResult summarizes a bulk write.
type BulkResult struct {
	Indexed int
	Failed  []BulkItemError
}
