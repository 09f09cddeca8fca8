// Package cache is a Redis-backed query result cache. Concurrent misses for
// the same key are collapsed into one computation with singleflight.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/redis"
)

const keyPrefix = "recipe-search:"

// KeyPattern matches every key the cache writes.
const KeyPattern = keyPrefix + "*"

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

var _ Store = (*pkgredis.Client)(nil)

// QueryCache caches values of type T keyed by cleaned query text and page
// size. Values for which cacheable returns false are computed but not
// stored.
type QueryCache[T any] struct {
	store     Store
	ttl       time.Duration
	cacheable func(T) bool
	group     singleflight.Group
	metrics   *metrics.Metrics
	logger    *slog.Logger
	hits      atomic.Int64
	misses    atomic.Int64
}

// New creates a QueryCache. cacheable may be nil to store every value.
func New[T any](store Store, ttl time.Duration, cacheable func(T) bool, m *metrics.Metrics) *QueryCache[T] {
	if m == nil {
		m = metrics.NewUnregistered()
	}
	return &QueryCache[T]{
		store:     store,
		ttl:       ttl,
		cacheable: cacheable,
		metrics:   m,
		logger:    slog.Default().With("component", "query-cache"),
	}
}

// Get returns the cached value for the query. Redis errors count as misses.
func (c *QueryCache[T]) Get(ctx context.Context, query string, limit int) (T, bool) {
	var zero T
	key := BuildKey(query, limit)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return zero, false
	}
	var value T
	if err := json.Unmarshal([]byte(data), &value); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return zero, false
	}
	c.hits.Add(1)
	c.metrics.CacheHitsTotal.Inc()
	c.logger.Debug("cache hit", "query", query, "key", key)
	return value, true
}

// Set stores value for the query. Failures are logged.
func (c *QueryCache[T]) Set(ctx context.Context, query string, limit int, value T) {
	key := BuildKey(query, limit)
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached value or computes, stores and returns it.
// The boolean reports a cache hit.
func (c *QueryCache[T]) GetOrCompute(ctx context.Context, query string, limit int, compute func() (T, error)) (T, bool, error) {
	if value, ok := c.Get(ctx, query, limit); ok {
		return value, true, nil
	}
	key := BuildKey(query, limit)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		value, err := compute()
		if err != nil {
			return nil, err
		}
		if c.cacheable == nil || c.cacheable(value) {
			c.Set(ctx, query, limit, value)
		}
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return val.(T), false, nil
}

// Invalidate drops every cached query.
func (c *QueryCache[T]) Invalidate(ctx context.Context) error {
	deleted, err := c.store.FlushByPattern(ctx, KeyPattern)
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns hit and miss counts since creation.
func (c *QueryCache[T]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache[T]) miss() {
	c.misses.Add(1)
	c.metrics.CacheMissesTotal.Inc()
}

// BuildKey hashes the query, already cleaned by the parser, and the page
// size into a fixed-length key. Whitespace differences do not change it.
func BuildKey(query string, limit int) string {
	normalized := strings.Join(strings.Fields(query), " ")
	raw := fmt.Sprintf("%s:limit=%d", normalized, limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
