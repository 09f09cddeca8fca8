// Package service runs recipe searches: it parses the user query, expands
// it with ingredient synonyms, wraps it in popularity scoring and phrase
// rescoring, and queries the engine behind a circuit breaker. Engine
// trouble produces an empty, flagged response instead of an error.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/synonyms"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/searcher/expander"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/searcher/relevance"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/tracing"
)

const breakerName = "search-engine"

// Message shown to callers when results could not be fetched.
const unavailableMessage = "search is temporarily unavailable"

// Item is one recipe in a search response.
type Item struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Ingredients []string `json:"ingredients"`
	Description string   `json:"description"`
	Steps       []string `json:"steps"`
	Likes       int64    `json:"likes"`
	ViewClicks  int64    `json:"viewClicks"`
}

// Response is the result of Search. Degraded responses carry no results
// and an Error message; Fallback marks results from the plain query.
type Response struct {
	Query    string `json:"query"`
	Total    int    `json:"total"`
	Results  []Item `json:"results"`
	Degraded bool   `json:"degraded,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Cache is the query cache used by the service.
type Cache = cache.QueryCache[*Response]

// NewCache creates a Cache that never stores degraded responses.
func NewCache(store cache.Store, ttl time.Duration, m *metrics.Metrics) *Cache {
	return cache.New(store, ttl, func(r *Response) bool { return !r.Degraded }, m)
}

// Deps are the collaborators of a Service. Cache and Metrics are optional.
type Deps struct {
	Engine   engine.Engine
	Synonyms *synonyms.Table
	Cache    *Cache
	Metrics  *metrics.Metrics
	Breaker  resilience.CircuitBreakerConfig
}

// Service answers recipe searches against one index.
type Service struct {
	engine   engine.Engine
	index    string
	expander *expander.Expander
	cfg      config.QueryConfig
	cache    *Cache
	breaker  *resilience.CircuitBreaker
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates a Service for index.
func New(index string, cfg config.QueryConfig, deps Deps) *Service {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewUnregistered()
	}
	if deps.Synonyms == nil {
		deps.Synonyms = synonyms.Default()
	}
	m := deps.Metrics
	bcfg := deps.Breaker
	bcfg.ShouldTrip = apperrors.IsEngineFailure
	bcfg.OnStateChange = func(name string, _, to resilience.State) {
		m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
	}
	m.CircuitBreakerState.WithLabelValues(breakerName).Set(float64(resilience.StateClosed))
	return &Service{
		engine:   deps.Engine,
		index:    index,
		expander: expander.New(deps.Synonyms),
		cfg:      cfg,
		cache:    deps.Cache,
		breaker:  resilience.NewCircuitBreaker(breakerName, bcfg),
		metrics:  m,
		logger:   slog.Default().With("component", "search-service"),
	}
}

// Search returns up to pageSize recipes for text, best first. A pageSize of
// zero selects the configured default; larger values are capped at the
// configured maximum. Only invalid input returns an error.
func (s *Service) Search(ctx context.Context, text string, pageSize int) (*Response, error) {
	start := time.Now()
	size, err := s.pageSize(pageSize)
	if err != nil {
		s.metrics.SearchQueriesTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}
	if len(text) > parser.MaxQueryLength {
		s.metrics.SearchQueriesTotal.WithLabelValues("invalid").Inc()
		return nil, apperrors.Validationf("query exceeds %d bytes", parser.MaxQueryLength)
	}
	plan := parser.Parse(text)
	if plan.Empty() {
		s.metrics.SearchQueriesTotal.WithLabelValues("invalid").Inc()
		return nil, apperrors.Validationf("query has no searchable terms")
	}

	ctx, span := tracing.Start(ctx, "search", logger.RequestID(ctx))
	compute := func() (*Response, error) {
		return s.execute(ctx, plan, size), nil
	}
	var resp *Response
	cacheStatus := "disabled"
	if s.cache != nil {
		var hit bool
		resp, hit, err = s.cache.GetOrCompute(ctx, plan.Cleaned, size, compute)
		if err != nil {
			return nil, span.End(err)
		}
		cacheStatus = "miss"
		if hit {
			cacheStatus = "hit"
			s.metrics.SearchQueriesTotal.WithLabelValues(outcome(resp)).Inc()
		}
	} else {
		resp, _ = compute()
	}

	// Shared cached values must not be mutated.
	out := *resp
	out.Query = text
	span.SetAttr("cache", cacheStatus)
	span.End(nil)
	span.Log(ctx, logger.FromContext(ctx))

	elapsed := time.Since(start)
	s.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
	s.metrics.SearchResultsCount.Observe(float64(len(out.Results)))

	logger.FromContext(ctx).Info("search completed",
		"query", text,
		"terms", plan.Terms,
		"total_hits", out.Total,
		"returned", len(out.Results),
		"degraded", out.Degraded,
		"fallback", out.Fallback,
		"cache", cacheStatus,
		"latency_ms", elapsed.Milliseconds(),
	)
	return &out, nil
}

// BreakerState reports the engine circuit breaker state.
func (s *Service) BreakerState() resilience.State {
	return s.breaker.GetState()
}

func (s *Service) pageSize(n int) (int, error) {
	switch {
	case n < 0:
		return 0, apperrors.Validationf("page size must not be negative")
	case n == 0:
		return s.cfg.DefaultPageSize, nil
	case s.cfg.MaxPageSize > 0 && n > s.cfg.MaxPageSize:
		return s.cfg.MaxPageSize, nil
	default:
		return n, nil
	}
}

func (s *Service) execute(ctx context.Context, plan *parser.QueryPlan, size int) *Response {
	log := logger.FromContext(ctx)
	req := relevance.Compose(
		s.expander.Expand(plan.Terms),
		plan.Cleaned,
		relevance.OptionsFromConfig(s.cfg, size),
	)
	res, err := s.run(ctx, req)
	if err == nil {
		resp := toResponse(res)
		s.metrics.SearchQueriesTotal.WithLabelValues(outcome(resp)).Inc()
		return resp
	}

	if s.unavailable(err) {
		log.Warn("search degraded", "query", plan.RawQuery, "error", err)
		return s.degraded()
	}

	// The engine rejected the composed request.
	log.Error("composed query rejected", "query", plan.RawQuery, "error", err)
	if !s.cfg.FallbackPlain {
		return s.degraded()
	}
	res, err = s.run(ctx, relevance.Plain(plan.Cleaned, size))
	if err != nil {
		log.Error("plain fallback failed", "query", plan.RawQuery, "error", err)
		return s.degraded()
	}
	resp := toResponse(res)
	resp.Fallback = true
	s.metrics.SearchQueriesTotal.WithLabelValues("fallback").Inc()
	return resp
}

func (s *Service) run(ctx context.Context, req *query.Request) (*engine.Result, error) {
	_, span := tracing.Start(ctx, "engine_search", "")
	var res *engine.Result
	err := s.breaker.Execute(func() error {
		var err error
		res, err = s.engine.Search(ctx, s.index, req)
		return err
	})
	if res != nil {
		span.SetAttr("hits", len(res.Hits))
	}
	return res, span.End(err)
}

// unavailable reports errors that no alternative query can fix.
func (s *Service) unavailable(err error) bool {
	return apperrors.IsEngineFailure(err) ||
		errors.Is(err, resilience.ErrCircuitOpen) ||
		errors.Is(err, apperrors.ErrIndexNotFound) ||
		errors.Is(err, context.Canceled)
}

func (s *Service) degraded() *Response {
	s.metrics.SearchQueriesTotal.WithLabelValues("degraded").Inc()
	return &Response{Results: []Item{}, Degraded: true, Error: unavailableMessage}
}

func outcome(r *Response) string {
	switch {
	case r.Degraded:
		return "degraded"
	case r.Fallback:
		return "fallback"
	case len(r.Results) == 0:
		return "zero_result"
	default:
		return "ok"
	}
}

func toResponse(res *engine.Result) *Response {
	items := make([]Item, 0, len(res.Hits))
	for _, h := range res.Hits {
		d := h.Document
		items = append(items, Item{
			ID:          h.ID,
			Title:       d.Display.Title,
			Ingredients: nonNil(d.Display.Ingredients),
			Description: d.Display.Description,
			Steps:       nonNil(d.Display.Steps),
			Likes:       d.Likes,
			ViewClicks:  d.PopupClicks,
		})
	}
	return &Response{Total: res.Total, Results: items}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
