// Package memory is an in-process implementation of the engine port. It
// keeps one inverted index per text field, analyzes text with the same chain
// as the cluster analyzer (bleve unicode tokenizer, lowercase, synonyms,
// light Spanish stemmer) and evaluates the query subset the recipe search
// uses. It backs local runs and tests; it is not a production store.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/blevesearch/bleve/v2/analysis"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/schema"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/searcher/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/errors"
)

// Options tunes test-facing behavior of the engine.
type Options struct {
	// DeleteLag makes IndexExists keep reporting a deleted index for this
	// many calls, like a cluster that propagates deletes asynchronously.
	DeleteLag int
	// Fault, when set, is consulted before every operation; a non-nil error
	// is returned instead of running it.
	Fault func(op string) error
}

// Engine holds named in-memory indexes.
type Engine struct {
	mu      sync.RWMutex
	indexes map[string]*index
	lag     map[string]int
	opts    Options
	logger  *slog.Logger
}

var _ engine.Engine = (*Engine)(nil)

// New creates an empty engine.
func New(opts Options) *Engine {
	return &Engine{
		indexes: make(map[string]*index),
		lag:     make(map[string]int),
		opts:    opts,
		logger:  slog.Default().With("component", "memory-engine"),
	}
}

// SetFault replaces the fault hook.
func (e *Engine) SetFault(fn func(op string) error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts.Fault = fn
}

func (e *Engine) fault(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.RLock()
	fn := e.opts.Fault
	e.mu.RUnlock()
	if fn != nil {
		return fn(op)
	}
	return nil
}

func (e *Engine) get(name string) (*index, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ix, ok := e.indexes[name]
	if !ok {
		return nil, fmt.Errorf("index %s: %w", name, apperrors.ErrIndexNotFound)
	}
	return ix, nil
}

// Ping always succeeds unless a fault is injected.
func (e *Engine) Ping(ctx context.Context) error {
	return e.fault(ctx, "ping")
}

// IndexExists reports whether the index exists.
func (e *Engine) IndexExists(ctx context.Context, name string) (bool, error) {
	if err := e.fault(ctx, "index_exists"); err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.indexes[name]; ok {
		return true, nil
	}
	if e.lag[name] > 0 {
		e.lag[name]--
		return true, nil
	}
	return false, nil
}

// CreateIndex creates an empty index whose analyzer is built from def.
func (e *Engine) CreateIndex(ctx context.Context, name string, def *schema.Definition) error {
	if err := e.fault(ctx, "create_index"); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.indexes[name]; ok {
		return fmt.Errorf("index %s: %w", name, apperrors.ErrIndexExists)
	}
	e.indexes[name] = newIndex(def)
	delete(e.lag, name)
	e.logger.Info("index created", "index", name, "synonym_rules", len(def.SynonymRules))
	return nil
}

// DeleteIndex drops the index.
func (e *Engine) DeleteIndex(ctx context.Context, name string) error {
	if err := e.fault(ctx, "delete_index"); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.indexes[name]; !ok {
		return fmt.Errorf("index %s: %w", name, apperrors.ErrIndexNotFound)
	}
	delete(e.indexes, name)
	if e.opts.DeleteLag > 0 {
		e.lag[name] = e.opts.DeleteLag
	}
	return nil
}

// BulkIndex adds or replaces docs by id.
func (e *Engine) BulkIndex(ctx context.Context, name string, docs []schema.RecipeDocument) (engine.BulkResult, error) {
	if err := e.fault(ctx, "bulk_index"); err != nil {
		return engine.BulkResult{}, err
	}
	ix, err := e.get(name)
	if err != nil {
		return engine.BulkResult{}, err
	}
	var res engine.BulkResult
	for i := range docs {
		if docs[i].ID == "" {
			res.Failed = append(res.Failed, engine.BulkItemError{Reason: "document id is required"})
			continue
		}
		ix.put(docs[i])
		res.Indexed++
	}
	return res, nil
}

// UpdateCounters applies a partial update of scoring counters.
func (e *Engine) UpdateCounters(ctx context.Context, name, id string, fields map[string]int64) error {
	if err := e.fault(ctx, "update_counters"); err != nil {
		return err
	}
	ix, err := e.get(name)
	if err != nil {
		return err
	}
	return ix.updateCounters(id, fields)
}

// Search evaluates req against the index.
func (e *Engine) Search(ctx context.Context, name string, req *query.Request) (*engine.Result, error) {
	if err := e.fault(ctx, "search"); err != nil {
		return nil, err
	}
	ix, err := e.get(name)
	if err != nil {
		return nil, err
	}
	return ix.search(req)
}

// Count returns the number of documents.
func (e *Engine) Count(ctx context.Context, name string) (int, error) {
	if err := e.fault(ctx, "count"); err != nil {
		return 0, err
	}
	ix, err := e.get(name)
	if err != nil {
		return 0, err
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs), nil
}

// index is one named index.
type index struct {
	mu       sync.RWMutex
	def      *schema.Definition
	analyzer analysis.Analyzer
	docs     map[string]*schema.RecipeDocument
	fields   map[string]*fieldIndex
}

func newIndex(def *schema.Definition) *index {
	ix := &index{
		def:      def,
		analyzer: newAnalyzer(def),
		docs:     make(map[string]*schema.RecipeDocument),
		fields:   make(map[string]*fieldIndex),
	}
	for _, f := range def.TextFields() {
		ix.fields[f.Name] = newFieldIndex()
	}
	return ix
}

func (ix *index) put(doc schema.RecipeDocument) {
	analyzed := make(map[string][]Token, len(ix.fields))
	for name := range ix.fields {
		analyzed[name] = analyze(ix.analyzer, doc.Text(name))
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, exists := ix.docs[doc.ID]; exists {
		for _, f := range ix.fields {
			f.remove(doc.ID)
		}
	}
	stored := doc
	ix.docs[doc.ID] = &stored
	for name, f := range ix.fields {
		f.add(doc.ID, analyzed[name])
	}
}

func (ix *index) updateCounters(id string, fields map[string]int64) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	doc, ok := ix.docs[id]
	if !ok {
		return fmt.Errorf("document %s: %w", id, apperrors.ErrRecipeNotFound)
	}
	updated := *doc
	for field, v := range fields {
		if !updated.SetCounter(field, v) {
			return apperrors.Validationf("field %s is not an updatable counter", field)
		}
	}
	ix.docs[id] = &updated
	return nil
}

func (ix *index) search(req *query.Request) (*engine.Result, error) {
	if req == nil || req.Query == nil {
		return nil, apperrors.Validationf("search request has no query")
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	scores, err := ix.eval(req.Query)
	if err != nil {
		return nil, err
	}
	ranked := sortScores(scores)
	if req.Rescore != nil {
		if ranked, err = ix.rescore(ranked, req.Rescore); err != nil {
			return nil, err
		}
	}

	res := &engine.Result{Total: len(ranked)}
	if req.Size >= 0 && len(ranked) > req.Size {
		ranked = ranked[:req.Size]
	}
	res.Hits = make([]engine.Hit, 0, len(ranked))
	for _, s := range ranked {
		doc := *ix.docs[s.id]
		res.Hits = append(res.Hits, engine.Hit{ID: s.id, Score: s.score, Document: doc})
	}
	return res, nil
}

// rescore re-ranks the top window: matched documents score
// qw*primary + rqw*secondary, others qw*primary. Documents outside the
// window keep their order after it.
func (ix *index) rescore(ranked []scored, r *query.Rescore) ([]scored, error) {
	window := min(r.WindowSize, len(ranked))
	if window <= 0 {
		return ranked, nil
	}
	secondary, err := ix.eval(r.Query)
	if err != nil {
		return nil, err
	}
	head := make([]scored, window)
	for i, s := range ranked[:window] {
		head[i] = scored{id: s.id, score: r.QueryWeight*s.score + r.RescoreQueryWeight*secondary[s.id]}
	}
	sortScored(head)
	return append(head, ranked[window:]...), nil
}

type scored struct {
	id    string
	score float64
}

func sortScores(scores map[string]float64) []scored {
	out := make([]scored, 0, len(scores))
	for id, s := range scores {
		out = append(out, scored{id: id, score: s})
	}
	sortScored(out)
	return out
}

func sortScored(s []scored) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].score != s[j].score {
			return s[i].score > s[j].score
		}
		return s[i].id < s[j].id
	})
}
