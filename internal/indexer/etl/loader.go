// Package etl exports recipes from the source store and writes them into the
// search index in bulk batches keyed by recipe id.
package etl

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/normalizer"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/schema"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/metrics"
)

// Source streams every recipe in batches.
type Source interface {
	Stream(ctx context.Context, batchSize int, fn func([]catalog.Recipe) error) error
}

// Loader moves recipes from a Source into an index.
type Loader struct {
	source    Source
	engine    engine.Engine
	index     string
	batchSize int
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewLoader creates a Loader writing into index.
func NewLoader(source Source, eng engine.Engine, index string, batchSize int, m *metrics.Metrics) *Loader {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Loader{
		source:    source,
		engine:    eng,
		index:     index,
		batchSize: batchSize,
		metrics:   m,
		logger:    slog.Default().With("component", "etl"),
	}
}

// BuildDocument projects a recipe onto the indexed document. All matched
// text is normalized; Display keeps the raw strings.
func BuildDocument(r catalog.Recipe) schema.RecipeDocument {
	rawIngredients := r.IngredientNames()
	rawSteps := r.StepDescriptions()

	ingredients := normalizeAll(rawIngredients)
	steps := normalizeAll(rawSteps)
	title := normalizer.Normalize(r.Title)
	// The description is always the first step, even when it normalizes to
	// nothing.
	description, rawDescription := "", ""
	if len(rawSteps) > 0 {
		rawDescription = rawSteps[0]
		description = normalizer.Normalize(rawDescription)
	}
	ingredientsText := strings.Join(ingredients, " ")
	stepsText := strings.Join(steps, " ")

	return schema.RecipeDocument{
		ID:          r.ID,
		Title:       title,
		Ingredients: ingredientsText,
		Description: description,
		Steps:       stepsText,
		Content:     joinNonEmpty(title, description, ingredientsText, stepsText),
		Calories:    r.Calories,
		Servings:    r.Servings,
		PrepMinutes: ParsePrepTime(r.PrepTime),
		Likes:       r.Likes,
		PopupClicks: r.PopupClicks,
		Display: schema.Display{
			Title:       r.Title,
			Ingredients: rawIngredients,
			Description: rawDescription,
			Steps:       rawSteps,
		},
	}
}

// ExportAndIndex streams all recipes into the index and returns how many
// documents the engine accepted. On failure the count reflects the batches
// written before it.
func (l *Loader) ExportAndIndex(ctx context.Context) (int, error) {
	start := time.Now()
	indexed, rejected, batches := 0, 0, 0
	err := l.source.Stream(ctx, l.batchSize, func(recipes []catalog.Recipe) error {
		docs := make([]schema.RecipeDocument, 0, len(recipes))
		for _, r := range recipes {
			docs = append(docs, BuildDocument(r))
		}
		res, err := l.engine.BulkIndex(ctx, l.index, docs)
		if err != nil {
			return fmt.Errorf("bulk indexing batch %d: %w", batches+1, err)
		}
		batches++
		indexed += res.Indexed
		rejected += len(res.Failed)
		if l.metrics != nil {
			l.metrics.DocsIndexedTotal.Add(float64(res.Indexed))
			l.metrics.BulkFailuresTotal.Add(float64(len(res.Failed)))
		}
		for _, f := range res.Failed {
			l.logger.Warn("recipe rejected by engine", "recipe_id", f.ID, "reason", f.Reason)
		}
		return nil
	})
	if err != nil {
		l.logger.Error("export interrupted",
			"index", l.index,
			"indexed", indexed,
			"batches", batches,
			"error", err,
		)
		return indexed, err
	}
	l.logger.Info("export complete",
		"index", l.index,
		"indexed", indexed,
		"rejected", rejected,
		"batches", batches,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return indexed, nil
}

func normalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if n := normalizer.Normalize(s); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
