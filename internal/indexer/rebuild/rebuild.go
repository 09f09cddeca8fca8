// Package rebuild coordinates a full index rebuild: discover the synonym
// vocabulary, drop the live index, wait until the drop is visible, recreate
// it with fresh analysis settings, and reload every recipe.
package rebuild

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/schema"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/synonyms"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/tracing"
)

// Step names a phase of the rebuild.
type Step string

const (
	StepVocabulary     Step = "vocabulary"
	StepCheckExists    Step = "check_exists"
	StepDelete         Step = "delete"
	StepConfirmDeleted Step = "confirm_deleted"
	StepCreate         Step = "create"
	StepLoad           Step = "load"
	StepDone           Step = "done"
)

// RebuildError reports the step at which a rebuild stopped.
type RebuildError struct {
	Step Step
	Err  error
}

func (e *RebuildError) Error() string {
	return fmt.Sprintf("rebuild failed at %s: %v", e.Step, e.Err)
}

func (e *RebuildError) Unwrap() error {
	return e.Err
}

// Result describes a finished rebuild.
type Result struct {
	DocumentsIndexed int           `json:"documentsIndexed"`
	SynonymRules     int           `json:"synonymRules"`
	Duration         time.Duration `json:"duration"`
}

// Status is the coordinator's view of the latest rebuild.
type Status struct {
	Running    bool      `json:"running"`
	LastResult *Result   `json:"lastResult,omitempty"`
	LastError  string    `json:"lastError,omitempty"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
}

// Vocabulary lists the normalized ingredient names of the corpus.
type Vocabulary interface {
	IngredientVocabulary(ctx context.Context) ([]string, error)
}

// Exporter loads every source recipe into the index.
type Exporter interface {
	ExportAndIndex(ctx context.Context) (int, error)
}

// Invalidator drops cached query results after the index changes.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Coordinator runs rebuilds of one index.
type Coordinator struct {
	engine      engine.Engine
	vocabulary  Vocabulary
	exporter    Exporter
	table       *synonyms.Table
	locker      Locker
	invalidator Invalidator
	index       string
	cfg         config.RebuildConfig
	metrics     *metrics.Metrics
	logger      *slog.Logger

	mu     sync.Mutex
	status Status
}

// Deps are the collaborators of a Coordinator. Locker defaults to an
// in-process lock; Invalidator and Metrics are optional.
type Deps struct {
	Engine      engine.Engine
	Vocabulary  Vocabulary
	Exporter    Exporter
	Synonyms    *synonyms.Table
	Locker      Locker
	Invalidator Invalidator
	Metrics     *metrics.Metrics
}

// NewCoordinator creates a Coordinator for index.
func NewCoordinator(index string, cfg config.RebuildConfig, deps Deps) *Coordinator {
	if deps.Locker == nil {
		deps.Locker = NewLocalLocker()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewUnregistered()
	}
	if cfg.ConfirmAttempts <= 0 {
		cfg.ConfirmAttempts = 10
	}
	if cfg.ConfirmInterval <= 0 {
		cfg.ConfirmInterval = 500 * time.Millisecond
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	return &Coordinator{
		engine:      deps.Engine,
		vocabulary:  deps.Vocabulary,
		exporter:    deps.Exporter,
		table:       deps.Synonyms,
		locker:      deps.Locker,
		invalidator: deps.Invalidator,
		index:       index,
		cfg:         cfg,
		metrics:     deps.Metrics,
		logger:      slog.Default().With("component", "rebuild", "index", index),
	}
}

// Status returns a snapshot of the latest rebuild.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.status
	if s.LastResult != nil {
		r := *s.LastResult
		s.LastResult = &r
	}
	return s
}

// Rebuild drops and recreates the index and reloads it from the source.
// Readers may see no index between confirm_deleted and create and a partial
// index during load. A concurrent call fails with ErrRebuildInProgress.
func (c *Coordinator) Rebuild(ctx context.Context) (Result, error) {
	release, err := c.locker.Acquire(ctx, "rebuild:"+c.index)
	if err != nil {
		return Result{}, err
	}
	defer release()

	ctx, span := tracing.Start(ctx, "index_rebuild", logger.RequestID(ctx))
	span.SetAttr("index", c.index)

	c.setRunning()
	start := time.Now()
	res, step, err := c.run(ctx)
	res.Duration = time.Since(start)
	span.SetAttr("documents", res.DocumentsIndexed)
	span.End(err)
	span.Log(ctx, c.logger)
	c.finish(res, step, err)
	if err != nil {
		return res, &RebuildError{Step: step, Err: err}
	}
	return res, nil
}

func (c *Coordinator) run(ctx context.Context) (Result, Step, error) {
	var res Result

	var def *schema.Definition
	err := c.timed(ctx, StepVocabulary, func() error {
		vocab, err := c.vocabulary.IngredientVocabulary(ctx)
		if err != nil {
			return fmt.Errorf("listing ingredients: %w", err)
		}
		rules := synonyms.Rules(c.table.ExpandVocabulary(vocab))
		def = schema.Build(rules)
		res.SynonymRules = len(rules)
		c.logger.Info("synonym vocabulary built", "ingredients", len(vocab), "rules", len(rules))
		return nil
	})
	if err != nil {
		return res, StepVocabulary, err
	}

	var exists bool
	err = c.timed(ctx, StepCheckExists, func() error {
		return c.retry(ctx, "check_exists", func() error {
			var err error
			exists, err = c.engine.IndexExists(ctx, c.index)
			return err
		})
	})
	if err != nil {
		return res, StepCheckExists, err
	}

	if exists {
		err = c.timed(ctx, StepDelete, func() error {
			return c.retry(ctx, "delete", func() error {
				err := c.engine.DeleteIndex(ctx, c.index)
				if errors.Is(err, apperrors.ErrIndexNotFound) {
					return nil
				}
				return err
			})
		})
		if err != nil {
			return res, StepDelete, err
		}
		if err := c.timed(ctx, StepConfirmDeleted, func() error { return c.confirmDeleted(ctx) }); err != nil {
			return res, StepConfirmDeleted, err
		}
	}

	err = c.timed(ctx, StepCreate, func() error {
		return c.retry(ctx, "create", func() error {
			err := c.engine.CreateIndex(ctx, c.index, def)
			if errors.Is(err, apperrors.ErrIndexExists) {
				c.logger.Warn("index already exists at create, continuing")
				return nil
			}
			return err
		})
	})
	if err != nil {
		return res, StepCreate, err
	}

	err = c.timed(ctx, StepLoad, func() error {
		n, err := c.exporter.ExportAndIndex(ctx)
		res.DocumentsIndexed = n
		return err
	})
	if err != nil {
		return res, StepLoad, err
	}

	if c.invalidator != nil {
		if err := c.invalidator.Invalidate(ctx); err != nil {
			c.logger.Warn("query cache invalidation failed", "error", err)
		}
	}
	return res, StepDone, nil
}

// confirmDeleted polls until the engine stops reporting the index.
func (c *Coordinator) confirmDeleted(ctx context.Context) error {
	for attempt := 1; attempt <= c.cfg.ConfirmAttempts; attempt++ {
		exists, err := c.engine.IndexExists(ctx, c.index)
		if err == nil && !exists {
			return nil
		}
		if err != nil && !apperrors.IsEngineFailure(err) {
			return err
		}
		if attempt == c.cfg.ConfirmAttempts {
			break
		}
		select {
		case <-time.After(c.cfg.ConfirmInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("index %s still visible after %d checks: %w",
		c.index, c.cfg.ConfirmAttempts, apperrors.ErrRebuildInconsistency)
}

func (c *Coordinator) retry(ctx context.Context, op string, fn func() error) error {
	return resilience.Retry(ctx, "rebuild."+op, resilience.RetryConfig{
		MaxAttempts:  c.cfg.RetryAttempts,
		InitialDelay: c.cfg.ConfirmInterval,
		Multiplier:   2,
		Retryable:    apperrors.IsEngineFailure,
	}, fn)
}

func (c *Coordinator) timed(ctx context.Context, step Step, fn func() error) error {
	_, span := tracing.Start(ctx, string(step), "")
	err := span.End(fn())
	c.metrics.RebuildStepDuration.WithLabelValues(string(step)).Observe(span.Duration.Seconds())
	return err
}

func (c *Coordinator) setRunning() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.Running = true
}

func (c *Coordinator) finish(res Result, step Step, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	c.metrics.RebuildsTotal.WithLabelValues(status, string(step)).Inc()

	c.mu.Lock()
	c.status.Running = false
	c.status.FinishedAt = time.Now().UTC()
	if err != nil {
		c.status.LastError = (&RebuildError{Step: step, Err: err}).Error()
	} else {
		r := res
		c.status.LastResult = &r
		c.status.LastError = ""
		c.metrics.LastRebuildDocs.Set(float64(res.DocumentsIndexed))
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("rebuild failed",
			"step", step,
			"documents_indexed", res.DocumentsIndexed,
			"error", err,
		)
		return
	}
	c.logger.Info("rebuild complete",
		"documents_indexed", res.DocumentsIndexed,
		"synonym_rules", res.SynonymRules,
		"duration", res.Duration.Round(time.Millisecond),
	)
}
