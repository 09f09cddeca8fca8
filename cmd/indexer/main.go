package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/counters"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/engine/driver"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/etl"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/rebuild"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/synonyms"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	mode := flag.String("mode", "rebuild", "rebuild: rebuild the index once and exit; sync: apply counter updates from kafka; seed: load recipes into postgres")
	seedFile := flag.String("file", "", "JSON array of recipes for -mode=seed")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if *mode != "seed" && cfg.Search.Driver == driver.Memory {
		slog.Error("the indexer needs a shared search engine; the memory driver only lives inside the search service")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "rebuild":
		err = runRebuild(ctx, cfg)
	case "sync":
		err = runSync(ctx, cfg)
	case "seed":
		err = runSeed(ctx, cfg, *seedFile)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		slog.Error("indexer failed", "mode", *mode, "error", err)
		os.Exit(1)
	}
}

func runRebuild(ctx context.Context, cfg *config.Config) error {
	m := metrics.NewUnregistered()
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()
	store := catalog.NewStore(db)

	table, err := synonyms.Open(cfg.Synonyms.Path)
	if err != nil {
		return err
	}
	eng, err := driver.Open(cfg.Search)
	if err != nil {
		return err
	}

	deps := rebuild.Deps{
		Engine:     eng,
		Vocabulary: store,
		Exporter:   etl.NewLoader(store, eng, cfg.Search.Index, cfg.Rebuild.BatchSize, m),
		Synonyms:   table,
		Metrics:    m,
	}
	if cfg.Redis.Addr != "" {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis is configured but unreachable, refusing to rebuild without the shared lock: %w", err)
		}
		defer redisClient.Close()
		deps.Locker = rebuild.NewRedisLocker(redisClient, cfg.Rebuild.LockTTL)
		// Search processes cache against the same Redis.
		deps.Invalidator = cacheFlusher{redisClient}
	}

	res, err := rebuild.NewCoordinator(cfg.Search.Index, cfg.Rebuild, deps).Rebuild(ctx)
	out := map[string]any{"documentsIndexed": res.DocumentsIndexed, "synonymRules": res.SynonymRules}
	var rerr *rebuild.RebuildError
	if errors.As(err, &rerr) {
		out["failedStep"] = rerr.Step
		out["error"] = rerr.Err.Error()
	}
	_ = json.NewEncoder(os.Stdout).Encode(out)
	return err
}

func runSeed(ctx context.Context, cfg *config.Config, path string) error {
	if path == "" {
		return errors.New("-file is required for -mode=seed")
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()
	store := catalog.NewStore(db)
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	n, err := store.Seed(ctx, f)
	if err != nil {
		return fmt.Errorf("seeding after %d recipes: %w", n, err)
	}
	slog.Info("seed complete, run -mode=rebuild to index", "recipes", n, "file", path)
	return nil
}

// cacheFlusher clears the search processes' query cache after a rebuild.
type cacheFlusher struct {
	client *pkgredis.Client
}

func (f cacheFlusher) Invalidate(ctx context.Context) error {
	_, err := f.client.FlushByPattern(ctx, cache.KeyPattern)
	return err
}

func runSync(ctx context.Context, cfg *config.Config) error {
	m := metrics.New(nil)
	eng, err := driver.Open(cfg.Search)
	if err != nil {
		return err
	}

	handle := consumer.HandleMessage(counters.NewIndexSink(eng, cfg.Search.Index), m)
	kafkaConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CounterUpdates, handle)
	syncConsumer := consumer.New(kafkaConsumer)

	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Port)
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server error", "error", err)
			}
		}()
		defer metricsServer.Close()
	}

	slog.Info("indexer consuming counter updates",
		"topic", cfg.Kafka.Topics.CounterUpdates,
		"group", cfg.Kafka.ConsumerGroup,
		"index", cfg.Search.Index,
	)
	if err := syncConsumer.Start(ctx); err != nil {
		return fmt.Errorf("consumer: %w", err)
	}
	slog.Info("indexer stopped")
	return nil
}
