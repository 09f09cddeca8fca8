package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/counters"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/engine/driver"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/etl"
	adminhandler "github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/handler"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/rebuild"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/synonyms"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/searcher/service"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	rebuildOnStart := flag.Bool("rebuild-on-start", false, "rebuild the index before serving (always on for the memory driver)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if err := run(cfg, *rebuildOnStart || cfg.Search.Driver == driver.Memory); err != nil {
		slog.Error("search service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

func run(cfg *config.Config, rebuildOnStart bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"driver", cfg.Search.Driver,
		"index", cfg.Search.Index,
		"sync_mode", cfg.Sync.Mode,
	)
	m := metrics.New(nil)

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()
	store := catalog.NewStore(db)
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	table, err := synonyms.Open(cfg.Synonyms.Path)
	if err != nil {
		return err
	}

	eng, err := driver.Open(cfg.Search)
	if err != nil {
		return err
	}

	var redisClient *pkgredis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, query cache and shared rebuild lock disabled", "error", err)
		} else {
			defer redisClient.Close()
		}
	}

	var queryCache *service.Cache
	var locker rebuild.Locker = rebuild.NewLocalLocker()
	var invalidator rebuild.Invalidator
	var cacheAdmin handler.CacheAdmin
	if redisClient != nil {
		queryCache = service.NewCache(redisClient, cfg.Redis.CacheTTL, m)
		locker = rebuild.NewRedisLocker(redisClient, cfg.Rebuild.LockTTL)
		invalidator = queryCache
		cacheAdmin = queryCache
		slog.Info("query cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	searchSvc := service.New(cfg.Search.Index, cfg.Query, service.Deps{
		Engine:   eng,
		Synonyms: table,
		Cache:    queryCache,
		Metrics:  m,
		Breaker:  resilience.CircuitBreakerConfig{},
	})

	var sink counters.Sink
	switch cfg.Sync.Mode {
	case "kafka":
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CounterUpdates)
		defer producer.Close()
		sink = counters.NewKafkaSink(producer)
		slog.Info("counter sync via kafka", "topic", cfg.Kafka.Topics.CounterUpdates)
	default:
		sink = counters.NewIndexSink(eng, cfg.Search.Index)
	}
	dispatcher := counters.NewDispatcher(sink, cfg.Sync, m)
	dispatcher.Start()
	defer dispatcher.Close()
	counterSvc := counters.NewService(store, dispatcher)

	coordinator := rebuild.NewCoordinator(cfg.Search.Index, cfg.Rebuild, rebuild.Deps{
		Engine:      eng,
		Vocabulary:  store,
		Exporter:    etl.NewLoader(store, eng, cfg.Search.Index, cfg.Rebuild.BatchSize, m),
		Synonyms:    table,
		Locker:      locker,
		Invalidator: invalidator,
		Metrics:     m,
	})

	checker := health.NewChecker()
	checker.Register("postgres", health.Required(db))
	checker.Register("search_engine", health.Required(eng))
	if redisClient != nil {
		checker.Register("redis", health.Optional(redisClient))
	} else {
		checker.Register("redis", health.Optional(nil))
	}

	api := http.NewServeMux()
	searchHandler := handler.New(searchSvc, counterSvc, cacheAdmin)
	if cfg.Server.InteractionLimit > 0 {
		limiter := ratelimit.New(cfg.Server.InteractionLimit, cfg.Server.InteractionWindow)
		defer limiter.Close()
		searchHandler.ThrottleInteractions(middleware.RateLimit(limiter, middleware.ClientIP))
	}
	searchHandler.Register(api)

	// Rebuilds outlive the request timeout.
	root := http.NewServeMux()
	root.Handle("/", middleware.Timeout(cfg.Server.WriteTimeout)(api))
	adminhandler.New(coordinator).Register(root)
	root.HandleFunc("GET /health/live", checker.LiveHandler())
	root.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = root
	chain = middleware.CORS(middleware.NewCORSConfig(cfg.Server.CORSOrigins))(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     chain,
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("search service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("search server: %w", err)
		}
		return nil
	})
	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Port)
		g.Go(func() error {
			slog.Info("metrics server listening", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return shutdown(metricsServer, cfg.Server.ShutdownTimeout)
		})
	}
	if rebuildOnStart {
		g.Go(func() error {
			if _, err := coordinator.Rebuild(gctx); err != nil {
				slog.Error("startup rebuild failed", "error", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		return shutdown(server, cfg.Server.ShutdownTimeout)
	})
	return g.Wait()
}

func shutdown(server *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down %s: %w", server.Addr, err)
	}
	return nil
}
