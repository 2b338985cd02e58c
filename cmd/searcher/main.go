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

	"github.com/newsdex/newsdex/internal/indexer"
	"github.com/newsdex/newsdex/internal/searcher/cache"
	"github.com/newsdex/newsdex/internal/searcher/executor"
	"github.com/newsdex/newsdex/internal/searcher/handler"
	"github.com/newsdex/newsdex/pkg/config"
	apperrors "github.com/newsdex/newsdex/pkg/errors"
	"github.com/newsdex/newsdex/pkg/health"
	"github.com/newsdex/newsdex/pkg/logger"
	"github.com/newsdex/newsdex/pkg/metrics"
	"github.com/newsdex/newsdex/pkg/middleware"
	pkgredis "github.com/newsdex/newsdex/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if err := run(cfg); err != nil {
		slog.Error("search service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer shutdown(context.Background())
	}

	engine, _, err := indexer.Open(ctx, cfg, false, indexer.WithMetrics(m))
	if err != nil {
		return err
	}
	if err := engine.Load(); err != nil {
		if !errors.Is(err, apperrors.ErrIndexNotFound) {
			return fmt.Errorf("loading index: %w", err)
		}
		slog.Warn("index file not found, serving an empty index until it appears", "path", cfg.Indexer.IndexPath)
	}
	reloadDone := engine.StartReloadLoop(ctx)

	checker := health.NewChecker(0)
	checker.Register("index", func(context.Context) health.ComponentHealth {
		stats := engine.Stats()
		if stats.Documents == 0 {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "index is empty"}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d documents", stats.Documents)}
	})

	execOpts := []executor.Option{executor.WithMetrics(m)}
	var invalidator handler.Invalidator
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache := cache.New(redisClient, pkgredis.IsNilError, cfg.Redis.CacheTTL, m)
			execOpts = append(execOpts, executor.WithCache(queryCache))
			invalidator = queryCache
			checker.Register("redis", health.OptionalCheck(health.PingCheck(redisClient.Ping)))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	exec := executor.New(engine, cfg.Search, execOpts...)
	h := handler.New(exec, engine, invalidator, cfg.Search.DefaultLimit, cfg.Search.RankLimit)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: middleware.Chain(mux,
			middleware.RequestID,
			middleware.Logging,
			middleware.Metrics(m),
			middleware.Timeout(cfg.Server.WriteTimeout),
		),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr, "documents", engine.Stats().Documents)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	<-reloadDone
	return nil
}
