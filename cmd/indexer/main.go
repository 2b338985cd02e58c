package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/newsdex/newsdex/internal/indexer"
	"github.com/newsdex/newsdex/internal/indexer/consumer"
	"github.com/newsdex/newsdex/pkg/config"
	"github.com/newsdex/newsdex/pkg/kafka"
	"github.com/newsdex/newsdex/pkg/logger"
	"github.com/newsdex/newsdex/pkg/metrics"
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
		slog.Error("indexer service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("indexer service stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer shutdown(context.Background())
	}

	engine, closeStore, err := indexer.Open(ctx, cfg, true, indexer.WithMetrics(m))
	if err != nil {
		return err
	}
	defer closeStore()

	slog.Info("starting indexer service",
		"index_path", cfg.Indexer.IndexPath,
		"roots", cfg.Crawler.Roots,
		"store", cfg.Crawler.Store,
		"workers", cfg.Indexer.Workers,
	)
	if err := engine.LoadOrRebuild(ctx); err != nil {
		return fmt.Errorf("loading index: %w", err)
	}

	saveDone := engine.StartSaveLoop(ctx)
	crawlDone := engine.StartCrawlLoop(ctx)

	if cfg.Kafka.Enabled {
		kc := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest, consumer.HandleMessage(engine, m))
		slog.Info("consuming ingest events",
			"topic", cfg.Kafka.Topics.DocumentIngest,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kc.Start(ctx); err != nil {
			slog.Error("consumer error", "error", err)
		}
		if err := kc.Close(); err != nil {
			slog.Error("closing consumer", "error", err)
		}
	} else {
		<-ctx.Done()
	}

	<-crawlDone
	<-saveDone
	if cfg.Indexer.SaveInterval <= 0 {
		return engine.Save()
	}
	return nil
}
