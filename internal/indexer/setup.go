package indexer

import (
	"context"
	"fmt"

	"github.com/newsdex/newsdex/internal/indexer/crawler"
	"github.com/newsdex/newsdex/internal/indexer/index"
	"github.com/newsdex/newsdex/internal/indexer/tokenizer"
	"github.com/newsdex/newsdex/pkg/config"
	"github.com/newsdex/newsdex/pkg/postgres"
)

// NewAnalyzer builds the analyzer shared by indexing and querying.
func NewAnalyzer(cfg config.AnalyzerConfig) (*tokenizer.Analyzer, error) {
	return tokenizer.New(tokenizer.Options{
		RemoveStopwords: cfg.RemoveStopwords,
		StopwordsFile:   cfg.StopwordsFile,
		Stem:            cfg.Stem,
	})
}

// IndexOptions translates search limits into index options.
func IndexOptions(cfg config.SearchConfig) []index.Option {
	return []index.Option{
		index.WithRankLimit(cfg.RankLimit),
		index.WithBudget(index.Budget{
			MaxCandidateDocs: cfg.MaxCandidateDocs,
			MaxComparisons:   cfg.MaxComparisons,
		}),
	}
}

// OpenStore opens the fingerprint store named by cfg.Crawler.Store.
func OpenStore(ctx context.Context, cfg *config.Config) (crawler.Store, error) {
	switch cfg.Crawler.Store {
	case "memory":
		return crawler.NewMemoryStore(), nil
	case "sqlite":
		return crawler.OpenSQLite(ctx, cfg.Crawler.SQLitePath)
	case "postgres":
		client, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		store, err := crawler.NewPostgresStore(ctx, client)
		if err != nil {
			client.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown fingerprint store %q", cfg.Crawler.Store)
	}
}

// Open builds an engine from cfg. With crawl set it also opens the
// fingerprint store and attaches a crawler; the returned close func
// releases it.
func Open(ctx context.Context, cfg *config.Config, crawl bool, opts ...Option) (*Engine, func() error, error) {
	analyzer, err := NewAnalyzer(cfg.Analyzer)
	if err != nil {
		return nil, nil, err
	}
	opts = append([]Option{WithIndexOptions(IndexOptions(cfg.Search)...)}, opts...)
	closeFn := func() error { return nil }
	if crawl {
		store, err := OpenStore(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("opening fingerprint store: %w", err)
		}
		c := crawler.New(crawler.Config{Roots: cfg.Crawler.Roots, Extension: cfg.Crawler.Extension}, store)
		opts = append(opts, WithCrawler(c))
		closeFn = store.Close
	}
	return NewEngine(cfg.Indexer, analyzer, opts...), closeFn, nil
}
