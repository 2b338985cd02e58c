// Package executor runs boolean and ranked queries against the engine's
// index with a deadline, an optional result cache and metrics.
package executor

import (
	"context"
	"errors"
	"time"

	"github.com/newsdex/newsdex/internal/indexer/index"
	"github.com/newsdex/newsdex/internal/searcher/cache"
	"github.com/newsdex/newsdex/internal/searcher/evaluator"
	"github.com/newsdex/newsdex/internal/searcher/parser"
	"github.com/newsdex/newsdex/internal/searcher/ranker"
	"github.com/newsdex/newsdex/pkg/config"
	apperrors "github.com/newsdex/newsdex/pkg/errors"
	"github.com/newsdex/newsdex/pkg/logger"
	"github.com/newsdex/newsdex/pkg/metrics"
	"github.com/newsdex/newsdex/pkg/resilience"
	"github.com/newsdex/newsdex/pkg/tracing"
)

// Index is satisfied by *indexer.Engine.
type Index interface {
	View(fn func(ix *index.Index) error) error
	Generation() uint64
}

// SearchResult is the response to a boolean query.
type SearchResult struct {
	Query     string        `json:"query"`
	Kind      string        `json:"kind"`
	TotalHits int           `json:"total_hits"`
	Matches   []index.Match `json:"matches"`
}

// RankResult is the response to a ranked query.
type RankResult struct {
	Query   string             `json:"query"`
	Results []ranker.ScoredDoc `json:"results"`
}

type Executor struct {
	index   Index
	cfg     config.SearchConfig
	cache   *cache.QueryCache
	metrics *metrics.Metrics
}

type Option func(*Executor)

func WithCache(c *cache.QueryCache) Option {
	return func(e *Executor) { e.cache = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

func New(ix Index, cfg config.SearchConfig, opts ...Option) *Executor {
	e := &Executor{
		index: ix,
		cfg:   cfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.NewUnregistered()
	}
	return e
}

// Search evaluates a boolean query and returns every matching document.
func (e *Executor) Search(ctx context.Context, query string) (*SearchResult, error) {
	start := time.Now()
	ctx, span := tracing.Start(ctx, "search")
	defer finish(ctx, span)

	_, parseSpan := tracing.Start(ctx, "parse")
	node, err := parser.Parse(query)
	parseSpan.End()
	if err != nil {
		e.record(ctx, "boolean", query, start, 0, err)
		return nil, err
	}
	key := cache.Key{Kind: "search", Query: query, Generation: e.index.Generation()}
	result, hit, err := cache.Fetch(ctx, e.cache, key, func(ctx context.Context) (*SearchResult, error) {
		ctx, evalSpan := tracing.Start(ctx, "evaluate")
		defer evalSpan.End()
		var r index.Result
		err := resilience.WithTimeout(ctx, e.cfg.Timeout, "search", func(ctx context.Context) error {
			return e.index.View(func(ix *index.Index) error {
				var err error
				r, err = evaluator.Evaluate(ctx, ix, node)
				return err
			})
		})
		if err != nil {
			return nil, err
		}
		matches := r.Matches
		if matches == nil {
			matches = []index.Match{}
		}
		return &SearchResult{Query: query, Kind: node.Kind(), TotalHits: len(matches), Matches: matches}, nil
	})
	if err != nil {
		e.record(ctx, "boolean", query, start, 0, err)
		return nil, err
	}
	span.SetAttr("cache_hit", hit)
	e.record(ctx, "boolean", query, start, result.TotalHits, nil, "node", node.Kind(), "cache_hit", hit)
	return result, nil
}

// Rank returns the limit best tf-idf matches for query. A limit outside
// 1..RankLimit is clamped; zero means DefaultLimit.
func (e *Executor) Rank(ctx context.Context, query string, limit int) (*RankResult, error) {
	start := time.Now()
	ctx, span := tracing.Start(ctx, "rank")
	defer finish(ctx, span)

	limit = e.clampLimit(limit)
	key := cache.Key{Kind: "rank", Query: query, Limit: limit, Generation: e.index.Generation()}
	result, hit, err := cache.Fetch(ctx, e.cache, key, func(ctx context.Context) (*RankResult, error) {
		ctx, scoreSpan := tracing.Start(ctx, "score")
		defer scoreSpan.End()
		var ranked []ranker.ScoredDoc
		err := resilience.WithTimeout(ctx, e.cfg.Timeout, "rank", func(ctx context.Context) error {
			return e.index.View(func(ix *index.Index) error {
				var err error
				ranked, err = ix.RankedRetrieval(ctx, query)
				return err
			})
		})
		if err != nil {
			return nil, err
		}
		if len(ranked) > limit {
			ranked = ranked[:limit]
		}
		if ranked == nil {
			ranked = []ranker.ScoredDoc{}
		}
		return &RankResult{Query: query, Results: ranked}, nil
	})
	if err != nil {
		e.record(ctx, "ranked", query, start, 0, err)
		return nil, err
	}
	span.SetAttr("cache_hit", hit)
	e.record(ctx, "ranked", query, start, len(result.Results), nil, "limit", limit, "cache_hit", hit)
	return result, nil
}

func finish(ctx context.Context, span *tracing.Span) {
	span.End()
	span.Log(ctx, logger.FromContext(ctx).With("component", "query-executor"))
}

func (e *Executor) clampLimit(limit int) int {
	switch {
	case limit <= 0:
		limit = e.cfg.DefaultLimit
	case e.cfg.RankLimit > 0 && limit > e.cfg.RankLimit:
		limit = e.cfg.RankLimit
	}
	if limit <= 0 {
		limit = index.DefaultRankLimit
	}
	return limit
}

func outcome(err error, hits int) string {
	switch {
	case err == nil && hits == 0:
		return "zero_result"
	case err == nil:
		return "ok"
	case errors.Is(err, apperrors.ErrInvalidQuery), errors.Is(err, apperrors.ErrMalformedProximity):
		return "invalid"
	case errors.Is(err, apperrors.ErrBudgetExceeded):
		return "budget"
	case errors.Is(err, apperrors.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

func (e *Executor) record(ctx context.Context, kind, query string, start time.Time, hits int, err error, attrs ...any) {
	elapsed := time.Since(start)
	result := outcome(err, hits)
	e.metrics.SearchQueriesTotal.WithLabelValues(kind, result).Inc()
	e.metrics.SearchLatency.WithLabelValues(kind).Observe(elapsed.Seconds())
	log := logger.FromContext(ctx).With("component", "query-executor")
	if err != nil {
		log.Warn("query failed", "kind", kind, "query", query, "outcome", result, "error", err)
		return
	}
	e.metrics.SearchResultsCount.WithLabelValues(kind).Observe(float64(hits))
	log.Info("query executed",
		append([]any{"kind", kind, "query", query, "results", hits, "duration_ms", elapsed.Milliseconds()}, attrs...)...,
	)
}
