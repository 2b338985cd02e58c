// Package builder indexes batches of documents with a pool of analysis
// workers feeding a single merge loop.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/newsdex/newsdex/internal/indexer/index"
)

type Builder struct {
	workers      int
	includeExtra bool
	logger       *slog.Logger
}

func New(workers int, includeExtra bool) *Builder {
	if workers <= 0 {
		workers = 1
	}
	return &Builder{
		workers:      workers,
		includeExtra: includeExtra,
		logger:       slog.Default().With("component", "builder"),
	}
}

// Stats summarises one Build call.
type Stats struct {
	Documents int
	Indexed   int
	Skipped   int
	Duration  time.Duration
}

type analyzed struct {
	seq      int
	analysis index.Analysis
	err      error
}

// Build analyzes docs concurrently and merges them into ix in slice order,
// so document ordinals do not depend on worker scheduling. Invalid
// documents are skipped. ix must not be used by anyone else until Build
// returns.
func (b *Builder) Build(ctx context.Context, ix *index.Index, docs []index.Document) (Stats, error) {
	start := time.Now()
	stats := Stats{Documents: len(docs)}

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan int)
	results := make(chan analyzed, b.workers*2)

	g.Go(func() error {
		defer close(jobs)
		for i := range docs {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	var wg sync.WaitGroup
	for range b.workers {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for i := range jobs {
				r := analyzed{seq: i}
				if err := docs[i].Validate(); err != nil {
					r.err = err
				} else {
					r.analysis = ix.Analyze(docs[i], b.includeExtra)
				}
				select {
				case results <- r:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	pending := make(map[int]analyzed)
	next := 0
	for r := range results {
		pending[r.seq] = r
		for {
			p, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			switch {
			case p.err != nil:
				stats.Skipped++
				b.logger.Warn("skipping document", "seq", p.seq, "error", p.err)
			case ix.Merge(p.analysis):
				stats.Indexed++
			default:
				stats.Skipped++
			}
		}
	}

	stats.Duration = time.Since(start)
	if err := g.Wait(); err != nil {
		return stats, fmt.Errorf("building index: %w", err)
	}
	b.logger.Info("index build complete",
		"documents", stats.Documents,
		"indexed", stats.Indexed,
		"skipped", stats.Skipped,
		"workers", b.workers,
		"duration_ms", stats.Duration.Milliseconds(),
	)
	return stats, nil
}
