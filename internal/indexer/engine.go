// Package indexer owns the live inverted index: loading, rebuilding from
// crawled pages, incremental ingestion and persistence.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/newsdex/newsdex/internal/indexer/builder"
	"github.com/newsdex/newsdex/internal/indexer/crawler"
	"github.com/newsdex/newsdex/internal/indexer/index"
	"github.com/newsdex/newsdex/internal/indexer/tokenizer"
	"github.com/newsdex/newsdex/pkg/config"
	apperrors "github.com/newsdex/newsdex/pkg/errors"
	"github.com/newsdex/newsdex/pkg/metrics"
)

// ErrNoCrawler is returned by operations that need to crawl when the
// engine was built without a crawler.
var ErrNoCrawler = errors.New("engine has no crawler")

// Engine guards a single index. Queries run under View and share the
// index; mutations replace or extend it under an exclusive lock.
type Engine struct {
	mu         sync.RWMutex
	ix         *index.Index
	generation atomic.Uint64
	dirty      atomic.Bool
	fileMod    time.Time

	cfg       config.IndexerConfig
	analyzer  *tokenizer.Analyzer
	ixOpts    []index.Option
	crawler   *crawler.Crawler
	extractor PageExtractor
	builder   *builder.Builder
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// PageExtractor turns a crawled file into a document.
type PageExtractor interface {
	ExtractFile(path, docID string) (index.Document, error)
}

type Option func(*Engine)

// WithCrawler enables Rebuild and Reload.
func WithCrawler(c *crawler.Crawler) Option {
	return func(e *Engine) { e.crawler = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithExtractor replaces the default HTML extractor.
func WithExtractor(x PageExtractor) Option {
	return func(e *Engine) { e.extractor = x }
}

// WithIndexOptions applies opts to every index the engine creates.
func WithIndexOptions(opts ...index.Option) Option {
	return func(e *Engine) { e.ixOpts = append(e.ixOpts, opts...) }
}

// NewEngine returns an engine holding an empty index.
func NewEngine(cfg config.IndexerConfig, analyzer *tokenizer.Analyzer, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg,
		analyzer:  analyzer,
		extractor: crawler.NewExtractor(),
		builder:   builder.New(cfg.Workers, cfg.IncludeExtraFields),
		logger:    slog.Default().With("component", "indexer"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.NewUnregistered()
	}
	e.ix = e.newIndex()
	return e
}

func (e *Engine) newIndex() *index.Index {
	return index.New(e.analyzer, e.ixOpts...)
}

// View runs fn with shared access to the current index. fn must not keep
// the index after it returns.
func (e *Engine) View(fn func(ix *index.Index) error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return fn(e.ix)
}

// Generation changes whenever the index content changes.
func (e *Engine) Generation() uint64 {
	return e.generation.Load()
}

type Stats struct {
	Documents  int    `json:"documents"`
	Terms      int    `json:"terms"`
	Generation uint64 `json:"generation"`
}

func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Stats{
		Documents:  e.ix.NumDocuments(),
		Terms:      e.ix.NumTerms(),
		Generation: e.generation.Load(),
	}
}

// swap installs ix. Callers hold the write lock.
func (e *Engine) swap(ix *index.Index) {
	e.ix = ix
	e.changed()
}

// changed records a mutation. Callers hold the write lock.
func (e *Engine) changed() {
	e.generation.Add(1)
	e.metrics.IndexDocuments.Set(float64(e.ix.NumDocuments()))
	e.metrics.IndexTerms.Set(float64(e.ix.NumTerms()))
}

// LoadOrRebuild loads the index file, falling back to a full rebuild when
// the file does not exist.
func (e *Engine) LoadOrRebuild(ctx context.Context) error {
	err := e.Load()
	if !errors.Is(err, apperrors.ErrIndexNotFound) {
		return err
	}
	if e.crawler == nil {
		return err
	}
	e.logger.Warn("index file missing, rebuilding", "path", e.cfg.IndexPath)
	return e.Rebuild(ctx)
}

// Load replaces the index with the contents of the index file. The current
// index is kept if the file cannot be read.
func (e *Engine) Load() error {
	info, err := os.Stat(e.cfg.IndexPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", e.cfg.IndexPath, apperrors.ErrIndexNotFound)
		}
		return fmt.Errorf("loading %s: %w", e.cfg.IndexPath, err)
	}
	fresh := e.newIndex()
	if err := fresh.Load(e.cfg.IndexPath); err != nil {
		return err
	}
	e.mu.Lock()
	e.swap(fresh)
	e.fileMod = info.ModTime()
	e.mu.Unlock()
	e.dirty.Store(false)
	e.logger.Info("index loaded",
		"path", e.cfg.IndexPath,
		"documents", fresh.NumDocuments(),
		"terms", fresh.NumTerms(),
	)
	return nil
}

// crawl runs the crawler. Per-file failures are logged and the partial
// report is used.
func (e *Engine) crawl(ctx context.Context) (crawler.Report, error) {
	if e.crawler == nil {
		return crawler.Report{}, ErrNoCrawler
	}
	report, err := e.crawler.Crawl(ctx)
	var partial *multierror.Error
	if errors.As(err, &partial) {
		e.logger.Warn("crawl finished with errors", "errors", len(partial.Errors), "error", partial)
		err = nil
	}
	if err != nil {
		return crawler.Report{}, fmt.Errorf("crawling: %w", err)
	}
	e.metrics.CrawlChangesTotal.WithLabelValues("added").Add(float64(len(report.Added)))
	e.metrics.CrawlChangesTotal.WithLabelValues("modified").Add(float64(len(report.Modified)))
	e.metrics.CrawlChangesTotal.WithLabelValues("removed").Add(float64(len(report.Removed)))
	return report, nil
}

// extract reads sources into documents. Pages that cannot be extracted are
// logged and returned as failed so their fingerprints stay uncommitted.
func (e *Engine) extract(ctx context.Context, sources []crawler.Source) (docs []index.Document, failed []string, err error) {
	docs = make([]index.Document, 0, len(sources))
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		doc, err := e.extractor.ExtractFile(src.Path, src.DocID)
		if err != nil {
			e.logger.Warn("skipping unreadable page", "path", src.Path, "error", err)
			failed = append(failed, src.Path)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, failed, nil
}

// Rebuild crawls every source into a fresh index, installs it and saves
// it. Readers keep the old index until the new one is complete.
func (e *Engine) Rebuild(ctx context.Context) error {
	start := time.Now()
	report, err := e.crawl(ctx)
	if err != nil {
		return fmt.Errorf("rebuilding index: %w", err)
	}
	docs, failed, err := e.extract(ctx, report.All)
	if err != nil {
		return fmt.Errorf("rebuilding index: %w", err)
	}
	fresh := e.newIndex()
	stats, err := e.builder.Build(ctx, fresh, docs)
	if err != nil {
		return fmt.Errorf("rebuilding index: %w", err)
	}
	if err := e.crawler.Commit(ctx, report, failed...); err != nil {
		return fmt.Errorf("rebuilding index: %w", err)
	}

	e.mu.Lock()
	e.swap(fresh)
	e.mu.Unlock()
	e.dirty.Store(true)
	e.metrics.DocsIndexedTotal.Add(float64(stats.Indexed))
	e.metrics.IndexBuildDuration.Observe(time.Since(start).Seconds())
	e.logger.Info("index rebuilt",
		"sources", len(report.All),
		"indexed", stats.Indexed,
		"skipped", stats.Skipped,
		"duration", time.Since(start),
	)
	return e.Save()
}

// Reload crawls for changes and indexes pages whose ids the index has not
// seen. Pages that changed under an id already indexed keep their old
// postings. Fingerprints are committed only once the merge succeeded, and
// pages that failed to extract are retried by the next Reload. It returns
// the number of documents added.
func (e *Engine) Reload(ctx context.Context) (int, error) {
	report, err := e.crawl(ctx)
	if err != nil {
		return 0, fmt.Errorf("reloading index: %w", err)
	}

	var fresh []crawler.Source
	e.mu.RLock()
	for _, src := range report.Changed() {
		if e.ix.Contains(src.DocID) {
			e.logger.Debug("ignoring change to indexed document", "doc_id", src.DocID, "path", src.Path)
			continue
		}
		fresh = append(fresh, src)
	}
	e.mu.RUnlock()
	if len(fresh) == 0 {
		if err := e.crawler.Commit(ctx, report); err != nil {
			return 0, fmt.Errorf("reloading index: %w", err)
		}
		return 0, nil
	}

	docs, failed, err := e.extract(ctx, fresh)
	if err != nil {
		return 0, fmt.Errorf("reloading index: %w", err)
	}
	e.mu.Lock()
	stats, err := e.builder.Build(ctx, e.ix, docs)
	if stats.Indexed > 0 {
		e.changed()
	}
	e.mu.Unlock()
	if err != nil {
		return stats.Indexed, fmt.Errorf("reloading index: %w", err)
	}
	if err := e.crawler.Commit(ctx, report, failed...); err != nil {
		return stats.Indexed, fmt.Errorf("reloading index: %w", err)
	}
	if stats.Indexed > 0 {
		e.dirty.Store(true)
		e.metrics.DocsIndexedTotal.Add(float64(stats.Indexed))
	}
	e.logger.Info("index reloaded", "changed", len(report.Changed()), "indexed", stats.Indexed, "pending", len(failed))
	return stats.Indexed, nil
}

// IndexDocument adds one document. It reports false when the id is
// already indexed or the document has no terms.
func (e *Engine) IndexDocument(ctx context.Context, doc index.Document) (bool, error) {
	if err := doc.Validate(); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	analysis := e.analyze(doc)

	e.mu.Lock()
	added := e.ix.Merge(analysis)
	if added {
		e.changed()
	}
	e.mu.Unlock()

	if added {
		e.dirty.Store(true)
		e.metrics.DocsIndexedTotal.Inc()
	}
	e.logger.Debug("document ingested", "doc_id", doc.ID, "added", added, "terms", len(analysis.Terms))
	return added, nil
}

func (e *Engine) analyze(doc index.Document) index.Analysis {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ix.Analyze(doc, e.cfg.IncludeExtraFields)
}

// Save writes the index file. Readers are not blocked while it runs.
func (e *Engine) Save() error {
	e.mu.RLock()
	err := e.ix.Save(e.cfg.IndexPath)
	e.mu.RUnlock()
	if err != nil {
		e.metrics.IndexSavesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("saving index: %w", err)
	}
	e.dirty.Store(false)
	e.metrics.IndexSavesTotal.WithLabelValues("ok").Inc()
	if info, statErr := os.Stat(e.cfg.IndexPath); statErr == nil {
		e.mu.Lock()
		e.fileMod = info.ModTime()
		e.mu.Unlock()
	}
	e.logger.Info("index saved", "path", e.cfg.IndexPath)
	return nil
}

// StartSaveLoop saves the index every SaveInterval while it has unsaved
// changes, and once more when ctx ends. The returned channel closes when
// the loop has exited.
func (e *Engine) StartSaveLoop(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	if e.cfg.SaveInterval <= 0 {
		close(done)
		return done
	}
	ticker := time.NewTicker(e.cfg.SaveInterval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				if e.dirty.Load() {
					e.logger.Info("save loop stopping, performing final save")
					if err := e.Save(); err != nil {
						e.logger.Error("final save failed", "error", err)
					}
				}
				return
			case <-ticker.C:
				if e.dirty.Load() {
					if err := e.Save(); err != nil {
						e.logger.Error("periodic save failed", "error", err)
					}
				}
			}
		}
	}()
	return done
}

// StartReloadLoop reloads the index file every ReloadInterval when it has
// been rewritten by another process.
func (e *Engine) StartReloadLoop(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	if e.cfg.ReloadInterval <= 0 {
		close(done)
		return done
	}
	ticker := time.NewTicker(e.cfg.ReloadInterval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !e.fileChanged() {
					continue
				}
				if err := e.Load(); err != nil {
					e.logger.Error("reloading index file failed", "error", err)
				}
			}
		}
	}()
	return done
}

func (e *Engine) fileChanged() bool {
	info, err := os.Stat(e.cfg.IndexPath)
	if err != nil {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !info.ModTime().Equal(e.fileMod)
}

// StartCrawlLoop runs Reload every CrawlInterval.
func (e *Engine) StartCrawlLoop(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	if e.cfg.CrawlInterval <= 0 || e.crawler == nil {
		close(done)
		return done
	}
	ticker := time.NewTicker(e.cfg.CrawlInterval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := e.Reload(ctx); err != nil && ctx.Err() == nil {
					e.logger.Error("periodic crawl failed", "error", err)
				}
			}
		}
	}()
	return done
}
