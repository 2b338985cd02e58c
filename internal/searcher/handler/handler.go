// Package handler exposes the search HTTP API.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/newsdex/newsdex/internal/indexer"
	"github.com/newsdex/newsdex/internal/searcher/executor"
	apperrors "github.com/newsdex/newsdex/pkg/errors"
	"github.com/newsdex/newsdex/pkg/logger"
)

// Searcher is satisfied by *executor.Executor.
type Searcher interface {
	Search(ctx context.Context, query string) (*executor.SearchResult, error)
	Rank(ctx context.Context, query string, limit int) (*executor.RankResult, error)
}

// StatsSource is satisfied by *indexer.Engine.
type StatsSource interface {
	Stats() indexer.Stats
}

// Invalidator is satisfied by *cache.QueryCache.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type Handler struct {
	searcher     Searcher
	stats        StatsSource
	cache        Invalidator
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New returns a Handler. queryCache may be nil when caching is disabled.
func New(s Searcher, stats StatsSource, queryCache Invalidator, defaultLimit, maxResults int) *Handler {
	return &Handler{
		searcher:     s,
		stats:        stats,
		cache:        queryCache,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/rank", h.Rank)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Search answers a boolean query. Matches are paged with limit and offset;
// total_hits counts every match.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'q' is required"))
		return
	}
	limit, err := h.limit(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.searcher.Search(r.Context(), query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	page := *result
	start := min(offset, len(page.Matches))
	end := min(start+limit, len(page.Matches))
	page.Matches = page.Matches[start:end]
	h.writeJSON(w, http.StatusOK, page)
}

// Rank answers a ranked query.
func (h *Handler) Rank(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'q' is required"))
		return
	}
	limit, err := h.limit(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.searcher.Rank(r.Context(), query, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Stats(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.stats.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) limit(r *http.Request) (int, error) {
	limit, err := intParam(r, "limit", h.defaultLimit)
	if err != nil {
		return 0, err
	}
	if limit < 1 {
		return 0, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer")
	}
	return min(limit, h.maxResults), nil
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "%s must be a non-negative integer", name)
	}
	return v, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps err to a status code. Client errors echo the error text;
// server errors are logged and reported generically.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusGatewayTimeout {
		logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		message = http.StatusText(status)
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
