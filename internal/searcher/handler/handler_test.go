package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsdex/newsdex/internal/indexer"
	"github.com/newsdex/newsdex/internal/indexer/index"
	"github.com/newsdex/newsdex/internal/searcher/executor"
	"github.com/newsdex/newsdex/internal/searcher/parser"
	"github.com/newsdex/newsdex/internal/searcher/ranker"
	apperrors "github.com/newsdex/newsdex/pkg/errors"
)

type fakeSearcher struct {
	err       error
	lastLimit int
}

func (f *fakeSearcher) Search(_ context.Context, query string) (*executor.SearchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, err := parser.Parse(query); err != nil {
		return nil, err
	}
	matches := make([]index.Match, 5)
	for i := range matches {
		matches[i] = index.Match{DocID: fmt.Sprint(i + 1)}
	}
	return &executor.SearchResult{Query: query, Kind: "terms", TotalHits: len(matches), Matches: matches}, nil
}

func (f *fakeSearcher) Rank(_ context.Context, query string, limit int) (*executor.RankResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastLimit = limit
	return &executor.RankResult{Query: query, Results: []ranker.ScoredDoc{{DocID: "2", Score: 0.123456}}}, nil
}

type fakeStats struct{}

func (fakeStats) Stats() indexer.Stats { return indexer.Stats{Documents: 5, Terms: 40, Generation: 3} }

type fakeCache struct{ invalidated bool }

func (c *fakeCache) Invalidate(context.Context) error {
	c.invalidated = true
	return nil
}

func serve(h *Handler, method, target string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSearchPaging(t *testing.T) {
	h := New(&fakeSearcher{}, fakeStats{}, nil, 2, 150)

	rec := serve(h, http.MethodGet, "/api/v1/search?q=storm")
	require.Equal(t, http.StatusOK, rec.Code)
	var res executor.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 5, res.TotalHits)
	assert.Equal(t, []string{"1", "2"}, index.Result{Matches: res.Matches}.DocIDs())

	rec = serve(h, http.MethodGet, "/api/v1/search?q=storm&limit=10&offset=3")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, []string{"4", "5"}, index.Result{Matches: res.Matches}.DocIDs())

	rec = serve(h, http.MethodGet, "/api/v1/search?q=storm&offset=99")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Empty(t, res.Matches)
}

func TestSearchBadRequests(t *testing.T) {
	h := New(&fakeSearcher{}, fakeStats{}, nil, 2, 150)
	for _, target := range []string{
		"/api/v1/search",
		"/api/v1/search?q=storm&limit=0",
		"/api/v1/search?q=storm&limit=abc",
		"/api/v1/search?q=storm&offset=-1",
		"/api/v1/search?q=%23abc(storm,coast)",
		"/api/v1/search?q=storm+AND",
		"/api/v1/rank",
	} {
		rec := serve(h, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.NotEmpty(t, decode(t, rec)["error"], target)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("search: %w", apperrors.ErrBudgetExceeded), http.StatusUnprocessableEntity},
		{fmt.Errorf("search: %w", apperrors.ErrTimeout), http.StatusGatewayTimeout},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		h := New(&fakeSearcher{err: tt.err}, fakeStats{}, nil, 2, 150)
		rec := serve(h, http.MethodGet, "/api/v1/search?q=storm")
		assert.Equal(t, tt.status, rec.Code, tt.err.Error())
	}

	h := New(&fakeSearcher{err: errors.New("disk on fire")}, fakeStats{}, nil, 2, 150)
	rec := serve(h, http.MethodGet, "/api/v1/rank?q=storm")
	assert.Equal(t, "Internal Server Error", decode(t, rec)["error"], "internal details are not leaked")
}

func TestRankClampsLimit(t *testing.T) {
	s := &fakeSearcher{}
	h := New(s, fakeStats{}, nil, 20, 150)

	rec := serve(h, http.MethodGet, "/api/v1/rank?q=storm&limit=1000")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 150, s.lastLimit)
	assert.JSONEq(t, `{"query":"storm","results":[{"doc_id":"2","score":0.1235}]}`, rec.Body.String())

	serve(h, http.MethodGet, "/api/v1/rank?q=storm")
	assert.Equal(t, 20, s.lastLimit)
}

func TestStats(t *testing.T) {
	rec := serve(New(&fakeSearcher{}, fakeStats{}, nil, 2, 150), http.MethodGet, "/api/v1/stats")
	assert.JSONEq(t, `{"documents":5,"terms":40,"generation":3}`, rec.Body.String())
}

func TestCacheInvalidate(t *testing.T) {
	rec := serve(New(&fakeSearcher{}, fakeStats{}, nil, 2, 150), http.MethodPost, "/api/v1/cache/invalidate")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	c := &fakeCache{}
	rec = serve(New(&fakeSearcher{}, fakeStats{}, c, 2, 150), http.MethodPost, "/api/v1/cache/invalidate")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, c.invalidated)

	rec = serve(New(&fakeSearcher{}, fakeStats{}, c, 2, 150), http.MethodGet, "/api/v1/cache/invalidate")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
