package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunHitsBothEndpoints(t *testing.T) {
	var search, rank atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/search":
			search.Add(1)
		case "/api/v1/rank":
			rank.Add(1)
		}
		if r.URL.Query().Get("q") == "bad" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	stats, err := Run(context.Background(), Config{
		BaseURL:     srv.URL,
		Concurrency: 2,
		Duration:    200 * time.Millisecond,
		RankEvery:   2,
		Queries:     []string{"storm", "bad"},
	})
	require.NoError(t, err)
	assert.Positive(t, search.Load())
	assert.Positive(t, rank.Load())
	assert.Positive(t, stats.Total())
	assert.LessOrEqual(t, stats.Total(), search.Load()+rank.Load())

	var buf bytes.Buffer
	stats.Report(&buf, time.Second)
	assert.Contains(t, buf.String(), "=== /api/v1/rank ===")
	assert.Contains(t, buf.String(), "=== /api/v1/search ===")
	assert.Contains(t, buf.String(), "  400: ")
}

func TestRunValidatesConfig(t *testing.T) {
	_, err := Run(context.Background(), Config{Concurrency: 1})
	assert.Error(t, err)
	_, err = Run(context.Background(), Config{Queries: []string{"x"}})
	assert.Error(t, err)
}

func TestStatsRecord(t *testing.T) {
	s := NewStats()
	s.Record(endpointSearch, time.Millisecond, 200, nil)
	s.Record(endpointSearch, 2*time.Millisecond, 500, nil)
	s.Record(endpointSearch, 0, 0, context.DeadlineExceeded)
	assert.Equal(t, int64(3), s.Total())
	es := s.endpoints[endpointSearch]
	assert.Equal(t, int64(1), es.success)
	assert.Equal(t, int64(2), es.errors)
	assert.Len(t, es.latencies, 2)
}

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(5), percentile(sorted, 50))
	assert.Equal(t, time.Duration(10), percentile(sorted, 99))
	assert.Equal(t, time.Duration(1), percentile(sorted, 0))
	assert.Zero(t, percentile(nil, 50))
}

func TestReadQueries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.txt")
	require.NoError(t, os.WriteFile(path, []byte("storm coast\n\n#! comment\n#3(court ruling)\n"), 0o644))
	queries, err := readQueries(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"storm coast", "#3(court ruling)"}, queries)

	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = readQueries(empty)
	assert.Error(t, err)
}
