package executor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsdex/newsdex/internal/indexer/index"
	"github.com/newsdex/newsdex/internal/indexer/tokenizer"
	"github.com/newsdex/newsdex/internal/searcher/cache"
	"github.com/newsdex/newsdex/pkg/config"
	apperrors "github.com/newsdex/newsdex/pkg/errors"
	"github.com/newsdex/newsdex/pkg/metrics"
	"github.com/newsdex/newsdex/pkg/tracing"
)

type staticIndex struct {
	ix    *index.Index
	gen   atomic.Uint64
	delay time.Duration
	views atomic.Int32
}

func (s *staticIndex) View(fn func(ix *index.Index) error) error {
	s.views.Add(1)
	time.Sleep(s.delay)
	return fn(s.ix)
}

func (s *staticIndex) Generation() uint64 { return s.gen.Load() }

func newsIndex(t *testing.T) *staticIndex {
	t.Helper()
	a, err := tokenizer.New(tokenizer.Options{Stem: true})
	require.NoError(t, err)
	ix := index.New(a)
	docs := []index.Document{
		{ID: "1", Title: "Storm hits coast", Body: "Heavy rain and wind closed coast roads."},
		{ID: "2", Title: "Markets rally", Body: "Shares rose after the storm passed."},
		{ID: "3", Title: "Coast guard rescue", Body: "Crew saved from the storm at sea near the coast."},
	}
	for _, d := range docs {
		require.True(t, ix.InsertDocument(d, false))
	}
	return &staticIndex{ix: ix}
}

func searchConfig() config.SearchConfig {
	return config.SearchConfig{RankLimit: 150, DefaultLimit: 2, Timeout: time.Second}
}

func TestSearch(t *testing.T) {
	ex := New(newsIndex(t), searchConfig())
	ctx := context.Background()

	res, err := ex.Search(ctx, "storm AND NOT rally")
	require.NoError(t, err)
	assert.Equal(t, "and", res.Kind)
	assert.Equal(t, 2, res.TotalHits)
	assert.Equal(t, "1", res.Matches[0].DocID)
	assert.Equal(t, "3", res.Matches[1].DocID)

	res, err = ex.Search(ctx, `"coast guard"`)
	require.NoError(t, err)
	assert.Equal(t, []index.Match{{DocID: "3", Positions: []int{0}}}, res.Matches)

	res, err = ex.Search(ctx, "")
	require.NoError(t, err)
	assert.NotNil(t, res.Matches)
	assert.Zero(t, res.TotalHits)
}

func TestSearchRejectsMalformedQueries(t *testing.T) {
	reg := prometheus.NewRegistry()
	ex := New(newsIndex(t), searchConfig(), WithMetrics(metrics.New(reg)))

	_, err := ex.Search(context.Background(), "#near(storm, coast)")
	assert.ErrorIs(t, err, apperrors.ErrMalformedProximity)
	_, err = ex.Search(context.Background(), "storm OR")
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuery)

	families, err := reg.Gather()
	require.NoError(t, err)
	var invalid float64
	for _, f := range families {
		if f.GetName() != "search_queries_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" && l.GetValue() == "invalid" {
					invalid += m.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, 2.0, invalid)
}

func TestRank(t *testing.T) {
	ex := New(newsIndex(t), searchConfig())
	ctx := context.Background()

	res, err := ex.Rank(ctx, "coast", 0)
	require.NoError(t, err)
	require.Len(t, res.Results, 2, "zero limit means the default")
	assert.Equal(t, "1", res.Results[0].DocID)
	assert.Equal(t, "3", res.Results[1].DocID)

	res, err = ex.Rank(ctx, "coast", 1)
	require.NoError(t, err)
	assert.Len(t, res.Results, 1)

	res, err = ex.Rank(ctx, "unknownword", 5)
	require.NoError(t, err)
	assert.NotNil(t, res.Results)
	assert.Empty(t, res.Results)
}

func TestClampLimit(t *testing.T) {
	ex := New(newsIndex(t), config.SearchConfig{RankLimit: 10, DefaultLimit: 3})
	assert.Equal(t, 3, ex.clampLimit(0))
	assert.Equal(t, 3, ex.clampLimit(-4))
	assert.Equal(t, 7, ex.clampLimit(7))
	assert.Equal(t, 10, ex.clampLimit(50))
}

func TestSearchTimeout(t *testing.T) {
	ix := newsIndex(t)
	ix.delay = 50 * time.Millisecond
	cfg := searchConfig()
	cfg.Timeout = 5 * time.Millisecond
	ex := New(ix, cfg)

	_, err := ex.Search(context.Background(), "storm")
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
	_, err = ex.Rank(context.Background(), "storm", 1)
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
}

type memoryBackend struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func (b *memoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.entries[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return v, nil
}

func (b *memoryBackend) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[key] = value
	return nil
}

func (b *memoryBackend) FlushByPattern(context.Context, string) (int64, error) { return 0, nil }

func TestCachedResultsFollowGeneration(t *testing.T) {
	ix := newsIndex(t)
	c := cache.New(&memoryBackend{entries: map[string][]byte{}}, nil, time.Minute, nil)
	ex := New(ix, searchConfig(), WithCache(c))
	ctx := context.Background()

	first, err := ex.Search(ctx, "storm")
	require.NoError(t, err)
	second, err := ex.Search(ctx, "storm ")
	require.NoError(t, err)
	assert.Equal(t, first.Matches, second.Matches)
	assert.Equal(t, int32(1), ix.views.Load(), "second query is served from cache")

	ranked, err := ex.Rank(ctx, "storm", 3)
	require.NoError(t, err)
	again, err := ex.Rank(ctx, "storm", 3)
	require.NoError(t, err)
	require.Len(t, again.Results, len(ranked.Results))
	for i := range ranked.Results {
		assert.Equal(t, ranked.Results[i].DocID, again.Results[i].DocID)
		assert.InDelta(t, ranked.Results[i].Score, again.Results[i].Score, 1e-4)
	}
	assert.Equal(t, int32(2), ix.views.Load())

	ix.gen.Add(1)
	_, err = ex.Search(ctx, "storm")
	require.NoError(t, err)
	assert.Equal(t, int32(3), ix.views.Load(), "a new generation misses the cache")
}

func TestQueriesAreTraced(t *testing.T) {
	ex := New(newsIndex(t), searchConfig())
	ctx, root := tracing.Start(context.Background(), "request")

	_, err := ex.Search(ctx, "storm OR rally")
	require.NoError(t, err)
	_, err = ex.Rank(ctx, "storm", 1)
	require.NoError(t, err)

	stages := root.Children()
	require.Len(t, stages, 2)
	assert.Equal(t, "search", stages[0].Name)
	assert.Equal(t, "rank", stages[1].Name)

	var names []string
	for _, c := range stages[0].Children() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"parse", "evaluate"}, names)
	assert.Equal(t, root.TraceID, stages[1].Children()[0].TraceID)
}
