package builder

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsdex/newsdex/internal/indexer/index"
)

func corpus(n int) []index.Document {
	topics := []string{"election", "storm", "market", "football", "budget"}
	docs := make([]index.Document, n)
	for i := range docs {
		docs[i] = index.Document{
			ID:    fmt.Sprint(i + 1),
			Title: fmt.Sprintf("%s update %d", topics[i%len(topics)], i),
			Body:  fmt.Sprintf("the %s story continues with %s and %s", topics[i%3], topics[(i+1)%len(topics)], topics[i%2]),
			Fields: map[string]string{
				"DATE": fmt.Sprintf("day%d", i%7),
			},
		}
	}
	return docs
}

func dump(t *testing.T, ix *index.Index) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := ix.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}

func TestBuildMatchesSequentialInsert(t *testing.T) {
	docs := corpus(300)

	sequential := index.New(nil)
	for _, d := range docs {
		sequential.InsertDocument(d, true)
	}

	parallel := index.New(nil)
	stats, err := New(8, true).Build(context.Background(), parallel, docs)
	require.NoError(t, err)
	assert.Equal(t, 300, stats.Documents)
	assert.Equal(t, 300, stats.Indexed)
	assert.Zero(t, stats.Skipped)

	assert.Equal(t, dump(t, sequential), dump(t, parallel))

	want, err := sequential.RankedRetrieval(context.Background(), "election market")
	require.NoError(t, err)
	got, err := parallel.RankedRetrieval(context.Background(), "election market")
	require.NoError(t, err)
	assert.Equal(t, want, got, "ties must resolve identically")
}

func TestBuildSkipsInvalidAndDuplicates(t *testing.T) {
	docs := []index.Document{
		{ID: "1", Title: "first"},
		{ID: "", Title: "no id"},
		{ID: "1", Title: "duplicate"},
		{ID: "2", Title: "second"},
	}
	ix := index.New(nil)
	stats, err := New(2, false).Build(context.Background(), ix, docs)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Indexed)
	assert.Equal(t, 2, stats.Skipped)
	assert.Equal(t, []int{0}, ix.Postings("first", "1"))
	assert.Zero(t, ix.DocumentFrequency("duplicate"))
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(4, false).Build(ctx, index.New(nil), corpus(50))
	require.ErrorIs(t, err, context.Canceled)
}

func TestBuildEmpty(t *testing.T) {
	stats, err := New(0, false).Build(context.Background(), index.New(nil), nil)
	require.NoError(t, err)
	assert.Zero(t, stats.Indexed)
}
