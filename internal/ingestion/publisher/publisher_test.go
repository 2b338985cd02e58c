package publisher

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsdex/newsdex/internal/indexer/index"
	"github.com/newsdex/newsdex/internal/ingestion"
	"github.com/newsdex/newsdex/pkg/kafka"
)

type recordingProducer struct {
	batches [][]kafka.Event
	err     error
}

func (r *recordingProducer) PublishBatch(_ context.Context, events []kafka.Event) error {
	if r.err != nil {
		return r.err
	}
	r.batches = append(r.batches, append([]kafka.Event(nil), events...))
	return nil
}

func TestPublishBatchesValidDocuments(t *testing.T) {
	prod := &recordingProducer{}
	p := New(prod)
	p.batchSize = 2
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return at }

	docs := []index.Document{
		{ID: "1", Title: "a"},
		{ID: "", Title: "no id"},
		{ID: "2", Title: "b", Fields: map[string]string{"DATE": "March 1"}},
		{ID: "3", Title: "c"},
	}
	n, err := p.Publish(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, prod.batches, 2)
	assert.Len(t, prod.batches[0], 2)
	assert.Len(t, prod.batches[1], 1)

	ev := prod.batches[0][1]
	assert.Equal(t, "2", ev.Key)
	assert.Equal(t, ingestion.IngestEvent{
		DocumentID: "2",
		Title:      "b",
		Fields:     map[string]string{"DATE": "March 1"},
		IngestedAt: at,
	}, ev.Value)
}

func TestPublishReportsProducerFailure(t *testing.T) {
	prod := &recordingProducer{err: errors.New("broker down")}
	docs := make([]index.Document, 3)
	for i := range docs {
		docs[i] = index.Document{ID: strconv.Itoa(i), Title: "t"}
	}
	n, err := New(prod).Publish(context.Background(), docs)
	assert.Zero(t, n)
	assert.ErrorContains(t, err, "broker down")
}
