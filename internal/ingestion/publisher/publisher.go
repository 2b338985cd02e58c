// Package publisher sends documents to the ingest topic for the indexer
// to pick up.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/newsdex/newsdex/internal/indexer/index"
	"github.com/newsdex/newsdex/internal/ingestion"
	"github.com/newsdex/newsdex/pkg/kafka"
)

// DefaultBatchSize is the number of events per Kafka write.
const DefaultBatchSize = 100

// Producer is satisfied by *kafka.Producer.
type Producer interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

type Publisher struct {
	producer  Producer
	batchSize int
	now       func() time.Time
	logger    *slog.Logger
}

func New(producer Producer) *Publisher {
	return &Publisher{
		producer:  producer,
		batchSize: DefaultBatchSize,
		now:       time.Now,
		logger:    slog.Default().With("component", "publisher"),
	}
}

// Publish validates docs and publishes them in batches keyed by document
// id. Invalid documents are skipped. It returns the number published.
func (p *Publisher) Publish(ctx context.Context, docs []index.Document) (int, error) {
	published := 0
	batch := make([]kafka.Event, 0, p.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.producer.PublishBatch(ctx, batch); err != nil {
			return fmt.Errorf("publishing documents: %w", err)
		}
		published += len(batch)
		batch = batch[:0]
		return nil
	}

	for _, doc := range docs {
		if err := doc.Validate(); err != nil {
			p.logger.Warn("skipping invalid document", "doc_id", doc.ID, "error", err)
			continue
		}
		batch = append(batch, kafka.Event{Key: doc.ID, Value: ingestion.NewEvent(doc, p.now())})
		if len(batch) == p.batchSize {
			if err := flush(); err != nil {
				return published, err
			}
		}
	}
	if err := flush(); err != nil {
		return published, err
	}
	p.logger.Info("documents published", "count", published)
	return published, nil
}
