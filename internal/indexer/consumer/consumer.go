// Package consumer indexes documents arriving on the ingest topic.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/newsdex/newsdex/internal/indexer/index"
	"github.com/newsdex/newsdex/internal/ingestion"
	apperrors "github.com/newsdex/newsdex/pkg/errors"
	"github.com/newsdex/newsdex/pkg/kafka"
	"github.com/newsdex/newsdex/pkg/metrics"
)

// Indexer is satisfied by *indexer.Engine.
type Indexer interface {
	IndexDocument(ctx context.Context, doc index.Document) (bool, error)
}

// HandleMessage returns a Kafka MessageHandler that indexes each ingest
// event. Undecodable events and invalid documents are skipped; other
// failures leave the message uncommitted.
func HandleMessage(ix Indexer, m *metrics.Metrics) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.IngestEvent](value)
		if err != nil {
			m.IngestEventsTotal.WithLabelValues("malformed").Inc()
			logger.Error("failed to decode ingest event", "error", err, "key", string(key))
			return err
		}
		added, err := ix.IndexDocument(ctx, event.Document())
		switch {
		case errors.Is(err, apperrors.ErrInvalidDocument):
			m.IngestEventsTotal.WithLabelValues("invalid").Inc()
			return fmt.Errorf("document %q: %w: %w", event.DocumentID, kafka.ErrSkipMessage, err)
		case err != nil:
			m.IngestEventsTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("indexing document %q: %w", event.DocumentID, err)
		case !added:
			m.IngestEventsTotal.WithLabelValues("duplicate").Inc()
			logger.Debug("document already indexed or empty", "doc_id", event.DocumentID)
		default:
			m.IngestEventsTotal.WithLabelValues("indexed").Inc()
			logger.Info("document indexed", "doc_id", event.DocumentID, "ingested_at", event.IngestedAt)
		}
		return nil
	}
}
