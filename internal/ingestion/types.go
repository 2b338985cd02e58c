// Package ingestion defines the Kafka event that carries a document to
// the indexer, and the publisher that produces it.
package ingestion

import (
	"time"

	"github.com/newsdex/newsdex/internal/indexer/index"
)

// IngestEvent is the Kafka message payload for one document.
type IngestEvent struct {
	DocumentID string            `json:"document_id"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Fields     map[string]string `json:"fields,omitempty"`
	IngestedAt time.Time         `json:"ingested_at"`
}

func NewEvent(doc index.Document, at time.Time) IngestEvent {
	return IngestEvent{
		DocumentID: doc.ID,
		Title:      doc.Title,
		Body:       doc.Body,
		Fields:     doc.Fields,
		IngestedAt: at.UTC(),
	}
}

func (e IngestEvent) Document() index.Document {
	return index.Document{ID: e.DocumentID, Title: e.Title, Body: e.Body, Fields: e.Fields}
}
