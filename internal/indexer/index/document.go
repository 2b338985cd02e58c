package index

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/newsdex/newsdex/pkg/errors"
)

// ExtraFields are the auxiliary metadata fields appended to the token stream
// when a document is inserted with extra fields enabled, in this order.
var ExtraFields = []string{"PROFILE", "DATE", "BYLINE", "DATELINE", "PUB", "PAGE"}

// Document is one news article as supplied by the crawler or an ingest event.
type Document struct {
	ID     string            `json:"document_id"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Validate rejects documents whose id cannot be stored in the index file.
func (d Document) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: empty document id", apperrors.ErrInvalidDocument)
	}
	if strings.ContainsAny(d.ID, "\t\r\n") {
		return fmt.Errorf("%w: document id %q contains control whitespace", apperrors.ErrInvalidDocument, d.ID)
	}
	return nil
}

// Text returns the text that is tokenized for the document: title, then
// body, then the extra fields when includeExtra is set.
func (d Document) Text(includeExtra bool) string {
	var sb strings.Builder
	sb.WriteString(d.Title)
	sb.WriteByte(' ')
	sb.WriteString(d.Body)
	if includeExtra {
		for _, field := range ExtraFields {
			if v, ok := d.Fields[field]; ok && v != "" {
				sb.WriteByte(' ')
				sb.WriteString(v)
			}
		}
	}
	return sb.String()
}

// CompareDocIDs orders document ids numerically when both are non-negative
// integers and lexicographically otherwise. Numeric ids sort before others.
func CompareDocIDs(a, b string) int {
	na, errA := strconv.ParseUint(a, 10, 64)
	nb, errB := strconv.ParseUint(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		if c := cmp.Compare(na, nb); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
		return cmp.Compare(a, b)
	}
}
