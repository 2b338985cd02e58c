package crawler

import (
	"fmt"
	"html"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/newsdex/newsdex/internal/indexer/index"
)

var repeatedSpaceRegex = regexp.MustCompile(`\s+`)

// tag pulls every element of one HTML tag into a document part.
type tag struct {
	re    *regexp.Regexp
	field string
}

const (
	fieldTitle = "HEADLINE"
	fieldBody  = "TEXT"
)

var tags = []tag{
	{regexp.MustCompile(`(?is)<h1\b[^>]*>(.*?)</h1>`), fieldTitle},
	{regexp.MustCompile(`(?is)<p\b[^>]*>(.*?)</p>`), fieldBody},
	{regexp.MustCompile(`(?is)<sub\b[^>]*>(.*?)</sub>`), "DATE"},
	{regexp.MustCompile(`(?is)<h3\b[^>]*>(.*?)</h3>`), "PUB"},
}

// Extractor turns stored article pages into index documents.
type Extractor struct {
	policyPool sync.Pool
}

func NewExtractor() *Extractor {
	return &Extractor{
		policyPool: sync.Pool{
			New: func() any {
				return bluemonday.StrictPolicy()
			},
		},
	}
}

// ExtractFile reads an article page and returns it as a document with the
// given id.
func (x *Extractor) ExtractFile(path, docID string) (index.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return index.Document{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return x.Extract(string(raw), docID), nil
}

// Extract maps <h1> elements to the title, <p> to the body, <sub> to DATE
// and <h3> to PUB. Multiple elements of one tag are joined with spaces.
func (x *Extractor) Extract(page, docID string) index.Document {
	policy := x.policyPool.Get().(*bluemonday.Policy)
	defer x.policyPool.Put(policy)

	doc := index.Document{ID: docID}
	for _, t := range tags {
		var parts []string
		for _, m := range t.re.FindAllStringSubmatch(page, -1) {
			if text := cleanText(policy, m[1]); text != "" {
				parts = append(parts, text)
			}
		}
		if len(parts) == 0 {
			continue
		}
		joined := strings.Join(parts, " ")
		switch t.field {
		case fieldTitle:
			doc.Title = joined
		case fieldBody:
			doc.Body = joined
		default:
			if doc.Fields == nil {
				doc.Fields = make(map[string]string)
			}
			doc.Fields[t.field] = joined
		}
	}
	return doc
}

func cleanText(policy *bluemonday.Policy, fragment string) string {
	return strings.TrimSpace(html.UnescapeString(repeatedSpaceRegex.ReplaceAllString(
		policy.Sanitize(fragment), " ",
	)))
}
