// Package index implements the positional inverted index: per-term document
// frequencies and per-document posting lists, the boolean, phrase, proximity
// and ranked search primitives over them, and the flat-text index file.
//
// An Index has a single writer. Searches only read, so any number of them
// may run concurrently once writes have stopped; callers coordinate this.
package index

import (
	"slices"

	"github.com/newsdex/newsdex/internal/indexer/posting"
	"github.com/newsdex/newsdex/internal/indexer/tokenizer"
)

// DefaultRankLimit caps the number of ranked results.
const DefaultRankLimit = 150

type (
	termID     uint32
	docOrdinal uint32
)

type termEntry struct {
	term     string
	df       int
	postings map[docOrdinal]*posting.List
}

type Index struct {
	analyzer  *tokenizer.Analyzer
	rankLimit int
	budget    Budget

	termIDs map[string]termID
	terms   []termEntry

	docOrdinals map[string]docOrdinal
	docs        []string
}

type Option func(*Index)

// WithRankLimit caps ranked retrieval at n results.
func WithRankLimit(n int) Option {
	return func(ix *Index) {
		if n > 0 {
			ix.rankLimit = n
		}
	}
}

// WithBudget bounds the work of each search primitive.
func WithBudget(b Budget) Option {
	return func(ix *Index) { ix.budget = b }
}

// New returns an empty index. The analyzer is used for both documents and
// query text; a nil analyzer only lower-cases and splits.
func New(analyzer *tokenizer.Analyzer, opts ...Option) *Index {
	if analyzer == nil {
		analyzer = tokenizer.Plain()
	}
	ix := &Index{
		analyzer:  analyzer,
		rankLimit: DefaultRankLimit,
	}
	for _, opt := range opts {
		opt(ix)
	}
	ix.reset()
	return ix
}

func (ix *Index) reset() {
	ix.termIDs = make(map[string]termID)
	ix.terms = nil
	ix.docOrdinals = make(map[string]docOrdinal)
	ix.docs = nil
}

// Analyzer returns the analyzer shared by indexing and querying.
func (ix *Index) Analyzer() *tokenizer.Analyzer { return ix.analyzer }

func (ix *Index) RankLimit() int { return ix.rankLimit }

// TermPositions is the posting list of one term within an analyzed document.
type TermPositions struct {
	Term      string
	Positions *posting.List
}

// Analysis is the per-document partial index produced by Analyze and
// consumed by Merge.
type Analysis struct {
	DocID string
	Terms []TermPositions
}

// Analyze tokenizes a document into per-term posting lists. It does not
// touch the index and is safe to call from many goroutines.
func (ix *Index) Analyze(doc Document, includeExtra bool) Analysis {
	tokens := ix.analyzer.Tokenize(doc.Text(includeExtra))
	seen := make(map[string]int, len(tokens))
	a := Analysis{DocID: doc.ID}
	for offset, term := range tokens {
		i, ok := seen[term]
		if !ok {
			i = len(a.Terms)
			seen[term] = i
			a.Terms = append(a.Terms, TermPositions{Term: term, Positions: posting.New()})
		}
		a.Terms[i].Positions.Insert(offset)
	}
	return a
}

// Merge adds an analyzed document to the index. It is a no-op returning
// false when the id is already indexed or the document has no terms.
func (ix *Index) Merge(a Analysis) bool {
	if _, exists := ix.docOrdinals[a.DocID]; exists || len(a.Terms) == 0 {
		return false
	}
	ord := docOrdinal(len(ix.docs))
	ix.docOrdinals[a.DocID] = ord
	ix.docs = append(ix.docs, a.DocID)

	for _, tp := range a.Terms {
		entry := ix.entryFor(tp.Term)
		if existing, ok := entry.postings[ord]; ok {
			entry.postings[ord] = existing.Union(tp.Positions)
			continue
		}
		entry.postings[ord] = tp.Positions
		entry.df++
	}
	return true
}

// InsertDocument indexes doc unless its id is already present. It reports
// whether the index changed.
func (ix *Index) InsertDocument(doc Document, includeExtra bool) bool {
	if ix.Contains(doc.ID) {
		return false
	}
	return ix.Merge(ix.Analyze(doc, includeExtra))
}

func (ix *Index) entryFor(term string) *termEntry {
	id, ok := ix.termIDs[term]
	if !ok {
		id = termID(len(ix.terms))
		ix.termIDs[term] = id
		ix.terms = append(ix.terms, termEntry{
			term:     term,
			postings: make(map[docOrdinal]*posting.List),
		})
	}
	return &ix.terms[id]
}

func (ix *Index) lookup(term string) (*termEntry, bool) {
	id, ok := ix.termIDs[term]
	if !ok {
		return nil, false
	}
	return &ix.terms[id], true
}

func (ix *Index) Contains(docID string) bool {
	_, ok := ix.docOrdinals[docID]
	return ok
}

func (ix *Index) NumDocuments() int { return len(ix.docs) }

func (ix *Index) NumTerms() int { return len(ix.terms) }

// Vocabulary returns every indexed term in lexicographic order.
func (ix *Index) Vocabulary() []string {
	vocab := make([]string, len(ix.terms))
	for i, e := range ix.terms {
		vocab[i] = e.term
	}
	slices.Sort(vocab)
	return vocab
}

// DocumentIDs returns every indexed document id in CompareDocIDs order.
func (ix *Index) DocumentIDs() []string {
	ids := slices.Clone(ix.docs)
	slices.SortFunc(ids, CompareDocIDs)
	return ids
}

// DocumentFrequency returns the number of documents containing an indexed
// term. The term is not analyzed.
func (ix *Index) DocumentFrequency(term string) int {
	e, ok := ix.lookup(term)
	if !ok {
		return 0
	}
	return e.df
}

// Postings returns the positions of an indexed term in one document, or nil.
func (ix *Index) Postings(term, docID string) []int {
	e, ok := ix.lookup(term)
	if !ok {
		return nil
	}
	ord, ok := ix.docOrdinals[docID]
	if !ok {
		return nil
	}
	list, ok := e.postings[ord]
	if !ok {
		return nil
	}
	return list.Positions()
}

// sortedDocs returns the ordinals of entry's documents in CompareDocIDs
// order of their ids.
func (ix *Index) sortedDocs(e *termEntry) []docOrdinal {
	ords := make([]docOrdinal, 0, len(e.postings))
	for ord := range e.postings {
		ords = append(ords, ord)
	}
	slices.SortFunc(ords, func(a, b docOrdinal) int {
		return CompareDocIDs(ix.docs[a], ix.docs[b])
	})
	return ords
}
