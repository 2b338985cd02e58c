package index

import (
	"context"

	"github.com/newsdex/newsdex/internal/searcher/ranker"
)

// RankedRetrieval scores every document containing at least one query term
// by summing tf-idf over the query terms, and returns the best RankLimit
// documents, highest score first. Equal scores keep insertion order. An
// index read back with ReadFrom has no insertion order of its own, so there
// ties follow CompareDocIDs order. Terms outside the vocabulary contribute
// nothing.
func (ix *Index) RankedRetrieval(ctx context.Context, text string) ([]ranker.ScoredDoc, error) {
	const op = "ranked retrieval"
	terms := ix.analyzer.Tokenize(text)
	if len(terms) == 0 {
		return nil, ctx.Err()
	}
	m := newMeter(ctx, ix.budget)
	n := len(ix.docs)

	scores := make(map[docOrdinal]float64)
	for _, term := range terms {
		entry, ok := ix.lookup(term)
		if !ok {
			continue
		}
		if err := m.charge(op, len(entry.postings)); err != nil {
			return nil, err
		}
		for ord, list := range entry.postings {
			scores[ord] += ranker.TfIdf(list.Len(), entry.df, n)
		}
	}
	if err := m.candidates(op, len(scores)); err != nil {
		return nil, err
	}

	top := ranker.NewTopK(ix.rankLimit)
	for ord, score := range scores {
		top.Push(ranker.ScoredDoc{DocID: ix.docs[ord], Score: score}, int(ord))
	}
	return top.Results(), nil
}
