package index

import (
	"context"
	"slices"

	"github.com/newsdex/newsdex/internal/indexer/posting"
)

// SearchAnd intersects the position lists of every query term per
// document, starting from the first term's documents. Documents whose
// running intersection becomes empty are dropped. Positions are ANDed, so
// two distinct terms only match where they share a position.
func (ix *Index) SearchAnd(ctx context.Context, text string) (Result, error) {
	return ix.positionalJoin(ctx, "search and", ix.analyzer.Tokenize(text), false)
}

// SearchPhrase matches documents where the query terms occur at consecutive
// positions. Result positions are the phrase start offsets.
func (ix *Index) SearchPhrase(ctx context.Context, text string) (Result, error) {
	return ix.positionalJoin(ctx, "search phrase", ix.analyzer.Tokenize(text), true)
}

// positionalJoin runs the shared AND/phrase loop. With shift set, term k is
// decremented by k before intersecting so adjacent terms align.
func (ix *Index) positionalJoin(ctx context.Context, op string, terms []string, shift bool) (Result, error) {
	if len(terms) == 0 {
		return Result{}, ctx.Err()
	}
	m := newMeter(ctx, ix.budget)

	first, ok := ix.lookup(terms[0])
	if !ok {
		return Result{}, ctx.Err()
	}
	if err := m.candidates(op, len(first.postings)); err != nil {
		return Result{}, err
	}
	cache := make(map[docOrdinal]*posting.List, len(first.postings))
	for ord, list := range first.postings {
		cache[ord] = list
	}

	for k, term := range terms[1:] {
		entry, ok := ix.lookup(term)
		if !ok {
			return Result{}, ctx.Err()
		}
		for ord, running := range cache {
			list, ok := entry.postings[ord]
			if !ok {
				delete(cache, ord)
				continue
			}
			if shift {
				list = list.Decrement(k + 1)
			}
			if err := m.charge(op, running.Len()+list.Len()); err != nil {
				return Result{}, err
			}
			joined := running.Intersect(list)
			if joined.Empty() {
				delete(cache, ord)
				continue
			}
			cache[ord] = joined
		}
		if len(cache) == 0 {
			return Result{}, ctx.Err()
		}
	}

	matches := make([]Match, 0, len(cache))
	for ord, list := range cache {
		matches = append(matches, Match{DocID: ix.docs[ord], Positions: list.Positions()})
	}
	return newResult(matches), nil
}

// SearchNot returns every indexed document containing none of the query
// terms. An empty term list excludes nothing.
func (ix *Index) SearchNot(ctx context.Context, text string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	excluded := make(map[docOrdinal]struct{})
	for _, term := range ix.analyzer.Tokenize(text) {
		entry, ok := ix.lookup(term)
		if !ok {
			continue
		}
		for ord := range entry.postings {
			excluded[ord] = struct{}{}
		}
	}
	return ix.allExcept(excluded), nil
}

// All returns every indexed document.
func (ix *Index) All() Result {
	return ix.allExcept(nil)
}

func (ix *Index) allExcept(excluded map[docOrdinal]struct{}) Result {
	matches := make([]Match, 0, len(ix.docs)-len(excluded))
	for ord, id := range ix.docs {
		if _, skip := excluded[docOrdinal(ord)]; skip {
			continue
		}
		matches = append(matches, Match{DocID: id})
	}
	return newResult(matches)
}

// SearchProximity matches documents containing every query term where some
// window holding one occurrence of each term spans at most maxDistance
// positions. Term order does not matter. Result positions are those of the
// first satisfying window.
func (ix *Index) SearchProximity(ctx context.Context, text string, maxDistance int) (Result, error) {
	const op = "search proximity"
	terms := ix.analyzer.Tokenize(text)
	if len(terms) == 0 || maxDistance < 0 {
		return Result{}, ctx.Err()
	}

	entries := make([]*termEntry, len(terms))
	for i, term := range terms {
		e, ok := ix.lookup(term)
		if !ok {
			return Result{}, ctx.Err()
		}
		entries[i] = e
	}
	smallest := slices.MinFunc(entries, func(a, b *termEntry) int {
		return len(a.postings) - len(b.postings)
	})

	m := newMeter(ctx, ix.budget)
	if err := m.candidates(op, len(smallest.postings)); err != nil {
		return Result{}, err
	}

	var matches []Match
	lists := make([]*posting.List, len(entries))
candidates:
	for ord := range smallest.postings {
		for i, e := range entries {
			list, ok := e.postings[ord]
			if !ok {
				continue candidates
			}
			lists[i] = list
		}
		window, err := firstWindow(m, lists, maxDistance)
		if err != nil {
			return Result{}, err
		}
		if window != nil {
			matches = append(matches, Match{DocID: ix.docs[ord], Positions: window})
		}
	}
	return newResult(matches), nil
}

// firstWindow walks one iterator per list, always advancing the one at the
// minimum position, and returns the sorted distinct positions of the first
// window whose span is within maxDistance, or nil.
func firstWindow(m *meter, lists []*posting.List, maxDistance int) ([]int, error) {
	iters := make([]*posting.Iterator, len(lists))
	for i, l := range lists {
		iters[i] = l.Iterator()
	}
	for {
		if err := m.charge("search proximity", len(iters)); err != nil {
			return nil, err
		}
		lo, hi := 0, 0
		for i, it := range iters {
			if !it.Valid() {
				return nil, nil
			}
			if it.Value() < iters[lo].Value() {
				lo = i
			}
			if it.Value() > iters[hi].Value() {
				hi = i
			}
		}
		minPos, maxPos := iters[lo].Value(), iters[hi].Value()
		if maxPos-minPos <= maxDistance {
			window := make([]int, len(iters))
			for i, it := range iters {
				window[i] = it.Value()
			}
			slices.Sort(window)
			return slices.Compact(window), nil
		}
		// The maximum never decreases, so anything below maxPos-maxDistance
		// can never be part of a window.
		iters[lo].Next()
		iters[lo].SkipTo(maxPos - maxDistance)
	}
}
