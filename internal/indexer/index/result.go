package index

import "slices"

// Match is one matching document and the positions that satisfied the
// query. Positions are nil for operations that only match documents.
type Match struct {
	DocID     string `json:"doc_id"`
	Positions []int  `json:"positions,omitempty"`
}

// Result is the outcome of every query primitive: matches in CompareDocIDs
// order, each document at most once.
type Result struct {
	Matches []Match `json:"matches"`
}

func newResult(matches []Match) Result {
	slices.SortFunc(matches, func(a, b Match) int {
		return CompareDocIDs(a.DocID, b.DocID)
	})
	return Result{Matches: matches}
}

func (r Result) Len() int { return len(r.Matches) }

func (r Result) Empty() bool { return len(r.Matches) == 0 }

func (r Result) DocIDs() []string {
	ids := make([]string, len(r.Matches))
	for i, m := range r.Matches {
		ids[i] = m.DocID
	}
	return ids
}

func (r Result) Contains(docID string) bool {
	_, found := slices.BinarySearchFunc(r.Matches, docID, func(m Match, id string) int {
		return CompareDocIDs(m.DocID, id)
	})
	return found
}

func concatPositions(a, b []int) []int {
	if a == nil && b == nil {
		return nil
	}
	out := make([]int, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// Join keeps documents present in both results; positions are r's followed
// by other's.
func (r Result) Join(other Result) Result {
	out := make([]Match, 0, min(r.Len(), other.Len()))
	i, j := 0, 0
	for i < r.Len() && j < other.Len() {
		a, b := r.Matches[i], other.Matches[j]
		switch c := CompareDocIDs(a.DocID, b.DocID); {
		case c == 0:
			out = append(out, Match{DocID: a.DocID, Positions: concatPositions(a.Positions, b.Positions)})
			i++
			j++
		case c < 0:
			i++
		default:
			j++
		}
	}
	return Result{Matches: out}
}

// Union keeps documents present in either result; shared documents get the
// concatenation of both position lists.
func (r Result) Union(other Result) Result {
	out := make([]Match, 0, r.Len()+other.Len())
	i, j := 0, 0
	for i < r.Len() && j < other.Len() {
		a, b := r.Matches[i], other.Matches[j]
		switch c := CompareDocIDs(a.DocID, b.DocID); {
		case c == 0:
			out = append(out, Match{DocID: a.DocID, Positions: concatPositions(a.Positions, b.Positions)})
			i++
			j++
		case c < 0:
			out = append(out, a)
			i++
		default:
			out = append(out, b)
			j++
		}
	}
	out = append(out, r.Matches[i:]...)
	out = append(out, other.Matches[j:]...)
	return Result{Matches: out}
}

// Difference keeps documents of r that are absent from other.
func (r Result) Difference(other Result) Result {
	out := make([]Match, 0, r.Len())
	j := 0
	for _, a := range r.Matches {
		for j < other.Len() && CompareDocIDs(other.Matches[j].DocID, a.DocID) < 0 {
			j++
		}
		if j < other.Len() && other.Matches[j].DocID == a.DocID {
			continue
		}
		out = append(out, a)
	}
	return Result{Matches: out}
}
