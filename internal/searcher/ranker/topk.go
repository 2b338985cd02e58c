package ranker

import "container/heap"

// TopK keeps the best k documents seen so far. Higher scores win; equal
// scores are ordered by the sequence number passed to Push, lower first.
type TopK struct {
	limit int
	h     scoredDocHeap
}

func NewTopK(limit int) *TopK {
	if limit <= 0 {
		limit = 10
	}
	return &TopK{limit: limit, h: make(scoredDocHeap, 0, limit+1)}
}

func (t *TopK) Push(doc ScoredDoc, seq int) {
	heap.Push(&t.h, rankedDoc{doc: doc, seq: seq})
	if t.h.Len() > t.limit {
		heap.Pop(&t.h)
	}
}

func (t *TopK) Len() int { return t.h.Len() }

// Results drains the heap and returns the documents best first.
func (t *TopK) Results() []ScoredDoc {
	result := make([]ScoredDoc, t.h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&t.h).(rankedDoc).doc
	}
	return result
}

type rankedDoc struct {
	doc ScoredDoc
	seq int
}

// scoredDocHeap is a min-heap: the root is the weakest document kept.
type scoredDocHeap []rankedDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool {
	if h[i].doc.Score != h[j].doc.Score {
		return h[i].doc.Score < h[j].doc.Score
	}
	return h[i].seq > h[j].seq
}

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x any) {
	*h = append(*h, x.(rankedDoc))
}

func (h *scoredDocHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
