package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/newsdex/newsdex/internal/indexer/index"
	"github.com/newsdex/newsdex/internal/searcher/evaluator"
	"github.com/newsdex/newsdex/internal/searcher/executor"
	"github.com/newsdex/newsdex/internal/searcher/parser"
	"github.com/newsdex/newsdex/internal/searcher/ranker"
	"github.com/newsdex/newsdex/pkg/config"
)

var queries = []struct {
	name  string
	query string
}{
	{"terms", "storm market"},
	{"boolean_and", "storm AND market AND flood"},
	{"boolean_or", "storm OR court OR strike"},
	{"with_not", "storm AND NOT market"},
	{"phrase", `"storm news"`},
	{"proximity", "#5(officials warned)"},
	{"complex", `(storm OR flood) AND #10(reporters week) AND NOT "market news"`},
}

// BenchmarkQueryParse measures parsing latency for queries of varying
// complexity.
func BenchmarkQueryParse(b *testing.B) {
	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := parser.Parse(q.query); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkEvaluate measures evaluation of parsed queries over 10 000
// documents.
func BenchmarkEvaluate(b *testing.B) {
	ix := buildIndex(b, 10000)
	for _, q := range queries {
		node, err := parser.Parse(q.query)
		if err != nil {
			b.Fatal(err)
		}
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := evaluator.Evaluate(context.Background(), ix, node); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkRankedRetrieval measures tf-idf scoring for growing corpora.
func BenchmarkRankedRetrieval(b *testing.B) {
	for _, n := range []int{100, 1000, 10000} {
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			ix := buildIndex(b, n)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := ix.RankedRetrieval(context.Background(), "storm officials week"); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkTopK measures bounded selection over many scored documents.
func BenchmarkTopK(b *testing.B) {
	for _, limit := range []int{10, 150} {
		b.Run(fmt.Sprintf("limit_%d", limit), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				top := ranker.NewTopK(limit)
				for d := 0; d < 10000; d++ {
					top.Push(ranker.ScoredDoc{DocID: fmt.Sprint(d), Score: float64(d % 97)}, d)
				}
				_ = top.Results()
			}
		})
	}
}

type staticIndex struct{ ix *index.Index }

func (s staticIndex) View(fn func(*index.Index) error) error { return fn(s.ix) }
func (s staticIndex) Generation() uint64                     { return 1 }

// BenchmarkExecutorSearchParallel measures the uncached search path under
// concurrent load.
func BenchmarkExecutorSearchParallel(b *testing.B) {
	exec := executor.New(staticIndex{buildIndex(b, 10000)}, config.SearchConfig{
		RankLimit:    150,
		DefaultLimit: 20,
	})
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		for i := 0; pb.Next(); i++ {
			if _, err := exec.Search(ctx, queries[i%len(queries)].query); err != nil {
				b.Fatal(err)
			}
		}
	})
}
