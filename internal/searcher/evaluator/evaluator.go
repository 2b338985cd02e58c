// Package evaluator runs a parsed query against an index.
package evaluator

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/newsdex/newsdex/internal/indexer/index"
	"github.com/newsdex/newsdex/internal/indexer/tokenizer"
	"github.com/newsdex/newsdex/internal/searcher/parser"
)

// Searcher is the read-only view of an index the evaluator needs. The
// view must not change while a query runs.
type Searcher interface {
	Analyzer() *tokenizer.Analyzer
	All() index.Result
	SearchAnd(ctx context.Context, text string) (index.Result, error)
	SearchPhrase(ctx context.Context, text string) (index.Result, error)
	SearchNot(ctx context.Context, text string) (index.Result, error)
	SearchProximity(ctx context.Context, text string, maxDistance int) (index.Result, error)
}

// Evaluate walks node, evaluating the two sides of every AND and OR
// concurrently.
func Evaluate(ctx context.Context, s Searcher, node parser.Node) (index.Result, error) {
	if err := ctx.Err(); err != nil {
		return index.Result{}, err
	}
	switch n := node.(type) {
	case parser.Terms:
		return evalTerms(ctx, s, n)
	case parser.Phrase:
		return s.SearchPhrase(ctx, n.Text)
	case parser.Proximity:
		return s.SearchProximity(ctx, n.Text, n.Distance)
	case parser.Not:
		if terms, ok := n.Child.(parser.Terms); ok {
			return s.SearchNot(ctx, strings.Join(terms.Words, " "))
		}
		child, err := Evaluate(ctx, s, n.Child)
		if err != nil {
			return index.Result{}, err
		}
		return s.All().Difference(child), nil
	case parser.And:
		// x AND NOT y is a difference; the complement is never built.
		if not, ok := n.Right.(parser.Not); ok {
			left, right, err := both(ctx, s, n.Left, not.Child)
			if err != nil {
				return index.Result{}, err
			}
			return left.Difference(right), nil
		}
		if not, ok := n.Left.(parser.Not); ok {
			left, right, err := both(ctx, s, not.Child, n.Right)
			if err != nil {
				return index.Result{}, err
			}
			return right.Difference(left), nil
		}
		left, right, err := both(ctx, s, n.Left, n.Right)
		if err != nil {
			return index.Result{}, err
		}
		return left.Join(right), nil
	case parser.Or:
		left, right, err := both(ctx, s, n.Left, n.Right)
		if err != nil {
			return index.Result{}, err
		}
		return left.Union(right), nil
	default:
		return index.Result{}, fmt.Errorf("evaluating %T: unsupported query node", node)
	}
}

func both(ctx context.Context, s Searcher, a, b parser.Node) (index.Result, index.Result, error) {
	var left, right index.Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		left, err = Evaluate(gctx, s, a)
		return err
	})
	g.Go(func() error {
		var err error
		right, err = Evaluate(gctx, s, b)
		return err
	})
	if err := g.Wait(); err != nil {
		return index.Result{}, index.Result{}, err
	}
	return left, right, nil
}

// evalTerms joins the matches of every term by document. A word such as
// "covid-19" or "U.S." yields several terms, which are joined the same way
// as separate words. Terms the analyzer drops entirely, such as stop words,
// do not constrain the match.
func evalTerms(ctx context.Context, s Searcher, n parser.Terms) (index.Result, error) {
	var (
		out     index.Result
		started bool
	)
	for _, piece := range pieces(n.Words) {
		if len(s.Analyzer().Tokenize(piece)) == 0 {
			continue
		}
		r, err := s.SearchAnd(ctx, piece)
		if err != nil {
			return index.Result{}, err
		}
		if !started {
			out, started = r, true
		} else {
			out = out.Join(r)
		}
		if out.Empty() {
			return index.Result{}, nil
		}
	}
	return out, nil
}

// pieces splits words at the same boundaries the analyzer uses.
func pieces(words []string) []string {
	var out []string
	for _, w := range words {
		out = append(out, strings.FieldsFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})...)
	}
	return out
}
