// Package tokenizer provides text tokenisation for the search engine.
// It lower-cases input, splits on non-alphanumeric boundaries, optionally
// removes stop-words and optionally applies the Snowball English stemmer.
package tokenizer

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
)

var defaultStopWords = []string{
	"a", "an", "and", "are", "as", "at",
	"be", "by", "for", "from", "has", "he",
	"in", "is", "it", "its", "of", "on",
	"or", "that", "the", "to", "was", "were",
	"will", "with", "this", "but", "they",
	"have", "had", "what", "when", "where",
	"who", "which", "their", "if", "each",
	"do", "not", "no", "so", "can",
}

// Options configures an Analyzer.
type Options struct {
	RemoveStopwords bool
	// StopwordsFile replaces the built-in list; one word per line.
	StopwordsFile string
	Stem          bool
}

// Analyzer turns text into a stream of normalised terms. The zero value
// lower-cases and splits only. An Analyzer is immutable and safe for
// concurrent use.
type Analyzer struct {
	stopWords map[string]struct{}
	stem      bool
}

func New(opts Options) (*Analyzer, error) {
	a := &Analyzer{stem: opts.Stem}
	if !opts.RemoveStopwords {
		return a, nil
	}
	words := defaultStopWords
	if opts.StopwordsFile != "" {
		loaded, err := readStopWords(opts.StopwordsFile)
		if err != nil {
			return nil, err
		}
		words = loaded
	}
	a.stopWords = make(map[string]struct{}, len(words))
	for _, w := range words {
		a.stopWords[strings.ToLower(w)] = struct{}{}
	}
	return a, nil
}

// Plain returns an analyzer that only lower-cases and splits.
func Plain() *Analyzer {
	return &Analyzer{}
}

func readStopWords(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening stop-word file %s: %w", path, err)
	}
	defer f.Close()

	var words []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if w := strings.TrimSpace(sc.Text()); w != "" {
			words = append(words, w)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading stop-word file %s: %w", path, err)
	}
	return words, nil
}

// Tokenize breaks text into lowercased terms. The index of a term in the
// returned slice is its stream offset.
func (a *Analyzer) Tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := words[:0]
	for _, word := range words {
		if _, isStop := a.stopWords[word]; isStop {
			continue
		}
		if a.stem {
			word = english.Stem(word, false)
		}
		if word == "" {
			continue
		}
		terms = append(terms, word)
	}
	return terms
}

// IsStopWord reports whether word is removed by this analyzer.
func (a *Analyzer) IsStopWord(word string) bool {
	_, ok := a.stopWords[strings.ToLower(word)]
	return ok
}
