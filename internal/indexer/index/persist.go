package index

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/newsdex/newsdex/internal/indexer/posting"
	apperrors "github.com/newsdex/newsdex/pkg/errors"
)

// WriteTo writes the index in the flat-text format: terms in lexicographic
// order, each as a "term:df" header followed by one "\tdoc:p1,p2,..." line
// per document in CompareDocIDs order.
func (ix *Index) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	cw := &countingWriter{w: bw}

	var line []byte
	for _, term := range ix.Vocabulary() {
		entry, _ := ix.lookup(term)
		line = append(line[:0], term...)
		line = append(line, ':')
		line = strconv.AppendInt(line, int64(entry.df), 10)
		line = append(line, '\n')
		if _, err := cw.Write(line); err != nil {
			return cw.n, fmt.Errorf("writing term %s: %w", term, err)
		}
		for _, ord := range ix.sortedDocs(entry) {
			line = append(line[:0], '\t')
			line = append(line, ix.docs[ord]...)
			line = append(line, ':')
			for i, p := range entry.postings[ord].Positions() {
				if i > 0 {
					line = append(line, ',')
				}
				line = strconv.AppendInt(line, int64(p), 10)
			}
			line = append(line, '\n')
			if _, err := cw.Write(line); err != nil {
				return cw.n, fmt.Errorf("writing postings of %s: %w", term, err)
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return cw.n, fmt.Errorf("flushing index: %w", err)
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Save writes the index to path through a temporary file that is renamed
// into place once synced.
func (ix *Index) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating index directory: %w", err)
		}
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating index file: %w", err)
	}
	if _, err := ix.WriteTo(f); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing index file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming index file: %w", err)
	}
	return nil
}

// Load replaces the contents of ix with the index file at path. A missing
// file yields an error wrapping ErrIndexNotFound.
func (ix *Index) Load(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, apperrors.ErrIndexNotFound)
	}
	if err != nil {
		return fmt.Errorf("opening index file: %w", err)
	}
	defer f.Close()
	if _, err := ix.ReadFrom(f); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

type parsedTerm struct {
	term     string
	df       int
	postings map[string]*posting.List
}

// ReadFrom replaces the contents of ix with an index in the flat-text
// format. Document frequencies are taken from the term headers. Document
// ordinals are assigned in CompareDocIDs order, which becomes the ranking
// tie order. On error ix is unchanged.
func (ix *Index) ReadFrom(r io.Reader) (int64, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var (
		n       int64
		lineNo  int
		parsed  []parsedTerm
		current = -1
		docSeen = make(map[string]struct{})
	)
	corrupt := func(format string, args ...any) (int64, error) {
		return n, fmt.Errorf("line %d: %s: %w", lineNo, fmt.Sprintf(format, args...), apperrors.ErrCorruptIndex)
	}

	for sc.Scan() {
		lineNo++
		raw := sc.Text()
		n += int64(len(raw)) + 1
		line := strings.TrimRight(raw, "\r")
		if line == "" {
			continue
		}

		if line[0] != '\t' {
			sep := strings.LastIndexByte(line, ':')
			if sep <= 0 {
				return corrupt("malformed term header %q", line)
			}
			df, err := strconv.Atoi(line[sep+1:])
			if err != nil || df < 0 {
				return corrupt("malformed document frequency in %q", line)
			}
			parsed = append(parsed, parsedTerm{
				term:     line[:sep],
				df:       df,
				postings: make(map[string]*posting.List),
			})
			current = len(parsed) - 1
			continue
		}

		if current < 0 {
			return corrupt("postings before any term header")
		}
		body := line[1:]
		sep := strings.LastIndexByte(body, ':')
		if sep <= 0 {
			return corrupt("malformed posting line %q", line)
		}
		docID := body[:sep]
		list := posting.New()
		if fields := body[sep+1:]; fields != "" {
			for _, field := range strings.Split(fields, ",") {
				p, err := strconv.Atoi(strings.TrimSpace(field))
				if err != nil {
					return corrupt("malformed position %q", field)
				}
				list.Insert(p)
			}
		}
		pt := &parsed[current]
		if _, dup := pt.postings[docID]; dup {
			return corrupt("duplicate document %q for term %q", docID, pt.term)
		}
		pt.postings[docID] = list
		docSeen[docID] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return n, fmt.Errorf("reading index: %w", err)
	}

	docs := make([]string, 0, len(docSeen))
	for id := range docSeen {
		docs = append(docs, id)
	}
	slices.SortFunc(docs, CompareDocIDs)

	fresh := New(ix.analyzer, WithRankLimit(ix.rankLimit), WithBudget(ix.budget))
	for _, id := range docs {
		fresh.docOrdinals[id] = docOrdinal(len(fresh.docs))
		fresh.docs = append(fresh.docs, id)
	}
	for _, pt := range parsed {
		if _, dup := fresh.termIDs[pt.term]; dup {
			return n, fmt.Errorf("duplicate term %q: %w", pt.term, apperrors.ErrCorruptIndex)
		}
		entry := fresh.entryFor(pt.term)
		entry.df = pt.df
		for id, list := range pt.postings {
			entry.postings[fresh.docOrdinals[id]] = list
		}
	}

	ix.termIDs, ix.terms = fresh.termIDs, fresh.terms
	ix.docOrdinals, ix.docs = fresh.docOrdinals, fresh.docs
	return n, nil
}
