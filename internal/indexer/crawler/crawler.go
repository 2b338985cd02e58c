// Package crawler discovers news article files under a set of roots,
// fingerprints them with SHA-256 and reports which ones are new or changed
// since the previous commit. Each path keeps a stable sequential document id
// and ids of removed paths are never handed out again.
package crawler

import (
	"cmp"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// ErrNoSources is returned when no file with the configured extension exists
// under any root.
var ErrNoSources = errors.New("no source files found")

type Config struct {
	Roots     []string
	Extension string
}

type Crawler struct {
	roots     []string
	extension string
	store     Store
	logger    *slog.Logger
}

func New(cfg Config, store Store) *Crawler {
	return &Crawler{
		roots:     cfg.Roots,
		extension: cfg.Extension,
		store:     store,
		logger:    slog.Default().With("component", "crawler"),
	}
}

// Source is a file known to the crawler and the document id assigned to it.
type Source struct {
	Path  string
	DocID string
}

// Report is the outcome of one crawl.
type Report struct {
	// All lists every source currently on disk in document id order.
	All []Source
	// Added are sources seen for the first time.
	Added []Source
	// Modified are known sources whose content changed.
	Modified []Source
	// Removed are paths that disappeared since the last crawl.
	Removed []string

	checksums map[string]string
}

// Changed returns Added followed by Modified.
func (r Report) Changed() []Source {
	return append(slices.Clone(r.Added), r.Modified...)
}

// Crawl walks the roots and reports the differences against the last
// committed fingerprints. Ids for new paths are reserved and removed paths
// are forgotten immediately; new checksums are only saved by Commit, so a
// change that is never committed is reported again. Files that cannot be
// read are reported in the returned error and otherwise skipped; the report
// is still valid in that case.
func (c *Crawler) Crawl(ctx context.Context) (Report, error) {
	known, err := c.store.Load(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("loading fingerprints: %w", err)
	}
	nextID, err := c.store.NextID(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("loading fingerprints: %w", err)
	}
	for _, e := range known {
		nextID = max(nextID, e.DocID+1)
	}

	var errs *multierror.Error
	paths, walkErr := c.walk(ctx)
	if walkErr != nil {
		if ctx.Err() != nil {
			return Report{}, ctx.Err()
		}
		errs = multierror.Append(errs, walkErr)
	}

	var (
		report   = Report{checksums: make(map[string]string)}
		reserved []Entry
		seen     = make(map[string]struct{}, len(paths))
	)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		seen[path] = struct{}{}
		sum, err := checksum(path)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		prev, ok := known[path]
		switch {
		case !ok:
			e := Entry{Path: path, DocID: nextID}
			nextID++
			reserved = append(reserved, e)
			known[path] = e
			report.checksums[path] = sum
			report.Added = append(report.Added, source(e))
		case prev.Checksum == "":
			report.checksums[path] = sum
			report.Added = append(report.Added, source(prev))
		case prev.Checksum != sum:
			report.checksums[path] = sum
			report.Modified = append(report.Modified, source(prev))
		}
	}

	for path := range known {
		if _, ok := seen[path]; !ok {
			report.Removed = append(report.Removed, path)
		}
	}
	slices.Sort(report.Removed)
	current := make([]Entry, 0, len(seen))
	for path, e := range known {
		if _, ok := seen[path]; ok {
			current = append(current, e)
		}
	}
	slices.SortFunc(current, func(a, b Entry) int {
		return cmp.Compare(a.DocID, b.DocID)
	})
	for _, e := range current {
		report.All = append(report.All, source(e))
	}

	if err := c.store.SetNextID(ctx, nextID); err != nil {
		return Report{}, fmt.Errorf("reserving document ids: %w", err)
	}
	if err := c.store.Upsert(ctx, reserved); err != nil {
		return Report{}, fmt.Errorf("reserving document ids: %w", err)
	}
	if err := c.store.Delete(ctx, report.Removed); err != nil {
		return Report{}, fmt.Errorf("removing fingerprints: %w", err)
	}

	if len(report.All) == 0 && errs == nil {
		return report, ErrNoSources
	}
	c.logger.Info("crawl complete",
		"sources", len(report.All),
		"added", len(report.Added),
		"modified", len(report.Modified),
		"removed", len(report.Removed),
		"errors", errorCount(errs),
	)
	return report, errs.ErrorOrNil()
}

// Commit saves the fingerprints of every changed source in report except
// the failed paths, which stay pending and are reported by the next crawl.
func (c *Crawler) Commit(ctx context.Context, report Report, failed ...string) error {
	skip := make(map[string]struct{}, len(failed))
	for _, p := range failed {
		skip[p] = struct{}{}
	}
	var entries []Entry
	for _, src := range report.Changed() {
		if _, ok := skip[src.Path]; ok {
			continue
		}
		sum, ok := report.checksums[src.Path]
		if !ok {
			continue
		}
		id, err := strconv.ParseInt(src.DocID, 10, 64)
		if err != nil {
			return fmt.Errorf("committing %s: %w", src.Path, err)
		}
		entries = append(entries, Entry{Path: src.Path, Checksum: sum, DocID: id})
	}
	if err := c.store.Upsert(ctx, entries); err != nil {
		return fmt.Errorf("saving fingerprints: %w", err)
	}
	c.logger.Debug("fingerprints committed", "committed", len(entries), "pending", len(failed))
	return nil
}

func errorCount(errs *multierror.Error) int {
	if errs == nil {
		return 0
	}
	return len(errs.Errors)
}

func source(e Entry) Source {
	return Source{Path: e.Path, DocID: strconv.FormatInt(e.DocID, 10)}
}

// walk returns every matching file under the roots in lexical order.
func (c *Crawler) walk(ctx context.Context) ([]string, error) {
	var (
		paths []string
		errs  *multierror.Error
	)
	for _, root := range c.roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("walking %s: %w", path, err))
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if d.IsDir() || !strings.HasSuffix(d.Name(), c.extension) {
				return nil
			}
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	slices.Sort(paths)
	return slices.Compact(paths), errs.ErrorOrNil()
}

func checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
