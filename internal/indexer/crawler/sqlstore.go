package crawler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/newsdex/newsdex/pkg/postgres"
)

type dialect struct {
	schema    []string
	upsert    string
	delete    string
	setNextID string
}

var sqliteDialect = dialect{
	schema: []string{
		`CREATE TABLE IF NOT EXISTS fingerprints (
			path       TEXT PRIMARY KEY,
			checksum   TEXT NOT NULL,
			doc_id     INTEGER NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS crawl_state (
			name  TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		)`,
	},
	upsert: `INSERT INTO fingerprints (path, checksum, doc_id, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(path) DO UPDATE SET
			checksum = excluded.checksum,
			doc_id = excluded.doc_id,
			updated_at = CURRENT_TIMESTAMP`,
	delete: `DELETE FROM fingerprints WHERE path = ?`,
	setNextID: `INSERT INTO crawl_state (name, value) VALUES ('next_id', ?)
		ON CONFLICT(name) DO UPDATE SET value = MAX(value, excluded.value)`,
}

var postgresDialect = dialect{
	schema: []string{
		`CREATE TABLE IF NOT EXISTS fingerprints (
			path       TEXT PRIMARY KEY,
			checksum   TEXT NOT NULL,
			doc_id     BIGINT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS crawl_state (
			name  TEXT PRIMARY KEY,
			value BIGINT NOT NULL
		)`,
	},
	upsert: `INSERT INTO fingerprints (path, checksum, doc_id, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (path) DO UPDATE SET
			checksum = EXCLUDED.checksum,
			doc_id = EXCLUDED.doc_id,
			updated_at = now()`,
	delete: `DELETE FROM fingerprints WHERE path = $1`,
	setNextID: `INSERT INTO crawl_state (name, value) VALUES ('next_id', $1)
		ON CONFLICT (name) DO UPDATE SET value = GREATEST(crawl_state.value, EXCLUDED.value)`,
}

// SQLStore persists fingerprints in a SQL database.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	closer  func() error
}

// OpenSQLite opens (creating if needed) a SQLite fingerprint database.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating fingerprint directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLStore{db: db, dialect: sqliteDialect, closer: db.Close}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore stores fingerprints through an open Postgres client.
func NewPostgresStore(ctx context.Context, client *postgres.Client) (*SQLStore, error) {
	s := &SQLStore{db: client.DB, dialect: postgresDialect, closer: client.Close}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating crawler tables: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) Load(ctx context.Context) (map[string]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, checksum, doc_id FROM fingerprints`)
	if err != nil {
		return nil, fmt.Errorf("querying fingerprints: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]Entry)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Path, &e.Checksum, &e.DocID); err != nil {
			return nil, fmt.Errorf("scanning fingerprint: %w", err)
		}
		entries[e.Path] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fingerprints: %w", err)
	}
	return entries, nil
}

func (s *SQLStore) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.inTx(ctx, s.dialect.upsert, func(stmt *sql.Stmt) error {
		for _, e := range entries {
			if _, err := stmt.ExecContext(ctx, e.Path, e.Checksum, e.DocID); err != nil {
				return fmt.Errorf("upserting fingerprint %s: %w", e.Path, err)
			}
		}
		return nil
	})
}

func (s *SQLStore) Delete(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	return s.inTx(ctx, s.dialect.delete, func(stmt *sql.Stmt) error {
		for _, p := range paths {
			if _, err := stmt.ExecContext(ctx, p); err != nil {
				return fmt.Errorf("deleting fingerprint %s: %w", p, err)
			}
		}
		return nil
	})
}

// NextID falls back to the largest stored id plus one for databases written
// before the high-water mark existed.
func (s *SQLStore) NextID(ctx context.Context) (int64, error) {
	var next sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM crawl_state WHERE name = 'next_id'`).Scan(&next)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("reading next document id: %w", err)
	}
	var top sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(doc_id) FROM fingerprints`).Scan(&top); err != nil {
		return 0, fmt.Errorf("reading largest document id: %w", err)
	}
	if top.Valid {
		return max(next.Int64, top.Int64+1), nil
	}
	return next.Int64, nil
}

func (s *SQLStore) SetNextID(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.setNextID, id); err != nil {
		return fmt.Errorf("saving next document id: %w", err)
	}
	return nil
}

func (s *SQLStore) inTx(ctx context.Context, query string, fn func(stmt *sql.Stmt) error) error {
	return postgres.InTx(ctx, s.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer stmt.Close()
		return fn(stmt)
	})
}

func (s *SQLStore) Close() error {
	return s.closer()
}
