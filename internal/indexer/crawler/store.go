package crawler

import (
	"context"
	"maps"
	"sync"
)

// Entry is the persisted state of one source file. An empty Checksum marks
// a path whose id is reserved but whose content has not been committed.
type Entry struct {
	Path     string
	Checksum string
	DocID    int64
}

// Store persists fingerprints between crawls.
type Store interface {
	// Load returns every known entry keyed by path.
	Load(ctx context.Context) (map[string]Entry, error)
	// Upsert inserts or replaces entries by path.
	Upsert(ctx context.Context, entries []Entry) error
	// Delete forgets the given paths.
	Delete(ctx context.Context, paths []string) error
	// NextID returns the lowest document id never handed out.
	NextID(ctx context.Context) (int64, error)
	// SetNextID raises the id high-water mark. Lower values are ignored.
	SetNextID(ctx context.Context, id int64) error
	Close() error
}

// MemoryStore keeps fingerprints in memory. It is used in tests and for
// one-shot builds that do not need incremental reloads across restarts.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
	nextID  int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (m *MemoryStore) Load(_ context.Context) (map[string]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.entries), nil
}

func (m *MemoryStore) Upsert(_ context.Context, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.entries[e.Path] = e
	}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, paths []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range paths {
		delete(m.entries, p)
	}
	return nil
}

func (m *MemoryStore) NextID(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextID, nil
}

func (m *MemoryStore) SetNextID(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID = max(m.nextID, id)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
