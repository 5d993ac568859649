package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rostralabs/rostra/internal/debate"
	"github.com/rostralabs/rostra/internal/errors"
)

// MemoryStore is the process-local Store used by default and in tests.
// Documents are held as encoded JSON so loads always return isolated
// copies, same as the networked backends.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	closed  bool
}

type memoryEntry struct {
	data      []byte
	version   uint64
	createdAt time.Time
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry)}
}

// Create persists a brand-new session.
func (m *MemoryStore) Create(ctx context.Context, s *debate.Session) error {
	data, err := marshalSession(s)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.ErrStoreClosed
	}
	if _, ok := m.entries[s.ID]; ok {
		return errors.ErrSessionExists
	}
	m.entries[s.ID] = &memoryEntry{data: data, version: s.Version, createdAt: s.CreatedAt}
	return nil
}

// Save persists a snapshot if it is newer than the stored version.
func (m *MemoryStore) Save(ctx context.Context, s *debate.Session) error {
	data, err := marshalSession(s)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.ErrStoreClosed
	}
	entry, ok := m.entries[s.ID]
	if !ok {
		return errors.ErrSessionNotFound
	}
	if entry.version >= s.Version {
		return errors.ErrVersionConflict
	}
	entry.data = data
	entry.version = s.Version
	return nil
}

// Load retrieves a session by id.
func (m *MemoryStore) Load(ctx context.Context, id string) (*debate.Session, error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, errors.ErrStoreClosed
	}
	entry, ok := m.entries[id]
	if !ok {
		m.mu.RUnlock()
		return nil, errors.ErrSessionNotFound
	}
	data := entry.data
	m.mu.RUnlock()

	return unmarshalSession(data)
}

// List returns summaries of stored sessions, newest first.
func (m *MemoryStore) List(ctx context.Context) ([]Summary, error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, errors.ErrStoreClosed
	}
	docs := make([][]byte, 0, len(m.entries))
	for _, entry := range m.entries {
		docs = append(docs, entry.data)
	}
	m.mu.RUnlock()

	summaries := make([]Summary, 0, len(docs))
	for _, data := range docs {
		s, err := unmarshalSession(data)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summarize(s))
	}
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
		}
		return summaries[i].ID < summaries[j].ID
	})
	return summaries, nil
}

// Delete removes a session.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.ErrStoreClosed
	}
	if _, ok := m.entries[id]; !ok {
		return errors.ErrSessionNotFound
	}
	delete(m.entries, id)
	return nil
}

// Ping reports whether the store accepts operations.
func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return errors.ErrStoreClosed
	}
	return nil
}

// Close marks the store closed and drops all entries.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.entries = nil
	return nil
}

// Len reports the number of stored sessions. Test helper.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
