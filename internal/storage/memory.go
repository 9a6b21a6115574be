package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/thisdougb/telemetry/internal/metrics"
)

type memoryKey struct {
	store      string
	lifetime   metrics.Lifetime
	identifier string
}

// MemoryBackend implements Backend in memory. Nothing survives a restart, so
// it is only used for ephemeral runs and tests.
type MemoryBackend struct {
	mu        sync.RWMutex
	rows      map[memoryKey][]byte
	sequences map[string]int64
	uploads   []UploadRecord
	nextID    int64
	closed    bool
}

// NewMemoryBackend creates a new in-memory storage backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		rows:      make(map[memoryKey][]byte),
		sequences: make(map[string]int64),
	}
}

func (m *MemoryBackend) Get(store string, lifetime metrics.Lifetime, identifier string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, false, ErrClosed
	}
	v, ok := m.rows[memoryKey{store, lifetime, identifier}]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryBackend) Update(store string, lifetime metrics.Lifetime, identifier string, fn UpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	key := memoryKey{store, lifetime, identifier}
	old, ok := m.rows[key]
	next, err := fn(old, ok)
	if err != nil {
		return err
	}
	m.rows[key] = append([]byte(nil), next...)
	return nil
}

func (m *MemoryBackend) Rows(store string) ([]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	var rows []Row
	for k, v := range m.rows {
		if store != "" && k.store != store {
			continue
		}
		rows = append(rows, Row{
			Store:      k.store,
			Lifetime:   k.lifetime,
			Identifier: k.identifier,
			Value:      append([]byte(nil), v...),
		})
	}
	sortRows(rows)
	return rows, nil
}

func (m *MemoryBackend) Delete(store string, lifetimes []metrics.Lifetime) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	for k := range m.rows {
		if store != "" && k.store != store {
			continue
		}
		if containsLifetime(lifetimes, k.lifetime) {
			delete(m.rows, k)
		}
	}
	return nil
}

func (m *MemoryBackend) DeleteRow(store string, lifetime metrics.Lifetime, identifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	delete(m.rows, memoryKey{store, lifetime, identifier})
	return nil
}

func (m *MemoryBackend) NextSequence(ping string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}
	seq := m.sequences[ping]
	m.sequences[ping] = seq + 1
	return seq, nil
}

func (m *MemoryBackend) AddUpload(rec UploadRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}
	for _, u := range m.uploads {
		if u.DocumentID == rec.DocumentID {
			return 0, fmt.Errorf("upload %s already queued", rec.DocumentID)
		}
	}
	m.nextID++
	rec.ID = m.nextID
	m.uploads = append(m.uploads, copyRecord(rec))
	return rec.ID, nil
}

func (m *MemoryBackend) Uploads() ([]UploadRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	out := make([]UploadRecord, 0, len(m.uploads))
	for _, u := range m.uploads {
		out = append(out, copyRecord(u))
	}
	return out, nil
}

func (m *MemoryBackend) RequeueUpload(rec UploadRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}
	idx := m.indexOf(rec.DocumentID)
	if idx < 0 {
		return 0, ErrNotFound
	}
	// body and enqueue time are immutable once queued
	rec.Body = m.uploads[idx].Body
	rec.EnqueuedAt = m.uploads[idx].EnqueuedAt
	m.uploads = append(m.uploads[:idx], m.uploads[idx+1:]...)
	m.nextID++
	rec.ID = m.nextID
	m.uploads = append(m.uploads, copyRecord(rec))
	return rec.ID, nil
}

func (m *MemoryBackend) RemoveUpload(documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	idx := m.indexOf(documentID)
	if idx < 0 {
		return ErrNotFound
	}
	m.uploads = append(m.uploads[:idx], m.uploads[idx+1:]...)
	return nil
}

func (m *MemoryBackend) ClearUploads() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.uploads = nil
	return nil
}

// Close drops all data.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rows = nil
	m.sequences = nil
	m.uploads = nil
	m.closed = true
	return nil
}

// Len returns the number of stored rows (for testing)
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows)
}

// indexOf assumes the lock is held
func (m *MemoryBackend) indexOf(documentID string) int {
	for i, u := range m.uploads {
		if u.DocumentID == documentID {
			return i
		}
	}
	return -1
}

func copyRecord(rec UploadRecord) UploadRecord {
	rec.Body = append([]byte(nil), rec.Body...)
	rec.Headers = append([]Header(nil), rec.Headers...)
	return rec
}

func containsLifetime(lifetimes []metrics.Lifetime, l metrics.Lifetime) bool {
	for _, candidate := range lifetimes {
		if candidate == l {
			return true
		}
	}
	return false
}

func sortRows(rows []Row) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Store != rows[j].Store {
			return rows[i].Store < rows[j].Store
		}
		if rows[i].Identifier != rows[j].Identifier {
			return rows[i].Identifier < rows[j].Identifier
		}
		return rows[i].Lifetime < rows[j].Lifetime
	})
}
