package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/roach88/erdsync/internal/diagram"
)

// MemStore keeps diagrams in memory. Payloads go through the same
// encoding as the SQL stores, so round-trips behave identically.
//
// Thread-safety: MemStore is safe for concurrent use via internal mutex.
type MemStore struct {
	mu      sync.Mutex
	records map[string]record
	config  Config
	now     func() time.Time
}

var _ DiagramStore = (*MemStore)(nil)

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]record), now: time.Now}
}

// GetDiagram implements DiagramStore.
func (m *MemStore) GetDiagram(_ context.Context, id string) (diagram.Diagram, error) {
	m.mu.Lock()
	rec, ok := m.records[id]
	m.mu.Unlock()
	if !ok {
		return diagram.Diagram{}, fmt.Errorf("get diagram %s: %w", id, ErrNotFound)
	}
	return Decode(rec.payload, rec.summary.CreatedAt, rec.summary.UpdatedAt)
}

// ListDiagrams implements DiagramStore.
func (m *MemStore) ListDiagrams(context.Context) ([]Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Summary
	for _, rec := range m.records {
		out = append(out, rec.summary)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// SaveDiagram implements DiagramStore.
func (m *MemStore) SaveDiagram(_ context.Context, d diagram.Diagram) error {
	rec, err := encode(d, m.now())
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.records[d.ID]; ok {
		rec.summary.CreatedAt = prev.summary.CreatedAt
	}
	m.records[d.ID] = rec
	return nil
}

// DeleteDiagram implements DiagramStore.
func (m *MemStore) DeleteDiagram(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return fmt.Errorf("delete diagram %s: %w", id, ErrNotFound)
	}
	delete(m.records, id)
	if m.config.DefaultDiagramID == id {
		m.config.DefaultDiagramID = ""
	}
	return nil
}

// GetConfig implements DiagramStore.
func (m *MemStore) GetConfig(context.Context) (Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config, nil
}

// UpdateConfig implements DiagramStore.
func (m *MemStore) UpdateConfig(_ context.Context, cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = cfg
	return nil
}

// Close implements DiagramStore.
func (m *MemStore) Close() error { return nil }
