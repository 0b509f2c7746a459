package registry

import (
	"context"
	"sync"

	"github.com/gatewaylabs/mcpgw/internal/domain"
)

// MemoryStore is an in-memory RegistryStore. The production deployment swaps
// in the external durable store; this implementation backs tests and the
// default daemon wiring.
// NewMemoryStore should be used to create instances of MemoryStore.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*domain.ServerRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*domain.ServerRecord),
	}
}

// Save persists the record, inserting or overwriting by id.
func (s *MemoryStore) Save(_ context.Context, record *domain.ServerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = record.Clone()
	return nil
}

// Delete removes the record by id. Unknown ids are ignored.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

// LoadAll returns a copy of every persisted record.
func (s *MemoryStore) LoadAll(_ context.Context) ([]*domain.ServerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.ServerRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	return out, nil
}
