package state

import (
	"context"
	"sync"

	"github.com/pypeclub/OpenPype/layering"
)

// MemoryStore is an in-memory Store for tests and tooling. Documents are
// cloned on the way in and out, keyed by Ref.Identifier().
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
}

type memoryRecord struct {
	doc  Document
	meta Meta
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]memoryRecord{}}
}

func (s *MemoryStore) Load(_ context.Context, ref Ref) (Document, Meta, bool, error) {
	key, err := ref.Identifier()
	if err != nil {
		return nil, Meta{}, false, err
	}

	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return nil, Meta{}, false, nil
	}
	return layering.CloneMap(record.doc), cloneMeta(record.meta), true, nil
}

func (s *MemoryStore) Save(_ context.Context, ref Ref, doc Document, meta Meta) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}
	if doc == nil {
		doc = Document{}
	}

	s.mu.Lock()
	s.records[key] = memoryRecord{doc: layering.CloneMap(doc), meta: cloneMeta(meta)}
	s.mu.Unlock()
	return cloneMeta(meta), nil
}

// Identifiers lists stored keys in no particular order.
func (s *MemoryStore) Identifiers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.records))
	for key := range s.records {
		out = append(out, key)
	}
	return out
}
