package memory

import (
	"context"
	"sync"

	"dairy-market-lab/internal/domain"
	"dairy-market-lab/internal/storage"
)

type contentKey struct {
	kind domain.ContentKind
	id   int64
}

// ContentStore is an in-memory implementation of storage.ContentStore.
type ContentStore struct {
	mu   sync.RWMutex
	data map[contentKey]*domain.Document
}

// NewContentStore creates a new in-memory content store.
func NewContentStore() *ContentStore {
	return &ContentStore{
		data: make(map[contentKey]*domain.Document),
	}
}

// Compile-time interface check.
var _ storage.ContentStore = (*ContentStore)(nil)

// Add stores documents, replacing any with the same kind and ID.
func (s *ContentStore) Add(docs ...*domain.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range docs {
		copy := *d
		s.data[contentKey{kind: d.Kind, id: d.ID}] = &copy
	}
}

// GetDocuments returns the documents found, in the order of ids.
func (s *ContentStore) GetDocuments(_ context.Context, kind domain.ContentKind, ids []int64) ([]*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Document
	for _, id := range ids {
		if d, ok := s.data[contentKey{kind: kind, id: id}]; ok {
			copy := *d
			result = append(result, &copy)
		}
	}
	return result, nil
}
