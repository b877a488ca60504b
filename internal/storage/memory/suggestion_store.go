package memory

import (
	"context"
	"sort"
	"sync"

	"dairy-market-lab/internal/domain"
	"dairy-market-lab/internal/storage"
)

// SuggestionStore is an in-memory implementation of storage.SuggestionStore.
type SuggestionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SuggestionRecord // keyed by suggestion_id
}

// NewSuggestionStore creates a new in-memory suggestion store.
func NewSuggestionStore() *SuggestionStore {
	return &SuggestionStore{
		data: make(map[string]*domain.SuggestionRecord),
	}
}

// Compile-time interface check.
var _ storage.SuggestionStore = (*SuggestionStore)(nil)

// Insert adds a new suggestion. Returns ErrDuplicateKey if suggestion_id exists.
func (s *SuggestionStore) Insert(_ context.Context, r *domain.SuggestionRecord) error {
	if r == nil || r.SuggestionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.SuggestionID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *r
	s.data[r.SuggestionID] = &copy
	return nil
}

// GetByID retrieves a suggestion by ID. Returns ErrNotFound if not exists.
func (s *SuggestionStore) GetByID(_ context.Context, suggestionID string) (*domain.SuggestionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[suggestionID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *r
	return &copy, nil
}

// GetByProduct retrieves up to limit suggestions for a product, newest first.
func (s *SuggestionStore) GetByProduct(_ context.Context, productID int64, limit int) ([]*domain.SuggestionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SuggestionRecord
	for _, r := range s.data {
		if r.ProductID == productID {
			copy := *r
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].SuggestionID < result[j].SuggestionID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
