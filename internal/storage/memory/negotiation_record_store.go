package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"dairy-market-lab/internal/domain"
	"dairy-market-lab/internal/storage"
)

// NegotiationRecordStore is an in-memory implementation of storage.NegotiationRecordStore.
type NegotiationRecordStore struct {
	mu   sync.RWMutex
	data map[string]*domain.NegotiationRecord // keyed by negotiation_id
}

// NewNegotiationRecordStore creates a new in-memory negotiation record store.
func NewNegotiationRecordStore() *NegotiationRecordStore {
	return &NegotiationRecordStore{
		data: make(map[string]*domain.NegotiationRecord),
	}
}

// Compile-time interface check.
var _ storage.NegotiationRecordStore = (*NegotiationRecordStore)(nil)

// Insert adds a new record. Returns ErrDuplicateKey if negotiation_id exists.
func (s *NegotiationRecordStore) Insert(_ context.Context, r *domain.NegotiationRecord) error {
	if r == nil || r.NegotiationID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.NegotiationID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *r
	s.data[r.NegotiationID] = &copy
	return nil
}

// GetByID retrieves a record by negotiation ID. Returns ErrNotFound if not exists.
func (s *NegotiationRecordStore) GetByID(_ context.Context, negotiationID string) (*domain.NegotiationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[negotiationID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *r
	return &copy, nil
}

// GetByTimeRange retrieves records finished within [start, end], ordered by finished_at ASC.
func (s *NegotiationRecordStore) GetByTimeRange(_ context.Context, start, end time.Time) ([]*domain.NegotiationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.NegotiationRecord
	for _, r := range s.data {
		if !r.FinishedAt.Before(start) && !r.FinishedAt.After(end) {
			copy := *r
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].FinishedAt.Equal(result[j].FinishedAt) {
			return result[i].FinishedAt.Before(result[j].FinishedAt)
		}
		return result[i].NegotiationID < result[j].NegotiationID
	})
	return result, nil
}
