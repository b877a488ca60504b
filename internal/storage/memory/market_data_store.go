package memory

import (
	"context"
	"sort"
	"sync"

	"dairy-market-lab/internal/domain"
	"dairy-market-lab/internal/storage"
)

// MarketDataStore is an in-memory implementation of storage.MarketDataStore.
type MarketDataStore struct {
	mu   sync.RWMutex
	data []*domain.MarketDataRow
}

// NewMarketDataStore creates a new in-memory market data store.
func NewMarketDataStore() *MarketDataStore {
	return &MarketDataStore{}
}

// Compile-time interface check.
var _ storage.MarketDataStore = (*MarketDataStore)(nil)

// Add appends rows.
func (s *MarketDataStore) Add(rows ...*domain.MarketDataRow) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range rows {
		copy := *r
		s.data = append(s.data, &copy)
	}
}

// GetByProduct returns up to limit rows for a product ordered by date DESC.
// A non-positive limit returns all rows.
func (s *MarketDataStore) GetByProduct(_ context.Context, productID int64, limit int) ([]*domain.MarketDataRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MarketDataRow
	for _, r := range s.data {
		if r.ProductID == productID {
			copy := *r
			result = append(result, &copy)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.After(result[j].Date)
		}
		return result[i].ID > result[j].ID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
