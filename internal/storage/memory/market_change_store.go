package memory

import (
	"context"
	"sync"

	"dairy-market-lab/internal/domain"
	"dairy-market-lab/internal/storage"
)

// MarketChangeStore is an in-memory implementation of storage.MarketChangeStore.
// Changes are computed from the quotations held by a QuotationStore.
type MarketChangeStore struct {
	quotes *QuotationStore

	mu         sync.RWMutex
	userSeries map[int64][]int64 // keyed by user_id
}

// NewMarketChangeStore creates a store reading quotations from quotes.
func NewMarketChangeStore(quotes *QuotationStore) *MarketChangeStore {
	return &MarketChangeStore{
		quotes:     quotes,
		userSeries: make(map[int64][]int64),
	}
}

// Compile-time interface check.
var _ storage.MarketChangeStore = (*MarketChangeStore)(nil)

// Follow adds data series to a user's top series.
func (s *MarketChangeStore) Follow(userID int64, dataSeriesIDs ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userSeries[userID] = append(s.userSeries[userID], dataSeriesIDs...)
}

// GetUserDataSeries returns the series a user follows, in insertion order.
func (s *MarketChangeStore) GetUserDataSeries(_ context.Context, userID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.userSeries[userID]
	result := make([]int64, len(ids))
	copy(result, ids)
	return result, nil
}

// GetMarketChange compares the two newest quotations of a series.
func (s *MarketChangeStore) GetMarketChange(_ context.Context, dataSeriesID int64) (*domain.MarketChange, error) {
	quotes := s.quotes.bySeries(dataSeriesID)
	if len(quotes) == 0 {
		return nil, storage.ErrNotFound
	}
	if len(quotes) > 2 {
		quotes = quotes[:2]
	}
	return storage.ComputeMarketChange(dataSeriesID, quotes), nil
}
