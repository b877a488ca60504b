package memory

import (
	"context"
	"sort"
	"sync"

	"dairy-market-lab/internal/domain"
	"dairy-market-lab/internal/storage"
)

// QuotationStore is an in-memory implementation of storage.QuotationStore.
type QuotationStore struct {
	mu   sync.RWMutex
	data []*domain.Quotation
}

// NewQuotationStore creates a new in-memory quotation store.
func NewQuotationStore() *QuotationStore {
	return &QuotationStore{}
}

// Compile-time interface check.
var _ storage.QuotationStore = (*QuotationStore)(nil)

// Add appends quotations. The warehouse is read-only to the service; Add
// exists to seed fixtures and tests.
func (s *QuotationStore) Add(quotes ...*domain.Quotation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, q := range quotes {
		copy := *q
		s.data = append(s.data, &copy)
	}
}

// ListQuotations returns matching quotations ordered by date DESC.
// A non-positive limit returns all matches.
func (s *QuotationStore) ListQuotations(_ context.Context, productID, dataSourceID int64, limit int) ([]*domain.Quotation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Quotation
	for _, q := range s.data {
		if q.ProductID == productID && q.DataSourceID == dataSourceID {
			copy := *q
			result = append(result, &copy)
		}
	}

	sortQuotationsDesc(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GetLatest returns the newest matching quotation.
func (s *QuotationStore) GetLatest(ctx context.Context, productID, dataSourceID int64) (*domain.Quotation, error) {
	quotes, _ := s.ListQuotations(ctx, productID, dataSourceID, 1)
	if len(quotes) == 0 {
		return nil, storage.ErrNotFound
	}
	return quotes[0], nil
}

// bySeries returns the quotations of a data series ordered by date DESC.
func (s *QuotationStore) bySeries(dataSeriesID int64) []*domain.Quotation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Quotation
	for _, q := range s.data {
		if q.DataSeriesID == dataSeriesID {
			copy := *q
			result = append(result, &copy)
		}
	}
	sortQuotationsDesc(result)
	return result
}

func sortQuotationsDesc(quotes []*domain.Quotation) {
	sort.SliceStable(quotes, func(i, j int) bool {
		return quotes[i].Date.After(quotes[j].Date)
	})
}
