package memory

import (
	"context"
	"sync"

	"dairy-market-lab/internal/domain"
	"dairy-market-lab/internal/storage"
)

// ForecastStore is an in-memory implementation of storage.ForecastStore.
type ForecastStore struct {
	mu   sync.RWMutex
	data map[int64][]*domain.Forecast // keyed by data_series_id
}

// NewForecastStore creates a new in-memory forecast store.
func NewForecastStore() *ForecastStore {
	return &ForecastStore{
		data: make(map[int64][]*domain.Forecast),
	}
}

// Compile-time interface check.
var _ storage.ForecastStore = (*ForecastStore)(nil)

// Add appends forecasts.
func (s *ForecastStore) Add(forecasts ...*domain.Forecast) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range forecasts {
		copy := *f
		s.data[f.DataSeriesID] = append(s.data[f.DataSeriesID], &copy)
	}
}

// GetLatestForecast returns the forecast with the latest CreatedAt.
func (s *ForecastStore) GetLatestForecast(_ context.Context, dataSeriesID int64) (*domain.Forecast, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Forecast
	for _, f := range s.data[dataSeriesID] {
		if latest == nil || f.CreatedAt.After(latest.CreatedAt) {
			latest = f
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}

	copy := *latest
	return &copy, nil
}
