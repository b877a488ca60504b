package mysql

import (
	"context"
	"fmt"
	"time"

	"dairy-market-lab/internal/domain"
	"dairy-market-lab/internal/storage"
)

// MarketChangeStore implements storage.MarketChangeStore over
// user_top_data_series and vesper_quotations.
type MarketChangeStore struct {
	db *DB
}

// NewMarketChangeStore creates a new MarketChangeStore.
func NewMarketChangeStore(db *DB) *MarketChangeStore {
	return &MarketChangeStore{db: db}
}

// Compile-time interface check.
var _ storage.MarketChangeStore = (*MarketChangeStore)(nil)

// GetUserDataSeries retrieves the series a user follows.
func (s *MarketChangeStore) GetUserDataSeries(ctx context.Context, userID int64) (ids []int64, err error) {
	start := time.Now()
	defer func() { observe("get_user_data_series", start, err) }()

	rows, err := s.db.QueryContext(ctx, `
		SELECT data_series_id
		FROM user_top_data_series
		WHERE user_id = ?
		ORDER BY data_series_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query user data series: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan data series id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user data series: %w", err)
	}
	return ids, nil
}

// GetMarketChange compares the two latest quotations of a series.
func (s *MarketChangeStore) GetMarketChange(ctx context.Context, dataSeriesID int64) (change *domain.MarketChange, err error) {
	start := time.Now()
	defer func() { observe("get_market_change", start, err) }()

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, data_source_id, data_series_id, price, currency, date
		FROM vesper_quotations
		WHERE data_series_id = ?
		ORDER BY date DESC, id DESC
		LIMIT 2
	`, dataSeriesID)
	if err != nil {
		return nil, fmt.Errorf("query series quotations: %w", err)
	}
	defer rows.Close()

	var quotes []*domain.Quotation
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate series quotations: %w", err)
	}

	if len(quotes) == 0 {
		return nil, storage.ErrNotFound
	}
	return storage.ComputeMarketChange(dataSeriesID, quotes), nil
}
