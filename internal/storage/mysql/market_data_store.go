package mysql

import (
	"context"
	"fmt"
	"time"

	"dairy-market-lab/internal/domain"
	"dairy-market-lab/internal/storage"
)

// MarketDataStore implements storage.MarketDataStore over market_data.
type MarketDataStore struct {
	db *DB
}

// NewMarketDataStore creates a new MarketDataStore.
func NewMarketDataStore(db *DB) *MarketDataStore {
	return &MarketDataStore{db: db}
}

// Compile-time interface check.
var _ storage.MarketDataStore = (*MarketDataStore)(nil)

// GetByProduct retrieves up to limit rows for a product, newest first.
func (s *MarketDataStore) GetByProduct(ctx context.Context, productID int64, limit int) (result []*domain.MarketDataRow, err error) {
	start := time.Now()
	defer func() { observe("get_market_data", start, err) }()

	query := `
		SELECT id, product_id, date, listing_price, first_counter_bid, deal_price,
			step_change_counter_offers, step_change_counter_bids
		FROM market_data
		WHERE product_id = ?
		ORDER BY date DESC, id DESC
	`
	args := []any{productID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query market data: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r domain.MarketDataRow
		if err := rows.Scan(
			&r.ID, &r.ProductID, &r.Date, &r.ListingPrice, &r.FirstCounterBid, &r.DealPrice,
			&r.StepChangeCounterOffers, &r.StepChangeCounterBids,
		); err != nil {
			return nil, fmt.Errorf("scan market data: %w", err)
		}
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate market data: %w", err)
	}
	return result, nil
}
