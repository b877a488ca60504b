package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dairy-market-lab/internal/domain"
	"dairy-market-lab/internal/storage"
)

// SuggestionStore implements storage.SuggestionStore using ClickHouse.
type SuggestionStore struct {
	conn *Conn
}

// NewSuggestionStore creates a new SuggestionStore.
func NewSuggestionStore(conn *Conn) *SuggestionStore {
	return &SuggestionStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SuggestionStore = (*SuggestionStore)(nil)

const suggestionColumns = `
	suggestion_id, product_id, data_source_id,
	median_listing_price, median_first_counter_bid, average_deal_price,
	avg_step_change_counter_offers, avg_step_change_counter_bids, price_change_pct_last_month,
	current_price, forecast_value,
	core_price, suggested_price, created_at
`

// Insert adds a new suggestion. Returns ErrDuplicateKey if suggestion_id exists.
func (s *SuggestionStore) Insert(ctx context.Context, r *domain.SuggestionRecord) (err error) {
	if r == nil || r.SuggestionID == "" {
		return storage.ErrInvalidInput
	}

	start := time.Now()
	defer func() {
		if errors.Is(err, storage.ErrDuplicateKey) {
			observe("insert_suggestion", start, nil)
			return
		}
		observe("insert_suggestion", start, err)
	}()

	// ReplacingMergeTree would silently replace; keep the log append-only.
	exists, err := s.exists(ctx, r.SuggestionID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO price_suggestions (`+suggestionColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	a, ref := r.Aggregates, r.Reference
	err = batch.Append(
		r.SuggestionID, r.ProductID, r.DataSourceID,
		a.MedianListingPrice, a.MedianFirstCounterBid, a.AverageDealPrice,
		a.AvgStepChangeOffers, a.AvgStepChangeBids, a.PriceChangePctLastMonth,
		ref.CurrentPrice, ref.ForecastValue,
		r.CorePrice, r.SuggestedPrice, r.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("insert suggestion: %w", err)
	}
	return nil
}

// GetByID retrieves a suggestion by ID. Returns ErrNotFound if not exists.
func (s *SuggestionStore) GetByID(ctx context.Context, suggestionID string) (r *domain.SuggestionRecord, err error) {
	start := time.Now()
	defer func() {
		if errors.Is(err, storage.ErrNotFound) {
			observe("get_suggestion", start, nil)
			return
		}
		observe("get_suggestion", start, err)
	}()

	query := `
		SELECT ` + suggestionColumns + `
		FROM price_suggestions FINAL
		WHERE suggestion_id = ?
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, suggestionID)
	if err != nil {
		return nil, fmt.Errorf("query suggestion: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate suggestion: %w", err)
		}
		return nil, storage.ErrNotFound
	}

	r, err = scanSuggestion(rows)
	if err != nil {
		return nil, fmt.Errorf("scan suggestion: %w", err)
	}
	return r, nil
}

// GetByProduct retrieves up to limit suggestions for a product, newest first.
func (s *SuggestionStore) GetByProduct(ctx context.Context, productID int64, limit int) (result []*domain.SuggestionRecord, err error) {
	start := time.Now()
	defer func() { observe("get_suggestions_by_product", start, err) }()

	query := `
		SELECT ` + suggestionColumns + `
		FROM price_suggestions FINAL
		WHERE product_id = ?
		ORDER BY created_at DESC, suggestion_id ASC
	`
	args := []any{productID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query suggestions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanSuggestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suggestions: %w", err)
	}
	return result, nil
}

func (s *SuggestionStore) exists(ctx context.Context, suggestionID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx,
		`SELECT count() FROM price_suggestions WHERE suggestion_id = ?`, suggestionID,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSuggestion(row rowScanner) (*domain.SuggestionRecord, error) {
	var r domain.SuggestionRecord
	a, ref := &r.Aggregates, &r.Reference
	err := row.Scan(
		&r.SuggestionID, &r.ProductID, &r.DataSourceID,
		&a.MedianListingPrice, &a.MedianFirstCounterBid, &a.AverageDealPrice,
		&a.AvgStepChangeOffers, &a.AvgStepChangeBids, &a.PriceChangePctLastMonth,
		&ref.CurrentPrice, &ref.ForecastValue,
		&r.CorePrice, &r.SuggestedPrice, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}
