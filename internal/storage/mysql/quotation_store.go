package mysql

import (
	"context"
	"fmt"
	"time"

	"dairy-market-lab/internal/domain"
	"dairy-market-lab/internal/storage"
)

// QuotationStore implements storage.QuotationStore and storage.ForecastStore
// over vesper_quotations and forecasts.
type QuotationStore struct {
	db *DB
}

// NewQuotationStore creates a new QuotationStore.
func NewQuotationStore(db *DB) *QuotationStore {
	return &QuotationStore{db: db}
}

// Compile-time interface checks.
var (
	_ storage.QuotationStore = (*QuotationStore)(nil)
	_ storage.ForecastStore  = (*QuotationStore)(nil)
)

// ListQuotations retrieves quotations ordered by date DESC. A non-positive
// limit returns all matches.
func (s *QuotationStore) ListQuotations(ctx context.Context, productID, dataSourceID int64, limit int) (result []*domain.Quotation, err error) {
	start := time.Now()
	defer func() { observe("list_quotations", start, err) }()

	query := `
		SELECT product_id, data_source_id, data_series_id, price, currency, date
		FROM vesper_quotations
		WHERE product_id = ? AND data_source_id = ?
		ORDER BY date DESC, id DESC
	`
	args := []any{productID, dataSourceID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query quotations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quotations: %w", err)
	}
	return result, nil
}

// GetLatest retrieves the newest quotation. Returns ErrNotFound if none exists.
func (s *QuotationStore) GetLatest(ctx context.Context, productID, dataSourceID int64) (q *domain.Quotation, err error) {
	start := time.Now()
	defer func() { observe("get_latest_quotation", start, err) }()

	query := `
		SELECT product_id, data_source_id, data_series_id, price, currency, date
		FROM vesper_quotations
		WHERE product_id = ? AND data_source_id = ?
		ORDER BY date DESC, id DESC
		LIMIT 1
	`

	q, err = scanQuotation(s.db.QueryRowContext(ctx, query, productID, dataSourceID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return q, nil
}

// GetLatestForecast retrieves the most recently created forecast for a series.
func (s *QuotationStore) GetLatestForecast(ctx context.Context, dataSeriesID int64) (f *domain.Forecast, err error) {
	start := time.Now()
	defer func() { observe("get_latest_forecast", start, err) }()

	query := `
		SELECT data_series_id, value, target_date, created_at
		FROM forecasts
		WHERE data_series_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	f = &domain.Forecast{}
	err = s.db.QueryRowContext(ctx, query, dataSeriesID).Scan(&f.DataSeriesID, &f.Value, &f.TargetDate, &f.CreatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("query forecast: %w", err)
	}
	return f, nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuotation(row rowScanner) (*domain.Quotation, error) {
	var q domain.Quotation
	if err := row.Scan(&q.ProductID, &q.DataSourceID, &q.DataSeriesID, &q.Price, &q.Currency, &q.Date); err != nil {
		if isNotFoundError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("scan quotation: %w", err)
	}
	return &q, nil
}
