package storage

import (
	"context"
	"time"

	"dairy-market-lab/internal/domain"
)

// QuotationStore provides read access to vesper_quotations.
type QuotationStore interface {
	// ListQuotations retrieves quotations for a product and data source, newest first.
	// Returns an empty slice when nothing matches.
	ListQuotations(ctx context.Context, productID, dataSourceID int64, limit int) ([]*domain.Quotation, error)

	// GetLatest retrieves the newest quotation. Returns ErrNotFound if none exists.
	GetLatest(ctx context.Context, productID, dataSourceID int64) (*domain.Quotation, error)
}

// ForecastStore provides read access to forecasts.
type ForecastStore interface {
	// GetLatestForecast retrieves the most recently created forecast for a series.
	// Returns ErrNotFound if none exists.
	GetLatestForecast(ctx context.Context, dataSeriesID int64) (*domain.Forecast, error)
}

// MarketDataStore provides read access to the historical market_data table.
type MarketDataStore interface {
	// GetByProduct retrieves up to limit rows for a product, newest first.
	GetByProduct(ctx context.Context, productID int64, limit int) ([]*domain.MarketDataRow, error)
}

// MarketChangeStore computes recent changes for the series a user follows.
type MarketChangeStore interface {
	// GetUserDataSeries retrieves the data series IDs in the user's user_top_data_series.
	GetUserDataSeries(ctx context.Context, userID int64) ([]int64, error)

	// GetMarketChange compares the two latest quotations of a series.
	// Returns ErrNotFound if the series has no quotations.
	GetMarketChange(ctx context.Context, dataSeriesID int64) (*domain.MarketChange, error)
}

// ContentStore provides read access to news and market_analyses.
type ContentStore interface {
	// GetDocuments retrieves documents of a kind by ID. Unknown IDs are skipped.
	GetDocuments(ctx context.Context, kind domain.ContentKind, ids []int64) ([]*domain.Document, error)
}

// NegotiationRecordStore provides access to negotiation_records storage.
type NegotiationRecordStore interface {
	// Insert adds a finished negotiation. Returns ErrDuplicateKey if negotiation_id exists.
	Insert(ctx context.Context, r *domain.NegotiationRecord) error

	// GetByID retrieves a record by negotiation ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, negotiationID string) (*domain.NegotiationRecord, error)

	// GetByTimeRange retrieves records finished within [start, end], ordered by finished_at ASC.
	GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.NegotiationRecord, error)
}

// SuggestionStore provides access to price_suggestions storage.
type SuggestionStore interface {
	// Insert adds a suggestion. Returns ErrDuplicateKey if suggestion_id exists.
	Insert(ctx context.Context, s *domain.SuggestionRecord) error

	// GetByID retrieves a suggestion by ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, suggestionID string) (*domain.SuggestionRecord, error)

	// GetByProduct retrieves up to limit suggestions for a product, newest first.
	GetByProduct(ctx context.Context, productID int64, limit int) ([]*domain.SuggestionRecord, error)
}
