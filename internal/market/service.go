// Package market composes the warehouse stores, the price suggester and the
// negotiation loop into the operations served by the API and the CLI.
package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"dairy-market-lab/internal/domain"
	"dairy-market-lab/internal/events"
	"dairy-market-lab/internal/idhash"
	"dairy-market-lab/internal/observability"
	"dairy-market-lab/internal/pricing"
	"dairy-market-lab/internal/storage"
)

// Query limits.
const (
	DefaultQuotationLimit = 52
	DefaultHistoryLimit   = 250
)

// Warehouse groups the read-only market stores.
type Warehouse struct {
	Quotations    storage.QuotationStore
	Forecasts     storage.ForecastStore
	MarketData    storage.MarketDataStore
	MarketChanges storage.MarketChangeStore
}

// Service serves quotation, market change and price suggestion queries.
type Service struct {
	wh          Warehouse
	suggester   *pricing.Suggester
	suggestions storage.SuggestionStore // nil skips persistence
	publisher   events.Publisher        // nil skips publishing
	logger      logrus.FieldLogger
	now         func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithSuggestionStore persists every suggestion.
func WithSuggestionStore(s storage.SuggestionStore) ServiceOption {
	return func(svc *Service) { svc.suggestions = s }
}

// WithPublisher publishes a PriceSuggested event per suggestion.
func WithPublisher(p events.Publisher) ServiceOption {
	return func(svc *Service) { svc.publisher = p }
}

// WithServiceLogger sets the logger.
func WithServiceLogger(l logrus.FieldLogger) ServiceOption {
	return func(svc *Service) { svc.logger = l }
}

// NewService creates a Service.
func NewService(wh Warehouse, suggester *pricing.Suggester, opts ...ServiceOption) *Service {
	s := &Service{
		wh:        wh,
		suggester: suggester,
		logger:    logrus.StandardLogger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// VPIInformation returns up to limit quotations for a product and source, newest first.
// Returns storage.ErrNotFound when there are none.
func (s *Service) VPIInformation(ctx context.Context, productID, dataSourceID int64, limit int) ([]*domain.Quotation, error) {
	if limit <= 0 {
		limit = DefaultQuotationLimit
	}
	quotes, err := s.wh.Quotations.ListQuotations(ctx, productID, dataSourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list quotations: %w", err)
	}
	if len(quotes) == 0 {
		return nil, fmt.Errorf("quotations for product %d source %d: %w", productID, dataSourceID, storage.ErrNotFound)
	}
	return quotes, nil
}

// MarketChanges returns the latest change of every series the user follows.
// Series without quotations are skipped. Returns storage.ErrNotFound when
// nothing remains.
func (s *Service) MarketChanges(ctx context.Context, userID int64) ([]*domain.MarketChange, error) {
	seriesIDs, err := s.wh.MarketChanges.GetUserDataSeries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user data series: %w", err)
	}

	var changes []*domain.MarketChange
	for _, id := range seriesIDs {
		c, err := s.wh.MarketChanges.GetMarketChange(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.WithFields(logrus.Fields{"user_id": userID, "data_series_id": id}).Debug("series has no quotations")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get market change for series %d: %w", id, err)
		}
		changes = append(changes, c)
	}

	if len(changes) == 0 {
		return nil, fmt.Errorf("market changes for user %d: %w", userID, storage.ErrNotFound)
	}
	return changes, nil
}

// Suggest prices explicit aggregates and reference prices.
func (s *Service) Suggest(ctx context.Context, agg domain.MarketAggregates, ref domain.ReferencePrices) (*domain.SuggestionRecord, error) {
	return s.suggest(ctx, 0, 0, agg, ref)
}

// SuggestForProduct builds the inputs from the warehouse: aggregates from
// market_data, the latest quotation as current price, the latest forecast of
// that quotation's series, and the series' latest change as trend.
func (s *Service) SuggestForProduct(ctx context.Context, productID, dataSourceID int64) (*domain.SuggestionRecord, error) {
	agg, ref, err := s.warehouseInputs(ctx, productID, dataSourceID)
	if err != nil {
		observability.RecordSuggestion(0, err)
		return nil, err
	}
	return s.suggest(ctx, productID, dataSourceID, agg, ref)
}

func (s *Service) warehouseInputs(ctx context.Context, productID, dataSourceID int64) (domain.MarketAggregates, domain.ReferencePrices, error) {
	var (
		agg domain.MarketAggregates
		ref domain.ReferencePrices
	)

	quote, err := s.wh.Quotations.GetLatest(ctx, productID, dataSourceID)
	if err != nil {
		return agg, ref, fmt.Errorf("latest quotation: %w", err)
	}

	forecast, err := s.wh.Forecasts.GetLatestForecast(ctx, quote.DataSeriesID)
	if err != nil {
		return agg, ref, fmt.Errorf("latest forecast for series %d: %w", quote.DataSeriesID, err)
	}

	var trend float64
	change, err := s.wh.MarketChanges.GetMarketChange(ctx, quote.DataSeriesID)
	switch {
	case err == nil:
		trend = change.ChangePct
	case !errors.Is(err, storage.ErrNotFound):
		return agg, ref, fmt.Errorf("market change for series %d: %w", quote.DataSeriesID, err)
	}

	rows, err := s.wh.MarketData.GetByProduct(ctx, productID, DefaultHistoryLimit)
	if err != nil {
		return agg, ref, fmt.Errorf("market data: %w", err)
	}
	if len(rows) == 0 {
		return agg, ref, fmt.Errorf("market data for product %d: %w", productID, storage.ErrNotFound)
	}

	agg, err = pricing.AggregateMarketData(rows, trend)
	if err != nil {
		return agg, ref, err
	}
	ref = domain.ReferencePrices{CurrentPrice: quote.Price, ForecastValue: forecast.Value}
	return agg, ref, nil
}

func (s *Service) suggest(ctx context.Context, productID, dataSourceID int64, agg domain.MarketAggregates, ref domain.ReferencePrices) (*domain.SuggestionRecord, error) {
	sug, err := s.suggester.SuggestDetailed(agg, ref)
	observability.RecordSuggestion(sug.Price, err)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rec := &domain.SuggestionRecord{
		SuggestionID:   idhash.ComputeSuggestionID(productID, dataSourceID, agg, ref, now.UnixMilli()),
		ProductID:      productID,
		DataSourceID:   dataSourceID,
		Aggregates:     agg,
		Reference:      ref,
		CorePrice:      sug.CorePrice,
		SuggestedPrice: sug.Price,
		CreatedAt:      now,
	}

	log := s.logger.WithFields(logrus.Fields{
		"suggestion_id":   rec.SuggestionID,
		"product_id":      productID,
		"suggested_price": rec.SuggestedPrice,
	})

	// Storage and publish failures are logged, not returned.
	if s.suggestions != nil {
		if err := s.suggestions.Insert(ctx, rec); err != nil {
			log.WithError(err).Warn("failed to store suggestion")
		}
	}
	if s.publisher != nil {
		if e, err := events.PriceSuggested(rec); err != nil {
			log.WithError(err).Warn("failed to build suggestion event")
		} else if err := s.publisher.Publish(ctx, e); err != nil {
			log.WithError(err).Warn("failed to publish suggestion event")
		}
	}

	log.Info("price suggested")
	return rec, nil
}
