package memory

import (
	"time"

	"dairy-market-lab/internal/domain"
)

// Fixture identifiers.
const (
	FixtureProductButter   int64 = 2
	FixtureDataSourceVPI   int64 = 52
	FixtureSeriesButter    int64 = 101
	FixtureSeriesSMP       int64 = 102
	FixtureSeriesWhey      int64 = 103
	FixtureUserID          int64 = 2831
	FixtureUserWithoutData int64 = 1
)

// Fixture content IDs, in the order a recommender would return them.
var (
	FixtureMarketReportIDs = []int64{11, 12}
	FixtureNewsIDs         = []int64{21, 22}
)

// Warehouse bundles the read-side stores of the market warehouse.
type Warehouse struct {
	Quotations    *QuotationStore
	Forecasts     *ForecastStore
	MarketData    *MarketDataStore
	MarketChanges *MarketChangeStore
	Content       *ContentStore
}

// NewWarehouse creates empty warehouse stores.
func NewWarehouse() *Warehouse {
	quotes := NewQuotationStore()
	return &Warehouse{
		Quotations:    quotes,
		Forecasts:     NewForecastStore(),
		MarketData:    NewMarketDataStore(),
		MarketChanges: NewMarketChangeStore(quotes),
		Content:       NewContentStore(),
	}
}

// NewFixtureWarehouse creates warehouse stores seeded with butter market demo data.
func NewFixtureWarehouse() *Warehouse {
	w := NewWarehouse()
	loadQuotations(w.Quotations)
	loadForecasts(w.Forecasts)
	loadMarketData(w.MarketData)
	w.MarketChanges.Follow(FixtureUserID, FixtureSeriesButter, FixtureSeriesSMP, FixtureSeriesWhey)
	loadContent(w.Content)
	return w
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func loadQuotations(s *QuotationStore) {
	s.Add(
		&domain.Quotation{ProductID: FixtureProductButter, DataSourceID: FixtureDataSourceVPI, DataSeriesID: FixtureSeriesButter, Price: 7450, Currency: "EUR", Date: day(2024, time.September, 16)},
		&domain.Quotation{ProductID: FixtureProductButter, DataSourceID: FixtureDataSourceVPI, DataSeriesID: FixtureSeriesButter, Price: 7520, Currency: "EUR", Date: day(2024, time.September, 23)},
		&domain.Quotation{ProductID: FixtureProductButter, DataSourceID: FixtureDataSourceVPI, DataSeriesID: FixtureSeriesButter, Price: 7600, Currency: "EUR", Date: day(2024, time.September, 30)},
		&domain.Quotation{ProductID: 3, DataSourceID: FixtureDataSourceVPI, DataSeriesID: FixtureSeriesSMP, Price: 2480, Currency: "EUR", Date: day(2024, time.September, 23)},
		&domain.Quotation{ProductID: 3, DataSourceID: FixtureDataSourceVPI, DataSeriesID: FixtureSeriesSMP, Price: 2455, Currency: "EUR", Date: day(2024, time.September, 30)},
		&domain.Quotation{ProductID: 4, DataSourceID: FixtureDataSourceVPI, DataSeriesID: FixtureSeriesWhey, Price: 820, Currency: "EUR", Date: day(2024, time.September, 30)},
	)
}

func loadForecasts(s *ForecastStore) {
	s.Add(
		&domain.Forecast{DataSeriesID: FixtureSeriesButter, Value: 7480, TargetDate: day(2024, time.October, 7), CreatedAt: day(2024, time.September, 23)},
		&domain.Forecast{DataSeriesID: FixtureSeriesButter, Value: 7498.04, TargetDate: day(2024, time.October, 14), CreatedAt: day(2024, time.September, 30)},
	)
}

func loadMarketData(s *MarketDataStore) {
	s.Add(
		&domain.MarketDataRow{ID: 1, ProductID: FixtureProductButter, Date: day(2024, time.September, 2), ListingPrice: 7380, FirstCounterBid: 7330, DealPrice: 7400, StepChangeCounterOffers: 2.0, StepChangeCounterBids: 3.5},
		&domain.MarketDataRow{ID: 2, ProductID: FixtureProductButter, Date: day(2024, time.September, 9), ListingPrice: 7400, FirstCounterBid: 7350, DealPrice: 7420, StepChangeCounterOffers: 3.0, StepChangeCounterBids: 4.5},
		&domain.MarketDataRow{ID: 3, ProductID: FixtureProductButter, Date: day(2024, time.September, 16), ListingPrice: 7400, FirstCounterBid: 7350, DealPrice: 7410, StepChangeCounterOffers: 2.5, StepChangeCounterBids: 4.0},
		&domain.MarketDataRow{ID: 4, ProductID: FixtureProductButter, Date: day(2024, time.September, 23), ListingPrice: 7420, FirstCounterBid: 7360, DealPrice: 7430, StepChangeCounterOffers: 2.5, StepChangeCounterBids: 4.0},
		&domain.MarketDataRow{ID: 5, ProductID: FixtureProductButter, Date: day(2024, time.September, 30), ListingPrice: 7450, FirstCounterBid: 7370, DealPrice: 7440, StepChangeCounterOffers: 2.5, StepChangeCounterBids: 4.0},
	)
}

func loadContent(s *ContentStore) {
	s.Add(
		&domain.Document{ID: 11, Kind: domain.ContentKindMarketReport, Title: "EU butter weekly", Content: "Butter quotations firmed for the third week as cream supplies tightened across the EU."},
		&domain.Document{ID: 12, Kind: domain.ContentKindMarketReport, Title: "SMP outlook", Content: "Skimmed milk powder trades sideways with buyers covering only short-term needs."},
		&domain.Document{ID: 21, Kind: domain.ContentKindNews, Title: "Milk deliveries fall", Content: "Milk deliveries in Germany and France were below last year's level in September."},
		&domain.Document{ID: 22, Kind: domain.ContentKindNews, Title: "Export demand", Content: "Export demand for EU butter remains steady ahead of the Christmas season."},
	)
}
