package negotiation

import (
	"time"

	"dairy-market-lab/internal/domain"
)

// DefaultHistory returns the fixed historical market-data table used when no
// warehouse history is available. Its mean counter-offer step is 2.5.
func DefaultHistory() []*domain.MarketDataRow {
	day := func(d int) time.Time {
		return time.Date(2024, time.September, d, 0, 0, 0, 0, time.UTC)
	}

	return []*domain.MarketDataRow{
		{ID: 1, ProductID: 2, Date: day(2), ListingPrice: 7400, FirstCounterBid: 7320, DealPrice: 7380, StepChangeCounterOffers: 2.0, StepChangeCounterBids: 4.0},
		{ID: 2, ProductID: 2, Date: day(9), ListingPrice: 7450, FirstCounterBid: 7350, DealPrice: 7420, StepChangeCounterOffers: 3.0, StepChangeCounterBids: 4.5},
		{ID: 3, ProductID: 2, Date: day(16), ListingPrice: 7420, FirstCounterBid: 7360, DealPrice: 7410, StepChangeCounterOffers: 2.5, StepChangeCounterBids: 3.5},
		{ID: 4, ProductID: 2, Date: day(23), ListingPrice: 7380, FirstCounterBid: 7330, DealPrice: 7400, StepChangeCounterOffers: 2.25, StepChangeCounterBids: 4.0},
		{ID: 5, ProductID: 2, Date: day(30), ListingPrice: 7500, FirstCounterBid: 7390, DealPrice: 7470, StepChangeCounterOffers: 2.75, StepChangeCounterBids: 4.0},
	}
}
