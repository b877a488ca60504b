package storage

import "dairy-market-lab/internal/domain"

// ComputeMarketChange builds a MarketChange from a series' quotations ordered
// newest first. Only the first two are used; quotes must not be empty.
func ComputeMarketChange(dataSeriesID int64, quotes []*domain.Quotation) *domain.MarketChange {
	latest := quotes[0]
	change := &domain.MarketChange{
		DataSeriesID: dataSeriesID,
		Currency:     latest.Currency,
		LatestPrice:  latest.Price,
		LatestDate:   latest.Date,
	}

	if len(quotes) < 2 {
		return change
	}

	prev := quotes[1]
	prevPrice := prev.Price
	prevDate := prev.Date
	change.PreviousPrice = &prevPrice
	change.PreviousDate = &prevDate
	if prevPrice != 0 {
		change.ChangePct = (latest.Price - prevPrice) / prevPrice * 100
	}
	return change
}
