package pricing

import (
	"sort"

	"dairy-market-lab/internal/domain"
)

// AggregateMarketData reduces historical negotiations to MarketAggregates.
// Prices use medians, deal price and step changes use means. The trend
// is not derivable from market_data and is passed in by the caller.
func AggregateMarketData(rows []*domain.MarketDataRow, priceChangePct float64) (domain.MarketAggregates, error) {
	if len(rows) == 0 {
		return domain.MarketAggregates{}, &domain.InvalidInputError{Field: "market_data", Reason: "no rows"}
	}

	listing := make([]float64, len(rows))
	firstBids := make([]float64, len(rows))
	deals := make([]float64, len(rows))
	offerSteps := make([]float64, len(rows))
	bidSteps := make([]float64, len(rows))
	for i, r := range rows {
		listing[i] = r.ListingPrice
		firstBids[i] = r.FirstCounterBid
		deals[i] = r.DealPrice
		offerSteps[i] = r.StepChangeCounterOffers
		bidSteps[i] = r.StepChangeCounterBids
	}

	return domain.MarketAggregates{
		MedianListingPrice:      median(listing),
		MedianFirstCounterBid:   median(firstBids),
		AverageDealPrice:        mean(deals),
		AvgStepChangeOffers:     mean(offerSteps),
		AvgStepChangeBids:       mean(bidSteps),
		PriceChangePctLastMonth: priceChangePct,
	}, nil
}

// mean calculates the arithmetic mean.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// median sorts a copy of values and interpolates the 50th percentile.
func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return percentile(sorted, 0.50)
}

// percentile uses linear interpolation.
// sorted must be pre-sorted ASC.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
