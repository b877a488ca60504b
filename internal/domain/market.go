package domain

import "time"

// MarketAggregates holds the market-wide negotiation statistics a price
// suggestion is derived from. All monetary fields share one currency unit.
type MarketAggregates struct {
	MedianListingPrice      float64 // median opening ask
	MedianFirstCounterBid   float64 // median first bid against the ask
	AverageDealPrice        float64 // mean settled price
	AvgStepChangeOffers     float64 // mean counter-offer step magnitude (>= 0)
	AvgStepChangeBids       float64 // mean counter-bid step magnitude (>= 0)
	PriceChangePctLastMonth float64 // signed, 0 = neutral
}

// ReferencePrices anchors a suggestion to the current spot price and the forecast.
type ReferencePrices struct {
	CurrentPrice  float64 // latest butter quotation
	ForecastValue float64 // forecast for the next period
}

// MarketDataRow is one historical negotiation from the market_data table.
type MarketDataRow struct {
	ID                      int64
	ProductID               int64
	Date                    time.Time
	ListingPrice            float64 // initial ask
	FirstCounterBid         float64 // initial counter bid
	DealPrice               float64 // final settle price
	StepChangeCounterOffers float64 // average step between counter offers
	StepChangeCounterBids   float64 // average step between counter bids
}
