// Package pricing derives a recommended selling price from market aggregates.
package pricing

import (
	"math"

	"github.com/shopspring/decimal"

	"dairy-market-lab/internal/domain"
)

// Trend adjustment applied when last month's price change is non-zero.
const TrendAdjustmentPct = 0.05

// Suggestion is a suggested price together with the value before jitter.
type Suggestion struct {
	CorePrice float64 // deterministic value, unrounded
	Price     float64 // CorePrice + jitter, rounded to 2 decimals
}

// Suggester computes suggested selling prices.
type Suggester struct {
	jitter JitterSource
}

// NewSuggester creates a Suggester drawing jitter from j.
// A nil source behaves like ZeroJitter.
func NewSuggester(j JitterSource) *Suggester {
	if j == nil {
		j = ZeroJitter{}
	}
	return &Suggester{jitter: j}
}

// Suggest returns the suggested price for the given market state.
func (s *Suggester) Suggest(agg domain.MarketAggregates, ref domain.ReferencePrices) (float64, error) {
	sug, err := s.SuggestDetailed(agg, ref)
	if err != nil {
		return 0, err
	}
	return sug.Price, nil
}

// SuggestDetailed is Suggest but also returns the pre-jitter value.
func (s *Suggester) SuggestDetailed(agg domain.MarketAggregates, ref domain.ReferencePrices) (Suggestion, error) {
	if err := Validate(agg, ref); err != nil {
		return Suggestion{}, err
	}

	core := CorePrice(agg, ref)
	price := decimal.NewFromFloat(core + s.jitter.Draw()).Round(2)

	return Suggestion{
		CorePrice: core,
		Price:     price.InexactFloat64(),
	}, nil
}

// CorePrice is the deterministic part of the suggestion (steps 1-7).
// Inputs are assumed valid.
func CorePrice(agg domain.MarketAggregates, ref domain.ReferencePrices) float64 {
	priceRange := agg.MedianListingPrice - agg.MedianFirstCounterBid
	avgPriceStep := (agg.AvgStepChangeOffers + agg.AvgStepChangeBids) / 2

	suggested := agg.AverageDealPrice + priceRange*avgPriceStep

	// never undercut the observed first counter-bid
	suggested = math.Max(suggested, agg.MedianFirstCounterBid)

	switch {
	case agg.PriceChangePctLastMonth > 0:
		suggested *= 1 + TrendAdjustmentPct
	case agg.PriceChangePctLastMonth < 0:
		suggested *= 1 - TrendAdjustmentPct
		// a bearish trend must not push the price under the floor
		suggested = math.Max(suggested, agg.MedianFirstCounterBid)
	}

	// hold at the spot price when a rise is forecast
	if ref.ForecastValue > ref.CurrentPrice {
		suggested = math.Max(suggested, ref.CurrentPrice)
	}

	return math.Min(suggested, ref.ForecastValue)
}

// Validate checks that every input is a finite number and that step
// magnitudes are non-negative.
func Validate(agg domain.MarketAggregates, ref domain.ReferencePrices) error {
	fields := []struct {
		name  string
		value float64
	}{
		{"median_listing_price", agg.MedianListingPrice},
		{"median_first_counter_bid", agg.MedianFirstCounterBid},
		{"average_deal_price", agg.AverageDealPrice},
		{"avg_step_change_counter_offers", agg.AvgStepChangeOffers},
		{"avg_step_change_counter_bids", agg.AvgStepChangeBids},
		{"price_change_percentage_last_month", agg.PriceChangePctLastMonth},
		{"butter_price", ref.CurrentPrice},
		{"forecast_value", ref.ForecastValue},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return &domain.InvalidInputError{Field: f.name, Reason: "not a finite number"}
		}
	}

	if agg.AvgStepChangeOffers < 0 {
		return &domain.InvalidInputError{Field: "avg_step_change_counter_offers", Reason: "must be non-negative"}
	}
	if agg.AvgStepChangeBids < 0 {
		return &domain.InvalidInputError{Field: "avg_step_change_counter_bids", Reason: "must be non-negative"}
	}

	return nil
}
