package cli

import (
	"dairy-market-lab/internal/advisor"
	"dairy-market-lab/internal/domain"
)

// suggestInput is the file format of `suggest --input`. Keys match the
// POST /suggest-price body.
type suggestInput struct {
	MedianListingPrice         float64 `yaml:"median_listing_price"`
	MedianFirstCounterBid      float64 `yaml:"median_first_counter_bid"`
	AverageDealPrice           float64 `yaml:"average_deal_price"`
	AvgStepChangeCounterOffers float64 `yaml:"avg_step_change_counter_offers"`
	AvgStepChangeCounterBids   float64 `yaml:"avg_step_change_counter_bids"`
	PriceChangePctLastMonth    float64 `yaml:"price_change_percentage_last_month"`
	CurrentPrice               float64 `yaml:"current_price"`
	ForecastValue              float64 `yaml:"forecast_value"`
}

func (in suggestInput) aggregates() domain.MarketAggregates {
	return domain.MarketAggregates{
		MedianListingPrice:      in.MedianListingPrice,
		MedianFirstCounterBid:   in.MedianFirstCounterBid,
		AverageDealPrice:        in.AverageDealPrice,
		AvgStepChangeOffers:     in.AvgStepChangeCounterOffers,
		AvgStepChangeBids:       in.AvgStepChangeCounterBids,
		PriceChangePctLastMonth: in.PriceChangePctLastMonth,
	}
}

func (in suggestInput) reference() domain.ReferencePrices {
	return domain.ReferencePrices{CurrentPrice: in.CurrentPrice, ForecastValue: in.ForecastValue}
}

// adviseInput is the file format of `advise`. Keys match the
// POST /trade-signal body.
type adviseInput struct {
	CurrentPrice  float64 `yaml:"current_price"`
	ForecastPrice float64 `yaml:"forecast_price"`
	NewsSentiment float64 `yaml:"news_sentiment"`
	MarketReports struct {
		Supply float64 `yaml:"supply"`
		Demand float64 `yaml:"demand"`
	} `yaml:"market_reports"`
	PriceChanges         []float64 `yaml:"price_changes"`
	HistoricalPrices     []float64 `yaml:"historical_prices"`
	InitialPrice         float64   `yaml:"initial_price"`
	InitialCounterOffer  float64   `yaml:"initial_counter_offer"`
	FinalSettlePrice     float64   `yaml:"final_settle_price"`
	AvgBidSteps          float64   `yaml:"avg_bid_steps"`
	AvgCounterOfferSteps float64   `yaml:"avg_counter_offer_steps"`
}

func (in adviseInput) toAdvisor() advisor.Input {
	return advisor.Input{
		CurrentPrice:         in.CurrentPrice,
		ForecastPrice:        in.ForecastPrice,
		NewsSentiment:        in.NewsSentiment,
		Report:               domain.MarketReport{Supply: in.MarketReports.Supply, Demand: in.MarketReports.Demand},
		PriceChanges:         in.PriceChanges,
		HistoricalPrices:     in.HistoricalPrices,
		InitialPrice:         in.InitialPrice,
		InitialCounterOffer:  in.InitialCounterOffer,
		FinalSettlePrice:     in.FinalSettlePrice,
		AvgBidSteps:          in.AvgBidSteps,
		AvgCounterOfferSteps: in.AvgCounterOfferSteps,
	}
}
