// Package advisor produces a Buy/Sell/Hold signal for butter from market
// process statistics, forecasts, sentiment and supply/demand.
package advisor

import (
	"math"

	"dairy-market-lab/internal/domain"
)

// Rule thresholds.
const (
	UncertainSpread       = 500.0 // opening spread above which the market is uncertain
	MomentumBidSteps      = 10.0  // bid steps above which buyers are pushing
	WeakCounterOfferSteps = 5.0   // counter-offer steps below which sellers give in
	NeutralSentiment      = 0.5
	PriceChangeTrendPct   = 0.5 // mean daily change beyond which a trend is followed
)

// Input is the market state the signal is computed from.
type Input struct {
	CurrentPrice         float64
	ForecastPrice        float64
	NewsSentiment        float64 // 0 (negative) to 1 (positive)
	Report               domain.MarketReport
	PriceChanges         []float64 // recent daily change percentages
	HistoricalPrices     []float64 // recent prices, empty falls back to CurrentPrice
	InitialPrice         float64   // opening ask of the previous market process
	InitialCounterOffer  float64
	FinalSettlePrice     float64
	AvgBidSteps          float64
	AvgCounterOfferSteps float64
}

// Validate rejects non-finite inputs and out-of-range sentiment.
func (in Input) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"current_price", in.CurrentPrice},
		{"forecast_price", in.ForecastPrice},
		{"news_sentiment", in.NewsSentiment},
		{"supply", in.Report.Supply},
		{"demand", in.Report.Demand},
		{"initial_price", in.InitialPrice},
		{"initial_counter_offer", in.InitialCounterOffer},
		{"final_settle_price", in.FinalSettlePrice},
		{"avg_bid_steps", in.AvgBidSteps},
		{"avg_counter_offer_steps", in.AvgCounterOfferSteps},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return &domain.InvalidInputError{Field: f.name, Reason: "not a finite number"}
		}
	}
	if in.NewsSentiment < 0 || in.NewsSentiment > 1 {
		return &domain.InvalidInputError{Field: "news_sentiment", Reason: "must be within [0, 1]"}
	}
	for _, v := range append(append([]float64{}, in.PriceChanges...), in.HistoricalPrices...) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &domain.InvalidInputError{Field: "price_history", Reason: "not a finite number"}
		}
	}
	return nil
}

// Decision is the signal plus the rule that produced it.
type Decision struct {
	Action domain.TradeAction
	Rule   string // empty when no rule fired
}

// Decide evaluates the rules in order. Later rules override earlier ones,
// so the last rule that fires wins.
func Decide(in Input) Decision {
	avgChange := mean(in.PriceChanges, 0)
	avgHistorical := mean(in.HistoricalPrices, in.CurrentPrice)
	spread := math.Abs(in.InitialPrice - in.InitialCounterOffer)
	movement := in.FinalSettlePrice - in.InitialPrice

	var d Decision
	set := func(a domain.TradeAction, rule string) {
		d.Action = a
		d.Rule = rule
	}

	// market process
	switch {
	case spread > UncertainSpread:
		set(domain.ActionHold, "uncertain_spread")
	case movement > 0 && in.AvgBidSteps > MomentumBidSteps:
		set(domain.ActionBuy, "buying_momentum")
	case movement < 0 && in.AvgCounterOfferSteps < WeakCounterOfferSteps:
		set(domain.ActionSell, "bearish_process")
	}

	// forecast with sentiment
	switch {
	case in.CurrentPrice < in.ForecastPrice && in.NewsSentiment > NeutralSentiment:
		set(domain.ActionBuy, "forecast_sentiment")
	case in.CurrentPrice > in.ForecastPrice && in.NewsSentiment < NeutralSentiment:
		set(domain.ActionSell, "forecast_sentiment")
	}

	// supply and demand
	switch {
	case in.CurrentPrice > avgHistorical && in.Report.Supply < in.Report.Demand:
		set(domain.ActionBuy, "supply_demand")
	case in.CurrentPrice < avgHistorical && in.Report.Supply > in.Report.Demand:
		set(domain.ActionSell, "supply_demand")
	}

	// recent price change trend
	switch {
	case avgChange > PriceChangeTrendPct:
		set(domain.ActionBuy, "price_trend")
	case avgChange < -PriceChangeTrendPct:
		set(domain.ActionSell, "price_trend")
	}

	// forecast against historical band
	switch {
	case in.CurrentPrice < in.ForecastPrice && in.CurrentPrice > avgHistorical:
		set(domain.ActionBuy, "forecast_band")
	case in.CurrentPrice > in.ForecastPrice && in.CurrentPrice < avgHistorical:
		set(domain.ActionSell, "forecast_band")
	}

	return d
}

func mean(values []float64, fallback float64) float64 {
	if len(values) == 0 {
		return fallback
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
