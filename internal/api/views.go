package api

import (
	"time"

	"dairy-market-lab/internal/domain"
	"dairy-market-lab/internal/market"
)

const dateLayout = "2006-01-02"

type quotationView struct {
	ProductID    int64   `json:"product_id"`
	DataSourceID int64   `json:"data_source_id"`
	DataSeriesID int64   `json:"data_series_id"`
	Price        float64 `json:"price"`
	Currency     string  `json:"currency"`
	Date         string  `json:"date"`
}

func newQuotationView(q *domain.Quotation) quotationView {
	return quotationView{
		ProductID:    q.ProductID,
		DataSourceID: q.DataSourceID,
		DataSeriesID: q.DataSeriesID,
		Price:        q.Price,
		Currency:     q.Currency,
		Date:         q.Date.Format(dateLayout),
	}
}

type marketChangeView struct {
	DataSeriesID  int64    `json:"data_series_id"`
	Currency      string   `json:"currency"`
	LatestPrice   float64  `json:"latest_price"`
	LatestDate    string   `json:"latest_date"`
	PreviousPrice *float64 `json:"previous_price"`
	PreviousDate  *string  `json:"previous_date"`
	ChangePct     float64  `json:"change_percentage"`
}

func newMarketChangeView(c *domain.MarketChange) marketChangeView {
	v := marketChangeView{
		DataSeriesID:  c.DataSeriesID,
		Currency:      c.Currency,
		LatestPrice:   c.LatestPrice,
		LatestDate:    c.LatestDate.Format(dateLayout),
		PreviousPrice: c.PreviousPrice,
		ChangePct:     c.ChangePct,
	}
	if c.PreviousDate != nil {
		d := c.PreviousDate.Format(dateLayout)
		v.PreviousDate = &d
	}
	return v
}

type suggestionView struct {
	SuggestionID   string    `json:"suggestion_id"`
	ProductID      int64     `json:"product_id,omitempty"`
	DataSourceID   int64     `json:"data_source_id,omitempty"`
	SuggestedPrice float64   `json:"suggested_price"`
	CorePrice      float64   `json:"core_price"`
	CurrentPrice   float64   `json:"current_price"`
	ForecastValue  float64   `json:"forecast_value"`
	CreatedAt      time.Time `json:"created_at"`
}

func newSuggestionView(r *domain.SuggestionRecord) suggestionView {
	return suggestionView{
		SuggestionID:   r.SuggestionID,
		ProductID:      r.ProductID,
		DataSourceID:   r.DataSourceID,
		SuggestedPrice: r.SuggestedPrice,
		CorePrice:      r.CorePrice,
		CurrentPrice:   r.Reference.CurrentPrice,
		ForecastValue:  r.Reference.ForecastValue,
		CreatedAt:      r.CreatedAt,
	}
}

type negotiationView struct {
	NegotiationID  string    `json:"negotiation_id"`
	Status         string    `json:"status"`
	FinalOffer     float64   `json:"final_offer"`
	CounterOffer   float64   `json:"counter_offer"`
	FailureReason  string    `json:"failure_reason,omitempty"`
	Steps          int       `json:"steps"`
	SuggestedPrice float64   `json:"suggested_price"`
	MinPrice       float64   `json:"min_price"`
	Strategy       string    `json:"strategy"`
	Mode           string    `json:"mode"`
	PriceStep      float64   `json:"price_step"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

func newNegotiationView(r *domain.NegotiationRecord) negotiationView {
	return negotiationView{
		NegotiationID:  r.NegotiationID,
		Status:         string(r.Status),
		FinalOffer:     r.FinalOffer,
		CounterOffer:   r.CounterOffer,
		FailureReason:  r.FailureReason,
		Steps:          r.Steps,
		SuggestedPrice: r.SuggestedPrice,
		MinPrice:       r.MinPrice,
		Strategy:       string(r.Strategy),
		Mode:           string(r.Mode),
		PriceStep:      r.PriceStep,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
	}
}

type offerView struct {
	Offer     float64 `json:"offer"`
	PriceStep float64 `json:"price_step"`
	Strategy  string  `json:"strategy"`
}

func newOfferView(r *market.OfferResult) offerView {
	return offerView{Offer: r.Offer, PriceStep: r.PriceStep, Strategy: string(r.Strategy)}
}

// suggestPriceRequest is the body of POST /suggest-price. Pointer fields
// distinguish a missing value from zero.
type suggestPriceRequest struct {
	MedianListingPrice         *float64 `json:"median_listing_price"`
	MedianFirstCounterBid      *float64 `json:"median_first_counter_bid"`
	AverageDealPrice           *float64 `json:"average_deal_price"`
	AvgStepChangeCounterOffers *float64 `json:"avg_step_change_counter_offers"`
	AvgStepChangeCounterBids   *float64 `json:"avg_step_change_counter_bids"`
	PriceChangePctLastMonth    *float64 `json:"price_change_percentage_last_month"`
	CurrentPrice               *float64 `json:"current_price"`
	ForecastValue              *float64 `json:"forecast_value"`
}

func (r suggestPriceRequest) toDomain() (domain.MarketAggregates, domain.ReferencePrices, error) {
	fields := []struct {
		name  string
		value *float64
	}{
		{"median_listing_price", r.MedianListingPrice},
		{"median_first_counter_bid", r.MedianFirstCounterBid},
		{"average_deal_price", r.AverageDealPrice},
		{"avg_step_change_counter_offers", r.AvgStepChangeCounterOffers},
		{"avg_step_change_counter_bids", r.AvgStepChangeCounterBids},
		{"price_change_percentage_last_month", r.PriceChangePctLastMonth},
		{"current_price", r.CurrentPrice},
		{"forecast_value", r.ForecastValue},
	}
	for _, f := range fields {
		if f.value == nil {
			return domain.MarketAggregates{}, domain.ReferencePrices{}, domain.MissingField(f.name)
		}
	}

	agg := domain.MarketAggregates{
		MedianListingPrice:      *r.MedianListingPrice,
		MedianFirstCounterBid:   *r.MedianFirstCounterBid,
		AverageDealPrice:        *r.AverageDealPrice,
		AvgStepChangeOffers:     *r.AvgStepChangeCounterOffers,
		AvgStepChangeBids:       *r.AvgStepChangeCounterBids,
		PriceChangePctLastMonth: *r.PriceChangePctLastMonth,
	}
	ref := domain.ReferencePrices{
		CurrentPrice:  *r.CurrentPrice,
		ForecastValue: *r.ForecastValue,
	}
	return agg, ref, nil
}

// botOfferRequest is the body of POST /bot-offer.
type botOfferRequest struct {
	SuggestedPrice float64  `json:"suggested_price"`
	MinPrice       *float64 `json:"min_price"` // defaults to suggested_price
	Strategy       string   `json:"strategy"`
	CounterOffer   *float64 `json:"counter_offer"`
	ProductID      int64    `json:"product_id"`
}

// tradeSignalRequest is the body of POST /trade-signal.
type tradeSignalRequest struct {
	CurrentPrice         *float64  `json:"current_price"`
	ForecastPrice        *float64  `json:"forecast_price"`
	NewsSentiment        *float64  `json:"news_sentiment"`
	MarketReports        reportDTO `json:"market_reports"`
	PriceChanges         []float64 `json:"price_changes"`
	HistoricalPrices     []float64 `json:"historical_prices"`
	InitialPrice         float64   `json:"initial_price"`
	InitialCounterOffer  float64   `json:"initial_counter_offer"`
	FinalSettlePrice     float64   `json:"final_settle_price"`
	AvgBidSteps          float64   `json:"avg_bid_steps"`
	AvgCounterOfferSteps float64   `json:"avg_counter_offer_steps"`
}

type reportDTO struct {
	Supply float64 `json:"supply"`
	Demand float64 `json:"demand"`
}

// tradeSignalView renders ActionNone as a null action.
type tradeSignalView struct {
	Action *string `json:"action"`
	Rule   string  `json:"rule,omitempty"`
}
