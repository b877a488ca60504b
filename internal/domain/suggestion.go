package domain

import "time"

// SuggestionRecord is one logged price suggestion.
// Corresponds to the price_suggestions table.
type SuggestionRecord struct {
	SuggestionID   string // deterministic hash of inputs and time
	ProductID      int64  // 0 when aggregates were supplied by the caller
	DataSourceID   int64
	Aggregates     MarketAggregates
	Reference      ReferencePrices
	CorePrice      float64 // before jitter
	SuggestedPrice float64 // returned value
	CreatedAt      time.Time
}
