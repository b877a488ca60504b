package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"

	"dairy-market-lab/internal/domain"
)

// ComputeSuggestionID computes a deterministic suggestion_id using SHA256.
// Formula: SHA256(product_id|data_source_id|aggregates|reference|created_at_ms)
// Returns the base58-encoded hash (43-44 characters).
func ComputeSuggestionID(
	productID int64,
	dataSourceID int64,
	agg domain.MarketAggregates,
	ref domain.ReferencePrices,
	createdAtMs int64,
) string {
	data := fmt.Sprintf("%d|%d|%.6f|%.6f|%.6f|%.6f|%.6f|%.6f|%.6f|%.6f|%d",
		productID,
		dataSourceID,
		agg.MedianListingPrice,
		agg.MedianFirstCounterBid,
		agg.AverageDealPrice,
		agg.AvgStepChangeOffers,
		agg.AvgStepChangeBids,
		agg.PriceChangePctLastMonth,
		ref.CurrentPrice,
		ref.ForecastValue,
		createdAtMs,
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}
