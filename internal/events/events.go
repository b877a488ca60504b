// Package events publishes negotiation and suggestion outcomes to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dairy-market-lab/internal/domain"
)

// Event types
const (
	TypeNegotiationFinished = "negotiation.finished"
	TypePriceSuggested      = "price.suggested"
)

// Event is the envelope written to the bus. Key partitions related events together.
type Event struct {
	Type       string          `json:"type"`
	Key        string          `json:"key"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

type negotiationPayload struct {
	NegotiationID  string  `json:"negotiation_id"`
	SuggestedPrice float64 `json:"suggested_price"`
	MinPrice       float64 `json:"min_price"`
	Strategy       string  `json:"strategy"`
	Mode           string  `json:"mode"`
	Status         string  `json:"status"`
	FinalOffer     float64 `json:"final_offer"`
	CounterOffer   float64 `json:"counter_offer"`
	FailureReason  string  `json:"failure_reason,omitempty"`
	Steps          int     `json:"steps"`
}

// NegotiationFinished builds the event for a terminal negotiation.
func NegotiationFinished(r *domain.NegotiationRecord) (Event, error) {
	payload, err := json.Marshal(negotiationPayload{
		NegotiationID:  r.NegotiationID,
		SuggestedPrice: r.SuggestedPrice,
		MinPrice:       r.MinPrice,
		Strategy:       string(r.Strategy),
		Mode:           string(r.Mode),
		Status:         string(r.Status),
		FinalOffer:     r.FinalOffer,
		CounterOffer:   r.CounterOffer,
		FailureReason:  r.FailureReason,
		Steps:          r.Steps,
	})
	if err != nil {
		return Event{}, fmt.Errorf("marshal negotiation event: %w", err)
	}
	return Event{
		Type:       TypeNegotiationFinished,
		Key:        r.NegotiationID,
		OccurredAt: r.FinishedAt.UTC(),
		Payload:    payload,
	}, nil
}

type suggestionPayload struct {
	SuggestionID   string  `json:"suggestion_id"`
	ProductID      int64   `json:"product_id,omitempty"`
	DataSourceID   int64   `json:"data_source_id,omitempty"`
	CurrentPrice   float64 `json:"current_price"`
	ForecastValue  float64 `json:"forecast_value"`
	SuggestedPrice float64 `json:"suggested_price"`
}

// PriceSuggested builds the event for a recorded suggestion.
func PriceSuggested(r *domain.SuggestionRecord) (Event, error) {
	payload, err := json.Marshal(suggestionPayload{
		SuggestionID:   r.SuggestionID,
		ProductID:      r.ProductID,
		DataSourceID:   r.DataSourceID,
		CurrentPrice:   r.Reference.CurrentPrice,
		ForecastValue:  r.Reference.ForecastValue,
		SuggestedPrice: r.SuggestedPrice,
	})
	if err != nil {
		return Event{}, fmt.Errorf("marshal suggestion event: %w", err)
	}
	return Event{
		Type:       TypePriceSuggested,
		Key:        r.SuggestionID,
		OccurredAt: r.CreatedAt.UTC(),
		Payload:    payload,
	}, nil
}
