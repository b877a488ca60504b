package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Strategy controls how fast the bot moves its offer.
type Strategy string

// Recognized strategies
const (
	StrategyAggressive   Strategy = "aggressive"
	StrategyNeutral      Strategy = "neutral"
	StrategyConservative Strategy = "conservative"
)

// ErrUnknownStrategy is returned by ParseStrategy for unrecognized tokens.
var ErrUnknownStrategy = errors.New("unknown strategy")

// ParseStrategy parses a strategy token case-insensitively.
// Unknown tokens fail with an InvalidInputError wrapping ErrUnknownStrategy.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case StrategyAggressive, StrategyNeutral, StrategyConservative:
		return st, nil
	default:
		return "", &InvalidInputError{
			Field:  "strategy",
			Reason: fmt.Sprintf("unknown strategy %q", s),
			Err:    ErrUnknownStrategy,
		}
	}
}

// NegotiationMode names the direction the bot moves its offer in.
// The two modes come from two historical bot variants and are kept apart.
type NegotiationMode string

// Negotiation modes
const (
	// ModeConcede lowers the offer toward the counter-offer, clamped to [min, suggested].
	ModeConcede NegotiationMode = "concede"
	// ModeEscalate raises the offer by a strategy fraction of the step each round.
	ModeEscalate NegotiationMode = "escalate"
)

// NegotiationStatus is the terminal state of a negotiation.
type NegotiationStatus string

// Terminal statuses
const (
	StatusAccepted NegotiationStatus = "accepted"
	StatusFailed   NegotiationStatus = "failed"
)

// Failure reason codes
const (
	FailureReasonPriceTooHigh    = "price_too_high"
	FailureReasonMaxStepsReached = "max_steps_reached"
)

// NegotiationOutcome is the result of a finished negotiation loop.
type NegotiationOutcome struct {
	Status        NegotiationStatus
	FinalOffer    float64 // bot offer at termination
	CounterOffer  float64 // last observed counter-offer
	FailureReason string  // empty when accepted
	Steps         int
}

// Accepted reports whether the negotiation ended in agreement.
func (o *NegotiationOutcome) Accepted() bool {
	return o.Status == StatusAccepted
}

// NegotiationRecord is the persisted summary of a finished negotiation.
// Corresponds to the negotiation_records table.
type NegotiationRecord struct {
	NegotiationID  string // ULID
	SuggestedPrice float64
	MinPrice       float64
	Strategy       Strategy
	Mode           NegotiationMode
	PriceStep      float64
	Status         NegotiationStatus
	FinalOffer     float64
	CounterOffer   float64
	FailureReason  string
	Steps          int
	StartedAt      time.Time
	FinishedAt     time.Time
}
