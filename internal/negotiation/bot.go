// Package negotiation implements the buyer-side negotiation bot: a
// single-shot offer adjustment and a bounded multi-step loop against a
// counter-offer source.
package negotiation

import (
	"math"

	"dairy-market-lab/internal/domain"
)

// EscalationLimit caps the bot offer at this multiple of the suggested price.
const EscalationLimit = 1.2

// Bot holds the state of one negotiation session. It is not safe for
// concurrent use; each session owns its Bot.
type Bot struct {
	suggested float64
	min       float64
	strategy  domain.Strategy
	priceStep float64

	offer float64
	steps int
}

// NewBot validates the session parameters and returns a bot whose standing
// offer starts at the suggested price.
func NewBot(suggested, min float64, s domain.Strategy, priceStep float64) (*Bot, error) {
	strategy, err := domain.ParseStrategy(string(s))
	if err != nil {
		return nil, err
	}
	if !finite(suggested) || suggested <= 0 {
		return nil, &domain.InvalidInputError{Field: "price", Reason: "must be a positive finite number"}
	}
	if !finite(min) || min < 0 {
		return nil, &domain.InvalidInputError{Field: "min_price", Reason: "must be a non-negative finite number"}
	}
	if min > suggested {
		return nil, &domain.InvalidInputError{Field: "min_price", Reason: "greater than suggested price"}
	}
	if !finite(priceStep) || priceStep < 0 {
		return nil, &domain.InvalidInputError{Field: "price_step", Reason: "must be a non-negative finite number"}
	}

	return &Bot{
		suggested: suggested,
		min:       min,
		strategy:  strategy,
		priceStep: priceStep,
		offer:     suggested,
	}, nil
}

// Offer returns the current standing offer.
func (b *Bot) Offer() float64 { return b.offer }

// Steps returns the number of adjustments made so far.
func (b *Bot) Steps() int { return b.steps }

// Strategy returns the session strategy.
func (b *Bot) Strategy() domain.Strategy { return b.strategy }

// PriceStep returns the fixed per-session step.
func (b *Bot) PriceStep() float64 { return b.priceStep }

// MakeOffer concedes toward the counter-offer: when the standing offer is
// above it, the offer drops by one price step. The result is clamped to
// [min, suggested].
func (b *Bot) MakeOffer(counter float64) (float64, error) {
	if !finite(counter) {
		return 0, &domain.InvalidInputError{Field: "counter_offer", Reason: "must be a finite number"}
	}

	if b.offer > counter {
		b.offer -= b.priceStep
	}
	b.offer = math.Min(math.Max(b.offer, b.min), b.suggested)
	b.steps++

	if b.exceedsLimit() {
		return 0, ErrPriceTooHigh
	}
	return b.offer, nil
}

// escalate raises the offer by the strategy fraction of the price step.
func (b *Bot) escalate() {
	b.offer += b.priceStep * escalationFraction[b.strategy]
	b.steps++
}

// accepts reports whether counter lies within threshold (a fraction of the
// standing offer) of the offer.
func (b *Bot) accepts(counter, threshold float64) bool {
	return math.Abs(b.offer-counter) <= b.offer*threshold
}

func (b *Bot) exceedsLimit() bool {
	return b.offer > b.suggested*EscalationLimit
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
