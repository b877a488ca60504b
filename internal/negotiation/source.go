package negotiation

import "context"

// CounterOfferSource yields the other party's counter-offer for each step.
// botOffer is the bot's standing offer the counterpart is responding to.
type CounterOfferSource interface {
	NextCounterOffer(ctx context.Context, botOffer float64) (float64, error)
}

// CounterOfferFunc adapts a function to CounterOfferSource.
type CounterOfferFunc func(ctx context.Context, botOffer float64) (float64, error)

// NextCounterOffer calls f.
func (f CounterOfferFunc) NextCounterOffer(ctx context.Context, botOffer float64) (float64, error) {
	return f(ctx, botOffer)
}
