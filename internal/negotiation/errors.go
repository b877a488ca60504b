package negotiation

import (
	"errors"
	"fmt"
)

// ErrPriceTooHigh is returned by MakeOffer when the offer escaped the
// escalation bound instead of a price.
var ErrPriceTooHigh = errors.New("bot offer exceeds escalation limit")

// ExternalSourceError wraps a failed counter-offer fetch. The negotiation is
// abandoned; callers may retry the whole negotiation.
type ExternalSourceError struct {
	Step int // steps completed before the failed fetch
	Err  error
}

func (e *ExternalSourceError) Error() string {
	return fmt.Sprintf("counter-offer source failed at step %d: %v", e.Step, e.Err)
}

func (e *ExternalSourceError) Unwrap() error {
	return e.Err
}
