package negotiation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"dairy-market-lab/internal/domain"
)

// Default loop configuration values.
const (
	DefaultAcceptanceThreshold = 0.02
	DefaultMaxSteps            = 10
	LegacyMaxSteps             = 100
	DefaultStepDelay           = 1 * time.Second
	DefaultFetchTimeout        = 10 * time.Second
)

// Config holds the loop parameters.
type Config struct {
	AcceptanceThreshold float64                // fraction of the bot offer
	MaxSteps            int                    // steps before max_steps_reached
	StepDelay           time.Duration          // pause between rounds
	FetchTimeout        time.Duration          // per counter-offer fetch, 0 disables
	Mode                domain.NegotiationMode // ModeEscalate unless set
}

// DefaultConfig returns the default loop configuration.
func DefaultConfig() Config {
	return Config{
		AcceptanceThreshold: DefaultAcceptanceThreshold,
		MaxSteps:            DefaultMaxSteps,
		StepDelay:           DefaultStepDelay,
		FetchTimeout:        DefaultFetchTimeout,
		Mode:                domain.ModeEscalate,
	}
}

// Validate checks configuration values.
func (c Config) Validate() error {
	if c.AcceptanceThreshold < 0 || c.AcceptanceThreshold >= 1 {
		return &domain.InvalidInputError{Field: "acceptance_threshold", Reason: "must be in [0, 1)"}
	}
	if c.MaxSteps <= 0 {
		return &domain.InvalidInputError{Field: "max_steps", Reason: "must be positive"}
	}
	if c.StepDelay < 0 || c.FetchTimeout < 0 {
		return &domain.InvalidInputError{Field: "step_delay", Reason: "durations must not be negative"}
	}
	switch c.Mode {
	case domain.ModeConcede, domain.ModeEscalate:
	default:
		return &domain.InvalidInputError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", c.Mode)}
	}
	return nil
}

// Request describes one negotiation session.
type Request struct {
	SuggestedPrice float64
	MinPrice       float64
	Strategy       domain.Strategy
	PriceStep      float64
}

// Negotiator runs bounded negotiation loops. It holds no per-session state
// and may be shared between goroutines.
type Negotiator struct {
	cfg    Config
	logger logrus.FieldLogger
	sleep  func(ctx context.Context, d time.Duration) error
}

// Option configures Negotiator.
type Option func(*Negotiator)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(n *Negotiator) {
		n.logger = l
	}
}

// NewNegotiator creates a Negotiator. A zero Mode defaults to ModeEscalate.
func NewNegotiator(cfg Config, opts ...Option) (*Negotiator, error) {
	if cfg.Mode == "" {
		cfg.Mode = domain.ModeEscalate
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	n := &Negotiator{
		cfg:    cfg,
		logger: logrus.StandardLogger(),
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Config returns the loop configuration.
func (n *Negotiator) Config() Config { return n.cfg }

// Negotiate runs the loop until the counter-offer is accepted, the offer
// passes the escalation limit, or MaxSteps is reached. Source failures are
// returned as *ExternalSourceError. Cancellation returns ctx.Err().
func (n *Negotiator) Negotiate(ctx context.Context, req Request, src CounterOfferSource) (*domain.NegotiationOutcome, error) {
	bot, err := NewBot(req.SuggestedPrice, req.MinPrice, req.Strategy, req.PriceStep)
	if err != nil {
		return nil, err
	}

	log := n.logger.WithFields(logrus.Fields{
		"mode":       n.cfg.Mode,
		"strategy":   bot.Strategy(),
		"suggested":  req.SuggestedPrice,
		"price_step": bot.PriceStep(),
	})

	for {
		counter, err := n.fetch(ctx, src, bot)
		if err != nil {
			return nil, err
		}

		log.WithFields(logrus.Fields{
			"step":    bot.Steps(),
			"offer":   bot.Offer(),
			"counter": counter,
		}).Debug("counter-offer received")

		if bot.accepts(counter, n.cfg.AcceptanceThreshold) {
			return n.finish(log, bot, counter, domain.StatusAccepted, ""), nil
		}

		switch n.cfg.Mode {
		case domain.ModeConcede:
			if _, err := bot.MakeOffer(counter); err != nil {
				if errors.Is(err, ErrPriceTooHigh) {
					return n.finish(log, bot, counter, domain.StatusFailed, domain.FailureReasonPriceTooHigh), nil
				}
				return nil, err
			}
		default:
			bot.escalate()
			if bot.exceedsLimit() {
				return n.finish(log, bot, counter, domain.StatusFailed, domain.FailureReasonPriceTooHigh), nil
			}
		}

		if bot.Steps() >= n.cfg.MaxSteps {
			return n.finish(log, bot, counter, domain.StatusFailed, domain.FailureReasonMaxStepsReached), nil
		}

		if err := n.sleep(ctx, n.cfg.StepDelay); err != nil {
			return nil, err
		}
	}
}

// fetch asks the source for the next counter-offer under the per-fetch timeout.
func (n *Negotiator) fetch(ctx context.Context, src CounterOfferSource, bot *Bot) (float64, error) {
	fetchCtx := ctx
	if n.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, n.cfg.FetchTimeout)
		defer cancel()
	}

	counter, err := src.NextCounterOffer(fetchCtx, bot.Offer())
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, &ExternalSourceError{Step: bot.Steps(), Err: err}
	}
	if !finite(counter) {
		return 0, &ExternalSourceError{Step: bot.Steps(), Err: fmt.Errorf("non-finite counter-offer %v", counter)}
	}
	return counter, nil
}

func (n *Negotiator) finish(log logrus.FieldLogger, bot *Bot, counter float64, status domain.NegotiationStatus, reason string) *domain.NegotiationOutcome {
	out := &domain.NegotiationOutcome{
		Status:        status,
		FinalOffer:    bot.Offer(),
		CounterOffer:  counter,
		FailureReason: reason,
		Steps:         bot.Steps(),
	}
	log.WithFields(logrus.Fields{
		"status":        out.Status,
		"final_offer":   out.FinalOffer,
		"counter_offer": out.CounterOffer,
		"reason":        out.FailureReason,
		"steps":         out.Steps,
	}).Info("negotiation finished")
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
