package market

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"dairy-market-lab/internal/counterparty"
	"dairy-market-lab/internal/domain"
	"dairy-market-lab/internal/events"
	"dairy-market-lab/internal/idhash"
	"dairy-market-lab/internal/negotiation"
	"dairy-market-lab/internal/observability"
	"dairy-market-lab/internal/storage"
)

// NegotiationRequest starts a negotiation session.
type NegotiationRequest struct {
	SuggestedPrice float64
	MinPrice       float64
	Strategy       string
	ProductID      int64 // history source for the price step, 0 uses the default table
}

// OfferRequest asks for a single concession against one counter-offer.
type OfferRequest struct {
	SuggestedPrice float64
	MinPrice       float64
	Strategy       string
	ProductID      int64
	CounterOffer   float64
}

// OfferResult is the bot's reply to a single counter-offer.
type OfferResult struct {
	Offer     float64
	PriceStep float64
	Strategy  domain.Strategy
}

// NegotiationService runs negotiations against a counterpart and records outcomes.
type NegotiationService struct {
	negotiator   *negotiation.Negotiator
	counterparts counterparty.Factory
	history      storage.MarketDataStore        // nil uses the default history table
	records      storage.NegotiationRecordStore // nil skips persistence
	publisher    events.Publisher               // nil skips publishing
	logger       logrus.FieldLogger
	now          func() time.Time
}

// NegotiationOption configures a NegotiationService.
type NegotiationOption func(*NegotiationService)

// WithHistory derives price steps from a product's market data.
func WithHistory(h storage.MarketDataStore) NegotiationOption {
	return func(s *NegotiationService) { s.history = h }
}

// WithRecordStore persists finished negotiations.
func WithRecordStore(r storage.NegotiationRecordStore) NegotiationOption {
	return func(s *NegotiationService) { s.records = r }
}

// WithEventPublisher publishes a NegotiationFinished event per outcome.
func WithEventPublisher(p events.Publisher) NegotiationOption {
	return func(s *NegotiationService) { s.publisher = p }
}

// WithNegotiationLogger sets the logger.
func WithNegotiationLogger(l logrus.FieldLogger) NegotiationOption {
	return func(s *NegotiationService) { s.logger = l }
}

// NewNegotiationService creates a NegotiationService.
func NewNegotiationService(n *negotiation.Negotiator, f counterparty.Factory, opts ...NegotiationOption) *NegotiationService {
	s := &NegotiationService{
		negotiator:   n,
		counterparts: f,
		logger:       logrus.StandardLogger(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode returns the loop mode of the underlying negotiator.
func (s *NegotiationService) Mode() domain.NegotiationMode {
	return s.negotiator.Config().Mode
}

// Counterpart names the counterpart factory sessions are opened with.
func (s *NegotiationService) Counterpart() string {
	return s.counterparts.Name()
}

// PriceStep returns the strategy-scaled step for a product's history.
func (s *NegotiationService) PriceStep(ctx context.Context, productID int64, strategy domain.Strategy) (float64, error) {
	history := negotiation.DefaultHistory()
	if productID > 0 && s.history != nil {
		rows, err := s.history.GetByProduct(ctx, productID, DefaultHistoryLimit)
		if err != nil {
			return 0, fmt.Errorf("market data for product %d: %w", productID, err)
		}
		if len(rows) == 0 {
			return 0, fmt.Errorf("market data for product %d: %w", productID, storage.ErrNotFound)
		}
		history = rows
	}
	return negotiation.CalculatePriceStep(history, strategy)
}

// Offer performs one MakeOffer step on a fresh bot.
func (s *NegotiationService) Offer(ctx context.Context, req OfferRequest) (*OfferResult, error) {
	strategy, err := domain.ParseStrategy(req.Strategy)
	if err != nil {
		return nil, err
	}
	step, err := s.PriceStep(ctx, req.ProductID, strategy)
	if err != nil {
		return nil, err
	}

	bot, err := negotiation.NewBot(req.SuggestedPrice, req.MinPrice, strategy, step)
	if err != nil {
		return nil, err
	}
	offer, err := bot.MakeOffer(req.CounterOffer)
	if err != nil {
		return nil, err
	}
	return &OfferResult{Offer: offer, PriceStep: step, Strategy: strategy}, nil
}

// Negotiate runs the loop against a new counterpart session. Terminal outcomes
// are recorded and published. Errors and cancellation record nothing.
func (s *NegotiationService) Negotiate(ctx context.Context, req NegotiationRequest) (*domain.NegotiationRecord, error) {
	strategy, err := domain.ParseStrategy(req.Strategy)
	if err != nil {
		return nil, err
	}
	step, err := s.PriceStep(ctx, req.ProductID, strategy)
	if err != nil {
		return nil, err
	}

	started := s.now().UTC()
	id := idhash.NewNegotiationID(started)
	log := s.logger.WithFields(logrus.Fields{
		"negotiation_id": id,
		"counterpart":    s.counterparts.Name(),
	})

	session, err := s.counterparts.Open(ctx, id)
	if err != nil {
		return nil, &negotiation.ExternalSourceError{Step: 0, Err: fmt.Errorf("open %s session: %w", s.counterparts.Name(), err)}
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.WithError(err).Warn("failed to close counterpart session")
		}
	}()

	mode := s.Mode()
	out, err := s.negotiator.Negotiate(ctx, negotiation.Request{
		SuggestedPrice: req.SuggestedPrice,
		MinPrice:       req.MinPrice,
		Strategy:       strategy,
		PriceStep:      step,
	}, session)
	if err != nil {
		return nil, err
	}

	rec := &domain.NegotiationRecord{
		NegotiationID:  id,
		SuggestedPrice: req.SuggestedPrice,
		MinPrice:       req.MinPrice,
		Strategy:       strategy,
		Mode:           mode,
		PriceStep:      step,
		Status:         out.Status,
		FinalOffer:     out.FinalOffer,
		CounterOffer:   out.CounterOffer,
		FailureReason:  out.FailureReason,
		Steps:          out.Steps,
		StartedAt:      started,
		FinishedAt:     s.now().UTC(),
	}

	observability.RecordNegotiation(string(mode), string(out.Status), out.FailureReason, out.Steps)

	// The outcome stands even if recording it fails.
	if s.records != nil {
		if err := s.records.Insert(ctx, rec); err != nil {
			log.WithError(err).Warn("failed to store negotiation record")
		}
	}
	if s.publisher != nil {
		if e, err := events.NegotiationFinished(rec); err != nil {
			log.WithError(err).Warn("failed to build negotiation event")
		} else if err := s.publisher.Publish(ctx, e); err != nil {
			log.WithError(err).Warn("failed to publish negotiation event")
		}
	}

	return rec, nil
}
