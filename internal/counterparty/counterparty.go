// Package counterparty connects the negotiation loop to a live counterpart
// over HTTP or WebSocket, or to a simulated one.
package counterparty

import (
	"context"
	"sync"
	"time"

	"dairy-market-lab/internal/negotiation"
	"dairy-market-lab/internal/negotiation/stub"
)

// Session is a counter-offer source bound to one negotiation.
type Session interface {
	negotiation.CounterOfferSource
	Close() error
}

// Factory opens a counterpart session per negotiation.
type Factory interface {
	Open(ctx context.Context, negotiationID string) (Session, error)
	Name() string
}

// offerRequest is sent to the counterpart for every round.
type offerRequest struct {
	NegotiationID string  `json:"negotiation_id"`
	Round         int     `json:"round"`
	BotOffer      float64 `json:"bot_offer"`
}

// offerResponse carries the counterpart's answer.
type offerResponse struct {
	NegotiationID string   `json:"negotiation_id,omitempty"`
	Round         int      `json:"round"`
	CounterOffer  *float64 `json:"counter_offer"`
	Error         string   `json:"error,omitempty"`
}

// SimulatedConfig configures the in-process seller.
type SimulatedConfig struct {
	AskPremium     float64 // initial ask as a fraction above the bot offer
	ReservePremium float64 // lowest ask as a fraction above the bot offer
	Step           float64 // ask decrease per round
	Noise          float64 // uniform noise amplitude
}

// DefaultSimulatedConfig returns the demo seller parameters.
func DefaultSimulatedConfig() SimulatedConfig {
	return SimulatedConfig{
		AskPremium:     0.05,
		ReservePremium: 0.01,
		Step:           40,
		Noise:          10,
	}
}

// SimulatedFactory hands out an in-process seller per negotiation. The seller
// anchors its ask on the first bot offer it sees.
type SimulatedFactory struct {
	cfg SimulatedConfig

	mu   sync.Mutex
	seed int64
}

// NewSimulatedFactory creates a factory seeded from seed.
func NewSimulatedFactory(cfg SimulatedConfig, seed int64) *SimulatedFactory {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SimulatedFactory{cfg: cfg, seed: seed}
}

// Name returns the factory label used in metrics.
func (f *SimulatedFactory) Name() string { return "simulated" }

// Open returns a new simulated session.
func (f *SimulatedFactory) Open(_ context.Context, _ string) (Session, error) {
	f.mu.Lock()
	f.seed++
	seed := f.seed
	f.mu.Unlock()

	return &simulatedSession{cfg: f.cfg, seed: seed}, nil
}

type simulatedSession struct {
	cfg    SimulatedConfig
	seed   int64
	seller *stub.SimulatedCounterpart
}

func (s *simulatedSession) NextCounterOffer(ctx context.Context, botOffer float64) (float64, error) {
	if s.seller == nil {
		s.seller = stub.NewSimulatedCounterpart(
			s.seed,
			botOffer*(1+s.cfg.AskPremium),
			botOffer*(1+s.cfg.ReservePremium),
			s.cfg.Step,
			s.cfg.Noise,
		)
	}
	return s.seller.NextCounterOffer(ctx, botOffer)
}

func (s *simulatedSession) Close() error { return nil }
