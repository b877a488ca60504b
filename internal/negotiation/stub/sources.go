// Package stub provides in-memory counter-offer sources for tests and demos.
package stub

import (
	"context"
	"errors"
	"math/rand"
	"sync"
)

// ErrScriptExhausted is returned when a scripted source runs out of offers.
var ErrScriptExhausted = errors.New("counter-offer script exhausted")

// StubScriptedSource replays a fixed sequence of counter-offers.
// Implements negotiation.CounterOfferSource interface.
type StubScriptedSource struct {
	mu     sync.Mutex
	offers []float64
	next   int
	seen   []float64 // bot offers observed per call
}

// NewStubScriptedSource creates a source returning offers in order.
func NewStubScriptedSource(offers ...float64) *StubScriptedSource {
	return &StubScriptedSource{offers: offers}
}

// NextCounterOffer returns the next scripted offer or ErrScriptExhausted.
func (s *StubScriptedSource) NextCounterOffer(ctx context.Context, botOffer float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seen = append(s.seen, botOffer)
	if s.next >= len(s.offers) {
		return 0, ErrScriptExhausted
	}
	offer := s.offers[s.next]
	s.next++
	return offer, nil
}

// BotOffers returns the bot offers seen so far, one per call.
func (s *StubScriptedSource) BotOffers() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.seen))
	copy(out, s.seen)
	return out
}

// StubConstantSource always answers with the same counter-offer.
type StubConstantSource struct {
	Offer float64
}

// NextCounterOffer returns the constant offer.
func (s StubConstantSource) NextCounterOffer(ctx context.Context, _ float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.Offer, nil
}

// StubFailingSource fails after a number of successful calls.
type StubFailingSource struct {
	mu        sync.Mutex
	Offer     float64
	FailAfter int
	Err       error
	calls     int
}

// NextCounterOffer returns Offer for the first FailAfter calls, then Err.
func (s *StubFailingSource) NextCounterOffer(ctx context.Context, _ float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.calls > s.FailAfter {
		return 0, s.Err
	}
	return s.Offer, nil
}

// StubBlockingSource blocks until ctx is done.
type StubBlockingSource struct{}

// NextCounterOffer waits for cancellation and returns ctx.Err().
func (StubBlockingSource) NextCounterOffer(ctx context.Context, _ float64) (float64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

// SimulatedCounterpart is a seller that starts above the bot and walks its
// ask down toward a reserve price, with some noise.
type SimulatedCounterpart struct {
	mu      sync.Mutex
	rng     *rand.Rand
	ask     float64
	reserve float64
	step    float64
	noise   float64
}

// NewSimulatedCounterpart creates a seller asking `ask` and never going below `reserve`.
// Each call lowers the ask by step and adds noise drawn from [-noise, +noise).
func NewSimulatedCounterpart(seed int64, ask, reserve, step, noise float64) *SimulatedCounterpart {
	return &SimulatedCounterpart{
		rng:     rand.New(rand.NewSource(seed)),
		ask:     ask,
		reserve: reserve,
		step:    step,
		noise:   noise,
	}
}

// NextCounterOffer returns the current ask and moves it toward the bot offer.
func (s *SimulatedCounterpart) NextCounterOffer(ctx context.Context, botOffer float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	offer := s.ask
	if s.noise > 0 {
		offer += (s.rng.Float64()*2 - 1) * s.noise
	}
	if offer < s.reserve {
		offer = s.reserve
	}

	if s.ask > botOffer {
		s.ask -= s.step
		if s.ask < s.reserve {
			s.ask = s.reserve
		}
	}
	return offer, nil
}
