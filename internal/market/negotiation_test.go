package market

import (
	"context"
	"errors"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dairy-market-lab/internal/counterparty"
	"dairy-market-lab/internal/domain"
	"dairy-market-lab/internal/events"
	"dairy-market-lab/internal/negotiation"
	"dairy-market-lab/internal/negotiation/stub"
	"dairy-market-lab/internal/storage"
	"dairy-market-lab/internal/storage/memory"
)

// sourceFactory hands out one fixed source per session.
type sourceFactory struct {
	src     negotiation.CounterOfferSource
	openErr error
	opened  []string
	closed  int
}

type sourceSession struct {
	negotiation.CounterOfferSource
	f *sourceFactory
}

func (s sourceSession) Close() error {
	s.f.closed++
	return nil
}

func (f *sourceFactory) Name() string { return "test" }

func (f *sourceFactory) Open(_ context.Context, id string) (counterparty.Session, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opened = append(f.opened, id)
	return sourceSession{CounterOfferSource: f.src, f: f}, nil
}

func newTestNegotiationService(t *testing.T, f counterparty.Factory, mode domain.NegotiationMode, opts ...NegotiationOption) *NegotiationService {
	t.Helper()

	logger, _ := logtest.NewNullLogger()
	cfg := negotiation.DefaultConfig()
	cfg.StepDelay = 0
	cfg.FetchTimeout = time.Second
	cfg.Mode = mode
	if mode == domain.ModeConcede {
		cfg.MaxSteps = negotiation.LegacyMaxSteps
	}
	n, err := negotiation.NewNegotiator(cfg, negotiation.WithLogger(logger))
	require.NoError(t, err)

	opts = append([]NegotiationOption{WithNegotiationLogger(logger)}, opts...)
	return NewNegotiationService(n, f, opts...)
}

func TestNegotiationService_Accepted(t *testing.T) {
	records := memory.NewNegotiationRecordStore()
	pub := &recordingPublisher{}
	f := &sourceFactory{src: stub.StubConstantSource{Offer: 7550}}
	svc := newTestNegotiationService(t, f, domain.ModeEscalate, WithRecordStore(records), WithEventPublisher(pub))

	rec, err := svc.Negotiate(context.Background(), NegotiationRequest{
		SuggestedPrice: 7500,
		MinPrice:       7500,
		Strategy:       "neutral",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusAccepted, rec.Status)
	assert.Equal(t, domain.ModeEscalate, rec.Mode)
	assert.InDelta(t, 2.5, rec.PriceStep, 1e-9)
	assert.InDelta(t, 7500, rec.FinalOffer, 1e-9)
	assert.Zero(t, rec.Steps)
	assert.Len(t, rec.NegotiationID, 26)

	require.Len(t, f.opened, 1)
	assert.Equal(t, rec.NegotiationID, f.opened[0])
	assert.Equal(t, 1, f.closed)

	stored, err := records.GetByID(context.Background(), rec.NegotiationID)
	require.NoError(t, err)
	assert.Equal(t, rec.Status, stored.Status)

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TypeNegotiationFinished, pub.events[0].Type)
}

func TestNegotiationService_MaxSteps(t *testing.T) {
	f := &sourceFactory{src: stub.StubConstantSource{Offer: 9000}}
	svc := newTestNegotiationService(t, f, domain.ModeEscalate)

	rec, err := svc.Negotiate(context.Background(), NegotiationRequest{
		SuggestedPrice: 7500,
		MinPrice:       7500,
		Strategy:       "neutral",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, rec.Status)
	assert.Equal(t, domain.FailureReasonMaxStepsReached, rec.FailureReason)
	assert.Equal(t, negotiation.DefaultMaxSteps, rec.Steps)
	assert.InDelta(t, 7512.5, rec.FinalOffer, 1e-9)
}

func TestNegotiationService_ProductHistory(t *testing.T) {
	f := &sourceFactory{src: stub.StubConstantSource{Offer: 7500}}
	wh := memory.NewFixtureWarehouse()
	svc := newTestNegotiationService(t, f, domain.ModeEscalate, WithHistory(wh.MarketData))

	step, err := svc.PriceStep(context.Background(), memory.FixtureProductButter, domain.StrategyAggressive)
	require.NoError(t, err)
	assert.InDelta(t, 3.75, step, 1e-9)

	_, err = svc.PriceStep(context.Background(), 99, domain.StrategyNeutral)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestNegotiationService_SourceFailureRecordsNothing(t *testing.T) {
	records := memory.NewNegotiationRecordStore()
	f := &sourceFactory{src: &stub.StubFailingSource{Offer: 9000, FailAfter: 1, Err: errors.New("counterpart offline")}}
	svc := newTestNegotiationService(t, f, domain.ModeEscalate, WithRecordStore(records))

	_, err := svc.Negotiate(context.Background(), NegotiationRequest{SuggestedPrice: 7500, MinPrice: 7500, Strategy: "neutral"})

	var srcErr *negotiation.ExternalSourceError
	require.True(t, errors.As(err, &srcErr), "expected ExternalSourceError, got %v", err)

	all, err := records.GetByTimeRange(context.Background(), time.Time{}, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestNegotiationService_OpenFailure(t *testing.T) {
	f := &sourceFactory{openErr: errors.New("dial refused")}
	svc := newTestNegotiationService(t, f, domain.ModeEscalate)

	_, err := svc.Negotiate(context.Background(), NegotiationRequest{SuggestedPrice: 7500, MinPrice: 7500, Strategy: "neutral"})
	var srcErr *negotiation.ExternalSourceError
	assert.True(t, errors.As(err, &srcErr))
}

func TestNegotiationService_CancelledRecordsNothing(t *testing.T) {
	records := memory.NewNegotiationRecordStore()
	f := &sourceFactory{src: stub.StubBlockingSource{}}
	svc := newTestNegotiationService(t, f, domain.ModeEscalate, WithRecordStore(records))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Negotiate(ctx, NegotiationRequest{SuggestedPrice: 7500, MinPrice: 7500, Strategy: "neutral"})
	assert.ErrorIs(t, err, context.Canceled)

	all, _ := records.GetByTimeRange(context.Background(), time.Time{}, time.Now().Add(time.Hour))
	assert.Empty(t, all)
}

func TestNegotiationService_UnknownStrategy(t *testing.T) {
	svc := newTestNegotiationService(t, &sourceFactory{}, domain.ModeEscalate)

	_, err := svc.Negotiate(context.Background(), NegotiationRequest{SuggestedPrice: 7500, MinPrice: 7500, Strategy: "reckless"})
	assert.ErrorIs(t, err, domain.ErrUnknownStrategy)
}

func TestNegotiationService_Offer(t *testing.T) {
	svc := newTestNegotiationService(t, &sourceFactory{}, domain.ModeConcede)

	res, err := svc.Offer(context.Background(), OfferRequest{
		SuggestedPrice: 7500,
		MinPrice:       7320,
		Strategy:       "neutral",
		CounterOffer:   7430,
	})
	require.NoError(t, err)
	assert.InDelta(t, 7497.5, res.Offer, 1e-9)
	assert.InDelta(t, 2.5, res.PriceStep, 1e-9)

	// counter above the offer leaves it unchanged
	res, err = svc.Offer(context.Background(), OfferRequest{
		SuggestedPrice: 7500,
		MinPrice:       7320,
		Strategy:       "aggressive",
		CounterOffer:   7600,
	})
	require.NoError(t, err)
	assert.InDelta(t, 7500, res.Offer, 1e-9)

	_, err = svc.Offer(context.Background(), OfferRequest{SuggestedPrice: 7500, MinPrice: 7600, Strategy: "neutral", CounterOffer: 7000})
	var invalid *domain.InvalidInputError
	assert.True(t, errors.As(err, &invalid))
}
