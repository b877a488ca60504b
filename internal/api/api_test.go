package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dairy-market-lab/internal/counterparty"
	"dairy-market-lab/internal/domain"
	"dairy-market-lab/internal/market"
	"dairy-market-lab/internal/negotiation"
	"dairy-market-lab/internal/negotiation/stub"
	"dairy-market-lab/internal/pricing"
	"dairy-market-lab/internal/recommend"
	"dairy-market-lab/internal/storage/memory"
	"dairy-market-lab/internal/summary"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// constantFactory opens sessions that always answer with the same counter-offer.
type constantFactory struct {
	offer float64
}

type constantSession struct {
	stub.StubConstantSource
}

func (constantSession) Close() error { return nil }

func (f constantFactory) Name() string { return "test" }

func (f constantFactory) Open(context.Context, string) (counterparty.Session, error) {
	return constantSession{stub.StubConstantSource{Offer: f.offer}}, nil
}

type failingRecommender struct{}

func (failingRecommender) MarketReportIDs(context.Context, recommend.Query) ([]int64, error) {
	return nil, errors.New("connection refused")
}

func (failingRecommender) NewsIDs(context.Context, recommend.Query) ([]int64, error) {
	return nil, errors.New("connection refused")
}

type testEnv struct {
	router  *gin.Engine
	records *memory.NegotiationRecordStore
}

func newTestEnv(t *testing.T, mutate func(cfg *Config)) *testEnv {
	t.Helper()

	logger, _ := logtest.NewNullLogger()
	wh := memory.NewFixtureWarehouse()

	marketSvc := market.NewService(market.Warehouse{
		Quotations:    wh.Quotations,
		Forecasts:     wh.Forecasts,
		MarketData:    wh.MarketData,
		MarketChanges: wh.MarketChanges,
	}, pricing.NewSuggester(pricing.ZeroJitter{}), market.WithServiceLogger(logger))

	loop := negotiation.DefaultConfig()
	loop.StepDelay = 0
	n, err := negotiation.NewNegotiator(loop, negotiation.WithLogger(logger))
	require.NoError(t, err)

	records := memory.NewNegotiationRecordStore()
	negSvc := market.NewNegotiationService(n, constantFactory{offer: 7550},
		market.WithHistory(wh.MarketData),
		market.WithRecordStore(records),
		market.WithNegotiationLogger(logger),
	)

	summarySvc := summary.NewService(
		recommend.StaticRecommender{MarketReports: []int64{11, 12}, News: []int64{21, 22}},
		wh.Content,
		summary.ExtractiveSummarizer{},
		summary.WithLogger(logger),
	)

	cfg := &Config{
		Market:      marketSvc,
		Negotiation: negSvc,
		Summary:     summarySvc,
		Logger:      logger,
		Backends:    map[string]string{"warehouse": "memory"},
	}
	if mutate != nil {
		mutate(cfg)
	}
	return &testEnv{router: NewRouter(cfg), records: records}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestRouter_RootHealthStatus(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Hello, World!"}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = env.do(t, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[StatusResponse](t, rec)
	assert.Equal(t, "running", status.Status)
	assert.Equal(t, "escalate", status.NegotiationMode)
	assert.Equal(t, "test", status.Counterpart)
	assert.True(t, status.SummaryEnabled)
	assert.Equal(t, "memory", status.Backends["warehouse"])

	rec = env.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dairy_market_lab_http_requests_total")
}

func TestRouter_VPIInformation(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/get-butter-vpi-information?product_id=2&data_source_id=52", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode[[]quotationView](t, rec)
	require.Len(t, rows, 3)
	assert.InDelta(t, 7600, rows[0].Price, 1e-9)
	assert.Equal(t, "2024-09-30", rows[0].Date)
	assert.Equal(t, "EUR", rows[0].Currency)
	assert.Equal(t, int64(101), rows[0].DataSeriesID)

	rec = env.do(t, http.MethodGet, "/get-butter-vpi-information?product_id=2&data_source_id=52&limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]quotationView](t, rec), 1)

	rec = env.do(t, http.MethodGet, "/get-butter-vpi-information?product_id=99&data_source_id=52", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"No data found for the given product_id and data_source_id."}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/get-butter-vpi-information?product_id=2", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "data_source_id")

	rec = env.do(t, http.MethodGet, "/get-butter-vpi-information?product_id=two&data_source_id=52", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_MarketChanges(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/get-market-changes?user_id=2831", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	changes := decode[[]marketChangeView](t, rec)
	require.Len(t, changes, 3)

	byID := make(map[int64]marketChangeView)
	for _, c := range changes {
		byID[c.DataSeriesID] = c
	}
	butter := byID[memory.FixtureSeriesButter]
	assert.InDelta(t, 80.0/7520.0*100, butter.ChangePct, 1e-9)
	require.NotNil(t, butter.PreviousDate)
	assert.Equal(t, "2024-09-23", *butter.PreviousDate)
	assert.Nil(t, byID[memory.FixtureSeriesWhey].PreviousPrice)

	rec = env.do(t, http.MethodGet, "/get-market-changes?user_id=1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"No market changes found for the given user."}`, rec.Body.String())
}

func TestRouter_GenerateSummary(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/generate-summary?user_id=2831&number=5&days_threshold=7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Contains(t, body["html_summary"], "EU butter weekly")
	assert.Contains(t, body["html_summary"], "Milk deliveries fall")

	rec = env.do(t, http.MethodGet, "/generate-summary?user_id=2831&number=0&days_threshold=7", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_GenerateSummaryUpstreamFailure(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		logger, _ := logtest.NewNullLogger()
		cfg.Summary = summary.NewService(failingRecommender{}, memory.NewContentStore(),
			summary.ExtractiveSummarizer{}, summary.WithLogger(logger))
	})

	rec := env.do(t, http.MethodGet, "/generate-summary?user_id=2831&number=5&days_threshold=7", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRouter_GenerateSummaryDisabled(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) { cfg.Summary = nil })

	rec := env.do(t, http.MethodGet, "/generate-summary?user_id=2831&number=5&days_threshold=7", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_SuggestPrice(t *testing.T) {
	env := newTestEnv(t, nil)

	body := map[string]float64{
		"median_listing_price":               7400,
		"median_first_counter_bid":           7350,
		"average_deal_price":                 7420,
		"avg_step_change_counter_offers":     2.5,
		"avg_step_change_counter_bids":       4.0,
		"price_change_percentage_last_month": 0,
		"current_price":                      7300,
		"forecast_value":                     8000,
	}
	rec := env.do(t, http.MethodPost, "/suggest-price", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[suggestionView](t, rec)
	assert.InDelta(t, 7582.5, got.SuggestedPrice, 1e-9)
	assert.NotEmpty(t, got.SuggestionID)

	delete(body, "forecast_value")
	rec = env.do(t, http.MethodPost, "/suggest-price", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "forecast_value")

	req := httptest.NewRequest(http.MethodPost, "/suggest-price", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	raw := httptest.NewRecorder()
	env.router.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestRouter_SuggestPriceForProduct(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/suggest-price?product_id=2&data_source_id=52", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[suggestionView](t, rec)
	assert.InDelta(t, 7498.04, got.SuggestedPrice, 1e-9)
	assert.Equal(t, int64(2), got.ProductID)

	rec = env.do(t, http.MethodGet, "/suggest-price?product_id=99&data_source_id=52", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_GetBotOffer(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/get-bot-offer?price=7500&strategy=neutral", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[negotiationView](t, rec)
	assert.Equal(t, "accepted", got.Status)
	assert.InDelta(t, 7500, got.FinalOffer, 1e-9)
	assert.InDelta(t, 7500, got.MinPrice, 1e-9, "min_price defaults to price")
	assert.Equal(t, 0, got.Steps)
	assert.Empty(t, got.FailureReason)

	stored, err := env.records.GetByID(context.Background(), got.NegotiationID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, stored.Status)

	rec = env.do(t, http.MethodGet, "/get-bot-offer?price=7500&strategy=reckless", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/get-bot-offer?strategy=neutral", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/get-bot-offer?price=7500&strategy=neutral&product_id=99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_GetBotOfferMaxSteps(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		logger, _ := logtest.NewNullLogger()
		loop := negotiation.DefaultConfig()
		loop.StepDelay = 0
		n, err := negotiation.NewNegotiator(loop, negotiation.WithLogger(logger))
		require.NoError(t, err)
		cfg.Negotiation = market.NewNegotiationService(n, constantFactory{offer: 9000}, market.WithNegotiationLogger(logger))
	})

	rec := env.do(t, http.MethodGet, "/get-bot-offer?price=7500&strategy=neutral", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[negotiationView](t, rec)
	assert.Equal(t, "failed", got.Status)
	assert.Equal(t, domain.FailureReasonMaxStepsReached, got.FailureReason)
	assert.Equal(t, 10, got.Steps)
	assert.InDelta(t, 7512.5, got.FinalOffer, 1e-9)
}

func TestRouter_PostBotOffer(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/bot-offer", map[string]any{
		"suggested_price": 7500,
		"min_price":       7320,
		"strategy":        "neutral",
		"counter_offer":   7430,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[offerView](t, rec)
	assert.InDelta(t, 7497.5, got.Offer, 1e-9)
	assert.InDelta(t, 2.5, got.PriceStep, 1e-9)
	assert.Equal(t, "neutral", got.Strategy)

	// Without min_price the offer cannot drop below the suggestion.
	rec = env.do(t, http.MethodPost, "/bot-offer", map[string]any{
		"suggested_price": 7500,
		"strategy":        "neutral",
		"counter_offer":   7430,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 7500, decode[offerView](t, rec).Offer, 1e-9)

	rec = env.do(t, http.MethodPost, "/bot-offer", map[string]any{
		"suggested_price": 7500,
		"strategy":        "neutral",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "counter_offer")

	rec = env.do(t, http.MethodPost, "/bot-offer", map[string]any{
		"suggested_price": 7500,
		"min_price":       7600,
		"strategy":        "neutral",
		"counter_offer":   7430,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_TradeSignal(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/trade-signal", map[string]any{
		"current_price":           7600.0,
		"forecast_price":          7500.0,
		"news_sentiment":          0.7,
		"market_reports":          map[string]float64{"supply": 100000, "demand": 120000},
		"price_changes":           []float64{1.2, 0.5, -0.3, 0.4, 1.0},
		"historical_prices":       []float64{7500, 7550, 7580, 7600, 7620},
		"initial_price":           7400.0,
		"initial_counter_offer":   7450.0,
		"final_settle_price":      7550.0,
		"avg_bid_steps":           12,
		"avg_counter_offer_steps": 4,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"action":"Buy","rule":"price_trend"}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/trade-signal", map[string]any{
		"current_price":         7500.0,
		"forecast_price":        7500.0,
		"news_sentiment":        0.5,
		"market_reports":        map[string]float64{"supply": 100, "demand": 100},
		"initial_price":         7500.0,
		"initial_counter_offer": 7450.0,
		"final_settle_price":    7500.0,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"action":null}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/trade-signal", map[string]any{
		"current_price":  7500.0,
		"forecast_price": 7500.0,
		"news_sentiment": 1.5,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/trade-signal", map[string]any{"current_price": 7500.0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_CORS(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) { cfg.AllowedOrigins = []string{"http://localhost:3000"} })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/suggest-price", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", domain.MissingField("price"), http.StatusBadRequest},
		{"unknown strategy", func() error { _, err := domain.ParseStrategy("x"); return err }(), http.StatusBadRequest},
		{"external source", &negotiation.ExternalSourceError{Step: 2, Err: errors.New("eof")}, http.StatusBadGateway},
		{"upstream", summary.ErrUpstream, http.StatusBadGateway},
		{"price too high", negotiation.ErrPriceTooHigh, http.StatusUnprocessableEntity},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"canceled", context.Canceled, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestRouter_SlowCounterpartTimesOut(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		logger, _ := logtest.NewNullLogger()
		loop := negotiation.DefaultConfig()
		loop.StepDelay = 0
		loop.FetchTimeout = 20 * time.Millisecond
		n, err := negotiation.NewNegotiator(loop, negotiation.WithLogger(logger))
		require.NoError(t, err)
		cfg.Negotiation = market.NewNegotiationService(n, blockingFactory{}, market.WithNegotiationLogger(logger))
	})

	rec := env.do(t, http.MethodGet, "/get-bot-offer?price=7500&strategy=neutral", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

type blockingFactory struct{}

type blockingSession struct {
	stub.StubBlockingSource
}

func (blockingSession) Close() error { return nil }

func (blockingFactory) Name() string { return "blocking" }

func (blockingFactory) Open(context.Context, string) (counterparty.Session, error) {
	return blockingSession{}, nil
}
