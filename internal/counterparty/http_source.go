package counterparty

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"dairy-market-lab/internal/observability"
)

// Default HTTP counterpart configuration values.
const (
	DefaultOfferPath         = "/counter-offer"
	DefaultHTTPTimeout       = 10 * time.Second
	DefaultHTTPRetries       = 2
	DefaultRetryWait         = 200 * time.Millisecond
	DefaultRequestsPerSecond = 5.0
	DefaultBurst             = 10
)

// HTTPConfig configures the HTTP counterpart client.
type HTTPConfig struct {
	BaseURL           string
	OfferPath         string
	Timeout           time.Duration
	Retries           int
	RetryWait         time.Duration
	RequestsPerSecond float64
	Burst             int
	APIKey            string // optional, sent as X-API-Key
}

// DefaultHTTPConfig returns default configuration for baseURL.
func DefaultHTTPConfig(baseURL string) HTTPConfig {
	return HTTPConfig{
		BaseURL:           baseURL,
		OfferPath:         DefaultOfferPath,
		Timeout:           DefaultHTTPTimeout,
		Retries:           DefaultHTTPRetries,
		RetryWait:         DefaultRetryWait,
		RequestsPerSecond: DefaultRequestsPerSecond,
		Burst:             DefaultBurst,
	}
}

// HTTPClient posts bot offers to a counterpart service. It is shared across
// sessions; the limiter caps the combined request rate.
type HTTPClient struct {
	client  *resty.Client
	limiter *rate.Limiter
	path    string
}

// NewHTTPClient creates a counterpart client.
func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	if cfg.OfferPath == "" {
		cfg.OfferPath = DefaultOfferPath
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}

	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("Content-Type", "application/json")
	client.SetRetryCount(cfg.Retries)
	client.SetRetryWaitTime(cfg.RetryWait)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
	})
	if cfg.APIKey != "" {
		client.SetHeader("X-API-Key", cfg.APIKey)
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &HTTPClient{
		client:  client,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		path:    cfg.OfferPath,
	}
}

// Name returns the factory label used in metrics.
func (c *HTTPClient) Name() string { return "http" }

// Open returns a session bound to negotiationID.
func (c *HTTPClient) Open(_ context.Context, negotiationID string) (Session, error) {
	return &HTTPSource{client: c, negotiationID: negotiationID}, nil
}

// HTTPSource is one negotiation's view of the HTTP counterpart.
type HTTPSource struct {
	client        *HTTPClient
	negotiationID string
	round         atomic.Int64
}

// NextCounterOffer posts the bot offer and returns the counterpart's answer.
func (s *HTTPSource) NextCounterOffer(ctx context.Context, botOffer float64) (float64, error) {
	start := time.Now()
	offer, err := s.fetch(ctx, botOffer)
	observability.RecordCounterOffer("http", time.Since(start).Seconds(), err)
	return offer, err
}

func (s *HTTPSource) fetch(ctx context.Context, botOffer float64) (float64, error) {
	if err := s.client.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limiter: %w", err)
	}

	req := offerRequest{
		NegotiationID: s.negotiationID,
		Round:         int(s.round.Add(1)),
		BotOffer:      botOffer,
	}

	resp, err := s.client.client.R().
		SetContext(ctx).
		SetBody(req).
		Post(s.client.path)
	if err != nil {
		return 0, fmt.Errorf("post counter-offer: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("counterpart status %d: %s", resp.StatusCode(), resp.String())
	}

	// Counterparts do not always label the reply as JSON.
	var result offerResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return 0, fmt.Errorf("decode counter-offer: %w", err)
	}
	if result.Error != "" {
		return 0, fmt.Errorf("counterpart error: %s", result.Error)
	}
	if result.CounterOffer == nil {
		return 0, fmt.Errorf("counterpart response missing counter_offer")
	}

	return *result.CounterOffer, nil
}

// Close is a no-op; the underlying client is shared.
func (s *HTTPSource) Close() error { return nil }
