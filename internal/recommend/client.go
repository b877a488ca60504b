// Package recommend calls the news recommendation service for personalized
// market report and news article IDs.
package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"dairy-market-lab/internal/domain"
	"dairy-market-lab/internal/observability"
)

// Defaults for the recommendation service.
const (
	DefaultBaseURL = "https://news-recommendation.vespertool.com"
	DefaultTimeout = 30 * time.Second
	DefaultRetries = 2

	marketReportRecommendPath = "/v1/market_report_recommend"
	newsRecommendPath         = "/v1/news_recommend"
)

// Query selects recommendations for one user.
type Query struct {
	UserID        int64
	Number        int
	DaysThreshold int
}

// Validate checks the query bounds.
func (q Query) Validate() error {
	if q.UserID <= 0 {
		return &domain.InvalidInputError{Field: "user_id", Reason: "must be positive"}
	}
	if q.Number <= 0 {
		return &domain.InvalidInputError{Field: "number", Reason: "must be positive"}
	}
	if q.DaysThreshold <= 0 {
		return &domain.InvalidInputError{Field: "days_threshold", Reason: "must be positive"}
	}
	return nil
}

// Recommender returns document IDs to summarize for a user.
type Recommender interface {
	MarketReportIDs(ctx context.Context, q Query) ([]int64, error)
	NewsIDs(ctx context.Context, q Query) ([]int64, error)
}

type recommendRequest struct {
	UserID        int64 `json:"user_id"`
	Number        int   `json:"number"`
	DaysThreshold int   `json:"days_threshold"`
}

type recommendResponse struct {
	RecommendedArticles []int64 `json:"recommended_articles"`
	RecommendationType  string  `json:"recommendation_type"`
}

// Config holds client settings.
type Config struct {
	BaseURL string
	APIKey  string // sent as the Basic auth password with an empty username
	Timeout time.Duration
	Retries int
}

// HTTPClient implements Recommender over the service REST API.
type HTTPClient struct {
	client *resty.Client
}

// NewHTTPClient creates a client. Empty fields fall back to defaults.
func NewHTTPClient(cfg Config) *HTTPClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries == 0 {
		cfg.Retries = DefaultRetries
	}

	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetTimeout(cfg.Timeout)
	client.SetRetryCount(cfg.Retries)
	client.SetBasicAuth("", cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		return err != nil || r.StatusCode() >= 500
	})

	return &HTTPClient{client: client}
}

// Compile-time interface check.
var _ Recommender = (*HTTPClient)(nil)

// MarketReportIDs returns recommended market_analyses IDs.
func (c *HTTPClient) MarketReportIDs(ctx context.Context, q Query) ([]int64, error) {
	return c.recommend(ctx, "market_report_recommend", marketReportRecommendPath, q)
}

// NewsIDs returns recommended news IDs.
func (c *HTTPClient) NewsIDs(ctx context.Context, q Query) ([]int64, error) {
	return c.recommend(ctx, "news_recommend", newsRecommendPath, q)
}

func (c *HTTPClient) recommend(ctx context.Context, operation, path string, q Query) (ids []int64, err error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		observability.RecordExternalCall("recommendation", operation, time.Since(start).Seconds(), err)
	}()

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(recommendRequest{UserID: q.UserID, Number: q.Number, DaysThreshold: q.DaysThreshold}).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", operation, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("%s: unexpected status %d: %s", operation, resp.StatusCode(), resp.String())
	}

	var result recommendResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", operation, err)
	}

	return result.RecommendedArticles, nil
}

// StaticRecommender returns fixed IDs. Used for local runs without the service.
type StaticRecommender struct {
	MarketReports []int64
	News          []int64
}

// Compile-time interface check.
var _ Recommender = StaticRecommender{}

// MarketReportIDs returns up to q.Number market report IDs.
func (s StaticRecommender) MarketReportIDs(_ context.Context, q Query) ([]int64, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return head(s.MarketReports, q.Number), nil
}

// NewsIDs returns up to q.Number news IDs.
func (s StaticRecommender) NewsIDs(_ context.Context, q Query) ([]int64, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return head(s.News, q.Number), nil
}

func head(ids []int64, n int) []int64 {
	if len(ids) > n {
		ids = ids[:n]
	}
	out := make([]int64, len(ids))
	copy(out, ids)
	return out
}
