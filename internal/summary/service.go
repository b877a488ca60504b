package summary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"dairy-market-lab/internal/cache"
	"dairy-market-lab/internal/domain"
	"dairy-market-lab/internal/recommend"
	"dairy-market-lab/internal/storage"
)

// DefaultCacheTTL keeps a rendered digest for one user query.
const DefaultCacheTTL = 6 * time.Hour

const cacheName = "summary"

// ErrUpstream marks failures of the recommendation or summarization services.
var ErrUpstream = errors.New("upstream service failed")

// Service builds the per-user market news digest:
// recommendations, then document content, then the summarizer.
type Service struct {
	recommender recommend.Recommender
	content     storage.ContentStore
	summarizer  Summarizer
	cache       cache.Cache // nil disables caching
	ttl         time.Duration
	logger      logrus.FieldLogger
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables caching of rendered digests.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.ttl = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// NewService creates a Service.
func NewService(r recommend.Recommender, content storage.ContentStore, sum Summarizer, opts ...Option) *Service {
	s := &Service{
		recommender: r,
		content:     content,
		summarizer:  sum,
		ttl:         DefaultCacheTTL,
		logger:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type cachedSummary struct {
	HTML string `json:"html"`
}

// Generate returns the HTML digest for q. Returns storage.ErrNotFound when
// nothing is recommended or none of the recommended documents exist.
func (s *Service) Generate(ctx context.Context, q recommend.Query) (string, error) {
	if err := q.Validate(); err != nil {
		return "", err
	}

	key := fmt.Sprintf("summary:%d:%d:%d", q.UserID, q.Number, q.DaysThreshold)
	if s.cache != nil {
		var hit cachedSummary
		ok, err := cache.GetJSON(ctx, s.cache, cacheName, key, &hit)
		if err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("summary cache read failed")
		} else if ok {
			return hit.HTML, nil
		}
	}

	reportIDs, err := s.recommender.MarketReportIDs(ctx, q)
	if err != nil {
		return "", fmt.Errorf("recommend market reports: %w: %w", ErrUpstream, err)
	}
	newsIDs, err := s.recommender.NewsIDs(ctx, q)
	if err != nil {
		return "", fmt.Errorf("recommend news: %w: %w", ErrUpstream, err)
	}

	reports, err := s.content.GetDocuments(ctx, domain.ContentKindMarketReport, reportIDs)
	if err != nil {
		return "", fmt.Errorf("load market reports: %w", err)
	}
	news, err := s.content.GetDocuments(ctx, domain.ContentKindNews, newsIDs)
	if err != nil {
		return "", fmt.Errorf("load news: %w", err)
	}

	if len(reports) == 0 && len(news) == 0 {
		return "", fmt.Errorf("no recommended content for user %d: %w", q.UserID, storage.ErrNotFound)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":        q.UserID,
		"market_reports": len(reports),
		"news":           len(news),
	}).Debug("summarizing recommended content")

	htmlSummary, err := s.summarizer.Summarize(ctx, reports, news)
	if err != nil {
		return "", fmt.Errorf("summarize: %w: %w", ErrUpstream, err)
	}

	if s.cache != nil {
		if err := cache.SetJSON(ctx, s.cache, key, cachedSummary{HTML: htmlSummary}, s.ttl); err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("summary cache write failed")
		}
	}
	return htmlSummary, nil
}
