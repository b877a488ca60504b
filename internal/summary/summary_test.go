package summary

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dairy-market-lab/internal/cache"
	"dairy-market-lab/internal/domain"
	"dairy-market-lab/internal/recommend"
	"dairy-market-lab/internal/storage"
	"dairy-market-lab/internal/storage/memory"
)

type fakeChatModel struct {
	reply    string
	err      error
	calls    atomic.Int32
	lastUser string
}

func (m *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.calls.Add(1)
	for _, msg := range input {
		if msg.Role == schema.User {
			m.lastUser = msg.Content
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

var testDocs = struct {
	reports []*domain.Document
	news    []*domain.Document
}{
	reports: []*domain.Document{{ID: 11, Kind: domain.ContentKindMarketReport, Title: "Butter outlook", Content: "Prices firm at 7600 EUR/t. Cream is tight."}},
	news:    []*domain.Document{{ID: 21, Kind: domain.ContentKindNews, Title: "Heatwave", Content: "Milk collections down 3%."}},
}

func TestLLMSummarizer_Summarize(t *testing.T) {
	m := &fakeChatModel{reply: "```html\n<h3>Market reports</h3><p>Firm.</p>\n```"}
	s := NewLLMSummarizer(m)

	out, err := s.Summarize(context.Background(), testDocs.reports, testDocs.news)
	require.NoError(t, err)
	assert.Equal(t, "<h3>Market reports</h3><p>Firm.</p>", out)

	assert.Contains(t, m.lastUser, "Butter outlook")
	assert.Contains(t, m.lastUser, "7600 EUR/t")
	assert.Contains(t, m.lastUser, "## News")
}

func TestLLMSummarizer_Errors(t *testing.T) {
	_, err := NewLLMSummarizer(&fakeChatModel{err: errors.New("rate limited")}).
		Summarize(context.Background(), testDocs.reports, nil)
	assert.ErrorContains(t, err, "rate limited")

	_, err = NewLLMSummarizer(&fakeChatModel{reply: "   "}).
		Summarize(context.Background(), testDocs.reports, nil)
	assert.ErrorContains(t, err, "empty response")
}

func TestBuildPrompt_TruncatesLongDocuments(t *testing.T) {
	long := &domain.Document{Title: "Long", Content: strings.Repeat("a", maxDocumentChars+100)}
	prompt := buildPrompt([]*domain.Document{long}, nil)

	assert.Contains(t, prompt, strings.Repeat("a", maxDocumentChars)+"...")
	assert.NotContains(t, prompt, strings.Repeat("a", maxDocumentChars+1))
	assert.Contains(t, prompt, "## News\n\n(none)")
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"<p>x</p>", "<p>x</p>"},
		{"```html\n<p>x</p>\n```", "<p>x</p>"},
		{"```\n<p>x</p>```", "<p>x</p>"},
		{"  <p>x</p>\n", "<p>x</p>"},
	}
	for _, tt := range tests {
		if got := stripCodeFence(tt.in); got != tt.want {
			t.Errorf("stripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractiveSummarizer(t *testing.T) {
	out, err := ExtractiveSummarizer{}.Summarize(context.Background(), testDocs.reports, testDocs.news)
	require.NoError(t, err)

	assert.Contains(t, out, "<h3>Market reports</h3>")
	assert.Contains(t, out, "<strong>Butter outlook</strong>: Prices firm at 7600 EUR/t.")
	assert.NotContains(t, out, "Cream is tight")
	assert.Contains(t, out, "<h3>News</h3>")
}

func newTestService(t *testing.T, m *fakeChatModel, opts ...Option) *Service {
	t.Helper()

	wh := memory.NewFixtureWarehouse()
	rec := recommend.StaticRecommender{MarketReports: []int64{11, 12}, News: []int64{21, 22}}
	logger, _ := logtest.NewNullLogger()
	opts = append([]Option{WithLogger(logger)}, opts...)
	return NewService(rec, wh.Content, NewLLMSummarizer(m), opts...)
}

func TestService_Generate(t *testing.T) {
	m := &fakeChatModel{reply: "<p>digest</p>"}
	svc := newTestService(t, m)

	out, err := svc.Generate(context.Background(), recommend.Query{UserID: memory.FixtureUserID, Number: 5, DaysThreshold: 7})
	require.NoError(t, err)
	assert.Equal(t, "<p>digest</p>", out)
	assert.Equal(t, int32(1), m.calls.Load())
}

func TestService_GenerateCaches(t *testing.T) {
	m := &fakeChatModel{reply: "<p>digest</p>"}
	c := cache.NewMemoryCache()
	svc := newTestService(t, m, WithCache(c, time.Hour))

	q := recommend.Query{UserID: memory.FixtureUserID, Number: 5, DaysThreshold: 7}
	for i := 0; i < 3; i++ {
		out, err := svc.Generate(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, "<p>digest</p>", out)
	}
	assert.Equal(t, int32(1), m.calls.Load())

	// A different query misses the cache.
	_, err := svc.Generate(context.Background(), recommend.Query{UserID: memory.FixtureUserID, Number: 3, DaysThreshold: 7})
	require.NoError(t, err)
	assert.Equal(t, int32(2), m.calls.Load())
}

func TestService_NoContent(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	svc := NewService(recommend.StaticRecommender{}, memory.NewFixtureWarehouse().Content,
		NewLLMSummarizer(&fakeChatModel{reply: "x"}), WithLogger(logger))

	_, err := svc.Generate(context.Background(), recommend.Query{UserID: 1, Number: 5, DaysThreshold: 7})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestService_InvalidQuery(t *testing.T) {
	svc := newTestService(t, &fakeChatModel{reply: "x"})

	_, err := svc.Generate(context.Background(), recommend.Query{UserID: 1, Number: 0, DaysThreshold: 7})
	var invalid *domain.InvalidInputError
	assert.True(t, errors.As(err, &invalid))
}

func TestService_SummarizerFailureNotCached(t *testing.T) {
	m := &fakeChatModel{err: errors.New("boom")}
	c := cache.NewMemoryCache()
	svc := newTestService(t, m, WithCache(c, time.Hour))

	q := recommend.Query{UserID: memory.FixtureUserID, Number: 5, DaysThreshold: 7}
	_, err := svc.Generate(context.Background(), q)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)

	m.err = nil
	m.reply = "<p>ok</p>"
	out, err := svc.Generate(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, "<p>ok</p>", out)
}
