// Package summary turns recommended market reports and news into an HTML digest.
package summary

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"dairy-market-lab/internal/domain"
	"dairy-market-lab/internal/observability"
)

// Summarizer renders documents as an HTML fragment.
type Summarizer interface {
	Summarize(ctx context.Context, reports, news []*domain.Document) (string, error)
}

// LLM defaults.
const (
	DefaultModel     = "gpt-4o-mini"
	DefaultMaxTokens = 1500
	// maxDocumentChars bounds each document in the prompt.
	maxDocumentChars = 4000
)

const systemPrompt = `You are a dairy market analyst writing for commodity traders.
Summarize the market reports and news you are given into a short briefing.
Answer with an HTML fragment only: use <h3> section headings for "Market reports" and "News",
<ul>/<li> for key points and <p> for a closing outlook. Do not include <html>, <head> or <body> tags.
Keep prices and percentages exactly as written in the sources.`

// LLMConfig configures the OpenAI-compatible chat model.
type LLMConfig struct {
	APIKey    string
	BaseURL   string // empty uses the OpenAI default
	Model     string
	MaxTokens int
}

// NewChatModel builds an OpenAI-compatible chat model.
func NewChatModel(ctx context.Context, cfg LLMConfig) (model.BaseChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm api key not configured")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}
	temperature := float32(0.3)

	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return cm, nil
}

// LLMSummarizer asks a chat model for the digest.
type LLMSummarizer struct {
	model model.BaseChatModel
}

// NewLLMSummarizer wraps a chat model.
func NewLLMSummarizer(m model.BaseChatModel) *LLMSummarizer {
	return &LLMSummarizer{model: m}
}

// Compile-time interface check.
var _ Summarizer = (*LLMSummarizer)(nil)

// Summarize sends one system and one user message and returns the cleaned HTML.
func (s *LLMSummarizer) Summarize(ctx context.Context, reports, news []*domain.Document) (out string, err error) {
	start := time.Now()
	defer func() {
		observability.RecordExternalCall("llm", "summarize", time.Since(start).Seconds(), err)
	}()

	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(buildPrompt(reports, news)),
	}

	resp, err := s.model.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("generate summary: empty response")
	}
	return stripCodeFence(resp.Content), nil
}

func buildPrompt(reports, news []*domain.Document) string {
	var b strings.Builder
	writeSection(&b, "Market reports", reports)
	writeSection(&b, "News", news)
	return b.String()
}

func writeSection(b *strings.Builder, title string, docs []*domain.Document) {
	fmt.Fprintf(b, "## %s\n\n", title)
	if len(docs) == 0 {
		b.WriteString("(none)\n\n")
		return
	}
	for i, d := range docs {
		content := d.Content
		if len(content) > maxDocumentChars {
			content = content[:maxDocumentChars] + "..."
		}
		fmt.Fprintf(b, "%d. %s\n%s\n\n", i+1, d.Title, content)
	}
}

// stripCodeFence removes a ```html ... ``` wrapper some models add.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ExtractiveSummarizer lists document titles with their first sentence.
// It needs no model and backs local runs without an API key.
type ExtractiveSummarizer struct{}

// Compile-time interface check.
var _ Summarizer = ExtractiveSummarizer{}

// Summarize renders the digest from the documents alone.
func (ExtractiveSummarizer) Summarize(_ context.Context, reports, news []*domain.Document) (string, error) {
	var b strings.Builder
	writeHTMLSection(&b, "Market reports", reports)
	writeHTMLSection(&b, "News", news)
	return b.String(), nil
}

func writeHTMLSection(b *strings.Builder, title string, docs []*domain.Document) {
	if len(docs) == 0 {
		return
	}
	fmt.Fprintf(b, "<h3>%s</h3>\n<ul>\n", html.EscapeString(title))
	for _, d := range docs {
		fmt.Fprintf(b, "<li><strong>%s</strong>: %s</li>\n",
			html.EscapeString(d.Title), html.EscapeString(firstSentence(d.Content)))
	}
	b.WriteString("</ul>\n")
}

func firstSentence(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".!?"); i >= 0 {
		return s[:i+1]
	}
	return s
}
