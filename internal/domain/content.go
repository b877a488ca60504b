package domain

// ContentKind selects the content table a document is loaded from.
type ContentKind string

// Content kinds
const (
	ContentKindNews         ContentKind = "news"
	ContentKindMarketReport ContentKind = "market_report"
)

// Document is a titled text loaded from news or market_analyses.
type Document struct {
	ID      int64
	Kind    ContentKind
	Title   string
	Content string
}
