package mysql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dairy-market-lab/internal/domain"
	"dairy-market-lab/internal/storage"
)

// contentTables maps content kinds to their tables.
var contentTables = map[domain.ContentKind]string{
	domain.ContentKindNews:         "news",
	domain.ContentKindMarketReport: "market_analyses",
}

// ContentStore implements storage.ContentStore over news and market_analyses.
type ContentStore struct {
	db *DB
}

// NewContentStore creates a new ContentStore.
func NewContentStore(db *DB) *ContentStore {
	return &ContentStore{db: db}
}

// Compile-time interface check.
var _ storage.ContentStore = (*ContentStore)(nil)

// GetDocuments retrieves documents by ID, returned in the order of ids.
func (s *ContentStore) GetDocuments(ctx context.Context, kind domain.ContentKind, ids []int64) (docs []*domain.Document, err error) {
	table, ok := contentTables[kind]
	if !ok {
		return nil, fmt.Errorf("%w: content kind %q", storage.ErrInvalidInput, kind)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	start := time.Now()
	defer func() { observe("get_"+table, start, err) }()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	// table comes from contentTables, never from input
	query := fmt.Sprintf("SELECT id, title, content FROM %s WHERE id IN (%s)", table, placeholders)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	byID := make(map[int64]*domain.Document, len(ids))
	for rows.Next() {
		d := &domain.Document{Kind: kind}
		if err := rows.Scan(&d.ID, &d.Title, &d.Content); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		byID[d.ID] = d
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}

	for _, id := range ids {
		if d, ok := byID[id]; ok {
			docs = append(docs, d)
			delete(byID, id)
		}
	}
	return docs, nil
}
