package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"dairy-market-lab/internal/domain"
	"dairy-market-lab/internal/storage"
)

// NegotiationRecordStore implements storage.NegotiationRecordStore using PostgreSQL.
type NegotiationRecordStore struct {
	pool *Pool
}

// NewNegotiationRecordStore creates a new NegotiationRecordStore.
func NewNegotiationRecordStore(pool *Pool) *NegotiationRecordStore {
	return &NegotiationRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.NegotiationRecordStore = (*NegotiationRecordStore)(nil)

const negotiationColumns = `
	negotiation_id, suggested_price, min_price, strategy, mode, price_step,
	status, final_offer, counter_offer, failure_reason, steps,
	started_at, finished_at
`

// Insert adds a finished negotiation. Returns ErrDuplicateKey if negotiation_id exists.
func (s *NegotiationRecordStore) Insert(ctx context.Context, r *domain.NegotiationRecord) (err error) {
	if r == nil || r.NegotiationID == "" {
		return storage.ErrInvalidInput
	}

	start := time.Now()
	defer func() { observe("insert_negotiation_record", start, err) }()

	query := `
		INSERT INTO negotiation_records (` + negotiationColumns + `) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13
		)
	`

	var failureReason *string
	if r.FailureReason != "" {
		failureReason = &r.FailureReason
	}

	_, err = s.pool.Exec(ctx, query,
		r.NegotiationID, r.SuggestedPrice, r.MinPrice, string(r.Strategy), string(r.Mode), r.PriceStep,
		string(r.Status), r.FinalOffer, r.CounterOffer, failureReason, r.Steps,
		r.StartedAt, r.FinishedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert negotiation record: %w", err)
	}
	return nil
}

// GetByID retrieves a record by negotiation ID. Returns ErrNotFound if not exists.
func (s *NegotiationRecordStore) GetByID(ctx context.Context, negotiationID string) (r *domain.NegotiationRecord, err error) {
	start := time.Now()
	defer func() { observe("get_negotiation_record", start, err) }()

	query := `SELECT ` + negotiationColumns + ` FROM negotiation_records WHERE negotiation_id = $1`

	r, err = scanNegotiationRecord(s.pool.QueryRow(ctx, query, negotiationID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get negotiation record: %w", err)
	}
	return r, nil
}

// GetByTimeRange retrieves records finished within [start, end], ordered by finished_at ASC.
func (s *NegotiationRecordStore) GetByTimeRange(ctx context.Context, from, to time.Time) (result []*domain.NegotiationRecord, err error) {
	start := time.Now()
	defer func() { observe("get_negotiation_records_by_time", start, err) }()

	query := `
		SELECT ` + negotiationColumns + `
		FROM negotiation_records
		WHERE finished_at >= $1 AND finished_at <= $2
		ORDER BY finished_at ASC, negotiation_id ASC
	`

	rows, err := s.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("query negotiation records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanNegotiationRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan negotiation record: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate negotiation records: %w", err)
	}
	return result, nil
}

func scanNegotiationRecord(row pgx.Row) (*domain.NegotiationRecord, error) {
	var (
		r             domain.NegotiationRecord
		strategy      string
		mode          string
		status        string
		failureReason *string
	)

	err := row.Scan(
		&r.NegotiationID, &r.SuggestedPrice, &r.MinPrice, &strategy, &mode, &r.PriceStep,
		&status, &r.FinalOffer, &r.CounterOffer, &failureReason, &r.Steps,
		&r.StartedAt, &r.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Strategy = domain.Strategy(strategy)
	r.Mode = domain.NegotiationMode(mode)
	r.Status = domain.NegotiationStatus(status)
	if failureReason != nil {
		r.FailureReason = *failureReason
	}
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	return &r, nil
}
