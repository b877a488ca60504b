package migrations

import (
	"context"

	"dairy-market-lab/internal/storage/postgres"
)

// RunPostgresMigrations creates the negotiation record tables. pgx runs each
// file as one simple-protocol script.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	return apply(ctx, "postgres", PostgresFS, "postgres", false, func(ctx context.Context, sql string) error {
		_, err := pool.Exec(ctx, sql)
		return err
	})
}
