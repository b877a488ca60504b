package migrations

import (
	"context"

	"dairy-market-lab/internal/storage/mysql"
)

// RunMySQLMigrations applies the embedded warehouse schema statement by statement.
// Production warehouses are provisioned elsewhere; this targets local and test databases.
func RunMySQLMigrations(ctx context.Context, db *mysql.DB) error {
	return apply(ctx, "mysql", MySQLFS, "mysql", true, func(ctx context.Context, sql string) error {
		_, err := db.ExecContext(ctx, sql)
		return err
	})
}
