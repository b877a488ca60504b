package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dairy-market-lab/internal/storage/migrations"
	"dairy-market-lab/internal/storage/mysql"
	"dairy-market-lab/internal/storage/postgres"
)

const migrateTimeout = 2 * time.Minute

// newMigrateCmd creates the migrate command
func newMigrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply embedded database schemas",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "postgres",
		Short: "Create the negotiation record tables in PostgreSQL",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.cfg.PostgresDSN == "" {
				return fmt.Errorf("POSTGRES_DSN is not set")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), migrateTimeout)
			defer cancel()

			pool, err := postgres.NewPool(ctx, opts.cfg.PostgresDSN)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				return err
			}
			opts.logger.Info("postgres migrations applied")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clickhouse",
		Short: "Create the suggestion log tables in ClickHouse",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.cfg.ClickHouseDSN == "" {
				return fmt.Errorf("CLICKHOUSE_DSN is not set")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), migrateTimeout)
			defer cancel()

			conn, err := migrations.RunClickhouseMigrations(ctx, opts.cfg.ClickHouseDSN)
			if err != nil {
				return err
			}
			defer conn.Close()

			opts.logger.Info("clickhouse migrations applied")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "warehouse",
		Short: "Create the warehouse schema in a local or test MySQL database",
		RunE: func(cmd *cobra.Command, args []string) error {
			mc, ok := opts.cfg.WarehouseConfig()
			if !ok {
				return fmt.Errorf("MYSQL_HOST is not set")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), migrateTimeout)
			defer cancel()

			db, err := mysql.NewDB(ctx, mc)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := migrations.RunMySQLMigrations(ctx, db); err != nil {
				return err
			}
			opts.logger.WithField("database", mc.Database).Info("warehouse migrations applied")
			return nil
		},
	})

	return cmd
}
