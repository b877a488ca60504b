package mysql

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
)

// setupTestDB starts a MySQL container, applies the warehouse schema and seeds it.
// Returns a cleanup function that must be called after tests complete.
func setupTestDB(t *testing.T) (*DB, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcmysql.Run(ctx, "mysql:8.0",
		tcmysql.WithDatabase("warehouse"),
		tcmysql.WithUsername("test"),
		tcmysql.WithPassword("test"),
	)
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	portNum, err := strconv.Atoi(port.Port())
	require.NoError(t, err)

	db, err := NewDB(ctx, Config{
		Host:            host,
		Port:            portNum,
		User:            "test",
		Password:        "test",
		Database:        "warehouse",
		MultiStatements: true,
	})
	require.NoError(t, err)

	runMigrations(t, db)
	seed(t, db)

	cleanup := func() {
		db.Close()
		_ = container.Terminate(ctx)
	}

	return db, cleanup
}

// runMigrations applies the schema from internal/storage/migrations/mysql.
func runMigrations(t *testing.T, db *DB) {
	t.Helper()
	ctx := context.Background()

	projectRoot := findProjectRoot(t)
	migrationsDir := filepath.Join(projectRoot, "internal", "storage", "migrations", "mysql")

	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, files, "no mysql migrations found in %s", migrationsDir)
	sort.Strings(files)

	for _, file := range files {
		content, err := os.ReadFile(file)
		require.NoError(t, err)

		_, err = db.ExecContext(ctx, string(content))
		require.NoError(t, err, "failed to apply migration %s", filepath.Base(file))
	}
}

// seed loads a small butter market: series 101 (product 2, source 52) and 102.
func seed(t *testing.T, db *DB) {
	t.Helper()

	_, err := db.ExecContext(context.Background(), `
		INSERT INTO vesper_quotations (product_id, data_source_id, data_series_id, price, currency, date) VALUES
			(2, 52, 101, 7450, 'EUR', '2024-09-16'),
			(2, 52, 101, 7520, 'EUR', '2024-09-23'),
			(2, 52, 101, 7600, 'EUR', '2024-09-30'),
			(3, 52, 102, 2400, 'EUR', '2024-09-30');
		INSERT INTO forecasts (data_series_id, value, target_date, created_at) VALUES
			(101, 7480.00, '2024-10-07', '2024-09-29 08:00:00'),
			(101, 7498.04, '2024-10-07', '2024-09-30 08:00:00');
		INSERT INTO market_data (product_id, date, listing_price, first_counter_bid, deal_price,
			step_change_counter_offers, step_change_counter_bids) VALUES
			(2, '2024-09-02', 7500, 7300, 7400, 2.0, 4.0),
			(2, '2024-09-09', 7400, 7350, 7420, 3.0, 3.5),
			(2, '2024-09-16', 7350, 7380, 7440, 2.5, 4.5);
		INSERT INTO user_top_data_series (user_id, data_series_id) VALUES
			(2831, 102),
			(2831, 101);
		INSERT INTO market_analyses (id, title, content) VALUES
			(11, 'Butter outlook', 'Prices firm on tight cream supply.'),
			(12, 'SMP weekly', 'Powder demand steady.');
		INSERT INTO news (id, title, content) VALUES
			(21, 'Heatwave hits yields', 'Milk collections down 3 percent.');
	`)
	require.NoError(t, err)
}

// findProjectRoot walks up from the current directory to find go.mod.
func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}
