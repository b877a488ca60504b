package migrations

import "embed"

// PostgresFS embeds all PostgreSQL migration files.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds all ClickHouse migration files.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS

// MySQLFS embeds the warehouse schema for local runs and tests.
//
//go:embed mysql/*.sql
var MySQLFS embed.FS
