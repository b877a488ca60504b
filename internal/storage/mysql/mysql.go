// Package mysql reads the market warehouse (quotations, forecasts,
// market data, content) from MySQL, optionally through an SSH tunnel.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-sql-driver/mysql"

	"dairy-market-lab/internal/observability"
	"dairy-market-lab/internal/storage"
)

// Default connection values.
const (
	DefaultPort         = 3306
	DefaultCollation    = "utf8mb4_unicode_ci"
	DefaultMaxOpenConns = 10
	DefaultMaxIdleConns = 5
	DefaultConnLifetime = 5 * time.Minute
)

// Config holds MySQL connection settings.
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	Collation       string
	MultiStatements bool          // allow schema scripts in one Exec
	Tunnel          *TunnelConfig // nil connects directly
}

// DB wraps sql.DB for dependency injection.
type DB struct {
	*sql.DB
	tunnel *Tunnel
}

var dialerSeq atomic.Uint64

// NewDB opens a connection pool. When cfg.Tunnel is set, every connection is
// dialed through the SSH bastion.
func NewDB(ctx context.Context, cfg Config) (*DB, error) {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Collation == "" {
		cfg.Collation = DefaultCollation
	}

	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.DBName = cfg.Database
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.MultiStatements = cfg.MultiStatements
	mc.Collation = cfg.Collation

	var tunnel *Tunnel
	if cfg.Tunnel != nil {
		var err error
		tunnel, err = OpenTunnel(ctx, *cfg.Tunnel)
		if err != nil {
			return nil, err
		}

		// Each tunnel gets its own network name so pools do not share dialers.
		netName := fmt.Sprintf("ssh-tunnel-%d", dialerSeq.Add(1))
		mysql.RegisterDialContext(netName, tunnel.DialContext)
		mc.Net = netName
	}

	connector, err := mysql.NewConnector(mc)
	if err != nil {
		closeTunnel(tunnel)
		return nil, fmt.Errorf("mysql connector: %w", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnLifetime)

	// Verify connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		closeTunnel(tunnel)
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	return &DB{DB: db, tunnel: tunnel}, nil
}

// Close closes the pool and the tunnel, if any.
func (d *DB) Close() error {
	err := d.DB.Close()
	if d.tunnel != nil {
		if terr := d.tunnel.Close(); err == nil {
			err = terr
		}
	}
	return err
}

// ReportStats publishes pool statistics to the connection gauges.
func (d *DB) ReportStats() {
	s := d.Stats()
	observability.UpdateDBConnections("mysql", s.OpenConnections, s.InUse, s.Idle)
}

func closeTunnel(t *Tunnel) {
	if t != nil {
		t.Close()
	}
}

// observe records query latency and errors. A missing row is not an error.
func observe(operation string, start time.Time, err error) {
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, storage.ErrNotFound) {
		err = nil
	}
	observability.RecordDBQuery("mysql", operation, time.Since(start).Seconds(), err)
}

// isNotFoundError checks if error indicates no rows found.
func isNotFoundError(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
