// Package sqldb opens SQL record stores: PostgreSQL via lib/pq and SQLite via modernc.org/sqlite.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"  // registers "postgres"
	_ "modernc.org/sqlite" // registers "sqlite"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds SQL connection settings.
type Config struct {
	Driver       string
	DSN          string
	MaxOpenConns int
}

// DB is a database/sql handle tagged with its query dialect.
type DB struct {
	db      *sql.DB
	dialect string
}

// Open opens a connection pool. It does not wait for the server; use WaitForReady.
func Open(cfg Config) (*DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required")
	}

	var dialect string
	switch cfg.Driver {
	case DriverPostgres:
		dialect = "postgres"
	case DriverSQLite:
		dialect = "sqlite3"
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}

	conn, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.Driver == DriverSQLite {
		// SQLite allows one writer at a time.
		conn.SetMaxOpenConns(1)
	}

	return &DB{db: conn, dialect: dialect}, nil
}

// Wrap adapts an existing handle (tests, sqlmock).
func Wrap(conn *sql.DB, dialect string) *DB {
	return &DB{db: conn, dialect: dialect}
}

// SQL returns the underlying handle.
func (d *DB) SQL() *sql.DB { return d.db }

// Dialect returns the goqu dialect name ("postgres" or "sqlite3").
func (d *DB) Dialect() string { return d.dialect }

// Ping checks connectivity.
func (d *DB) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close closes the pool.
func (d *DB) Close() {
	_ = d.db.Close()
}

// WaitForReady polls Ping until the database responds or timeout expires.
func (d *DB) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if err := d.Ping(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
