// Package db provides database access for the SQLite document store.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	// Registers the "sqlite" driver.
	_ "modernc.org/sqlite"

	"github.com/starquake/quizdocs/internal/migrations"
)

// DriverName is the database/sql driver used for the document store.
const DriverName = "sqlite"

// Open opens a database connection and verifies it is reachable.
func Open(
	ctx context.Context,
	uri string,
	dbMaxOpenConns, dbMaxIdleConns int,
	dbConnMaxLifetime time.Duration,
) (*sql.DB, error) {
	conn, err := sql.Open(DriverName, uri)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	conn.SetMaxOpenConns(dbMaxOpenConns)
	conn.SetMaxIdleConns(dbMaxIdleConns)
	conn.SetConnMaxLifetime(dbConnMaxLifetime)

	if err = conn.PingContext(ctx); err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("error pinging database: %w", err)
	}

	return conn, nil
}

// Migrate applies all pending migrations and returns the resulting schema version.
func Migrate(ctx context.Context, conn *sql.DB) (int64, error) {
	provider, err := goose.NewProvider(goose.DialectSQLite3, conn, migrations.FS)
	if err != nil {
		return 0, fmt.Errorf("error creating migration provider: %w", err)
	}

	if _, err = provider.Up(ctx); err != nil {
		return 0, fmt.Errorf("error running migrations: %w", err)
	}

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("error reading schema version: %w", err)
	}

	return version, nil
}

// ExecTx is a helper to run queries within a transaction.
// The transaction is committed when fn returns nil and rolled back otherwise.
func ExecTx(ctx context.Context, conn *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w (rollback error: %w)", err, rbErr)
		}

		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}
