// Package dbtest provides helpers for testing database code.
package dbtest

import (
	"database/sql"
	"fmt"
	"os"
	"testing"

	"github.com/starquake/quizdocs/internal/db"
)

// SetupTestDB creates a temporary SQLite database for testing and returns its DSN and a cleanup function.
func SetupTestDB(t *testing.T) (string, func()) {
	t.Helper()

	tmpDB, err := os.CreateTemp(t.TempDir(), "quizdocs-test-*.sqlite")
	if err != nil {
		t.Fatalf("failed to create temp db: %v", err)
	}
	tmpDBPath := tmpDB.Name()
	err = tmpDB.Close()
	if err != nil {
		t.Fatalf("failed to close temp db: %v", err)
	}

	cleanup := func() {
		for _, suffix := range []string{"", "-shm", "-wal"} {
			if err := os.Remove(tmpDBPath + suffix); err != nil && !os.IsNotExist(err) {
				t.Errorf("failed to remove temp db: %s", err)
			}
		}
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		tmpDBPath,
	)

	return dsn, cleanup
}

// Open opens an in-memory database connection with migrations applied.
func Open(t *testing.T) *sql.DB {
	t.Helper()

	conn := OpenUnmigrated(t)

	if _, err := db.Migrate(t.Context(), conn); err != nil {
		t.Fatalf("error running migrations: %v", err)
	}

	return conn
}

// OpenUnmigrated opens an in-memory database connection without migrations applied.
// The pool is limited to one connection so every query sees the same in-memory database.
func OpenUnmigrated(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := sql.Open(db.DriverName, ":memory:")
	if err != nil {
		t.Fatalf("error opening SQLite database: %v", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)
	t.Cleanup(func() {
		_ = conn.Close()
	})

	return conn
}
