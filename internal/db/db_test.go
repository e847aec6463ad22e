package db_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/starquake/quizdocs/internal/db"
)

func openTemp(t *testing.T) *sql.DB {
	t.Helper()

	uri := "file:" + filepath.Join(t.TempDir(), "quizdocs-test.sqlite")
	conn, err := db.Open(t.Context(), uri, 1, 1, time.Minute)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	t.Cleanup(func() {
		if err := conn.Close(); err != nil {
			t.Errorf("failed to close database: %v", err)
		}
	})

	return conn
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		conn := openTemp(t)

		if err := conn.PingContext(t.Context()); err != nil {
			t.Errorf("failed to ping database: %v", err)
		}
		if got, want := conn.Stats().MaxOpenConnections, 1; got != want {
			t.Errorf("MaxOpenConnections = %d, want %d", got, want)
		}
	})

	t.Run("context canceled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		uri := "file:" + filepath.Join(t.TempDir(), "canceled.sqlite")
		conn, err := db.Open(ctx, uri, 1, 1, time.Minute)
		if err == nil {
			_ = conn.Close()
			t.Fatal("expected error due to canceled context, got nil")
		}
		if !errors.Is(err, context.Canceled) {
			t.Errorf("got %v, want wrapped context.Canceled", err)
		}
	})
}

func TestMigrate(t *testing.T) {
	t.Parallel()

	conn := openTemp(t)

	version, err := db.Migrate(t.Context(), conn)
	if err != nil {
		t.Fatalf("error running migrations: %v", err)
	}
	if got, want := version, int64(1); got != want {
		t.Errorf("version = %d, want %d", got, want)
	}

	for _, table := range []string{"questions", "quizzes"} {
		var name string
		row := conn.QueryRowContext(t.Context(), "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table)
		if err := row.Scan(&name); err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}

	version, err = db.Migrate(t.Context(), conn)
	if err != nil {
		t.Fatalf("error running migrations twice: %v", err)
	}
	if got, want := version, int64(1); got != want {
		t.Errorf("version after second run = %d, want %d", got, want)
	}
}

func TestExecTx(t *testing.T) {
	t.Parallel()

	conn := openTemp(t)
	if _, err := db.Migrate(t.Context(), conn); err != nil {
		t.Fatalf("error running migrations: %v", err)
	}

	insert := func(id string) func(*sql.Tx) error {
		return func(tx *sql.Tx) error {
			_, err := tx.ExecContext(t.Context(), "INSERT INTO questions (id, doc) VALUES (?, '{}')", id)

			return err
		}
	}

	count := func() int {
		var n int
		if err := conn.QueryRowContext(t.Context(), "SELECT COUNT(*) FROM questions").Scan(&n); err != nil {
			t.Fatalf("error counting rows: %v", err)
		}

		return n
	}

	t.Run("commit", func(t *testing.T) {
		if err := db.ExecTx(t.Context(), conn, insert("a")); err != nil {
			t.Fatalf("ExecTx error: %v", err)
		}
		if got, want := count(), 1; got != want {
			t.Errorf("rows = %d, want %d", got, want)
		}
	})

	t.Run("rollback", func(t *testing.T) {
		errBoom := errors.New("boom")
		err := db.ExecTx(t.Context(), conn, func(tx *sql.Tx) error {
			if err := insert("b")(tx); err != nil {
				return err
			}

			return errBoom
		})
		if !errors.Is(err, errBoom) {
			t.Fatalf("got %v, want %v", err, errBoom)
		}
		if got, want := count(), 1; got != want {
			t.Errorf("rows = %d, want %d", got, want)
		}
	})
}
