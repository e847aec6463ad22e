// Package store provides the SQLite-backed document stores.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/starquake/quizdocs/internal/logging"
	"github.com/starquake/quizdocs/internal/quiz"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Stores is a collection of stores for the application. Both stores share one connection.
type Stores struct {
	Questions quiz.QuestionStore
	Quizzes   quiz.QuizStore
	Health    Pinger
}

// New initializes a new Stores instance with the provided database connection.
func New(conn *sql.DB, logger *logging.Logger) *Stores {
	quizzes := NewQuizStore(conn, logger)

	return &Stores{
		Questions: NewQuestionStore(conn, logger),
		Quizzes:   quizzes,
		Health:    quizzes,
	}
}

// ErrConvertingValueIntoTimestamp is returned when a value cannot be converted into a Timestamp.
var ErrConvertingValueIntoTimestamp = errors.New("cannot convert value into Timestamp")

// Timestamp is a timestamp with millisecond precision. Used for SQLite type conversion.
//
//nolint:recvcheck // Mixing pointer receivers and value receivers is needed here because we are implementing sql.Scanner and driver.Valuer.
type Timestamp time.Time

// Scan converts a value to a Timestamp.
// Currently, only int64 values are supported.
func (t *Timestamp) Scan(value any) error {
	if value == nil {
		*t = Timestamp(time.Time{})

		return nil
	}

	ms, ok := value.(int64)
	if !ok {
		return fmt.Errorf("%w: %T", ErrConvertingValueIntoTimestamp, value)
	}

	*t = Timestamp(time.UnixMilli(ms).UTC())

	return nil
}

// Value converts a Timestamp to a value suitable for database storage.
func (t Timestamp) Value() (driver.Value, error) {
	return time.Time(t).UnixMilli(), nil
}

// now returns the current time at the precision Timestamp stores.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// mustRowsAffected is a helper to panic if the driver cannot report affected rows.
func mustRowsAffected(res sql.Result) int64 {
	rows, err := res.RowsAffected()
	if err != nil {
		panic(err)
	}

	return rows
}
