package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/xid"

	"github.com/starquake/quizdocs/internal/db"
	"github.com/starquake/quizdocs/internal/logging"
	"github.com/starquake/quizdocs/internal/quiz"
)

const quizColumns = "id, title, description, question_ids, created_at, updated_at"

// QuizStore stores quiz documents in the quizzes table. The question references are kept as a JSON array.
type QuizStore struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewQuizStore initializes a new QuizStore with the provided database connection and returns it.
func NewQuizStore(conn *sql.DB, logger *logging.Logger) *QuizStore {
	return &QuizStore{db: conn, logger: logger}
}

// Ping checks the connection to the database, ensuring it's reachable and responsive.
func (s *QuizStore) Ping(ctx context.Context) error {
	err := s.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// ListQuizzes returns all quizzes in insertion order.
func (s *QuizStore) ListQuizzes(ctx context.Context) ([]*quiz.Quiz, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+quizColumns+" FROM quizzes ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to list quizzes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	quizzes := make([]*quiz.Quiz, 0)
	for rows.Next() {
		qz, scanErr := scanQuiz(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		quizzes = append(quizzes, qz)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate quizzes: %w", err)
	}

	return quizzes, nil
}

// GetQuiz returns a quiz by its ID.
func (s *QuizStore) GetQuiz(ctx context.Context, id string) (*quiz.Quiz, error) {
	return getQuiz(ctx, s.db, id)
}

// CreateQuiz stores a new quiz and assigns its ID and timestamps.
func (s *QuizStore) CreateQuiz(ctx context.Context, qz *quiz.Quiz) error {
	ids := qz.QuestionIDs
	if ids == nil {
		ids = []string{}
	}
	questionIDs, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode question ids: %w", err)
	}

	id := xid.New().String()
	createdAt := now()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO quizzes ("+quizColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		id, qz.Title, qz.Description, string(questionIDs), Timestamp(createdAt), Timestamp(createdAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create quiz: %w", err)
	}

	qz.ID = id
	qz.QuestionIDs = ids
	qz.CreatedAt = createdAt
	qz.UpdatedAt = createdAt

	return nil
}

// UpdateQuiz applies patch to the quiz using a transaction and returns the updated quiz.
func (s *QuizStore) UpdateQuiz(ctx context.Context, id string, patch *quiz.QuizPatch) (*quiz.Quiz, error) {
	var updated *quiz.Quiz
	err := s.modify(ctx, id, func(qz *quiz.Quiz) {
		patch.Apply(qz)
		updated = qz
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// DeleteQuiz removes a quiz. The questions it references are kept.
func (s *QuizStore) DeleteQuiz(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM quizzes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete quiz: %w", err)
	}

	if mustRowsAffected(res) == 0 {
		return quiz.ErrQuizNotFound
	}

	return nil
}

// AppendQuestionIDs appends ids to the quiz's question list in a single transaction.
func (s *QuizStore) AppendQuestionIDs(ctx context.Context, quizID string, ids ...string) error {
	return s.modify(ctx, quizID, func(qz *quiz.Quiz) {
		qz.QuestionIDs = append(qz.QuestionIDs, ids...)
	})
}

// RemoveQuestionID removes every occurrence of questionID from the quiz's question list.
func (s *QuizStore) RemoveQuestionID(ctx context.Context, quizID, questionID string) error {
	return s.modify(ctx, quizID, func(qz *quiz.Quiz) {
		qz.QuestionIDs = slices.DeleteFunc(qz.QuestionIDs, func(id string) bool { return id == questionID })
	})
}

// modify reads the quiz, lets fn change it and writes it back within one transaction.
func (s *QuizStore) modify(ctx context.Context, id string, fn func(qz *quiz.Quiz)) error {
	err := db.ExecTx(ctx, s.db, func(tx *sql.Tx) error {
		qz, err := getQuiz(ctx, tx, id)
		if err != nil {
			return err
		}

		fn(qz)
		if qz.QuestionIDs == nil {
			qz.QuestionIDs = []string{}
		}
		qz.UpdatedAt = now()

		questionIDs, err := json.Marshal(qz.QuestionIDs)
		if err != nil {
			return fmt.Errorf("failed to encode question ids: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			"UPDATE quizzes SET title = ?, description = ?, question_ids = ?, updated_at = ? WHERE id = ?",
			qz.Title, qz.Description, string(questionIDs), Timestamp(qz.UpdatedAt), id,
		)
		if err != nil {
			return fmt.Errorf("failed to update quiz: %w", err)
		}
		if mustRowsAffected(res) == 0 {
			return quiz.ErrQuizNotFound
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, quiz.ErrQuizNotFound) {
			return err
		}

		return fmt.Errorf("failed to modify quiz %s: %w", id, err)
	}

	s.logger.Debug(ctx, "quiz modified", logging.String("quizID", id))

	return nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getQuiz(ctx context.Context, q queryRower, id string) (*quiz.Quiz, error) {
	row := q.QueryRowContext(ctx, "SELECT "+quizColumns+" FROM quizzes WHERE id = ?", id)
	qz, err := scanQuiz(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, quiz.ErrQuizNotFound
		}

		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	return qz, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQuiz(row scanner) (*quiz.Quiz, error) {
	var (
		qz          quiz.Quiz
		questionIDs string
		createdAt   Timestamp
		updatedAt   Timestamp
	)
	err := row.Scan(&qz.ID, &qz.Title, &qz.Description, &questionIDs, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan quiz: %w", err)
	}

	if err = json.Unmarshal([]byte(questionIDs), &qz.QuestionIDs); err != nil {
		return nil, fmt.Errorf("failed to decode question ids of quiz %s: %w", qz.ID, err)
	}
	if qz.QuestionIDs == nil {
		qz.QuestionIDs = []string{}
	}
	qz.CreatedAt = time.Time(createdAt)
	qz.UpdatedAt = time.Time(updatedAt)

	return &qz, nil
}
