package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/xid"

	"github.com/starquake/quizdocs/internal/db"
	"github.com/starquake/quizdocs/internal/logging"
	"github.com/starquake/quizdocs/internal/quiz"
)

// findChunkSize keeps FindQuestions below SQLite's bound parameter limit.
const findChunkSize = 500

// QuestionStore stores question documents as JSON in the questions table.
type QuestionStore struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewQuestionStore initializes a new QuestionStore with the provided database connection and returns it.
func NewQuestionStore(conn *sql.DB, logger *logging.Logger) *QuestionStore {
	return &QuestionStore{db: conn, logger: logger}
}

// ListQuestions returns all questions in insertion order.
func (s *QuestionStore) ListQuestions(ctx context.Context) ([]*quiz.Question, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, doc FROM questions ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}

	return scanQuestions(rows)
}

// GetQuestion returns a question by its ID.
func (s *QuestionStore) GetQuestion(ctx context.Context, id string) (*quiz.Question, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, "SELECT doc FROM questions WHERE id = ?", id).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, quiz.ErrQuestionNotFound
		}

		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	return decodeQuestion(id, doc)
}

// FindQuestions returns the questions whose IDs are in ids. Unknown IDs are ignored.
func (s *QuestionStore) FindQuestions(ctx context.Context, ids []string) ([]*quiz.Question, error) {
	questions := make([]*quiz.Question, 0, len(ids))
	for start := 0; start < len(ids); start += findChunkSize {
		chunk := ids[start:min(start+findChunkSize, len(ids))]

		args := make([]any, 0, len(chunk))
		for _, id := range chunk {
			args = append(args, id)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")

		//nolint:gosec // Only placeholders are interpolated.
		rows, err := s.db.QueryContext(ctx, "SELECT id, doc FROM questions WHERE id IN ("+placeholders+")", args...)
		if err != nil {
			return nil, fmt.Errorf("failed to find questions: %w", err)
		}

		found, err := scanQuestions(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, found...)
	}

	return questions, nil
}

// CreateQuestions stores all questions in one transaction and assigns their IDs.
// On failure no question is stored and the IDs are left untouched.
func (s *QuestionStore) CreateQuestions(ctx context.Context, qs []*quiz.Question) error {
	ids := make([]string, len(qs))
	err := db.ExecTx(ctx, s.db, func(tx *sql.Tx) error {
		for i, q := range qs {
			ids[i] = xid.New().String()

			doc, err := encodeQuestion(ids[i], q)
			if err != nil {
				return err
			}

			if _, err = tx.ExecContext(ctx, "INSERT INTO questions (id, doc) VALUES (?, ?)", ids[i], doc); err != nil {
				return fmt.Errorf("failed to insert question: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create questions: %w", err)
	}

	for i, q := range qs {
		q.ID = ids[i]
	}
	s.logger.Debug(ctx, "questions created", logging.Int("count", len(qs)))

	return nil
}

// DeleteQuestion removes a question. Deleting an unknown ID succeeds.
func (s *QuestionStore) DeleteQuestion(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM questions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}

	if mustRowsAffected(res) == 0 {
		s.logger.Debug(ctx, "question already absent", logging.String("questionID", id))
	}

	return nil
}

func encodeQuestion(id string, q *quiz.Question) (string, error) {
	stored := &quiz.Question{ID: id, Text: q.Text, Fields: q.Fields}
	b, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("failed to encode question: %w", err)
	}

	return string(b), nil
}

func decodeQuestion(id, doc string) (*quiz.Question, error) {
	q := &quiz.Question{}
	if err := json.Unmarshal([]byte(doc), q); err != nil {
		return nil, fmt.Errorf("failed to decode question %s: %w", id, err)
	}
	q.ID = id

	return q, nil
}

func scanQuestions(rows *sql.Rows) ([]*quiz.Question, error) {
	defer func() { _ = rows.Close() }()

	var questions []*quiz.Question
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}

		q, err := decodeQuestion(id, doc)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate questions: %w", err)
	}

	if questions == nil {
		questions = []*quiz.Question{}
	}

	return questions, nil
}
