package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/xid"

	"github.com/starquake/quizdocs/internal/logging"
	"github.com/starquake/quizdocs/internal/quiz"
)

// quizDoc is the stored form of a quiz. Timestamps are Unix milliseconds.
type quizDoc struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	QuestionIDs []string `json:"questions"`
	CreatedAt   int64    `json:"createdAt"`
	UpdatedAt   int64    `json:"updatedAt"`
}

func toDoc(qz *quiz.Quiz) quizDoc {
	ids := qz.QuestionIDs
	if ids == nil {
		ids = []string{}
	}

	return quizDoc{
		ID:          qz.ID,
		Title:       qz.Title,
		Description: qz.Description,
		QuestionIDs: ids,
		CreatedAt:   qz.CreatedAt.UnixMilli(),
		UpdatedAt:   qz.UpdatedAt.UnixMilli(),
	}
}

func (d quizDoc) toQuiz() *quiz.Quiz {
	ids := d.QuestionIDs
	if ids == nil {
		ids = []string{}
	}

	return &quiz.Quiz{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		QuestionIDs: ids,
		CreatedAt:   time.UnixMilli(d.CreatedAt).UTC(),
		UpdatedAt:   time.UnixMilli(d.UpdatedAt).UTC(),
	}
}

// QuizStore stores quiz documents in Redis. Changes to an existing quiz use WATCH so a concurrent writer
// aborts the transaction instead of being overwritten silently.
type QuizStore struct {
	client *redis.Client
	logger *logging.Logger
}

// NewQuizStore initializes a new QuizStore with the provided client and returns it.
func NewQuizStore(client *redis.Client, logger *logging.Logger) *QuizStore {
	return &QuizStore{client: client, logger: logger}
}

// ListQuizzes returns all quizzes in insertion order.
func (s *QuizStore) ListQuizzes(ctx context.Context) ([]*quiz.Quiz, error) {
	ids, err := s.client.LRange(ctx, quizListKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list quiz ids: %w", err)
	}

	quizzes := make([]*quiz.Quiz, 0, len(ids))
	if len(ids) == 0 {
		return quizzes, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, quizKey(id))
	}
	docs, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list quizzes: %w", err)
	}

	for i, v := range docs {
		doc, ok := v.(string)
		if !ok {
			continue
		}

		qz, decodeErr := decodeQuiz(ids[i], doc)
		if decodeErr != nil {
			return nil, decodeErr
		}
		quizzes = append(quizzes, qz)
	}

	return quizzes, nil
}

// GetQuiz returns a quiz by its ID.
func (s *QuizStore) GetQuiz(ctx context.Context, id string) (*quiz.Quiz, error) {
	return getQuiz(ctx, s.client, id)
}

// CreateQuiz stores a new quiz and assigns its ID and timestamps.
func (s *QuizStore) CreateQuiz(ctx context.Context, qz *quiz.Quiz) error {
	created := *qz
	created.ID = xid.New().String()
	created.CreatedAt = now()
	created.UpdatedAt = created.CreatedAt
	if created.QuestionIDs == nil {
		created.QuestionIDs = []string{}
	}

	b, err := json.Marshal(toDoc(&created))
	if err != nil {
		return fmt.Errorf("failed to encode quiz: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, quizKey(created.ID), string(b), 0)
		pipe.RPush(ctx, quizListKey, created.ID)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create quiz: %w", err)
	}

	*qz = created

	return nil
}

// UpdateQuiz applies patch to the quiz and returns the updated quiz.
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
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, quizKey(id))
		pipe.LRem(ctx, quizListKey, 0, id)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete quiz: %w", err)
	}

	if del.Val() == 0 {
		return quiz.ErrQuizNotFound
	}

	return nil
}

// AppendQuestionIDs appends ids to the quiz's question list.
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

// modify runs a read-modify-write of one quiz document under WATCH. A concurrent change to the document makes
// the write fail with redis.TxFailedErr; it is not retried.
func (s *QuizStore) modify(ctx context.Context, id string, fn func(qz *quiz.Quiz)) error {
	key := quizKey(id)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		qz, err := getQuiz(ctx, tx, id)
		if err != nil {
			return err
		}

		fn(qz)
		qz.UpdatedAt = now()

		b, err := json.Marshal(toDoc(qz))
		if err != nil {
			return fmt.Errorf("failed to encode quiz: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, string(b), 0)

			return nil
		})

		return err
	}, key)
	if err != nil {
		if errors.Is(err, quiz.ErrQuizNotFound) {
			return err
		}

		return fmt.Errorf("failed to modify quiz %s: %w", id, err)
	}

	s.logger.Debug(ctx, "quiz modified", logging.String("quizID", id))

	return nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getQuiz(ctx context.Context, c getter, id string) (*quiz.Quiz, error) {
	doc, err := c.Get(ctx, quizKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, quiz.ErrQuizNotFound
		}

		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	return decodeQuiz(id, doc)
}

func decodeQuiz(id, doc string) (*quiz.Quiz, error) {
	var d quizDoc
	if err := json.Unmarshal([]byte(doc), &d); err != nil {
		return nil, fmt.Errorf("failed to decode quiz %s: %w", id, err)
	}
	d.ID = id

	return d.toQuiz(), nil
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
