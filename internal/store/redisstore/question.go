package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/xid"

	"github.com/starquake/quizdocs/internal/logging"
	"github.com/starquake/quizdocs/internal/quiz"
)

// QuestionStore stores question documents in Redis.
type QuestionStore struct {
	client *redis.Client
	logger *logging.Logger
}

// NewQuestionStore initializes a new QuestionStore with the provided client and returns it.
func NewQuestionStore(client *redis.Client, logger *logging.Logger) *QuestionStore {
	return &QuestionStore{client: client, logger: logger}
}

// ListQuestions returns all questions in insertion order.
func (s *QuestionStore) ListQuestions(ctx context.Context) ([]*quiz.Question, error) {
	ids, err := s.client.LRange(ctx, questionListKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list question ids: %w", err)
	}

	return s.FindQuestions(ctx, ids)
}

// GetQuestion returns a question by its ID.
func (s *QuestionStore) GetQuestion(ctx context.Context, id string) (*quiz.Question, error) {
	doc, err := s.client.Get(ctx, questionKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, quiz.ErrQuestionNotFound
		}

		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	return decodeQuestion(id, doc)
}

// FindQuestions returns the questions whose IDs are in ids, in the order of ids. Unknown IDs are ignored.
func (s *QuestionStore) FindQuestions(ctx context.Context, ids []string) ([]*quiz.Question, error) {
	questions := make([]*quiz.Question, 0, len(ids))
	if len(ids) == 0 {
		return questions, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, questionKey(id))
	}

	docs, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to find questions: %w", err)
	}

	for i, v := range docs {
		doc, ok := v.(string)
		if !ok {
			continue
		}

		q, decodeErr := decodeQuestion(ids[i], doc)
		if decodeErr != nil {
			return nil, decodeErr
		}
		questions = append(questions, q)
	}

	return questions, nil
}

// CreateQuestions stores all questions in one MULTI/EXEC block and assigns their IDs.
func (s *QuestionStore) CreateQuestions(ctx context.Context, qs []*quiz.Question) error {
	if len(qs) == 0 {
		return nil
	}

	ids := make([]string, len(qs))
	docs := make([]string, len(qs))
	for i, q := range qs {
		ids[i] = xid.New().String()

		b, err := json.Marshal(&quiz.Question{ID: ids[i], Text: q.Text, Fields: q.Fields})
		if err != nil {
			return fmt.Errorf("failed to encode question: %w", err)
		}
		docs[i] = string(b)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			pipe.Set(ctx, questionKey(id), docs[i], 0)
		}
		pipe.RPush(ctx, questionListKey, toAny(ids)...)

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
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, questionKey(id))
		pipe.LRem(ctx, questionListKey, 0, id)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}

	return nil
}

func decodeQuestion(id, doc string) (*quiz.Question, error) {
	q := &quiz.Question{}
	if err := json.Unmarshal([]byte(doc), q); err != nil {
		return nil, fmt.Errorf("failed to decode question %s: %w", id, err)
	}
	q.ID = id

	return q, nil
}

func toAny(ss []string) []any {
	out := make([]any, 0, len(ss))
	for _, s := range ss {
		out = append(out, s)
	}

	return out
}
