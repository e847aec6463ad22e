// Package redisstore provides document stores backed by Redis.
//
// Each document is a JSON string under its own key; a list per kind keeps insertion order:
//
//	quizdocs:question:{id}  question document
//	quizdocs:questions      question ids
//	quizdocs:quiz:{id}      quiz document
//	quizdocs:quizzes        quiz ids
package redisstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/starquake/quizdocs/internal/logging"
	"github.com/starquake/quizdocs/internal/store"
)

const (
	keyPrefix       = "quizdocs:"
	questionListKey = keyPrefix + "questions"
	quizListKey     = keyPrefix + "quizzes"
)

func questionKey(id string) string {
	return keyPrefix + "question:" + id
}

func quizKey(id string) string {
	return keyPrefix + "quiz:" + id
}

// New initializes a new store.Stores instance backed by client.
func New(client *redis.Client, logger *logging.Logger) *store.Stores {
	return &store.Stores{
		Questions: NewQuestionStore(client, logger),
		Quizzes:   NewQuizStore(client, logger),
		Health:    &pinger{client: client},
	}
}

type pinger struct {
	client *redis.Client
}

// Ping checks that the Redis server is reachable.
func (p *pinger) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}
