package redisstore_test

import (
	"encoding/json"
	"errors"
	"io"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/redis/go-redis/v9"

	"github.com/starquake/quizdocs/internal/logging"
	"github.com/starquake/quizdocs/internal/quiz"
	"github.com/starquake/quizdocs/internal/store/redisstore"
)

var ignoreQuizMeta = cmpopts.IgnoreFields(quiz.Quiz{}, "ID", "CreatedAt", "UpdatedAt")

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func ptr[T any](v T) *T { return &v }

func TestNew(t *testing.T) {
	t.Parallel()
	_, client := newClient(t)

	stores := redisstore.New(client, logging.NewLogger(io.Discard))
	if stores.Questions == nil || stores.Quizzes == nil || stores.Health == nil {
		t.Fatalf("stores not fully initialized: %+v", stores)
	}
	if err := stores.Health.Ping(t.Context()); err != nil {
		t.Errorf("unexpected ping error: %v", err)
	}
}

func TestQuestionStore(t *testing.T) {
	t.Parallel()
	_, client := newClient(t)
	s := redisstore.NewQuestionStore(client, logging.NewLogger(io.Discard))

	qs := []*quiz.Question{
		{Text: "What is the capital of Peru?", Fields: map[string]json.RawMessage{"answer": json.RawMessage(`"Lima"`)}},
		{Text: "3 * 3?"},
	}
	if err := s.CreateQuestions(t.Context(), qs); err != nil {
		t.Fatalf("error creating questions: %v", err)
	}
	if qs[0].ID == "" || qs[1].ID == "" || qs[0].ID == qs[1].ID {
		t.Fatalf("unexpected ids %q, %q", qs[0].ID, qs[1].ID)
	}

	got, err := s.ListQuestions(t.Context())
	if err != nil {
		t.Fatalf("error listing questions: %v", err)
	}
	if diff := cmp.Diff(qs, got); diff != "" {
		t.Errorf("ListQuestions mismatch (-want +got):\n%s", diff)
	}

	found, err := s.FindQuestions(t.Context(), []string{"dangling", qs[1].ID})
	if err != nil {
		t.Fatalf("error finding questions: %v", err)
	}
	if diff := cmp.Diff([]*quiz.Question{qs[1]}, found); diff != "" {
		t.Errorf("FindQuestions mismatch (-want +got):\n%s", diff)
	}

	if err = s.DeleteQuestion(t.Context(), qs[0].ID); err != nil {
		t.Fatalf("error deleting question: %v", err)
	}
	if err = s.DeleteQuestion(t.Context(), qs[0].ID); err != nil {
		t.Errorf("deleting an absent question: got %v, want nil", err)
	}
	if _, err = s.GetQuestion(t.Context(), qs[0].ID); !errors.Is(err, quiz.ErrQuestionNotFound) {
		t.Errorf("got %v, want %v", err, quiz.ErrQuestionNotFound)
	}

	got, err = s.ListQuestions(t.Context())
	if err != nil {
		t.Fatalf("error listing questions: %v", err)
	}
	if diff := cmp.Diff([]*quiz.Question{qs[1]}, got); diff != "" {
		t.Errorf("ListQuestions after delete mismatch (-want +got):\n%s", diff)
	}
}

func TestQuizStore(t *testing.T) {
	t.Parallel()
	_, client := newClient(t)
	s := redisstore.NewQuizStore(client, logging.NewLogger(io.Discard))

	empty, err := s.ListQuizzes(t.Context())
	if err != nil {
		t.Fatalf("error listing quizzes: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("got %d quizzes, want 0", len(empty))
	}

	qz := &quiz.Quiz{Title: "Capitals", Description: "Geography"}
	if err = s.CreateQuiz(t.Context(), qz); err != nil {
		t.Fatalf("error creating quiz: %v", err)
	}
	if qz.ID == "" || qz.CreatedAt.IsZero() {
		t.Fatalf("quiz not initialized: %+v", qz)
	}

	got, err := s.GetQuiz(t.Context(), qz.ID)
	if err != nil {
		t.Fatalf("error getting quiz: %v", err)
	}
	if diff := cmp.Diff(qz, got); diff != "" {
		t.Errorf("GetQuiz mismatch (-want +got):\n%s", diff)
	}

	if err = s.AppendQuestionIDs(t.Context(), qz.ID, "a", "b", "a"); err != nil {
		t.Fatalf("error appending: %v", err)
	}
	if err = s.RemoveQuestionID(t.Context(), qz.ID, "a"); err != nil {
		t.Fatalf("error removing: %v", err)
	}
	if err = s.RemoveQuestionID(t.Context(), qz.ID, "zzz"); err != nil {
		t.Fatalf("error removing absent id: %v", err)
	}

	updated, err := s.UpdateQuiz(t.Context(), qz.ID, &quiz.QuizPatch{Title: ptr("World Capitals")})
	if err != nil {
		t.Fatalf("error updating quiz: %v", err)
	}
	want := &quiz.Quiz{Title: "World Capitals", Description: "Geography", QuestionIDs: []string{"b"}}
	if diff := cmp.Diff(want, updated, ignoreQuizMeta); diff != "" {
		t.Errorf("UpdateQuiz mismatch (-want +got):\n%s", diff)
	}

	list, err := s.ListQuizzes(t.Context())
	if err != nil {
		t.Fatalf("error listing quizzes: %v", err)
	}
	if diff := cmp.Diff([]*quiz.Quiz{updated}, list); diff != "" {
		t.Errorf("ListQuizzes mismatch (-want +got):\n%s", diff)
	}

	if err = s.DeleteQuiz(t.Context(), qz.ID); err != nil {
		t.Fatalf("error deleting quiz: %v", err)
	}
	if err = s.DeleteQuiz(t.Context(), qz.ID); !errors.Is(err, quiz.ErrQuizNotFound) {
		t.Errorf("second delete: got %v, want %v", err, quiz.ErrQuizNotFound)
	}
}

func TestQuizStore_NotFound(t *testing.T) {
	t.Parallel()
	_, client := newClient(t)
	s := redisstore.NewQuizStore(client, logging.NewLogger(io.Discard))

	tests := []struct {
		name string
		fn   func() error
	}{
		{"get", func() error { _, err := s.GetQuiz(t.Context(), "missing"); return err }},
		{"update", func() error {
			_, err := s.UpdateQuiz(t.Context(), "missing", &quiz.QuizPatch{Title: ptr("x")})

			return err
		}},
		{"append", func() error { return s.AppendQuestionIDs(t.Context(), "missing", "a") }},
		{"remove", func() error { return s.RemoveQuestionID(t.Context(), "missing", "a") }},
		{"delete", func() error { return s.DeleteQuiz(t.Context(), "missing") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, quiz.ErrQuizNotFound) {
				t.Errorf("got %v, want %v", err, quiz.ErrQuizNotFound)
			}
		})
	}
}

func TestStores_ServerError(t *testing.T) {
	t.Parallel()
	mr, client := newClient(t)
	stores := redisstore.New(client, logging.NewLogger(io.Discard))

	mr.SetError("ERR server unavailable")

	if _, err := stores.Questions.ListQuestions(t.Context()); err == nil {
		t.Error("ListQuestions: expected error, got nil")
	}
	if err := stores.Questions.CreateQuestions(t.Context(), []*quiz.Question{{Text: "x"}}); err == nil {
		t.Error("CreateQuestions: expected error, got nil")
	}
	if _, err := stores.Quizzes.GetQuiz(t.Context(), "any"); err == nil || errors.Is(err, quiz.ErrQuizNotFound) {
		t.Errorf("GetQuiz: got %v, want a store fault", err)
	}
	if err := stores.Health.Ping(t.Context()); err == nil {
		t.Error("Ping: expected error, got nil")
	}
}
