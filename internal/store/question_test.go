package store_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/starquake/quizdocs/internal/dbtest"
	"github.com/starquake/quizdocs/internal/logging"
	"github.com/starquake/quizdocs/internal/quiz"
	. "github.com/starquake/quizdocs/internal/store"
)

var lessQuestions = func(a, b *quiz.Question) bool { return a.Text < b.Text }

func newQuestionStore(t *testing.T) *QuestionStore {
	t.Helper()

	return NewQuestionStore(dbtest.Open(t), logging.NewLogger(io.Discard))
}

func newTestQuestions() []*quiz.Question {
	return []*quiz.Question{
		{
			Text: "What is the capital of France?",
			Fields: map[string]json.RawMessage{
				"answer":  json.RawMessage(`"Paris"`),
				"options": json.RawMessage(`["Paris","Lyon"]`),
			},
		},
		{Text: "2 + 2?", Fields: map[string]json.RawMessage{"answer": json.RawMessage(`4`)}},
		{Text: "Name a colour"},
	}
}

func TestQuestionStore_CreateQuestions(t *testing.T) {
	t.Parallel()

	t.Run("assigns ids and persists documents", func(t *testing.T) {
		t.Parallel()
		s := newQuestionStore(t)

		qs := newTestQuestions()
		if err := s.CreateQuestions(t.Context(), qs); err != nil {
			t.Fatalf("error creating questions: %v", err)
		}

		seen := make(map[string]bool)
		for _, q := range qs {
			if q.ID == "" {
				t.Fatalf("question %q has no id", q.Text)
			}
			if seen[q.ID] {
				t.Fatalf("duplicate id %s", q.ID)
			}
			seen[q.ID] = true
		}

		got, err := s.ListQuestions(t.Context())
		if err != nil {
			t.Fatalf("error listing questions: %v", err)
		}
		if diff := cmp.Diff(newTestQuestions(), got, cmpopts.IgnoreFields(quiz.Question{}, "ID")); diff != "" {
			t.Errorf("ListQuestions mismatch (-want +got):\n%s", diff)
		}
		for i := range got {
			if got[i].ID != qs[i].ID {
				t.Errorf("ListQuestions()[%d].ID = %s, want %s", i, got[i].ID, qs[i].ID)
			}
		}
	})

	t.Run("empty batch", func(t *testing.T) {
		t.Parallel()
		s := newQuestionStore(t)

		if err := s.CreateQuestions(t.Context(), nil); err != nil {
			t.Fatalf("error creating empty batch: %v", err)
		}
		got, err := s.ListQuestions(t.Context())
		if err != nil {
			t.Fatalf("error listing questions: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("got %d questions, want 0", len(got))
		}
	})
}

func TestQuestionStore_GetQuestion(t *testing.T) {
	t.Parallel()
	s := newQuestionStore(t)

	qs := newTestQuestions()
	if err := s.CreateQuestions(t.Context(), qs); err != nil {
		t.Fatalf("error creating questions: %v", err)
	}

	got, err := s.GetQuestion(t.Context(), qs[0].ID)
	if err != nil {
		t.Fatalf("error getting question: %v", err)
	}
	if diff := cmp.Diff(qs[0], got); diff != "" {
		t.Errorf("GetQuestion mismatch (-want +got):\n%s", diff)
	}

	_, err = s.GetQuestion(t.Context(), "missing")
	if !errors.Is(err, quiz.ErrQuestionNotFound) {
		t.Errorf("got %v, want %v", err, quiz.ErrQuestionNotFound)
	}
}

func TestQuestionStore_FindQuestions(t *testing.T) {
	t.Parallel()

	t.Run("returns existing subset", func(t *testing.T) {
		t.Parallel()
		s := newQuestionStore(t)

		qs := newTestQuestions()
		if err := s.CreateQuestions(t.Context(), qs); err != nil {
			t.Fatalf("error creating questions: %v", err)
		}

		got, err := s.FindQuestions(t.Context(), []string{qs[2].ID, "dangling", qs[0].ID})
		if err != nil {
			t.Fatalf("error finding questions: %v", err)
		}
		want := []*quiz.Question{qs[0], qs[2]}
		if diff := cmp.Diff(want, got, cmpopts.SortSlices(lessQuestions)); diff != "" {
			t.Errorf("FindQuestions mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("more ids than one chunk", func(t *testing.T) {
		t.Parallel()
		s := newQuestionStore(t)

		qs := make([]*quiz.Question, 0, 1100)
		for i := range 1100 {
			qs = append(qs, &quiz.Question{Text: fmt.Sprintf("Question %04d", i)})
		}
		if err := s.CreateQuestions(t.Context(), qs); err != nil {
			t.Fatalf("error creating questions: %v", err)
		}

		ids := make([]string, 0, len(qs))
		for _, q := range qs {
			ids = append(ids, q.ID)
		}

		got, err := s.FindQuestions(t.Context(), ids)
		if err != nil {
			t.Fatalf("error finding questions: %v", err)
		}
		if got, want := len(got), len(qs); got != want {
			t.Errorf("found %d questions, want %d", got, want)
		}
	})
}

func TestQuestionStore_DeleteQuestion(t *testing.T) {
	t.Parallel()
	s := newQuestionStore(t)

	qs := newTestQuestions()
	if err := s.CreateQuestions(t.Context(), qs); err != nil {
		t.Fatalf("error creating questions: %v", err)
	}

	if err := s.DeleteQuestion(t.Context(), qs[1].ID); err != nil {
		t.Fatalf("error deleting question: %v", err)
	}
	if _, err := s.GetQuestion(t.Context(), qs[1].ID); !errors.Is(err, quiz.ErrQuestionNotFound) {
		t.Errorf("got %v, want %v", err, quiz.ErrQuestionNotFound)
	}

	if err := s.DeleteQuestion(t.Context(), qs[1].ID); err != nil {
		t.Errorf("deleting an absent question: got %v, want nil", err)
	}

	got, err := s.ListQuestions(t.Context())
	if err != nil {
		t.Fatalf("error listing questions: %v", err)
	}
	if got, want := len(got), 2; got != want {
		t.Errorf("got %d questions, want %d", got, want)
	}
}
