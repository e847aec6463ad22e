// Package quiz holds the quiz and question documents, the store contracts that persist them
// and the Service that keeps a quiz's question references consistent with the question records.
package quiz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

var (
	// ErrQuizNotFound is returned when a quiz is not found.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound is returned when a question is not found.
	ErrQuestionNotFound = errors.New("question not found")
)

// ValidationError reports missing or malformed fields, keyed by field name.
type ValidationError struct {
	Problems map[string]string
}

func (e *ValidationError) Error() string {
	keys := slices.Sorted(maps.Keys(e.Problems))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Problems[k])
	}

	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError returns a *ValidationError for problems, or nil if there are none.
func NewValidationError(problems map[string]string) error {
	if len(problems) == 0 {
		return nil
	}

	return &ValidationError{Problems: problems}
}

// Question is a standalone question document. Apart from ID and Text its payload is opaque.
type Question struct {
	ID   string
	Text string
	// Fields holds every other top-level field of the document, verbatim.
	Fields map[string]json.RawMessage
}

// Valid checks if the question is valid.
func (q *Question) Valid(_ context.Context) map[string]string {
	problems := make(map[string]string)
	if strings.TrimSpace(q.Text) == "" {
		problems["text"] = "Text is required"
	}

	return problems
}

// MarshalJSON renders the question as one flat object: id, text and the opaque fields.
func (q *Question) MarshalJSON() ([]byte, error) {
	doc := make(map[string]json.RawMessage, len(q.Fields)+2)
	for k, v := range q.Fields {
		doc[k] = v
	}

	id, err := json.Marshal(q.ID)
	if err != nil {
		return nil, fmt.Errorf("error encoding question id: %w", err)
	}
	text, err := json.Marshal(q.Text)
	if err != nil {
		return nil, fmt.Errorf("error encoding question text: %w", err)
	}
	doc["id"] = id
	doc["text"] = text

	return json.Marshal(doc)
}

// UnmarshalJSON reads a question payload. Identity fields are dropped because ids are assigned by the store.
func (q *Question) UnmarshalJSON(data []byte) error {
	if !bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		return &ValidationError{Problems: map[string]string{"question": "Question must be a JSON object"}}
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("error decoding question: %w", err)
	}

	q.Text = ""
	if raw, ok := doc["text"]; ok {
		if err := json.Unmarshal(raw, &q.Text); err != nil {
			return &ValidationError{Problems: map[string]string{"text": "Text must be a string"}}
		}
	}

	delete(doc, "id")
	delete(doc, "_id")
	delete(doc, "text")
	if len(doc) == 0 {
		doc = nil
	}
	q.Fields = doc

	return nil
}

// Quiz is a quiz document. QuestionIDs references question documents by id, in order; duplicates are allowed and the
// ids are not required to exist.
type Quiz struct {
	ID          string
	Title       string
	Description string
	QuestionIDs []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Valid checks if the quiz is valid.
func (q *Quiz) Valid(_ context.Context) map[string]string {
	problems := make(map[string]string)
	if strings.TrimSpace(q.Title) == "" {
		problems["title"] = "Title is required"
	}
	if strings.TrimSpace(q.Description) == "" {
		problems["description"] = "Description is required"
	}
	if slices.Contains(q.QuestionIDs, "") {
		problems["questions"] = "Question ids must not be empty"
	}

	return problems
}

// QuizPatch is a partial update of a quiz. Nil fields are left unchanged.
type QuizPatch struct {
	Title       *string
	Description *string
	QuestionIDs *[]string
}

// Valid checks if the patch is valid.
func (p *QuizPatch) Valid(_ context.Context) map[string]string {
	problems := make(map[string]string)
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		problems["title"] = "Title must not be empty"
	}
	if p.Description != nil && strings.TrimSpace(*p.Description) == "" {
		problems["description"] = "Description must not be empty"
	}
	if p.QuestionIDs != nil && slices.Contains(*p.QuestionIDs, "") {
		problems["questions"] = "Question ids must not be empty"
	}

	return problems
}

// Apply replaces the fields of qz that are set in the patch.
func (p *QuizPatch) Apply(qz *Quiz) {
	if p.Title != nil {
		qz.Title = *p.Title
	}
	if p.Description != nil {
		qz.Description = *p.Description
	}
	if p.QuestionIDs != nil {
		qz.QuestionIDs = slices.Clone(*p.QuestionIDs)
		if qz.QuestionIDs == nil {
			qz.QuestionIDs = []string{}
		}
	}
}

// ResolvedQuiz is a quiz whose question references have been replaced by the questions they point to.
type ResolvedQuiz struct {
	*Quiz
	Questions []*Question
}

// QuestionStore persists question documents.
type QuestionStore interface {
	// ListQuestions returns all questions in the store's natural order.
	ListQuestions(ctx context.Context) ([]*Question, error)
	// GetQuestion returns a question by its ID, or ErrQuestionNotFound.
	GetQuestion(ctx context.Context, id string) (*Question, error)
	// FindQuestions returns the questions that exist among ids, in no particular order.
	FindQuestions(ctx context.Context, ids []string) ([]*Question, error)
	// CreateQuestions stores all questions or none of them, assigning their IDs.
	CreateQuestions(ctx context.Context, qs []*Question) error
	// DeleteQuestion removes a question. Deleting a missing question is not an error.
	DeleteQuestion(ctx context.Context, id string) error
}

// QuizStore persists quiz documents. Every method is a single-document atomic operation.
type QuizStore interface {
	// ListQuizzes returns all quizzes in the store's natural order.
	ListQuizzes(ctx context.Context) ([]*Quiz, error)
	// GetQuiz returns a quiz by its ID, or ErrQuizNotFound.
	GetQuiz(ctx context.Context, id string) (*Quiz, error)
	// CreateQuiz stores a new quiz, assigning its ID and timestamps.
	CreateQuiz(ctx context.Context, qz *Quiz) error
	// UpdateQuiz applies patch to the quiz and returns the result, or ErrQuizNotFound.
	UpdateQuiz(ctx context.Context, id string, patch *QuizPatch) (*Quiz, error)
	// DeleteQuiz removes a quiz, or returns ErrQuizNotFound. Questions are left alone.
	DeleteQuiz(ctx context.Context, id string) error
	// AppendQuestionIDs adds ids to the end of the quiz's question list, or returns ErrQuizNotFound.
	AppendQuestionIDs(ctx context.Context, quizID string, ids ...string) error
	// RemoveQuestionID removes every occurrence of questionID from the quiz's question list, or returns
	// ErrQuizNotFound. Removing an absent id is a no-op.
	RemoveQuestionID(ctx context.Context, quizID, questionID string) error
}
