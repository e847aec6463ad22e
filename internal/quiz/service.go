package quiz

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/starquake/quizdocs/internal/logging"
)

// PopulateKeyword is the literal, case-sensitive substring PopulateQuestions filters on.
const PopulateKeyword = "capital"

// Service combines the question and quiz stores. It resolves question references and runs the flows that change
// a question record and a quiz's question list together. Those flows are not atomic: when the second step fails
// the first one stays committed and the inconsistency is logged.
type Service struct {
	questions QuestionStore
	quizzes   QuizStore
	logger    *logging.Logger
}

// NewService initializes and returns a new instance of Service with the provided stores.
func NewService(questions QuestionStore, quizzes QuizStore, logger *logging.Logger) *Service {
	return &Service{
		questions: questions,
		quizzes:   quizzes,
		logger:    logger,
	}
}

// ListQuestions returns all questions.
func (s *Service) ListQuestions(ctx context.Context) ([]*Question, error) {
	qs, err := s.questions.ListQuestions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}

	return qs, nil
}

// GetQuestion returns a question by its ID.
func (s *Service) GetQuestion(ctx context.Context, id string) (*Question, error) {
	qs, err := s.questions.GetQuestion(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get question %q: %w", id, err)
	}

	return qs, nil
}

// ListQuizzes returns all quizzes with their questions resolved.
func (s *Service) ListQuizzes(ctx context.Context) ([]*ResolvedQuiz, error) {
	quizzes, err := s.quizzes.ListQuizzes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list quizzes: %w", err)
	}

	return s.resolve(ctx, quizzes)
}

// GetQuiz returns a quiz with its questions resolved.
func (s *Service) GetQuiz(ctx context.Context, id string) (*ResolvedQuiz, error) {
	qz, err := s.quizzes.GetQuiz(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz %q: %w", id, err)
	}

	resolved, err := s.resolve(ctx, []*Quiz{qz})
	if err != nil {
		return nil, err
	}

	return resolved[0], nil
}

// CreateQuiz validates and stores a new quiz. A missing question list is stored as an empty one; the referenced ids
// are not checked.
func (s *Service) CreateQuiz(ctx context.Context, qz *Quiz) error {
	if err := NewValidationError(qz.Valid(ctx)); err != nil {
		return err
	}
	if qz.QuestionIDs == nil {
		qz.QuestionIDs = []string{}
	}

	if err := s.quizzes.CreateQuiz(ctx, qz); err != nil {
		return fmt.Errorf("failed to create quiz: %w", err)
	}

	return nil
}

// UpdateQuiz validates patch and applies it to the quiz with the given ID.
func (s *Service) UpdateQuiz(ctx context.Context, id string, patch *QuizPatch) (*Quiz, error) {
	if err := NewValidationError(patch.Valid(ctx)); err != nil {
		return nil, err
	}

	qz, err := s.quizzes.UpdateQuiz(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update quiz %q: %w", id, err)
	}

	return qz, nil
}

// DeleteQuiz removes a quiz. Its questions are kept.
func (s *Service) DeleteQuiz(ctx context.Context, id string) error {
	if err := s.quizzes.DeleteQuiz(ctx, id); err != nil {
		return fmt.Errorf("failed to delete quiz %q: %w", id, err)
	}

	return nil
}

// AppendQuestion adds a single question reference to the end of the quiz's list.
func (s *Service) AppendQuestion(ctx context.Context, quizID, questionID string) error {
	return s.AppendQuestions(ctx, quizID, []string{questionID})
}

// AppendQuestions adds question references to the end of the quiz's list in one write.
func (s *Service) AppendQuestions(ctx context.Context, quizID string, questionIDs []string) error {
	if err := s.quizzes.AppendQuestionIDs(ctx, quizID, questionIDs...); err != nil {
		return fmt.Errorf("failed to append questions to quiz %q: %w", quizID, err)
	}

	return nil
}

// RemoveQuestion removes a question reference from the quiz's list. Removing an absent reference is a no-op.
func (s *Service) RemoveQuestion(ctx context.Context, quizID, questionID string) error {
	if err := s.quizzes.RemoveQuestionID(ctx, quizID, questionID); err != nil {
		return fmt.Errorf("failed to remove question %q from quiz %q: %w", questionID, quizID, err)
	}

	return nil
}

// DeleteQuestionFromQuiz removes the question reference from the quiz and then deletes the question record.
// Returns ErrQuizNotFound if the quiz does not exist. Calling it again with the same ids succeeds.
func (s *Service) DeleteQuestionFromQuiz(ctx context.Context, quizID, questionID string) error {
	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		return fmt.Errorf("failed to get quiz %q: %w", quizID, err)
	}

	if err := s.RemoveQuestion(ctx, quizID, questionID); err != nil {
		return err
	}

	if err := s.questions.DeleteQuestion(ctx, questionID); err != nil {
		s.logger.Warn(ctx, "question reference removed but question record was not deleted",
			logging.String("quizID", quizID),
			logging.String("questionID", questionID),
			logging.ErrAttr(err),
		)

		return fmt.Errorf("failed to delete question %q: %w", questionID, err)
	}

	return nil
}

// CreateQuestionForQuiz creates a question and appends its ID to the quiz. The question is created first; if the
// quiz turns out to be missing the question stays behind unreferenced and ErrQuizNotFound is returned.
func (s *Service) CreateQuestionForQuiz(ctx context.Context, quizID string, qs *Question) error {
	if qs == nil {
		return NewValidationError(map[string]string{"question": "Question must be a JSON object"})
	}
	if err := NewValidationError(qs.Valid(ctx)); err != nil {
		return err
	}

	return s.createQuestionsForQuiz(ctx, quizID, []*Question{qs})
}

// CreateQuestionsForQuiz creates all questions in one batch and appends their IDs to the quiz in submission order.
// One invalid question rejects the whole batch before anything is stored. Problem keys carry the question's index.
// An empty batch stores nothing but still requires the quiz to exist.
func (s *Service) CreateQuestionsForQuiz(ctx context.Context, quizID string, qs []*Question) error {
	if err := validateQuestions(ctx, qs); err != nil {
		return err
	}

	if len(qs) == 0 {
		if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
			return fmt.Errorf("failed to get quiz %q: %w", quizID, err)
		}

		return nil
	}

	return s.createQuestionsForQuiz(ctx, quizID, qs)
}

func (s *Service) createQuestionsForQuiz(ctx context.Context, quizID string, qs []*Question) error {
	if err := s.questions.CreateQuestions(ctx, qs); err != nil {
		return fmt.Errorf("failed to create questions: %w", err)
	}

	ids := make([]string, 0, len(qs))
	for _, q := range qs {
		ids = append(ids, q.ID)
	}

	if err := s.AppendQuestions(ctx, quizID, ids); err != nil {
		s.logger.Warn(ctx, "questions created but not referenced by quiz",
			logging.String("quizID", quizID),
			logging.Any("questionIDs", ids),
			logging.ErrAttr(err),
		)

		return err
	}

	return nil
}

// PopulateQuestions returns the quiz's questions whose text contains PopulateKeyword. No match yields an empty
// slice; a missing quiz yields ErrQuizNotFound.
func (s *Service) PopulateQuestions(ctx context.Context, quizID string) ([]*Question, error) {
	qz, err := s.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	return FilterByKeyword(qz.Questions, PopulateKeyword), nil
}

// FilterByKeyword returns the questions whose text contains keyword, keeping their order.
func FilterByKeyword(qs []*Question, keyword string) []*Question {
	matches := make([]*Question, 0, len(qs))
	for _, q := range qs {
		if strings.Contains(q.Text, keyword) {
			matches = append(matches, q)
		}
	}

	return matches
}

func validateQuestions(ctx context.Context, qs []*Question) error {
	problems := make(map[string]string)
	for i, q := range qs {
		if q == nil {
			problems[strconv.Itoa(i)] = "Question must be a JSON object"

			continue
		}
		for field, problem := range q.Valid(ctx) {
			problems[strconv.Itoa(i)+"."+field] = problem
		}
	}

	return NewValidationError(problems)
}

// resolve replaces each quiz's question ids with the questions they reference, using one batch fetch for all
// quizzes. Order and duplicates follow the id list; ids without a question are skipped.
func (s *Service) resolve(ctx context.Context, quizzes []*Quiz) ([]*ResolvedQuiz, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, qz := range quizzes {
		for _, id := range qz.QuestionIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	byID := make(map[string]*Question, len(ids))
	if len(ids) > 0 {
		found, err := s.questions.FindQuestions(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve questions: %w", err)
		}
		for _, q := range found {
			byID[q.ID] = q
		}
	}

	resolved := make([]*ResolvedQuiz, 0, len(quizzes))
	for _, qz := range quizzes {
		rq := &ResolvedQuiz{Quiz: qz, Questions: make([]*Question, 0, len(qz.QuestionIDs))}
		for _, id := range qz.QuestionIDs {
			if q, ok := byID[id]; ok {
				rq.Questions = append(rq.Questions, q)
			}
		}
		resolved = append(resolved, rq)
	}

	return resolved, nil
}
