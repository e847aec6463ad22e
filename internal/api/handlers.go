// Package api provides the JSON HTTP handlers for quizzes and questions.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/starquake/quizdocs/internal/httputil"
	"github.com/starquake/quizdocs/internal/logging"
	"github.com/starquake/quizdocs/internal/quiz"
)

// QuestionDeletedMessage is the body message of a successful question removal.
const QuestionDeletedMessage = "Question deleted successfully."

type quizResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	QuestionIDs []string  `json:"questions"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func newQuizResponse(qz *quiz.Quiz) quizResponse {
	ids := qz.QuestionIDs
	if ids == nil {
		ids = []string{}
	}

	return quizResponse{
		ID:          qz.ID,
		Title:       qz.Title,
		Description: qz.Description,
		QuestionIDs: ids,
		CreatedAt:   qz.CreatedAt,
		UpdatedAt:   qz.UpdatedAt,
	}
}

type resolvedQuizResponse struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Questions   []*quiz.Question `json:"questions"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

func newResolvedQuizResponse(rq *quiz.ResolvedQuiz) resolvedQuizResponse {
	questions := rq.Questions
	if questions == nil {
		questions = []*quiz.Question{}
	}

	return resolvedQuizResponse{
		ID:          rq.ID,
		Title:       rq.Title,
		Description: rq.Description,
		Questions:   questions,
		CreatedAt:   rq.CreatedAt,
		UpdatedAt:   rq.UpdatedAt,
	}
}

// HandleListQuestions returns all questions.
func HandleListQuestions(logger *logging.Logger, service *quiz.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		qs, err := service.ListQuestions(r.Context())
		if err != nil {
			writeError(w, r, logger, err)

			return
		}

		encode(w, r, logger, http.StatusOK, qs)
	})
}

// HandleGetQuestion returns a single question.
// Returns 404 if the question does not exist.
func HandleGetQuestion(logger *logging.Logger, service *quiz.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q, err := service.GetQuestion(r.Context(), r.PathValue("questionID"))
		if err != nil {
			writeError(w, r, logger, err)

			return
		}

		encode(w, r, logger, http.StatusOK, q)
	})
}

// HandleListQuizzes returns all quizzes with their questions expanded.
func HandleListQuizzes(logger *logging.Logger, service *quiz.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		quizzes, err := service.ListQuizzes(r.Context())
		if err != nil {
			writeError(w, r, logger, err)

			return
		}

		res := make([]resolvedQuizResponse, 0, len(quizzes))
		for _, rq := range quizzes {
			res = append(res, newResolvedQuizResponse(rq))
		}

		encode(w, r, logger, http.StatusOK, res)
	})
}

// HandleCreateQuiz creates a quiz. The referenced question ids are stored as given.
// Returns 201 with the stored quiz, or 400 if the body is invalid.
func HandleCreateQuiz(logger *logging.Logger, service *quiz.Service) http.Handler {
	type createQuizRequest struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		QuestionIDs []string `json:"questions"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := httputil.DecodeJSON[createQuizRequest](w, r)
		if err != nil {
			writeBadRequest(w, r, logger, err)

			return
		}

		qz := &quiz.Quiz{
			Title:       req.Title,
			Description: req.Description,
			QuestionIDs: req.QuestionIDs,
		}
		if err = service.CreateQuiz(r.Context(), qz); err != nil {
			writeError(w, r, logger, err)

			return
		}

		w.Header().Set("Location", "/quizzes/"+qz.ID)
		encode(w, r, logger, http.StatusCreated, newQuizResponse(qz))
	})
}

// HandleGetQuiz returns a quiz with its questions expanded.
func HandleGetQuiz(logger *logging.Logger, service *quiz.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rq, err := service.GetQuiz(r.Context(), r.PathValue("quizID"))
		if err != nil {
			writeError(w, r, logger, err)

			return
		}

		encode(w, r, logger, http.StatusOK, newResolvedQuizResponse(rq))
	})
}

// HandleUpdateQuiz applies a partial update to a quiz. Fields left out of the body keep their value and a request
// without a body changes nothing. The body is checked before the quiz is looked up, so an invalid body is 400 even
// for a missing quiz.
func HandleUpdateQuiz(logger *logging.Logger, service *quiz.Service) http.Handler {
	type updateQuizRequest struct {
		Title       *string   `json:"title"`
		Description *string   `json:"description"`
		QuestionIDs *[]string `json:"questions"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := httputil.DecodeJSON[updateQuizRequest](w, r)
		if err != nil && !errors.Is(err, httputil.ErrEmptyBody) {
			writeBadRequest(w, r, logger, err)

			return
		}

		patch := &quiz.QuizPatch{
			Title:       req.Title,
			Description: req.Description,
			QuestionIDs: req.QuestionIDs,
		}
		qz, err := service.UpdateQuiz(r.Context(), r.PathValue("quizID"), patch)
		if err != nil {
			writeError(w, r, logger, err)

			return
		}

		encode(w, r, logger, http.StatusOK, newQuizResponse(qz))
	})
}

// HandleDeleteQuiz deletes a quiz and leaves its questions in place.
func HandleDeleteQuiz(logger *logging.Logger, service *quiz.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := service.DeleteQuiz(r.Context(), r.PathValue("quizID")); err != nil {
			writeError(w, r, logger, err)

			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

// HandleDeleteQuestionFromQuiz removes the question from the quiz and deletes the question itself.
// Returns 404 if the quiz does not exist; a question that is already gone is not an error.
func HandleDeleteQuestionFromQuiz(logger *logging.Logger, service *quiz.Service) http.Handler {
	type messageResponse struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		quizID := r.PathValue("quizID")
		questionID := r.PathValue("questionID")

		if err := service.DeleteQuestionFromQuiz(r.Context(), quizID, questionID); err != nil {
			writeError(w, r, logger, err)

			return
		}

		encode(w, r, logger, http.StatusOK, messageResponse{Message: QuestionDeletedMessage})
	})
}

// HandlePopulateQuestions returns the quiz's questions that mention quiz.PopulateKeyword.
func HandlePopulateQuestions(logger *logging.Logger, service *quiz.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		qs, err := service.PopulateQuestions(r.Context(), r.PathValue("quizID"))
		if err != nil {
			writeError(w, r, logger, err)

			return
		}

		encode(w, r, logger, http.StatusOK, qs)
	})
}

// HandleCreateQuestion creates a question and appends it to the quiz.
// Returns 201 with the stored question, 400 if the body is invalid and 404 if the quiz does not exist.
func HandleCreateQuestion(logger *logging.Logger, service *quiz.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q, err := httputil.DecodeJSON[*quiz.Question](w, r)
		if err != nil {
			writeBadRequest(w, r, logger, err)

			return
		}
		if q == nil {
			writeError(w, r, logger, quiz.NewValidationError(map[string]string{"question": "Question must be a JSON object"}))

			return
		}

		if err = service.CreateQuestionForQuiz(r.Context(), r.PathValue("quizID"), q); err != nil {
			writeError(w, r, logger, err)

			return
		}

		encode(w, r, logger, http.StatusCreated, q)
	})
}

// HandleCreateQuestions creates a batch of questions and appends them to the quiz in order.
// One invalid question rejects the whole batch.
func HandleCreateQuestions(logger *logging.Logger, service *quiz.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		qs, err := httputil.DecodeJSON[[]*quiz.Question](w, r)
		if err != nil {
			writeBadRequest(w, r, logger, err)

			return
		}
		if qs == nil {
			qs = []*quiz.Question{}
		}

		if err = service.CreateQuestionsForQuiz(r.Context(), r.PathValue("quizID"), qs); err != nil {
			writeError(w, r, logger, err)

			return
		}

		encode(w, r, logger, http.StatusCreated, qs)
	})
}

// HandleNotFound answers unknown routes with a JSON 404.
func HandleNotFound() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = httputil.EncodeError(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})
}

func encode[T any](w http.ResponseWriter, r *http.Request, logger *logging.Logger, status int, v T) {
	if err := httputil.EncodeJSON(w, status, v); err != nil {
		logger.Error(r.Context(), "error encoding response", logging.ErrAttr(err))
	}
}

// writeBadRequest answers a body that could not be decoded.
func writeBadRequest(w http.ResponseWriter, r *http.Request, logger *logging.Logger, err error) {
	var verr *quiz.ValidationError
	if errors.As(err, &verr) {
		writeError(w, r, logger, verr)

		return
	}

	logger.Debug(r.Context(), "invalid request body", logging.ErrAttr(err))
	if encErr := httputil.EncodeError(w, http.StatusBadRequest, err.Error()); encErr != nil {
		logger.Error(r.Context(), "error encoding response", logging.ErrAttr(encErr))
	}
}

// writeError maps an error to its status code: validation problems are 400, missing documents 404 and
// anything else is a store fault reported as 500.
func writeError(w http.ResponseWriter, r *http.Request, logger *logging.Logger, err error) {
	var (
		status int
		msg    string
		verr   *quiz.ValidationError
	)

	switch {
	case errors.As(err, &verr):
		status, msg = http.StatusBadRequest, verr.Error()
	case errors.Is(err, quiz.ErrQuizNotFound):
		status, msg = http.StatusNotFound, "Quiz not found"
	case errors.Is(err, quiz.ErrQuestionNotFound):
		status, msg = http.StatusNotFound, "Question not found"
	default:
		status, msg = http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
		logger.Error(r.Context(), "store error",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.ErrAttr(err),
		)
	}

	if encErr := httputil.EncodeError(w, status, msg); encErr != nil {
		logger.Error(r.Context(), "error encoding response", logging.ErrAttr(encErr))
	}
}
