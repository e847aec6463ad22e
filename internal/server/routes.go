package server

import (
	"net/http"
	"strings"

	"github.com/starquake/quizdocs/internal/api"
	"github.com/starquake/quizdocs/internal/health"
	"github.com/starquake/quizdocs/internal/httputil"
	"github.com/starquake/quizdocs/internal/logging"
	"github.com/starquake/quizdocs/internal/quiz"
	"github.com/starquake/quizdocs/internal/store"
)

func addRoutes(
	mux *http.ServeMux,
	logger *logging.Logger,
	service *quiz.Service,
	stores *store.Stores,
) {
	mux.Handle("GET /questions", api.HandleListQuestions(logger, service))
	mux.Handle("GET /questions/{questionID}", api.HandleGetQuestion(logger, service))

	mux.Handle("GET /quizzes", api.HandleListQuizzes(logger, service))
	mux.Handle("POST /quizzes", api.HandleCreateQuiz(logger, service))
	mux.Handle("GET /quizzes/{quizID}", api.HandleGetQuiz(logger, service))
	mux.Handle("PUT /quizzes/{quizID}", api.HandleUpdateQuiz(logger, service))
	mux.Handle("DELETE /quizzes/{quizID}", api.HandleDeleteQuiz(logger, service))

	mux.Handle("DELETE /quizzes/{quizID}/question/{questionID}", api.HandleDeleteQuestionFromQuiz(logger, service))
	mux.Handle("GET /quizzes/{quizID}/populate", api.HandlePopulateQuestions(logger, service))
	mux.Handle("POST /quizzes/{quizID}/question", api.HandleCreateQuestion(logger, service))
	mux.Handle("POST /quizzes/{quizID}/questions", api.HandleCreateQuestions(logger, service))

	mux.Handle("GET /healthz", health.HandleHealthz(logger, stores.Health))
	mux.Handle("/", handleUnmatched(mux))
}

// routeMethods are the methods checked when building the Allow header for a known path.
var routeMethods = []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodDelete}

// handleUnmatched answers requests no route claimed. A path served under other methods gets a JSON 405 with an
// Allow header; anything else is a JSON 404.
func handleUnmatched(mux *http.ServeMux) http.Handler {
	notFound := api.HandleNotFound()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var allowed []string
		for _, method := range routeMethods {
			alt := r.Clone(r.Context())
			alt.Method = method
			if _, pattern := mux.Handler(alt); pattern != "" && pattern != "/" {
				allowed = append(allowed, method)
			}
		}
		if len(allowed) == 0 {
			notFound.ServeHTTP(w, r)

			return
		}

		w.Header().Set("Allow", strings.Join(allowed, ", "))
		_ = httputil.EncodeError(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})
}
