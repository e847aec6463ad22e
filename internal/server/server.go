// Package server contains everything related to the Server
package server

import (
	"net/http"

	"github.com/felixge/httpsnoop"

	"github.com/starquake/quizdocs/internal/logging"
	"github.com/starquake/quizdocs/internal/quiz"
	"github.com/starquake/quizdocs/internal/store"
)

// NewServer creates a new server.
func NewServer(logger *logging.Logger, stores *store.Stores) http.Handler {
	service := quiz.NewService(stores.Questions, stores.Quizzes, logger)

	mux := http.NewServeMux()
	addRoutes(mux, logger, service, stores)
	var handler http.Handler = mux
	handler = logRequests(logger, handler)

	return handler
}

// logRequests logs every request with its status, size and duration.
func logRequests(logger *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)

		logger.Info(r.Context(), "request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", m.Code),
			logging.Any("bytes", m.Written),
			logging.Any("duration", m.Duration),
		)
	})
}
