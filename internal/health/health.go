// Package health provides health check endpoints.
package health

import (
	"fmt"
	"net/http"

	"github.com/starquake/quizdocs/internal/httputil"
	"github.com/starquake/quizdocs/internal/logging"
	"github.com/starquake/quizdocs/internal/store"
)

// HandleHealthz returns a handler that serves health check responses.
// It answers 503 when the document store cannot be reached.
func HandleHealthz(logger *logging.Logger, pinger store.Pinger) http.Handler {
	type healthStatus struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks,omitempty"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		httpStatus := http.StatusOK
		health := healthStatus{
			Status: "ok",
			Checks: make(map[string]string),
		}

		if err := pinger.Ping(ctx); err != nil {
			health.Status = "degraded"
			health.Checks["store"] = fmt.Sprintf("unhealthy: %v", err)
			httpStatus = http.StatusServiceUnavailable
			logger.Warn(ctx, "health check failed", logging.ErrAttr(err))
		} else {
			health.Checks["store"] = "healthy"
		}

		if err := httputil.EncodeJSON(w, httpStatus, health); err != nil {
			logger.Error(ctx, "error encoding health status", logging.ErrAttr(err))
		}
	})
}
