package handler

import (
	"context"
	"net/http"
	"time"

	"CrmAPI/internal/logger"
	"CrmAPI/internal/response"
)

// Pinger reports database reachability.
type Pinger interface {
	PingContext(ctx context.Context) error
}

func Health(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			logger.ErrorCtx(r.Context(), "health_check_failed", map[string]any{"error": err.Error()})
			response.Error(w, "Database unavailable", http.StatusServiceUnavailable, nil)
			return
		}
		response.Success(w, map[string]any{"status": "ok"}, "", http.StatusOK)
	}
}
