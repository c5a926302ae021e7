package router

import (
	"errors"
	"net/http"
	"time"

	"CrmAPI/internal/auth"
	"CrmAPI/internal/domain"
	"CrmAPI/internal/logger"
	"CrmAPI/internal/response"

	"github.com/go-chi/httprate"
)

const requestIDHeader = "X-Request-ID"

// withRequestID keeps a client supplied X-Request-ID or generates one, stores it in the
// context for logging and echoes it back.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = logger.NewRequestID()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.ContextWithRequestID(r.Context(), id)))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		fields := map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      sw.status,
			"duration_ms": time.Since(start).Milliseconds(),
		}
		switch {
		case sw.status >= 500:
			logger.ErrorCtx(r.Context(), "response", fields)
		case sw.status >= 400:
			logger.WarnCtx(r.Context(), "response", fields)
		default:
			logger.InfoCtx(r.Context(), "response", fields)
		}
	})
}

// authenticate attaches the caller's AuthContext. Requests without a usable token
// continue anonymously; operations that need an identity answer 401 themselves.
func authenticate(a *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a == nil {
				next.ServeHTTP(w, r)
				return
			}
			ac, err := a.Authenticate(r.Context(), r)
			switch {
			case err == nil:
				r = r.WithContext(auth.WithAuth(r.Context(), ac))
			case errors.Is(err, auth.ErrNoToken):
			case errors.Is(err, domain.ErrUnauthenticated):
				logger.WarnCtx(r.Context(), "invalid_token", map[string]any{"error": err.Error()})
			default:
				logger.ErrorCtx(r.Context(), "authenticate_failed", map[string]any{"error": err.Error()})
				response.Error(w, "Internal server error", http.StatusInternalServerError, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimit limits by client IP. A non-positive limit disables it.
func rateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	if requests <= 0 || window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			logger.WarnCtx(r.Context(), "rate_limited", map[string]any{"path": r.URL.Path})
			response.Error(w, "Too Many Attempts.", http.StatusTooManyRequests, nil)
		}),
	)
}
