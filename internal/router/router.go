// Package router mounts every endpoint on a chi mux.
package router

import (
	"net/http"

	"CrmAPI/internal/auth"
	"CrmAPI/internal/config"
	"CrmAPI/internal/handler"
	"CrmAPI/internal/logger"
	"CrmAPI/internal/metrics"
	"CrmAPI/internal/model"
	"CrmAPI/internal/response"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// apiRateFactor scales the public-endpoint limit for authenticated traffic.
const apiRateFactor = 10

type Deps struct {
	Handler       *handler.Handler
	Registry      *model.Registry
	Authenticator *auth.Authenticator
	DB            handler.Pinger
	CORS          config.CORSConfig
	RateLimit     config.RateLimitConfig
}

func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(withRequestID)
	r.Use(middleware.RealIP)
	r.Use(withLogging)
	r.Use(metrics.Middleware())
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(corsOptions(d.CORS)))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, "Resource not found", http.StatusNotFound, nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		logger.WarnCtx(r.Context(), "method_not_allowed", map[string]any{
			"path":   r.URL.Path,
			"method": r.Method,
		})
		response.Error(w, "Method not allowed", http.StatusMethodNotAllowed, nil)
	})

	r.Get("/health", handler.Health(d.DB))
	r.Handle("/metrics", metrics.Handler())

	public := rateLimit(d.RateLimit.Requests, d.RateLimit.Window)
	h := d.Handler

	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimit(d.RateLimit.Requests*apiRateFactor, d.RateLimit.Window))
		r.Use(authenticate(d.Authenticator))

		r.With(public).Post("/auth/login", h.Login)
		r.Post("/auth/logout", h.Logout)
		r.Get("/me", h.Me)

		r.Group(func(r chi.Router) {
			r.Use(public)
			r.Post("/newsletter/subscribe", h.Subscribe)
			r.Post("/newsletter/confirm", h.Confirm)
		})

		for _, e := range d.Registry.All() {
			mountEntity(r, h, e, public)
		}
	})
	return r
}

func mountEntity(r chi.Router, h *handler.Handler, e *model.Entity, public func(http.Handler) http.Handler) {
	r.Route("/"+e.Route, func(r chi.Router) {
		r.Get("/", h.List(e))
		if e.Public.Create {
			r.With(public).Post("/", h.Store(e))
		} else {
			r.Post("/", h.Store(e))
		}
		r.Get("/export", h.Export(e))
		if e.Statistics != nil {
			r.Get("/statistics", h.Statistics(e))
		}
		if e.Mine != "" {
			r.Get("/"+e.Mine, h.Mine(e))
		}
		if len(e.Public.ListWhere) > 0 {
			r.With(public).Get("/public", h.PublicList(e))
		}

		if e.Name == "TimeEntry" {
			r.Post("/start", h.StartTimer)
			r.Get("/current", h.CurrentTimer)
			r.Post("/{id}/stop", h.StopTimer(e))
		}

		r.Get("/{id}", h.Show(e))
		r.Put("/{id}", h.Update(e))
		r.Patch("/{id}", h.Update(e))
		if e.Name == "NewsletterSubscriber" {
			r.Delete("/{id}", h.Unsubscribe(e))
		} else {
			r.Delete("/{id}", h.Destroy(e))
		}

		if e.Transition != nil {
			r.Patch("/{id}/"+e.Transition.Field, h.Transition(e))
		}
		for _, f := range e.Fields {
			if f.Blob != "" {
				r.Post("/{id}/"+f.Name, h.Attach(e, f.Name))
			}
		}
	})
}
