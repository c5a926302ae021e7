// Package handler adapts service operations to HTTP: it reads path and query
// parameters, calls the service and writes the response envelope.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"CrmAPI/internal/auth"
	"CrmAPI/internal/domain"
	"CrmAPI/internal/logger"
	"CrmAPI/internal/model"
	"CrmAPI/internal/response"
	"CrmAPI/internal/service"

	"github.com/go-chi/chi/v5"
)

const msgInternal = "Internal server error"

type Handler struct {
	svc           *service.Service
	now           func() time.Time
	errorHandlers []errorHandler
}

func New(svc *service.Service) *Handler {
	return &Handler{
		svc: svc,
		now: time.Now,
		errorHandlers: []errorHandler{
			validationHandler,
			sentinelHandler(domain.ErrUnauthenticated, http.StatusUnauthorized, "Unauthenticated."),
			sentinelHandler(domain.ErrForbidden, http.StatusForbidden, "This action is unauthorized."),
			sentinelHandler(domain.ErrNotFound, http.StatusNotFound, "Resource not found"),
			sentinelHandler(domain.ErrConflict, http.StatusConflict, "Conflict"),
		},
	}
}

// errorHandler writes the response for err and reports whether it did.
type errorHandler func(w http.ResponseWriter, err error) bool

func validationHandler(w http.ResponseWriter, err error) bool {
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		return false
	}
	response.Error(w, verr.First(), http.StatusUnprocessableEntity, verr.Fields)
	return true
}

// sentinelHandler maps errors wrapping sentinel to status. Typed domain errors carry
// their own message; a bare or wrapped sentinel gets fallback so internal detail is
// never echoed.
func sentinelHandler(sentinel error, status int, fallback string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		msg := publicMessage(err)
		if msg == "" {
			msg = fallback
		}
		response.Error(w, msg, status, nil)
		return true
	}
}

func publicMessage(err error) string {
	var nf *domain.NotFoundError
	if errors.As(err, &nf) {
		return nf.Error()
	}
	var cf *domain.ConflictError
	if errors.As(err, &cf) {
		return cf.Error()
	}
	var fb *domain.ForbiddenError
	if errors.As(err, &fb) {
		return fb.Error()
	}
	var ae *domain.AuthenticationError
	if errors.As(err, &ae) {
		return ae.Error()
	}
	return ""
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	for _, eh := range h.errorHandlers {
		if eh(w, err) {
			return
		}
	}
	logger.ErrorCtx(r.Context(), "unhandled_error", map[string]any{
		"method": r.Method,
		"path":   r.URL.Path,
		"error":  err.Error(),
	})
	response.Error(w, msgInternal, http.StatusInternalServerError, nil)
}

// decode reads the JSON body; a malformed body is a validation failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	payload, err := response.Decode(r)
	if err != nil {
		logger.WarnCtx(r.Context(), "invalid_json", map[string]any{
			"path":  r.URL.Path,
			"error": err.Error(),
		})
		verr := domain.NewValidationError()
		verr.Add("body", "The request body must be a valid JSON object.")
		h.fail(w, r, verr)
		return nil, false
	}
	return payload, true
}

// recordID parses the {id} path parameter. A non-numeric id cannot match a row.
func (h *Handler) recordID(w http.ResponseWriter, r *http.Request, e *model.Entity) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.fail(w, r, domain.NotFound(e.Label))
		return 0, false
	}
	return id, true
}

func caller(r *http.Request) auth.AuthContext {
	return auth.FromContext(r.Context())
}
