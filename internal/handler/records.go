package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"CrmAPI/internal/domain"
	"CrmAPI/internal/export"
	"CrmAPI/internal/logger"
	"CrmAPI/internal/model"
	"CrmAPI/internal/response"
)

func (h *Handler) List(e *model.Entity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := h.svc.List(r.Context(), caller(r), e, r.URL.Query(), r.URL.Path)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		response.Success(w, page, "", http.StatusOK)
	}
}

func (h *Handler) Mine(e *model.Entity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := h.svc.Mine(r.Context(), caller(r), e, r.URL.Query(), r.URL.Path)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		response.Success(w, page, "", http.StatusOK)
	}
}

func (h *Handler) PublicList(e *model.Entity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := h.svc.PublicList(r.Context(), e, r.URL.Query(), r.URL.Path)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		response.Success(w, page, "", http.StatusOK)
	}
}

func (h *Handler) Show(e *model.Entity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.recordID(w, r, e)
		if !ok {
			return
		}
		rec, err := h.svc.Show(r.Context(), caller(r), e, id, r.URL.Query().Get("with"))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		response.Success(w, rec, "", http.StatusOK)
	}
}

// Store creates a record. Entities open to anonymous submissions go through the
// public path when the caller carries no identity.
func (h *Handler) Store(e *model.Entity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := h.decode(w, r)
		if !ok {
			return
		}
		ac := caller(r)
		var (
			rec model.Record
			err error
		)
		if e.Public.Create && !ac.Authenticated() {
			rec, err = h.svc.PublicCreate(r.Context(), e, payload)
		} else {
			rec, err = h.svc.Create(r.Context(), ac, e, payload)
		}
		if err != nil {
			h.fail(w, r, err)
			return
		}
		response.Success(w, rec, e.Label+" created successfully", http.StatusCreated)
	}
}

func (h *Handler) Update(e *model.Entity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.recordID(w, r, e)
		if !ok {
			return
		}
		payload, ok := h.decode(w, r)
		if !ok {
			return
		}
		rec, err := h.svc.Update(r.Context(), caller(r), e, id, payload)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		response.Success(w, rec, e.Label+" updated successfully", http.StatusOK)
	}
}

func (h *Handler) Destroy(e *model.Entity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.recordID(w, r, e)
		if !ok {
			return
		}
		if err := h.svc.Delete(r.Context(), caller(r), e, id); err != nil {
			h.fail(w, r, err)
			return
		}
		response.Success(w, nil, e.Label+" deleted successfully", http.StatusOK)
	}
}

func (h *Handler) Transition(e *model.Entity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.recordID(w, r, e)
		if !ok {
			return
		}
		payload, ok := h.decode(w, r)
		if !ok {
			return
		}
		rec, err := h.svc.Transition(r.Context(), caller(r), e, id, payload)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		response.Success(w, rec, e.Label+" updated successfully", http.StatusOK)
	}
}

func (h *Handler) Statistics(e *model.Entity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := h.svc.Statistics(r.Context(), caller(r), e, r.URL.Query())
		if err != nil {
			h.fail(w, r, err)
			return
		}
		response.Success(w, stats, "", http.StatusOK)
	}
}

// Export writes the filtered list as an xlsx attachment. The workbook is rendered into
// memory first so a failure can still produce a JSON error.
func (h *Handler) Export(e *model.Entity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if format := r.URL.Query().Get("format"); format != "" && format != "xlsx" {
			verr := domain.NewValidationError()
			verr.Add("format", "The selected format is invalid.")
			h.fail(w, r, verr)
			return
		}
		cols, items, err := h.svc.Export(r.Context(), caller(r), e, r.URL.Query())
		if err != nil {
			h.fail(w, r, err)
			return
		}
		var buf bytes.Buffer
		if err := export.WriteXLSX(&buf, e, cols, items); err != nil {
			h.fail(w, r, fmt.Errorf("render export: %w", err))
			return
		}
		w.Header().Set("Content-Type", export.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(e, h.now())))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(buf.Bytes()); err != nil {
			logger.WarnCtx(r.Context(), "write_response_failed", map[string]any{
				"path":  r.URL.Path,
				"error": err.Error(),
			})
		}
	}
}
