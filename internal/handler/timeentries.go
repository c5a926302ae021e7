package handler

import (
	"net/http"

	"CrmAPI/internal/model"
	"CrmAPI/internal/response"
)

func (h *Handler) StartTimer(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.decode(w, r)
	if !ok {
		return
	}
	entry, err := h.svc.StartTimer(r.Context(), caller(r), payload)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, entry, "Time tracking started", http.StatusCreated)
}

func (h *Handler) StopTimer(e *model.Entity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.recordID(w, r, e)
		if !ok {
			return
		}
		entry, err := h.svc.StopTimer(r.Context(), caller(r), id)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		response.Success(w, entry, "Time tracking stopped", http.StatusOK)
	}
}

// CurrentTimer answers with data null when no entry is running.
func (h *Handler) CurrentTimer(w http.ResponseWriter, r *http.Request) {
	entry, err := h.svc.CurrentTimer(r.Context(), caller(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var data any
	if entry != nil {
		data = entry
	}
	response.Success(w, data, "", http.StatusOK)
}
