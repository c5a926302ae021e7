package handler

import (
	"net/http"

	"CrmAPI/internal/model"
	"CrmAPI/internal/response"
)

func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.decode(w, r)
	if !ok {
		return
	}
	sub, err := h.svc.Subscribe(r.Context(), payload)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, sub, "Subscription created. Please check your email to confirm.", http.StatusCreated)
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.decode(w, r)
	if !ok {
		return
	}
	token, _ := payload["token"].(string)
	sub, err := h.svc.Confirm(r.Context(), token)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, sub, "Subscription confirmed successfully", http.StatusOK)
}

// Unsubscribe deletes a subscriber for an admin or for whoever holds ?token=.
func (h *Handler) Unsubscribe(e *model.Entity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.recordID(w, r, e)
		if !ok {
			return
		}
		if err := h.svc.Unsubscribe(r.Context(), caller(r), id, r.URL.Query().Get("token")); err != nil {
			h.fail(w, r, err)
			return
		}
		response.Success(w, nil, e.Label+" deleted successfully", http.StatusOK)
	}
}
