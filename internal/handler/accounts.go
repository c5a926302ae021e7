package handler

import (
	"net/http"

	"CrmAPI/internal/domain"
	"CrmAPI/internal/response"
)

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Me(r.Context(), caller(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, user, "", http.StatusOK)
}

// Login answers 404 when the server only validates externally issued tokens.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.svc.LoginEnabled() {
		h.fail(w, r, domain.NotFoundMessage("Resource not found"))
		return
	}
	payload, ok := h.decode(w, r)
	if !ok {
		return
	}
	email, _ := payload["email"].(string)
	password, _ := payload["password"].(string)
	result, err := h.svc.Login(r.Context(), email, password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, result, "Login successful", http.StatusOK)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context(), caller(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, nil, "Logged out successfully", http.StatusOK)
}
