// Package response writes the uniform JSON envelope used by every endpoint.
package response

import (
	"errors"
	"io"
	"net/http"

	"CrmAPI/internal/logger"

	"github.com/goccy/go-json"
)

// Envelope is {success, message?, data} on success and {success, message, errors?} on failure.
type Envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Data    any                 `json:"data"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// errorEnvelope omits data entirely.
type errorEnvelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// Success writes data with an optional message. A status of 0 means 200.
func Success(w http.ResponseWriter, data any, message string, status int) {
	if status == 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

// Error writes a failure envelope; errs carries per-field messages and may be nil.
func Error(w http.ResponseWriter, message string, status int, errs map[string][]string) {
	writeJSON(w, status, errorEnvelope{Success: false, Message: message, Errors: errs})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("write_response_failed", map[string]any{"error": err.Error()})
	}
}

// Decode reads a JSON object body. Numbers decode as float64.
func Decode(r *http.Request) (map[string]any, error) {
	payload := map[string]any{}
	if r.Body == nil || r.ContentLength == 0 {
		return payload, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			return payload, nil
		}
		return nil, err
	}
	return payload, nil
}
