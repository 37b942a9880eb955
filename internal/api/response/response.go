package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// envelope is the body of every JSON API response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func OK(w http.ResponseWriter, message string, data any) {
	WriteJSON(w, http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

func Created(w http.ResponseWriter, message string, data any) {
	WriteJSON(w, http.StatusCreated, envelope{Success: true, Message: message, Data: data})
}

func Error(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, envelope{Success: false, Message: message})
}

// WriteJSON writes v as-is with the given status. Most callers want OK or Error.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encoding response", "error", err)
	}
}
