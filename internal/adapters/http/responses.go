package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

type envelope struct {
	Success   bool   `json:"success"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// devMode adds the raw error text to responses. Set once at startup.
var devMode bool

func SetDevelopmentMode(enabled bool) {
	devMode = enabled
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(w, status, envelope{
		Success:   true,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
		RequestID: requestIDFromContext(r.Context()),
	})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	message := http.StatusText(status)
	if devMode && err != nil {
		message = err.Error()
	}

	if status >= 500 {
		slog.Error("request failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path, "error", err)
	}

	writeJSON(w, status, envelope{
		Success:   false,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Error:     message,
		RequestID: requestIDFromContext(r.Context()),
	})
}

func writeErrorMessage(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, envelope{
		Success:   false,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Error:     message,
		RequestID: requestIDFromContext(r.Context()),
	})
}
