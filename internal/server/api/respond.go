// Package api provides the carousel's JSON HTTP handlers.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Reloader rebuilds the running carousel after its icons changed.
type Reloader interface {
	ReloadIcons() error
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

// reload applies a store change to the running carousel. The write already
// succeeded, so a failed reload is logged rather than reported.
func reload(r Reloader) {
	if r == nil {
		return
	}
	if err := r.ReloadIcons(); err != nil {
		slog.Warn("icon reload failed", "err", err)
	}
}
