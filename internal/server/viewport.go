package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/carousel/internal/app"
)

// ViewportController reads and changes the carousel's viewport size.
type ViewportController interface {
	Viewport() (width, height int)
	Resize(width, height int) error
}

// ViewportHandler serves GET and PUT /api/viewport.
type ViewportHandler struct {
	viewport ViewportController
}

// NewViewportHandler creates a new ViewportHandler.
func NewViewportHandler(v ViewportController) *ViewportHandler {
	return &ViewportHandler{viewport: v}
}

type viewportBody struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ServeHTTP returns the viewport size, or resets the layout for a new one.
func (h *ViewportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req viewportBody
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if err := h.viewport.Resize(req.Width, req.Height); err != nil {
			if errors.Is(err, app.ErrInvalidViewport) {
				writeJSONError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeJSONError(w, http.StatusInternalServerError, "Failed to resize viewport")
			return
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	width, height := h.viewport.Viewport()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(viewportBody{Width: width, Height: height})
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
