package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ayusman/carousel/internal/app"
)

// FrameSource provides the latest rendered frame as JPEG. FrameJPEG returns
// app.ErrNoFrame until the first frame exists.
type FrameSource interface {
	FrameJPEG() ([]byte, error)
	FrameInterval() time.Duration
}

// StreamHandler serves the rendered carousel as MJPEG.
type StreamHandler struct {
	source FrameSource
}

// NewStreamHandler creates a new StreamHandler for source.
func NewStreamHandler(source FrameSource) *StreamHandler {
	return &StreamHandler{source: source}
}

// ServeHTTP streams one JPEG part per frame interval until the client leaves.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	interval := h.source.FrameInterval()
	if interval <= 0 {
		interval = 66 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		data, err := h.source.FrameJPEG()
		switch {
		case err == nil:
			if err := writePart(w, data); err != nil {
				return
			}
		case !errors.Is(err, app.ErrNoFrame):
			slog.Warn("stream frame failed", "err", err)
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// writePart writes one multipart JPEG part and flushes it.
func writePart(w http.ResponseWriter, data []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(data)); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := fmt.Fprint(w, "\r\n"); err != nil {
		return err
	}

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
