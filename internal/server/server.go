// Package server provides the carousel's HTTP viewer and API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ayusman/carousel/internal/plugin"
	"github.com/ayusman/carousel/internal/server/api"
	"github.com/ayusman/carousel/internal/store"
)

// shutdownTimeout bounds how long Serve waits for open requests.
const shutdownTimeout = 5 * time.Second

// Carousel is the running frame driver as seen by the HTTP layer.
type Carousel interface {
	FrameSource
	StateSource
	ViewportController
	api.Reloader
}

// Config holds the server configuration. Routes whose dependency is nil
// are not registered.
type Config struct {
	StaticDir string
	Store     *store.Store
	Carousel  Carousel
	Plugins   *plugin.Manager
}

// Server is the HTTP server for the viewer and the API.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Store != nil {
		var reloader api.Reloader
		if s.config.Carousel != nil {
			reloader = s.config.Carousel
		}
		icons := api.NewIconHandler(s.config.Store, reloader)
		s.mux.Handle("/api/icons", icons)
		s.mux.Handle("/api/icons/", icons)
		s.mux.Handle("/api/selections", api.NewSelectionHandler(s.config.Store))
	}

	if s.config.Plugins != nil {
		s.mux.Handle("/api/plugins", api.NewPluginHandler(s.config.Plugins))
	}

	if s.config.Carousel != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Carousel))
		s.mux.Handle("/api/state", NewStateHandler(s.config.Carousel))
		s.mux.Handle("/api/viewport", NewViewportHandler(s.config.Carousel))
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("http server stopped")
	return nil
}
