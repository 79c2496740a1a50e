package api

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/ayusman/carousel/internal/plugin"
	"github.com/ayusman/carousel/internal/store"
)

// SelectionHandler serves GET /api/selections.
type SelectionHandler struct {
	store *store.Store
}

// NewSelectionHandler creates a SelectionHandler.
func NewSelectionHandler(s *store.Store) *SelectionHandler {
	return &SelectionHandler{store: s}
}

type listSelectionsResponse struct {
	Selections []*store.Selection `json:"selections"`
}

// ServeHTTP returns the most recent selections, newest first. The optional
// limit query parameter caps the count.
func (h *SelectionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	selections, err := h.store.Selections().Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list selections")
		return
	}
	if selections == nil {
		selections = []*store.Selection{}
	}

	writeJSON(w, http.StatusOK, listSelectionsResponse{Selections: selections})
}

// PluginHandler lists discovered plugins and rescans the plugin directory.
type PluginHandler struct {
	manager *plugin.Manager
}

// NewPluginHandler creates a PluginHandler.
func NewPluginHandler(m *plugin.Manager) *PluginHandler {
	return &PluginHandler{manager: m}
}

type pluginResponse struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Actions     []string `json:"actions"`
}

type listPluginsResponse struct {
	Plugins []pluginResponse `json:"plugins"`
}

// ServeHTTP handles GET /api/plugins and POST /api/plugins (rescan).
func (h *PluginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		if err := h.manager.Discover(); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to scan plugins")
			return
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	plugins := h.manager.List()
	response := listPluginsResponse{
		Plugins: make([]pluginResponse, 0, len(plugins)),
	}
	for _, p := range plugins {
		actions := append([]string{}, p.Manifest.Actions...)
		sort.Strings(actions)
		response.Plugins = append(response.Plugins, pluginResponse{
			Name:        p.Manifest.Name,
			Version:     p.Manifest.Version,
			Description: p.Manifest.Description,
			Actions:     actions,
		})
	}

	writeJSON(w, http.StatusOK, response)
}
