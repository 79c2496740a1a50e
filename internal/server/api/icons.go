package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ayusman/carousel/internal/store"
)

// IconHandler handles HTTP requests for icon resources and their actions.
type IconHandler struct {
	store    *store.Store
	reloader Reloader
}

// NewIconHandler creates an IconHandler. reloader may be nil when no
// carousel is running.
func NewIconHandler(s *store.Store, reloader Reloader) *IconHandler {
	return &IconHandler{store: s, reloader: reloader}
}

// ServeHTTP routes /api/icons, /api/icons/{id} and /api/icons/{id}/action.
func (h *IconHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/icons")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id, sub, _ := strings.Cut(path, "/")
	switch sub {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, id)
		case http.MethodPut:
			h.update(w, r, id)
		case http.MethodDelete:
			h.delete(w, r, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "action":
		switch r.Method {
		case http.MethodGet:
			h.getAction(w, r, id)
		case http.MethodPut:
			h.setAction(w, r, id)
		case http.MethodDelete:
			h.deleteAction(w, r, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	default:
		http.NotFound(w, r)
	}
}

// Request and response types

type iconRequest struct {
	Caption  string         `json:"caption"`
	Image    string         `json:"image"`
	Position *int           `json:"position,omitempty"`
	Action   *actionRequest `json:"action,omitempty"`
}

type actionRequest struct {
	Plugin  string          `json:"plugin"`
	Action  string          `json:"action"`
	Params  json.RawMessage `json:"params,omitempty"`
	Enabled *bool           `json:"enabled,omitempty"`
}

type iconResponse struct {
	ID        string          `json:"id"`
	Caption   string          `json:"caption"`
	Image     string          `json:"image"`
	Position  int             `json:"position"`
	Action    *actionResponse `json:"action,omitempty"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

type actionResponse struct {
	Plugin  string          `json:"plugin"`
	Action  string          `json:"action"`
	Params  json.RawMessage `json:"params,omitempty"`
	Enabled bool            `json:"enabled"`
}

type listIconsResponse struct {
	Icons []iconResponse `json:"icons"`
}

func toIconResponse(i *store.Icon, a *store.Action) iconResponse {
	resp := iconResponse{
		ID:        i.ID,
		Caption:   i.Caption,
		Image:     i.Image,
		Position:  i.Position,
		CreatedAt: formatTime(i.CreatedAt),
		UpdatedAt: formatTime(i.UpdatedAt),
	}
	if a != nil {
		resp.Action = toActionResponse(a)
	}
	return resp
}

func toActionResponse(a *store.Action) *actionResponse {
	return &actionResponse{
		Plugin:  a.PluginName,
		Action:  a.ActionName,
		Params:  a.Params,
		Enabled: a.Enabled,
	}
}

func (req *actionRequest) validate() string {
	switch {
	case req.Plugin == "":
		return "Action plugin is required"
	case req.Action == "":
		return "Action name is required"
	case len(req.Params) > 0 && !json.Valid(req.Params):
		return "Action params must be JSON"
	}
	return ""
}

func (req *actionRequest) toAction(iconID string) *store.Action {
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	return &store.Action{
		IconID:     iconID,
		PluginName: req.Plugin,
		ActionName: req.Action,
		Params:     req.Params,
		Enabled:    enabled,
	}
}

// list handles GET /api/icons and returns every icon in belt order.
func (h *IconHandler) list(w http.ResponseWriter, r *http.Request) {
	icons, err := h.store.Icons().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list icons")
		return
	}
	actions, err := h.store.Actions().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list actions")
		return
	}

	response := listIconsResponse{
		Icons: make([]iconResponse, 0, len(icons)),
	}
	for _, i := range icons {
		response.Icons = append(response.Icons, toIconResponse(i, actions[i.ID]))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/icons/{id}.
func (h *IconHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	icon, ok := h.lookup(w, id)
	if !ok {
		return
	}
	action, err := h.store.Actions().GetByIconID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get action")
		return
	}

	writeJSON(w, http.StatusOK, toIconResponse(icon, action))
}

// create handles POST /api/icons. Without a position the icon is appended.
func (h *IconHandler) create(w http.ResponseWriter, r *http.Request) {
	var req iconRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Caption == "" || req.Image == "" {
		writeError(w, http.StatusBadRequest, "Caption and image are required")
		return
	}
	if req.Action != nil {
		if msg := req.Action.validate(); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
	}

	icon := &store.Icon{Caption: req.Caption, Image: req.Image, Position: -1}
	if req.Position != nil {
		if *req.Position < 0 {
			writeError(w, http.StatusBadRequest, "Position must not be negative")
			return
		}
		icon.Position = *req.Position
	}

	if err := h.store.Icons().Create(icon); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create icon")
		return
	}

	var action *store.Action
	if req.Action != nil {
		action = req.Action.toAction(icon.ID)
		if err := h.store.Actions().Set(action); err != nil {
			// Take the icon back out so a failed create leaves nothing behind.
			if derr := h.store.Icons().Delete(icon.ID); derr != nil {
				slog.Warn("failed to remove icon after action error", "id", icon.ID, "err", derr)
			}
			writeError(w, http.StatusInternalServerError, "Failed to set action")
			return
		}
	}

	reload(h.reloader)
	writeJSON(w, http.StatusCreated, toIconResponse(icon, action))
}

// update handles PUT /api/icons/{id}. Empty fields keep their value; an
// included action replaces the current one.
func (h *IconHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	icon, ok := h.lookup(w, id)
	if !ok {
		return
	}

	var req iconRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Caption != "" {
		icon.Caption = req.Caption
	}
	if req.Image != "" {
		icon.Image = req.Image
	}
	if req.Position != nil {
		if *req.Position < 0 {
			writeError(w, http.StatusBadRequest, "Position must not be negative")
			return
		}
		icon.Position = *req.Position
	}
	if req.Action != nil {
		if msg := req.Action.validate(); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
	}

	if err := h.store.Icons().Update(icon); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update icon")
		return
	}
	if req.Action != nil {
		if err := h.store.Actions().Set(req.Action.toAction(id)); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to set action")
			return
		}
	}

	action, err := h.store.Actions().GetByIconID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get action")
		return
	}

	reload(h.reloader)
	writeJSON(w, http.StatusOK, toIconResponse(icon, action))
}

// delete handles DELETE /api/icons/{id}. The last icon cannot be removed.
func (h *IconHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.lookup(w, id); !ok {
		return
	}

	n, err := h.store.Icons().Count()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count icons")
		return
	}
	if n <= 1 {
		writeError(w, http.StatusConflict, "Cannot delete the last icon")
		return
	}

	if err := h.store.Icons().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Icon not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete icon")
		return
	}

	reload(h.reloader)
	w.WriteHeader(http.StatusNoContent)
}

// getAction handles GET /api/icons/{id}/action.
func (h *IconHandler) getAction(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.lookup(w, id); !ok {
		return
	}

	action, err := h.store.Actions().GetByIconID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get action")
		return
	}
	if action == nil {
		writeError(w, http.StatusNotFound, "Icon has no action")
		return
	}

	writeJSON(w, http.StatusOK, toActionResponse(action))
}

// setAction handles PUT /api/icons/{id}/action.
func (h *IconHandler) setAction(w http.ResponseWriter, r *http.Request, id string) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	action := req.toAction(id)
	if err := h.store.Actions().Set(action); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Icon not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to set action")
		return
	}

	reload(h.reloader)
	writeJSON(w, http.StatusOK, toActionResponse(action))
}

// deleteAction handles DELETE /api/icons/{id}/action.
func (h *IconHandler) deleteAction(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Actions().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Icon has no action")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete action")
		return
	}

	reload(h.reloader)
	w.WriteHeader(http.StatusNoContent)
}

// lookup fetches an icon or writes the error response.
func (h *IconHandler) lookup(w http.ResponseWriter, id string) (*store.Icon, bool) {
	icon, err := h.store.Icons().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Icon not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to get icon")
		return nil, false
	}
	return icon, true
}
