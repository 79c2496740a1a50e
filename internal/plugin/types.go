// Package plugin runs the actions bound to carousel icons. A plugin is an
// executable next to a plugin.json manifest; it receives one JSON Request
// on stdin and answers with one JSON Response on stdout.
package plugin

import (
	"encoding/json"
	"slices"
)

// ManifestFile is the manifest name looked up in each plugin directory.
const ManifestFile = "plugin.json"

// Manifest describes a plugin and the actions it accepts.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Request is sent to a plugin when an icon is selected.
type Request struct {
	Action  string          `json:"action"`
	Gesture string          `json:"gesture"` // always "pinch" today
	IconID  string          `json:"icon_id,omitempty"`
	Icon    string          `json:"icon"` // caption of the selected icon
	Config  json.RawMessage `json:"config,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a plugin's answer.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin is a discovered plugin.
type Plugin struct {
	Manifest   Manifest
	Path       string // plugin directory
	Executable string // absolute path to the executable
}

// Supports reports whether the manifest lists action. A manifest without
// actions accepts any.
func (p *Plugin) Supports(action string) bool {
	return len(p.Manifest.Actions) == 0 || slices.Contains(p.Manifest.Actions, action)
}
