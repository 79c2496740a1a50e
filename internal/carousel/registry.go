// Package carousel holds the icon belt: the registry of icons, their
// on-screen placements, and the per-frame scroll and focus-lens update.
package carousel

import (
	"encoding/json"
	"errors"
)

// ErrEmptyRegistry is returned when a registry would hold no icons.
var ErrEmptyRegistry = errors.New("icon registry is empty")

// Icon is one entry of the registry.
type Icon struct {
	ID       string
	Caption  string
	ImageRef string // URL or file path of the icon image

	// Plugin and Action name the selection action; both empty means none.
	Plugin string
	Action string
	Params json.RawMessage
}

// HasAction reports whether selecting the icon runs a plugin action.
func (i *Icon) HasAction() bool {
	return i.Plugin != "" && i.Action != ""
}

// Registry is an immutable ordered list of icons. Placements hold pointers
// into it, so a registry is replaced wholesale rather than edited.
type Registry struct {
	icons []*Icon
}

// NewRegistry copies icons into a new Registry.
func NewRegistry(icons []Icon) (*Registry, error) {
	if len(icons) == 0 {
		return nil, ErrEmptyRegistry
	}

	r := &Registry{icons: make([]*Icon, len(icons))}
	for i := range icons {
		icon := icons[i]
		r.icons[i] = &icon
	}
	return r, nil
}

// Len returns the number of icons.
func (r *Registry) Len() int {
	return len(r.icons)
}

// At returns the icon bound to placement index i, cycling through the
// registry when there are more placements than icons.
func (r *Registry) At(i int) *Icon {
	return r.icons[i%len(r.icons)]
}

// ImageRefs returns every distinct image reference in registry order.
func (r *Registry) ImageRefs() []string {
	seen := make(map[string]bool, len(r.icons))
	refs := make([]string, 0, len(r.icons))
	for _, icon := range r.icons {
		if seen[icon.ImageRef] {
			continue
		}
		seen[icon.ImageRef] = true
		refs = append(refs, icon.ImageRef)
	}
	return refs
}
