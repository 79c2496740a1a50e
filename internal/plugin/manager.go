package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

var (
	// ErrPluginNotFound is returned when no discovered plugin has the name.
	ErrPluginNotFound = errors.New("plugin not found")
	// ErrActionNotSupported is returned when a plugin does not list the action.
	ErrActionNotSupported = errors.New("action not supported by plugin")
)

// Manager discovers plugins under a directory, one per subdirectory.
type Manager struct {
	dir     string
	mu      sync.RWMutex
	plugins map[string]*Plugin
}

// NewManager creates a Manager for dir. Nothing is read until Discover.
func NewManager(dir string) *Manager {
	return &Manager{
		dir:     dir,
		plugins: make(map[string]*Plugin),
	}
}

// Discover rescans the plugin directory. A missing directory yields no
// plugins; unreadable or malformed manifests are skipped with a warning.
func (m *Manager) Discover() error {
	found := make(map[string]*Plugin)

	entries, err := os.ReadDir(m.dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("reading plugin dir %s: %w", m.dir, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		p, err := loadPlugin(filepath.Join(m.dir, entry.Name()))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			slog.Warn("skipping plugin", "dir", entry.Name(), "err", err)
			continue
		}
		found[p.Manifest.Name] = p
	}

	m.mu.Lock()
	m.plugins = found
	m.mu.Unlock()

	slog.Debug("plugins discovered", "dir", m.dir, "count", len(found))
	return nil
}

func loadPlugin(dir string) (*Plugin, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ManifestFile, err)
	}
	if manifest.Name == "" || manifest.Executable == "" {
		return nil, fmt.Errorf("%s needs name and executable", ManifestFile)
	}

	return &Plugin{
		Manifest:   manifest,
		Path:       dir,
		Executable: filepath.Join(dir, manifest.Executable),
	}, nil
}

// Get returns the plugin with the given name.
func (m *Manager) Get(name string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.plugins[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrPluginNotFound)
	}
	return p, nil
}

// Resolve returns the plugin with the given name if it supports action.
func (m *Manager) Resolve(name, action string) (*Plugin, error) {
	p, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	if !p.Supports(action) {
		return nil, fmt.Errorf("%s %q: %w", name, action, ErrActionNotSupported)
	}
	return p, nil
}

// List returns every discovered plugin sorted by name.
func (m *Manager) List() []*Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Plugin, 0, len(m.plugins))
	for _, p := range m.plugins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Manifest.Name < out[j].Manifest.Name
	})
	return out
}

// Dir returns the plugin directory.
func (m *Manager) Dir() string {
	return m.dir
}
