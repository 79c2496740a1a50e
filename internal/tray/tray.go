// Package tray puts the carousel's controls in the system tray.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// Tray is the tray menu. Gesture input can be paused from it, and it shows
// the last selected icon. It also opens the browser viewer and quits.
type Tray struct {
	mu      sync.RWMutex
	enabled bool
	last    string

	onToggle func(enabled bool)
	onViewer func()
	onQuit   func()

	toggleItem *systray.MenuItem
	lastItem   *systray.MenuItem
}

// New returns a Tray with gesture input enabled.
func New() *Tray {
	return &Tray{enabled: true}
}

// OnToggle registers fn to receive the new state when the toggle is clicked.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	t.onToggle = fn
	t.mu.Unlock()
}

// OnOpenViewer registers fn for "Open Viewer...".
func (t *Tray) OnOpenViewer(fn func()) {
	t.mu.Lock()
	t.onViewer = fn
	t.mu.Unlock()
}

// OnQuit registers fn for Quit. It runs before the tray exits.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	t.onQuit = fn
	t.mu.Unlock()
}

// Run shows the menu and blocks until Quit.
func (t *Tray) Run() {
	systray.Run(t.build, func() {})
}

func (t *Tray) build() {
	systray.SetTitle("Carousel")
	systray.SetTooltip("Gesture Carousel")

	t.mu.Lock()
	t.toggleItem = systray.AddMenuItem(toggleTitle(t.enabled), "Pause or resume gesture input")
	systray.AddSeparator()
	t.lastItem = systray.AddMenuItem(lastTitle(t.last), "Last selected icon")
	t.lastItem.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	viewer := systray.AddMenuItem("Open Viewer...", "Open the carousel viewer in a browser")
	systray.AddSeparator()
	quit := systray.AddMenuItem("Quit", "Quit the carousel")

	go func() {
		for {
			select {
			case <-t.toggleItem.ClickedCh:
				t.handleToggle()
			case <-viewer.ClickedCh:
				t.handleViewer()
			case <-quit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	t.retitle()
	fn := t.onToggle
	t.mu.Unlock()

	// Outside the lock: the callback may call back into the tray.
	if fn != nil {
		fn(enabled)
	}
}

func (t *Tray) handleViewer() {
	t.mu.RLock()
	fn := t.onViewer
	t.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	fn := t.onQuit
	t.mu.RUnlock()
	if fn != nil {
		fn()
	}
	systray.Quit()
}

// retitle syncs the menu with the state. Callers hold mu.
func (t *Tray) retitle() {
	if t.toggleItem != nil {
		t.toggleItem.SetTitle(toggleTitle(t.enabled))
	}
	if t.lastItem != nil {
		t.lastItem.SetTitle(lastTitle(t.last))
	}
}

// SetLastSelection shows caption as the last selected icon. It is safe to
// call before Run.
func (t *Tray) SetLastSelection(caption string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = caption
	t.retitle()
}

func (t *Tray) LastSelection() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// SetEnabled updates the toggle without calling the toggle callback.
func (t *Tray) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
	t.retitle()
}

// Quit makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

func lastTitle(caption string) string {
	if caption == "" {
		return "Last: none"
	}
	return "Last: " + caption
}
