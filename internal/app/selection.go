package app

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ayusman/carousel/internal/carousel"
	"github.com/ayusman/carousel/internal/plugin"
	"github.com/ayusman/carousel/internal/store"
)

// ErrActionFailed wraps the error message a plugin reported.
var ErrActionFailed = errors.New("action failed")

// SelectionGesture is the gesture name sent to plugins.
const SelectionGesture = "pinch"

// Selection is a pinch onset while an icon sat in the focus zone.
type Selection struct {
	IconID  string    `json:"icon_id"`
	Caption string    `json:"caption"`
	Plugin  string    `json:"plugin,omitempty"`
	Action  string    `json:"action,omitempty"`
	At      time.Time `json:"at"`
}

// OnSelect registers fn to be called for every selection. Listeners run on
// the frame goroutine with the frame lock held and must not call back into
// the App.
func (a *App) OnSelect(fn func(Selection)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
}

// LastSelection returns the caption of the most recent selection, or "".
func (a *App) LastSelection() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// Wait blocks until every running selection action has finished.
func (a *App) Wait() {
	a.actions.Wait()
}

// selectPlacement is called by Step with the lock held.
func (a *App) selectPlacement(p carousel.Placement) {
	icon := *p.Icon
	sel := Selection{
		IconID:  icon.ID,
		Caption: p.Caption,
		Plugin:  icon.Plugin,
		Action:  icon.Action,
		At:      time.Now(),
	}

	a.last = sel.Caption
	a.selected = &sel
	slog.Info("icon selected", "caption", sel.Caption, "x", p.X, "size", p.Size)

	for _, fn := range a.listeners {
		fn(sel)
	}

	if !icon.HasAction() && a.store == nil {
		return
	}
	a.actions.Add(1)
	go a.complete(sel, icon)
}

// complete runs the icon's action, if any, and records the outcome.
func (a *App) complete(sel Selection, icon carousel.Icon) {
	defer a.actions.Done()

	record := &store.Selection{
		IconID:     sel.IconID,
		Caption:    sel.Caption,
		PluginName: sel.Plugin,
		ActionName: sel.Action,
		Success:    true,
		SelectedAt: sel.At,
	}

	if icon.HasAction() {
		if err := a.runAction(icon); err != nil {
			slog.Warn("selection action failed", "caption", icon.Caption, "plugin", icon.Plugin, "action", icon.Action, "err", err)
			record.Success = false
			record.Error = err.Error()
		}
	}

	if a.store == nil {
		return
	}
	if err := a.store.Selections().Record(record); err != nil {
		slog.Error("failed to record selection", "caption", sel.Caption, "err", err)
	}
}

func (a *App) runAction(icon carousel.Icon) error {
	p, err := a.plugins.Resolve(icon.Plugin, icon.Action)
	if err != nil {
		return err
	}

	resp, err := a.executor.Execute(a.ctx, p, &plugin.Request{
		Action:  icon.Action,
		Gesture: SelectionGesture,
		IconID:  icon.ID,
		Icon:    icon.Caption,
		Params:  icon.Params,
	})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%w: %s", ErrActionFailed, resp.Error)
	}

	slog.Info("selection action completed", "caption", icon.Caption, "plugin", icon.Plugin, "action", icon.Action)
	return nil
}
