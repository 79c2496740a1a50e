package main

import (
	"gocv.io/x/gocv"

	"github.com/ayusman/carousel/internal/app"
)

const keyEscape = 27

// windowDisplay shows frames in a native OpenCV window. q or Esc quits and
// the space bar toggles gesture control.
type windowDisplay struct {
	window   *gocv.Window
	onToggle func()
}

func newWindowDisplay(title string, width, height int, onToggle func()) *windowDisplay {
	w := gocv.NewWindow(title)
	w.ResizeWindow(width, height)
	return &windowDisplay{window: w, onToggle: onToggle}
}

// Show runs with the frame lock held, so the toggle callback is run on its
// own goroutine.
func (d *windowDisplay) Show(frame *gocv.Mat) error {
	d.window.IMShow(*frame)

	switch d.window.WaitKey(1) {
	case 'q', keyEscape:
		return app.ErrDisplayClosed
	case ' ':
		if d.onToggle != nil {
			go d.onToggle()
		}
	}

	if d.window.GetWindowProperty(gocv.WindowPropertyVisible) < 1 {
		return app.ErrDisplayClosed
	}
	return nil
}

func (d *windowDisplay) Close() error {
	return d.window.Close()
}
