package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/ayusman/carousel/internal/detector"
	"github.com/ayusman/carousel/internal/gesture"
	"github.com/ayusman/carousel/internal/render"
)

// loop ticks at the camera frame rate. Each tick reads a frame, optionally
// passes it through the motion gate, detects hands and runs Step. Capture
// and detection failures still run Step with no hands so the carousel keeps
// moving on the last gesture state.
func (a *App) loop(ctx context.Context) error {
	ticker := time.NewTicker(a.FrameInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.Step(a.detect())
			if err := a.show(); err != nil {
				return err
			}
		}
	}
}

// detect reads one camera frame and returns the hands found in it.
func (a *App) detect() []detector.HandLandmarks {
	frame, err := a.camera.ReadFrame()
	a.captureErr.observe("capture", err)
	if err != nil {
		return nil
	}
	defer frame.Close()

	if a.gate != nil && !a.gate.Allow(frame) {
		return nil
	}

	hands, err := a.Detector().Detect(frame)
	a.detectErr.observe("detection", err)
	if err != nil {
		return nil
	}
	return hands
}

func (a *App) show() error {
	if a.display == nil {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.display.Show(a.renderer.Frame())
}

// Step runs one frame: interpret the hands, advance the belt, fire a
// selection on pinch onset over a focused icon, and redraw. With no hands
// the previous gesture state carries over. Step returns the new state.
func (a *App) Step(hands []detector.HandLandmarks) gesture.State {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.loader.Poll()
	a.loader.Request(a.carousel.Registry().ImageRefs()...)

	if !a.enabled {
		hands = nil
	}

	width, _ := a.carousel.Size()
	prev := a.state
	a.state = a.interpreter.Interpret(hands, width, prev)

	// Markers reflect the layout the hand was reacting to, before the move.
	_, nearest := a.carousel.Nearest()
	a.carousel.Update(a.state.ScrollSpeed)

	if a.state.PinchActive && !prev.PinchActive {
		if p, ok := a.carousel.Focused(); ok {
			a.selectPlacement(p)
		}
	}

	a.renderer.Render(render.Scene{
		Hands:       hands,
		Gesture:     a.state,
		Placements:  a.carousel.Placements(),
		Nearest:     nearest,
		FocusRadius: a.carousel.FocusRadius(),
	})
	a.frames++

	a.publish()
	return a.state
}

// State returns the current gesture state.
func (a *App) State() gesture.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Frames returns how many frames have been rendered.
func (a *App) Frames() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frames
}

// errorLatch logs an error once per distinct message and logs recovery,
// so a failing camera does not flood the log at frame rate.
type errorLatch struct {
	last string
}

func (l *errorLatch) observe(stage string, err error) {
	if err == nil {
		if l.last != "" {
			slog.Info(stage + " recovered")
			l.last = ""
		}
		return
	}
	if msg := err.Error(); msg != l.last {
		slog.Warn(stage+" failed", "err", err)
		l.last = msg
	}
}
