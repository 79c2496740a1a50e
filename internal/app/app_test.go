package app

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/carousel/internal/capture"
	"github.com/ayusman/carousel/internal/config"
	"github.com/ayusman/carousel/internal/detector"
	"github.com/ayusman/carousel/internal/store"
	"gocv.io/x/gocv"
)

const epsilon = 1e-9

func offlineFetch(ctx context.Context, ref string) ([]byte, error) {
	return nil, errors.New("offline")
}

type testApp struct {
	*App
	detector *detector.MockDetector
	camera   *capture.MockCamera
}

// newTestApp builds a 1200x800 App with six icons, a mock camera and a
// mock detector. mutate may adjust the config before construction.
func newTestApp(t *testing.T, st *store.Store, mutate func(*config.Config)) *testApp {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping test that renders with OpenCV")
	}

	cfg := config.Default()
	cfg.Display.Width, cfg.Display.Height = 1200, 800
	cfg.Icons = []config.IconConfig{
		{Caption: "Setting", Image: "mem://setting"},
		{Caption: "Bookmark", Image: "mem://bookmark"},
		{Caption: "Folder", Image: "mem://folder"},
		{Caption: "Map", Image: "mem://map"},
		{Caption: "Music", Image: "mem://music"},
		{Caption: "Video", Image: "mem://video"},
	}
	if mutate != nil {
		mutate(cfg)
	}

	det := detector.NewMockDetector()
	cam := capture.NewMockCamera(640, 480)

	a, err := New(Options{
		Config:   cfg,
		Store:    st,
		Camera:   cam,
		Detector: det,
		Fetch:    offlineFetch,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })

	return &testApp{App: a, detector: det, camera: cam}
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func hands(h ...detector.HandLandmarks) []detector.HandLandmarks {
	return h
}

func TestApp_NoHandsKeepsScrolling(t *testing.T) {
	a := newTestApp(t, nil, nil)

	// Index tip at 0.75 of a 1200px viewport: (900 - 600) / 50 = 6px per frame.
	state := a.Step(hands(detector.PointingLandmarks(0.75)))
	if math.Abs(state.ScrollSpeed-6) > epsilon || !state.Tracking {
		t.Fatalf("Step() = %+v, want tracking at speed 6", state)
	}

	x := a.Snapshot().Placements[0].X
	if math.Abs(x-306) > epsilon {
		t.Fatalf("placement 0 x = %v, want 306", x)
	}

	for i := 0; i < 10; i++ {
		state = a.Step(nil)
		if state.Tracking {
			t.Fatalf("frame %d: Tracking = true with no hands", i)
		}
		if math.Abs(state.ScrollSpeed-6) > epsilon {
			t.Fatalf("frame %d: ScrollSpeed = %v, want stale 6", i, state.ScrollSpeed)
		}
	}

	if got := a.Snapshot().Placements[0].X; math.Abs(got-366) > epsilon {
		t.Errorf("placement 0 x after 10 handless frames = %v, want 366", got)
	}
}

func TestApp_ResetOnHandLoss(t *testing.T) {
	a := newTestApp(t, nil, func(c *config.Config) {
		c.Gesture.ResetOnHandLoss = true
	})

	a.Step(hands(detector.PointingLandmarks(0.75)))
	before := a.Snapshot().Placements[0].X

	state := a.Step(nil)
	if state.ScrollSpeed != 0 || state.PinchActive {
		t.Errorf("Step(nil) = %+v, want zero state", state)
	}
	if after := a.Snapshot().Placements[0].X; after != before {
		t.Errorf("placement moved from %v to %v after reset", before, after)
	}
}

func TestApp_Disabled(t *testing.T) {
	a := newTestApp(t, nil, nil)
	a.SetEnabled(false)

	if a.IsEnabled() {
		t.Fatal("IsEnabled() = true after SetEnabled(false)")
	}

	state := a.Step(hands(detector.PinchLandmarks(0.9)))
	if state.Tracking || state.PinchActive || state.ScrollSpeed != 0 {
		t.Errorf("Step() while disabled = %+v, want untouched state", state)
	}

	a.SetEnabled(true)
	if state := a.Step(hands(detector.PinchLandmarks(0.9))); !state.Tracking {
		t.Error("Step() after re-enabling did not track the hand")
	}
}

func TestApp_Resize(t *testing.T) {
	a := newTestApp(t, nil, nil)

	for i := 0; i < 5; i++ {
		a.Step(hands(detector.PointingLandmarks(0.9)))
	}

	if err := a.Resize(800, 600); err != nil {
		t.Fatalf("Resize() error = %v", err)
	}
	if w, h := a.Viewport(); w != 800 || h != 600 {
		t.Errorf("Viewport() = %dx%d, want 800x600", w, h)
	}

	snap := a.Snapshot()
	for i, p := range snap.Placements {
		wantX := float64(i)*400 + 200
		if p.X != wantX || p.Y != 300 || p.Size != 100 {
			t.Errorf("placement %d = (%v, %v, %v), want (%v, 300, 100)", i, p.X, p.Y, p.Size, wantX)
		}
	}

	tests := []struct {
		name          string
		width, height int
	}{
		{"zero width", 0, 600},
		{"negative height", 800, -1},
		{"too large", MaxViewportSide + 1, 600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := a.Resize(tt.width, tt.height); !errors.Is(err, ErrInvalidViewport) {
				t.Errorf("Resize(%d, %d) error = %v, want ErrInvalidViewport", tt.width, tt.height, err)
			}
		})
	}
}

func TestApp_ResizePersists(t *testing.T) {
	st := newTestStore(t)

	a := newTestApp(t, st, nil)
	if err := a.Resize(1024, 768); err != nil {
		t.Fatalf("Resize() error = %v", err)
	}
	a.Close()

	b := newTestApp(t, st, nil)
	if w, h := b.Viewport(); w != 1024 || h != 768 {
		t.Errorf("Viewport() after restart = %dx%d, want 1024x768", w, h)
	}
}

func TestApp_Selection(t *testing.T) {
	// StartRatio 0.5 puts the first icon at the viewport center.
	a := newTestApp(t, nil, func(c *config.Config) {
		c.Carousel.StartRatio = 0.5
	})

	var selected []Selection
	a.OnSelect(func(s Selection) { selected = append(selected, s) })

	a.Step(hands(detector.PointingLandmarks(0.5)))
	if len(selected) != 0 {
		t.Fatalf("selection without a pinch: %+v", selected)
	}

	a.Step(hands(detector.PinchLandmarks(0.5)))
	if len(selected) != 1 || selected[0].Caption != "Setting" {
		t.Fatalf("selections after pinch = %+v, want Setting", selected)
	}

	// Holding the pinch, or holding it through a lost hand, is one selection.
	a.Step(hands(detector.PinchLandmarks(0.5)))
	a.Step(nil)
	a.Step(hands(detector.PinchLandmarks(0.5)))
	if len(selected) != 1 {
		t.Fatalf("held pinch selected %d times, want once", len(selected))
	}

	a.Step(hands(detector.PointingLandmarks(0.5)))
	a.Step(hands(detector.PinchLandmarks(0.5)))
	if len(selected) != 2 {
		t.Errorf("second pinch: %d selections, want 2", len(selected))
	}
	if got := a.LastSelection(); got != "Setting" {
		t.Errorf("LastSelection() = %q, want Setting", got)
	}
}

func TestApp_SelectionOutsideFocus(t *testing.T) {
	// Default layout: the nearest icon is exactly one focus radius away.
	a := newTestApp(t, nil, nil)

	var count int
	a.OnSelect(func(Selection) { count++ })

	a.Step(hands(detector.PinchLandmarks(0.5)))
	if count != 0 {
		t.Errorf("pinch with no focused icon selected %d times", count)
	}
	if got := a.LastSelection(); got != "" {
		t.Errorf("LastSelection() = %q, want empty", got)
	}
}

func TestApp_SelectionHistory(t *testing.T) {
	st := newTestStore(t)
	a := newTestApp(t, st, func(c *config.Config) {
		c.Carousel.StartRatio = 0.5
		c.Icons[0].Plugin = "ghost"
		c.Icons[0].Action = "open-url"
	})

	a.Step(hands(detector.PinchLandmarks(0.5)))
	a.Wait()

	history, err := st.Selections().Recent(10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("len(history) = %d, want 1", len(history))
	}

	got := history[0]
	if got.Caption != "Setting" || got.PluginName != "ghost" || got.ActionName != "open-url" {
		t.Errorf("selection = %+v", got)
	}
	if got.Success || !strings.Contains(got.Error, "not found") {
		t.Errorf("selection with a missing plugin = success %v, error %q", got.Success, got.Error)
	}
}

func TestApp_ReloadIcons(t *testing.T) {
	st := newTestStore(t)
	a := newTestApp(t, st, nil)

	icons, err := st.Icons().List()
	if err != nil || len(icons) != 6 {
		t.Fatalf("seeded icons = %d (%v), want 6", len(icons), err)
	}

	first := icons[0]
	first.Caption = "Settings"
	if err := st.Icons().Update(first); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	a.Step(hands(detector.PointingLandmarks(0.9)))
	if err := a.ReloadIcons(); err != nil {
		t.Fatalf("ReloadIcons() error = %v", err)
	}

	snap := a.Snapshot()
	if snap.Placements[0].Caption != "Settings" {
		t.Errorf("placement 0 caption = %q, want Settings", snap.Placements[0].Caption)
	}
	if snap.Placements[0].X != 300 {
		t.Errorf("placement 0 x = %v, want 300 after the reset", snap.Placements[0].X)
	}
}

func TestApp_ReloadIconsEmpty(t *testing.T) {
	st := newTestStore(t)
	a := newTestApp(t, st, nil)

	icons, _ := st.Icons().List()
	for _, icon := range icons {
		if err := st.Icons().Delete(icon.ID); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
	}

	if err := a.ReloadIcons(); err == nil {
		t.Fatal("ReloadIcons() with no icons succeeded")
	}
	if got := a.Snapshot().Placements[0].Caption; got != "Setting" {
		t.Errorf("placement 0 caption = %q, want the previous registry kept", got)
	}
}

func TestApp_StateFeed(t *testing.T) {
	a := newTestApp(t, nil, func(c *config.Config) {
		c.Carousel.StartRatio = 0.5
	})

	msgs, unsubscribe := a.Subscribe()
	defer unsubscribe()

	a.Step(hands(detector.PinchLandmarks(0.5)))
	a.Step(hands(detector.PinchLandmarks(0.5)))

	var first, second Snapshot
	if err := json.Unmarshal(<-msgs, &first); err != nil {
		t.Fatalf("decoding first message: %v", err)
	}
	if err := json.Unmarshal(<-msgs, &second); err != nil {
		t.Fatalf("decoding second message: %v", err)
	}

	if !first.Pinch || !first.Tracking || first.Focused != "Setting" {
		t.Errorf("first message = %+v", first)
	}
	if first.Selected == nil || first.Selected.Caption != "Setting" {
		t.Errorf("first message selected = %+v, want Setting", first.Selected)
	}
	if second.Selected != nil {
		t.Errorf("selection repeated in second message: %+v", second.Selected)
	}
	if len(first.Placements) != 6 || first.Width != 1200 || first.Height != 800 {
		t.Errorf("first message layout = %d placements at %dx%d", len(first.Placements), first.Width, first.Height)
	}
}

func TestApp_FrameJPEG(t *testing.T) {
	a := newTestApp(t, nil, nil)

	if _, err := a.FrameJPEG(); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("FrameJPEG() before a frame error = %v, want ErrNoFrame", err)
	}

	a.Step(nil)

	data, err := a.FrameJPEG()
	if err != nil {
		t.Fatalf("FrameJPEG() error = %v", err)
	}
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Errorf("FrameJPEG() does not start with a JPEG marker")
	}
}

func TestApp_StartStop(t *testing.T) {
	a := newTestApp(t, nil, func(c *config.Config) {
		c.Camera.FPS = 100
	})
	a.detector.SetHands(hands(detector.PointingLandmarks(0.75)))

	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := a.Start(); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for a.Frames() < 3 {
		if time.Now().After(deadline) {
			t.Fatal("frame loop did not run")
		}
		time.Sleep(10 * time.Millisecond)
	}

	a.Stop()
	if a.camera.IsOpen() {
		t.Error("camera still open after Stop()")
	}
	if a.detector.Calls() == 0 {
		t.Error("detector was never called")
	}
	if !a.State().Tracking {
		t.Error("loop did not interpret the detected hand")
	}

	frames := a.Frames()
	time.Sleep(50 * time.Millisecond)
	if a.Frames() != frames {
		t.Error("frames rendered after Stop()")
	}
}

func TestApp_StartCameraError(t *testing.T) {
	a := newTestApp(t, nil, nil)
	a.camera.FailOpen(capture.ErrCameraNotOpen)

	if err := a.Start(); !errors.Is(err, capture.ErrCameraNotOpen) {
		t.Fatalf("Start() error = %v, want ErrCameraNotOpen", err)
	}
}

// closingDisplay reports the window closed after a number of frames.
type closingDisplay struct {
	shown int
	after int
}

func (d *closingDisplay) Show(frame *gocv.Mat) error {
	if frame == nil || frame.Empty() {
		return errors.New("empty frame")
	}
	d.shown++
	if d.shown >= d.after {
		return ErrDisplayClosed
	}
	return nil
}

func TestApp_RunStopsOnDisplayClose(t *testing.T) {
	a := newTestApp(t, nil, func(c *config.Config) {
		c.Camera.FPS = 100
	})
	display := &closingDisplay{after: 3}
	a.display = display

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v, want nil on display close", err)
	}
	if display.shown != 3 || a.Frames() != 3 {
		t.Errorf("shown %d frames, rendered %d, want 3", display.shown, a.Frames())
	}
}

func TestApp_RunStopsOnContext(t *testing.T) {
	a := newTestApp(t, nil, func(c *config.Config) {
		c.Camera.FPS = 100
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := a.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if a.Frames() == 0 {
		t.Error("Run() rendered no frames")
	}
	if a.camera.IsOpen() {
		t.Error("camera still open after Run() returned")
	}
}

// recordingPlugin installs a "launcher" plugin that saves each request it
// receives to request.json in its directory.
func recordingPlugin(t *testing.T) (dir, requestPath string) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	dir = t.TempDir()
	pluginDir := filepath.Join(dir, "launcher")
	if err := os.MkdirAll(pluginDir, 0o755); err != nil {
		t.Fatal(err)
	}
	manifest := `{"name":"launcher","version":"1.0.0","executable":"launcher","actions":["open-url"]}`
	if err := os.WriteFile(filepath.Join(pluginDir, "plugin.json"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	script := "#!/bin/sh\ncat > request.json\necho '{\"success\":true}'\n"
	if err := os.WriteFile(filepath.Join(pluginDir, "launcher"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return dir, filepath.Join(pluginDir, "request.json")
}

func TestApp_ConfigParamsReachPlugin(t *testing.T) {
	tests := []struct {
		name  string
		store bool
	}{
		{"seeded store", true},
		{"config only", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pluginDir, requestPath := recordingPlugin(t)

			var st *store.Store
			if tt.store {
				st = newTestStore(t)
			}
			a := newTestApp(t, st, func(c *config.Config) {
				c.Carousel.StartRatio = 0.5
				c.Plugins.Dir = pluginDir
				c.Icons[0].Plugin = "launcher"
				c.Icons[0].Action = "open-url"
				c.Icons[0].Params = map[string]any{"url": "https://example.com"}
			})

			a.Step(hands(detector.PinchLandmarks(0.5)))
			a.Wait()

			data, err := os.ReadFile(requestPath)
			if err != nil {
				t.Fatalf("plugin was not run: %v", err)
			}
			var req struct {
				Action string `json:"action"`
				Icon   string `json:"icon"`
				Params struct {
					URL string `json:"url"`
				} `json:"params"`
			}
			if err := json.Unmarshal(data, &req); err != nil {
				t.Fatalf("request %s: %v", data, err)
			}
			if req.Action != "open-url" || req.Icon != "Setting" || req.Params.URL != "https://example.com" {
				t.Errorf("plugin request = %s", data)
			}
		})
	}
}

func TestApp_ResizeDuringSteps(t *testing.T) {
	a := newTestApp(t, nil, nil)

	captions := []string{"Setting", "Bookmark", "Folder", "Map", "Music", "Video"}
	sizes := [][2]int{{1200, 800}, {800, 600}, {1920, 1080}, {640, 480}}
	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				a.Step(hands(detector.PointingLandmarks(0.8)))
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
				s := sizes[i%len(sizes)]
				if err := a.Resize(s[0], s[1]); err != nil {
					t.Errorf("Resize(%d, %d) error = %v", s[0], s[1], err)
					return
				}
			}
		}
	}()

	for i := 0; i < 200; i++ {
		snap := a.Snapshot()
		if len(snap.Placements) != 6 {
			t.Errorf("snapshot %d: %d placements, want 6", i, len(snap.Placements))
			break
		}
		// Every placement belongs to the same layout as the surface size.
		for j, p := range snap.Placements {
			if p.Caption != captions[j] {
				t.Errorf("snapshot %d: placement %d is %q, want %q", i, j, p.Caption, captions[j])
				break
			}
			if p.Y != float64(snap.Height)/2 {
				t.Errorf("snapshot %d: placement %d at y=%f on a %dx%d surface", i, j, p.Y, snap.Width, snap.Height)
				break
			}
		}
	}

	close(done)
	wg.Wait()
}

func TestApp_MarkerUsesDistanceBeforeMove(t *testing.T) {
	// One icon 95px right of center; the hand pushes it past the focus radius.
	a := newTestApp(t, nil, func(c *config.Config) {
		c.Carousel.IconCount = 1
		c.Carousel.StartRatio = 695.0 / 1200
	})

	hand := detector.PointingLandmarks(0.95)
	a.Step(hands(hand))

	p := a.carousel.Placements()[0]
	if d := a.carousel.DistanceToCenter(p.X); d <= a.carousel.FocusRadius() {
		t.Fatalf("placement moved to %f, want it outside the focus zone", p.X)
	}

	tip := hand.IndexTip()
	x := int(math.Round(tip.X * 1200))
	y := int(math.Round(tip.Y * 800))
	v := a.renderer.Frame().GetVecbAt(y, 1199-x)
	if v[0] != 0xFF || v[1] != 0xFF || v[2] != 0xFF {
		t.Errorf("index tip marker = %v, want white for the pre-move focus", v)
	}
}
