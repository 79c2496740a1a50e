// Package app wires capture, detection, gesture interpretation, the carousel
// and the renderer into the per-frame loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ayusman/carousel/internal/assets"
	"github.com/ayusman/carousel/internal/capture"
	"github.com/ayusman/carousel/internal/carousel"
	"github.com/ayusman/carousel/internal/config"
	"github.com/ayusman/carousel/internal/detector"
	"github.com/ayusman/carousel/internal/gesture"
	"github.com/ayusman/carousel/internal/plugin"
	"github.com/ayusman/carousel/internal/render"
	"github.com/ayusman/carousel/internal/store"
	"gocv.io/x/gocv"
)

// MaxViewportSide bounds either viewport dimension.
const MaxViewportSide = config.MaxViewportSide

var (
	// ErrInvalidViewport is returned by Resize for non-positive or oversized dimensions.
	ErrInvalidViewport = errors.New("invalid viewport size")
	// ErrNoFrame is returned by FrameJPEG before the first frame was rendered.
	ErrNoFrame = errors.New("no frame rendered yet")
	// ErrDisplayClosed is returned by a Display to end the frame loop.
	ErrDisplayClosed = errors.New("display closed")
)

// Display shows each rendered frame, typically in a native window.
type Display interface {
	Show(frame *gocv.Mat) error
}

// Options configures an App. Only Config is required.
type Options struct {
	Config *config.Config

	// Store persists icons, the viewport and selection history. Without it
	// icons come straight from Config.
	Store *store.Store

	// Camera defaults to the device camera from Config.
	Camera capture.Camera

	// Detector defaults to MediaPipe, falling back to a MockDetector when
	// the landmark service is not installed.
	Detector detector.Detector

	// Display receives every rendered frame from the loop.
	Display Display

	// Fetch overrides how icon images are read.
	Fetch assets.FetchFunc
}

// App is the frame driver. Step, Resize, ReloadIcons and the snapshot
// readers are serialized by one mutex.
type App struct {
	config   *config.Config
	store    *store.Store
	camera   capture.Camera
	detector detector.Detector
	gate     *capture.MotionGate
	display  Display

	interpreter *gesture.Interpreter
	carousel    *carousel.Carousel
	loader      *assets.Loader
	renderer    *render.Renderer
	plugins     *plugin.Manager
	executor    *plugin.Executor
	feed        *Feed

	mu        sync.Mutex
	enabled   bool
	state     gesture.State
	frames    uint64
	last      string
	selected  *Selection
	listeners []func(Selection)

	// Frame loop lifecycle.
	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	// Loop-goroutine only.
	captureErr errorLatch
	detectErr  errorLatch

	// In-flight selection actions.
	ctx       context.Context
	stop      context.CancelFunc
	actions   sync.WaitGroup
	closeOnce sync.Once
}

// New builds an App from opts. Icons are seeded into the store on first
// run, and a persisted viewport size wins over the configured one.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	a := &App{
		config:  cfg,
		store:   opts.Store,
		camera:  opts.Camera,
		display: opts.Display,
		enabled: true,
		feed:    NewFeed(DefaultFeedBuffer),
		interpreter: gesture.NewInterpreter(gesture.Config{
			PinchThreshold:  cfg.Gesture.PinchThreshold,
			ScrollDivisor:   cfg.Gesture.ScrollDivisor,
			ResetOnHandLoss: cfg.Gesture.ResetOnHandLoss,
		}),
		plugins:  plugin.NewManager(cfg.Plugins.Dir),
		executor: plugin.NewExecutor(time.Duration(cfg.Plugins.TimeoutMs) * time.Millisecond),
	}
	a.ctx, a.stop = context.WithCancel(context.Background())

	if a.camera == nil {
		a.camera = capture.NewCamera(capture.Options{
			DeviceID: cfg.Camera.DeviceID,
			Width:    cfg.Camera.Width,
			Height:   cfg.Camera.Height,
			FPS:      cfg.Camera.FPS,
		})
	}

	a.detector = opts.Detector
	if a.detector == nil {
		a.detector = newDetector(cfg.Detector)
	}

	if cfg.Motion.Enabled {
		a.gate = capture.NewMotionGate(cfg.Motion.Threshold, time.Duration(cfg.Motion.IdleTimeoutMs)*time.Millisecond)
	}

	if cfg.Plugins.Dir != "" {
		if err := a.plugins.Discover(); err != nil {
			slog.Warn("plugin discovery failed", "dir", cfg.Plugins.Dir, "err", err)
		}
	}

	if a.store != nil {
		seeds, err := seedIcons(cfg.Icons)
		if err != nil {
			return nil, fmt.Errorf("seeding icons: %w", err)
		}
		seeded, err := a.store.Icons().Seed(seeds)
		if err != nil {
			return nil, fmt.Errorf("seeding icons: %w", err)
		}
		if seeded {
			slog.Info("seeded icon store", "count", len(cfg.Icons))
		}
	}

	registry, err := a.loadRegistry()
	if err != nil {
		return nil, err
	}

	width, height := a.initialViewport()

	fetch := opts.Fetch
	if fetch == nil {
		fetch = assets.NewFetcher(assets.DefaultTimeout).Fetch
	}
	a.loader = assets.NewLoader(assets.Options{Fetch: fetch})
	a.loader.Request(registry.ImageRefs()...)

	a.carousel = carousel.New(carouselConfig(cfg.Carousel), registry, float64(width), float64(height))
	a.renderer = render.New(width, height, a.loader)

	return a, nil
}

// newDetector prefers the MediaPipe service and falls back to a mock.
func newDetector(cfg config.DetectorConfig) detector.Detector {
	mp, err := detector.NewMediaPipeDetector(detector.Config{
		MaxHands:        cfg.MaxHands,
		ModelComplexity: cfg.ModelComplexity,
		MinConfidence:   cfg.MinDetectionConfidence,
		MinTrackingConf: cfg.MinTrackingConfidence,
	})
	if err != nil {
		slog.Warn("MediaPipe not available, using mock detector", "err", err)
		return detector.NewMockDetector()
	}
	slog.Info("using MediaPipe hand detection")
	return mp
}

func carouselConfig(c config.CarouselConfig) carousel.Config {
	return carousel.Config{
		Count:       c.IconCount,
		Gap:         c.Gap,
		StartRatio:  c.StartRatio,
		InitialSize: c.InitialSize,
		BaseSize:    c.BaseSize,
		SizeBias:    c.SizeBias,
		Falloff:     c.Falloff,
		MinSize:     c.MinSize,
		MaxSize:     c.MaxSize,
		FocusRadius: c.FocusRadius,
	}
}

func seedIcons(icons []config.IconConfig) ([]store.SeedIcon, error) {
	seeds := make([]store.SeedIcon, len(icons))
	for i, ic := range icons {
		params, err := ic.ParamsJSON()
		if err != nil {
			return nil, err
		}
		seeds[i] = store.SeedIcon{
			Caption: ic.Caption,
			Image:   ic.Image,
			Plugin:  ic.Plugin,
			Action:  ic.Action,
			Params:  params,
		}
	}
	return seeds, nil
}

func (a *App) initialViewport() (int, int) {
	width, height := a.config.Display.Width, a.config.Display.Height
	if a.store == nil {
		return width, height
	}

	settings := a.store.Settings()
	w := settings.GetInt(store.SettingViewportWidth, width)
	h := settings.GetInt(store.SettingViewportHeight, height)
	if validViewport(w, h) {
		return w, h
	}
	return width, height
}

// loadRegistry reads icons and their enabled actions from the store, or
// from the config when running without one.
func (a *App) loadRegistry() (*carousel.Registry, error) {
	if a.store == nil {
		icons := make([]carousel.Icon, len(a.config.Icons))
		for i, ic := range a.config.Icons {
			params, err := ic.ParamsJSON()
			if err != nil {
				return nil, err
			}
			icons[i] = carousel.Icon{
				ID:       fmt.Sprintf("config-%d", i),
				Caption:  ic.Caption,
				ImageRef: ic.Image,
				Plugin:   ic.Plugin,
				Action:   ic.Action,
				Params:   params,
			}
		}
		return carousel.NewRegistry(icons)
	}

	stored, err := a.store.Icons().List()
	if err != nil {
		return nil, fmt.Errorf("listing icons: %w", err)
	}
	actions, err := a.store.Actions().List()
	if err != nil {
		return nil, fmt.Errorf("listing icon actions: %w", err)
	}

	icons := make([]carousel.Icon, 0, len(stored))
	for _, s := range stored {
		icon := carousel.Icon{ID: s.ID, Caption: s.Caption, ImageRef: s.Image}
		if act, ok := actions[s.ID]; ok && act.Enabled {
			icon.Plugin = act.PluginName
			icon.Action = act.ActionName
			icon.Params = act.Params
		}
		icons = append(icons, icon)
	}
	return carousel.NewRegistry(icons)
}

// ReloadIcons rebuilds the registry from its source and resets the layout.
// On error the current registry stays in place.
func (a *App) ReloadIcons() error {
	registry, err := a.loadRegistry()
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.carousel.SetRegistry(registry)
	refs := registry.ImageRefs()
	a.loader.Retain(refs)
	a.loader.Request(refs...)

	slog.Info("icons reloaded", "count", registry.Len())
	return nil
}

// Resize resets the layout and the drawing surface for a new viewport and
// persists the size.
func (a *App) Resize(width, height int) error {
	if !validViewport(width, height) {
		return fmt.Errorf("%w: %dx%d", ErrInvalidViewport, width, height)
	}

	a.mu.Lock()
	a.carousel.Reset(float64(width), float64(height))
	a.renderer.Resize(width, height)
	a.mu.Unlock()

	slog.Info("viewport resized", "width", width, "height", height)

	if a.store != nil {
		settings := a.store.Settings()
		if err := settings.SetInt(store.SettingViewportWidth, width); err != nil {
			slog.Warn("failed to persist viewport", "err", err)
		} else if err := settings.SetInt(store.SettingViewportHeight, height); err != nil {
			slog.Warn("failed to persist viewport", "err", err)
		}
	}
	return nil
}

func validViewport(width, height int) bool {
	return width > 0 && height > 0 && width <= MaxViewportSide && height <= MaxViewportSide
}

// Viewport returns the current viewport size in pixels.
func (a *App) Viewport() (width, height int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.renderer.Size()
}

// SetEnabled pauses or resumes gesture interpretation. While paused every
// frame is treated as having no hand.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.enabled != enabled {
		slog.Info("gesture control toggled", "enabled", enabled)
	}
	a.enabled = enabled
}

// IsEnabled reports whether gesture interpretation is running.
func (a *App) IsEnabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

// SetDetector replaces the hand detector. The previous one is not closed.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detector = d
}

// Detector returns the hand detector.
func (a *App) Detector() detector.Detector {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.detector
}

// Plugins returns the plugin manager.
func (a *App) Plugins() *plugin.Manager {
	return a.plugins
}

// Feed returns the per-frame state feed.
func (a *App) Feed() *Feed {
	return a.feed
}

// Subscribe registers for per-frame state messages.
func (a *App) Subscribe() (<-chan []byte, func()) {
	return a.feed.Subscribe()
}

// FrameInterval is the loop's tick period.
func (a *App) FrameInterval() time.Duration {
	return time.Second / time.Duration(a.config.Camera.FPS)
}

// Start opens the camera and runs the frame loop on its own goroutine.
// Calling Start on a running App does nothing.
func (a *App) Start() error {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	if a.cancel != nil {
		return nil
	}
	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("opening camera: %w", err)
	}

	ctx, cancel := context.WithCancel(a.ctx)
	done := make(chan struct{})
	a.cancel, a.done = cancel, done

	go func() {
		defer close(done)
		defer a.closeCamera()
		if err := a.loop(ctx); err != nil && !errors.Is(err, ErrDisplayClosed) {
			slog.Error("frame loop failed", "err", err)
		}
	}()

	slog.Info("frame loop started", "fps", a.config.Camera.FPS)
	return nil
}

// Run opens the camera and runs the frame loop on the calling goroutine
// until ctx is done or the display closes.
func (a *App) Run(ctx context.Context) error {
	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("opening camera: %w", err)
	}
	defer a.closeCamera()

	slog.Info("frame loop started", "fps", a.config.Camera.FPS)
	err := a.loop(ctx)
	if errors.Is(err, ErrDisplayClosed) {
		return nil
	}
	return err
}

// Stop halts a loop started with Start and waits for it to exit.
func (a *App) Stop() {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	if a.cancel == nil {
		return
	}
	a.cancel()
	<-a.done
	a.cancel, a.done = nil, nil

	slog.Info("frame loop stopped")
}

func (a *App) closeCamera() {
	if err := a.camera.Close(); err != nil {
		slog.Warn("error closing camera", "err", err)
	}
}

// Close stops the loop, cancels running selection actions and releases the
// detector, the loaded images and the drawing surface.
func (a *App) Close() error {
	a.Stop()

	var err error
	a.closeOnce.Do(func() {
		a.stop()
		a.actions.Wait()

		a.mu.Lock()
		defer a.mu.Unlock()

		if a.detector != nil {
			if cerr := a.detector.Close(); cerr != nil {
				err = fmt.Errorf("closing detector: %w", cerr)
			}
		}
		if a.gate != nil {
			a.gate.Close()
		}
		a.loader.Close()
		a.renderer.Close()
		a.feed.Close()
	})
	return err
}
