// Package config loads the carousel's runtime configuration from a TOML file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ErrInvalid is returned by Validate when a value is out of range.
var ErrInvalid = errors.New("invalid config")

// MaxViewportSide bounds either display dimension.
const MaxViewportSide = 8192

// Config holds runtime configuration. Fields may be loaded from a TOML file
// and overridden by command-line flags.
type Config struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	Camera   CameraConfig   `toml:"camera"`
	Detector DetectorConfig `toml:"detector"`
	Gesture  GestureConfig  `toml:"gesture"`
	Carousel CarouselConfig `toml:"carousel"`
	Display  DisplayConfig  `toml:"display"`
	Motion   MotionConfig   `toml:"motion"`
	Server   ServerConfig   `toml:"server"`
	Store    StoreConfig    `toml:"store"`
	Plugins  PluginsConfig  `toml:"plugins"`

	// Icons seed the icon store on first run.
	Icons []IconConfig `toml:"icons"`
}

// CameraConfig configures frame capture.
type CameraConfig struct {
	DeviceID int `toml:"device_id"`
	Width    int `toml:"width"`
	Height   int `toml:"height"`
	FPS      int `toml:"fps"`
}

// DetectorConfig is handed to the hand landmark service unchanged.
type DetectorConfig struct {
	MaxHands               int     `toml:"max_hands"`
	ModelComplexity        int     `toml:"model_complexity"`
	MinDetectionConfidence float64 `toml:"min_detection_confidence"`
	MinTrackingConfidence  float64 `toml:"min_tracking_confidence"`
}

// GestureConfig tunes how landmarks become pinch and scroll values.
type GestureConfig struct {
	PinchThreshold  float64 `toml:"pinch_threshold"`
	ScrollDivisor   float64 `toml:"scroll_divisor"`
	ResetOnHandLoss bool    `toml:"reset_on_hand_loss"`
}

// CarouselConfig describes the icon belt layout and the focus lens.
type CarouselConfig struct {
	IconCount   int     `toml:"icon_count"`
	Gap         float64 `toml:"gap"`
	StartRatio  float64 `toml:"start_ratio"`
	InitialSize float64 `toml:"initial_size"`
	BaseSize    float64 `toml:"base_size"`
	SizeBias    float64 `toml:"size_bias"`
	Falloff     float64 `toml:"falloff"`
	MinSize     float64 `toml:"min_size"`
	MaxSize     float64 `toml:"max_size"`
	FocusRadius float64 `toml:"focus_radius"`
}

// DisplayConfig configures the drawing surface and the native window.
type DisplayConfig struct {
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	Window bool   `toml:"window"`
	Title  string `toml:"title"`
}

// MotionConfig configures the optional motion gate in front of detection.
type MotionConfig struct {
	Enabled       bool    `toml:"enabled"`
	Threshold     float64 `toml:"threshold"`
	IdleTimeoutMs int     `toml:"idle_timeout_ms"`
}

// ServerConfig configures the HTTP viewer and API.
type ServerConfig struct {
	Addr      string `toml:"addr"`
	StaticDir string `toml:"static_dir"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `toml:"path"`
}

// PluginsConfig locates selection action plugins.
type PluginsConfig struct {
	Dir       string `toml:"dir"`
	TimeoutMs int    `toml:"timeout_ms"`
}

// IconConfig is one seeded carousel icon.
type IconConfig struct {
	Caption string `toml:"caption"`
	Image   string `toml:"image"`
	Plugin  string `toml:"plugin"`
	Action  string `toml:"action"`
	// Params is passed to the plugin action, e.g. params = { url = "..." }.
	Params map[string]any `toml:"params"`
}

// ParamsJSON returns Params encoded for a plugin request, or nil when the
// icon has none.
func (ic IconConfig) ParamsJSON() (json.RawMessage, error) {
	if len(ic.Params) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(ic.Params)
	if err != nil {
		return nil, fmt.Errorf("encoding params for icon %q: %w", ic.Caption, err)
	}
	return data, nil
}

// Default returns a Config populated with standard defaults.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Camera: CameraConfig{
			DeviceID: 0,
			Width:    640,
			Height:   480,
			FPS:      30,
		},
		Detector: DetectorConfig{
			MaxHands:               1,
			ModelComplexity:        1,
			MinDetectionConfidence: 0.5,
			MinTrackingConfidence:  0.5,
		},
		Gesture: GestureConfig{
			PinchThreshold: 0.1,
			ScrollDivisor:  50,
		},
		Carousel: CarouselConfig{
			IconCount:   6,
			Gap:         400,
			StartRatio:  0.25,
			InitialSize: 100,
			BaseSize:    200,
			SizeBias:    100,
			Falloff:     10,
			MinSize:     50,
			MaxSize:     300,
			FocusRadius: 100,
		},
		Display: DisplayConfig{
			Width:  1280,
			Height: 720,
			Window: true,
			Title:  "Carousel",
		},
		Motion: MotionConfig{
			Enabled:       false,
			Threshold:     1.0,
			IdleTimeoutMs: 2000,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Plugins: PluginsConfig{
			TimeoutMs: 5000,
		},
		Icons: []IconConfig{
			{Caption: "Setting", Image: "http://localhost:3000/setting.png"},
			{Caption: "Bookmark", Image: "http://localhost:3000/bookmark.png"},
			{Caption: "Folder", Image: "http://localhost:3000/folder.png"},
			{Caption: "Map", Image: "http://localhost:3000/map.png"},
			{Caption: "Music", Image: "http://localhost:3000/music.png"},
			{Caption: "Video", Image: "http://localhost:3000/video.png"},
		},
	}
}

// Load reads configuration from the TOML file at path on top of the
// defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	// [[icons]] replaces the seeded list rather than appending to it.
	seeded := cfg.Icons
	cfg.Icons = nil
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if len(cfg.Icons) == 0 {
		cfg.Icons = seeded
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first out-of-range value.
func (c *Config) Validate() error {
	switch {
	case c.Camera.Width <= 0 || c.Camera.Height <= 0:
		return fmt.Errorf("%w: camera resolution %dx%d", ErrInvalid, c.Camera.Width, c.Camera.Height)
	case c.Camera.FPS <= 0:
		return fmt.Errorf("%w: camera fps %d", ErrInvalid, c.Camera.FPS)
	case c.Detector.MaxHands <= 0:
		return fmt.Errorf("%w: detector max_hands %d", ErrInvalid, c.Detector.MaxHands)
	case !unit(c.Detector.MinDetectionConfidence) || !unit(c.Detector.MinTrackingConfidence):
		return fmt.Errorf("%w: detector confidences must be within [0, 1]", ErrInvalid)
	case c.Gesture.PinchThreshold <= 0:
		return fmt.Errorf("%w: gesture pinch_threshold %g", ErrInvalid, c.Gesture.PinchThreshold)
	case c.Gesture.ScrollDivisor <= 0:
		return fmt.Errorf("%w: gesture scroll_divisor %g", ErrInvalid, c.Gesture.ScrollDivisor)
	case c.Carousel.IconCount <= 0:
		return fmt.Errorf("%w: carousel icon_count %d", ErrInvalid, c.Carousel.IconCount)
	case c.Carousel.Falloff <= 1:
		return fmt.Errorf("%w: carousel falloff %g must exceed 1", ErrInvalid, c.Carousel.Falloff)
	case c.Carousel.MinSize <= 0 || c.Carousel.MaxSize < c.Carousel.MinSize:
		return fmt.Errorf("%w: carousel size range [%g, %g]", ErrInvalid, c.Carousel.MinSize, c.Carousel.MaxSize)
	case c.Carousel.FocusRadius <= 0:
		return fmt.Errorf("%w: carousel focus_radius %g", ErrInvalid, c.Carousel.FocusRadius)
	case c.Display.Width <= 0 || c.Display.Height <= 0 ||
		c.Display.Width > MaxViewportSide || c.Display.Height > MaxViewportSide:
		return fmt.Errorf("%w: display size %dx%d", ErrInvalid, c.Display.Width, c.Display.Height)
	case c.Plugins.TimeoutMs <= 0:
		return fmt.Errorf("%w: plugins timeout_ms %d", ErrInvalid, c.Plugins.TimeoutMs)
	}
	for i, icon := range c.Icons {
		if icon.Caption == "" || icon.Image == "" {
			return fmt.Errorf("%w: icon %d needs caption and image", ErrInvalid, i)
		}
		if len(icon.Params) > 0 && icon.Plugin == "" {
			return fmt.Errorf("%w: icon %d has params but no plugin", ErrInvalid, i)
		}
		if _, err := icon.ParamsJSON(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	return nil
}

func unit(v float64) bool {
	return v >= 0 && v <= 1
}
