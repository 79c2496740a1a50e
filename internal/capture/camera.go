// Package capture reads webcam frames through OpenCV and gates hand
// detection on frame-to-frame motion.
package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Default capture settings, matching what the hand landmark model expects.
const (
	DefaultWidth  = 640
	DefaultHeight = 480
	DefaultFPS    = 30
)

var (
	// ErrCameraNotOpen is returned when reading from a closed camera.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrEmptyFrame is returned when the device hands back no pixels.
	ErrEmptyFrame = errors.New("captured frame is empty")
)

// Camera is a source of BGR frames.
type Camera interface {
	Open() error
	Close() error
	// ReadFrame returns the next frame. The caller closes it.
	ReadFrame() (*gocv.Mat, error)
	FPS() int
	IsOpen() bool
}

// Options configures a device camera. Zero values take the defaults.
type Options struct {
	DeviceID int
	Width    int
	Height   int
	FPS      int
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.FPS <= 0 {
		o.FPS = DefaultFPS
	}
	return o
}

type deviceCamera struct {
	opts    Options
	mu      sync.Mutex
	capture *gocv.VideoCapture
}

// NewCamera returns a Camera backed by an OpenCV video device. The device
// is not touched until Open.
func NewCamera(opts Options) Camera {
	return &deviceCamera{opts: opts.withDefaults()}
}

func (c *deviceCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture != nil {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.opts.DeviceID)
	if err != nil {
		return fmt.Errorf("opening camera %d: %w", c.opts.DeviceID, err)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(c.opts.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(c.opts.Height))
	capture.Set(gocv.VideoCaptureFPS, float64(c.opts.FPS))

	c.capture = capture
	return nil
}

func (c *deviceCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	return err
}

func (c *deviceCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		return nil, fmt.Errorf("reading camera %d: device returned no frame", c.opts.DeviceID)
	}
	if mat.Empty() {
		mat.Close()
		return nil, ErrEmptyFrame
	}

	return &mat, nil
}

func (c *deviceCamera) FPS() int {
	return c.opts.FPS
}

func (c *deviceCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capture != nil
}
