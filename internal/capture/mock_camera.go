package capture

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockCamera replays frames in a loop. With no frames it produces blank
// ones of its configured size, which is enough to drive the frame loop when
// a MockDetector supplies the hands.
type MockCamera struct {
	mu      sync.Mutex
	width   int
	height  int
	frames  []*gocv.Mat
	index   int
	reads   int
	open    bool
	openErr error
}

// NewMockCamera creates a MockCamera. The frames stay owned by the caller.
func NewMockCamera(width, height int, frames ...*gocv.Mat) *MockCamera {
	return &MockCamera{width: width, height: height, frames: frames}
}

// FailOpen makes the next Open return err.
func (c *MockCamera) FailOpen(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openErr = err
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.openErr != nil {
		err := c.openErr
		c.openErr = nil
		return err
	}
	c.open = true
	c.index = 0
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	return nil
}

func (c *MockCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return nil, ErrCameraNotOpen
	}
	c.reads++

	if len(c.frames) == 0 {
		blank := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), c.height, c.width, gocv.MatTypeCV8UC3)
		return &blank, nil
	}

	frame := c.frames[c.index].Clone()
	c.index = (c.index + 1) % len(c.frames)
	return &frame, nil
}

func (c *MockCamera) FPS() int { return DefaultFPS }

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Reads returns how many frames have been read.
func (c *MockCamera) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}
