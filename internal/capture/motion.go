package capture

import (
	"image"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Frame differencing parameters.
const (
	// BlurKernel is the Gaussian kernel applied before differencing.
	BlurKernel = 21
	// PixelDelta is the grey-level change that marks a pixel as changed.
	PixelDelta = 25
)

// MotionDetector compares each frame with the previous one and reports the
// percentage of pixels that changed.
type MotionDetector struct {
	mu        sync.Mutex
	threshold float64 // percent of changed pixels that counts as motion
	prev      gocv.Mat
	primed    bool
}

// NewMotionDetector creates a MotionDetector that reports motion once more
// than threshold percent of the pixels change.
func NewMotionDetector(threshold float64) *MotionDetector {
	return &MotionDetector{threshold: threshold, prev: gocv.NewMat()}
}

// Detect reports whether frame differs enough from the previous frame and
// the percentage of pixels that changed. The first frame only primes the
// detector.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}
	gocv.GaussianBlur(gray, &gray, image.Pt(BlurKernel, BlurKernel), 0, 0, gocv.BorderDefault)

	defer gray.CopyTo(&m.prev)

	if !m.primed || m.prev.Rows() != gray.Rows() || m.prev.Cols() != gray.Cols() {
		m.primed = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(gray, m.prev, &diff)
	gocv.Threshold(diff, &diff, PixelDelta, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(diff)) / float64(diff.Rows()*diff.Cols()) * 100
	return changed > m.threshold, changed
}

// SetThreshold changes the motion threshold. Non-positive values are ignored.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threshold = threshold
}

// Reset forgets the previous frame.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prev.Close()
	m.prev = gocv.NewMat()
	m.primed = false
}

// Close releases the stored frame. The detector re-primes if used again.
func (m *MotionDetector) Close() {
	m.Reset()
}

// MotionGate decides per frame whether hand detection should run. It opens
// on motion and closes again after the scene has been still for the idle
// timeout, so a static scene skips the landmark model.
type MotionGate struct {
	detector   *MotionDetector
	idle       time.Duration
	now        func() time.Time
	lastMotion time.Time
	open       bool
}

// NewMotionGate creates a closed gate.
func NewMotionGate(threshold float64, idle time.Duration) *MotionGate {
	return &MotionGate{
		detector: NewMotionDetector(threshold),
		idle:     idle,
		now:      time.Now,
	}
}

// Allow feeds frame to the motion detector and reports whether detection
// should run on it.
func (g *MotionGate) Allow(frame *gocv.Mat) bool {
	moving, changed := g.detector.Detect(frame)
	now := g.now()

	if moving {
		g.lastMotion = now
		if !g.open {
			g.open = true
			slog.Debug("motion gate opened", "changed_pct", changed)
		}
		return true
	}

	if g.open && now.Sub(g.lastMotion) > g.idle {
		g.open = false
		slog.Debug("motion gate closed", "idle", g.idle)
	}
	return g.open
}

// Open reports whether the gate is currently letting frames through.
func (g *MotionGate) Open() bool {
	return g.open
}

// Close releases the detector's stored frame.
func (g *MotionGate) Close() {
	g.detector.Close()
}
