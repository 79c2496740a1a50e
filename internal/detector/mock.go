package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu       sync.Mutex
	hands    []HandLandmarks
	sequence [][]HandLandmarks
	err      error
	calls    int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by every Detect call.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
	m.sequence = nil
}

// SetSequence queues per-call results. Once the queue is drained Detect
// falls back to the hands set with SetHands.
func (m *MockDetector) SetSequence(frames ...[]HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = frames
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.sequence) > 0 {
		next := m.sequence[0]
		m.sequence = m.sequence[1:]
		return next, nil
	}
	return m.hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// PointingLandmarks returns a right hand with the index finger extended and
// its tip at normalized horizontal position x. Thumb and index tips are far
// apart, so the hand is not pinching.
func PointingLandmarks(x float64) HandLandmarks {
	landmarks := openHand(x)

	// Thumb folded across the palm, well away from the index tip.
	landmarks.Points[ThumbCMC] = Point3D{X: x + 0.04, Y: 0.75, Z: 0.0}
	landmarks.Points[ThumbMCP] = Point3D{X: x + 0.06, Y: 0.70, Z: 0.0}
	landmarks.Points[ThumbIP] = Point3D{X: x + 0.04, Y: 0.66, Z: 0.0}
	landmarks.Points[ThumbTip] = Point3D{X: x + 0.01, Y: 0.64, Z: 0.0}

	return landmarks
}

// PinchLandmarks returns a right hand whose thumb tip touches the index tip,
// with the index tip at normalized horizontal position x.
func PinchLandmarks(x float64) HandLandmarks {
	landmarks := openHand(x)

	landmarks.Points[ThumbCMC] = Point3D{X: x + 0.05, Y: 0.72, Z: 0.0}
	landmarks.Points[ThumbMCP] = Point3D{X: x + 0.07, Y: 0.62, Z: 0.0}
	landmarks.Points[ThumbIP] = Point3D{X: x + 0.05, Y: 0.50, Z: 0.0}
	landmarks.Points[ThumbTip] = Point3D{X: x + 0.02, Y: 0.37, Z: 0.0}

	return landmarks
}

// openHand lays out the four fingers extended upward with the index tip at (x, 0.35).
func openHand(x float64) HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
	}

	landmarks.Points[Wrist] = Point3D{X: x - 0.08, Y: 0.8, Z: 0.0}

	landmarks.Points[IndexMCP] = Point3D{X: x - 0.03, Y: 0.68, Z: 0.0}
	landmarks.Points[IndexPIP] = Point3D{X: x - 0.01, Y: 0.55, Z: 0.0}
	landmarks.Points[IndexDIP] = Point3D{X: x, Y: 0.45, Z: 0.0}
	landmarks.Points[IndexTip] = Point3D{X: x, Y: 0.35, Z: 0.0}

	landmarks.Points[MiddleMCP] = Point3D{X: x - 0.08, Y: 0.66, Z: 0.0}
	landmarks.Points[MiddlePIP] = Point3D{X: x - 0.08, Y: 0.52, Z: 0.0}
	landmarks.Points[MiddleDIP] = Point3D{X: x - 0.08, Y: 0.40, Z: 0.0}
	landmarks.Points[MiddleTip] = Point3D{X: x - 0.08, Y: 0.28, Z: 0.0}

	landmarks.Points[RingMCP] = Point3D{X: x - 0.13, Y: 0.68, Z: 0.0}
	landmarks.Points[RingPIP] = Point3D{X: x - 0.15, Y: 0.55, Z: 0.0}
	landmarks.Points[RingDIP] = Point3D{X: x - 0.16, Y: 0.45, Z: 0.0}
	landmarks.Points[RingTip] = Point3D{X: x - 0.16, Y: 0.35, Z: 0.0}

	landmarks.Points[PinkyMCP] = Point3D{X: x - 0.18, Y: 0.70, Z: 0.0}
	landmarks.Points[PinkyPIP] = Point3D{X: x - 0.21, Y: 0.60, Z: 0.0}
	landmarks.Points[PinkyDIP] = Point3D{X: x - 0.23, Y: 0.50, Z: 0.0}
	landmarks.Points[PinkyTip] = Point3D{X: x - 0.24, Y: 0.42, Z: 0.0}

	return landmarks
}
