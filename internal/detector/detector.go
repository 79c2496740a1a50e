// Package detector turns camera frames into MediaPipe hand landmarks.
package detector

import "gocv.io/x/gocv"

// Detector finds hands in a camera frame.
type Detector interface {
	// Detect returns the hands found in frame, nil when there are none.
	// Landmarks are normalized to the frame, 0..1 on both axes.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	Close() error
}

// Config is passed through to the landmark service. It never changes how
// landmarks are interpreted.
type Config struct {
	MaxHands        int     // hands tracked per frame
	ModelComplexity int     // 0 lite, 1 full
	MinConfidence   float64 // palm detection confidence, 0..1
	MinTrackingConf float64 // landmark tracking confidence, 0..1
}

// DefaultConfig tracks a single hand with the full model.
func DefaultConfig() Config {
	return Config{
		MaxHands:        1,
		ModelComplexity: 1,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
	}
}
