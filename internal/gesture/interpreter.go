// Package gesture turns hand landmarks into the carousel's control values.
package gesture

import "github.com/ayusman/carousel/internal/detector"

// Default interpretation constants.
const (
	// DefaultPinchThreshold is the normalized thumb-index distance below which
	// the hand counts as pinching.
	DefaultPinchThreshold = 0.1
	// DefaultScrollDivisor scales the fingertip's pixel offset from center
	// into a per-frame scroll speed. Larger is slower.
	DefaultScrollDivisor = 50.0
)

// State is the per-frame gesture output consumed by the updater and renderer.
type State struct {
	PinchActive bool    `json:"pinch"`
	ScrollSpeed float64 `json:"scroll_speed"`
	// Tracking reports whether a hand was seen in the frame that produced
	// this state. PinchActive and ScrollSpeed may be carried over when false.
	Tracking bool `json:"tracking"`
}

// Config tunes an Interpreter.
type Config struct {
	PinchThreshold float64
	ScrollDivisor  float64
	// ResetOnHandLoss halts scrolling and releases the pinch when no hand is
	// detected instead of keeping the last known values.
	ResetOnHandLoss bool
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		PinchThreshold: DefaultPinchThreshold,
		ScrollDivisor:  DefaultScrollDivisor,
	}
}

// Interpreter converts detected hands into a State.
type Interpreter struct {
	config Config
}

// NewInterpreter creates an Interpreter. Non-positive thresholds fall back
// to the defaults.
func NewInterpreter(config Config) *Interpreter {
	if config.PinchThreshold <= 0 {
		config.PinchThreshold = DefaultPinchThreshold
	}
	if config.ScrollDivisor <= 0 {
		config.ScrollDivisor = DefaultScrollDivisor
	}
	return &Interpreter{config: config}
}

// Interpret derives the next State from the hands detected in a frame of a
// viewport viewportWidth pixels wide.
//
// With no hands the previous state is returned with Tracking cleared, so the
// carousel keeps coasting at the last speed. With several hands each one
// overwrites the result in turn and the last hand wins.
func (i *Interpreter) Interpret(hands []detector.HandLandmarks, viewportWidth float64, prev State) State {
	if len(hands) == 0 {
		if i.config.ResetOnHandLoss {
			return State{}
		}
		prev.Tracking = false
		return prev
	}

	next := prev
	for h := range hands {
		hand := &hands[h]
		next.PinchActive = i.IsPinch(hand)
		next.ScrollSpeed = i.ScrollSpeed(hand.IndexTip().X, viewportWidth)
	}
	next.Tracking = true
	return next
}

// IsPinch reports whether the thumb tip is strictly closer than the pinch
// threshold to the index tip.
func (i *Interpreter) IsPinch(hand *detector.HandLandmarks) bool {
	return hand.PinchDistance() < i.config.PinchThreshold
}

// ScrollSpeed maps a normalized fingertip x to a per-frame scroll speed:
// zero at screen center, linear in the pixel offset from it.
func (i *Interpreter) ScrollSpeed(tipX, viewportWidth float64) float64 {
	return (tipX*viewportWidth - viewportWidth/2) / i.config.ScrollDivisor
}
