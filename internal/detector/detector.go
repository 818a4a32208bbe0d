package detector

import (
	"errors"

	"gocv.io/x/gocv"
)

// ErrNoHand is returned when a frame contains no detectable hand.
var ErrNoHand = errors.New("detector: no hand in frame")

// Detector extracts hand landmarks from camera frames.
type Detector interface {
	// Detect returns landmarks for the most prominent hand in the frame,
	// or ErrNoHand when nothing is found.
	Detect(frame *gocv.Mat) (*HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}
