// Package testdata provides landmark vector fixtures shared by
// integration and end-to-end tests.
package testdata

import (
	"github.com/ayusman/mudra/internal/detector"
)

// FistVector returns the flattened landmark vector for the closed fist
// fixture.
func FistVector() []float64 {
	hand := detector.FistLandmarks()
	return hand.Vector()
}

// OpenPalmVector returns the flattened landmark vector for the open
// palm fixture.
func OpenPalmVector() []float64 {
	hand := detector.OpenPalmLandmarks()
	return hand.Vector()
}

// Jitter returns a copy of vec with every component shifted by offset,
// giving training sets a little spread.
func Jitter(vec []float64, offset float64) []float64 {
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = v + offset
	}
	return out
}
