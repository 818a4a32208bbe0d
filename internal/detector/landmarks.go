// Package detector provides hand landmark detection for gesture capture.
// A detected hand is flattened into the 63-value wrist-relative vector
// consumed by the dataset store and the inference engine.
package detector

// Hand landmark indices following the MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// VectorSize is the length of a flattened landmark vector: x, y, z for
// each of the 21 landmarks.
const VectorSize = NumLandmarks * 3

// Point3D is one landmark position.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks is one detected hand.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// Vector flattens the landmarks into a 63-value vector relative to the
// wrist: for each point, (x-wx, y-wy, z-wz) in landmark order. The wrist
// itself contributes three zeros, keeping the layout aligned with the
// vectors clients send over the wire.
func (h *HandLandmarks) Vector() []float64 {
	wrist := h.Points[Wrist]

	vec := make([]float64, 0, VectorSize)
	for i := 0; i < NumLandmarks; i++ {
		vec = append(vec,
			h.Points[i].X-wrist.X,
			h.Points[i].Y-wrist.Y,
			h.Points[i].Z-wrist.Z,
		)
	}
	return vec
}
