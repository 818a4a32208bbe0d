package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Motion gating parameters.
const (
	// blurKernelSize is the Gaussian blur kernel used for noise reduction.
	blurKernelSize = 21
	// diffThreshold is the per-pixel binary threshold applied to the
	// frame difference.
	diffThreshold = 25
	// DefaultMotionThreshold is the percentage of changed pixels that
	// counts as motion.
	DefaultMotionThreshold = 1.0
)

// MotionDetector compares consecutive frames with blurred frame
// differencing. It gates the landmark detector so the pipeline stays
// cheap while the scene is still.
type MotionDetector struct {
	mu        sync.Mutex
	threshold float64
	baseline  gocv.Mat
	primed    bool
}

// NewMotionDetector creates a MotionDetector. The threshold is the
// percentage of pixels that must change between frames; values <= 0
// fall back to DefaultMotionThreshold.
func NewMotionDetector(threshold float64) *MotionDetector {
	if threshold <= 0 {
		threshold = DefaultMotionThreshold
	}
	return &MotionDetector{
		threshold: threshold,
		baseline:  gocv.NewMat(),
	}
}

// Detect reports whether the frame differs from the previous one by
// more than the threshold, plus the percentage of pixels that changed.
// The first frame establishes the baseline and never reports motion.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	smoothed := smooth(frame)
	defer smoothed.Close()

	if !m.primed {
		smoothed.CopyTo(&m.baseline)
		m.primed = true
		return false, 0
	}

	changed := changedRatio(smoothed, m.baseline)
	smoothed.CopyTo(&m.baseline)

	return changed > m.threshold, changed
}

// smooth converts a frame to grayscale and blurs it. The caller owns
// the returned Mat.
func smooth(frame *gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	kernel := image.Point{X: blurKernelSize, Y: blurKernelSize}
	gocv.GaussianBlur(gray, &blurred, kernel, 0, 0, gocv.BorderDefault)
	return blurred
}

// changedRatio returns the percentage of pixels whose absolute
// difference between the two frames exceeds diffThreshold.
func changedRatio(current, previous gocv.Mat) float64 {
	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(current, previous, &diff)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(diff, &mask, diffThreshold, 255, gocv.ThresholdBinary)

	total := mask.Rows() * mask.Cols()
	if total == 0 {
		return 0
	}
	return float64(gocv.CountNonZero(mask)) / float64(total) * 100.0
}

// Reset clears the baseline so the next frame starts a fresh comparison.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.baseline.Empty() {
		m.baseline.Close()
		m.baseline = gocv.NewMat()
	}
	m.primed = false
}

// Close releases resources held by the detector.
func (m *MotionDetector) Close() {
	m.Reset()
}

// SetThreshold updates the change-percentage threshold. Values <= 0 are
// ignored.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.threshold = threshold
}
