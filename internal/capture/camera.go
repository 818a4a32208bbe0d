// Package capture provides camera capture and motion gating using GoCV.
package capture

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Camera capture settings. The pipeline idles at a low frame rate and
// ramps up once motion is seen.
const (
	IdleFPS       = 2
	ActiveFPS     = 15
	DefaultWidth  = 640
	DefaultHeight = 480
)

// ErrCameraNotOpen is returned when reading from a camera that is not open.
var ErrCameraNotOpen = errors.New("camera is not open")

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// FrameInterval converts a frame rate into the delay between reads.
// Non-positive rates fall back to the idle rate.
func FrameInterval(fps int) time.Duration {
	if fps <= 0 {
		fps = IdleFPS
	}
	return time.Second / time.Duration(fps)
}

// deviceCamera captures frames from a video device via GoCV.
type deviceCamera struct {
	deviceID int
	mu       sync.Mutex
	device   *gocv.VideoCapture
	fps      int
}

// NewCamera creates a Camera for the given device ID. It starts at the
// idle frame rate.
func NewCamera(deviceID int) Camera {
	return &deviceCamera{deviceID: deviceID, fps: IdleFPS}
}

// Open opens the camera device at 640x480. Opening an already-open
// camera is a no-op.
func (c *deviceCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil {
		return nil
	}

	device, err := gocv.OpenVideoCapture(c.deviceID)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", c.deviceID, err)
	}
	device.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
	device.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
	device.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.device = device
	return nil
}

// Close releases the device. Safe to call on a closed camera.
func (c *deviceCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return nil
	}
	err := c.device.Close()
	c.device = nil
	return err
}

// ReadFrame reads a single frame. The caller owns the returned Mat and
// must close it.
func (c *deviceCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return nil, ErrCameraNotOpen
	}

	frame := gocv.NewMat()
	if ok := c.device.Read(&frame); !ok || frame.Empty() {
		frame.Close()
		return nil, fmt.Errorf("read frame from camera %d failed", c.deviceID)
	}
	return &frame, nil
}

// SetFPS changes the capture frame rate. Values <= 0 are ignored.
func (c *deviceCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps
	if c.device != nil {
		c.device.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frame rate setting.
func (c *deviceCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

// IsOpen reports whether the camera is currently open.
func (c *deviceCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device != nil
}
