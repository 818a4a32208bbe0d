// Package app runs the local detection pipeline: camera frames are
// motion-gated, passed to the hand detector, and the resulting landmark
// vectors fed to the inference engine.
package app

import (
	"log"
	"sync"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/infer"
	"github.com/ayusman/mudra/internal/store"
)

// IdleTimeoutMs is how long without motion before the pipeline drops
// back to the idle frame rate.
const IdleTimeoutMs = 2000

// GestureCallback receives every active prediction, for UI surfaces
// like the tray.
type GestureCallback func(gesture string, confidence float64)

// Config holds configuration options for the application.
type Config struct {
	Store        *store.Store
	Engine       *infer.Engine
	CameraID     int
	MotionThresh float64
}

// App owns the camera pipeline and its lifecycle.
type App struct {
	config   Config
	camera   capture.Camera
	motion   *capture.MotionDetector
	detector detector.Detector
	callback GestureCallback
	enabled  bool
	mu       sync.RWMutex
	stopCh   chan struct{}
}

// New creates an App. It prefers the MediaPipe detector and falls back
// to the mock when the landmark service is unavailable.
func New(config Config) *App {
	a := &App{
		config: config,
		camera: capture.NewCamera(config.CameraID),
		motion: capture.NewMotionDetector(config.MotionThresh),
	}

	if mp, err := detector.NewMediaPipeDetector(); err == nil {
		a.detector = mp
		log.Println("Using MediaPipe hand detection")
	} else {
		log.Printf("MediaPipe not available (%v), using mock detector", err)
		a.detector = detector.NewMockDetector()
	}

	return a
}

// SetEnabled enables or disables gesture detection.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether gesture detection is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// SetDetector replaces the hand detector implementation.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detector = d
}

// SetCamera replaces the camera implementation. Only valid before Start.
func (a *App) SetCamera(c capture.Camera) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.camera = c
}

// SetGestureCallback installs a callback invoked on every active
// prediction.
func (a *App) SetGestureCallback(fn GestureCallback) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.callback = fn
}

// Start opens the camera and begins the detection loop.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return err
	}
	a.camera.SetFPS(capture.IdleFPS)

	a.stopCh = make(chan struct{})
	go a.runPipeline(a.stopCh)

	log.Println("Detection pipeline started")
	return nil
}

// Stop halts the detection loop and releases resources.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		close(a.stopCh)
		a.stopCh = nil
	}

	if err := a.camera.Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}

	a.motion.Close()

	if a.detector != nil {
		if err := a.detector.Close(); err != nil {
			log.Printf("Error closing detector: %v", err)
		}
	}

	log.Println("Detection pipeline stopped")
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.camera
}

// MotionDetector returns the motion detector instance.
func (a *App) MotionDetector() *capture.MotionDetector {
	return a.motion
}

// Detector returns the hand detector.
func (a *App) Detector() detector.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}

func (a *App) gestureCallback() GestureCallback {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.callback
}

// mappings loads the persisted gesture bindings. Returns nil when no
// store is configured; predictions are then reported but never acted on.
func (a *App) mappings() map[string]string {
	if a.config.Store == nil {
		return nil
	}
	m, err := a.config.Store.Bindings().Mappings()
	if err != nil {
		log.Printf("Failed to load bindings: %v", err)
		return nil
	}
	return m
}
