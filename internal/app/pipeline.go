package app

import (
	"errors"
	"log"
	"time"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/infer"
)

// runPipeline is the main detection loop.
//
// 1. Idle at the low frame rate until motion is seen
// 2. On motion, switch to the active frame rate and reload bindings
// 3. Detect the hand and flatten its landmarks
// 4. Feed the vector to the inference engine, which gates on
//    confidence and dispatches any bound action
// 5. After 2s without motion, fall back to idle
func (a *App) runPipeline(stopCh <-chan struct{}) {
	activeMode := false
	lastMotionTime := time.Now()
	var mappings map[string]string

	ticker := time.NewTicker(capture.FrameInterval(capture.IdleFPS))
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if !a.IsEnabled() {
				continue
			}

			frame, err := a.Camera().ReadFrame()
			if err != nil {
				log.Printf("Error reading frame: %v", err)
				continue
			}

			motionDetected, _ := a.motion.Detect(frame)

			if motionDetected {
				lastMotionTime = time.Now()

				if !activeMode {
					activeMode = true
					a.Camera().SetFPS(capture.ActiveFPS)
					ticker.Reset(capture.FrameInterval(capture.ActiveFPS))
					mappings = a.mappings()
					log.Println("Switched to active mode")
				}
			} else if activeMode {
				if time.Since(lastMotionTime) > time.Duration(IdleTimeoutMs)*time.Millisecond {
					activeMode = false
					a.Camera().SetFPS(capture.IdleFPS)
					ticker.Reset(capture.FrameInterval(capture.IdleFPS))
					log.Println("Switched to idle mode")
				}
			}

			if !activeMode {
				frame.Close()
				continue
			}

			hand, err := a.Detector().Detect(frame)
			frame.Close()

			if err != nil {
				if !errors.Is(err, detector.ErrNoHand) {
					log.Printf("Error detecting hand: %v", err)
				}
				continue
			}

			result, err := a.config.Engine.Predict(hand.Vector(), mappings)
			if err != nil {
				// No model yet is routine before the first training run.
				if !errors.Is(err, infer.ErrNotReady) {
					log.Printf("Error predicting gesture: %v", err)
				}
				continue
			}

			if !result.Active {
				continue
			}

			if fn := a.gestureCallback(); fn != nil {
				fn(result.Gesture, result.Confidence)
			}
		}
	}
}
