// Package infer runs confidence-gated gesture inference against the
// currently installed asset snapshot.
package infer

import (
	"errors"
	"fmt"

	"github.com/ayusman/mudra/internal/assets"
	"github.com/ayusman/mudra/internal/dataset"
	"github.com/ayusman/mudra/internal/metrics"
)

// DefaultThreshold is the confidence a prediction must exceed to become
// active. The boundary is strict: exactly the threshold is still pending.
const DefaultThreshold = 0.70

// PendingGesture is reported while the top confidence has not cleared the
// threshold.
const PendingGesture = "CALIBRATING..."

// ActionNone is the designated no-op action. A label mapped to it behaves
// exactly like an unmapped label: the prediction is reported, nothing is
// dispatched.
const ActionNone = "none"

// ErrNotReady is returned while no asset snapshot is installed.
var ErrNotReady = errors.New("no trained model installed")

// ErrShapeMismatch is returned when the input vector length differs from
// the snapshot's scaler dimensionality.
var ErrShapeMismatch = errors.New("landmark vector shape mismatch")

// Dispatcher schedules an action for execution without blocking.
type Dispatcher interface {
	Dispatch(actionID string)
}

// Result is the outcome of a single prediction.
type Result struct {
	// Gesture is the display form of the active label, or PendingGesture.
	Gesture string
	// Confidence is the top class probability, reported in either case.
	Confidence float64
	// Active reports whether the confidence cleared the threshold.
	Active bool
	// Action is the dispatched action ID, empty when nothing was
	// dispatched.
	Action string
}

// Engine scales an incoming landmark vector, runs the classifier, applies
// the decision policy, and forwards any mapped action to the dispatcher.
type Engine struct {
	registry   *assets.Registry
	dispatcher Dispatcher
	threshold  float64
}

// New creates an Engine. A threshold <= 0 falls back to DefaultThreshold;
// a nil dispatcher suppresses all action dispatch.
func New(registry *assets.Registry, dispatcher Dispatcher, threshold float64) *Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Engine{
		registry:   registry,
		dispatcher: dispatcher,
		threshold:  threshold,
	}
}

// Predict classifies one landmark vector. mappings associates display-form
// labels with action IDs for this request only; a missing entry or a
// mapping to ActionNone reports the prediction without dispatching.
func (e *Engine) Predict(vec []float64, mappings map[string]string) (*Result, error) {
	snap, ok := e.registry.Current()
	if !ok {
		metrics.Predictions.WithLabelValues("error").Inc()
		return nil, ErrNotReady
	}

	if len(vec) != snap.Scaler.Dim() {
		metrics.Predictions.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: got %d values, model expects %d",
			ErrShapeMismatch, len(vec), snap.Scaler.Dim())
	}

	scaled, err := snap.Scaler.Transform(vec)
	if err != nil {
		metrics.Predictions.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("scale input: %w", err)
	}

	probs, err := snap.Classifier.Probabilities(scaled)
	if err != nil {
		metrics.Predictions.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("classify input: %w", err)
	}

	best, confidence := argmax(probs)
	if best < 0 || best >= len(snap.Labels) {
		metrics.Predictions.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("classifier returned class %d outside vocabulary of %d", best, len(snap.Labels))
	}

	if confidence <= e.threshold {
		metrics.Predictions.WithLabelValues("pending").Inc()
		return &Result{Gesture: PendingGesture, Confidence: confidence}, nil
	}

	gesture := dataset.DisplayLabel(snap.Labels[best])
	result := &Result{Gesture: gesture, Confidence: confidence, Active: true}

	action := lookupAction(mappings, gesture, snap.Labels[best])
	if action != "" && action != ActionNone && e.dispatcher != nil {
		e.dispatcher.Dispatch(action)
		result.Action = action
	}

	metrics.Predictions.WithLabelValues("active").Inc()
	return result, nil
}

// lookupAction accepts mappings keyed by either the display or the stored
// form of a label.
func lookupAction(mappings map[string]string, display, stored string) string {
	if a, ok := mappings[display]; ok {
		return a
	}
	return mappings[stored]
}

func argmax(probs []float64) (int, float64) {
	best := -1
	var max float64
	for i, p := range probs {
		if best < 0 || p > max {
			best = i
			max = p
		}
	}
	return best, max
}
