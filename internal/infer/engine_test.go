package infer

import (
	"errors"
	"testing"

	"github.com/ayusman/mudra/internal/assets"
)

type stubScaler struct{ dim int }

func (s *stubScaler) Dim() int { return s.dim }
func (s *stubScaler) Transform(vec []float64) ([]float64, error) {
	return vec, nil
}

// stubClassifier returns the same probability vector for every input.
type stubClassifier struct{ probs []float64 }

func (c *stubClassifier) Probabilities(vec []float64) ([]float64, error) {
	return c.probs, nil
}
func (c *stubClassifier) NumClasses() int { return len(c.probs) }

type stubLabels struct{ labels []string }

func (s *stubLabels) Labels() ([]string, error) { return s.labels, nil }

type recordingDispatcher struct{ actions []string }

func (d *recordingDispatcher) Dispatch(actionID string) {
	d.actions = append(d.actions, actionID)
}

// newTestEngine builds an engine over a registry pre-loaded with a stub
// snapshot returning the given probabilities for labels fist/open.
func newTestEngine(t *testing.T, probs []float64) (*Engine, *recordingDispatcher) {
	t.Helper()

	registry := assets.New(t.TempDir(), &stubLabels{labels: []string{"fist", "open"}},
		func(path string) (assets.Scaler, error) {
			return &stubScaler{dim: 3}, nil
		},
		func(path string) (assets.Classifier, error) {
			return &stubClassifier{probs: probs}, nil
		},
	)
	if _, err := registry.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	d := &recordingDispatcher{}
	return New(registry, d, 0), d
}

func TestEngine_NotReady(t *testing.T) {
	registry := assets.New(t.TempDir(), &stubLabels{},
		func(path string) (assets.Scaler, error) { return nil, errors.New("missing") },
		func(path string) (assets.Classifier, error) { return nil, errors.New("missing") },
	)
	d := &recordingDispatcher{}
	e := New(registry, d, 0)

	_, err := e.Predict([]float64{1, 2, 3}, nil)
	if !errors.Is(err, ErrNotReady) {
		t.Errorf("Predict() error = %v, want ErrNotReady", err)
	}
	if len(d.actions) != 0 {
		t.Error("no action may be dispatched without a snapshot")
	}
}

func TestEngine_ShapeMismatch(t *testing.T) {
	e, d := newTestEngine(t, []float64{0.9, 0.1})

	_, err := e.Predict([]float64{1, 2}, map[string]string{"FIST": "volumeup"})
	if !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Predict() error = %v, want ErrShapeMismatch", err)
	}
	if len(d.actions) != 0 {
		t.Error("shape mismatch must not dispatch an action")
	}
}

func TestEngine_ThresholdBoundary(t *testing.T) {
	// Exactly 0.70 is below threshold: pending, no action lookup.
	e, d := newTestEngine(t, []float64{0.70, 0.30})

	res, err := e.Predict([]float64{1, 2, 3}, map[string]string{"FIST": "volumeup"})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if res.Active {
		t.Error("confidence of exactly 0.70 must not be active")
	}
	if res.Gesture != PendingGesture {
		t.Errorf("Gesture = %q, want %q", res.Gesture, PendingGesture)
	}
	if res.Confidence != 0.70 {
		t.Errorf("Confidence = %v, want 0.70", res.Confidence)
	}
	if len(d.actions) != 0 {
		t.Error("pending prediction must not dispatch an action")
	}
}

func TestEngine_ActiveWithMapping(t *testing.T) {
	e, d := newTestEngine(t, []float64{0.95, 0.05})

	res, err := e.Predict([]float64{1, 2, 3}, map[string]string{"FIST": "volumedown"})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if !res.Active || res.Gesture != "FIST" {
		t.Errorf("result = %+v, want active FIST", res)
	}
	if res.Action != "volumedown" {
		t.Errorf("Action = %q, want volumedown", res.Action)
	}
	if len(d.actions) != 1 || d.actions[0] != "volumedown" {
		t.Errorf("dispatched = %v, want [volumedown]", d.actions)
	}
}

func TestEngine_ActiveWithoutMapping(t *testing.T) {
	e, d := newTestEngine(t, []float64{0.95, 0.05})

	res, err := e.Predict([]float64{1, 2, 3}, nil)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	// The label and confidence are still reported; only the dispatch is
	// suppressed.
	if !res.Active || res.Gesture != "FIST" {
		t.Errorf("result = %+v, want active FIST", res)
	}
	if res.Action != "" || len(d.actions) != 0 {
		t.Error("unmapped label must not dispatch an action")
	}
}

func TestEngine_NoopMapping(t *testing.T) {
	e, d := newTestEngine(t, []float64{0.95, 0.05})

	res, err := e.Predict([]float64{1, 2, 3}, map[string]string{"FIST": ActionNone})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	// Mapping to the no-op action behaves exactly like no mapping at all.
	if !res.Active || res.Gesture != "FIST" {
		t.Errorf("result = %+v, want active FIST", res)
	}
	if res.Action != "" || len(d.actions) != 0 {
		t.Error("no-op mapping must not dispatch an action")
	}
}

func TestEngine_StoredFormMapping(t *testing.T) {
	e, d := newTestEngine(t, []float64{0.05, 0.95})

	res, err := e.Predict([]float64{1, 2, 3}, map[string]string{"open": "playpause"})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if res.Gesture != "OPEN" || res.Action != "playpause" {
		t.Errorf("result = %+v, want OPEN/playpause", res)
	}
	if len(d.actions) != 1 {
		t.Errorf("dispatched = %v, want one action", d.actions)
	}
}
