package assets

import (
	"errors"
	"testing"
)

type fakeScaler struct{ dim int }

func (f *fakeScaler) Dim() int { return f.dim }
func (f *fakeScaler) Transform(vec []float64) ([]float64, error) {
	return vec, nil
}

type fakeClassifier struct{ classes int }

func (f *fakeClassifier) Probabilities(vec []float64) ([]float64, error) {
	probs := make([]float64, f.classes)
	probs[0] = 1
	return probs, nil
}
func (f *fakeClassifier) NumClasses() int { return f.classes }

type fakeLabels struct {
	labels []string
	err    error
}

func (f *fakeLabels) Labels() ([]string, error) { return f.labels, f.err }

func okScalerLoader(path string) (Scaler, error) {
	return &fakeScaler{dim: 63}, nil
}

func okClassifierLoader(classes int) ClassifierLoader {
	return func(path string) (Classifier, error) {
		return &fakeClassifier{classes: classes}, nil
	}
}

func TestRegistry_Current_Empty(t *testing.T) {
	r := New(t.TempDir(), &fakeLabels{}, okScalerLoader, okClassifierLoader(2))

	if _, ok := r.Current(); ok {
		t.Error("Current() should report no snapshot before the first reload")
	}
}

func TestRegistry_Reload(t *testing.T) {
	labels := &fakeLabels{labels: []string{"fist", "open"}}
	r := New(t.TempDir(), labels, okScalerLoader, okClassifierLoader(2))

	snap, err := r.Reload()
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if snap.Version != 1 {
		t.Errorf("Version = %d, want 1", snap.Version)
	}
	if len(snap.Labels) != 2 || snap.Labels[0] != "fist" {
		t.Errorf("Labels = %v", snap.Labels)
	}

	current, ok := r.Current()
	if !ok || current != snap {
		t.Error("Current() should return the snapshot just installed")
	}

	// Reload is idempotent and bumps the version.
	snap2, err := r.Reload()
	if err != nil {
		t.Fatalf("second Reload() error = %v", err)
	}
	if snap2.Version != 2 {
		t.Errorf("Version = %d after second reload, want 2", snap2.Version)
	}
}

func TestRegistry_Reload_FailureKeepsCurrent(t *testing.T) {
	labels := &fakeLabels{labels: []string{"fist", "open"}}

	failing := false
	scalerLoader := func(path string) (Scaler, error) {
		if failing {
			return nil, errors.New("corrupt scaler")
		}
		return &fakeScaler{dim: 63}, nil
	}
	r := New(t.TempDir(), labels, scalerLoader, okClassifierLoader(2))

	snap, err := r.Reload()
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	failing = true
	if _, err := r.Reload(); err == nil {
		t.Fatal("Reload() with corrupt scaler should fail")
	}

	current, ok := r.Current()
	if !ok {
		t.Fatal("Current() should still have a snapshot after a failed reload")
	}
	if current != snap {
		t.Error("failed reload must leave the prior snapshot installed")
	}
	if current.Version != 1 {
		t.Errorf("Version = %d after failed reload, want 1", current.Version)
	}
}

func TestRegistry_Reload_ClassCountMismatch(t *testing.T) {
	// Classifier trained on two classes, but a third dataset appeared
	// since training. The stale snapshot must survive.
	labels := &fakeLabels{labels: []string{"fist", "open"}}
	r := New(t.TempDir(), labels, okScalerLoader, okClassifierLoader(2))

	if _, err := r.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	labels.labels = []string{"fist", "open", "wave"}
	if _, err := r.Reload(); err == nil {
		t.Fatal("Reload() with class count mismatch should fail")
	}

	current, ok := r.Current()
	if !ok || len(current.Labels) != 2 {
		t.Error("failed reload must keep the prior two-class snapshot")
	}
}

func TestRegistry_TryReload_ColdStart(t *testing.T) {
	// No asset files on disk: a cold start, not an error.
	r := New(t.TempDir(), &fakeLabels{}, okScalerLoader, okClassifierLoader(2))

	snap, err := r.TryReload()
	if err != nil {
		t.Fatalf("TryReload() error = %v", err)
	}
	if snap != nil {
		t.Error("TryReload() without asset files should install nothing")
	}
}
