// Package assets holds the currently served model assets: the fitted
// scaler, the trained classifier, and the label vocabulary they were
// trained against, versioned and swapped as a single unit.
package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Default file names inside the model directory.
const (
	ScalerFile     = "scaler.json"
	ClassifierFile = "model.json"
)

// Scaler is the fitted feature normalization consulted by the inference
// path.
type Scaler interface {
	Dim() int
	Transform(vec []float64) ([]float64, error)
}

// Classifier scores a scaled vector against the trained classes.
type Classifier interface {
	Probabilities(vec []float64) ([]float64, error)
	NumClasses() int
}

// LabelSource derives the current label vocabulary. The dataset store is
// the production implementation.
type LabelSource interface {
	Labels() ([]string, error)
}

// ScalerLoader and ClassifierLoader read assets from disk. They exist so
// the registry never depends on a concrete artifact format.
type (
	ScalerLoader     func(path string) (Scaler, error)
	ClassifierLoader func(path string) (Classifier, error)
)

// Snapshot is an immutable, internally consistent triple of scaler,
// classifier, and label vocabulary. Only a fully populated snapshot is
// ever installed.
type Snapshot struct {
	Scaler     Scaler
	Classifier Classifier
	Labels     []string
	Version    uint64
}

// Registry owns the currently installed snapshot. Reload is the only
// mutator; readers always see either the previous snapshot or the new one,
// never a mix.
type Registry struct {
	modelDir   string
	labels     LabelSource
	loadScaler ScalerLoader
	loadModel  ClassifierLoader

	mu      sync.RWMutex
	current *Snapshot
	version uint64
}

// New creates a Registry over modelDir. No snapshot is installed until the
// first successful Reload.
func New(modelDir string, labels LabelSource, loadScaler ScalerLoader, loadModel ClassifierLoader) *Registry {
	return &Registry{
		modelDir:   modelDir,
		labels:     labels,
		loadScaler: loadScaler,
		loadModel:  loadModel,
	}
}

// ScalerPath returns the scaler file location inside the model directory.
func (r *Registry) ScalerPath() string {
	return filepath.Join(r.modelDir, ScalerFile)
}

// ClassifierPath returns the classifier artifact location inside the model
// directory.
func (r *Registry) ClassifierPath() string {
	return filepath.Join(r.modelDir, ClassifierFile)
}

// Current returns the installed snapshot, or false if the process has
// never successfully loaded one.
func (r *Registry) Current() (*Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current, r.current != nil
}

// Reload reads the scaler and classifier from the model directory, derives
// the label vocabulary, and installs the result as the current snapshot.
// On any error the previously installed snapshot is left untouched; a
// stale but consistent snapshot beats a broken one.
func (r *Registry) Reload() (*Snapshot, error) {
	// Build the candidate fully before taking the write lock so readers
	// are blocked only for the pointer swap.
	scaler, err := r.loadScaler(r.ScalerPath())
	if err != nil {
		return nil, fmt.Errorf("load scaler: %w", err)
	}

	classifier, err := r.loadModel(r.ClassifierPath())
	if err != nil {
		return nil, fmt.Errorf("load classifier: %w", err)
	}

	labels, err := r.labels.Labels()
	if err != nil {
		return nil, fmt.Errorf("derive label vocabulary: %w", err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("no labels in dataset, refusing to install snapshot")
	}
	if classifier.NumClasses() != len(labels) {
		return nil, fmt.Errorf("classifier trained for %d classes but vocabulary has %d",
			classifier.NumClasses(), len(labels))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.version++
	snap := &Snapshot{
		Scaler:     scaler,
		Classifier: classifier,
		Labels:     labels,
		Version:    r.version,
	}
	r.current = snap
	return snap, nil
}

// TryReload attempts a reload at startup, treating missing asset files as
// a normal cold start rather than an error.
func (r *Registry) TryReload() (*Snapshot, error) {
	if _, err := os.Stat(r.ScalerPath()); os.IsNotExist(err) {
		return nil, nil
	}
	if _, err := os.Stat(r.ClassifierPath()); os.IsNotExist(err) {
		return nil, nil
	}
	return r.Reload()
}
