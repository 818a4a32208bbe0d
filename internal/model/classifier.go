package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sync"
)

// Classifier scores a scaled landmark vector against the trained classes.
// Probabilities returns one value per class, in label vocabulary order,
// summing to 1.
type Classifier interface {
	Probabilities(vec []float64) ([]float64, error)
	NumClasses() int
	Dim() int
}

// artifact is the on-disk envelope for a serialized classifier. The Type
// tag selects the loader; Model holds the type-specific payload.
type artifact struct {
	Type  string          `json:"type"`
	Model json.RawMessage `json:"model"`
}

// Loader deserializes a classifier payload of one artifact type.
type Loader func(data json.RawMessage) (Classifier, error)

var (
	loadersMu sync.RWMutex
	loaders   = map[string]Loader{
		"centroid": loadCentroid,
		"mlp":      loadNetwork,
	}
)

// RegisterLoader registers a loader for an artifact type, replacing any
// existing loader of the same name.
func RegisterLoader(name string, fn Loader) {
	loadersMu.Lock()
	defer loadersMu.Unlock()
	loaders[name] = fn
}

// SaveClassifier serializes a classifier payload under the given artifact
// type and writes it atomically to path.
func SaveClassifier(path, typ string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s classifier: %w", typ, err)
	}
	data, err := json.Marshal(artifact{Type: typ, Model: raw})
	if err != nil {
		return fmt.Errorf("encode classifier envelope: %w", err)
	}
	return writeFileAtomic(path, data)
}

// LoadClassifier reads a classifier artifact from path and dispatches to
// the loader registered for its type.
func LoadClassifier(path string) (Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read classifier: %w", err)
	}

	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse classifier envelope: %w", err)
	}

	loadersMu.RLock()
	loader, ok := loaders[a.Type]
	loadersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown classifier artifact type %q", a.Type)
	}

	c, err := loader(a.Model)
	if err != nil {
		return nil, fmt.Errorf("load %s classifier: %w", a.Type, err)
	}
	return c, nil
}

// softmax converts raw scores into a probability distribution. The max
// score is subtracted first for numerical stability.
func softmax(scores []float64) []float64 {
	maxScore := math.Inf(-1)
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}

	out := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		out[i] = math.Exp(s - maxScore)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
