package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// DefaultSharpness controls how quickly centroid confidence falls off with
// distance. Scores are -Sharpness * distance before the softmax.
const DefaultSharpness = 4.0

// CentroidClassifier assigns probabilities from the distance between a
// scaled vector and each class's mean training vector. It is the built-in
// trainer's artifact type; external trainers may emit other types.
type CentroidClassifier struct {
	Dimension int         `json:"dim"`
	Centroids [][]float64 `json:"centroids"`
	Sharpness float64     `json:"sharpness"`
}

// TrainCentroids computes per-class mean vectors from scaled training rows
// and their class indices. Every class in [0, numClasses) must have at
// least one row.
func TrainCentroids(x [][]float64, y []int, numClasses int) (*CentroidClassifier, error) {
	if len(x) == 0 {
		return nil, errors.New("train centroids: no rows")
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("train centroids: %d rows but %d labels", len(x), len(y))
	}
	if numClasses <= 0 {
		return nil, errors.New("train centroids: no classes")
	}

	dim := len(x[0])
	centroids := make([][]float64, numClasses)
	counts := make([]int, numClasses)
	for i := range centroids {
		centroids[i] = make([]float64, dim)
	}

	for i, row := range x {
		if len(row) != dim {
			return nil, fmt.Errorf("train centroids: row %d has %d values, expected %d", i, len(row), dim)
		}
		cls := y[i]
		if cls < 0 || cls >= numClasses {
			return nil, fmt.Errorf("train centroids: row %d has class %d out of range", i, cls)
		}
		for j, v := range row {
			centroids[cls][j] += v
		}
		counts[cls]++
	}

	for cls, count := range counts {
		if count == 0 {
			return nil, fmt.Errorf("train centroids: class %d has no rows", cls)
		}
		for j := range centroids[cls] {
			centroids[cls][j] /= float64(count)
		}
	}

	return &CentroidClassifier{
		Dimension: dim,
		Centroids: centroids,
		Sharpness: DefaultSharpness,
	}, nil
}

// NumClasses returns the number of trained classes.
func (c *CentroidClassifier) NumClasses() int {
	return len(c.Centroids)
}

// Dim returns the feature dimensionality of the trained centroids.
func (c *CentroidClassifier) Dim() int {
	return c.Dimension
}

// Probabilities returns a softmax over negative scaled distances to each
// class centroid.
func (c *CentroidClassifier) Probabilities(vec []float64) ([]float64, error) {
	if len(vec) != c.Dimension {
		return nil, fmt.Errorf("%w: got %d, classifier expects %d", ErrDimensionMismatch, len(vec), c.Dimension)
	}

	scores := make([]float64, len(c.Centroids))
	for i, centroid := range c.Centroids {
		var sum float64
		for j, v := range vec {
			d := v - centroid[j]
			sum += d * d
		}
		scores[i] = -c.Sharpness * math.Sqrt(sum)
	}

	return softmax(scores), nil
}

// loadCentroid deserializes a centroid artifact payload.
func loadCentroid(data json.RawMessage) (Classifier, error) {
	var c CentroidClassifier
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if c.Dimension <= 0 || len(c.Centroids) == 0 {
		return nil, errors.New("centroid artifact has no centroids")
	}
	for i, centroid := range c.Centroids {
		if len(centroid) != c.Dimension {
			return nil, fmt.Errorf("centroid %d has %d values, expected %d", i, len(centroid), c.Dimension)
		}
	}
	if c.Sharpness <= 0 {
		c.Sharpness = DefaultSharpness
	}
	return &c, nil
}
