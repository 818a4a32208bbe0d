// Package model provides the feature scaler and classifier artifacts used
// by the inference path, together with their on-disk formats.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// ErrDimensionMismatch is returned when a vector's length does not match
// the dimensionality the scaler was fitted on.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Scaler is a fitted per-feature affine normalization: for each feature i,
// scaled = (x[i] - Mean[i]) / Scale[i].
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// FitScaler fits a standard scaler (mean and standard deviation per column)
// over the rows of matrix. Columns with zero variance get scale 1 so that
// transforming never divides by zero.
func FitScaler(matrix [][]float64) (*Scaler, error) {
	if len(matrix) == 0 {
		return nil, errors.New("fit scaler: empty matrix")
	}

	dim := len(matrix[0])
	for i, row := range matrix {
		if len(row) != dim {
			return nil, fmt.Errorf("fit scaler: row %d has %d values, expected %d", i, len(row), dim)
		}
	}

	n := float64(len(matrix))
	mean := make([]float64, dim)
	for _, row := range matrix {
		for j, v := range row {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= n
	}

	scale := make([]float64, dim)
	for _, row := range matrix {
		for j, v := range row {
			d := v - mean[j]
			scale[j] += d * d
		}
	}
	for j := range scale {
		scale[j] = math.Sqrt(scale[j] / n)
		if scale[j] < 1e-12 {
			scale[j] = 1
		}
	}

	return &Scaler{Mean: mean, Scale: scale}, nil
}

// Dim returns the feature dimensionality the scaler was fitted on.
func (s *Scaler) Dim() int {
	return len(s.Mean)
}

// Transform scales a single vector. The vector length must equal Dim.
func (s *Scaler) Transform(vec []float64) ([]float64, error) {
	if len(vec) != s.Dim() {
		return nil, fmt.Errorf("%w: got %d, scaler fitted on %d", ErrDimensionMismatch, len(vec), s.Dim())
	}

	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = (v - s.Mean[i]) / s.Scale[i]
	}
	return out, nil
}

// TransformMatrix scales every row of a matrix.
func (s *Scaler) TransformMatrix(matrix [][]float64) ([][]float64, error) {
	out := make([][]float64, len(matrix))
	for i, row := range matrix {
		scaled, err := s.Transform(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = scaled
	}
	return out, nil
}

// SaveScaler writes the scaler to path via a temp file and rename, so a
// crash mid-write never leaves a truncated scaler behind.
func SaveScaler(s *Scaler, path string) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode scaler: %w", err)
	}
	return writeFileAtomic(path, data)
}

// LoadScaler reads a scaler from path.
func LoadScaler(path string) (*Scaler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scaler: %w", err)
	}

	var s Scaler
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scaler: %w", err)
	}
	if len(s.Mean) == 0 || len(s.Mean) != len(s.Scale) {
		return nil, fmt.Errorf("parse scaler: inconsistent mean/scale lengths %d/%d", len(s.Mean), len(s.Scale))
	}
	return &s, nil
}

// writeFileAtomic writes data to path through a temp file in the same
// directory followed by a rename.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
