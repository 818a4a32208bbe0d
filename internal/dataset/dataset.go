// Package dataset provides durable per-label sample storage for gesture
// training data. Each label owns one sample file in the dataset directory;
// the directory listing is the single source of truth for which labels exist.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// DefaultSampleCap is the maximum number of samples stored per label.
const DefaultSampleCap = 500

// sampleExt is the file extension for per-label sample files.
const sampleExt = ".json"

// ErrInvalidLabel is returned when a label normalizes to an unusable name.
var ErrInvalidLabel = errors.New("invalid gesture label")

// ErrVectorMismatch is returned when an appended sample's length differs
// from the samples already stored for that label.
var ErrVectorMismatch = errors.New("sample length does not match existing dataset")

var labelPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// NormalizeLabel converts a user-supplied gesture name into its canonical
// stored form: lowercase with spaces replaced by underscores.
func NormalizeLabel(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// DisplayLabel converts a stored label into the form shown to clients.
func DisplayLabel(label string) string {
	return strings.ToUpper(label)
}

// Store accumulates labeled landmark samples on disk, one file per label.
// Appends for the same label are serialized; different labels proceed
// independently.
type Store struct {
	dir string
	cap int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Store rooted at dir, creating the directory if needed.
// A sampleCap <= 0 falls back to DefaultSampleCap.
func New(dir string, sampleCap int) (*Store, error) {
	if sampleCap <= 0 {
		sampleCap = DefaultSampleCap
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create dataset directory: %w", err)
	}
	return &Store{
		dir:   dir,
		cap:   sampleCap,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Dir returns the dataset directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Cap returns the per-label sample cap.
func (s *Store) Cap() int {
	return s.cap
}

// lockFor returns the mutex serializing access to a single label's file.
func (s *Store) lockFor(label string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[label]
	if !ok {
		l = &sync.Mutex{}
		s.locks[label] = l
	}
	return l
}

func (s *Store) path(label string) string {
	return filepath.Join(s.dir, label+sampleExt)
}

func validLabel(label string) error {
	if label == "" || !labelPattern.MatchString(label) {
		return fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
	return nil
}

// Collect appends a landmark vector to the label's dataset and persists the
// full updated array before returning. If the label is already at the cap,
// the existing count is returned with done=true and nothing is written.
// The label must already be normalized.
func (s *Store) Collect(label string, vec []float64) (count int, done bool, err error) {
	if err := validLabel(label); err != nil {
		return 0, false, err
	}

	l := s.lockFor(label)
	l.Lock()
	defer l.Unlock()

	samples, err := s.load(label)
	if err != nil {
		return 0, false, err
	}

	if len(samples) >= s.cap {
		return len(samples), true, nil
	}

	if len(samples) > 0 && len(vec) != len(samples[0]) {
		return 0, false, fmt.Errorf("%w: got %d values, dataset %q has %d",
			ErrVectorMismatch, len(vec), label, len(samples[0]))
	}

	samples = append(samples, vec)
	if err := s.save(label, samples); err != nil {
		return 0, false, err
	}

	return len(samples), len(samples) >= s.cap, nil
}

// Samples returns all stored vectors for a label in insertion order.
// A missing label yields an empty slice.
func (s *Store) Samples(label string) ([][]float64, error) {
	if err := validLabel(label); err != nil {
		return nil, err
	}

	l := s.lockFor(label)
	l.Lock()
	defer l.Unlock()

	return s.load(label)
}

// Count returns the number of stored samples for a label.
func (s *Store) Count(label string) (int, error) {
	samples, err := s.Samples(label)
	if err != nil {
		return 0, err
	}
	return len(samples), nil
}

// Delete removes a label's dataset entirely. Deleting an absent label is
// not an error.
func (s *Store) Delete(label string) error {
	if err := validLabel(label); err != nil {
		return err
	}

	l := s.lockFor(label)
	l.Lock()
	defer l.Unlock()

	if err := os.Remove(s.path(label)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete dataset for %q: %w", label, err)
	}
	return nil
}

// Labels returns the label vocabulary: the lexicographically sorted set of
// labels with a persisted dataset. It is derived fresh from the directory
// on every call and never cached.
func (s *Store) Labels() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("scan dataset directory: %w", err)
	}

	labels := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), sampleExt) {
			continue
		}
		labels = append(labels, strings.TrimSuffix(e.Name(), sampleExt))
	}

	sort.Strings(labels)
	return labels, nil
}

// load reads the sample array for a label. Caller holds the label lock.
func (s *Store) load(label string) ([][]float64, error) {
	data, err := os.ReadFile(s.path(label))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dataset for %q: %w", label, err)
	}

	var samples [][]float64
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, fmt.Errorf("parse dataset for %q: %w", label, err)
	}
	return samples, nil
}

// save writes the full sample array durably: encode to a temp file in the
// same directory, sync, then rename over the label's file.
func (s *Store) save(label string, samples [][]float64) error {
	data, err := json.Marshal(samples)
	if err != nil {
		return fmt.Errorf("encode dataset for %q: %w", label, err)
	}

	tmp, err := os.CreateTemp(s.dir, label+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %q: %w", label, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write dataset for %q: %w", label, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync dataset for %q: %w", label, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close dataset for %q: %w", label, err)
	}

	if err := os.Rename(tmpName, s.path(label)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace dataset for %q: %w", label, err)
	}
	return nil
}
