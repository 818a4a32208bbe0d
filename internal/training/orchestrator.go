// Package training runs the two-stage training pipeline (prepare, then
// train) as a single background job. A run either completes both stages
// and atomically installs the new assets, or leaves the served assets
// exactly as they were.
package training

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/mudra/internal/assets"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/model"
)

// State identifies where a training job is in its lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StatePreparing State = "preparing"
	StateTraining  State = "training"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// ErrNoData is returned when a training run starts with no labeled data.
var ErrNoData = errors.New("no gesture data collected")

// ErrBusy is returned when a run is requested while another is in flight.
// Concurrent runs are rejected, not queued.
var ErrBusy = errors.New("a training run is already in progress")

// Event describes a job transition delivered to the notify callback.
type Event struct {
	RunID   string
	State   State
	Message string
	Err     error
}

// Notify receives job transition events. It is called from the job
// goroutine and must not block for long.
type Notify func(Event)

// DataSource supplies the label vocabulary and per-label samples. The
// dataset store is the production implementation.
type DataSource interface {
	Labels() ([]string, error)
	Samples(label string) ([][]float64, error)
}

// Reloader installs freshly trained assets. The asset registry is the
// production implementation.
type Reloader interface {
	Reload() (*assets.Snapshot, error)
}

// Recorder persists run history. May be nil.
type Recorder interface {
	RecordStart(id string, startedAt time.Time) error
	RecordFinish(id string, status string, errMsg string, samples, labels int) error
}

// TrainingSet is the prepared, already scaled training data handed to the
// trainer: row i of X has integer class Y[i], an index into Labels.
type TrainingSet struct {
	X      [][]float64
	Y      []int
	Labels []string
}

// Config wires an Orchestrator.
type Config struct {
	Data         DataSource
	Registry     Reloader
	Trainer      Trainer
	ScalerPath   string
	ArtifactPath string
	Runs         Recorder
}

// Orchestrator coordinates the prepare and train stages. At most one job
// runs per process; the job is process-scoped and survives client
// disconnects.
type Orchestrator struct {
	cfg Config

	mu     sync.Mutex
	state  State
	notify Notify
}

// New creates an idle Orchestrator.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{cfg: cfg, state: StateIdle}
}

// SetNotify installs the transition callback. Call before Start.
func (o *Orchestrator) SetNotify(fn Notify) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notify = fn
}

// State returns the current job state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Start begins a training run in the background and returns its run ID.
// Returns ErrBusy if a run is already preparing or training.
func (o *Orchestrator) Start(ctx context.Context) (string, error) {
	o.mu.Lock()
	if o.state == StatePreparing || o.state == StateTraining {
		o.mu.Unlock()
		return "", ErrBusy
	}
	o.state = StatePreparing
	o.mu.Unlock()

	id := uuid.NewString()
	if o.cfg.Runs != nil {
		if err := o.cfg.Runs.RecordStart(id, time.Now()); err != nil {
			log.Printf("training: record run start: %v", err)
		}
	}

	go o.run(ctx, id)
	return id, nil
}

func (o *Orchestrator) run(ctx context.Context, id string) {
	o.emit(Event{RunID: id, State: StatePreparing, Message: "Preparing data..."})

	set, err := o.prepare()
	if err != nil {
		o.finish(id, StateFailed, err, 0, 0)
		return
	}

	o.transition(StateTraining)
	o.emit(Event{RunID: id, State: StateTraining, Message: "Training model..."})

	if err := o.cfg.Trainer.Train(ctx, set, o.cfg.ArtifactPath); err != nil {
		o.finish(id, StateFailed, fmt.Errorf("train classifier: %w", err), len(set.X), len(set.Labels))
		return
	}

	// Both stages succeeded; only now swap the served snapshot. A failed
	// reload still leaves the prior snapshot installed.
	if _, err := o.cfg.Registry.Reload(); err != nil {
		o.finish(id, StateFailed, fmt.Errorf("install trained assets: %w", err), len(set.X), len(set.Labels))
		return
	}

	metrics.ModelReady.Set(1)
	o.finish(id, StateSucceeded, nil, len(set.X), len(set.Labels))
}

// prepare derives the label vocabulary, builds the training matrix, fits
// and persists the scaler, and returns the scaled training set. The
// scaler is persisted only after the full matrix build succeeds.
func (o *Orchestrator) prepare() (*TrainingSet, error) {
	labels, err := o.cfg.Data.Labels()
	if err != nil {
		return nil, fmt.Errorf("derive label vocabulary: %w", err)
	}
	if len(labels) == 0 {
		return nil, ErrNoData
	}

	var (
		x   [][]float64
		y   []int
		dim = -1
	)
	for idx, label := range labels {
		samples, err := o.cfg.Data.Samples(label)
		if err != nil {
			return nil, fmt.Errorf("load samples for %q: %w", label, err)
		}
		if len(samples) == 0 {
			return nil, fmt.Errorf("label %q has no samples", label)
		}
		for _, row := range samples {
			if dim < 0 {
				dim = len(row)
			} else if len(row) != dim {
				return nil, fmt.Errorf("label %q has samples of %d values, expected %d", label, len(row), dim)
			}
			x = append(x, row)
			y = append(y, idx)
		}
	}

	scaler, err := model.FitScaler(x)
	if err != nil {
		return nil, fmt.Errorf("fit scaler: %w", err)
	}
	if err := model.SaveScaler(scaler, o.cfg.ScalerPath); err != nil {
		return nil, fmt.Errorf("persist scaler: %w", err)
	}

	scaled, err := scaler.TransformMatrix(x)
	if err != nil {
		return nil, fmt.Errorf("scale training matrix: %w", err)
	}

	return &TrainingSet{X: scaled, Y: y, Labels: labels}, nil
}

func (o *Orchestrator) transition(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

func (o *Orchestrator) finish(id string, final State, err error, samples, labels int) {
	// Return to idle before announcing the outcome so a notify handler
	// can immediately start another run.
	o.transition(StateIdle)

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
		log.Printf("training run %s failed: %v", id, err)
	} else {
		log.Printf("training run %s succeeded (%d samples, %d labels)", id, samples, labels)
	}

	metrics.TrainingRuns.WithLabelValues(string(final)).Inc()
	o.emit(Event{RunID: id, State: final, Err: err, Message: errMsg})

	if o.cfg.Runs != nil {
		if rerr := o.cfg.Runs.RecordFinish(id, string(final), errMsg, samples, labels); rerr != nil {
			log.Printf("training: record run finish: %v", rerr)
		}
	}
}

func (o *Orchestrator) emit(ev Event) {
	o.mu.Lock()
	fn := o.notify
	o.mu.Unlock()

	if fn != nil {
		fn(ev)
	}
}
