package training

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/ayusman/mudra/internal/model"
)

// Trainer turns a prepared training set into a classifier artifact at the
// given path. Implementations may run entirely in-process or shell out to
// an external trainer.
type Trainer interface {
	Train(ctx context.Context, set *TrainingSet, artifactPath string) error
}

// BuiltinTrainer trains the built-in centroid classifier. It is the
// default when no external trainer command is configured.
type BuiltinTrainer struct{}

// Train fits per-class centroids and writes the artifact.
func (BuiltinTrainer) Train(ctx context.Context, set *TrainingSet, artifactPath string) error {
	c, err := model.TrainCentroids(set.X, set.Y, len(set.Labels))
	if err != nil {
		return err
	}
	return model.SaveClassifier(artifactPath, "centroid", c)
}

// ExecTrainer invokes an external trainer process. The training set is
// written to a temp file whose path is passed in MUDRA_TRAINING_SET; the
// trainer must write its artifact to the path in MUDRA_MODEL_PATH.
type ExecTrainer struct {
	Command []string
	Timeout time.Duration
}

// execSet is the JSON document handed to the external trainer.
type execSet struct {
	X      [][]float64 `json:"x"`
	Y      []int       `json:"y"`
	Labels []string    `json:"labels"`
}

// Train runs the configured command and verifies it produced an artifact.
func (t *ExecTrainer) Train(ctx context.Context, set *TrainingSet, artifactPath string) error {
	if len(t.Command) == 0 {
		return fmt.Errorf("exec trainer has no command configured")
	}

	data, err := json.Marshal(execSet{X: set.X, Y: set.Y, Labels: set.Labels})
	if err != nil {
		return fmt.Errorf("encode training set: %w", err)
	}

	tmp, err := os.CreateTemp("", "mudra-trainset-*.json")
	if err != nil {
		return fmt.Errorf("create training set file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write training set: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close training set: %w", err)
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, t.Command[0], t.Command[1:]...)
	cmd.Env = append(os.Environ(),
		"MUDRA_TRAINING_SET="+tmpName,
		"MUDRA_MODEL_PATH="+artifactPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("trainer timed out after %s", timeout)
		}
		if stderr.Len() > 0 {
			return fmt.Errorf("trainer failed: %w, stderr: %s", err, stderr.String())
		}
		return fmt.Errorf("trainer failed: %w", err)
	}

	if _, err := os.Stat(artifactPath); err != nil {
		return fmt.Errorf("trainer exited cleanly but produced no artifact at %s", artifactPath)
	}
	return nil
}
