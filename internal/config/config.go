// Package config defines the process configuration and its loading order:
// defaults, then an optional YAML file, then MUDRA_* environment
// variables.
package config

import (
	"os"
	"path/filepath"
)

// Config holds all process configuration.
type Config struct {
	// Addr is the HTTP listen address, e.g. ":5000".
	Addr string `koanf:"addr"`

	// DataDir is the root directory for all persisted state. Dataset,
	// model, and database paths default to locations under it.
	DataDir string `koanf:"data_dir"`

	// DatasetDir holds one sample file per gesture label.
	DatasetDir string `koanf:"dataset_dir"`

	// ModelDir holds the serialized scaler and classifier artifact.
	ModelDir string `koanf:"model_dir"`

	// DBPath is the SQLite database location.
	DBPath string `koanf:"db_path"`

	// PluginDir holds the action plugin directories.
	PluginDir string `koanf:"plugin_dir"`

	// PluginTimeoutMs bounds one plugin execution.
	PluginTimeoutMs int `koanf:"plugin_timeout_ms"`

	// SampleCap is the per-label dataset cap.
	SampleCap int `koanf:"sample_cap"`

	// Threshold is the confidence a prediction must exceed to be active.
	Threshold float64 `koanf:"threshold"`

	// CooldownMs is the delay before a dispatched action executes.
	CooldownMs int `koanf:"cooldown_ms"`

	// CoalesceActions drops repeat dispatches of an action while one is
	// already pending.
	CoalesceActions bool `koanf:"coalesce_actions"`

	// TrainerCmd is an external trainer command line. Empty selects the
	// built-in trainer.
	TrainerCmd string `koanf:"trainer_cmd"`

	// TrainerTimeoutMs bounds one external trainer run.
	TrainerTimeoutMs int `koanf:"trainer_timeout_ms"`

	// CameraID selects the capture device for the local pipeline.
	CameraID int `koanf:"camera_id"`

	// LocalPipeline enables the built-in camera-to-inference loop.
	LocalPipeline bool `koanf:"local_pipeline"`

	// Headless disables the system tray.
	Headless bool `koanf:"headless"`

	// StaticDir serves the web UI when set.
	StaticDir string `koanf:"static_dir"`
}

// New returns a Config populated with defaults. Paths are rooted under
// ~/.mudra unless overridden.
func New() *Config {
	dataDir := ".mudra"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".mudra")
	}

	return &Config{
		Addr:             ":5000",
		DataDir:          dataDir,
		PluginTimeoutMs:  5000,
		SampleCap:        500,
		Threshold:        0.70,
		CooldownMs:       3000,
		CoalesceActions:  true,
		TrainerTimeoutMs: 600000,
		CameraID:         0,
	}
}

// applyDerived fills path fields left empty from DataDir.
func (c *Config) applyDerived() {
	if c.DatasetDir == "" {
		c.DatasetDir = filepath.Join(c.DataDir, "dataset")
	}
	if c.ModelDir == "" {
		c.ModelDir = c.DataDir
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "mudra.db")
	}
	if c.PluginDir == "" {
		c.PluginDir = filepath.Join(c.DataDir, "plugins")
	}
}
