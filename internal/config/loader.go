package config

import (
	"errors"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering, lowest precedence first:
//  1. defaults (New)
//  2. YAML file named by MUDRA_CONFIG, if set
//  3. environment variables with the MUDRA_ prefix
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("MUDRA_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// MUDRA_SAMPLE_CAP -> sample_cap; underscores preserved to match the
	// koanf tags on Config.
	envProvider := env.Provider("MUDRA_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "mudra_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	cfg.applyDerived()

	if cfg.Addr == "" {
		return nil, errors.New("addr must not be empty")
	}
	if cfg.Threshold <= 0 || cfg.Threshold >= 1 {
		return nil, errors.New("threshold must be between 0 and 1")
	}
	if cfg.SampleCap <= 0 {
		return nil, errors.New("sample_cap must be positive")
	}
	return &cfg, nil
}
