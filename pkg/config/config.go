// Package config loads recorder settings from config.yaml, .env and the environment.
package config

import (
	"os"
	"path/filepath"

	"github.com/moumouls/aero-4g-cam/pkg/flow"
	"github.com/moumouls/aero-4g-cam/pkg/scenario"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config represents the workspace configuration (config.yaml).
type Config struct {
	// Flow is an optional YAML flow file replacing the built-in scenario.
	Flow string `yaml:"flow"`

	// Policy selects the built-in scenario variant.
	Policy scenario.Policy `yaml:"policy"`

	// Recording overrides the capture settings of the built-in scenario.
	Recording flow.RecordingConfig `yaml:"recording"`

	// Execution settings
	AppiumURL string            `yaml:"appiumUrl"`
	Storage   string            `yaml:"storage"` // local or r2
	Retries   int               `yaml:"retries"`
	Env       map[string]string `yaml:"env"` // Flow file variables
}

// Default returns the configuration used when no config.yaml exists.
func Default() *Config {
	return &Config{
		Policy:    scenario.DefaultPolicy(),
		Recording: flow.DefaultRecordingConfig(),
	}
}

// Load loads configuration from a file. Unset keys keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	if cfg.Flow != "" && !filepath.IsAbs(cfg.Flow) {
		cfg.Flow = filepath.Join(filepath.Dir(path), cfg.Flow)
	}

	return cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	// Try config.yaml first
	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// Try config.yml
	configPath = filepath.Join(dir, "config.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, return defaults
	return Default(), nil
}
