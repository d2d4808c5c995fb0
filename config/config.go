// Package config holds the options shared by the worker recorder and the
// aggregator, and loads them from a YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/caseflow/caseflow/model"
)

const (
	// EnvVarPrefix prefixes every environment variable read by caseflow.
	EnvVarPrefix = "CASEFLOW"

	// DefaultEndpoint is where results are uploaded unless configured otherwise.
	DefaultEndpoint = "https://www.tesults.com/results"
)

// EnvVar returns the prefixed environment variable name for suffix.
func EnvVar(suffix string) string {
	return EnvVarPrefix + "_" + suffix
}

// Options configures recording and aggregation.
type Options struct {
	// Target token identifying the results project. Without it nothing is
	// recorded or uploaded.
	Target string `yaml:"target"`
	// Root directory of per-case attachments, laid out as <suite>/<name>/
	Files string `yaml:"files"`
	// Directory shared by workers and the aggregator
	TempDir string `yaml:"temp_dir"`
	// Upload endpoint
	Endpoint string `yaml:"endpoint"`
	// Optional build case
	Build *model.Build `yaml:"build"`
}

// DefaultTempDir returns the shared directory used when none is configured.
func DefaultTempDir() string {
	return filepath.Join(os.TempDir(), "caseflow")
}

// Enabled reports whether a target is configured.
func (o Options) Enabled() bool {
	return o.Target != ""
}

// WithDefaults fills in the temp dir and endpoint when unset.
func (o Options) WithDefaults() Options {
	if o.TempDir == "" {
		o.TempDir = DefaultTempDir()
	}
	if o.Endpoint == "" {
		o.Endpoint = DefaultEndpoint
	}
	return o
}

// Load reads options from a YAML file.
func Load(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes options from YAML.
func Parse(data []byte) (Options, error) {
	var opts Options
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if opts.Build != nil && opts.Build.Name == "" {
		opts.Build = nil
	}
	return opts, nil
}
