// Package config - evaluation run configuration.
package config

import (
	"bytes"
	"os"
	"runtime"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-eval/evaluation"
	"github.com/nvr-ai/go-eval/report"
)

// Config represents the configuration of an evaluation run.
type Config struct {
	// GroundTruth is the path to the COCO-style ground-truth file.
	GroundTruth string `json:"ground_truth" yaml:"ground_truth"`
	// Predictions is the path to the flat detection results file.
	Predictions string `json:"predictions" yaml:"predictions"`
	// Threshold is the overlap a prediction must strictly exceed to match.
	Threshold float64 `json:"threshold" yaml:"threshold"`
	// Workers caps concurrent category runs.
	Workers int `json:"workers" yaml:"workers"`
	// Output selects the report format.
	Output report.Format `json:"output" yaml:"output"`
	// IncludeDeclaredCategories also evaluates categories declared in the ground truth that
	// have no annotations.
	IncludeDeclaredCategories bool `json:"include_declared_categories" yaml:"include_declared_categories"`
	// Debug enables debug logging.
	Debug bool `json:"debug" yaml:"debug"`
}

// DefaultConfig returns the AP@0.5 configuration with a table report.
//
// @example
// cfg := DefaultConfig()
// cfg.GroundTruth = "annotations/val.json"
// cfg.Predictions = "predictions.json"
func DefaultConfig() *Config {
	return &Config{
		Threshold: evaluation.DefaultThreshold,
		Workers:   runtime.NumCPU(),
		Output:    report.FormatTable,
	}
}

// LoadConfig reads a YAML configuration file on top of DefaultConfig.
//
// Unknown keys are rejected so that typos do not silently fall back to defaults.
//
// Arguments:
// - filename: Path to the YAML file.
//
// Returns:
// - *Config: The merged configuration.
// - error: If the file cannot be read, decoded or validated.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	cfg := DefaultConfig()
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal config")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", filename)
	}
	return cfg, nil
}

// SaveConfig writes the configuration as YAML.
func (c *Config) SaveConfig(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}
	return nil
}

// Validate checks the evaluator settings and the output format. Input paths are checked
// when they are opened.
func (c *Config) Validate() error {
	if err := c.EvaluatorOptions().Validate(); err != nil {
		return err
	}
	if _, err := report.ParseFormat(string(c.Output)); err != nil {
		return err
	}
	return nil
}

// EvaluatorOptions returns the evaluator settings of the configuration.
func (c *Config) EvaluatorOptions() evaluation.Options {
	return evaluation.Options{
		Threshold: c.Threshold,
		Workers:   c.Workers,
	}
}
