// Package config loads the YAML run file of the glmcv command.
//
// An empty path yields the defaults, which run the lizard perch example:
//
//	data:
//	  path: ""            # empty: built-in lizards data
//	model:
//	  formula: "gfrac ~ height*diameter + light + time"
//	  family: binomial
//	  weights: n
//	cv:
//	  folds: 0            # 0: leave-one-out
//	  workers: 1
//	  cost: absolute
package config

import (
	"os"
	"time"

	"github.com/YuminosukeSato/glmcv/pkg/errors"
	"github.com/YuminosukeSato/glmcv/pkg/log"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Data       DataConfig       `yaml:"data"`
	Model      ModelConfig      `yaml:"model"`
	CV         CVConfig         `yaml:"cv"`
	Bootstrap  BootstrapConfig  `yaml:"bootstrap"`
	Simulation SimulationConfig `yaml:"simulation"`
	Report     ReportConfig     `yaml:"report"`
	LogLevel   string           `yaml:"log_level"`
}

type DataConfig struct {
	Path        string   `yaml:"path"`        // CSV file, empty for the built-in lizards data
	Categorical []string `yaml:"categorical"` // columns forced to be factors
	// Proportion derives the response and trial weights from count columns.
	Proportion *ProportionConfig `yaml:"proportion"`
}

type ProportionConfig struct {
	Response  string `yaml:"response"`
	Successes string `yaml:"successes"`
	Failures  string `yaml:"failures"`
	Trials    string `yaml:"trials"`
}

type ModelConfig struct {
	Formula   string  `yaml:"formula"`
	Family    string  `yaml:"family"`
	Weights   string  `yaml:"weights"`
	MaxIter   int     `yaml:"max_iter"`
	Tolerance float64 `yaml:"tolerance"`
	// ConditionLimit is the largest accepted condition number of X'WX.
	ConditionLimit float64 `yaml:"condition_limit"`
	// Lenient accepts non-converged fits with a warning instead of failing.
	Lenient bool `yaml:"lenient"`
}

type CVConfig struct {
	Folds   int           `yaml:"folds"` // 0 or the row count: leave-one-out
	Shuffle bool          `yaml:"shuffle"`
	Seed    uint64        `yaml:"seed"`
	Workers int           `yaml:"workers"` // < 1: one per CPU
	Partial bool          `yaml:"partial"`
	Timeout time.Duration `yaml:"timeout"`
	Cost    string        `yaml:"cost"`
}

type BootstrapConfig struct {
	Replicates int    `yaml:"replicates"`
	Seed       uint64 `yaml:"seed"`
	Workers    int    `yaml:"workers"`
}

type SimulationConfig struct {
	Draws int    `yaml:"draws"`
	Seed  uint64 `yaml:"seed"`
}

type ReportConfig struct {
	Histogram string  `yaml:"histogram"` // image path, empty to skip
	Bins      int     `yaml:"bins"`
	Level     float64 `yaml:"level"` // interval level for bootstrap and simulation
	PerRow    bool    `yaml:"per_row"`
}

// Default returns the configuration of the lizard example.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Formula:        "gfrac ~ height*diameter + light + time",
			Family:         "binomial",
			Weights:        "n",
			MaxIter:        25,
			Tolerance:      1e-8,
			ConditionLimit: 1e12,
		},
		CV: CVConfig{
			Workers: 1,
			Cost:    "absolute",
		},
		Bootstrap: BootstrapConfig{
			Replicates: 1000,
			Seed:       1,
			Workers:    1,
		},
		Simulation: SimulationConfig{
			Draws: 1000,
			Seed:  1,
		},
		Report: ReportConfig{
			Bins:  10,
			Level: 0.95,
		},
		LogLevel: "info",
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults restores defaults for zero values a file cannot mean.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Model.Family == "" {
		cfg.Model.Family = def.Model.Family
	}
	if cfg.Model.MaxIter <= 0 {
		cfg.Model.MaxIter = def.Model.MaxIter
	}
	if cfg.Model.Tolerance <= 0 {
		cfg.Model.Tolerance = def.Model.Tolerance
	}
	if cfg.Model.ConditionLimit == 0 {
		cfg.Model.ConditionLimit = def.Model.ConditionLimit
	}
	if cfg.CV.Cost == "" {
		cfg.CV.Cost = def.CV.Cost
	}
	if cfg.Bootstrap.Replicates <= 0 {
		cfg.Bootstrap.Replicates = def.Bootstrap.Replicates
	}
	if cfg.Simulation.Draws <= 0 {
		cfg.Simulation.Draws = def.Simulation.Draws
	}
	if cfg.Report.Bins <= 0 {
		cfg.Report.Bins = def.Report.Bins
	}
	if cfg.Report.Level == 0 {
		cfg.Report.Level = def.Report.Level
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
}

// Validate checks the values that cannot be checked by the packages that
// consume them.
func (c *Config) Validate() error {
	if c.Model.Formula == "" {
		return errors.NewValidationError("model.formula", "must not be empty", c.Model.Formula)
	}
	switch c.Model.Family {
	case "binomial", "poisson", "gaussian":
	default:
		return errors.NewValidationError("model.family", "must be one of binomial, poisson, gaussian", c.Model.Family)
	}
	if c.Model.ConditionLimit < 1 {
		return errors.NewValidationError("model.condition_limit", "must be at least 1", c.Model.ConditionLimit)
	}
	if c.CV.Folds == 1 || c.CV.Folds < 0 {
		return errors.NewValidationError("cv.folds", "must be 0 (leave-one-out) or at least 2", c.CV.Folds)
	}
	if c.CV.Timeout < 0 {
		return errors.NewValidationError("cv.timeout", "must not be negative", c.CV.Timeout)
	}
	if c.Report.Level <= 0 || c.Report.Level >= 1 {
		return errors.NewValidationError("report.level", "must be in (0, 1)", c.Report.Level)
	}
	if p := c.Data.Proportion; p != nil {
		if p.Response == "" || p.Successes == "" || p.Failures == "" || p.Trials == "" {
			return errors.NewValidationError("data.proportion",
				"response, successes, failures and trials are all required", *p)
		}
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.NewValidationError("log_level", err.Error(), c.LogLevel)
	}
	return nil
}
