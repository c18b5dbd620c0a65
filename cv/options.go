package cv

import (
	"time"

	"github.com/YuminosukeSato/glmcv/pkg/log"
)

type config struct {
	folds    int
	workers  int
	partial  bool
	timeout  time.Duration
	logger   log.Logger
	splitter Splitter
}

func defaultConfig() *config {
	return &config{
		workers: 1,
	}
}

// Option configures an evaluation.
type Option func(*config)

// WithFolds sets the number of folds K. Zero, or K equal to the number of
// observations, means leave-one-out.
func WithFolds(k int) Option {
	return func(c *config) {
		c.folds = k
	}
}

// WithWorkers sets how many folds are refitted concurrently. The default is
// one (sequential); values below one use one worker per CPU core.
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = n
	}
}

// WithPartialResults keeps evaluating after a fold fails. Failing
// observations are recorded as missing (NaN) and reported in Result.Failed
// instead of aborting the evaluation.
func WithPartialResults(partial bool) Option {
	return func(c *config) {
		c.partial = partial
	}
}

// WithTimeout bounds the whole evaluation. Exceeding it is always fatal.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithLogger sets the logger for progress and fold failures.
func WithLogger(logger log.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithSplitter overrides the fold layout. It takes precedence over WithFolds.
func WithSplitter(s Splitter) Option {
	return func(c *config) {
		c.splitter = s
	}
}
