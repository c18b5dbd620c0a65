package glm

import (
	"github.com/YuminosukeSato/glmcv/pkg/log"
)

// Option はSpecを設定する関数
type Option func(*Spec)

// WithWeights sets the field holding the prior weights (binomial trial
// counts). Without it every observation has weight one.
func WithWeights(field string) Option {
	return func(s *Spec) {
		s.weights = field
	}
}

// WithMaxIter sets the maximum number of IRLS iterations.
func WithMaxIter(n int) Option {
	return func(s *Spec) {
		s.maxIter = n
	}
}

// WithTolerance sets the relative deviance change below which IRLS stops.
func WithTolerance(tol float64) Option {
	return func(s *Spec) {
		s.tol = tol
	}
}

// WithConditionLimit sets the largest condition number of the weighted
// normal equations accepted before a fit is declared rank deficient.
func WithConditionLimit(limit float64) Option {
	return func(s *Spec) {
		s.condLimit = limit
	}
}

// WithStrictConvergence controls whether exhausting the iteration limit is an
// error (the default) or only a warning.
func WithStrictConvergence(strict bool) Option {
	return func(s *Spec) {
		s.strict = strict
	}
}

// WithLogger sets the logger used for per-iteration diagnostics.
func WithLogger(logger log.Logger) Option {
	return func(s *Spec) {
		s.logger = logger
	}
}
