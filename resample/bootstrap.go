// Package resample provides the nonparametric bootstrap for GLM coefficients.
package resample

import (
	"context"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/YuminosukeSato/glmcv/core/parallel"
	"github.com/YuminosukeSato/glmcv/dataset"
	"github.com/YuminosukeSato/glmcv/glm"
	"github.com/YuminosukeSato/glmcv/pkg/errors"
	"github.com/YuminosukeSato/glmcv/pkg/log"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultReplicates はブートストラップ反復の既定回数
const DefaultReplicates = 1000

type config struct {
	replicates int
	seed       uint64
	workers    int
	logger     log.Logger
}

// Option はブートストラップを設定する関数
type Option func(*config)

// WithReplicates sets the number of bootstrap replicates.
func WithReplicates(b int) Option {
	return func(c *config) { c.replicates = b }
}

// WithSeed sets the base seed. Replicate b draws its rows from a PCG seeded
// with (seed, b), so results do not depend on the number of workers.
func WithSeed(seed uint64) Option {
	return func(c *config) { c.seed = seed }
}

// WithWorkers sets how many replicates are fitted concurrently. Values below
// one use one worker per CPU core.
func WithWorkers(n int) Option {
	return func(c *config) { c.workers = n }
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// BootstrapResult はブートストラップの結果
type BootstrapResult struct {
	// Names は係数名
	Names []string
	// Estimate は全データでの係数
	Estimate []float64
	// Replicates は成功した反復の係数（行が反復、列が係数）。反復番号順
	Replicates *mat.Dense
	// Failed は学習に失敗して除外された反復の番号
	Failed []int
	// Requested は要求された反復回数
	Requested int
	Elapsed   time.Duration
}

// Bootstrap は行を復元抽出したデータでspecを繰り返し学習する。
// ランク落ちや非収束で失敗した反復は除外してFailedに記録する。
func Bootstrap(ctx context.Context, spec *glm.Spec, ds *dataset.Dataset, opts ...Option) (*BootstrapResult, error) {
	cfg := &config{replicates: DefaultReplicates, workers: 1}
	for _, opt := range opts {
		opt(cfg)
	}
	if spec == nil {
		return nil, errors.NewValidationError("spec", "is required", nil)
	}
	if cfg.replicates < 1 {
		return nil, errors.NewValidationError("replicates", "must be positive", cfg.replicates)
	}
	if ds == nil {
		return nil, errors.NewDataError("resample.Bootstrap", "", "dataset is nil")
	}
	n := ds.Len()
	if n < 2 {
		return nil, errors.NewDataError("resample.Bootstrap", "", "at least 2 observations are required")
	}
	logger := cfg.logger
	if logger == nil {
		logger = log.GetLoggerWithName("resample")
	}
	logger = logger.With(log.ReplicatesKey, cfg.replicates, log.RandomSeedKey, cfg.seed)

	full, err := spec.Fit(ctx, ds)
	if err != nil {
		return nil, errors.Wrap(err, "resample.Bootstrap: fit on the full data")
	}
	names := full.Names()
	p := len(names)

	start := time.Now()
	coefs := make([][]float64, cfg.replicates)
	var (
		mu     sync.Mutex
		failed []int
	)

	err = parallel.ForEach(ctx, cfg.replicates, cfg.workers, func(ctx context.Context, b int) error {
		r := rand.New(rand.NewPCG(cfg.seed, uint64(b)))
		rows := make([]int, n)
		for i := range rows {
			rows[i] = r.IntN(n)
		}
		sample, err := ds.Subset(rows)
		if err != nil {
			return err
		}
		m, err := spec.Fit(ctx, sample)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			mu.Lock()
			failed = append(failed, b)
			mu.Unlock()
			logger.Debug("Replicate failed", log.IterationKey, b, log.ErrAttrKey, err.Error())
			return nil
		}
		coefs[b] = m.Coefficients()
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "resample.Bootstrap")
	}
	sort.Ints(failed)

	ok := cfg.replicates - len(failed)
	if ok == 0 {
		return nil, errors.Newf("resample.Bootstrap: all %d replicates failed", cfg.replicates)
	}
	reps := mat.NewDense(ok, p, nil)
	row := 0
	for _, c := range coefs {
		if c == nil {
			continue
		}
		reps.SetRow(row, c)
		row++
	}

	res := &BootstrapResult{
		Names:      names,
		Estimate:   full.Coefficients(),
		Replicates: reps,
		Failed:     failed,
		Requested:  cfg.replicates,
		Elapsed:    time.Since(start),
	}
	if len(failed) > 0 {
		logger.Warn("Some bootstrap replicates failed", log.FailedKey, len(failed))
	}
	logger.Info("Bootstrap finished",
		log.OperationKey, log.OperationBootstrap,
		log.DurationMsKey, res.Elapsed.Milliseconds(),
	)
	return res, nil
}

// Len は成功した反復の数
func (r *BootstrapResult) Len() int {
	n, _ := r.Replicates.Dims()
	return n
}

// StdErrors は係数ごとのブートストラップ標準誤差
func (r *BootstrapResult) StdErrors() []float64 {
	_, p := r.Replicates.Dims()
	out := make([]float64, p)
	for j := range out {
		out[j] = stat.StdDev(mat.Col(nil, j, r.Replicates), nil)
	}
	return out
}

// Bias は反復平均と全データ推定値の差
func (r *BootstrapResult) Bias() []float64 {
	_, p := r.Replicates.Dims()
	out := make([]float64, p)
	for j := range out {
		out[j] = stat.Mean(mat.Col(nil, j, r.Replicates), nil) - r.Estimate[j]
	}
	return out
}

// PercentileInterval は係数ごとの中央 level パーセンタイル区間
func (r *BootstrapResult) PercentileInterval(level float64) (lo, hi []float64, err error) {
	if level <= 0 || level >= 1 {
		return nil, nil, errors.NewValidationError("level", "must be in (0, 1)", level)
	}
	_, p := r.Replicates.Dims()
	lo = make([]float64, p)
	hi = make([]float64, p)
	alpha := (1 - level) / 2
	for j := 0; j < p; j++ {
		col := mat.Col(nil, j, r.Replicates)
		sort.Float64s(col)
		lo[j] = stat.Quantile(alpha, stat.Empirical, col, nil)
		hi[j] = stat.Quantile(1-alpha, stat.Empirical, col, nil)
	}
	return lo, hi, nil
}
