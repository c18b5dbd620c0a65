package glm

import (
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/glmcv/dataset"
	"github.com/YuminosukeSato/glmcv/pkg/errors"
	"github.com/YuminosukeSato/glmcv/pkg/log"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distmv"
)

// Simulation は事後予測シミュレーションの結果。
// Draws の各行が1回のシミュレーション、各列がデータセットの1行に対応する。
type Simulation struct {
	Draws        *mat.Dense
	Coefficients *mat.Dense
}

// Simulate は係数を N(β̂, Cov) から引き、各係数ベクトルについて分布族から応答を
// 生成する。応答は学習時と同じスケール（二項なら成功割合）で返る。
func (m *Model) Simulate(ds *dataset.Dataset, nsim int, src rand.Source) (*Simulation, error) {
	if nsim < 1 {
		return nil, errors.NewValidationError("nsim", "must be positive", nsim)
	}
	if m.cov == nil {
		return nil, errors.Wrap(errors.ErrSingularMatrix, "glm.Simulate: coefficient covariance is not available")
	}

	X, err := m.design.Matrix(ds)
	if err != nil {
		return nil, err
	}
	w, err := m.spec.priorWeights(ds)
	if err != nil {
		return nil, err
	}

	coefDist, ok := distmv.NewNormal(m.beta, m.cov, src)
	if !ok {
		return nil, errors.Wrap(errors.ErrSingularMatrix, "glm.Simulate: covariance is not positive definite")
	}

	n, p := X.Dims()
	draws := mat.NewDense(nsim, n, nil)
	coefs := mat.NewDense(nsim, p, nil)
	link := m.spec.family.Link()
	eta := mat.NewVecDense(n, nil)

	for s := 0; s < nsim; s++ {
		beta := coefDist.Rand(nil)
		coefs.SetRow(s, beta)
		eta.MulVec(X, mat.NewVecDense(p, beta))
		for i := 0; i < n; i++ {
			mu := link.Inverse(eta.AtVec(i))
			draws.Set(s, i, m.spec.family.Sample(mu, w[i], m.dispersion, src))
		}
	}

	m.spec.logger.Debug("simulation done",
		log.OperationKey, log.OperationSimulate,
		log.ReplicatesKey, nsim,
		log.SamplesKey, n,
	)
	return &Simulation{Draws: draws, Coefficients: coefs}, nil
}

// Len はシミュレーション回数
func (s *Simulation) Len() int {
	r, _ := s.Draws.Dims()
	return r
}

// Mean は行ごとのシミュレーション平均
func (s *Simulation) Mean() []float64 {
	_, n := s.Draws.Dims()
	out := make([]float64, n)
	for i := range out {
		out[i] = stat.Mean(mat.Col(nil, i, s.Draws), nil)
	}
	return out
}

// Interval は行ごとの中央 level 区間（例: 0.95）を返す
func (s *Simulation) Interval(level float64) (lo, hi []float64, err error) {
	if level <= 0 || level >= 1 {
		return nil, nil, errors.NewValidationError("level", "must be in (0, 1)", level)
	}
	_, n := s.Draws.Dims()
	lo = make([]float64, n)
	hi = make([]float64, n)
	alpha := (1 - level) / 2
	for i := 0; i < n; i++ {
		col := mat.Col(nil, i, s.Draws)
		sort.Float64s(col)
		lo[i] = stat.Quantile(alpha, stat.Empirical, col, nil)
		hi[i] = stat.Quantile(1-alpha, stat.Empirical, col, nil)
	}
	return lo, hi, nil
}

// Coverage は観測値が予測区間に入る割合を返す
func (s *Simulation) Coverage(observed []float64, level float64) (float64, error) {
	_, n := s.Draws.Dims()
	if len(observed) != n {
		return 0, errors.NewDimensionError("Simulation.Coverage", n, len(observed), 0)
	}
	lo, hi, err := s.Interval(level)
	if err != nil {
		return 0, err
	}
	inside := 0
	for i, y := range observed {
		if y >= lo[i] && y <= hi[i] {
			inside++
		}
	}
	return float64(inside) / float64(n), nil
}
