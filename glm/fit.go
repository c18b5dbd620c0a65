// Package glm は一般化線形モデル（GLM）を反復重み付き最小二乗法（IRLS）で推定します。
//
// Spec はモデル式・分布族・ウェイト列の組で、任意のデータセットに対して
// 独立したModelを何度でも学習できます。Modelは学習後に変更されません。
//
//	spec, err := glm.NewSpec("gfrac ~ height*diameter + light + time", glm.Binomial(),
//	    glm.WithWeights("n"))
//	m, err := spec.Fit(ctx, ds)
//	p, err := m.PredictResponse(ds)
package glm

import (
	"context"
	"fmt"
	"math"

	"github.com/YuminosukeSato/glmcv/core/model"
	"github.com/YuminosukeSato/glmcv/dataset"
	"github.com/YuminosukeSato/glmcv/formula"
	"github.com/YuminosukeSato/glmcv/pkg/errors"
	"github.com/YuminosukeSato/glmcv/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// R の glm.control と同じ既定値
const (
	DefaultMaxIter        = 25
	DefaultTolerance      = 1e-8
	DefaultConditionLimit = 1e12

	// 逸脱度が非有限になった場合のステップ半減の上限
	maxStepHalvings = 20
)

// Spec はモデル仕様（モデル式、分布族、ウェイト列）
type Spec struct {
	formula   *formula.Formula
	family    Family
	weights   string
	maxIter   int
	tol       float64
	condLimit float64
	strict    bool
	logger    log.Logger
}

// NewSpec は新しいモデル仕様を作成する
func NewSpec(f string, family Family, opts ...Option) (*Spec, error) {
	parsed, err := formula.Parse(f)
	if err != nil {
		return nil, err
	}
	return NewSpecFromFormula(parsed, family, opts...)
}

// NewSpecFromFormula は解析済みのモデル式からモデル仕様を作成する
func NewSpecFromFormula(f *formula.Formula, family Family, opts ...Option) (*Spec, error) {
	if f == nil {
		return nil, errors.NewValidationError("formula", "is required", nil)
	}
	if family == nil {
		return nil, errors.NewValidationError("family", "is required", nil)
	}
	s := &Spec{
		formula:   f,
		family:    family,
		maxIter:   DefaultMaxIter,
		tol:       DefaultTolerance,
		condLimit: DefaultConditionLimit,
		strict:    true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxIter < 1 {
		return nil, errors.NewValidationError("max_iter", "must be positive", s.maxIter)
	}
	if s.tol <= 0 {
		return nil, errors.NewValidationError("tolerance", "must be positive", s.tol)
	}
	// 条件数は常に1以上
	if s.condLimit < 1 {
		return nil, errors.NewValidationError("condition_limit", "must be at least 1", s.condLimit)
	}
	if s.logger == nil {
		s.logger = log.GetLoggerWithName("glm")
	}
	s.logger = s.logger.With(log.FormulaKey, f.String(), log.FamilyKey, family.Name())
	return s, nil
}

// Formula はモデル式を返す
func (s *Spec) Formula() *formula.Formula { return s.formula }

// Family は分布族を返す
func (s *Spec) Family() Family { return s.family }

// Weights はウェイト列の名前を返す（ない場合は空文字列）
func (s *Spec) Weights() string { return s.weights }

// Response は応答変数の名前を返す
func (s *Spec) Response() string { return s.formula.Response }

// Refit は訓練データで新しいモデルを学習する。model.Refitterを満たす。
func (s *Spec) Refit(ctx context.Context, train *dataset.Dataset) (model.Predictor, error) {
	m, err := s.Fit(ctx, train)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Fit はデータセットでモデルを学習する。
//
// 訓練行数がパラメータ数より少ない場合、デザイン行列の列がすべて0の場合
// （カテゴリ水準が消えた場合など）、重み付き正規方程式が特異な場合は
// RankDeficiencyErrorを返す。反復上限までに収束しない場合はConvergenceErrorを返す。
func (s *Spec) Fit(ctx context.Context, ds *dataset.Dataset) (m *Model, err error) {
	defer errors.Recover(&err, "glm.Fit")

	design, err := s.formula.Design(ds)
	if err != nil {
		return nil, err
	}
	X, err := design.Matrix(ds)
	if err != nil {
		return nil, err
	}
	y, err := s.formula.ResponseValues(ds)
	if err != nil {
		return nil, err
	}
	w, err := s.priorWeights(ds)
	if err != nil {
		return nil, err
	}
	if err := s.family.Validate(y, w); err != nil {
		return nil, err
	}

	n, p := X.Dims()
	names := design.Names()
	if n < p {
		return nil, errors.NewRankDeficiencyError("glm.Fit", matrixRank(X), p, nil)
	}
	if zero := zeroColumns(X, names); len(zero) > 0 {
		return nil, errors.NewRankDeficiencyError("glm.Fit", matrixRank(X), p, zero)
	}

	state, err := s.irls(ctx, X, y, w, names)
	if err != nil {
		return nil, err
	}
	return newModel(s, design, X, y, w, state), nil
}

func (s *Spec) priorWeights(ds *dataset.Dataset) ([]float64, error) {
	if s.weights == "" {
		w := make([]float64, ds.Len())
		for i := range w {
			w[i] = 1
		}
		return w, nil
	}
	return ds.Float(s.weights)
}

// irlsState はIRLSの最終状態
type irlsState struct {
	beta       []float64
	eta        []float64
	mu         []float64
	deviance   float64
	iterations int
	converged  bool
	xtwx       *mat.SymDense
}

func (s *Spec) irls(ctx context.Context, X *mat.Dense, y, w []float64, names []string) (*irlsState, error) {
	n, p := X.Dims()
	link := s.family.Link()

	mu := make([]float64, n)
	eta := make([]float64, n)
	for i := range y {
		mu[i] = s.family.Start(y[i], w[i])
		eta[i] = link.Link(mu[i])
	}
	devOld := s.deviance(y, mu, w)

	st := &irlsState{}
	var betaOld *mat.VecDense
	z := make([]float64, n)
	ww := make([]float64, n)

	for iter := 1; iter <= s.maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "glm.Fit")
		}

		for i := 0; i < n; i++ {
			d := link.DMuDEta(eta[i])
			z[i] = eta[i] + (y[i]-mu[i])/d
			ww[i] = w[i] * d * d / s.family.Variance(mu[i])
		}

		xtwx, xtwz := weightedNormal(X, ww, z)
		var chol mat.Cholesky
		if ok := chol.Factorize(xtwx); !ok || chol.Cond() > s.condLimit {
			return nil, errors.NewRankDeficiencyError("glm.Fit", matrixRank(X), p, nil)
		}
		beta := mat.NewVecDense(p, nil)
		if err := chol.SolveVecTo(beta, xtwz); err != nil {
			return nil, errors.NewRankDeficiencyError("glm.Fit", matrixRank(X), p, nil)
		}

		dev := s.update(X, beta, eta, mu, y, w)
		// 逸脱度が非有限ならステップを半分にする
		for halving := 0; ; halving++ {
			unstable := errors.CheckScalar("IRLS deviance", dev, iter)
			if unstable == nil {
				break
			}
			if betaOld == nil || halving >= maxStepHalvings {
				return nil, errors.NewConvergenceError("IRLS", iter, dev,
					fmt.Sprintf("deviance is not finite after %d step halvings: %v", halving, unstable))
			}
			beta.AddVec(beta, betaOld)
			beta.ScaleVec(0.5, beta)
			dev = s.update(X, beta, eta, mu, y, w)
		}

		s.logger.Debug("IRLS iteration",
			log.IterationKey, iter,
			log.DevianceKey, dev,
		)

		st.iterations = iter
		st.deviance = dev
		st.beta = beta.RawVector().Data
		betaOld = beta

		if math.Abs(dev-devOld)/(math.Abs(dev)+0.1) < s.tol {
			st.converged = true
			break
		}
		devOld = dev
	}

	if !st.converged {
		if s.strict {
			return nil, errors.NewConvergenceError("IRLS", st.iterations, st.deviance,
				fmt.Sprintf("relative deviance change above %g", s.tol))
		}
		errors.Warn(errors.NewConvergenceWarning("IRLS", st.iterations,
			fmt.Sprintf("returning the last iterate, deviance %.6g", st.deviance)))
	}

	// 共分散は最終的な μ での重みから求める
	for i := 0; i < n; i++ {
		d := link.DMuDEta(eta[i])
		ww[i] = w[i] * d * d / s.family.Variance(mu[i])
	}
	st.xtwx, _ = weightedNormal(X, ww, z)
	st.eta = eta
	st.mu = mu

	if err := errors.CheckNumericalStability("glm.Fit", st.beta, st.iterations); err != nil {
		return nil, err
	}
	if len(st.beta) != len(names) {
		return nil, errors.NewDimensionError("glm.Fit", len(names), len(st.beta), 0)
	}
	return st, nil
}

// update は β から η, μ を更新し、逸脱度を返す
func (s *Spec) update(X *mat.Dense, beta *mat.VecDense, eta, mu, y, w []float64) float64 {
	n, _ := X.Dims()
	etaVec := mat.NewVecDense(n, eta)
	etaVec.MulVec(X, beta)
	link := s.family.Link()
	for i := range eta {
		mu[i] = link.Inverse(eta[i])
	}
	return s.deviance(y, mu, w)
}

func (s *Spec) deviance(y, mu, w []float64) float64 {
	var dev float64
	for i := range y {
		dev += s.family.UnitDeviance(y[i], mu[i], w[i])
	}
	return dev
}

// weightedNormal は X'WX と X'Wz を計算する
func weightedNormal(X *mat.Dense, w, z []float64) (*mat.SymDense, *mat.VecDense) {
	n, p := X.Dims()
	xtwx := mat.NewSymDense(p, nil)
	xtwz := mat.NewVecDense(p, nil)
	for i := 0; i < n; i++ {
		row := X.RawRowView(i)
		for a := 0; a < p; a++ {
			if row[a] == 0 {
				continue
			}
			wa := w[i] * row[a]
			xtwz.SetVec(a, xtwz.AtVec(a)+wa*z[i])
			for b := a; b < p; b++ {
				xtwx.SetSym(a, b, xtwx.At(a, b)+wa*row[b])
			}
		}
	}
	return xtwx, xtwz
}

// zeroColumns は全要素が0の列名を返す
func zeroColumns(X *mat.Dense, names []string) []string {
	n, p := X.Dims()
	var out []string
	for j := 0; j < p; j++ {
		allZero := true
		for i := 0; i < n; i++ {
			if X.At(i, j) != 0 {
				allZero = false
				break
			}
		}
		if allZero {
			out = append(out, names[j])
		}
	}
	return out
}

// matrixRank は特異値分解によるXの数値ランク
func matrixRank(X *mat.Dense) int {
	var svd mat.SVD
	if !svd.Factorize(X, mat.SVDNone) {
		return 0
	}
	values := svd.Values(nil)
	if len(values) == 0 {
		return 0
	}
	n, p := X.Dims()
	tol := values[0] * float64(max(n, p)) * epsilon
	rank := 0
	for _, v := range values {
		if v > tol {
			rank++
		}
	}
	return rank
}
