package glm

import (
	"math"

	"github.com/YuminosukeSato/glmcv/core/model"
	"github.com/YuminosukeSato/glmcv/dataset"
	"github.com/YuminosukeSato/glmcv/formula"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Model は学習済みのGLM。学習後は変更されず、複数のgoroutineから安全に使える。
type Model struct {
	spec   *Spec
	design *formula.Design

	beta       []float64
	cov        *mat.SymDense
	dispersion float64

	y, w, mu []float64

	deviance     float64
	nullDeviance float64
	logLik       float64
	nullLogLik   float64
	pearson      float64

	iterations int
	converged  bool
	rank       int
	dfResidual int
	dfNull     int
}

var (
	_ model.Predictor   = (*Model)(nil)
	_ model.Diagnostics = (*Model)(nil)
)

func newModel(s *Spec, design *formula.Design, X *mat.Dense, y, w []float64, st *irlsState) *Model {
	n, p := X.Dims()
	m := &Model{
		spec:       s,
		design:     design,
		beta:       st.beta,
		y:          y,
		w:          w,
		mu:         st.mu,
		deviance:   st.deviance,
		iterations: st.iterations,
		converged:  st.converged,
		rank:       p,
		dfResidual: n - p,
	}

	for i := range y {
		r := y[i] - m.mu[i]
		m.pearson += w[i] * r * r / s.family.Variance(m.mu[i])
	}

	m.dispersion = 1
	if !s.family.FixedDispersion() && m.dfResidual > 0 {
		m.dispersion = m.pearson / float64(m.dfResidual)
	}

	// (X'WX)^-1 * φ
	var chol mat.Cholesky
	if chol.Factorize(st.xtwx) {
		var inv mat.SymDense
		if err := chol.InverseTo(&inv); err == nil {
			inv.ScaleSym(m.dispersion, &inv)
			m.cov = &inv
		}
	}

	// 切片のみのモデル
	nullMu := make([]float64, n)
	if s.formula.Intercept {
		mean := floats.Dot(w, y) / floats.Sum(w)
		for i := range nullMu {
			nullMu[i] = mean
		}
		m.dfNull = n - 1
	} else {
		for i := range nullMu {
			nullMu[i] = s.family.Link().Inverse(0)
		}
		m.dfNull = n
	}
	m.nullDeviance = s.deviance(y, nullMu, w)

	m.logLik = s.family.LogLikelihood(y, m.mu, w, m.deviance)
	m.nullLogLik = s.family.LogLikelihood(y, nullMu, w, m.nullDeviance)
	return m
}

// Spec はモデルを学習した仕様を返す
func (m *Model) Spec() *Spec { return m.spec }

// Names はデザイン行列の列名（係数の名前）を返す
func (m *Model) Names() []string { return m.design.Names() }

// Coefficients は係数のコピーを返す
func (m *Model) Coefficients() []float64 {
	return append([]float64(nil), m.beta...)
}

// Coefficient は名前で係数を返す
func (m *Model) Coefficient(name string) (float64, bool) {
	for i, n := range m.design.Names() {
		if n == name {
			return m.beta[i], true
		}
	}
	return 0, false
}

// Covariance は係数の共分散行列を返す。特異で計算できない場合はnil
func (m *Model) Covariance() *mat.SymDense {
	if m.cov == nil {
		return nil
	}
	c := mat.NewSymDense(m.cov.SymmetricDim(), nil)
	c.CopySym(m.cov)
	return c
}

// StdErrors は係数の標準誤差を返す
func (m *Model) StdErrors() []float64 {
	se := make([]float64, len(m.beta))
	for i := range se {
		if m.cov == nil {
			se[i] = math.NaN()
			continue
		}
		se[i] = math.Sqrt(m.cov.At(i, i))
	}
	return se
}

// PredictLink はデータセットの各行の線形予測子 η を返す
func (m *Model) PredictLink(ds *dataset.Dataset) ([]float64, error) {
	X, err := m.design.Matrix(ds)
	if err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	eta := mat.NewVecDense(n, nil)
	eta.MulVec(X, mat.NewVecDense(len(m.beta), m.beta))
	return eta.RawVector().Data, nil
}

// PredictResponse はデータセットの各行について応答スケールの予測値 μ = g⁻¹(η) を返す
func (m *Model) PredictResponse(ds *dataset.Dataset) ([]float64, error) {
	eta, err := m.PredictLink(ds)
	if err != nil {
		return nil, err
	}
	link := m.spec.family.Link()
	for i, e := range eta {
		eta[i] = link.Inverse(e)
	}
	return eta, nil
}

// Observed は学習データの応答値のコピーを返す
func (m *Model) Observed() []float64 { return append([]float64(nil), m.y...) }

// PriorWeights は学習データの事前ウェイト（二項モデルでは試行回数）のコピーを返す
func (m *Model) PriorWeights() []float64 { return append([]float64(nil), m.w...) }

// Fitted は学習データでの予測値のコピーを返す
func (m *Model) Fitted() []float64 { return append([]float64(nil), m.mu...) }

// ResidualType は残差の種類
type ResidualType int

const (
	// ResponseResidual は y - μ
	ResponseResidual ResidualType = iota
	// PearsonResidual は (y - μ)·√w / √V(μ)
	PearsonResidual
	// DevianceResidual は sign(y - μ)·√d
	DevianceResidual
)

// Residuals は学習データの残差を返す
func (m *Model) Residuals(kind ResidualType) []float64 {
	out := make([]float64, len(m.y))
	fam := m.spec.family
	for i := range out {
		r := m.y[i] - m.mu[i]
		switch kind {
		case PearsonResidual:
			out[i] = r * math.Sqrt(m.w[i]) / math.Sqrt(fam.Variance(m.mu[i]))
		case DevianceResidual:
			d := math.Sqrt(math.Max(fam.UnitDeviance(m.y[i], m.mu[i], m.w[i]), 0))
			if r < 0 {
				d = -d
			}
			out[i] = d
		default:
			out[i] = r
		}
	}
	return out
}

// Deviance は残差逸脱度
func (m *Model) Deviance() float64 { return m.deviance }

// NullDeviance は切片のみのモデルの逸脱度
func (m *Model) NullDeviance() float64 { return m.nullDeviance }

// LogLikelihood は対数尤度
func (m *Model) LogLikelihood() float64 { return m.logLik }

// AIC は赤池情報量規準
func (m *Model) AIC() float64 {
	k := float64(len(m.beta))
	if !m.spec.family.FixedDispersion() {
		k++
	}
	return -2*m.logLik + 2*k
}

// PearsonChi2 はピアソンのχ²統計量
func (m *Model) PearsonChi2() float64 { return m.pearson }

// DispersionRatio はピアソンχ²を残差自由度で割った過分散の指標。
// 二項・ポアソンモデルで1を大きく超える場合は過分散を示す。
func (m *Model) DispersionRatio() float64 {
	if m.dfResidual <= 0 {
		return math.NaN()
	}
	return m.pearson / float64(m.dfResidual)
}

// Dispersion は共分散の計算に使った分散パラメータ φ
func (m *Model) Dispersion() float64 { return m.dispersion }

// McFaddenR2 はMcFaddenの擬似決定係数 1 - logL/logL₀
func (m *Model) McFaddenR2() float64 {
	if m.nullLogLik == 0 {
		return math.NaN()
	}
	return 1 - m.logLik/m.nullLogLik
}

// Converged は反復が収束したかどうか
func (m *Model) Converged() bool { return m.converged }

// Iterations はIRLSの反復回数
func (m *Model) Iterations() int { return m.iterations }

// Rank はデザイン行列のランク
func (m *Model) Rank() int { return m.rank }

// DFResidual は残差自由度
func (m *Model) DFResidual() int { return m.dfResidual }

// DFNull は切片のみのモデルの残差自由度
func (m *Model) DFNull() int { return m.dfNull }

// NumObservations は学習に使った観測数
func (m *Model) NumObservations() int { return len(m.y) }

// Coef は係数表の1行
type Coef struct {
	Name      string
	Estimate  float64
	StdErr    float64
	Statistic float64 // z値（分散既知）またはt値
	PValue    float64
}

// Table は係数表（推定値、標準誤差、検定統計量、両側p値）を返す。
// 分散パラメータを推定する族ではt分布を使う。
func (m *Model) Table() []Coef {
	se := m.StdErrors()
	names := m.design.Names()

	var survival func(float64) float64
	if m.spec.family.FixedDispersion() || m.dfResidual <= 0 {
		survival = distuv.UnitNormal.Survival
	} else {
		survival = distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(m.dfResidual)}.Survival
	}

	out := make([]Coef, len(m.beta))
	for i := range out {
		stat := m.beta[i] / se[i]
		out[i] = Coef{
			Name:      names[i],
			Estimate:  m.beta[i],
			StdErr:    se[i],
			Statistic: stat,
			PValue:    2 * survival(math.Abs(stat)),
		}
	}
	return out
}

// ExportWeights は係数をシリアライズ可能な形式で返す
func (m *Model) ExportWeights() *model.ModelWeights {
	return &model.ModelWeights{
		ModelType:    "GLM",
		Version:      model.WeightsVersion,
		Formula:      m.spec.formula.String(),
		Family:       m.spec.family.Name(),
		Link:         m.spec.family.Link().Name(),
		Features:     m.design.Names(),
		Coefficients: m.Coefficients(),
		StdErrors:    m.StdErrors(),
		Metadata: map[string]interface{}{
			"deviance":      m.deviance,
			"null_deviance": m.nullDeviance,
			"aic":           m.AIC(),
			"iterations":    m.iterations,
			"converged":     m.converged,
			"n":             len(m.y),
		},
	}
}
