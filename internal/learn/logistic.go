package learn

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// ErrSingleClass is returned when a classifier is fit on labels of one class
var ErrSingleClass = errors.New("labels contain a single class")

// LogisticRegression is a binary L2-regularized logistic classifier fit with L-BFGS.
//
// It minimizes 0.5*||w||^2 + C * sum(logloss); the intercept is not penalized.
// Fitting is deterministic: it starts from zero and has no random component.
type LogisticRegression struct {
	C       float64
	MaxIter int
	Tol     float64

	Coef       []float64
	Intercept  float64
	Converged  bool
	Iterations int
}

// NewLogisticRegression creates a classifier with inverse regularization strength c
func NewLogisticRegression(c float64, maxIter int) *LogisticRegression {
	return &LogisticRegression{C: c, MaxIter: maxIter, Tol: 1e-4}
}

// Fit learns coefficients from x (n×p) and 0/1 labels y. Non-convergence is not
// an error; it is reported through Converged.
func (m *LogisticRegression) Fit(x mat.Matrix, y []float64) error {
	xd := asDense(x)
	n, p := xd.Dims()
	if n != len(y) {
		return fmt.Errorf("logistic: %d rows but %d labels", n, len(y))
	}
	var pos int
	for _, v := range y {
		if v == 1 {
			pos++
		}
	}
	if pos == 0 || pos == n {
		return ErrSingleClass
	}

	c := m.C
	z := make([]float64, n)
	linear := func(beta []float64) {
		w, b := beta[:p], beta[p]
		for i := 0; i < n; i++ {
			row := xd.RawRowView(i)
			s := b
			for j, v := range row {
				s += w[j] * v
			}
			z[i] = s
		}
	}

	problem := optimize.Problem{
		Func: func(beta []float64) float64 {
			linear(beta)
			var loss float64
			for i, zi := range z {
				loss += logOnePlusExp(zi) - y[i]*zi
			}
			var reg float64
			for _, w := range beta[:p] {
				reg += w * w
			}
			return 0.5*reg + c*loss
		},
		Grad: func(grad, beta []float64) {
			linear(beta)
			for j := 0; j < p; j++ {
				grad[j] = beta[j]
			}
			grad[p] = 0
			for i, zi := range z {
				r := c * (sigmoid(zi) - y[i])
				row := xd.RawRowView(i)
				for j, v := range row {
					grad[j] += r * v
				}
				grad[p] += r
			}
		},
	}

	settings := &optimize.Settings{
		MajorIterations:   m.MaxIter,
		GradientThreshold: m.Tol,
	}
	result, err := optimize.Minimize(problem, make([]float64, p+1), settings, &optimize.LBFGS{})
	if result == nil || len(result.X) != p+1 {
		return fmt.Errorf("logistic: optimizer failed: %w", err)
	}
	for _, v := range result.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("logistic: optimizer diverged")
		}
	}

	m.Coef = append([]float64(nil), result.X[:p]...)
	m.Intercept = result.X[p]
	m.Iterations = result.MajorIterations
	m.Converged = err == nil && result.Status != optimize.IterationLimit
	return nil
}

// PredictProba returns P(y=1) for every row of x
func (m *LogisticRegression) PredictProba(x mat.Matrix) []float64 {
	xd := asDense(x)
	n, _ := xd.Dims()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		s := m.Intercept
		for j, v := range xd.RawRowView(i) {
			s += m.Coef[j] * v
		}
		out[i] = sigmoid(s)
	}
	return out
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// logOnePlusExp computes log(1+exp(z)) without overflow
func logOnePlusExp(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}

func asDense(x mat.Matrix) *mat.Dense {
	if d, ok := x.(*mat.Dense); ok {
		return d
	}
	return mat.DenseCopyOf(x)
}
