package learn

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrTooFewSamples is returned when there are fewer rows than CV folds
var ErrTooFewSamples = errors.New("too few samples for cross-validation")

// LassoCV fits y = a + b*x with an L1 penalty on b, choosing the penalty by
// k-fold cross-validated mean squared error over a log-spaced grid.
//
// The objective per fit is (1/2n)*||y - a - b*x||^2 + alpha*|b|, which for a
// single predictor has the closed form b = S(cov(x,y), alpha) / var(x) where S
// is soft-thresholding. Folds are contiguous and unshuffled, so RandomState
// only exists to keep call sites symmetric with the other learners.
type LassoCV struct {
	CV          int
	NAlphas     int
	Eps         float64
	RandomState int64

	Alpha     float64
	Coef      float64
	Intercept float64
	Alphas    []float64
	MSEPath   []float64
}

// NewLassoCV creates a cross-validated lasso with the usual grid
func NewLassoCV(cv int, seed int64) *LassoCV {
	return &LassoCV{CV: cv, NAlphas: 100, Eps: 1e-3, RandomState: seed}
}

// Fit selects alpha by cross-validation and refits on all rows
func (m *LassoCV) Fit(x, y []float64) error {
	n := len(x)
	if n != len(y) {
		return fmt.Errorf("lasso: %d predictors but %d targets", n, len(y))
	}
	if n < m.CV {
		return fmt.Errorf("%w: %d rows, %d folds", ErrTooFewSamples, n, m.CV)
	}

	m.Alphas = alphaGrid(x, y, m.NAlphas, m.Eps)
	folds, err := KFold(n, m.CV, false, m.RandomState)
	if err != nil {
		return err
	}

	m.MSEPath = make([]float64, len(m.Alphas))
	for _, f := range folds {
		xt, yt := gather(x, f.Train), gather(y, f.Train)
		xv, yv := gather(x, f.Test), gather(y, f.Test)
		for a, alpha := range m.Alphas {
			b, c := lassoFit(xt, yt, alpha)
			var sse float64
			for i := range xv {
				r := yv[i] - c - b*xv[i]
				sse += r * r
			}
			m.MSEPath[a] += sse / float64(len(xv)) / float64(len(folds))
		}
	}

	m.Alpha = m.Alphas[floats.MinIdx(m.MSEPath)]
	m.Coef, m.Intercept = lassoFit(x, y, m.Alpha)
	return nil
}

// Predict returns intercept + coef*x
func (m *LassoCV) Predict(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = m.Intercept + m.Coef*v
	}
	return out
}

// alphaGrid spans alpha_max down to alpha_max*eps on a log scale, where
// alpha_max is the smallest penalty that zeroes the slope on the full data
func alphaGrid(x, y []float64, nAlphas int, eps float64) []float64 {
	n := float64(len(x))
	alphaMax := math.Abs(stat.Covariance(x, y, nil)) * (n - 1) / n
	if alphaMax == 0 || nAlphas <= 1 {
		return []float64{alphaMax}
	}
	grid := make([]float64, nAlphas)
	floats.LogSpan(grid, alphaMax, alphaMax*eps)
	return grid
}

// lassoFit returns the slope and intercept for a fixed penalty
func lassoFit(x, y []float64, alpha float64) (float64, float64) {
	mx, my := stat.Mean(x, nil), stat.Mean(y, nil)
	var sxx, sxy float64
	for i := range x {
		dx := x[i] - mx
		sxx += dx * dx
		sxy += dx * (y[i] - my)
	}
	n := float64(len(x))
	sxx /= n
	sxy /= n
	if sxx == 0 {
		return 0, my
	}
	b := softThreshold(sxy, alpha) / sxx
	return b, my - b*mx
}

func softThreshold(v, alpha float64) float64 {
	switch {
	case v > alpha:
		return v - alpha
	case v < -alpha:
		return v + alpha
	default:
		return 0
	}
}

func gather(v []float64, positions []int) []float64 {
	out := make([]float64, len(positions))
	for i, p := range positions {
		out[i] = v[p]
	}
	return out
}
