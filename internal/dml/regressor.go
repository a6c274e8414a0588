package dml

import (
	"errors"
	"math"

	"gocausal/internal/config"
	"gocausal/internal/learn"
)

// Effect is one final-stage slope. Value is NaN when the fit was not possible.
type Effect struct {
	Value float64
	Alpha float64
	Rows  int
	Err   error
}

// Defined reports whether the slope was estimated
func (e Effect) Defined() bool {
	return e.Err == nil && !math.IsNaN(e.Value)
}

// FinalRegressor regresses outcome residuals on treatment residuals
type FinalRegressor struct {
	CVFolds int
	NAlphas int
	Eps     float64
}

// NewFinalRegressor creates the final stage from the lasso settings
func NewFinalRegressor(cfg config.EstimatorConfig) *FinalRegressor {
	return &FinalRegressor{CVFolds: cfg.LassoCVFolds, NAlphas: cfg.LassoNAlphas, Eps: cfg.LassoEps}
}

// Regress fits the ATE on every row and the ATT on rows with treatment 1.
// Both fits share the cross-validation scheme and seed. A subset with fewer
// rows than CV folds yields an undefined Effect carrying learn.ErrTooFewSamples.
func (fr *FinalRegressor) Regress(res *Residuals, treatment []float64, randomState int64) (ate, att Effect, err error) {
	ate, err = fr.fit(res.Treatment, res.Outcome, randomState)
	if err != nil {
		return Effect{}, Effect{}, err
	}

	var tr, yr []float64
	for i, t := range treatment {
		if t == 1 {
			tr = append(tr, res.Treatment[i])
			yr = append(yr, res.Outcome[i])
		}
	}
	att, err = fr.fit(tr, yr, randomState)
	if err != nil {
		return Effect{}, Effect{}, err
	}
	return ate, att, nil
}

func (fr *FinalRegressor) fit(x, y []float64, seed int64) (Effect, error) {
	m := learn.NewLassoCV(fr.CVFolds, seed)
	m.NAlphas = fr.NAlphas
	m.Eps = fr.Eps
	if err := m.Fit(x, y); err != nil {
		if errors.Is(err, learn.ErrTooFewSamples) {
			return Effect{Value: math.NaN(), Rows: len(x), Err: err}, nil
		}
		return Effect{}, err
	}
	return Effect{Value: m.Coef, Alpha: m.Alpha, Rows: len(x)}, nil
}
