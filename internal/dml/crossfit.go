package dml

import (
	"fmt"
	"math"

	"gocausal/domain/causal"
	"gocausal/internal"
	"gocausal/internal/config"
	"gocausal/internal/features"
	"gocausal/internal/learn"
)

// Residuals holds one held-out residual per row, at the row's original position
type Residuals struct {
	Treatment []float64
	Outcome   []float64
}

// CrossFitter estimates the nuisance functions E[T|X] and E[Y|X] out of fold
type CrossFitter struct {
	cfg    config.EstimatorConfig
	logger *internal.Logger

	// ScaleWithinFolds standardizes each training partition on its own statistics
	// and applies them to the held-out fold. dm must then be unscaled.
	ScaleWithinFolds bool
}

// NewCrossFitter creates a cross-fitter using the configured learners
func NewCrossFitter(cfg config.EstimatorConfig, logger *internal.Logger) *CrossFitter {
	return &CrossFitter{cfg: cfg, logger: logger.OrDefault(), ScaleWithinFolds: cfg.ScaleWithinFolds}
}

// CrossFit partitions rows into nSplits shuffled folds. For each fold it fits a
// logistic treatment model and a random forest outcome model on the other
// folds and stores actual minus predicted for the held-out rows. A fold whose
// training partition holds a single treatment class aborts the run with a
// fold training error.
func (cf *CrossFitter) CrossFit(dm *features.DesignMatrix, treatment, outcome []float64, nSplits int, randomState int64) (*Residuals, error) {
	n := dm.Rows()
	if len(treatment) != n || len(outcome) != n {
		return nil, fmt.Errorf("crossfit: %d rows but %d treatment and %d outcome values", n, len(treatment), len(outcome))
	}
	if nSplits < 2 {
		return nil, causal.NewInvalidParameterError("n_splits", "must be >= 2")
	}
	if nSplits > n {
		return nil, causal.NewInvalidParameterError("n_splits", fmt.Sprintf("%d folds for %d rows", nSplits, n))
	}

	folds, err := learn.KFold(n, nSplits, true, randomState)
	if err != nil {
		return nil, causal.NewInvalidParameterError("n_splits", err.Error())
	}

	res := &Residuals{Treatment: nanSlice(n), Outcome: nanSlice(n)}
	for i, f := range folds {
		if err := cf.fitFold(i, f, dm, treatment, outcome, randomState, res); err != nil {
			return nil, err
		}
		cf.logger.Debug("fold %d/%d done: train=%d test=%d", i+1, len(folds), len(f.Train), len(f.Test))
	}

	for i := 0; i < n; i++ {
		if math.IsNaN(res.Treatment[i]) || math.IsNaN(res.Outcome[i]) {
			return nil, fmt.Errorf("crossfit: row %d has no held-out residual", i)
		}
	}
	return res, nil
}

func (cf *CrossFitter) fitFold(index int, f learn.Fold, dm *features.DesignMatrix, treatment, outcome []float64, randomState int64, res *Residuals) error {
	fold := index + 1
	tTrain := gather(treatment, f.Train)
	if k := features.DistinctClasses(tTrain); k < 2 {
		return causal.NewFoldTrainingError(fold, "treatment", fmt.Errorf("%w: training partition has %d class(es)", learn.ErrSingleClass, k))
	}

	xTrain, xTest := dm.Subset(f.Train), dm.Subset(f.Test)
	if cf.ScaleWithinFolds {
		var scaler *features.StandardScaler
		var err error
		xTrain, scaler, err = features.FitTransform(xTrain)
		if err != nil {
			return causal.NewFoldTrainingError(fold, "scaler", err)
		}
		xTest = scaler.Transform(xTest)
	}

	clf := learn.NewLogisticRegression(cf.cfg.LogisticC, cf.cfg.LogisticMaxIter)
	if err := clf.Fit(xTrain, tTrain); err != nil {
		return causal.NewFoldTrainingError(fold, "treatment", err)
	}
	if !clf.Converged {
		cf.logger.Warn("fold %d treatment model did not converge after %d iterations", fold, clf.Iterations)
	}

	reg := learn.NewRandomForestRegressor(randomState,
		learn.WithEstimators(cf.cfg.ForestEstimators),
		learn.WithMaxDepth(cf.cfg.ForestMaxDepth),
		learn.WithMinSamplesSplit(cf.cfg.ForestMinSamplesSplit),
		learn.WithMinSamplesLeaf(cf.cfg.ForestMinSamplesLeaf),
	)
	if err := reg.Fit(xTrain, gather(outcome, f.Train)); err != nil {
		return causal.NewFoldTrainingError(fold, "outcome", err)
	}

	store(res, f.Test, treatment, outcome, clf.PredictProba(xTest), reg.Predict(xTest))
	return nil
}

// store writes residuals back to the original row positions of the test fold
func store(res *Residuals, test []int, treatment, outcome, tHat, yHat []float64) {
	for i, p := range test {
		res.Treatment[p] = treatment[p] - tHat[i]
		res.Outcome[p] = outcome[p] - yHat[i]
	}
}

func gather(v []float64, positions []int) []float64 {
	out := make([]float64, len(positions))
	for i, p := range positions {
		out[i] = v[p]
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
