package psm

import (
	"errors"
	"fmt"

	"gocausal/domain/causal"
	"gocausal/internal"
	"gocausal/internal/features"
	"gocausal/internal/learn"
)

// PropensityModel estimates P(treatment=1 | confounders) with L2 logistic regression
type PropensityModel struct {
	C       float64
	MaxIter int
	logger  *internal.Logger
}

// NewPropensityModel creates a propensity model
func NewPropensityModel(c float64, maxIter int, logger *internal.Logger) *PropensityModel {
	return &PropensityModel{C: c, MaxIter: maxIter, logger: logger.OrDefault()}
}

// FitPredict fits on every row and returns one score per row, aligned with dm.RowIDs.
// column names the treatment in degenerate-treatment errors.
// Treated rows are scored too: the propensity is a property of the confounders.
// The L-BFGS fit has no random component, so randomState does not change the scores;
// it is accepted so every learner in the pipeline shares one seed.
func (pm *PropensityModel) FitPredict(dm *features.DesignMatrix, column string, treatment []float64, randomState int64) ([]float64, error) {
	if len(treatment) != dm.Rows() {
		return nil, fmt.Errorf("propensity: %d treatment values for %d rows", len(treatment), dm.Rows())
	}
	if k := features.DistinctClasses(treatment); k < 2 {
		return nil, causal.NewDegenerateTreatmentError(column, k)
	}

	model := learn.NewLogisticRegression(pm.C, pm.MaxIter)
	if err := model.Fit(dm.X, treatment); err != nil {
		if errors.Is(err, learn.ErrSingleClass) {
			return nil, causal.NewDegenerateTreatmentError(column, 1)
		}
		return nil, err
	}
	if !model.Converged {
		pm.logger.Warn("propensity model did not converge after %d iterations (max_iter=%d, seed=%d)", model.Iterations, pm.MaxIter, randomState)
	}

	return model.PredictProba(dm.X), nil
}
