package dml

import (
	"errors"
	"fmt"
	"strings"

	"gocausal/domain/causal"
	"gocausal/domain/dataset"
	"gocausal/internal"
	"gocausal/internal/config"
	"gocausal/internal/features"
	"gocausal/internal/learn"
)

// Estimator runs double machine learning:
// encode → cross-fit nuisances → lasso on residuals (all rows, then treated rows)
type Estimator struct {
	cfg    config.EstimatorConfig
	logger *internal.Logger
}

// NewEstimator creates a DML estimator
func NewEstimator(cfg config.EstimatorConfig, logger *internal.Logger) *Estimator {
	return &Estimator{cfg: cfg, logger: logger.OrDefault()}
}

// Estimate computes ATE and ATT. ATE and ATT come from independent fits and
// need not bracket each other.
func (e *Estimator) Estimate(ds *dataset.Dataset, roles causal.ColumnRoles, params causal.DMLParams) (*causal.DMLResult, error) {
	if err := roles.Validate(); err != nil {
		return nil, err
	}
	if params.NSplits < 2 {
		return nil, causal.NewInvalidParameterError("n_splits", "must be >= 2")
	}
	if params.NSplits > ds.Len() {
		return nil, causal.NewInvalidParameterError("n_splits", fmt.Sprintf("%d folds for %d rows", params.NSplits, ds.Len()))
	}

	treatment, err := features.TreatmentVector(ds, roles.Treatment)
	if err != nil {
		return nil, err
	}
	outcome, err := features.OutcomeVector(ds, roles.Outcome)
	if err != nil {
		return nil, err
	}
	if k := features.DistinctClasses(treatment); k < 2 {
		return nil, causal.NewDegenerateTreatmentError(roles.Treatment, k)
	}

	withinFolds := params.ScaleFeatures && (params.ScaleWithinFolds || e.cfg.ScaleWithinFolds)
	dm, err := features.Encode(ds, roles.Confounders, params.ScaleFeatures && !withinFolds)
	if err != nil {
		return nil, causal.AtStage(causal.StageEncode, err)
	}
	e.logger.Debug("DML design matrix: %d rows × %d columns, scale within folds=%v", dm.Rows(), len(dm.Columns), withinFolds)

	cf := NewCrossFitter(e.cfg, e.logger)
	cf.ScaleWithinFolds = withinFolds
	res, err := cf.CrossFit(dm, treatment, outcome, params.NSplits, params.RandomState)
	if err != nil {
		return nil, causal.AtStage(causal.StageCrossFit, err)
	}

	ate, att, err := NewFinalRegressor(e.cfg).Regress(res, treatment, params.RandomState)
	if err != nil {
		return nil, causal.AtStage(causal.StageRegress, err)
	}

	nTreated := countTreated(treatment)
	e.logger.Info("DML: n=%d n_treated=%d n_splits=%d ate=%.6g (alpha=%.3g) att=%.6g (alpha=%.3g)",
		dm.Rows(), nTreated, params.NSplits, ate.Value, ate.Alpha, att.Value, att.Alpha)

	result := &causal.DMLResult{
		ATE:      causal.Float(ate.Value),
		ATT:      causal.Float(att.Value),
		Message:  dmlMessage(ate, att),
		NSplits:  params.NSplits,
		NTreated: nTreated,
		ATEAlpha: ate.Alpha,
		ATTAlpha: att.Alpha,
	}
	if params.ShowOutcomeHist {
		result.OutcomePlot = outcomePlot(treatment, outcome)
	}
	return result, nil
}

func dmlMessage(ate, att Effect) string {
	var problems []string
	if !ate.Defined() {
		problems = append(problems, undefinedReason("ATE", ate))
	}
	if !att.Defined() {
		problems = append(problems, undefinedReason("ATT", att))
	}
	if len(problems) == 0 {
		return "DML analysis complete."
	}
	return "DML analysis complete with missing estimates: " + strings.Join(problems, "; ") + "."
}

func undefinedReason(name string, e Effect) string {
	if errors.Is(e.Err, learn.ErrTooFewSamples) {
		return fmt.Sprintf("%s is undefined because only %d rows were available for the final regression", name, e.Rows)
	}
	return name + " is undefined"
}

func outcomePlot(treatment, outcome []float64) *causal.PlotData {
	p := &causal.PlotData{
		TreatedValues: []float64{},
		ControlValues: []float64{},
		Title:         "Outcome Distribution by Treatment Group",
		XLabel:        "Outcome",
		YLabel:        "Count",
		LegendLabels:  []string{"Treated", "Control"},
	}
	for i, t := range treatment {
		if t == 1 {
			p.TreatedValues = append(p.TreatedValues, outcome[i])
		} else {
			p.ControlValues = append(p.ControlValues, outcome[i])
		}
	}
	return p
}

func countTreated(treatment []float64) int {
	n := 0
	for _, t := range treatment {
		if t == 1 {
			n++
		}
	}
	return n
}
