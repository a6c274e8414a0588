package psm

import (
	"math"
	"strings"

	"gocausal/domain/causal"
	"gocausal/domain/dataset"
	"gocausal/internal"
	"gocausal/internal/config"
	"gocausal/internal/features"
)

// Augmented column names attached to every row of the full-data table
const (
	ColPropensity    = "_propensity_score"
	ColMatchedID     = "_matched_id"
	ColMatchDistance = "_match_distance"
	ColMatchedGroup  = "_matched_group"
)

// Estimator runs the propensity score matching pipeline:
// encode → propensity → match both directions → aggregate
type Estimator struct {
	cfg    config.EstimatorConfig
	logger *internal.Logger
}

// NewEstimator creates a PSM estimator
func NewEstimator(cfg config.EstimatorConfig, logger *internal.Logger) *Estimator {
	return &Estimator{cfg: cfg, logger: logger.OrDefault()}
}

// matching holds the stage outputs the result is assembled from
type matching struct {
	scores   []float64
	pos      map[dataset.RowID]int
	treated  []Unit
	control  []Unit
	attPairs []causal.MatchedPair
	atcPairs []causal.MatchedPair
}

// Estimate computes ATT, ATC, and ATE. Structural problems (missing columns,
// bad parameters, a single treatment class) are returned as errors before any
// fitting. Empty match sets are not errors: the affected estimates are nil and
// Message explains why.
func (e *Estimator) Estimate(ds *dataset.Dataset, roles causal.ColumnRoles, params causal.PSMParams) (*causal.PSMResult, error) {
	if err := validateParams(roles, params); err != nil {
		return nil, err
	}

	pos, err := ds.Positions()
	if err != nil {
		return nil, causal.NewInvalidParameterError("data", err.Error())
	}
	treatment, err := features.TreatmentVector(ds, roles.Treatment)
	if err != nil {
		return nil, err
	}
	outcomes, err := features.OutcomeVector(ds, roles.Outcome)
	if err != nil {
		return nil, err
	}
	if k := features.DistinctClasses(treatment); k < 2 {
		return nil, causal.NewDegenerateTreatmentError(roles.Treatment, k)
	}

	dm, err := features.Encode(ds, roles.Confounders, params.ScaleFeatures)
	if err != nil {
		return nil, causal.AtStage(causal.StageEncode, err)
	}
	e.logger.Debug("PSM design matrix: %d rows × %d columns %v", dm.Rows(), len(dm.Columns), dm.Columns)

	model := NewPropensityModel(e.cfg.LogisticC, e.cfg.LogisticMaxIter, e.logger)
	scores, err := model.FitPredict(dm, roles.Treatment, treatment, params.RandomState)
	if err != nil {
		return nil, causal.AtStage(causal.StagePropensity, err)
	}

	m := e.match(dm.RowIDs, scores, treatment, params)
	m.pos = pos

	outcomeByID := byID(dm.RowIDs, outcomes)
	att := Aggregate(m.attPairs, outcomeByID)
	atc := Aggregate(m.atcPairs, outcomeByID)
	ate := CombineATE(att.Effect, atc.Effect, len(m.treated), len(m.control))

	e.logger.Info("PSM: n_treated=%d n_control=%d att_pairs=%d atc_pairs=%d att=%.6g atc=%.6g ate=%.6g",
		len(m.treated), len(m.control), att.Pairs, atc.Pairs, att.Effect, atc.Effect, ate)

	result := &causal.PSMResult{
		ATT:                 causal.Float(att.Effect),
		ATC:                 causal.Float(atc.Effect),
		ATE:                 causal.Float(ate),
		ATERaw:              causal.Float(ate),
		NumMatchedPairs:     att.Pairs,
		NumATCPairs:         atc.Pairs,
		NTreated:            len(m.treated),
		NControl:            len(m.control),
		Message:             psmMessage(att, atc),
		FullDataWithPSMInfo: fullData(ds, m),
		MatchedPairsTable:   m.attPairs,
		CovariateBalance:    covariateBalance(dm, m),
	}
	if result.MatchedPairsTable == nil {
		result.MatchedPairsTable = []causal.MatchedPair{}
	}

	if params.ShowPropHist {
		result.PropensityScorePlotData = &causal.PlotData{
			TreatedValues: unitScores(m.treated),
			ControlValues: unitScores(m.control),
			Title:         "Propensity Score Distribution",
			XLabel:        "Propensity Score",
			YLabel:        "Count",
			LegendLabels:  []string{"Treated", "Control"},
		}
	}
	if params.ShowMatchedPairHist {
		treatedOut := make([]float64, len(m.attPairs))
		controlOut := make([]float64, len(m.attPairs))
		for i, p := range m.attPairs {
			treatedOut[i] = outcomeByID[p.Treated]
			controlOut[i] = outcomeByID[p.Control]
		}
		result.MatchedOutcomePlotData = &causal.PlotData{
			TreatedValues: treatedOut,
			ControlValues: controlOut,
			Title:         "Outcome Distribution of Matched Units",
			XLabel:        "Outcome",
			YLabel:        "Count",
			LegendLabels:  []string{"Matched Treated", "Matched Control"},
		}
	}

	return result, nil
}

func validateParams(roles causal.ColumnRoles, params causal.PSMParams) error {
	if err := roles.Validate(); err != nil {
		return err
	}
	if params.NNeighbors < 1 {
		return causal.NewInvalidParameterError("n_neighbors", "must be >= 1")
	}
	if params.UseCaliper && (params.Caliper < 0 || math.IsNaN(params.Caliper)) {
		return causal.NewInvalidParameterError("caliper", "must be >= 0")
	}
	return nil
}

// match splits rows by arm (ascending row id) and matches in both directions
func (e *Estimator) match(ids []dataset.RowID, scores, treatment []float64, params causal.PSMParams) matching {
	m := matching{scores: scores}
	for i, id := range ids {
		u := Unit{ID: id, Score: scores[i]}
		if treatment[i] == 1 {
			m.treated = append(m.treated, u)
		} else {
			m.control = append(m.control, u)
		}
	}

	caliper := NoCaliper
	if params.UseCaliper {
		caliper = params.Caliper
	}

	for _, n := range Match(m.treated, m.control, params.NNeighbors, caliper) {
		m.attPairs = append(m.attPairs, causal.MatchedPair{Treated: n.Source, Control: n.Target, Distance: n.Distance})
	}
	for _, n := range Match(m.control, m.treated, params.NNeighbors, caliper) {
		m.atcPairs = append(m.atcPairs, causal.MatchedPair{Treated: n.Target, Control: n.Source, Distance: n.Distance})
	}

	if params.UseCaliper {
		maxPossible := params.NNeighbors * (len(m.treated) + len(m.control))
		e.logger.Debug("caliper %.4g kept %d of at most %d candidate pairs", caliper, len(m.attPairs)+len(m.atcPairs), maxPossible)
	}
	return m
}

// fullData augments every original row with its score and the last treated-side
// match that touched it. Rows never matched carry nil match fields.
func fullData(ds *dataset.Dataset, m matching) []map[string]interface{} {
	rows := ds.Rows()
	for i, row := range rows {
		row[ColPropensity] = m.scores[i]
		row[ColMatchedID] = nil
		row[ColMatchDistance] = nil
		row[ColMatchedGroup] = nil
	}
	for _, p := range m.attPairs {
		t, c := rows[m.pos[p.Treated]], rows[m.pos[p.Control]]
		t[ColMatchedID] = int(p.Control)
		t[ColMatchDistance] = p.Distance
		t[ColMatchedGroup] = "Treated"
		c[ColMatchedID] = int(p.Treated)
		c[ColMatchDistance] = p.Distance
		c[ColMatchedGroup] = "Control"
	}
	return rows
}

func psmMessage(att, atc ArmEffect) string {
	var problems []string
	if att.Pairs == 0 {
		problems = append(problems, "no treated unit has a control match within the caliper, so ATT is undefined")
	}
	if atc.Pairs == 0 {
		problems = append(problems, "no control unit has a treated match within the caliper, so ATC is undefined")
	}
	if len(problems) == 0 {
		return "PSM analysis complete."
	}
	return "PSM analysis complete with missing estimates: " + strings.Join(problems, "; ") + "; ATE is undefined."
}

func unitScores(units []Unit) []float64 {
	out := make([]float64, len(units))
	for i, u := range units {
		out[i] = u.Score
	}
	return out
}
