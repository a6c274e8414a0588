package causal

import (
	"math"

	"gocausal/domain/dataset"
)

// ============================================================================
// REQUESTS
// ============================================================================

// ColumnRoles names the treatment, outcome, and confounder columns
type ColumnRoles struct {
	Treatment   string   `json:"treatment_col" validate:"required"`
	Outcome     string   `json:"outcome_col" validate:"required"`
	Confounders []string `json:"confounders" validate:"required,min=1,dive,required"`
}

// Validate checks the roles are structurally usable. Column presence is checked by the encoder.
func (r ColumnRoles) Validate() error {
	if r.Treatment == "" {
		return NewInvalidParameterError("treatment_col", "must be set")
	}
	if r.Outcome == "" {
		return NewInvalidParameterError("outcome_col", "must be set")
	}
	if len(r.Confounders) == 0 {
		return NewInvalidParameterError("confounders", "at least one confounder is required")
	}
	seen := make(map[string]bool, len(r.Confounders))
	for _, c := range r.Confounders {
		if c == "" {
			return NewInvalidParameterError("confounders", "empty column name")
		}
		if c == r.Treatment || c == r.Outcome {
			return NewInvalidParameterError("confounders", "column "+c+" is also the treatment or outcome")
		}
		if seen[c] {
			return NewInvalidParameterError("confounders", "column "+c+" listed twice")
		}
		seen[c] = true
	}
	return nil
}

// PSMParams are the tuning knobs of propensity score matching
type PSMParams struct {
	NNeighbors          int     `json:"n_neighbors" validate:"min=1"`
	RandomState         int64   `json:"random_state"`
	ScaleFeatures       bool    `json:"scale_features"`
	UseCaliper          bool    `json:"use_caliper"`
	Caliper             float64 `json:"caliper" validate:"gte=0"`
	ShowPropHist        bool    `json:"show_prop_hist"`
	ShowMatchedPairHist bool    `json:"show_matched_pair_hist"`
}

// PSMRequest is the full propensity score matching request
type PSMRequest struct {
	Data []map[string]interface{} `json:"data" validate:"required,min=1"`
	ColumnRoles
	PSMParams
}

// DefaultPSMRequest returns a request carrying the documented defaults
func DefaultPSMRequest() PSMRequest {
	return PSMRequest{
		PSMParams: PSMParams{
			NNeighbors:    1,
			RandomState:   42,
			ScaleFeatures: true,
			Caliper:       0.1,
			ShowPropHist:  true,
		},
	}
}

// DMLParams are the tuning knobs of double machine learning
type DMLParams struct {
	NSplits         int   `json:"n_splits" validate:"min=2"`
	RandomState     int64 `json:"random_state"`
	ScaleFeatures   bool  `json:"scale_features"`
	ShowOutcomeHist bool  `json:"show_outcome_hist"`
	// ScaleWithinFolds fits the scaler on each training partition instead of the full sample
	ScaleWithinFolds bool `json:"scale_within_folds"`
}

// DMLRequest is the full double machine learning request
type DMLRequest struct {
	Data []map[string]interface{} `json:"data" validate:"required,min=1"`
	ColumnRoles
	DMLParams
}

// DefaultDMLRequest returns a request carrying the documented defaults
func DefaultDMLRequest() DMLRequest {
	return DMLRequest{
		DMLParams: DMLParams{
			NSplits:         5,
			RandomState:     42,
			ScaleFeatures:   true,
			ShowOutcomeHist: true,
		},
	}
}

// ============================================================================
// RESULTS
// ============================================================================

// PlotData is a two-group distribution payload for the dashboard
type PlotData struct {
	TreatedValues []float64 `json:"treated_values"`
	ControlValues []float64 `json:"control_values"`
	Title         string    `json:"title"`
	XLabel        string    `json:"xlabel"`
	YLabel        string    `json:"ylabel"`
	LegendLabels  []string  `json:"legend_labels,omitempty"`
}

// MatchedPair links a treated row to a control row at a propensity distance
type MatchedPair struct {
	Treated  dataset.RowID `json:"treated_index"`
	Control  dataset.RowID `json:"control_index"`
	Distance float64       `json:"distance"`
}

// CovariateBalance is the standardized mean difference of one encoded
// confounder between the arms, before matching and across the ATT pairs
type CovariateBalance struct {
	Feature   string   `json:"feature"`
	SMDBefore *float64 `json:"smd_before"`
	SMDAfter  *float64 `json:"smd_after"`
}

// PSMResult is the outcome of one propensity score matching run
type PSMResult struct {
	ATT             *float64 `json:"att"`
	ATE             *float64 `json:"ate"`
	ATERaw          *float64 `json:"ate_raw"`
	ATC             *float64 `json:"atc"`
	NumMatchedPairs int      `json:"num_matched_pairs"`
	NumATCPairs     int      `json:"num_atc_pairs"`
	NTreated        int      `json:"n_treated"`
	NControl        int      `json:"n_control"`
	Message         string   `json:"message"`

	PropensityScorePlotData *PlotData                `json:"propensity_score_plot_data,omitempty"`
	MatchedOutcomePlotData  *PlotData                `json:"matched_outcome_plot_data,omitempty"`
	FullDataWithPSMInfo     []map[string]interface{} `json:"full_data_with_psm_info"`
	MatchedPairsTable       []MatchedPair            `json:"matched_pairs_table"`
	CovariateBalance        []CovariateBalance       `json:"covariate_balance"`
}

// DMLResult is the outcome of one double machine learning run
type DMLResult struct {
	ATE         *float64  `json:"ate"`
	ATT         *float64  `json:"att"`
	Message     string    `json:"message"`
	OutcomePlot *PlotData `json:"outcome_plot,omitempty"`

	NSplits  int     `json:"n_splits"`
	NTreated int     `json:"n_treated"`
	ATEAlpha float64 `json:"ate_alpha,omitempty"`
	ATTAlpha float64 `json:"att_alpha,omitempty"`
}

// Float converts an estimate to its wire form: NaN and Inf become nil
func Float(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
