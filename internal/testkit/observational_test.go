package testkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocausal/domain/causal"
	"gocausal/domain/dataset"
	"gocausal/internal"
	"gocausal/internal/config"
	"gocausal/internal/dml"
	"gocausal/internal/psm"
)

func generate(t *testing.T, cfg ObservationalConfig) *Observational {
	t.Helper()
	obs, err := NewObservationalGenerator(cfg).Generate()
	require.NoError(t, err)
	return obs
}

func roles(obs *Observational) causal.ColumnRoles {
	return causal.ColumnRoles{Treatment: obs.Treatment, Outcome: obs.Outcome, Confounders: obs.Confounders}
}

func TestObservationalGenerator_Deterministic(t *testing.T) {
	a := generate(t, DefaultObservationalConfig())
	b := generate(t, DefaultObservationalConfig())
	assert.Equal(t, a.Rows, b.Rows)

	other := DefaultObservationalConfig()
	other.Seed = 7
	c := generate(t, other)
	assert.NotEqual(t, a.Rows[0], c.Rows[0])
}

func TestObservationalGenerator_Shape(t *testing.T) {
	obs := generate(t, DefaultObservationalConfig())
	require.Len(t, obs.Rows, 1000)

	treated := 0
	for _, row := range obs.Rows {
		for _, col := range append([]string{obs.Treatment, obs.Outcome}, obs.Confounders...) {
			assert.Contains(t, row, col)
		}
		assert.Contains(t, regions, row["region"])
		if row[obs.Treatment] == 1 {
			treated++
		}
	}
	assert.Greater(t, treated, 100)
	assert.Less(t, treated, 900)
	assert.InDelta(t, 3.0, obs.TrueATE, 1e-9)
	assert.InDelta(t, 3.0, obs.TrueATT, 1e-9)
}

func TestObservationalGenerator_Confounded(t *testing.T) {
	cfg := DefaultObservationalConfig()
	cfg.Rows = 2000
	obs := generate(t, cfg)

	assert.Greater(t, obs.NaiveDifference, obs.TrueATE+0.5)
}

func TestObservationalGenerator_HeterogeneousEffect(t *testing.T) {
	cfg := DefaultObservationalConfig()
	cfg.LoyalEffectShift = 2
	obs := generate(t, cfg)

	// loyal customers are over-represented among the treated
	assert.Greater(t, obs.TrueATT, obs.TrueATE)
}

func TestObservationalGenerator_Errors(t *testing.T) {
	_, err := NewObservationalGenerator(ObservationalConfig{Rows: 1}).Generate()
	assert.Error(t, err)

	_, err = NewObservationalGenerator(ObservationalConfig{Rows: 10, NoiseSigma: -1}).Generate()
	assert.Error(t, err)
}

func TestPSMRecoversEffect(t *testing.T) {
	cfg := DefaultObservationalConfig()
	cfg.Rows = 2000
	obs := generate(t, cfg)

	params := causal.DefaultPSMRequest().PSMParams
	result, err := psm.NewEstimator(fastEstimatorConfig(), internal.NewLogger(internal.LogLevelError)).
		Estimate(dataset.New(obs.Rows), roles(obs), params)
	require.NoError(t, err)
	require.NotNil(t, result.ATT)

	assert.InDelta(t, obs.TrueATT, *result.ATT, 1.2)
	assert.Less(t, abs(*result.ATT-obs.TrueATT), abs(obs.NaiveDifference-obs.TrueATT))

	for _, b := range result.CovariateBalance {
		if b.Feature == "age" {
			require.NotNil(t, b.SMDBefore)
			require.NotNil(t, b.SMDAfter)
			assert.Less(t, abs(*b.SMDAfter), abs(*b.SMDBefore))
		}
	}
}

func TestDMLRecoversEffect(t *testing.T) {
	obs := generate(t, DefaultObservationalConfig())

	params := causal.DefaultDMLRequest().DMLParams
	params.ShowOutcomeHist = false
	result, err := dml.NewEstimator(fastEstimatorConfig(), internal.NewLogger(internal.LogLevelError)).
		Estimate(dataset.New(obs.Rows), roles(obs), params)
	require.NoError(t, err)
	require.NotNil(t, result.ATE)

	assert.InDelta(t, obs.TrueATE, *result.ATE, 1.0)
}

func fastEstimatorConfig() config.EstimatorConfig {
	cfg := config.DefaultEstimatorConfig()
	cfg.ForestEstimators = 30
	return cfg
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
