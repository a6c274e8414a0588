package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocausal/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("GIN_MODE", "")
	t.Setenv("ESTIMATOR_DEFAULTS_FILE", "")
	t.Setenv("MAX_CONCURRENT_ESTIMATIONS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.GinMode)
	assert.Equal(t, 60*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 4, cfg.Limits.MaxConcurrentEstimations)
	assert.Equal(t, DefaultEstimatorConfig(), cfg.Estimator)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_ROWS", "500")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("OPS_ENABLED", "false")
	t.Setenv("ESTIMATOR_DEFAULTS_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 500, cfg.Limits.MaxRows)
	assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
	assert.False(t, cfg.Ops.Enabled)
}

func TestLoadRejectsBadGinMode(t *testing.T) {
	t.Setenv("GIN_MODE", "chaos")
	t.Setenv("ESTIMATOR_DEFAULTS_FILE", "")

	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestLoadEstimatorConfigOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "defaults.yaml")
	body := "forest_estimators: 25\nlasso_cv_folds: 5\nscale_within_folds: true\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := LoadEstimatorConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.ForestEstimators)
	assert.Equal(t, 5, cfg.LassoCVFolds)
	assert.True(t, cfg.ScaleWithinFolds)
	assert.Equal(t, 1000, cfg.LogisticMaxIter, "unset keys keep defaults")
}

func TestLoadEstimatorConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "defaults.yaml")
	require.NoError(t, os.WriteFile(path, []byte("lasso_cv_folds: 1\n"), 0o600))

	_, err := LoadEstimatorConfig(path)
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}
