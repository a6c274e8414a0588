package app

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gocausal/adapters/memory"
	"gocausal/domain/causal"
	"gocausal/internal/config"
	"gocausal/internal/errors"
	"gocausal/internal/metrics"
	"gocausal/ports"
)

func testService(maxConcurrent, maxRows int) (*EstimationService, *metrics.Metrics) {
	cfg := &config.Config{
		Limits:    config.LimitsConfig{MaxConcurrentEstimations: maxConcurrent, MaxRows: maxRows},
		Estimator: config.DefaultEstimatorConfig(),
	}
	cfg.Estimator.ForestEstimators = 10
	m := metrics.New(prometheus.NewRegistry())
	return NewEstimationService(cfg, m, nil), m
}

func sampleRows() []map[string]interface{} {
	rows := make([]map[string]interface{}, 40)
	for i := range rows {
		x := float64(i % 8)
		t := 0
		if i%8 >= 3 && i%3 != 0 {
			t = 1
		}
		rows[i] = map[string]interface{}{"x": x, "t": t, "y": x + 2*float64(t)}
	}
	return rows
}

func TestRunPSM(t *testing.T) {
	svc, m := testService(2, 1000)
	req := causal.DefaultPSMRequest()
	req.Data = sampleRows()
	req.ColumnRoles = causal.ColumnRoles{Treatment: "t", Outcome: "y", Confounders: []string{"x"}}

	run, err := svc.RunPSM(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, run.RunID)
	assert.Len(t, run.Fingerprint.String(), 64)
	require.NotNil(t, run.Result)
	assert.Greater(t, run.Result.NumMatchedPairs, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.EstimationsTotal.WithLabelValues(MethodPSM, "ok")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.InFlight))
}

func TestRunDML(t *testing.T) {
	svc, m := testService(2, 1000)
	req := causal.DefaultDMLRequest()
	req.Data = sampleRows()
	req.ColumnRoles = causal.ColumnRoles{Treatment: "t", Outcome: "y", Confounders: []string{"x"}}
	req.NSplits = 2

	run, err := svc.RunDML(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, run.Result.ATE)
	assert.Equal(t, 2, run.Result.NSplits)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EstimationsTotal.WithLabelValues(MethodDML, "ok")))
}

func TestRunRejectsLargeDatasets(t *testing.T) {
	svc, m := testService(1, 10)
	req := causal.DefaultPSMRequest()
	req.Data = sampleRows()
	req.ColumnRoles = causal.ColumnRoles{Treatment: "t", Outcome: "y", Confounders: []string{"x"}}

	_, err := svc.RunPSM(context.Background(), req)
	require.Error(t, err)
	assert.True(t, causal.IsInvalidParameter(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EstimationsTotal.WithLabelValues(MethodPSM, errors.CodeInvalidParameter)))
}

func TestRunReportsDomainErrors(t *testing.T) {
	svc, m := testService(1, 1000)
	req := causal.DefaultPSMRequest()
	req.Data = sampleRows()
	req.ColumnRoles = causal.ColumnRoles{Treatment: "t", Outcome: "y", Confounders: []string{"missing"}}

	_, err := svc.RunPSM(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidColumn, errors.FromDomain(err).Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EstimationsTotal.WithLabelValues(MethodPSM, errors.CodeInvalidColumn)))
}

func TestRunWhenCapacityExhausted(t *testing.T) {
	svc, _ := testService(1, 1000)
	require.NoError(t, svc.sem.Acquire(context.Background(), 1))
	defer svc.sem.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	req := causal.DefaultPSMRequest()
	req.Data = sampleRows()
	req.ColumnRoles = causal.ColumnRoles{Treatment: "t", Outcome: "y", Confounders: []string{"x"}}

	_, err := svc.RunPSM(ctx, req)
	require.Error(t, err)
	assert.Equal(t, errors.CodeUnavailable, errors.GetCode(err))
}

func TestFingerprintFollowsData(t *testing.T) {
	svc, _ := testService(2, 1000)
	req := causal.DefaultPSMRequest()
	req.Data = sampleRows()
	req.ColumnRoles = causal.ColumnRoles{Treatment: "t", Outcome: "y", Confounders: []string{"x"}}

	first, err := svc.RunPSM(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.RunPSM(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)

	req.Data = sampleRows()
	req.Data[0]["y"] = 99.0
	third, err := svc.RunPSM(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, first.Fingerprint, third.Fingerprint)
}

func TestRunsAreRecorded(t *testing.T) {
	svc, _ := testService(2, 1000)
	svc.WithRunStore(memory.NewRunStore(10))
	ctx := context.Background()

	req := causal.DefaultDMLRequest()
	req.Data = sampleRows()
	req.ColumnRoles = causal.ColumnRoles{Treatment: "t", Outcome: "y", Confounders: []string{"x"}}
	req.NSplits = 2
	run, err := svc.RunDML(ctx, req)
	require.NoError(t, err)

	rec, err := svc.GetRun(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, MethodDML, rec.Method)
	assert.Equal(t, run.Fingerprint.String(), rec.Fingerprint)
	assert.Equal(t, []string{"x"}, rec.Confounders)
	assert.Equal(t, 40, rec.Rows)
	assert.Contains(t, string(rec.Params), `"n_splits":2`)
	assert.Contains(t, string(rec.Result), `"ate"`)

	runs, err := svc.ListRuns(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	_, err = svc.GetRun(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ports.ErrRunNotFound)
}

func TestRunsWithoutStore(t *testing.T) {
	svc, _ := testService(1, 10)
	_, err := svc.GetRun(context.Background(), "0190d3b4-8f3a-7c3e-9a1b-2b3c4d5e6f70")
	assert.ErrorIs(t, err, ports.ErrRunNotFound)

	runs, err := svc.ListRuns(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

type mockRunStore struct {
	mock.Mock
}

func (m *mockRunStore) SaveRun(ctx context.Context, rec *ports.RunRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *mockRunStore) GetRun(ctx context.Context, id string) (*ports.RunRecord, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(*ports.RunRecord)
	return rec, args.Error(1)
}

func (m *mockRunStore) ListRuns(ctx context.Context, limit int) ([]*ports.RunRecord, error) {
	args := m.Called(ctx, limit)
	runs, _ := args.Get(0).([]*ports.RunRecord)
	return runs, args.Error(1)
}

func TestStoreFailureDoesNotFailRun(t *testing.T) {
	store := &mockRunStore{}
	store.On("SaveRun", mock.Anything, mock.MatchedBy(func(rec *ports.RunRecord) bool {
		return rec.Method == MethodPSM && rec.Treatment == "t"
	})).Return(stderrors.New("connection refused")).Once()

	svc, _ := testService(1, 1000)
	svc.WithRunStore(store)

	req := causal.DefaultPSMRequest()
	req.Data = sampleRows()
	req.ColumnRoles = causal.ColumnRoles{Treatment: "t", Outcome: "y", Confounders: []string{"x"}}
	run, err := svc.RunPSM(context.Background(), req)
	require.NoError(t, err)
	assert.NotNil(t, run.Result)
	store.AssertExpectations(t)
}
