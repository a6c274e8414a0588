package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"gocausal/domain/causal"
	"gocausal/domain/core"
	"gocausal/domain/dataset"
	"gocausal/internal"
	"gocausal/internal/config"
	"gocausal/internal/dml"
	"gocausal/internal/errors"
	"gocausal/internal/metrics"
	"gocausal/internal/psm"
	"gocausal/ports"
)

const (
	MethodPSM = "psm"
	MethodDML = "dml"
)

// EstimationService admits and runs estimation requests. Every run gets a fresh
// estimator and dataset copy; the semaphore only bounds how many run at once.
type EstimationService struct {
	estimator config.EstimatorConfig
	maxRows   int
	sem       *semaphore.Weighted
	metrics   *metrics.Metrics
	store     ports.RunStore
	logger    *internal.Logger
}

// PSMRun is a finished propensity score matching run
type PSMRun struct {
	RunID       string
	Fingerprint core.Hash // of the role columns the run read
	Elapsed     time.Duration
	Result      *causal.PSMResult
}

// DMLRun is a finished double machine learning run
type DMLRun struct {
	RunID       string
	Fingerprint core.Hash
	Elapsed     time.Duration
	Result      *causal.DMLResult
}

// NewEstimationService creates the service from loaded configuration. m may be nil.
func NewEstimationService(cfg *config.Config, m *metrics.Metrics, logger *internal.Logger) *EstimationService {
	return &EstimationService{
		estimator: cfg.Estimator,
		maxRows:   cfg.Limits.MaxRows,
		sem:       semaphore.NewWeighted(int64(cfg.Limits.MaxConcurrentEstimations)),
		metrics:   m,
		logger:    logger.OrDefault(),
	}
}

// WithRunStore records every successful run in store
func (s *EstimationService) WithRunStore(store ports.RunStore) *EstimationService {
	s.store = store
	return s
}

// RunPSM estimates ATT, ATC, and ATE by propensity score matching
func (s *EstimationService) RunPSM(ctx context.Context, req causal.PSMRequest) (*PSMRun, error) {
	runID := core.NewRunID().String()
	logger := s.logger.With("psm=" + runID)
	fingerprint := core.ComputeDatasetHash(req.Data, roleColumns(req.ColumnRoles))
	logger.Debug("dataset fingerprint %s", fingerprint.Short())

	var result *causal.PSMResult
	elapsed, err := s.run(ctx, MethodPSM, len(req.Data), logger, func() error {
		var err error
		result, err = psm.NewEstimator(s.estimator, logger).Estimate(dataset.New(req.Data), req.ColumnRoles, req.PSMParams)
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.MatchedPairs.Observe(float64(result.NumMatchedPairs))
	}
	s.record(ctx, logger, MethodPSM, runID, fingerprint, req.ColumnRoles, len(req.Data), elapsed, req.PSMParams, result)
	return &PSMRun{RunID: runID, Fingerprint: fingerprint, Elapsed: elapsed, Result: result}, nil
}

// RunDML estimates ATE and ATT by cross-fitted double machine learning
func (s *EstimationService) RunDML(ctx context.Context, req causal.DMLRequest) (*DMLRun, error) {
	runID := core.NewRunID().String()
	logger := s.logger.With("dml=" + runID)
	fingerprint := core.ComputeDatasetHash(req.Data, roleColumns(req.ColumnRoles))
	logger.Debug("dataset fingerprint %s", fingerprint.Short())

	var result *causal.DMLResult
	elapsed, err := s.run(ctx, MethodDML, len(req.Data), logger, func() error {
		var err error
		result, err = dml.NewEstimator(s.estimator, logger).Estimate(dataset.New(req.Data), req.ColumnRoles, req.DMLParams)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, logger, MethodDML, runID, fingerprint, req.ColumnRoles, len(req.Data), elapsed, req.DMLParams, result)
	return &DMLRun{RunID: runID, Fingerprint: fingerprint, Elapsed: elapsed, Result: result}, nil
}

// run admits one estimation and waits for it. The estimators have no
// cancellation hooks: when ctx ends first the caller gets an error and the
// computation finishes in the background, holding its slot until it does.
func (s *EstimationService) run(ctx context.Context, method string, rows int, logger *internal.Logger, estimate func() error) (time.Duration, error) {
	if rows > s.maxRows {
		s.metrics.Observe(method, errors.CodeInvalidParameter, rows, 0)
		return 0, causal.NewInvalidParameterError("data", fmt.Sprintf("%d rows exceeds the limit of %d", rows, s.maxRows))
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.metrics.Observe(method, errors.CodeUnavailable, rows, 0)
		return 0, &errors.AppError{Code: errors.CodeUnavailable, Message: "estimation capacity exhausted", Cause: err}
	}

	start := time.Now()
	done := make(chan error, 1)
	if s.metrics != nil {
		s.metrics.InFlight.Inc()
	}
	go func() {
		err := estimate()
		if s.metrics != nil {
			s.metrics.InFlight.Dec()
		}
		s.sem.Release(1)
		done <- err
	}()

	logger.Debug("admitted %s estimation over %d rows", method, rows)
	select {
	case err := <-done:
		elapsed := time.Since(start)
		if err != nil {
			appErr := errors.FromDomain(err)
			s.metrics.Observe(method, appErr.Code, rows, elapsed)
			logger.Warn("%s estimation failed after %v: %v", method, elapsed, err)
			return elapsed, err
		}
		s.metrics.Observe(method, "ok", rows, elapsed)
		logger.Info("%s estimation finished in %v", method, elapsed)
		return elapsed, nil
	case <-ctx.Done():
		s.metrics.Observe(method, errors.CodeUnavailable, rows, time.Since(start))
		logger.Warn("%s estimation abandoned after %v: %v", method, time.Since(start), ctx.Err())
		return 0, &errors.AppError{Code: errors.CodeUnavailable, Message: "estimation did not finish in time", Cause: ctx.Err()}
	}
}

// GetRun returns a recorded run
func (s *EstimationService) GetRun(ctx context.Context, id string) (*ports.RunRecord, error) {
	if s.store == nil {
		return nil, ports.ErrRunNotFound
	}
	if _, err := core.ParseRunID(id); err != nil {
		return nil, ports.ErrRunNotFound
	}
	return s.store.GetRun(ctx, id)
}

// ListRuns returns recorded runs, newest first
func (s *EstimationService) ListRuns(ctx context.Context, limit int) ([]*ports.RunRecord, error) {
	if s.store == nil {
		return []*ports.RunRecord{}, nil
	}
	return s.store.ListRuns(ctx, limit)
}

// record stores a finished run. Storage failures are logged, never returned:
// the estimate is already computed and the caller still gets it.
func (s *EstimationService) record(ctx context.Context, logger *internal.Logger, method, runID string, fingerprint core.Hash,
	roles causal.ColumnRoles, rows int, elapsed time.Duration, params, result interface{}) {
	if s.store == nil {
		return
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		logger.Warn("run not recorded: %v", err)
		return
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		logger.Warn("run not recorded: %v", err)
		return
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	err = s.store.SaveRun(saveCtx, &ports.RunRecord{
		ID:          runID,
		Method:      method,
		Fingerprint: fingerprint.String(),
		Treatment:   roles.Treatment,
		Outcome:     roles.Outcome,
		Confounders: roles.Confounders,
		Rows:        rows,
		ElapsedMS:   elapsed.Milliseconds(),
		Params:      paramsJSON,
		Result:      resultJSON,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		logger.Warn("run not recorded: %v", err)
	}
}

func roleColumns(r causal.ColumnRoles) []string {
	return append([]string{r.Treatment, r.Outcome}, r.Confounders...)
}
