package causal

import (
	"errors"
	"fmt"
)

// Estimation errors - centralized error definitions
var (
	// Structural errors, raised before any computation begins
	ErrInvalidColumn       = errors.New("invalid column")
	ErrDegenerateTreatment = errors.New("degenerate treatment")
	ErrInvalidParameter    = errors.New("invalid parameter")

	// Mid-computation failures
	ErrFoldTraining = errors.New("fold training failed")

	// Numeric degeneracy; absorbed into nil result fields, never returned from an estimator
	ErrEmptyMatch = errors.New("no matched pairs")
)

// Stage names used in StageError
const (
	StageEncode     = "encode"
	StagePropensity = "propensity"
	StageMatch      = "match"
	StageAggregate  = "aggregate"
	StageCrossFit   = "crossfit"
	StageRegress    = "regress"
)

// StageError reports a failure together with the pipeline stage it happened in
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// AtStage wraps err with the stage name; nil stays nil
func AtStage(stage string, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// Error constructors with context
func NewInvalidColumnError(column, reason string) error {
	return fmt.Errorf("%w %q: %s", ErrInvalidColumn, column, reason)
}

func NewDegenerateTreatmentError(column string, distinct int) error {
	return fmt.Errorf("%w: column %q has %d distinct value(s), need 2", ErrDegenerateTreatment, column, distinct)
}

func NewInvalidParameterError(name string, reason string) error {
	return fmt.Errorf("%w %s: %s", ErrInvalidParameter, name, reason)
}

func NewFoldTrainingError(fold int, model string, err error) error {
	return fmt.Errorf("%w: fold %d %s model: %w", ErrFoldTraining, fold, model, err)
}

// Error checking helpers
func IsInvalidColumn(err error) bool       { return errors.Is(err, ErrInvalidColumn) }
func IsDegenerateTreatment(err error) bool { return errors.Is(err, ErrDegenerateTreatment) }
func IsInvalidParameter(err error) bool    { return errors.Is(err, ErrInvalidParameter) }
func IsFoldTraining(err error) bool        { return errors.Is(err, ErrFoldTraining) }
func IsEmptyMatch(err error) bool          { return errors.Is(err, ErrEmptyMatch) }

// IsInputError reports errors caused by the request rather than the computation
func IsInputError(err error) bool {
	return IsInvalidColumn(err) || IsDegenerateTreatment(err) || IsInvalidParameter(err)
}
