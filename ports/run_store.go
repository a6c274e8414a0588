package ports

import (
	"context"
	"encoding/json"
	"time"

	"gocausal/internal/errors"
)

// RunRecord is a finished estimation run as stored for later retrieval
type RunRecord struct {
	ID          string          `json:"run_id"`
	Method      string          `json:"method"`
	Fingerprint string          `json:"dataset_fingerprint"`
	Treatment   string          `json:"treatment_col"`
	Outcome     string          `json:"outcome_col"`
	Confounders []string        `json:"confounders"`
	Rows        int             `json:"n_rows"`
	ElapsedMS   int64           `json:"elapsed_ms"`
	Params      json.RawMessage `json:"params"`
	Result      json.RawMessage `json:"result"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ErrRunNotFound is returned by GetRun for unknown ids
var ErrRunNotFound = errors.New(errors.CodeNotFound, "run not found")

// RunStore persists estimation runs
type RunStore interface {
	SaveRun(ctx context.Context, rec *RunRecord) error
	GetRun(ctx context.Context, id string) (*RunRecord, error)
	// ListRuns returns the most recent runs first
	ListRuns(ctx context.Context, limit int) ([]*RunRecord, error)
}
