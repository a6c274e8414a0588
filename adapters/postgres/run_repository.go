package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"gocausal/internal/errors"
	"gocausal/ports"
)

// RunRepository implements ports.RunStore for PostgreSQL
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new PostgreSQL run repository
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS estimation_runs (
		id            UUID PRIMARY KEY,
		method        TEXT NOT NULL,
		fingerprint   TEXT NOT NULL,
		treatment_col TEXT NOT NULL,
		outcome_col   TEXT NOT NULL,
		confounders   TEXT[] NOT NULL,
		n_rows        INTEGER NOT NULL,
		elapsed_ms    BIGINT NOT NULL,
		params        JSONB NOT NULL,
		result        JSONB NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_estimation_runs_created_at ON estimation_runs (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_estimation_runs_fingerprint ON estimation_runs (fingerprint)`,
}

// EnsureSchema creates the runs table and its indexes when missing
func (r *RunRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to create estimation_runs schema")
		}
	}
	return nil
}

// runRow mirrors one estimation_runs row
type runRow struct {
	ID          string         `db:"id"`
	Method      string         `db:"method"`
	Fingerprint string         `db:"fingerprint"`
	Treatment   string         `db:"treatment_col"`
	Outcome     string         `db:"outcome_col"`
	Confounders pq.StringArray `db:"confounders"`
	Rows        int            `db:"n_rows"`
	ElapsedMS   int64          `db:"elapsed_ms"`
	Params      []byte         `db:"params"`
	Result      []byte         `db:"result"`
	CreatedAt   time.Time      `db:"created_at"`
}

func (row runRow) record() *ports.RunRecord {
	return &ports.RunRecord{
		ID:          row.ID,
		Method:      row.Method,
		Fingerprint: row.Fingerprint,
		Treatment:   row.Treatment,
		Outcome:     row.Outcome,
		Confounders: []string(row.Confounders),
		Rows:        row.Rows,
		ElapsedMS:   row.ElapsedMS,
		Params:      row.Params,
		Result:      row.Result,
		CreatedAt:   row.CreatedAt,
	}
}

const selectRuns = `
	SELECT id, method, fingerprint, treatment_col, outcome_col, confounders,
	       n_rows, elapsed_ms, params, result, created_at
	FROM estimation_runs`

// SaveRun inserts a run; saving an existing id is a no-op
func (r *RunRepository) SaveRun(ctx context.Context, rec *ports.RunRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO estimation_runs (
			id, method, fingerprint, treatment_col, outcome_col, confounders,
			n_rows, elapsed_ms, params, result, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.Method, rec.Fingerprint, rec.Treatment, rec.Outcome, pq.Array(rec.Confounders),
		rec.Rows, rec.ElapsedMS, []byte(rec.Params), []byte(rec.Result), createdAt)
	if err != nil {
		return errors.Wrapf(err, "failed to save run %s", rec.ID)
	}
	return nil
}

// GetRun retrieves a run by id
func (r *RunRepository) GetRun(ctx context.Context, id string) (*ports.RunRecord, error) {
	var row runRow
	err := r.db.GetContext(ctx, &row, selectRuns+` WHERE id = $1`, id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrRunNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load run %s", id)
	}
	return row.record(), nil
}

// ListRuns returns the most recent runs first
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]*ports.RunRecord, error) {
	var rows []runRow
	if err := r.db.SelectContext(ctx, &rows, selectRuns+` ORDER BY created_at DESC LIMIT $1`, limit); err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	out := make([]*ports.RunRecord, len(rows))
	for i, row := range rows {
		out[i] = row.record()
	}
	return out, nil
}
