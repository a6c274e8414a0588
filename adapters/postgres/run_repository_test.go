package postgres

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocausal/domain/core"
	"gocausal/ports"
)

// TestRunRepositoryRoundTrip needs a scratch database in TEST_DATABASE_URL
func TestRunRepositoryRoundTrip(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := t.Context()
	db, err := Connect(ctx, url)
	require.NoError(t, err)
	defer db.Close()

	repo := NewRunRepository(db)
	require.NoError(t, repo.EnsureSchema(ctx))

	rec := &ports.RunRecord{
		ID:          core.NewRunID().String(),
		Method:      "psm",
		Fingerprint: "abc",
		Treatment:   "t",
		Outcome:     "y",
		Confounders: []string{"age", "region"},
		Rows:        10,
		ElapsedMS:   12,
		Params:      json.RawMessage(`{"n_neighbors": 1}`),
		Result:      json.RawMessage(`{"att": 1.5}`),
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, repo.SaveRun(ctx, rec))
	require.NoError(t, repo.SaveRun(ctx, rec))

	got, err := repo.GetRun(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Confounders, got.Confounders)
	assert.JSONEq(t, string(rec.Result), string(got.Result))
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))

	_, err = repo.GetRun(ctx, core.NewRunID().String())
	assert.ErrorIs(t, err, ports.ErrRunNotFound)

	runs, err := repo.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
