package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocausal/ports"
)

func TestRunStoreEvictsOldest(t *testing.T) {
	ctx := context.Background()
	store := NewRunStore(2)
	for i := 1; i <= 3; i++ {
		require.NoError(t, store.SaveRun(ctx, &ports.RunRecord{ID: fmt.Sprintf("run-%d", i), Method: "psm"}))
	}

	_, err := store.GetRun(ctx, "run-1")
	assert.ErrorIs(t, err, ports.ErrRunNotFound)

	rec, err := store.GetRun(ctx, "run-3")
	require.NoError(t, err)
	assert.Equal(t, "psm", rec.Method)

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-3", runs[0].ID)
	assert.Equal(t, "run-2", runs[1].ID)

	runs, err = store.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRunStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewRunStore(5)
	rec := &ports.RunRecord{ID: "a", Method: "dml"}
	require.NoError(t, store.SaveRun(ctx, rec))
	rec.Method = "changed"

	got, err := store.GetRun(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "dml", got.Method)

	require.NoError(t, store.SaveRun(ctx, &ports.RunRecord{ID: "a", Method: "psm"}))
	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "psm", runs[0].Method)
}
