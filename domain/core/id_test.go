package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewRunIDUniqueness tests that NewRunID generates unique identifiers
func TestNewRunIDUniqueness(t *testing.T) {
	const numIDs = 10000

	ids := make(map[RunID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewRunID()
		require.False(t, id.IsEmpty())
		require.False(t, ids[id], "duplicate ID %s", id)
		ids[id] = true
	}
}

func TestParseRunID(t *testing.T) {
	id := NewRunID()
	parsed, err := ParseRunID(" " + id.String() + " ")
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseRunID("")
	assert.Error(t, err)
	_, err = ParseRunID("run-1")
	assert.Error(t, err)
}

func TestComputeDatasetHash(t *testing.T) {
	rows := []map[string]interface{}{
		{"t": 1.0, "y": 2.5, "region": "north", "extra": "a"},
		{"t": 0.0, "y": 1.0, "region": nil, "extra": "b"},
	}
	cols := []string{"t", "y", "region"}
	base := ComputeDatasetHash(rows, cols)
	assert.Len(t, base.String(), 64)
	assert.Len(t, base.Short(), 12)

	tests := []struct {
		name string
		rows []map[string]interface{}
		cols []string
		same bool
	}{
		{"identical", rows, cols, true},
		{"unread column changed", []map[string]interface{}{
			{"t": 1.0, "y": 2.5, "region": "north", "extra": "z"},
			{"t": 0.0, "y": 1.0, "region": nil, "extra": "b"},
		}, cols, true},
		{"cell changed", []map[string]interface{}{
			{"t": 1.0, "y": 2.6, "region": "north"},
			{"t": 0.0, "y": 1.0, "region": nil},
		}, cols, false},
		{"rows reordered", []map[string]interface{}{rows[1], rows[0]}, cols, false},
		{"column order", rows, []string{"y", "t", "region"}, false},
		{"nil versus string", []map[string]interface{}{
			{"t": 1.0, "y": 2.5, "region": "north"},
			{"t": 0.0, "y": 1.0, "region": "<nil>"},
		}, cols, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeDatasetHash(tt.rows, tt.cols)
			if tt.same {
				assert.Equal(t, base, got)
			} else {
				assert.NotEqual(t, base, got)
			}
		})
	}
}
