package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSelect(t *testing.T) {
	q, err := buildSelect("analytics.visits", []string{"age", "Region", "treated"}, 500)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "age", "Region", "treated" FROM "analytics"."visits" LIMIT 500`, q)

	q, err = buildSelect("visits", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "visits"`, q)

	q, err = buildSelect(`odd"name`, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "odd""name"`, q)

	_, err = buildSelect(" ", nil, 0)
	assert.Error(t, err)
}

func TestNormalizeValue(t *testing.T) {
	ts := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   interface{}
		want interface{}
	}{
		{"numeric bytes", []byte("12.50"), 12.5},
		{"text bytes", []byte("north"), "north"},
		{"timestamp", ts, float64(ts.Unix())},
		{"int64", int64(7), int64(7)},
		{"bool", true, true},
		{"null", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeValue(tt.in))
		})
	}
}

func TestConnectRequiresURL(t *testing.T) {
	_, err := Connect(t.Context(), "")
	assert.Error(t, err)
}
