package jsonrows

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseShapes(t *testing.T) {
	tests := []struct {
		name     string
		dataPath string
		body     string
		want     []map[string]interface{}
	}{
		{
			name: "array",
			body: `[{"x": 1, "t": true}, {"x": 2.5, "t": false}]`,
			want: []map[string]interface{}{{"x": 1.0, "t": true}, {"x": 2.5, "t": false}},
		},
		{
			name:     "nested path",
			dataPath: "result.rows",
			body:     `{"result": {"rows": [{"region": "north", "y": null}]}}`,
			want:     []map[string]interface{}{{"region": "north", "y": nil}},
		},
		{
			name: "single object",
			body: `{"x": 3}`,
			want: []map[string]interface{}{{"x": 3.0}},
		},
		{
			name: "ndjson",
			body: "{\"x\": 1}\n\n{\"x\": 2}\n",
			want: []map[string]interface{}{{"x": 1.0}, {"x": 2.0}},
		},
		{
			name: "nested values stay raw",
			body: `[{"tags": ["a","b"]}]`,
			want: []map[string]interface{}{{"tags": `["a","b"]`}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := NewReader(Source{DataPath: tt.dataPath}).Parse([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, rows)
		})
	}
}

func TestParseErrors(t *testing.T) {
	_, err := NewReader(Source{DataPath: "data"}).Parse([]byte(`{"rows": []}`))
	assert.ErrorContains(t, err, "not found")

	_, err = NewReader(Source{}).Parse([]byte(`[1, 2]`))
	assert.ErrorContains(t, err, "not an object")

	_, err = NewReader(Source{}).Parse([]byte("{\"x\": 1}\nnot json\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": [{"x": 1}, {"x": 2}]}`))
	}))
	defer srv.Close()

	rows, err := NewReader(Source{DataPath: "data", AuthToken: "secret"}).Load(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = NewReader(Source{DataPath: "data"}).Load(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "status 401")
}
