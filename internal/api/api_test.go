package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocausal/adapters/memory"
	"gocausal/app"
	"gocausal/internal/config"
	"gocausal/internal/errors"
	"gocausal/internal/metrics"
)

func setupRouter(t *testing.T) (*gin.Engine, *prometheus.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Limits:    config.LimitsConfig{MaxConcurrentEstimations: 2, MaxRows: 1000},
		Estimator: config.DefaultEstimatorConfig(),
	}
	cfg.Estimator.ForestEstimators = 10

	reg := prometheus.NewRegistry()
	svc := app.NewEstimationService(cfg, metrics.New(reg), nil).WithRunStore(memory.NewRunStore(10))
	return NewRouter(NewEstimationHandler(svc, 30*time.Second, nil), nil), reg
}

func rows(n int, treated func(i int) bool) []map[string]interface{} {
	out := make([]map[string]interface{}, n)
	for i := range out {
		t := 0
		if treated(i) {
			t = 1
		}
		out[i] = map[string]interface{}{"age": float64(20 + i%10), "region": []string{"north", "south"}[i%2], "t": t, "y": float64(i%10) + 3*float64(t)}
	}
	return out
}

func mixed(i int) bool { return i%10 >= 4 && i%3 != 0 }

func post(t *testing.T, r http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestRoot(t *testing.T) {
	r, _ := setupRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w)["message"], "Causal Inference")
}

func TestPostPSM(t *testing.T) {
	r, _ := setupRouter(t)
	w := post(t, r, "/psm", gin.H{
		"data":          rows(60, mixed),
		"treatment_col": "t",
		"outcome_col":   "y",
		"confounders":   []string{"age", "region"},
		"n_neighbors":   2,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Run-ID"))
	assert.Len(t, w.Header().Get("X-Dataset-Fingerprint"), 64)

	body := decode(t, w)
	assert.NotNil(t, body["att"])
	assert.NotNil(t, body["ate_raw"])
	assert.Greater(t, body["num_matched_pairs"], 0.0)
	assert.Len(t, body["full_data_with_psm_info"], 60)
	assert.NotNil(t, body["propensity_score_plot_data"], "show_prop_hist defaults to true")
	assert.Nil(t, body["matched_outcome_plot_data"])
}

func TestPostDML(t *testing.T) {
	r, _ := setupRouter(t)
	w := post(t, r, "/dml", gin.H{
		"data":          rows(60, mixed),
		"treatment_col": "t",
		"outcome_col":   "y",
		"confounders":   []string{"age", "region"},
		"n_splits":      3,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.NotNil(t, body["ate"])
	assert.Equal(t, 3.0, body["n_splits"])
	assert.NotNil(t, body["outcome_plot"])
}

func TestPostReportFormats(t *testing.T) {
	r, _ := setupRouter(t)
	req := gin.H{"data": rows(40, mixed), "treatment_col": "t", "outcome_col": "y", "confounders": []string{"age"}}

	w := post(t, r, "/psm?format=markdown", req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, w.Body.String(), "# Propensity Score Matching")

	w = post(t, r, "/dml?format=html", req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "Double Machine Learning")
}

func TestPostErrors(t *testing.T) {
	r, _ := setupRouter(t)
	oneTreated := func(i int) bool { return i == 3 }
	never := func(int) bool { return false }

	tests := []struct {
		name   string
		path   string
		body   gin.H
		status int
		code   string
	}{
		{"missing confounders", "/psm", gin.H{"data": rows(20, mixed), "treatment_col": "t", "outcome_col": "y"}, http.StatusBadRequest, errors.CodeInvalidInput},
		{"bad neighbors", "/psm", gin.H{"data": rows(20, mixed), "treatment_col": "t", "outcome_col": "y", "confounders": []string{"age"}, "n_neighbors": 0}, http.StatusBadRequest, errors.CodeInvalidInput},
		{"bad splits", "/dml", gin.H{"data": rows(20, mixed), "treatment_col": "t", "outcome_col": "y", "confounders": []string{"age"}, "n_splits": 1}, http.StatusBadRequest, errors.CodeInvalidInput},
		{"unknown column", "/psm", gin.H{"data": rows(20, mixed), "treatment_col": "t", "outcome_col": "y", "confounders": []string{"income"}}, http.StatusBadRequest, errors.CodeInvalidColumn},
		{"one treatment class", "/dml", gin.H{"data": rows(20, never), "treatment_col": "t", "outcome_col": "y", "confounders": []string{"age"}}, http.StatusBadRequest, errors.CodeDegenerateTreatment},
		{"fold without treated rows", "/dml", gin.H{"data": rows(10, oneTreated), "treatment_col": "t", "outcome_col": "y", "confounders": []string{"age"}, "n_splits": 2}, http.StatusUnprocessableEntity, errors.CodeFoldTraining},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, r, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decode(t, w)["code"])
		})
	}
}

func TestPostMalformedJSON(t *testing.T) {
	r, _ := setupRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/psm", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOpsRouter(t *testing.T) {
	r, reg := setupRouter(t)
	post(t, r, "/psm", gin.H{"data": rows(40, mixed), "treatment_col": "t", "outcome_col": "y", "confounders": []string{"age"}})

	srv := httptest.NewServer(NewOpsRouter(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `gocausal_estimations_total{method="psm",result="ok"} 1`)
}

func TestRuns(t *testing.T) {
	r, _ := setupRouter(t)
	w := post(t, r, "/psm", gin.H{"data": rows(40, mixed), "treatment_col": "t", "outcome_col": "y", "confounders": []string{"age"}})
	require.Equal(t, http.StatusOK, w.Code)
	runID := w.Header().Get("X-Run-ID")

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	w = get("/runs/" + runID)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "psm", body["method"])
	assert.Equal(t, runID, body["run_id"])
	assert.NotNil(t, body["result"].(map[string]interface{})["att"])

	w = get("/runs?limit=5")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, decode(t, w)["count"])

	w = get("/runs/0190d3b4-8f3a-7c3e-9a1b-2b3c4d5e6f70")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errors.CodeNotFound, decode(t, w)["code"])

	w = get("/runs?limit=zero")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
