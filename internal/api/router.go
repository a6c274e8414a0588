package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gocausal/internal"
)

// NewRouter builds the public estimation API
func NewRouter(h *EstimationHandler, logger *internal.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger.OrDefault()))

	r.GET("/", h.Root)
	r.POST("/psm", h.PostPSM)
	r.POST("/dml", h.PostDML)
	r.GET("/runs", h.ListRuns)
	r.GET("/runs/:id", h.GetRun)
	return r
}

// requestLogger logs one line per request at INFO, or WARN for error statuses
func requestLogger(logger *internal.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		line := "%s %s -> %d in %v (run %s)"
		args := []interface{}{c.Request.Method, c.Request.URL.Path, status, time.Since(start), c.Writer.Header().Get("X-Run-ID")}
		if status >= http.StatusBadRequest {
			logger.Warn(line, args...)
			return
		}
		logger.Info(line, args...)
	}
}

// NewOpsRouter serves health, metrics, and profiling on the ops listener
func NewOpsRouter(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Mount("/debug", middleware.Profiler())
	return r
}
