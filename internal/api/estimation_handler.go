package api

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"gocausal/app"
	"gocausal/domain/causal"
	"gocausal/internal"
	"gocausal/internal/errors"
	"gocausal/internal/report"
)

// EstimationHandler serves the PSM and DML endpoints
type EstimationHandler struct {
	service  *app.EstimationService
	timeout  time.Duration
	validate *validator.Validate
	logger   *internal.Logger
}

// NewEstimationHandler creates a new estimation handler
func NewEstimationHandler(service *app.EstimationService, timeout time.Duration, logger *internal.Logger) *EstimationHandler {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &EstimationHandler{
		service:  service,
		timeout:  timeout,
		validate: v,
		logger:   logger.OrDefault(),
	}
}

// Root describes the service
func (h *EstimationHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "Causal Inference Analysis Tool",
		"endpoints": []string{"POST /psm", "POST /dml", "GET /runs", "GET /runs/:id"},
	})
}

// PostPSM runs propensity score matching. Fields missing from the body take
// their documented defaults. ?format=markdown or ?format=html returns a report
// instead of JSON.
func (h *EstimationHandler) PostPSM(c *gin.Context) {
	req := causal.DefaultPSMRequest()
	if !h.bind(c, &req) {
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	run, err := h.service.RunPSM(ctx, req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("X-Run-ID", run.RunID)
	c.Header("X-Dataset-Fingerprint", run.Fingerprint.String())
	header := report.Header{RunID: run.RunID, Fingerprint: run.Fingerprint.Short(), Treatment: req.Treatment, Outcome: req.Outcome, Confounders: req.Confounders}
	h.respond(c, run.Result, func() string { return report.PSMMarkdown(header, run.Result) })
}

// PostDML runs double machine learning
func (h *EstimationHandler) PostDML(c *gin.Context) {
	req := causal.DefaultDMLRequest()
	if !h.bind(c, &req) {
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	run, err := h.service.RunDML(ctx, req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("X-Run-ID", run.RunID)
	c.Header("X-Dataset-Fingerprint", run.Fingerprint.String())
	header := report.Header{RunID: run.RunID, Fingerprint: run.Fingerprint.Short(), Treatment: req.Treatment, Outcome: req.Outcome, Confounders: req.Confounders}
	h.respond(c, run.Result, func() string { return report.DMLMarkdown(header, run.Result) })
}

func (h *EstimationHandler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body: " + err.Error(), "code": errors.CodeInvalidInput})
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "code": errors.CodeInvalidInput, "details": fieldErrors(err)})
		return false
	}
	return true
}

func (h *EstimationHandler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

func (h *EstimationHandler) respond(c *gin.Context, result interface{}, markdown func() string) {
	switch strings.ToLower(c.Query("format")) {
	case "markdown", "md":
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(markdown()))
	case "html":
		c.Data(http.StatusOK, "text/html; charset=utf-8", report.HTML(markdown()))
	default:
		c.JSON(http.StatusOK, result)
	}
}

func (h *EstimationHandler) fail(c *gin.Context, err error) {
	appErr := errors.FromDomain(err)
	status := errors.HTTPStatus(appErr.Code)
	if status >= http.StatusInternalServerError {
		h.logger.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": appErr.Error(), "code": appErr.Code})
}

// fieldErrors flattens validator errors into "json_field: rule" strings
func fieldErrors(err error) []string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			out = append(out, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			out = append(out, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
	}
	return out
}
