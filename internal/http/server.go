// Package http exposes the workflow API over HTTP: starting a workflow,
// reading its snapshot, and listing runs, plus health and metrics
// endpoints. The package registers routes on an echo instance owned by
// pkg/server.
package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/triad/internal/logging"
	"github.com/fyrsmithlabs/triad/internal/workflow"
)

// WorkflowService is the port the API consumes; internal/services
// implements it.
type WorkflowService interface {
	Start(ctx context.Context, request string) (*workflow.Workflow, error)
	Get(id string) (*workflow.Workflow, error)
	List() []*workflow.Workflow
}

// API registers the workflow routes and their middleware.
type API struct {
	workflows WorkflowService
	metrics   *Metrics
	log       *logging.Logger
	version   string
}

// NewAPI creates the API handler. version is reported by /health.
func NewAPI(workflows WorkflowService, version string, log *logging.Logger) (*API, error) {
	if workflows == nil {
		return nil, errors.New("http: workflow service is required")
	}
	return &API{
		workflows: workflows,
		metrics:   NewMetrics(log),
		log:       log.Named("http"),
		version:   version,
	}, nil
}

// Register attaches routes and the metrics middleware to e.
func (a *API) Register(e *echo.Echo) {
	e.Use(a.metrics.Middleware())

	e.GET("/health", a.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/api/v1")
	v1.POST("/workflows", a.handleStartWorkflow)
	v1.GET("/workflows", a.handleListWorkflows)
	v1.GET("/workflows/:id", a.handleGetWorkflow)
}

func (a *API) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: a.version})
}

// handleStartWorkflow accepts a request and starts it asynchronously:
// 202 means the pipeline was admitted, not that it succeeded.
func (a *API) handleStartWorkflow(c echo.Context) error {
	var req StartWorkflowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Request == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "request field is required")
	}

	ctx := c.Request().Context()
	wf, err := a.workflows.Start(ctx, req.Request)
	if err != nil {
		a.log.Warn(ctx, "failed to start workflow", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusAccepted, StartWorkflowResponse{
		WorkflowID: wf.ID,
		Status:     string(wf.Status),
	})
}

func (a *API) handleGetWorkflow(c echo.Context) error {
	wf, err := a.workflows.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, workflow.ErrWorkflowNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, wf)
}

func (a *API) handleListWorkflows(c echo.Context) error {
	list := a.workflows.List()
	resp := ListWorkflowsResponse{Workflows: make([]WorkflowSummary, 0, len(list))}
	for _, wf := range list {
		resp.Workflows = append(resp.Workflows, WorkflowSummary{
			ID:        wf.ID,
			Title:     wf.Title,
			Status:    string(wf.Status),
			Tasks:     len(wf.Tasks),
			CreatedAt: wf.CreatedAt,
			UpdatedAt: wf.UpdatedAt,
		})
	}
	return c.JSON(http.StatusOK, resp)
}
